package feedlist

import (
	"testing"
)

type recordingListener struct {
	imported   []string
	removed    []string
	reparented []string
}

func (l *recordingListener) NodeImported(n *Node) { l.imported = append(l.imported, n.Title) }
func (l *recordingListener) NodeRemoved(n *Node)  { l.removed = append(l.removed, n.Title) }

func (l *recordingListener) NodeReparented(n *Node, old *Node) {
	l.reparented = append(l.reparented, n.Title)
}

func TestNewFeedAttachesAndAnnounces(t *testing.T) {
	tree := NewTree("Account")
	listener := &recordingListener{}
	tree.SetListener(listener)

	n := tree.NewFeed(tree.Root, "A", " http://a.com/rss ")

	if n.Parent != tree.Root {
		t.Fatal("feed not attached to the given parent")
	}
	if n.Subscription.Source != "http://a.com/rss" {
		t.Fatalf("source not trimmed: %q", n.Subscription.Source)
	}
	if !n.IsFeed() {
		t.Fatal("feed node not recognized as feed")
	}
	if len(listener.imported) != 1 || listener.imported[0] != "A" {
		t.Fatalf("import announcements: %v", listener.imported)
	}
}

func TestFindOrCreateFolderReusesExisting(t *testing.T) {
	tree := NewTree("Account")

	first := tree.FindOrCreateFolder("News")
	second := tree.FindOrCreateFolder("News")

	if first != second {
		t.Fatal("folder created twice")
	}
	if len(tree.Folders()) != 1 {
		t.Fatalf("folder count: %d", len(tree.Folders()))
	}
}

func TestReparent(t *testing.T) {
	tree := NewTree("Account")
	listener := &recordingListener{}
	tree.SetListener(listener)

	folder := tree.FindOrCreateFolder("News")
	n := tree.NewFeed(tree.Root, "A", "http://a.com/rss")

	tree.Reparent(n, folder)

	if n.Parent != folder {
		t.Fatal("node not moved")
	}
	if len(tree.Root.Children) != 1 {
		t.Fatalf("root children after move: %d", len(tree.Root.Children))
	}
	if len(listener.reparented) != 1 {
		t.Fatalf("reparent announcements: %v", listener.reparented)
	}

	// moving to the current parent is a no-op
	tree.Reparent(n, folder)
	if len(listener.reparented) != 1 {
		t.Fatal("no-op reparent announced")
	}
}

func TestRemoveAnnouncesBottomUp(t *testing.T) {
	tree := NewTree("Account")
	listener := &recordingListener{}
	tree.SetListener(listener)

	folder := tree.FindOrCreateFolder("News")
	tree.NewFeed(folder, "A", "http://a.com/rss")
	tree.NewFeed(folder, "B", "http://b.com/rss")

	tree.Remove(folder)

	if len(tree.Root.Children) != 0 {
		t.Fatal("folder still attached after removal")
	}
	want := []string{"A", "B", "News"}
	if len(listener.removed) != len(want) {
		t.Fatalf("removal announcements: %v", listener.removed)
	}
	for i, title := range want {
		if listener.removed[i] != title {
			t.Fatalf("removal order: %v", listener.removed)
		}
	}
}

func TestFindBySourceSearchesFolders(t *testing.T) {
	tree := NewTree("Account")
	folder := tree.FindOrCreateFolder("News")
	n := tree.NewFeed(folder, "A", "http://a.com/rss")

	if tree.FindBySource("http://a.com/rss") != n {
		t.Fatal("feed in folder not found")
	}
	if tree.FindBySource("http://a.com/rss/") != nil {
		t.Fatal("lookup must compare sources exactly")
	}
}

func TestFeedsCollectsDepthFirst(t *testing.T) {
	tree := NewTree("Account")
	tree.NewFeed(tree.Root, "A", "http://a.com/rss")
	folder := tree.FindOrCreateFolder("News")
	tree.NewFeed(folder, "B", "http://b.com/rss")

	feeds := tree.Feeds()
	if len(feeds) != 2 {
		t.Fatalf("feed count: %d", len(feeds))
	}
	if feeds[0].Title != "A" || feeds[1].Title != "B" {
		t.Fatalf("feed order: %s, %s", feeds[0].Title, feeds[1].Title)
	}
}

func TestTouchReannounces(t *testing.T) {
	tree := NewTree("Account")
	listener := &recordingListener{}
	tree.SetListener(listener)

	n := tree.NewFeed(tree.Root, "A", "http://a.com/rss")
	n.Subscription.Metadata["remote-id"] = "feed/http://a.com/rss"
	tree.Touch(n)

	if len(listener.imported) != 2 {
		t.Fatalf("expected re-announcement, got %v", listener.imported)
	}
}
