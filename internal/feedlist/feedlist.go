package feedlist

import (
	"strings"

	"github.com/google/uuid"
)

// Subscription holds the source URL and sync metadata of one feed node.
type Subscription struct {
	Source   string
	Metadata map[string]string
}

func NewSubscription(source string) *Subscription {
	return &Subscription{
		Source:   strings.TrimSpace(source),
		Metadata: make(map[string]string),
	}
}

// Node is one entry of an account's feed tree: either a folder or a feed
// leaf carrying a subscription.
type Node struct {
	ID       string
	Title    string
	Folder   bool
	Parent   *Node
	Children []*Node

	Subscription *Subscription
	Available    bool
	UpdateError  string
}

func (n *Node) IsFeed() bool {
	return !n.Folder && n.Subscription != nil
}

// Listener observes structural tree changes so persistence and UI layers
// can react outside the sync engine.
type Listener interface {
	NodeImported(n *Node)
	NodeRemoved(n *Node)
	NodeReparented(n *Node, oldParent *Node)
}

// Tree is the feed tree of one account, rooted at the account node.
type Tree struct {
	Root     *Node
	listener Listener
}

func NewTree(title string) *Tree {
	return &Tree{
		Root: &Node{
			ID:        uuid.NewString(),
			Title:     title,
			Folder:    true,
			Available: true,
		},
	}
}

func (t *Tree) SetListener(l Listener) {
	t.listener = l
}

// NewFeed creates a feed node under parent and announces it.
func (t *Tree) NewFeed(parent *Node, title, source string) *Node {
	n := &Node{
		ID:           uuid.NewString(),
		Title:        title,
		Subscription: NewSubscription(source),
		Available:    true,
	}
	t.attach(n, parent)
	if t.listener != nil {
		t.listener.NodeImported(n)
	}
	return n
}

// FindOrCreateFolder returns the folder with the given title directly under
// the root, creating and announcing it when absent.
func (t *Tree) FindOrCreateFolder(title string) *Node {
	for _, child := range t.Root.Children {
		if child.Folder && child.Title == title {
			return child
		}
	}
	folder := &Node{
		ID:        uuid.NewString(),
		Title:     title,
		Folder:    true,
		Available: true,
	}
	t.attach(folder, t.Root)
	if t.listener != nil {
		t.listener.NodeImported(folder)
	}
	return folder
}

// Touch re-announces a node whose subscription metadata changed so
// listeners can persist the new state.
func (t *Tree) Touch(n *Node) {
	if t.listener != nil {
		t.listener.NodeImported(n)
	}
}

// Reparent moves a node below a new parent. A no-op when the node is
// already there.
func (t *Tree) Reparent(n *Node, parent *Node) {
	if n.Parent == parent {
		return
	}
	old := n.Parent
	t.detach(n)
	t.attach(n, parent)
	if t.listener != nil {
		t.listener.NodeReparented(n, old)
	}
}

// Remove detaches a node (and any children) from the tree and announces
// the removal bottom-up.
func (t *Tree) Remove(n *Node) {
	for len(n.Children) > 0 {
		t.Remove(n.Children[0])
	}
	t.detach(n)
	if t.listener != nil {
		t.listener.NodeRemoved(n)
	}
}

// FindBySource returns the first feed node whose subscription source equals
// source, searching the whole tree. Comparison is exact string equality.
func (t *Tree) FindBySource(source string) *Node {
	return findBySource(t.Root, source)
}

func findBySource(n *Node, source string) *Node {
	for _, child := range n.Children {
		if child.Subscription != nil && child.Subscription.Source == source {
			return child
		}
		if child.Folder {
			if found := findBySource(child, source); found != nil {
				return found
			}
		}
	}
	return nil
}

// Feeds returns every feed node in the tree in depth-first order.
func (t *Tree) Feeds() []*Node {
	var feeds []*Node
	collectFeeds(t.Root, &feeds)
	return feeds
}

func collectFeeds(n *Node, out *[]*Node) {
	for _, child := range n.Children {
		if child.IsFeed() {
			*out = append(*out, child)
		}
		if child.Folder {
			collectFeeds(child, out)
		}
	}
}

// Folders returns the folders directly under the root.
func (t *Tree) Folders() []*Node {
	var folders []*Node
	for _, child := range t.Root.Children {
		if child.Folder {
			folders = append(folders, child)
		}
	}
	return folders
}

func (t *Tree) attach(n *Node, parent *Node) {
	if parent == nil {
		parent = t.Root
	}
	n.Parent = parent
	parent.Children = append(parent.Children, n)
}

func (t *Tree) detach(n *Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	for i, child := range parent.Children {
		if child == n {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			break
		}
	}
	n.Parent = nil
}
