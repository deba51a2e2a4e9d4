package storage

import (
	"context"
	"log"

	"github.com/feedtools/readersync/internal/feedlist"
	"github.com/feedtools/readersync/internal/reader"
)

// BoundStore adapts the context-taking Repository to the callback-driven
// reader.ItemStore contract using a fixed base context.
type BoundStore struct {
	repo *Repository
	ctx  context.Context
}

func (r *Repository) Bind(ctx context.Context) *BoundStore {
	return &BoundStore{repo: r, ctx: ctx}
}

var _ reader.ItemStore = (*BoundStore)(nil)

func (b *BoundStore) Lookup(nodeID, sourceID string) (*reader.Item, error) {
	return b.repo.LookupItem(b.ctx, nodeID, sourceID)
}

func (b *BoundStore) Upsert(nodeID string, items []*reader.Item) error {
	return b.repo.UpsertItems(b.ctx, nodeID, items)
}

func (b *BoundStore) SetRead(nodeID, sourceID string, read bool) error {
	return b.repo.SetItemRead(b.ctx, nodeID, sourceID, read)
}

func (b *BoundStore) SetStarred(nodeID, sourceID string, starred bool) error {
	return b.repo.SetItemStarred(b.ctx, nodeID, sourceID, starred)
}

func (b *BoundStore) Remove(nodeID, sourceID string) error {
	return b.repo.RemoveItem(b.ctx, nodeID, sourceID)
}

func (b *BoundStore) List(nodeID string) ([]*reader.Item, error) {
	return b.repo.ListItems(b.ctx, nodeID)
}

// TreeSaver persists structural feed tree changes as they happen.
// Persistence failures are logged, not propagated: the in-memory tree is
// authoritative for the running sync cycle and is re-saved on the next
// change.
type TreeSaver struct {
	repo      *Repository
	ctx       context.Context
	feedIDKey string
}

func (r *Repository) Saver(ctx context.Context, feedIDKey string) *TreeSaver {
	return &TreeSaver{repo: r, ctx: ctx, feedIDKey: feedIDKey}
}

var _ feedlist.Listener = (*TreeSaver)(nil)

func (t *TreeSaver) NodeImported(n *feedlist.Node) {
	if err := t.repo.SaveNode(t.ctx, n, t.feedIDKey); err != nil {
		log.Printf("[storage] save node %q: %v", n.Title, err)
	}
}

func (t *TreeSaver) NodeRemoved(n *feedlist.Node) {
	if err := t.repo.DeleteNode(t.ctx, n.ID); err != nil {
		log.Printf("[storage] delete node %q: %v", n.Title, err)
	}
}

func (t *TreeSaver) NodeReparented(n *feedlist.Node, oldParent *feedlist.Node) {
	if err := t.repo.SaveNode(t.ctx, n, t.feedIDKey); err != nil {
		log.Printf("[storage] reparent node %q: %v", n.Title, err)
	}
}
