package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/feedtools/readersync/internal/feedlist"
	"github.com/feedtools/readersync/internal/reader"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) Init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS nodes (
  id TEXT PRIMARY KEY,
  parent_id TEXT,
  title TEXT NOT NULL,
  folder INTEGER NOT NULL DEFAULT 0,
  source TEXT,
  feed_id TEXT
);
CREATE TABLE IF NOT EXISTS items (
  node_id TEXT NOT NULL,
  source_id TEXT NOT NULL,
  title TEXT,
  link TEXT,
  author TEXT,
  summary TEXT,
  updated_at TEXT NOT NULL,
  read INTEGER NOT NULL DEFAULT 0,
  starred INTEGER NOT NULL DEFAULT 0,
  fetched_at TEXT NOT NULL,
  PRIMARY KEY (node_id, source_id)
);
CREATE TABLE IF NOT EXISTS feed_timestamps (
  source TEXT PRIMARY KEY,
  newest TEXT NOT NULL
);
`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (r *Repository) CheckWritable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS write_check (id INTEGER)`); err != nil {
		return fmt.Errorf("write check: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DROP TABLE write_check`); err != nil {
		return fmt.Errorf("write check cleanup: %w", err)
	}
	return nil
}

// --- feed tree persistence ---

func (r *Repository) SaveNode(ctx context.Context, n *feedlist.Node, feedIDKey string) error {
	parentID := ""
	if n.Parent != nil {
		parentID = n.Parent.ID
	}
	source := ""
	feedID := ""
	if n.Subscription != nil {
		source = n.Subscription.Source
		feedID = n.Subscription.Metadata[feedIDKey]
	}
	folder := 0
	if n.Folder {
		folder = 1
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO nodes (id, parent_id, title, folder, source, feed_id)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  parent_id=excluded.parent_id,
  title=excluded.title,
  folder=excluded.folder,
  source=excluded.source,
  feed_id=excluded.feed_id
`, n.ID, parentID, n.Title, folder, source, feedID)
	if err != nil {
		return fmt.Errorf("save node %s: %w", n.ID, err)
	}
	return nil
}

func (r *Repository) DeleteNode(ctx context.Context, nodeID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE node_id = ?`, nodeID); err != nil {
		return fmt.Errorf("delete items of node %s: %w", nodeID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, nodeID); err != nil {
		return fmt.Errorf("delete node %s: %w", nodeID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LoadTree rebuilds the account tree from persisted nodes. Nodes whose
// parent is gone end up directly under the root.
func (r *Repository) LoadTree(ctx context.Context, rootTitle, feedIDKey string) (*feedlist.Tree, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, parent_id, title, folder, source, feed_id
FROM nodes
ORDER BY folder DESC, title
`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	type nodeRow struct {
		id, parentID, title, source, feedID string
		folder                              bool
	}
	var loaded []nodeRow
	for rows.Next() {
		var rec nodeRow
		var folder int
		if err := rows.Scan(&rec.id, &rec.parentID, &rec.title, &folder, &rec.source, &rec.feedID); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		rec.folder = folder != 0
		loaded = append(loaded, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	tree := feedlist.NewTree(rootTitle)
	byID := make(map[string]*feedlist.Node, len(loaded))
	for _, rec := range loaded {
		n := &feedlist.Node{
			ID:        rec.id,
			Title:     rec.title,
			Folder:    rec.folder,
			Available: true,
		}
		if !rec.folder {
			n.Subscription = feedlist.NewSubscription(rec.source)
			if rec.feedID != "" {
				n.Subscription.Metadata[feedIDKey] = rec.feedID
			}
		}
		byID[rec.id] = n
	}
	for _, rec := range loaded {
		n := byID[rec.id]
		parent := tree.Root
		if p, ok := byID[rec.parentID]; ok && p.Folder {
			parent = p
		}
		n.Parent = parent
		parent.Children = append(parent.Children, n)
	}
	return tree, nil
}

// --- item store ---

func (r *Repository) LookupItem(ctx context.Context, nodeID, sourceID string) (*reader.Item, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT source_id, node_id, title, link, author, summary, updated_at, read, starred
FROM items
WHERE node_id = ? AND source_id = ?
`, nodeID, sourceID)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup item %s: %w", sourceID, err)
	}
	return item, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*reader.Item, error) {
	var item reader.Item
	var updatedAt string
	var read, starred int
	if err := row.Scan(
		&item.SourceID,
		&item.NodeID,
		&item.Title,
		&item.Link,
		&item.Author,
		&item.Summary,
		&updatedAt,
		&read,
		&starred,
	); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse item updated_at %q: %w", updatedAt, err)
	}
	item.Updated = parsed
	item.Read = read != 0
	item.Starred = starred != 0
	return &item, nil
}

// UpsertItems inserts new items and refreshes the content columns of
// existing ones. Read and starred flags of existing rows are left alone;
// the sync engine reconciles those separately so queued local edits are
// not overwritten.
func (r *Repository) UpsertItems(ctx context.Context, nodeID string, items []*reader.Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO items (node_id, source_id, title, link, author, summary, updated_at, read, starred, fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(node_id, source_id) DO UPDATE SET
  title=excluded.title,
  link=excluded.link,
  author=excluded.author,
  summary=excluded.summary,
  updated_at=excluded.updated_at,
  fetched_at=excluded.fetched_at
`)
	if err != nil {
		return fmt.Errorf("prepare upsert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, item := range items {
		read := 0
		if item.Read {
			read = 1
		}
		starred := 0
		if item.Starred {
			starred = 1
		}
		_, err := stmt.ExecContext(
			ctx,
			nodeID,
			item.SourceID,
			item.Title,
			item.Link,
			item.Author,
			item.Summary,
			item.Updated.UTC().Format(time.RFC3339Nano),
			read,
			starred,
			now,
		)
		if err != nil {
			return fmt.Errorf("save item %s: %w", item.SourceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repository) SetItemRead(ctx context.Context, nodeID, sourceID string, read bool) error {
	return r.setItemFlag(ctx, "read", nodeID, sourceID, read)
}

func (r *Repository) SetItemStarred(ctx context.Context, nodeID, sourceID string, starred bool) error {
	return r.setItemFlag(ctx, "starred", nodeID, sourceID, starred)
}

func (r *Repository) setItemFlag(ctx context.Context, column, nodeID, sourceID string, value bool) error {
	v := 0
	if value {
		v = 1
	}
	// column is one of two fixed names, never user input
	query := fmt.Sprintf(`UPDATE items SET %s = ? WHERE node_id = ? AND source_id = ?`, column)
	if _, err := r.db.ExecContext(ctx, query, v, nodeID, sourceID); err != nil {
		return fmt.Errorf("set %s of item %s: %w", column, sourceID, err)
	}
	return nil
}

func (r *Repository) RemoveItem(ctx context.Context, nodeID, sourceID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE node_id = ? AND source_id = ?`, nodeID, sourceID); err != nil {
		return fmt.Errorf("remove item %s: %w", sourceID, err)
	}
	return nil
}

func (r *Repository) ListItems(ctx context.Context, nodeID string) ([]*reader.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT source_id, node_id, title, link, author, summary, updated_at, read, starred
FROM items
WHERE node_id = ?
ORDER BY updated_at DESC
`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []*reader.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return items, nil
}

// --- quick-update timestamp cache ---

func (r *Repository) SaveTimestamps(ctx context.Context, timestamps map[string]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO feed_timestamps (source, newest) VALUES (?, ?)
ON CONFLICT(source) DO UPDATE SET newest=excluded.newest
`)
	if err != nil {
		return fmt.Errorf("prepare timestamp statement: %w", err)
	}
	defer stmt.Close()

	for source, newest := range timestamps {
		if _, err := stmt.ExecContext(ctx, source, newest); err != nil {
			return fmt.Errorf("save timestamp for %s: %w", source, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repository) LoadTimestamps(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT source, newest FROM feed_timestamps`)
	if err != nil {
		return nil, fmt.Errorf("query timestamps: %w", err)
	}
	defer rows.Close()

	timestamps := make(map[string]string)
	for rows.Next() {
		var source, newest string
		if err := rows.Scan(&source, &newest); err != nil {
			return nil, fmt.Errorf("scan timestamp: %w", err)
		}
		timestamps[source] = newest
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return timestamps, nil
}
