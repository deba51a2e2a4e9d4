package reader

// Test doubles shared by the package tests: a queueing executor whose
// callbacks fire only when the test delivers a response, and an in-memory
// item store.

import (
	"strings"
	"sync"
	"testing"

	"github.com/feedtools/readersync/internal/feedlist"
	"github.com/feedtools/readersync/internal/update"
)

type fakeJob struct {
	owner string
	req   *update.Request
	cb    update.Callback
}

// fakeExecutor records requests instead of sending them. Delivering a
// result happens after Execute returned, mirroring the asynchronous
// production executor without goroutines.
type fakeExecutor struct {
	mu      sync.Mutex
	pending []*fakeJob
	closed  map[string]bool
}

func (e *fakeExecutor) Execute(owner string, req *update.Request, cb update.Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed[owner] {
		return
	}
	e.pending = append(e.pending, &fakeJob{owner: owner, req: req, cb: cb})
}

func (e *fakeExecutor) CancelAll(owner string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed == nil {
		e.closed = make(map[string]bool)
	}
	e.closed[owner] = true
	kept := e.pending[:0]
	for _, job := range e.pending {
		if job.owner != owner {
			kept = append(kept, job)
		}
	}
	e.pending = kept
}

func (e *fakeExecutor) pendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// take pops the oldest pending request whose URL contains urlPart (any
// request when urlPart is empty).
func (e *fakeExecutor) take(t *testing.T, urlPart string) *fakeJob {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, job := range e.pending {
		if urlPart == "" || strings.Contains(job.req.Source, urlPart) {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return job
		}
	}
	t.Fatalf("no pending request matching %q (have %d pending)", urlPart, len(e.pending))
	return nil
}

func (e *fakeExecutor) respond(t *testing.T, urlPart string, status int, body string) *fakeJob {
	t.Helper()
	job := e.take(t, urlPart)
	job.cb(result(status, body))
	return job
}

func result(status int, body string) *update.Result {
	return &update.Result{HTTPStatus: status, Data: []byte(body), Size: len(body)}
}

type memStore struct {
	mu    sync.Mutex
	items map[string]map[string]*Item
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]map[string]*Item)}
}

func (m *memStore) Lookup(nodeID, sourceID string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[nodeID][sourceID]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

// Upsert matches the sqlite repository: content columns are replaced,
// read and starred state of existing items is preserved.
func (m *memStore) Upsert(nodeID string, items []*Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[nodeID] == nil {
		m.items[nodeID] = make(map[string]*Item)
	}
	for _, item := range items {
		copied := *item
		if prior, ok := m.items[nodeID][item.SourceID]; ok {
			copied.Read = prior.Read
			copied.Starred = prior.Starred
		}
		m.items[nodeID][item.SourceID] = &copied
	}
	return nil
}

func (m *memStore) SetRead(nodeID, sourceID string, read bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[nodeID][sourceID]; ok {
		item.Read = read
	}
	return nil
}

func (m *memStore) SetStarred(nodeID, sourceID string, starred bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[nodeID][sourceID]; ok {
		item.Starred = starred
	}
	return nil
}

func (m *memStore) Remove(nodeID, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items[nodeID], sourceID)
	return nil
}

func (m *memStore) List(nodeID string) ([]*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Item
	for _, item := range m.items[nodeID] {
		copied := *item
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memStore) get(t *testing.T, nodeID, sourceID string) *Item {
	t.Helper()
	item, _ := m.Lookup(nodeID, sourceID)
	if item == nil {
		t.Fatalf("item %s missing from store", sourceID)
	}
	return item
}

func newTestSource(opts Options) (*Source, *fakeExecutor, *memStore) {
	tree := feedlist.NewTree("Reedah")
	exec := &fakeExecutor{}
	store := newMemStore()
	src := NewSource(Reedah, Credentials{Username: "jane@example.com", Password: "secret"}, tree, store, exec, opts)
	return src, exec, store
}

// login drives the source into the active state via a login-only cycle.
func loginSource(t *testing.T, src *Source, exec *fakeExecutor) {
	t.Helper()
	src.Login(FlagLoginOnly)
	job := exec.respond(t, "/accounts/ClientLogin", 200, "SID=ignored\nAuth=tok123\n")
	if job.req.PostData == "" {
		t.Fatal("login request must be a POST")
	}
	if got := src.State(); got != StateActive {
		t.Fatalf("expected active state after login, got %s", got)
	}
}
