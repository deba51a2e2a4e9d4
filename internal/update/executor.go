package update

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Request describes one remote fetch: a target URL, an optional POST body
// and an optional Authorization header value.
type Request struct {
	Source      string
	PostData    string
	AuthValue   string
	ContentType string
}

// Result carries the outcome of a completed request.
type Result struct {
	HTTPStatus int
	Data       []byte
	Size       int
}

// Callback is invoked exactly once per executed request. Callbacks for the
// same owner are never invoked concurrently.
type Callback func(res *Result)

// Executor issues requests asynchronously. Execute never blocks; the
// callback fires later on the executor's own schedule. CancelAll drops all
// outstanding requests tagged with the given owner so that their callbacks
// are never invoked.
type Executor interface {
	Execute(owner string, req *Request, cb Callback)
	CancelAll(owner string)
}

// HTTPExecutor is the production Executor backed by net/http. Each owner
// gets serialized callback delivery, which lets callers mutate per-owner
// state inside callbacks without further locking.
type HTTPExecutor struct {
	client *http.Client

	mu     sync.Mutex
	owners map[string]*ownerState
	nextID int64
}

type ownerState struct {
	deliverMu sync.Mutex
	cancels   map[int64]context.CancelFunc
	closed    bool
}

func NewHTTPExecutor(client *http.Client) *HTTPExecutor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPExecutor{
		client: client,
		owners: make(map[string]*ownerState),
	}
}

func (e *HTTPExecutor) Execute(owner string, req *Request, cb Callback) {
	e.mu.Lock()
	state, ok := e.owners[owner]
	if !ok {
		state = &ownerState{cancels: make(map[int64]context.CancelFunc)}
		e.owners[owner] = state
	}
	if state.closed {
		e.mu.Unlock()
		return
	}
	e.nextID++
	id := e.nextID
	ctx, cancel := context.WithCancel(context.Background())
	state.cancels[id] = cancel
	e.mu.Unlock()

	go func() {
		defer cancel()
		res := e.run(ctx, req)

		e.mu.Lock()
		_, live := state.cancels[id]
		delete(state.cancels, id)
		closed := state.closed
		e.mu.Unlock()
		if !live || closed {
			return
		}

		state.deliverMu.Lock()
		defer state.deliverMu.Unlock()
		if cb != nil {
			cb(res)
		}
	}()
}

func (e *HTTPExecutor) run(ctx context.Context, req *Request) *Result {
	method := http.MethodGet
	var body io.Reader
	if req.PostData != "" {
		method = http.MethodPost
		body = bytes.NewBufferString(req.PostData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.Source, body)
	if err != nil {
		return &Result{}
	}
	if req.AuthValue != "" {
		httpReq.Header.Set("Authorization", req.AuthValue)
	}
	if req.PostData != "" {
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/x-www-form-urlencoded"
		}
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return &Result{}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &Result{HTTPStatus: resp.StatusCode}
	}
	return &Result{
		HTTPStatus: resp.StatusCode,
		Data:       data,
		Size:       len(data),
	}
}

// CancelAll cancels every outstanding request for owner and suppresses
// their callbacks. Subsequent Execute calls for the owner are dropped.
func (e *HTTPExecutor) CancelAll(owner string) {
	e.mu.Lock()
	state, ok := e.owners[owner]
	if ok {
		state.closed = true
		for id, cancel := range state.cancels {
			cancel()
			delete(state.cancels, id)
		}
	}
	e.mu.Unlock()
}

// BodyString trims the surrounding whitespace a reader backend pads token
// and status bodies with.
func BodyString(res *Result) string {
	return strings.TrimSpace(string(res.Data))
}
