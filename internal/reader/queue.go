package reader

// The edit queue. Edits are sent to the backend strictly one at a time:
// every processing cycle first fetches a fresh short-lived token, then
// dispatches the head action with the token interpolated. Tokens are
// single-use per request window and must not be cached across cycles.

import (
	"log"

	"github.com/feedtools/readersync/internal/update"
)

// push appends an action (head insertion for subscription-level edits so
// they precede queued item edits). When no session exists yet, a
// login-only cycle is started; the queue drains once it succeeds.
// mu must be held.
func (s *Source) push(a *Action, head bool) {
	if head {
		s.queue = append([]*Action{a}, s.queue...)
	} else {
		s.queue = append(s.queue, a)
	}

	switch s.state {
	case StateNone:
		s.login(FlagLoginOnly)
	case StateActive:
		s.process()
	}
}

// Push queues an action. Exposed for reconciliation-driven edits; user
// entry points on Source are preferred.
func (s *Source) Push(a *Action, head bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push(a, head)
}

// IsInQueue reports whether any not-yet-dispatched action references the
// item guid. The item syncer consults this before applying remote state so
// a stale server snapshot cannot revert a pending local edit.
func (s *Source) IsInQueue(guid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isInQueue(guid)
}

func (s *Source) isInQueue(guid string) bool {
	// linear scan; queues stay short
	for _, a := range s.queue {
		if a.GUID != "" && a.GUID == guid {
			return true
		}
	}
	return false
}

// QueueLen returns the number of not-yet-dispatched actions.
func (s *Source) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Process starts a queue processing cycle if one is due.
func (s *Source) Process() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.process()
}

// process fetches an edit token, then dispatches the head action from the
// token callback. At most one token-and-edit round trip is in flight per
// account. mu must be held.
func (s *Source) process() {
	if len(s.queue) == 0 || s.editInFlight {
		return
	}
	if s.state != StateActive {
		return
	}
	s.editInFlight = true

	req := &update.Request{
		Source:    s.api.TokenURL,
		AuthValue: s.authHeaderValue,
	}
	s.exec.Execute(s.owner(), req, func(res *update.Result) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.tokenComplete(res)
	})
}

// tokenComplete dispatches the head action with the fresh token. The head
// is peeked for the request build and popped only once the edit request is
// on its way; a failed token fetch leaves the queue untouched for a later
// cycle. mu must be held.
func (s *Source) tokenComplete(res *update.Result) {
	if res.HTTPStatus != 200 || len(res.Data) == 0 {
		s.editInFlight = false
		s.editFailed("token fetch failed")
		return
	}
	if len(s.queue) == 0 {
		s.editInFlight = false
		return
	}
	token := update.BodyString(res)

	action := s.queue[0]
	req := action.request(s.api, token)
	req.AuthValue = s.authHeaderValue

	s.exec.Execute(s.owner(), req, func(r *update.Result) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.editComplete(action, r)
	})
	s.queue = s.queue[1:]
}

// editComplete resolves the dispatched action. The backend answers a bare
// "OK" on success; anything else fails the action. On success the next
// queued action is processed immediately.
func (s *Source) editComplete(action *Action, res *update.Result) {
	s.editInFlight = false
	success := update.BodyString(res) == "OK"

	if action.OnComplete != nil {
		action.OnComplete(s, action, success)
	}

	if !success {
		log.Printf("[edit] %s: %s edit failed (status %d)", s.api.Name, action.Kind, res.HTTPStatus)
		s.editFailed("edit rejected")
		return
	}

	s.editFailures = 0
	s.process()
}

// editFailed schedules one deferred retry with exponential backoff. After
// maxEditFailures consecutive failures the queue stalls until the next
// external trigger. mu must be held.
func (s *Source) editFailed(reason string) {
	s.editFailures++
	if s.editFailures >= maxEditFailures {
		log.Printf("[edit] %s: %s; giving up after %d attempts, %d actions still queued",
			s.api.Name, reason, s.editFailures, len(s.queue))
		return
	}

	delay := retryBase << (s.editFailures - 1)
	if delay > retryCap {
		delay = retryCap
	}
	log.Printf("[edit] %s: %s; retrying in %s", s.api.Name, reason, delay)

	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	s.retryTimer = s.afterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.retryTimer = nil
		s.process()
	})
}
