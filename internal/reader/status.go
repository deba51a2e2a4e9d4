package reader

import (
	"errors"
	"fmt"
)

// Error taxonomy of the sync engine. All failures are scoped to one
// account or one feed; none aborts the process.
var (
	// ErrAuth covers rejected logins and failed token fetches.
	ErrAuth = errors.New("authentication failed")
	// ErrTransport covers non-2xx statuses and malformed responses.
	ErrTransport = errors.New("transport error")
	// ErrProtocol covers bodies failing an expected-literal or
	// expected-JSON-shape check.
	ErrProtocol = errors.New("protocol error")
)

// StatusError maps an HTTP status to the human-readable message stored on
// an unavailable node.
func StatusError(status int) string {
	switch {
	case status == 0:
		return "request failed (no response)"
	case status == 401 || status == 403:
		return "authorization failed"
	case status == 404:
		return "resource not found"
	case status == 410:
		return "feed is discontinued"
	case status >= 500:
		return fmt.Sprintf("server error (HTTP %d)", status)
	case status >= 400:
		return fmt.Sprintf("request error (HTTP %d)", status)
	case status != 200:
		return fmt.Sprintf("unexpected HTTP status %d", status)
	}
	return ""
}
