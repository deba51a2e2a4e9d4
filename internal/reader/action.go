package reader

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/feedtools/readersync/internal/update"
)

// ActionKind identifies one remote-side mutation.
type ActionKind int

const (
	ActionMarkRead ActionKind = iota
	ActionMarkUnread
	// ActionTrackingMarkUnread must always follow an ActionMarkUnread as
	// a second, separate queue entry; the reader API requires the
	// tracking tag to be set in its own call.
	ActionTrackingMarkUnread
	ActionMarkStarred
	ActionMarkUnstarred
	ActionAddSubscription
	ActionRemoveSubscription
)

func (k ActionKind) String() string {
	switch k {
	case ActionMarkRead:
		return "mark-read"
	case ActionMarkUnread:
		return "mark-unread"
	case ActionTrackingMarkUnread:
		return "tracking-mark-unread"
	case ActionMarkStarred:
		return "mark-starred"
	case ActionMarkUnstarred:
		return "mark-unstarred"
	case ActionAddSubscription:
		return "add-subscription"
	case ActionRemoveSubscription:
		return "remove-subscription"
	}
	return "unknown"
}

// Action is one pending edit against the remote account. GUID is set only
// for per-item actions; FeedURL is mandatory and names either the feed
// containing the item or the subscription being added or removed.
type Action struct {
	Kind    ActionKind
	GUID    string
	FeedURL string

	// OnComplete fires exactly once after the remote edit finished, then
	// the action is discarded.
	OnComplete func(src *Source, a *Action, success bool)
}

// streamPrefix guesses the stream type from the feed URL. Absolute URLs
// belong to "feed" streams; anything without a scheme marker is an opaque
// user-stream id.
func streamPrefix(feedURL string) string {
	if strings.Contains(feedURL, "://") {
		return "feed"
	}
	return "user"
}

// request converts the action into the remote edit request, interpolating
// the single-use token. The body layouts must match the backend byte for
// byte.
func (a *Action) request(api Backend, token string) *update.Request {
	switch a.Kind {
	case ActionAddSubscription:
		return &update.Request{
			Source:   api.AddSubscriptionURL,
			PostData: fmt.Sprintf("s=feed%%2F%s&T=%s", url.QueryEscape(a.FeedURL), token),
		}
	case ActionRemoveSubscription:
		return &update.Request{
			Source:   api.RemoveSubscriptionURL,
			PostData: fmt.Sprintf("s=feed%%2F%s&ac=unsubscribe&T=%s", url.QueryEscape(a.FeedURL), token),
		}
	}

	prefix := streamPrefix(a.FeedURL)
	i := url.QueryEscape(a.GUID)
	s := url.QueryEscape(a.FeedURL)

	var postdata string
	switch a.Kind {
	case ActionMarkRead:
		postdata = fmt.Sprintf("i=%s&s=%s%%2F%s&a=%s&T=%s",
			i, prefix, s, url.QueryEscape(api.TagRead), token)
	case ActionMarkUnread:
		postdata = fmt.Sprintf("i=%s&s=%s%%2F%s&a=%s&r=%s&T=%s",
			i, prefix, s, url.QueryEscape(api.TagKeptUnread), url.QueryEscape(api.TagRead), token)
	case ActionTrackingMarkUnread:
		postdata = fmt.Sprintf("i=%s&s=%s%%2F%s&a=%s&T=%s",
			i, prefix, s, url.QueryEscape(api.TagTrackingKeptUnread), token)
	case ActionMarkStarred:
		postdata = fmt.Sprintf("i=%s&s=%s%%2F%s&a=%s&T=%s",
			i, prefix, s, url.QueryEscape(api.TagStarred), token)
	case ActionMarkUnstarred:
		postdata = fmt.Sprintf("i=%s&s=%s%%2F%s&r=%s&T=%s",
			i, prefix, s, url.QueryEscape(api.TagStarred), token)
	}

	return &update.Request{
		Source:   api.EditTagURL,
		PostData: postdata,
	}
}
