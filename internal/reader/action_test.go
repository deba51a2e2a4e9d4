package reader

import (
	"strings"
	"testing"
)

func TestActionRequestBodies(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		url    string
		body   string
	}{
		{
			name:   "mark read",
			action: Action{Kind: ActionMarkRead, GUID: "item1", FeedURL: "http://a.com/rss"},
			url:    Reedah.EditTagURL,
			body:   "i=item1&s=feed%2Fhttp%3A%2F%2Fa.com%2Frss&a=user%2F-%2Fstate%2Fcom.google%2Fread&T=tok",
		},
		{
			name:   "mark unread sets kept-unread and removes read",
			action: Action{Kind: ActionMarkUnread, GUID: "item1", FeedURL: "http://a.com/rss"},
			url:    Reedah.EditTagURL,
			body:   "i=item1&s=feed%2Fhttp%3A%2F%2Fa.com%2Frss&a=user%2F-%2Fstate%2Fcom.google%2Fkept-unread&r=user%2F-%2Fstate%2Fcom.google%2Fread&T=tok",
		},
		{
			name:   "tracking mark unread",
			action: Action{Kind: ActionTrackingMarkUnread, GUID: "item1", FeedURL: "http://a.com/rss"},
			url:    Reedah.EditTagURL,
			body:   "i=item1&s=feed%2Fhttp%3A%2F%2Fa.com%2Frss&a=user%2F-%2Fstate%2Fcom.google%2Ftracking-kept-unread&T=tok",
		},
		{
			name:   "mark starred",
			action: Action{Kind: ActionMarkStarred, GUID: "item1", FeedURL: "http://a.com/rss"},
			url:    Reedah.EditTagURL,
			body:   "i=item1&s=feed%2Fhttp%3A%2F%2Fa.com%2Frss&a=user%2F-%2Fstate%2Fcom.google%2Fstarred&T=tok",
		},
		{
			name:   "mark unstarred removes the tag",
			action: Action{Kind: ActionMarkUnstarred, GUID: "item1", FeedURL: "http://a.com/rss"},
			url:    Reedah.EditTagURL,
			body:   "i=item1&s=feed%2Fhttp%3A%2F%2Fa.com%2Frss&r=user%2F-%2Fstate%2Fcom.google%2Fstarred&T=tok",
		},
		{
			name:   "opaque stream ids use the user prefix",
			action: Action{Kind: ActionMarkRead, GUID: "item1", FeedURL: "user/-/state/com.google/broadcast-friends"},
			url:    Reedah.EditTagURL,
			body:   "i=item1&s=user%2Fuser%2F-%2Fstate%2Fcom.google%2Fbroadcast-friends&a=user%2F-%2Fstate%2Fcom.google%2Fread&T=tok",
		},
		{
			name:   "add subscription",
			action: Action{Kind: ActionAddSubscription, FeedURL: "http://a.com/rss"},
			url:    Reedah.AddSubscriptionURL,
			body:   "s=feed%2Fhttp%3A%2F%2Fa.com%2Frss&T=tok",
		},
		{
			name:   "remove subscription",
			action: Action{Kind: ActionRemoveSubscription, FeedURL: "http://a.com/rss"},
			url:    Reedah.RemoveSubscriptionURL,
			body:   "s=feed%2Fhttp%3A%2F%2Fa.com%2Frss&ac=unsubscribe&T=tok",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.action.request(Reedah, "tok")
			if req.Source != tc.url {
				t.Fatalf("request URL: %s", req.Source)
			}
			if req.PostData != tc.body {
				t.Fatalf("body mismatch:\n got %s\nwant %s", req.PostData, tc.body)
			}
		})
	}
}

func TestStreamPrefix(t *testing.T) {
	if got := streamPrefix("http://a.com/rss"); got != "feed" {
		t.Fatalf("absolute URL prefix: %s", got)
	}
	if got := streamPrefix("user/-/state/com.google/broadcast-friends"); got != "user" {
		t.Fatalf("opaque id prefix: %s", got)
	}
}

func TestStatusError(t *testing.T) {
	if got := StatusError(0); got != "request failed (no response)" {
		t.Fatalf("status 0: %q", got)
	}
	if got := StatusError(401); got != "authorization failed" {
		t.Fatalf("status 401: %q", got)
	}
	if got := StatusError(410); got != "feed is discontinued" {
		t.Fatalf("status 410: %q", got)
	}
	if got := StatusError(502); !strings.Contains(got, "502") {
		t.Fatalf("status 502: %q", got)
	}
	if got := StatusError(200); got != "" {
		t.Fatalf("status 200: %q", got)
	}
}
