package reader

// Backend holds everything that differs between Google-Reader-compatible
// services: endpoint URLs, the auth scheme and the tag vocabulary. The sync
// engine itself is backend-agnostic.
type Backend struct {
	Name string

	LoginURL              string
	TokenURL              string
	EditTagURL            string
	AddSubscriptionURL    string
	RemoveSubscriptionURL string
	SubscriptionListURL   string
	UnreadCountsURL       string

	// StreamContentsURL is completed with the escaped remote feed id and
	// the item page size.
	StreamContentsURL string

	// AuthScheme prefixes the parsed session token to form the
	// Authorization header value.
	AuthScheme string
	// AuthTokenMarker starts the token line in a login response body.
	AuthTokenMarker string

	TagRead                string
	TagKeptUnread          string
	TagTrackingKeptUnread  string
	TagStarred             string
	ReadStateCategory      string
	StarredStateCategory   string
	ItemIDPrefix           string
	BroadcastFriendsStream string

	// FeedIDKey is the subscription metadata key storing the remote feed
	// id a node was merged from.
	FeedIDKey string
}

var Reedah = Backend{
	Name:                  "reedah",
	LoginURL:              "https://www.reedah.com/accounts/ClientLogin",
	TokenURL:              "https://www.reedah.com/reader/api/0/token",
	EditTagURL:            "https://www.reedah.com/reader/api/0/edit-tag?client=readersync",
	AddSubscriptionURL:    "https://www.reedah.com/reader/api/0/subscription/edit?client=readersync",
	RemoveSubscriptionURL: "https://www.reedah.com/reader/api/0/subscription/edit?client=readersync",
	SubscriptionListURL:   "https://www.reedah.com/reader/api/0/subscription/list?output=json",
	UnreadCountsURL:       "https://www.reedah.com/reader/api/0/unread-count?all=true&client=readersync&output=json",
	StreamContentsURL:     "https://www.reedah.com/reader/api/0/stream/contents/%s?client=readersync&n=%d",

	AuthScheme:      "GoogleLogin auth=",
	AuthTokenMarker: "Auth=",

	TagRead:                "user/-/state/com.google/read",
	TagKeptUnread:          "user/-/state/com.google/kept-unread",
	TagTrackingKeptUnread:  "user/-/state/com.google/tracking-kept-unread",
	TagStarred:             "user/-/state/com.google/starred",
	ReadStateCategory:      "state/com.google/read",
	StarredStateCategory:   "state/com.google/starred",
	ItemIDPrefix:           "tag:google.com,2005:reader/item/",
	BroadcastFriendsStream: "user/-/state/com.google/broadcast-friends",

	FeedIDKey: "reedah-feed-id",
}

var TheOldReader = Backend{
	Name:                  "theoldreader",
	LoginURL:              "https://theoldreader.com/accounts/ClientLogin",
	TokenURL:              "https://theoldreader.com/reader/api/0/token",
	EditTagURL:            "https://theoldreader.com/reader/api/0/edit-tag?client=readersync",
	AddSubscriptionURL:    "https://theoldreader.com/reader/api/0/subscription/edit?client=readersync",
	RemoveSubscriptionURL: "https://theoldreader.com/reader/api/0/subscription/edit?client=readersync",
	SubscriptionListURL:   "https://theoldreader.com/reader/api/0/subscription/list?output=json",
	UnreadCountsURL:       "https://theoldreader.com/reader/api/0/unread-count?all=true&client=readersync&output=json",
	StreamContentsURL:     "https://theoldreader.com/reader/api/0/stream/contents/%s?client=readersync&n=%d",

	AuthScheme:      "GoogleLogin auth=",
	AuthTokenMarker: "Auth=",

	TagRead:                "user/-/state/com.google/read",
	TagKeptUnread:          "user/-/state/com.google/kept-unread",
	TagTrackingKeptUnread:  "user/-/state/com.google/tracking-kept-unread",
	TagStarred:             "user/-/state/com.google/starred",
	ReadStateCategory:      "state/com.google/read",
	StarredStateCategory:   "state/com.google/starred",
	ItemIDPrefix:           "tag:google.com,2005:reader/item/",
	BroadcastFriendsStream: "user/-/state/com.google/broadcast-friends",

	FeedIDKey: "theoldreader-feed-id",
}

// BackendByName resolves a configured backend name.
func BackendByName(name string) (Backend, bool) {
	switch name {
	case Reedah.Name:
		return Reedah, true
	case TheOldReader.Name:
		return TheOldReader, true
	}
	return Backend{}, false
}
