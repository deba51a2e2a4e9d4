package reader

// Subscription list reconciliation: the full list merge aligning the local
// tree with the remote listing, and the cheap timestamp-based quick update.

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/feedtools/readersync/internal/feedlist"
	"github.com/feedtools/readersync/internal/update"
)

type subscriptionCategory struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type subscriptionRecord struct {
	ID         string                 `json:"id"`
	Title      string                 `json:"title"`
	Categories []subscriptionCategory `json:"categories"`
	HTMLURL    string                 `json:"htmlUrl"`
}

type subscriptionListing struct {
	Subscriptions []subscriptionRecord `json:"subscriptions"`
}

type unreadCountRecord struct {
	ID                      string `json:"id"`
	Count                   int    `json:"count"`
	NewestItemTimestampUsec string `json:"newestItemTimestampUsec"`
}

type unreadCountListing struct {
	UnreadCounts []unreadCountRecord `json:"unreadcounts"`
}

// updateSubscriptionList fetches the remote subscription list and merges
// it into the tree. Requires an active session; without one a login is
// started and this cycle is aborted (the login triggers the update
// itself). mu must be held.
func (s *Source) updateSubscriptionList(flags Flags) {
	if s.state == StateNone {
		s.login(flags)
		return
	}
	if s.state != StateActive {
		return
	}

	req := &update.Request{
		Source:    s.api.SubscriptionListURL,
		AuthValue: s.authHeaderValue,
	}
	s.exec.Execute(s.owner(), req, func(res *update.Result) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listComplete(res, flags)
	})
}

func (s *Source) listComplete(res *update.Result, flags Flags) {
	if res.HTTPStatus != 200 || len(res.Data) == 0 {
		s.tree.Root.Available = false
		s.tree.Root.UpdateError = StatusError(res.HTTPStatus)
		log.Printf("[list] %s: failed to get subscription list (status %d)", s.api.Name, res.HTTPStatus)
		return
	}

	var listing subscriptionListing
	if err := json.Unmarshal(res.Data, &listing); err != nil {
		s.tree.Root.Available = false
		s.tree.Root.UpdateError = "invalid JSON in subscription list response"
		log.Printf("[list] %s: invalid subscription list JSON: %v", s.api.Name, err)
		return
	}

	s.mergeListing(listing)
	s.tree.Root.Available = true
	s.tree.Root.UpdateError = ""

	if flags&FlagListOnly == 0 {
		for _, node := range s.tree.Feeds() {
			s.updateItems(node)
		}
	}
}

// mergeListing applies a remote listing to the local tree: missing feeds
// are created, departed feeds removed, and stale folder placements fixed.
// Merging the same listing twice is a no-op the second time.
func (s *Source) mergeListing(listing subscriptionListing) {
	remote := make(map[string]bool, len(listing.Subscriptions))

	for _, record := range listing.Subscriptions {
		if record.ID == "" {
			log.Printf("[list] %s: ignoring subscription without id (%q)", s.api.Name, record.Title)
			continue
		}
		source := sourceFromStreamID(record.ID)
		remote[source] = true
		s.mergeFeed(source, record)
	}

	// drop local feeds the remote listing no longer carries
	for _, node := range s.tree.Feeds() {
		if node.Subscription.Source == s.api.BroadcastFriendsStream {
			continue
		}
		if !remote[node.Subscription.Source] {
			log.Printf("[list] %s: removing %s", s.api.Name, node.Title)
			s.tree.Remove(node)
		}
	}
	for _, folder := range s.tree.Folders() {
		if len(folder.Children) == 0 {
			s.tree.Remove(folder)
		}
	}
}

func (s *Source) mergeFeed(source string, record subscriptionRecord) {
	label := ""
	if len(record.Categories) > 0 {
		label = record.Categories[0].Label
	}

	node := s.tree.FindBySource(source)
	if node != nil {
		s.updatePlacement(node, label)
		return
	}

	log.Printf("[list] %s: adding %s (%s)", s.api.Name, record.Title, source)
	parent := s.tree.Root
	if label != "" {
		parent = s.tree.FindOrCreateFolder(label)
	}
	node = s.tree.NewFeed(parent, record.Title, source)
	node.Subscription.Metadata[s.api.FeedIDKey] = record.ID
	s.tree.Touch(node)

	s.updateItems(node)
	if s.opts.OnFavicon != nil {
		s.opts.OnFavicon(node)
	}
}

// updatePlacement reparents a feed whose remote category label no longer
// matches its local parent folder. A feed without a label lives directly
// under the account root.
func (s *Source) updatePlacement(node *feedlist.Node, label string) {
	parent := node.Parent
	if label == "" {
		if parent != s.tree.Root {
			s.tree.Reparent(node, s.tree.Root)
		}
		return
	}
	if parent == s.tree.Root || parent.Title != label {
		log.Printf("[list] %s: label of %s changed to %q", s.api.Name, node.Title, label)
		s.tree.Reparent(node, s.tree.FindOrCreateFolder(label))
	}
}

// sourceFromStreamID recovers the subscription source from a stream id.
// Feed streams carry a "feed/" prefix ahead of the URL; anything else is
// an opaque user-stream id used verbatim.
func sourceFromStreamID(id string) string {
	return strings.TrimPrefix(id, "feed/")
}

// quickUpdate fetches the compact unread-count listing and triggers a
// content update only for feeds whose newest-item timestamp moved since
// the last pass. mu must be held.
func (s *Source) quickUpdate() {
	if s.state != StateActive {
		return
	}
	req := &update.Request{
		Source:    s.api.UnreadCountsURL,
		AuthValue: s.authHeaderValue,
	}
	s.exec.Execute(s.owner(), req, func(res *update.Result) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.quickUpdateComplete(res)
	})
}

// QuickUpdate runs one incremental update pass.
func (s *Source) QuickUpdate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quickUpdate()
}

func (s *Source) quickUpdateComplete(res *update.Result) {
	if res.HTTPStatus != 200 || len(res.Data) == 0 {
		log.Printf("[quick] %s: unable to get unread counts, update aborted", s.api.Name)
		return
	}
	var listing unreadCountListing
	if err := json.Unmarshal(res.Data, &listing); err != nil {
		log.Printf("[quick] %s: invalid unread counts JSON, maybe the session expired: %v", s.api.Name, err)
		return
	}

	for _, record := range listing.UnreadCounts {
		var node *feedlist.Node
		switch {
		case strings.HasPrefix(record.ID, "feed/"):
			node = s.tree.FindBySource(record.ID[len("feed/"):])
		case strings.HasSuffix(record.ID, "broadcast-friends"):
			node = s.tree.FindBySource(record.ID)
		default:
			continue
		}
		if node == nil {
			continue
		}

		source := node.Subscription.Source
		last, ok := s.lastTimestamps[source]
		if ok && (record.NewestItemTimestampUsec == "" || record.NewestItemTimestampUsec == last) {
			continue
		}
		log.Printf("[quick] %s: updating %s [timestamp %s -> %s]", s.api.Name, node.Title, last, record.NewestItemTimestampUsec)
		s.lastTimestamps[source] = record.NewestItemTimestampUsec
		s.updateItems(node)
	}
}
