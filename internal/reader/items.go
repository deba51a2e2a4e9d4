package reader

// Per-feed item synchronization: fetching the remote stream contents of
// one feed and reconciling item state against the local store without
// clobbering edits still waiting in the action queue.

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/feedtools/readersync/internal/feedlist"
	"github.com/feedtools/readersync/internal/render"
	"github.com/feedtools/readersync/internal/update"
)

type canonicalLink struct {
	Href string `json:"href"`
}

type itemSummary struct {
	Content string `json:"content"`
}

type itemRecord struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Author     string          `json:"author"`
	Published  int64           `json:"published"`
	Updated    int64           `json:"updated"`
	Categories []string        `json:"categories"`
	Canonical  []canonicalLink `json:"canonical"`
	Summary    itemSummary     `json:"summary"`
}

type itemListing struct {
	Items []itemRecord `json:"items"`
}

// updateItems fetches the item listing of one feed node. Needs an active
// session and the stored remote feed id. mu must be held.
func (s *Source) updateItems(node *feedlist.Node) {
	if s.state != StateActive {
		return
	}
	feedID := node.Subscription.Metadata[s.api.FeedIDKey]
	if feedID == "" {
		log.Printf("[items] %s: skipping feed %q (%s) without id", s.api.Name, node.Title, node.Subscription.Source)
		return
	}

	req := &update.Request{
		Source:    fmt.Sprintf(s.api.StreamContentsURL, url.QueryEscape(feedID), s.opts.PageSize),
		AuthValue: s.authHeaderValue,
	}
	s.exec.Execute(s.owner(), req, func(res *update.Result) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.itemsComplete(node, res)
	})
}

// UpdateFeed triggers a content update for one feed node.
func (s *Source) UpdateFeed(node *feedlist.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateItems(node)
}

func (s *Source) itemsComplete(node *feedlist.Node, res *update.Result) {
	if res.HTTPStatus != 200 || len(res.Data) == 0 {
		node.Available = false
		node.UpdateError = StatusError(res.HTTPStatus)
		return
	}

	var listing itemListing
	if err := json.Unmarshal(res.Data, &listing); err != nil {
		node.Available = false
		node.UpdateError = fmt.Sprintf("could not parse JSON returned by the %s API", s.api.Name)
		log.Printf("[items] %s: %s: %v", s.api.Name, node.UpdateError, err)
		return
	}

	mapped := s.mapItems(node, listing.Items)
	if err := s.mergeItems(node, mapped); err != nil {
		node.Available = false
		node.UpdateError = err.Error()
		return
	}

	node.Available = true
	node.UpdateError = ""
}

// mapItems converts the remote records into local items. Records without a
// canonical link are skipped; read and starred state come from the
// well-known state categories.
func (s *Source) mapItems(node *feedlist.Node, records []itemRecord) []*Item {
	items := make([]*Item, 0, len(records))
	for _, record := range records {
		link := ""
		for _, c := range record.Canonical {
			if c.Href != "" {
				link = c.Href
				break
			}
		}
		if link == "" {
			continue
		}

		read := false
		starred := false
		for _, category := range record.Categories {
			if strings.Contains(category, s.api.ReadStateCategory) {
				read = true
			}
			if strings.Contains(category, s.api.StarredStateCategory) {
				starred = true
			}
		}

		items = append(items, &Item{
			SourceID: record.ID,
			NodeID:   node.ID,
			Title:    record.Title,
			Link:     link,
			Summary:  render.SummaryText(record.Summary.Content),
			Author:   record.Author,
			Updated:  time.Unix(record.Updated, 0).UTC(),
			Read:     read,
			Starred:  starred,
		})
	}
	return items
}

// mergeItems upserts the batch and then reconciles read/starred state of
// items that already existed. State is only applied when the item has no
// pending queued edit and the stored source id round-trips exactly, so a
// slightly stale server snapshot cannot revert a just-issued local edit.
func (s *Source) mergeItems(node *feedlist.Node, items []*Item) error {
	existing := make(map[string]*Item, len(items))
	for _, item := range items {
		prior, err := s.items.Lookup(node.ID, item.SourceID)
		if err != nil {
			return fmt.Errorf("lookup item %s: %w", item.SourceID, err)
		}
		if prior != nil {
			existing[item.SourceID] = prior
		}
	}

	if err := s.items.Upsert(node.ID, items); err != nil {
		return fmt.Errorf("merge items of %s: %w", node.Title, err)
	}

	for _, item := range items {
		prior, ok := existing[item.SourceID]
		if !ok {
			continue
		}
		if prior.SourceID != item.SourceID || s.isInQueue(item.SourceID) {
			continue
		}
		if prior.Read != item.Read {
			if err := s.items.SetRead(node.ID, item.SourceID, item.Read); err != nil {
				return fmt.Errorf("set read state of %s: %w", item.SourceID, err)
			}
		}
		if prior.Starred != item.Starred {
			if err := s.items.SetStarred(node.ID, item.SourceID, item.Starred); err != nil {
				return fmt.Errorf("set starred state of %s: %w", item.SourceID, err)
			}
		}
	}
	return nil
}
