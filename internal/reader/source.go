package reader

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/feedtools/readersync/internal/feedlist"
	"github.com/feedtools/readersync/internal/update"
)

// LoginState is the session state of one account.
type LoginState int

const (
	// StateNone means not logged in; a login may be started.
	StateNone LoginState = iota
	// StateInProgress means a login request is in flight.
	StateInProgress
	// StateActive means a session token is held and edits may proceed.
	StateActive
	// StateNoAuth means logins failed beyond the threshold; the account
	// stays suspended until credentials are supplied again.
	StateNoAuth
	// StateMigrating means the account is being converted to plain local
	// feeds and no longer syncs.
	StateMigrating
)

func (s LoginState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateInProgress:
		return "in-progress"
	case StateActive:
		return "active"
	case StateNoAuth:
		return "no-auth"
	case StateMigrating:
		return "migrating"
	}
	return "unknown"
}

// Flags modify how far an update cycle goes.
type Flags uint32

const (
	// FlagLoginOnly performs only the login, without the follow-up
	// subscription list update.
	FlagLoginOnly Flags = 1 << iota
	// FlagListOnly refreshes the subscription list without updating the
	// items of every feed.
	FlagListOnly
)

// Credentials are the long-lived account credentials used for login.
type Credentials struct {
	Username string
	Password string
}

// Item is the locally stored representation of one remote item.
type Item struct {
	SourceID string
	NodeID   string
	Title    string
	Link     string
	Summary  string
	Author   string
	Updated  time.Time
	Read     bool
	Starred  bool
}

// ItemStore is the local item database the syncer merges into.
type ItemStore interface {
	Lookup(nodeID, sourceID string) (*Item, error)
	Upsert(nodeID string, items []*Item) error
	SetRead(nodeID, sourceID string, read bool) error
	SetStarred(nodeID, sourceID string, starred bool) error
	Remove(nodeID, sourceID string) error
	List(nodeID string) ([]*Item, error)
}

// Options tune a Source beyond the backend defaults.
type Options struct {
	MaxAuthFailures int
	PageSize        int
	ListInterval    time.Duration
	QuickInterval   time.Duration

	// OnCredentialsNeeded fires when logins failed beyond the threshold
	// and the user must re-supply credentials.
	OnCredentialsNeeded func()
	// OnFavicon fires for every newly merged feed node.
	OnFavicon func(n *feedlist.Node)
}

const (
	defaultMaxAuthFailures = 3
	defaultPageSize        = 30
	defaultListInterval    = 24 * time.Hour
	defaultQuickInterval   = 10 * time.Minute

	retryBase       = 30 * time.Second
	retryCap        = 10 * time.Minute
	maxEditFailures = 5
)

// Source is the sync context of one remote account: session state machine,
// action queue, timestamp cache and the feed tree it reconciles.
type Source struct {
	api   Backend
	exec  update.Executor
	tree  *feedlist.Tree
	items ItemStore
	creds Credentials
	opts  Options

	// engine state; mutated only while holding mu
	state           LoginState
	authHeaderValue string
	authFailures    int

	queue        []*Action
	editInFlight bool
	editFailures int
	retryTimer   *time.Timer

	lastTimestamps  map[string]string
	lastListUpdate  time.Time
	lastQuickUpdate time.Time

	mu sync.Mutex

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// NewSource creates the sync context for one account over the given feed
// tree and item store. Close must be called before the account is dropped.
func NewSource(api Backend, creds Credentials, tree *feedlist.Tree, items ItemStore, exec update.Executor, opts Options) *Source {
	if opts.MaxAuthFailures <= 0 {
		opts.MaxAuthFailures = defaultMaxAuthFailures
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.ListInterval <= 0 {
		opts.ListInterval = defaultListInterval
	}
	if opts.QuickInterval <= 0 {
		opts.QuickInterval = defaultQuickInterval
	}
	return &Source{
		api:            api,
		exec:           exec,
		tree:           tree,
		items:          items,
		creds:          creds,
		opts:           opts,
		state:          StateNone,
		lastTimestamps: make(map[string]string),
		now:            time.Now,
		afterFunc:      time.AfterFunc,
	}
}

// owner tags every request issued for this account so Close can cancel
// them together.
func (s *Source) owner() string {
	return s.tree.Root.ID
}

// Tree returns the account's feed tree.
func (s *Source) Tree() *feedlist.Tree {
	return s.tree
}

// State returns the current login state.
func (s *Source) State() LoginState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close cancels all in-flight requests attributed to this account and
// releases the session. No callback fires into the source afterwards.
func (s *Source) Close() {
	s.exec.CancelAll(s.owner())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.authHeaderValue = ""
	s.state = StateNone
}

// Login starts the session login. Logging in while a session is already
// active is a logic error which is logged but otherwise harmless.
func (s *Source) Login(flags Flags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.login(flags)
}

func (s *Source) login(flags Flags) {
	if s.state != StateNone {
		// should not happen; sessions are assumed not to expire
		log.Printf("[session] %s: login requested while state is %s", s.api.Name, s.state)
	}

	req := &update.Request{
		Source: s.api.LoginURL,
		PostData: fmt.Sprintf("service=reader&Email=%s&Passwd=%s&source=readersync",
			url.QueryEscape(s.creds.Username), url.QueryEscape(s.creds.Password)),
	}
	s.state = StateInProgress

	s.exec.Execute(s.owner(), req, func(res *update.Result) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.loginComplete(res, flags)
	})
}

func (s *Source) loginComplete(res *update.Result, flags Flags) {
	var token string
	if res.HTTPStatus == 200 && len(res.Data) > 0 {
		token = parseAuthToken(string(res.Data), s.api.AuthTokenMarker)
	}

	if token != "" {
		s.authHeaderValue = s.api.AuthScheme + token
		s.state = StateActive
		s.authFailures = 0
		log.Printf("[session] %s: login succeeded", s.api.Name)

		if flags&FlagLoginOnly == 0 {
			s.updateSubscriptionList(flags)
		}
		s.process()
		return
	}

	log.Printf("[session] %s: login failed, no auth token in response", s.api.Name)
	s.tree.Root.Available = false
	s.tree.Root.UpdateError = fmt.Sprintf("%s login failed", s.api.Name)
	s.authFailures++

	if s.authFailures < s.opts.MaxAuthFailures {
		s.state = StateNone
	} else {
		s.state = StateNoAuth
	}
	if s.opts.OnCredentialsNeeded != nil {
		s.opts.OnCredentialsNeeded()
	}
}

// parseAuthToken extracts the token line starting with marker from a login
// response body.
func parseAuthToken(body, marker string) string {
	idx := strings.Index(body, marker)
	if idx < 0 {
		return ""
	}
	token := body[idx+len(marker):]
	if nl := strings.IndexByte(token, '\n'); nl >= 0 {
		token = token[:nl]
	}
	return strings.TrimSpace(token)
}

// Update is the manual refresh entry point. A manual refresh is a user
// interaction, so a NoAuth suspension is reset and credentials are asked
// for again.
func (s *Source) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateNoAuth {
		s.state = StateNone
	}
	s.updateSubscriptionList(0)
}

// AutoUpdate runs the interval logic: the full list merge on the long
// interval, the timestamp-based quick update on the short one. Safe to
// call as often as the caller polls.
func (s *Source) AutoUpdate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateMigrating, StateNoAuth:
		return
	case StateInProgress:
		// the pending login triggers its own follow-up update
		return
	case StateNone:
		s.updateSubscriptionList(0)
		return
	}

	now := s.now()
	if s.lastListUpdate.Add(s.opts.ListInterval).Before(now) {
		s.updateSubscriptionList(0)
		s.lastListUpdate = now
		return
	}
	if s.lastQuickUpdate.Add(s.opts.QuickInterval).Before(now) {
		s.quickUpdate()
		s.process()
		s.lastQuickUpdate = now
	}
}

// ConvertToLocal stops syncing the account for good; the feed nodes stay
// behind as plain local feeds.
func (s *Source) ConvertToLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateMigrating
}

// MarkItemRead queues the remote read-state edit for one item and applies
// the local change optimistically. Marking unread additionally queues the
// tracking-kept-unread follow-up the API requires.
func (s *Source) MarkItemRead(guid, feedURL string, read bool) {
	kind := ActionMarkRead
	if !read {
		kind = ActionMarkUnread
	}
	s.mu.Lock()
	s.push(&Action{
		Kind:    kind,
		GUID:    guid,
		FeedURL: feedURL,
		OnComplete: func(src *Source, a *Action, success bool) {
			src.applyReadState(a, read, success)
		},
	}, false)
	if !read {
		s.push(&Action{
			Kind:    ActionTrackingMarkUnread,
			GUID:    guid,
			FeedURL: feedURL,
		}, false)
	}
	s.mu.Unlock()
}

// MarkItemStarred queues the remote starred-state edit for one item.
func (s *Source) MarkItemStarred(guid, feedURL string, starred bool) {
	kind := ActionMarkStarred
	if !starred {
		kind = ActionMarkUnstarred
	}
	s.mu.Lock()
	s.push(&Action{
		Kind:    kind,
		GUID:    guid,
		FeedURL: feedURL,
		OnComplete: func(src *Source, a *Action, success bool) {
			src.applyStarredState(a, starred, success)
		},
	}, false)
	s.mu.Unlock()
}

func (s *Source) applyReadState(a *Action, read, success bool) {
	if !success {
		log.Printf("[edit] %s: failed to change read state of %s", s.api.Name, a.GUID)
		return
	}
	if node := s.nodeForFeedURL(a.FeedURL); node != nil {
		if err := s.items.SetRead(node.ID, a.GUID, read); err != nil {
			log.Printf("[edit] %s: local read state update: %v", s.api.Name, err)
		}
	}
}

func (s *Source) applyStarredState(a *Action, starred, success bool) {
	if !success {
		log.Printf("[edit] %s: failed to change starred state of %s", s.api.Name, a.GUID)
		return
	}
	if node := s.nodeForFeedURL(a.FeedURL); node != nil {
		if err := s.items.SetStarred(node.ID, a.GUID, starred); err != nil {
			log.Printf("[edit] %s: local starred state update: %v", s.api.Name, err)
		}
	}
}

func (s *Source) nodeForFeedURL(feedURL string) *feedlist.Node {
	return s.tree.FindBySource(feedURL)
}

// AddSubscription creates a placeholder node for the new feed and queues
// the remote addition ahead of pending item edits.
func (s *Source) AddSubscription(feedURL string) *feedlist.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.tree.NewFeed(s.tree.Root, "New Subscription", feedURL)
	s.push(&Action{
		Kind:    ActionAddSubscription,
		FeedURL: feedURL,
		OnComplete: func(src *Source, a *Action, success bool) {
			src.subscriptionAdded(a, success)
		},
	}, true)
	return node
}

// subscriptionAdded re-fetches the list after a confirmed addition. The
// server may have normalized the URL we sent, so the placeholder's source
// is blanked; the follow-up list merge creates the definitive node and
// sweeps the placeholder away.
func (s *Source) subscriptionAdded(a *Action, success bool) {
	if !success {
		log.Printf("[edit] %s: failed to add subscription %s", s.api.Name, a.FeedURL)
		return
	}
	for _, node := range s.tree.Feeds() {
		if node.Subscription.Source == a.FeedURL {
			node.Subscription.Source = ""
			s.tree.Touch(node)
		}
	}
	s.updateSubscriptionList(FlagListOnly)
}

// RemoveNode removes a feed node locally and propagates the unsubscribe
// once no other node shares the source.
func (s *Source) RemoveNode(node *feedlist.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node == s.tree.Root {
		return
	}
	source := ""
	if node.Subscription != nil {
		source = node.Subscription.Source
	}
	s.tree.Remove(node)

	if source == "" || s.tree.FindBySource(source) != nil {
		return
	}
	s.push(&Action{
		Kind:    ActionRemoveSubscription,
		FeedURL: source,
		OnComplete: func(src *Source, a *Action, success bool) {
			src.subscriptionRemoved(a, success)
		},
	}, true)
}

// subscriptionRemoved drops a node that reappeared from an update racing
// the confirmed removal.
func (s *Source) subscriptionRemoved(a *Action, success bool) {
	if !success {
		log.Printf("[edit] %s: failed to remove subscription %s", s.api.Name, a.FeedURL)
		return
	}
	if node := s.tree.FindBySource(a.FeedURL); node != nil {
		s.tree.Remove(node)
	}
}

// MigrateNode deletes stored items whose source id does not carry the
// backend item-id prefix. Run once when adopting a feed list written by a
// different backend.
func (s *Source) MigrateNode(node *feedlist.Node) error {
	items, err := s.items.List(node.ID)
	if err != nil {
		return fmt.Errorf("list items of %s: %w", node.Title, err)
	}
	for _, item := range items {
		if item.SourceID == "" || strings.HasPrefix(item.SourceID, s.api.ItemIDPrefix) {
			continue
		}
		log.Printf("[migrate] deleting item with foreign source id %s", item.SourceID)
		if err := s.items.Remove(node.ID, item.SourceID); err != nil {
			return fmt.Errorf("remove item %s: %w", item.SourceID, err)
		}
	}
	return nil
}

// Timestamps returns a copy of the per-feed newest-item timestamp cache
// for persistence between runs.
func (s *Source) Timestamps() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.lastTimestamps))
	for source, newest := range s.lastTimestamps {
		out[source] = newest
	}
	return out
}

// RestoreTimestamps seeds the timestamp cache, typically from storage at
// startup.
func (s *Source) RestoreTimestamps(timestamps map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for source, newest := range timestamps {
		s.lastTimestamps[source] = newest
	}
}

// Idle reports whether no request round trip is pending: nothing queued,
// no edit in flight and no login in progress.
func (s *Source) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0 && !s.editInFlight && s.state != StateInProgress
}

// WaitIdle polls until Idle or the timeout elapses. Intended for one-shot
// CLI use, not for the engine itself.
func (s *Source) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.Idle() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return s.Idle()
}
