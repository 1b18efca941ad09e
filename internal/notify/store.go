// Package notify holds a session's notification set in memory and keeps it
// consistent with the remote system of record.
//
// One Store is created per signed-in session and shared by reference with
// every view that renders notifications. Views read copies of the current
// state, apply a Query locally, and change records only through the Store's
// mutation methods. Mutations are applied optimistically and rolled back if
// the backend rejects them.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/evaldash/internal/api"
	"github.com/nhle/evaldash/internal/model"
)

// defaultTimeout bounds a single remote call.
const defaultTimeout = 30 * time.Second

// Status is the fetch state of a Store.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Snapshot is a point-in-time copy of the store. Callers own it.
type Snapshot struct {
	// Items holds every loaded record, archived ones included.
	Items map[string]model.Notification

	Status Status

	// LastError is set only while Status is StatusError.
	LastError error

	// Rejected counts records the last successful load refused.
	Rejected int

	LoadedAt time.Time

	// Version increases on every observable change.
	Version uint64
}

// Option configures a Store.
type Option func(*Store)

// WithScope restricts every view and mutation to records admitted by scope.
func WithScope(scope Scope) Option {
	return func(s *Store) { s.scope = scope }
}

// WithUserScope sets the identity passed to FetchNotifications.
func WithUserScope(user api.UserScope) Option {
	return func(s *Store) { s.user = user }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimeout bounds each remote call.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// field names the mutable flag a patch touches.
type field int

const (
	fieldRead field = iota
	fieldArchived
)

// patch is a single optimistic flag change.
type patch struct {
	field field
	value bool
}

func (p patch) satisfiedBy(n model.Notification) bool {
	if p.field == fieldRead {
		return n.Read == p.value
	}
	return n.Archived == p.value
}

func (p patch) apply(n *model.Notification) {
	if p.field == fieldRead {
		n.Read = p.value
		return
	}
	n.Archived = p.value
}

func (p patch) inverse() patch {
	return patch{field: p.field, value: !p.value}
}

// Store is the single in-memory source of truth for a session's
// notifications. It is safe for concurrent use.
type Store struct {
	api     api.NotificationAPI
	scope   Scope
	user    api.UserScope
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	loads singleflight.Group
	locks *keyLock

	mu       sync.RWMutex
	items    map[string]model.Notification
	status   Status
	lastErr  error
	rejected int
	loadedAt time.Time
	version  uint64
	closed   bool

	// pending holds optimistic changes whose remote call has not settled.
	// They are re-applied on top of a fetched set so a refresh racing a
	// mutation does not flip the record back and forth.
	pending map[string]patch

	// fetching is set while a fetch is outstanding. Patches confirmed by
	// the backend in that window are collected in settled: the fetched set
	// may predate them.
	fetching bool
	settled  map[string][]patch

	subs    map[int]chan struct{}
	nextSub int
}

// New creates a Store backed by backend. Nothing is fetched until Load.
func New(backend api.NotificationAPI, opts ...Option) *Store {
	s := &Store{
		api:     backend,
		logger:  zap.NewNop(),
		timeout: defaultTimeout,
		now:     time.Now,
		locks:   newKeyLock(),
		items:   make(map[string]model.Notification),
		status:  StatusIdle,
		pending: make(map[string]patch),
		subs:    make(map[int]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches the full notification set and replaces the local copy.
// Concurrent calls share one in-flight request. On failure the previous
// records are kept and a *FetchError is returned.
func (s *Store) Load(ctx context.Context) error {
	ch := s.loads.DoChan("load", func() (interface{}, error) {
		// The fetch outlives any single caller: sharers must not be
		// failed because the first caller went away.
		return nil, s.fetch(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh is an explicit reload. It behaves exactly like Load.
func (s *Store) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

func (s *Store) fetch(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.status = StatusLoading
	s.lastErr = nil
	s.fetching = true
	s.settled = make(map[string][]patch)
	s.version++
	s.mu.Unlock()
	s.notify()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raws, err := s.api.FetchNotifications(ctx, s.user)
	if err != nil {
		ferr := &FetchError{Err: err}
		s.mu.Lock()
		s.status = StatusError
		s.lastErr = ferr
		s.fetching = false
		s.settled = nil
		s.version++
		kept := len(s.items)
		s.mu.Unlock()
		s.notify()

		s.logger.Warn("notification fetch failed, keeping cached records",
			zap.Int("cached", kept),
			zap.Error(err))
		return ferr
	}

	items, rejected := s.admit(raws)

	s.mu.Lock()
	for id, ps := range s.settled {
		if n, ok := items[id]; ok {
			for _, p := range ps {
				p.apply(&n)
			}
			items[id] = n
		}
	}
	for id, p := range s.pending {
		if n, ok := items[id]; ok {
			p.apply(&n)
			items[id] = n
		}
	}
	s.fetching = false
	s.settled = nil
	s.items = items
	s.status = StatusReady
	s.lastErr = nil
	s.rejected = rejected
	s.loadedAt = s.now()
	s.version++
	s.mu.Unlock()
	s.notify()

	s.logger.Debug("notifications loaded",
		zap.Int("count", len(items)),
		zap.Int("rejected", rejected))
	return nil
}

// admit converts fetched records, refusing unknown types and duplicate ids.
func (s *Store) admit(raws []api.RawNotification) (map[string]model.Notification, int) {
	items := make(map[string]model.Notification, len(raws))
	rejected := 0

	for _, r := range raws {
		if r.ID == "" {
			rejected++
			s.logger.Warn("rejecting notification without id", zap.String("title", r.Title))
			continue
		}
		if _, dup := items[r.ID]; dup {
			rejected++
			s.logger.Warn("rejecting duplicate notification id", zap.String("id", r.ID))
			continue
		}
		t, err := model.ParseType(r.Type)
		if err != nil {
			rejected++
			s.logger.Warn("rejecting notification with unknown type",
				zap.String("id", r.ID),
				zap.String("type", r.Type))
			continue
		}
		items[r.ID] = model.Notification{
			ID:          r.ID,
			Type:        t,
			SchoolID:    r.SchoolID,
			SchoolName:  r.SchoolName,
			StudentName: r.StudentName,
			Title:       r.Title,
			Description: r.Description,
			Icon:        r.Icon,
			Timestamp:   r.Timestamp,
			Read:        r.Read,
			Archived:    r.Archived,
		}
	}

	return items, rejected
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make(map[string]model.Notification, len(s.items))
	for id, n := range s.items {
		items[id] = n
	}

	return Snapshot{
		Items:     items,
		Status:    s.status,
		LastError: s.lastErr,
		Rejected:  s.rejected,
		LoadedAt:  s.loadedAt,
		Version:   s.version,
	}
}

// Status returns the current fetch state and, in StatusError, its cause.
func (s *Store) Status() (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.lastErr
}

// Get returns a record by id, archived or not.
func (s *Store) Get(id string) (model.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.items[id]
	return n, ok
}

// ScopedRecords returns every non-archived record in scope, newest first
// with ties broken by ascending id.
func (s *Store) ScopedRecords() []model.Notification {
	s.mu.RLock()
	out := make([]model.Notification, 0, len(s.items))
	for _, n := range s.items {
		if n.Archived || !s.scope.admits(n) {
			continue
		}
		out = append(out, n)
	}
	s.mu.RUnlock()

	sortRecords(out)
	return out
}

// TypeCounts counts the scoped records per type. It is always derived from
// ScopedRecords so it cannot drift from what the views show.
func (s *Store) TypeCounts() Counts {
	return CountByType(s.ScopedRecords())
}

// UnreadCount returns the number of scoped, non-archived unread records.
func (s *Store) UnreadCount() int {
	unread := 0
	for _, n := range s.ScopedRecords() {
		if !n.Read {
			unread++
		}
	}
	return unread
}

// MarkAsRead flags id as read. Marking an already read record succeeds
// without contacting the backend.
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	return s.mutate(ctx, OpMarkRead, id, patch{field: fieldRead, value: true}, s.api.MarkRead)
}

// MarkAsUnread clears the read flag of id.
func (s *Store) MarkAsUnread(ctx context.Context, id string) error {
	return s.mutate(ctx, OpMarkUnread, id, patch{field: fieldRead, value: false}, s.api.MarkUnread)
}

// ArchiveNotification hides id from every view. The record stays in Items.
func (s *Store) ArchiveNotification(ctx context.Context, id string) error {
	return s.mutate(ctx, OpArchive, id, patch{field: fieldArchived, value: true}, s.api.Archive)
}

// mutate applies p to id locally, runs remote, and rolls back on failure.
// Calls for the same id run one at a time.
func (s *Store) mutate(
	ctx context.Context,
	op Op,
	id string,
	p patch,
	remote func(context.Context, string) error,
) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	n, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}
	if !s.scope.admits(n) {
		s.mu.Unlock()
		s.logger.Error("mutation outside session scope",
			zap.String("op", string(op)),
			zap.String("id", id))
		return &ScopeViolationError{ID: id}
	}
	if p.satisfiedBy(n) {
		s.mu.Unlock()
		return nil
	}
	p.apply(&n)
	s.items[id] = n
	s.pending[id] = p
	s.version++
	s.mu.Unlock()
	s.notify()

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	err := remote(rctx, id)
	cancel()

	s.settle([]string{id}, p, err)
	if err != nil {
		s.logger.Warn("notification mutation rejected, rolled back",
			zap.String("op", string(op)),
			zap.String("id", id),
			zap.Error(err))
		return &MutationError{Op: op, IDs: []string{id}, Err: err}
	}
	return nil
}

// MarkAllAsRead flags every scoped, non-archived, unread record as read
// with a single bulk call and returns how many records it changed. On
// failure exactly those records are reverted.
func (s *Store) MarkAllAsRead(ctx context.Context) (int, error) {
	var candidates []string
	for _, n := range s.ScopedRecords() {
		if !n.Read {
			candidates = append(candidates, n.ID)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	unlock := s.locks.LockAll(candidates)
	defer unlock()

	p := patch{field: fieldRead, value: true}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	changed := make([]string, 0, len(candidates))
	for _, id := range candidates {
		// Re-check under the id lock: another mutation may have settled
		// while we were waiting.
		n, ok := s.items[id]
		if !ok || n.Archived || n.Read || !s.scope.admits(n) {
			continue
		}
		p.apply(&n)
		s.items[id] = n
		s.pending[id] = p
		changed = append(changed, id)
	}
	if len(changed) > 0 {
		s.version++
	}
	s.mu.Unlock()

	if len(changed) == 0 {
		return 0, nil
	}
	s.notify()

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.api.MarkAllRead(rctx, changed)
	cancel()

	s.settle(changed, p, err)
	if err != nil {
		s.logger.Warn("bulk mark-read rejected, rolled back",
			zap.Int("count", len(changed)),
			zap.Error(err))
		return 0, &MutationError{Op: OpMarkAllRead, IDs: changed, Err: err}
	}
	return len(changed), nil
}

// settle clears the pending entries for ids and, if err is non-nil, reverts
// p on every record that still carries the value p set. A confirmed patch
// is kept for the outstanding fetch, if any.
func (s *Store) settle(ids []string, p patch, err error) {
	s.mu.Lock()
	for _, id := range ids {
		delete(s.pending, id)
		if err == nil {
			if s.fetching {
				s.settled[id] = append(s.settled[id], p)
			}
			continue
		}
		if cur, ok := s.items[id]; ok && p.satisfiedBy(cur) {
			p.inverse().apply(&cur)
			s.items[id] = cur
		}
	}
	if err != nil {
		s.version++
	}
	s.mu.Unlock()

	if err != nil {
		s.notify()
	}
}

// Subscribe returns a channel that receives a value whenever the store
// changes, and a func that cancels the subscription. Notifications are
// coalesced: a slow reader sees one pending signal, then reads Snapshot.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{}, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close ends the session: subscribers are released and later calls fail
// with ErrClosed. Records already loaded stay readable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
