// Package apitest provides an in-memory NotificationAPI for tests.
package apitest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/nhle/evaldash/internal/api"
)

// Call records one invocation against a Fake.
type Call struct {
	Method string
	IDs    []string
}

// Fake is an in-memory NotificationAPI. Its zero value is not usable; call
// NewFake.
type Fake struct {
	mu      sync.Mutex
	records map[string]api.RawNotification
	order   []string
	calls   []Call

	// fail maps a method name to the error it returns next.
	fail map[string]error

	// gate, when set for a method, blocks that method until the channel
	// is closed or receives a value.
	gate map[string]chan struct{}
}

// NewFake returns a Fake seeded with records, in order.
func NewFake(records ...api.RawNotification) *Fake {
	f := &Fake{
		records: make(map[string]api.RawNotification),
		fail:    make(map[string]error),
		gate:    make(map[string]chan struct{}),
	}
	for _, r := range records {
		f.Put(r)
	}
	return f
}

// Put inserts or replaces a record.
func (f *Fake) Put(r api.RawNotification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[r.ID]; !ok {
		f.order = append(f.order, r.ID)
	}
	f.records[r.ID] = r
}

// Record returns the server-side copy of id.
func (f *Fake) Record(id string) (api.RawNotification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	return r, ok
}

// FailNext makes every later call to method return err until cleared with
// a nil err.
func (f *Fake) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, method)
		return
	}
	f.fail[method] = err
}

// Gate makes method block until the returned func is called.
func (f *Fake) Gate(method string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gate[method] = ch
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gate[method] == ch {
				delete(f.gate, method)
			}
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns every recorded call in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallCount returns how many times method was called.
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// enter records the call, waits on any gate, and returns the injected error.
func (f *Fake) enter(ctx context.Context, method string, ids ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, IDs: slices.Clone(ids)})
	gate := f.gate[method]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[method]
}

func (f *Fake) FetchNotifications(ctx context.Context, _ api.UserScope) ([]api.RawNotification, error) {
	if err := f.enter(ctx, "FetchNotifications"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]api.RawNotification, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.records[id])
	}
	return out, nil
}

func (f *Fake) MarkRead(ctx context.Context, id string) error {
	return f.set(ctx, "MarkRead", id, func(r *api.RawNotification) { r.Read = true })
}

func (f *Fake) MarkUnread(ctx context.Context, id string) error {
	return f.set(ctx, "MarkUnread", id, func(r *api.RawNotification) { r.Read = false })
}

func (f *Fake) Archive(ctx context.Context, id string) error {
	return f.set(ctx, "Archive", id, func(r *api.RawNotification) { r.Archived = true })
}

func (f *Fake) MarkAllRead(ctx context.Context, ids []string) error {
	if err := f.enter(ctx, "MarkAllRead", ids...); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if r, ok := f.records[id]; ok {
			r.Read = true
			f.records[id] = r
		}
	}
	return nil
}

func (f *Fake) set(ctx context.Context, method, id string, fn func(*api.RawNotification)) error {
	if err := f.enter(ctx, method, id); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return fmt.Errorf("%s %s: %w", method, id, api.ErrNotFound)
	}
	fn(&r)
	f.records[id] = r
	return nil
}

var _ api.NotificationAPI = (*Fake)(nil)
