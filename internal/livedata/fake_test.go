package livedata

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"nexonsite/pkg/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeChannel is one subscription opened on fakeSubscriber. Pushing on a
// closed channel simulates a notification racing with teardown.
type fakeChannel struct {
	path    string
	onDoc   func(domain.DocumentSnapshot)
	onQuery func(domain.QuerySnapshot)
	onError func(error)
	closed  bool
}

func (c *fakeChannel) pushDoc(snap domain.DocumentSnapshot) { c.onDoc(snap) }
func (c *fakeChannel) pushQuery(snap domain.QuerySnapshot)  { c.onQuery(snap) }
func (c *fakeChannel) pushError(err error)                  { c.onError(err) }

// fakeSubscriber records open and close events in order and lets tests drive
// callbacks synchronously.
type fakeSubscriber struct {
	mu       sync.Mutex
	events   []string
	channels []*fakeChannel
	onOpen   func(*fakeChannel)
}

func (f *fakeSubscriber) register(ch *fakeChannel) func() {
	f.mu.Lock()
	f.events = append(f.events, "open "+ch.path)
	f.channels = append(f.channels, ch)
	hook := f.onOpen
	f.mu.Unlock()
	if hook != nil {
		hook(ch)
	}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !ch.closed {
			ch.closed = true
			f.events = append(f.events, "close "+ch.path)
		}
	}
}

func (f *fakeSubscriber) SubscribeDocument(_ context.Context, ref domain.DocumentRef, onNext func(domain.DocumentSnapshot), onError func(error)) func() {
	return f.register(&fakeChannel{path: ref.Path(), onDoc: onNext, onError: onError})
}

func (f *fakeSubscriber) SubscribeQuery(_ context.Context, q domain.Query, onNext func(domain.QuerySnapshot), onError func(error)) func() {
	return f.register(&fakeChannel{path: q.Collection, onQuery: onNext, onError: onError})
}

func (f *fakeSubscriber) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakeSubscriber) channel(i int) *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[i]
}

func (f *fakeSubscriber) open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ch := range f.channels {
		if !ch.closed {
			n++
		}
	}
	return n
}

func docSnap(ref domain.DocumentRef, fields domain.Fields) domain.DocumentSnapshot {
	if fields == nil {
		return domain.DocumentSnapshot{Ref: ref}
	}
	return domain.DocumentSnapshot{Ref: ref, Exists: true, Record: domain.Record{ID: ref.ID, Fields: fields}}
}

// captureEmitter returns an emitter and the permission errors published on it.
func captureEmitter() (*Emitter, func() []*domain.PermissionError) {
	e := NewEmitter()
	var mu sync.Mutex
	var got []*domain.PermissionError
	e.On(EventPermissionError, func(payload any) {
		mu.Lock()
		defer mu.Unlock()
		if perr, ok := payload.(*domain.PermissionError); ok {
			got = append(got, perr)
		}
	})
	return e, func() []*domain.PermissionError {
		mu.Lock()
		defer mu.Unlock()
		return append([]*domain.PermissionError(nil), got...)
	}
}
