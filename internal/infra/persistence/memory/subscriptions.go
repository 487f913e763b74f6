package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"nexonsite/pkg/domain"
)

// ErrStoreClosed is reported to subscriptions opened after Close.
var ErrStoreClosed = errors.New("memory store closed")

// subscription delivers snapshots for one document or query on its own
// goroutine, in the order they were queued.
type subscription struct {
	id    uint64
	doc   *domain.DocumentRef
	query *domain.Query

	onDoc   func(domain.DocumentSnapshot)
	onQuery func(domain.QuerySnapshot)
	onError func(error)

	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	once    sync.Once
}

func newSubscription() *subscription {
	return &subscription{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()
		for _, fn := range batch {
			if s.closed.Load() {
				return
			}
			fn()
		}
	}
}

func (s *subscription) enqueue(fn func()) {
	if s.closed.Load() {
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, fn)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) close() {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
}

// touches reports whether a committed change affects the subscription.
func (s *subscription) touches(change Change) bool {
	if s.doc != nil {
		return change.Collection == s.doc.Collection && change.ID == s.doc.ID
	}
	return s.query != nil && change.Collection == s.query.Collection
}

// deliver queues a snapshot computed from state. Called with the store lock
// held so that queue order matches commit order.
func (s *subscription) deliver(state memoryState) {
	switch {
	case s.doc != nil:
		rec, ok := state.get(*s.doc)
		snap := domain.DocumentSnapshot{Ref: *s.doc, Exists: ok, Record: rec}
		s.enqueue(func() { s.onDoc(snap) })
	case s.query != nil:
		snap := domain.QuerySnapshot{Query: *s.query, Records: state.query(*s.query)}
		s.enqueue(func() { s.onQuery(snap) })
	}
}

// fail queues a terminal error; the subscription closes after reporting it.
func (s *subscription) fail(err error) {
	s.enqueue(func() {
		if s.onError != nil {
			s.onError(err)
		}
		s.close()
	})
}

// notify fans committed changes out to affected subscriptions. Caller holds
// the write lock.
func (s *Store) notify(changes []Change) {
	for _, sub := range s.subs {
		for _, change := range changes {
			if sub.touches(change) {
				sub.deliver(s.state)
				break
			}
		}
	}
}

func (s *Store) open(ctx context.Context, sub *subscription, authErr error) func() {
	s.mu.Lock()
	s.nextID++
	sub.id = s.nextID
	closed := s.closed
	go sub.run()
	switch {
	case closed:
		sub.fail(ErrStoreClosed)
	case authErr != nil:
		sub.fail(authErr)
	default:
		s.subs[sub.id] = sub
		sub.deliver(s.state)
	}
	s.mu.Unlock()

	detach := func() {
		s.mu.Lock()
		delete(s.subs, sub.id)
		s.mu.Unlock()
		sub.close()
	}
	stop := context.AfterFunc(ctx, detach)
	return func() {
		stop()
		detach()
	}
}

// SubscribeDocument opens a live channel on one document. The first snapshot
// reflects the state at subscription time. A denied read is reported through
// onError and ends the subscription.
func (s *Store) SubscribeDocument(ctx context.Context, ref domain.DocumentRef, onNext func(domain.DocumentSnapshot), onError func(error)) func() {
	sub := newSubscription()
	sub.doc = &ref
	sub.onDoc = onNext
	sub.onError = onError
	var authErr error
	if err := ref.Validate(); err != nil {
		authErr = err
	} else {
		authErr = s.authorize(ctx, domain.OperationGet, ref.Collection, ref.ID, nil)
	}
	return s.open(ctx, sub, authErr)
}

// SubscribeQuery opens a live channel on a query result set.
func (s *Store) SubscribeQuery(ctx context.Context, q domain.Query, onNext func(domain.QuerySnapshot), onError func(error)) func() {
	sub := newSubscription()
	sub.query = &q
	sub.onQuery = onNext
	sub.onError = onError
	var authErr error
	if q.Collection == "" {
		authErr = fmt.Errorf("query: empty collection")
	} else {
		authErr = s.authorize(ctx, domain.OperationList, q.Collection, "", nil)
	}
	return s.open(ctx, sub, authErr)
}

// Revoke fails every open subscription on the collection with a permission
// error, as a backend does when access is withdrawn from a live listener.
func (s *Store) Revoke(collection string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subs {
		var path string
		var op domain.Operation
		switch {
		case sub.doc != nil && sub.doc.Collection == collection:
			path, op = sub.doc.Path(), domain.OperationGet
		case sub.query != nil && sub.query.Collection == collection:
			path, op = sub.query.Path(), domain.OperationList
		default:
			continue
		}
		delete(s.subs, id)
		sub.fail(domain.NewPermissionError(path, op, cause))
	}
}
