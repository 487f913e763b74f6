package livedata

import (
	"context"

	"nexonsite/pkg/domain"
)

// CollectionState is the state of a CollectionWatcher. Data is an empty,
// non-nil slice while idle or failed.
type CollectionState = State[[]domain.Record]

// CollectionWatcher tracks the result set of a query in delivery order.
type CollectionWatcher struct {
	w   *watcher[[]domain.Record]
	sub domain.Subscriber
}

// NewCollectionWatcher returns a watcher in its initial loading state.
func NewCollectionWatcher(ctx context.Context, sub domain.Subscriber, opts ...Option) *CollectionWatcher {
	return &CollectionWatcher{
		w:   newWatcher[[]domain.Record](ctx, "collection", []domain.Record{}, cloneRecords, opts),
		sub: sub,
	}
}

// Watch switches the watcher to q, compared by Query.Key.
func (c *CollectionWatcher) Watch(q *domain.Query) {
	if q == nil {
		c.w.bind("", false, "", domain.OperationList, nil, false)
		return
	}
	target := *q
	target.Filters = append([]domain.Filter(nil), q.Filters...)
	target.OrderBy = append([]domain.Sort(nil), q.OrderBy...)
	open := func(ctx context.Context, gen uint64) func() {
		return c.sub.SubscribeQuery(ctx, target,
			func(snap domain.QuerySnapshot) {
				records := make([]domain.Record, len(snap.Records))
				for i, r := range snap.Records {
					records[i] = domain.Record{ID: r.ID, Fields: r.Fields.Clone()}
				}
				c.w.apply(gen, records)
			},
			func(err error) { c.w.fail(gen, err) })
	}
	c.w.bind(target.Key(), true, queryPath(&target), domain.OperationList, open, false)
}

// Refresh re-opens the channel for the current query.
func (c *CollectionWatcher) Refresh() { c.w.refresh() }

// State returns a copy of the current state.
func (c *CollectionWatcher) State() CollectionState {
	s, _ := c.w.snapshot()
	return s
}

// Snapshot returns the current state and a channel closed on the next change.
func (c *CollectionWatcher) Snapshot() (CollectionState, <-chan struct{}) {
	return c.w.snapshot()
}

// Await blocks until pred holds for the state, ctx ends or the watcher closes.
func (c *CollectionWatcher) Await(ctx context.Context, pred func(CollectionState) bool) (CollectionState, error) {
	return c.w.await(ctx, pred)
}

// Close detaches the channel.
func (c *CollectionWatcher) Close() { c.w.close() }

func cloneRecords(records []domain.Record) []domain.Record {
	if records == nil {
		return nil
	}
	out := make([]domain.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
