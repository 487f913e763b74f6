// Package livedata keeps consumer state synchronized with live document store
// channels.
//
// A DocumentWatcher or CollectionWatcher holds at most one open channel. Its
// state is {Data, Loading, Err}: Loading stays true until the first snapshot or
// error for the current reference, a nil reference means "watch nothing", and
// a channel error is terminal for that reference. Failures are translated into
// *domain.PermissionError and emitted on the watcher's Emitter under
// EventPermissionError.
package livedata

import (
	"context"

	"nexonsite/pkg/domain"
)

// DocumentState is the state of a DocumentWatcher. Data is nil while idle,
// loading, failed or when the document does not exist.
type DocumentState = State[*domain.Record]

// DocumentWatcher tracks a single document.
type DocumentWatcher struct {
	w   *watcher[*domain.Record]
	sub domain.Subscriber
}

// NewDocumentWatcher returns a watcher in its initial loading state. The
// principal in ctx is used for every channel it opens, and cancelling ctx
// closes the watcher.
func NewDocumentWatcher(ctx context.Context, sub domain.Subscriber, opts ...Option) *DocumentWatcher {
	return &DocumentWatcher{
		w:   newWatcher[*domain.Record](ctx, "document", nil, cloneRecordPtr, opts),
		sub: sub,
	}
}

// Watch switches the watcher to ref. A reference equal by value to the
// current one is a no-op; nil closes the channel and settles to idle.
func (d *DocumentWatcher) Watch(ref *domain.DocumentRef) {
	if ref == nil {
		d.w.bind("", false, "", domain.OperationGet, nil, false)
		return
	}
	target := *ref
	open := func(ctx context.Context, gen uint64) func() {
		return d.sub.SubscribeDocument(ctx, target,
			func(snap domain.DocumentSnapshot) {
				if !snap.Exists {
					d.w.apply(gen, nil)
					return
				}
				rec := domain.Record{ID: target.ID, Fields: snap.Record.Fields.Clone()}
				d.w.apply(gen, &rec)
			},
			func(err error) { d.w.fail(gen, err) })
	}
	d.w.bind(target.Key(), true, target.Path(), domain.OperationGet, open, false)
}

// Refresh re-opens the channel for the current reference, including one that
// failed or timed out.
func (d *DocumentWatcher) Refresh() { d.w.refresh() }

// State returns a copy of the current state.
func (d *DocumentWatcher) State() DocumentState {
	s, _ := d.w.snapshot()
	return s
}

// Snapshot returns the current state and a channel closed on the next change.
func (d *DocumentWatcher) Snapshot() (DocumentState, <-chan struct{}) {
	return d.w.snapshot()
}

// Await blocks until pred holds for the state, ctx ends or the watcher closes.
func (d *DocumentWatcher) Await(ctx context.Context, pred func(DocumentState) bool) (DocumentState, error) {
	return d.w.await(ctx, pred)
}

// Close detaches the channel. Further Watch calls are ignored.
func (d *DocumentWatcher) Close() { d.w.close() }

func cloneRecordPtr(r *domain.Record) *domain.Record {
	if r == nil {
		return nil
	}
	cp := r.Clone()
	return &cp
}
