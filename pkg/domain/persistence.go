package domain

import (
	"context"
	"fmt"
)

// Transaction exposes the document operations that a persistence
// implementation must support within an atomic scope. Writes made through a
// transaction are visible to later reads of the same transaction.
type Transaction interface {
	Get(ref DocumentRef) (Record, bool)
	Query(q Query) []Record
	// Create stores fields under a new backend-assigned identifier.
	Create(collection string, fields Fields) (Record, error)
	// Set creates or replaces the document.
	Set(ref DocumentRef, fields Fields) (Record, error)
	// Update merges fields into an existing document.
	Update(ref DocumentRef, fields Fields) (Record, error)
	Delete(ref DocumentRef) error
}

// WriteKind enumerates batched write operations.
type WriteKind string

// Batched write kinds.
const (
	WriteSet    WriteKind = "set"
	WriteUpdate WriteKind = "update"
	WriteDelete WriteKind = "delete"
)

// Write is one entry of a WriteBatch.
type Write struct {
	Kind   WriteKind
	Ref    DocumentRef
	Fields Fields
}

// WriteBatch collects writes that commit atomically: either every write is
// applied or none is.
type WriteBatch struct {
	writes []Write
}

// NewWriteBatch returns an empty batch.
func NewWriteBatch() *WriteBatch {
	return &WriteBatch{}
}

// Set queues a create-or-replace.
func (b *WriteBatch) Set(ref DocumentRef, fields Fields) *WriteBatch {
	b.writes = append(b.writes, Write{Kind: WriteSet, Ref: ref, Fields: fields.Clone()})
	return b
}

// Update queues a partial merge into an existing document.
func (b *WriteBatch) Update(ref DocumentRef, fields Fields) *WriteBatch {
	b.writes = append(b.writes, Write{Kind: WriteUpdate, Ref: ref, Fields: fields.Clone()})
	return b
}

// Delete queues a removal.
func (b *WriteBatch) Delete(ref DocumentRef) *WriteBatch {
	b.writes = append(b.writes, Write{Kind: WriteDelete, Ref: ref})
	return b
}

// Writes returns a copy of the queued writes in insertion order.
func (b *WriteBatch) Writes() []Write {
	if b == nil {
		return nil
	}
	out := make([]Write, len(b.writes))
	copy(out, b.writes)
	return out
}

// Len returns the number of queued writes.
func (b *WriteBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.writes)
}

// Apply replays the batch against tx, stopping at the first failure.
func (b *WriteBatch) Apply(tx Transaction) error {
	for i, w := range b.writes {
		var err error
		switch w.Kind {
		case WriteSet:
			_, err = tx.Set(w.Ref, w.Fields)
		case WriteUpdate:
			_, err = tx.Update(w.Ref, w.Fields)
		case WriteDelete:
			err = tx.Delete(w.Ref)
		default:
			err = fmt.Errorf("unknown write kind %q", w.Kind)
		}
		if err != nil {
			return fmt.Errorf("batch write %d (%s %s): %w", i, w.Kind, w.Ref.Path(), err)
		}
	}
	return nil
}

// BatchWriter commits write batches atomically.
type BatchWriter interface {
	CommitBatch(ctx context.Context, batch *WriteBatch) error
}

// Subscriber opens live channels on documents and queries. onNext receives
// every snapshot in commit order until the returned function is called or
// onError reports a terminal failure. Calling the returned function detaches
// the channel synchronously.
type Subscriber interface {
	SubscribeDocument(ctx context.Context, ref DocumentRef, onNext func(DocumentSnapshot), onError func(error)) (unsubscribe func())
	SubscribeQuery(ctx context.Context, q Query, onNext func(QuerySnapshot), onError func(error)) (unsubscribe func())
}

// PersistentStore is the document store used by higher layers. The caller
// principal is taken from ctx for access rule evaluation.
type PersistentStore interface {
	BatchWriter
	Subscriber
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	Get(ctx context.Context, ref DocumentRef) (Record, bool, error)
	Query(ctx context.Context, q Query) ([]Record, error)
	// Authorize checks req against the store's access rules without touching
	// any document.
	Authorize(ctx context.Context, req Request) error
}
