// Package memory provides the in-memory document store. It is the reference
// implementation of domain.PersistentStore and the engine behind the durable
// sqlite and postgres drivers, which persist its state after every commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"nexonsite/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Record aliases domain.Record.
	Record = domain.Record
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate access rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
)

type entry struct {
	record Record
	seq    uint64
}

type memoryState struct {
	collections map[string]map[string]entry
	nextSeq     uint64
}

func newMemoryState() memoryState {
	return memoryState{collections: make(map[string]map[string]entry)}
}

// clone copies the collection maps. Stored records are never mutated in
// place, so entries can be shared between the copies.
func (s memoryState) clone() memoryState {
	out := memoryState{
		collections: make(map[string]map[string]entry, len(s.collections)),
		nextSeq:     s.nextSeq,
	}
	for name, docs := range s.collections {
		cp := make(map[string]entry, len(docs))
		for id, e := range docs {
			cp[id] = e
		}
		out.collections[name] = cp
	}
	return out
}

func (s memoryState) get(ref domain.DocumentRef) (Record, bool) {
	e, ok := s.collections[ref.Collection][ref.ID]
	if !ok {
		return Record{}, false
	}
	return e.record.Clone(), true
}

// ordered returns the records of a collection in insertion order.
func (s memoryState) ordered(collection string) []Record {
	docs := s.collections[collection]
	entries := make([]entry, 0, len(docs))
	for _, e := range docs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]Record, len(entries))
	for i, e := range entries {
		out[i] = e.record.Clone()
	}
	return out
}

func (s memoryState) query(q domain.Query) []Record {
	return q.Apply(s.ordered(q.Collection))
}

// Snapshot captures a point-in-time clone of the store state. Records of a
// collection are listed in insertion order.
type Snapshot struct {
	Collections map[string][]Record `json:"collections"`
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{Collections: make(map[string][]Record, len(state.collections))}
	for name := range state.collections {
		s.Collections[name] = state.ordered(name)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	names := make([]string, 0, len(s.Collections))
	for name := range s.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		docs := make(map[string]entry, len(s.Collections[name]))
		for _, rec := range s.Collections[name] {
			if rec.ID == "" {
				continue
			}
			state.nextSeq++
			docs[rec.ID] = entry{record: sanitize(rec), seq: state.nextSeq}
		}
		state.collections[name] = docs
	}
	return state
}

// sanitize drops a writer supplied id key; the identifier lives on the record.
func sanitize(rec Record) Record {
	out := Record{ID: rec.ID, Fields: rec.Fields.Clone()}
	if out.Fields == nil {
		out.Fields = domain.Fields{}
	}
	delete(out.Fields, domain.IDField)
	return out
}

// Commit describes a successful transaction to a CommitHook: the recorded
// changes and the full post-commit contents of every touched collection.
type Commit struct {
	Changes     []Change
	Collections map[string][]Record
}

// CommitHook runs while the store lock is held, after rules passed and before
// the new state becomes visible. A hook error aborts the commit.
type CommitHook func(ctx context.Context, commit Commit) error

// Option configures a Store.
type Option func(*Store)

// WithCommitHook installs a hook invoked for every successful commit.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) { s.hook = hook }
}

// WithIDGenerator overrides the document identifier source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Store provides an in-memory transactional document store with live
// subscriptions.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	hook   CommitHook
	newID  func() string

	subs   map[uint64]*subscription
	nextID uint64
	closed bool
}

// NewStore constructs an in-memory store backed by the provided rules engine.
// A nil engine allows every request.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		newID:  uuid.NewString,
		subs:   make(map[uint64]*subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot. Open
// subscriptions receive the new contents.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
	for _, sub := range s.subs {
		sub.deliver(s.state)
	}
}

// RulesEngine exposes the configured access rules engine.
func (s *Store) RulesEngine() *RulesEngine {
	return s.engine
}

// Close detaches every open subscription. The store keeps serving reads and
// writes.
func (s *Store) Close() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[uint64]*subscription)
	s.closed = true
	s.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}
	return nil
}

func (s *Store) authorize(ctx context.Context, op domain.Operation, collection, id string, resource *Record) error {
	return s.Authorize(ctx, domain.Request{
		Operation:  op,
		Collection: collection,
		DocumentID: id,
		Principal:  domain.PrincipalFromContext(ctx),
		Resource:   resource,
	})
}

// Authorize evaluates req against the access rules. An empty principal on req
// is replaced by the one attached to ctx.
func (s *Store) Authorize(ctx context.Context, req domain.Request) error {
	if req.Principal == (domain.Principal{}) {
		req.Principal = domain.PrincipalFromContext(ctx)
	}
	_, err := s.engine.Authorize(ctx, req)
	return err
}

// RunInTransaction executes fn within a transactional copy of the store
// state. Every recorded change is checked against the access rules before the
// copy replaces the live state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{store: s, state: s.state.clone()}
	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	principal := domain.PrincipalFromContext(ctx)
	for _, change := range tx.changes {
		req := domain.Request{
			Operation:  domain.Operation(change.Action),
			Collection: change.Collection,
			DocumentID: change.ID,
			Principal:  principal,
			Resource:   change.After,
		}
		res, err := s.engine.Authorize(ctx, req)
		result.Merge(res)
		if err != nil {
			return result, err
		}
	}
	if len(tx.changes) == 0 {
		return result, nil
	}

	if s.hook != nil {
		commit := Commit{Changes: tx.changes, Collections: make(map[string][]Record)}
		for _, change := range tx.changes {
			if _, seen := commit.Collections[change.Collection]; !seen {
				commit.Collections[change.Collection] = tx.state.ordered(change.Collection)
			}
		}
		if err := s.hook(ctx, commit); err != nil {
			return result, fmt.Errorf("commit hook: %w", err)
		}
	}

	s.state = tx.state
	s.notify(tx.changes)
	return result, nil
}

// CommitBatch applies every write of the batch in one transaction.
func (s *Store) CommitBatch(ctx context.Context, batch *domain.WriteBatch) error {
	if batch.Len() == 0 {
		return nil
	}
	_, err := s.RunInTransaction(ctx, batch.Apply)
	return err
}

// Get returns one document when the caller may read it.
func (s *Store) Get(ctx context.Context, ref domain.DocumentRef) (Record, bool, error) {
	if err := ref.Validate(); err != nil {
		return Record{}, false, err
	}
	if err := s.authorize(ctx, domain.OperationGet, ref.Collection, ref.ID, nil); err != nil {
		return Record{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state.get(ref)
	return rec, ok, nil
}

// Query evaluates q against the current state when the caller may list the
// collection.
func (s *Store) Query(ctx context.Context, q domain.Query) ([]Record, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("query: empty collection")
	}
	if err := s.authorize(ctx, domain.OperationList, q.Collection, "", nil); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.query(q), nil
}

// Transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) put(ref domain.DocumentRef, rec Record, seq uint64) {
	docs, ok := tx.state.collections[ref.Collection]
	if !ok {
		docs = make(map[string]entry)
		tx.state.collections[ref.Collection] = docs
	}
	docs[ref.ID] = entry{record: rec, seq: seq}
}

func (tx *transaction) Get(ref domain.DocumentRef) (Record, bool) {
	return tx.state.get(ref)
}

func (tx *transaction) Query(q domain.Query) []Record {
	return tx.state.query(q)
}

func (tx *transaction) Create(collection string, fields domain.Fields) (Record, error) {
	if collection == "" {
		return Record{}, fmt.Errorf("create: empty collection")
	}
	ref := domain.DocumentRef{Collection: collection, ID: tx.store.newID()}
	if _, exists := tx.state.get(ref); exists {
		return Record{}, fmt.Errorf("document %q already exists", ref.Path())
	}
	return tx.Set(ref, fields)
}

func (tx *transaction) Set(ref domain.DocumentRef, fields domain.Fields) (Record, error) {
	if err := ref.Validate(); err != nil {
		return Record{}, err
	}
	rec := sanitize(Record{ID: ref.ID, Fields: fields})
	current, exists := tx.state.collections[ref.Collection][ref.ID]
	if exists {
		tx.put(ref, rec, current.seq)
		before := current.record.Clone()
		after := rec.Clone()
		tx.recordChange(Change{Collection: ref.Collection, ID: ref.ID, Action: domain.ActionUpdate, Before: &before, After: &after})
		return rec.Clone(), nil
	}
	tx.state.nextSeq++
	tx.put(ref, rec, tx.state.nextSeq)
	after := rec.Clone()
	tx.recordChange(Change{Collection: ref.Collection, ID: ref.ID, Action: domain.ActionCreate, After: &after})
	return rec.Clone(), nil
}

func (tx *transaction) Update(ref domain.DocumentRef, fields domain.Fields) (Record, error) {
	if err := ref.Validate(); err != nil {
		return Record{}, err
	}
	current, ok := tx.state.collections[ref.Collection][ref.ID]
	if !ok {
		return Record{}, fmt.Errorf("update %s: %w", ref.Path(), domain.ErrNotFound)
	}
	merged := current.record.Clone()
	if merged.Fields == nil {
		merged.Fields = domain.Fields{}
	}
	for k, v := range fields.Clone() {
		merged.Fields[k] = v
	}
	merged = sanitize(merged)
	tx.put(ref, merged, current.seq)
	before := current.record.Clone()
	after := merged.Clone()
	tx.recordChange(Change{Collection: ref.Collection, ID: ref.ID, Action: domain.ActionUpdate, Before: &before, After: &after})
	return merged.Clone(), nil
}

func (tx *transaction) Delete(ref domain.DocumentRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	current, ok := tx.state.collections[ref.Collection][ref.ID]
	if !ok {
		return fmt.Errorf("delete %s: %w", ref.Path(), domain.ErrNotFound)
	}
	delete(tx.state.collections[ref.Collection], ref.ID)
	before := current.record.Clone()
	tx.recordChange(Change{Collection: ref.Collection, ID: ref.ID, Action: domain.ActionDelete, Before: &before})
	return nil
}
