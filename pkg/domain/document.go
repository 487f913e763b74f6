// Package domain defines the document model shared by the persistence layer,
// the live subscription layer and the content service: records, references,
// snapshots, write batches, access rules and their errors.
package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
)

// IDField is the JSON key under which a record identifier is flattened.
const IDField = "id"

// Fields holds the user-controlled payload of a document.
type Fields map[string]any

// Clone returns a shallow copy of the field map. Nested maps and slices are
// copied one level deep so callers cannot mutate stored state through them.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		switch typed := v.(type) {
		case map[string]any:
			out[k] = maps.Clone(typed)
		case []any:
			out[k] = append([]any(nil), typed...)
		case []string:
			out[k] = append([]string(nil), typed...)
		default:
			out[k] = v
		}
	}
	return out
}

// Record is a materialized document: the backend-assigned identifier plus its
// fields. The identifier is never a writer-controlled field.
type Record struct {
	ID     string
	Fields Fields
}

// Clone returns a deep-enough copy of the record.
func (r Record) Clone() Record {
	return Record{ID: r.ID, Fields: r.Fields.Clone()}
}

// Get returns the raw field value.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// String returns a string field or "" when absent or of another type.
func (r Record) String(key string) string {
	s, _ := r.Fields[key].(string)
	return s
}

// Int returns an integral numeric field. Values decoded from JSON arrive as
// float64 or json.Number; both are accepted when they hold a whole number.
func (r Record) Int(key string) (int, bool) {
	return AsInt(r.Fields[key])
}

// AsInt converts integral numeric values of the common Go and JSON encodings.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if math.Trunc(n) != n || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case float32:
		f := float64(n)
		if math.Trunc(f) != f {
			return 0, false
		}
		return int(f), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// MarshalJSON flattens the record into {"id": ..., ...fields}.
func (r Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat[IDField] = r.ID
	return json.Marshal(flat)
}

// UnmarshalJSON reverses MarshalJSON.
func (r *Record) UnmarshalJSON(b []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(b, &flat); err != nil {
		return err
	}
	id, _ := flat[IDField].(string)
	delete(flat, IDField)
	r.ID = id
	r.Fields = flat
	return nil
}

// DocumentRef addresses a single document. It is comparable, so two refs are
// the same reference exactly when they name the same collection and id.
type DocumentRef struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Doc returns a pointer to a new document reference.
func Doc(collection, id string) *DocumentRef {
	return &DocumentRef{Collection: collection, ID: id}
}

// Path returns the canonical slash-separated document path.
func (r DocumentRef) Path() string {
	return r.Collection + "/" + r.ID
}

// Key implements value identity for memoization.
func (r DocumentRef) Key() string {
	return "doc:" + r.Path()
}

// Validate reports malformed references.
func (r DocumentRef) Validate() error {
	if r.Collection == "" {
		return fmt.Errorf("document reference: empty collection")
	}
	if r.ID == "" {
		return fmt.Errorf("document reference %s: empty id", r.Collection)
	}
	return nil
}

// SameDocument compares two possibly nil references by value.
func SameDocument(a, b *DocumentRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// DocumentSnapshot is the point-in-time state of one document.
type DocumentSnapshot struct {
	Ref    DocumentRef
	Exists bool
	Record Record
}

// QuerySnapshot is the point-in-time result set of a query, in delivery order.
type QuerySnapshot struct {
	Query   Query
	Records []Record
}
