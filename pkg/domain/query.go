package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FilterOp enumerates supported comparison operators.
type FilterOp string

const (
	OpEqual        FilterOp = "=="
	OpNotEqual     FilterOp = "!="
	OpLess         FilterOp = "<"
	OpLessEqual    FilterOp = "<="
	OpGreater      FilterOp = ">"
	OpGreaterEqual FilterOp = ">="
)

// Filter restricts a query to records whose field compares to Value.
type Filter struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Value any      `json:"value"`
}

// Sort orders a query result by one field.
type Sort struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

// Query addresses the result set of a collection query. Without OrderBy the
// result follows store insertion order.
type Query struct {
	Collection string   `json:"collection"`
	Filters    []Filter `json:"filters,omitempty"`
	OrderBy    []Sort   `json:"order_by,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// Collection returns a query over every document of a collection.
func Collection(name string) *Query {
	return &Query{Collection: name}
}

// Where returns a copy of q with an additional filter.
func (q Query) Where(field string, op FilterOp, value any) *Query {
	cp := q.clone()
	cp.Filters = append(cp.Filters, Filter{Field: field, Op: op, Value: value})
	return &cp
}

// Order returns a copy of q with an additional sort key.
func (q Query) Order(field string, descending bool) *Query {
	cp := q.clone()
	cp.OrderBy = append(cp.OrderBy, Sort{Field: field, Descending: descending})
	return &cp
}

// Take returns a copy of q limited to n records.
func (q Query) Take(n int) *Query {
	cp := q.clone()
	cp.Limit = n
	return &cp
}

func (q Query) clone() Query {
	cp := q
	cp.Filters = append([]Filter(nil), q.Filters...)
	cp.OrderBy = append([]Sort(nil), q.OrderBy...)
	return cp
}

// Path returns the canonical path of the queried collection.
func (q Query) Path() string {
	return q.Collection
}

// Key returns the canonical value identity of the query: collection, filters,
// sort and limit. Filter values are JSON encoded so that 1 and 1.0 match.
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString("query:")
	b.WriteString(q.Collection)
	for _, f := range q.Filters {
		v, err := json.Marshal(f.Value)
		if err != nil {
			v = []byte(fmt.Sprintf("%v", f.Value))
		}
		fmt.Fprintf(&b, "|where:%s%s%s", f.Field, f.Op, v)
	}
	for _, s := range q.OrderBy {
		dir := "asc"
		if s.Descending {
			dir = "desc"
		}
		fmt.Fprintf(&b, "|order:%s:%s", s.Field, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, "|limit:%d", q.Limit)
	}
	return b.String()
}

// SameQuery compares two possibly nil queries by value.
func SameQuery(a, b *Query) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Key() == b.Key()
}

// Matches reports whether the record satisfies every filter.
func (q Query) Matches(r Record) bool {
	for _, f := range q.Filters {
		v, ok := r.Fields[f.Field]
		if !ok {
			if f.Op == OpNotEqual {
				continue
			}
			return false
		}
		cmp, comparable := CompareValues(v, f.Value)
		switch f.Op {
		case OpEqual:
			if !comparable || cmp != 0 {
				return false
			}
		case OpNotEqual:
			if comparable && cmp == 0 {
				return false
			}
		case OpLess:
			if !comparable || cmp >= 0 {
				return false
			}
		case OpLessEqual:
			if !comparable || cmp > 0 {
				return false
			}
		case OpGreater:
			if !comparable || cmp <= 0 {
				return false
			}
		case OpGreaterEqual:
			if !comparable || cmp < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Apply filters, sorts and limits records already in insertion order. Records
// missing a sort field are placed after those that have it.
func (q Query) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	if len(q.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, s := range q.OrderBy {
				a, aok := out[i].Fields[s.Field]
				b, bok := out[j].Fields[s.Field]
				switch {
				case aok && !bok:
					return true
				case !aok && bok:
					return false
				case !aok && !bok:
					continue
				}
				cmp, ok := CompareValues(a, b)
				if !ok || cmp == 0 {
					continue
				}
				if s.Descending {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// CompareValues orders two field values of the same kind. Numbers compare
// numerically regardless of their Go type.
func CompareValues(a, b any) (int, bool) {
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
