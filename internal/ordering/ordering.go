// Package ordering implements manual ordering of sibling documents through an
// explicit integer order field.
//
// A set starts unordered. The first move backfills order = display index for
// every record in one atomic batch and stops there; later moves swap the order
// values of two neighbours in a batch of exactly two updates. Concurrent moves
// are not version checked: the last committed batch wins.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"nexonsite/pkg/domain"
)

// OrderField is the field holding a record's rank.
const OrderField = domain.FieldOrder

// Direction of a move in display order.
type Direction string

// Supported directions.
const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ErrInvalidDirection is returned for anything other than up or down.
var ErrInvalidDirection = errors.New("invalid move direction")

// ParseDirection accepts "up" or "down" in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// Outcome reports what a move did.
type Outcome int

// Move outcomes.
const (
	OutcomeNoop Outcome = iota
	OutcomeBackfilled
	OutcomeSwapped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBackfilled:
		return "backfilled"
	case OutcomeSwapped:
		return "swapped"
	default:
		return "noop"
	}
}

// OrderOf returns the record's order value when it holds an integer.
func OrderOf(r domain.Record) (int, bool) {
	return r.Int(OrderField)
}

// Sort returns the records in display order: those with an order field
// ascending by it, then the rest in their delivery order. The input is not
// modified.
func Sort(records []domain.Record) []domain.Record {
	ordered := make([]domain.Record, 0, len(records))
	var rest []domain.Record
	for _, r := range records {
		if _, ok := OrderOf(r); ok {
			ordered = append(ordered, r)
		} else {
			rest = append(rest, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, _ := OrderOf(ordered[i])
		b, _ := OrderOf(ordered[j])
		return a < b
	})
	return append(ordered, rest...)
}

// Complete reports whether every record carries an order field.
func Complete(records []domain.Record) bool {
	for _, r := range records {
		if _, ok := OrderOf(r); !ok {
			return false
		}
	}
	return true
}

// Next returns the order value for a record appended to a complete set, or
// false when the set still needs a backfill.
func Next(records []domain.Record) (int, bool) {
	if !Complete(records) {
		return 0, false
	}
	next := 0
	for _, r := range records {
		if n, _ := OrderOf(r); n >= next {
			next = n + 1
		}
	}
	return next, true
}

// Plan computes the batch a move would commit. A nil batch means no write.
func Plan(collection string, records []domain.Record, id string, dir Direction) (Outcome, *domain.WriteBatch, error) {
	if dir != Up && dir != Down {
		return OutcomeNoop, nil, fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
	display := Sort(records)
	index := -1
	for i, r := range display {
		if r.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		return OutcomeNoop, nil, fmt.Errorf("move %s/%s: %w", collection, id, domain.ErrNotFound)
	}

	if !Complete(display) {
		batch := domain.NewWriteBatch()
		for i, r := range display {
			batch.Update(domain.DocumentRef{Collection: collection, ID: r.ID}, domain.Fields{OrderField: i})
		}
		return OutcomeBackfilled, batch, nil
	}

	target := index - 1
	if dir == Down {
		target = index + 1
	}
	if target < 0 || target >= len(display) {
		return OutcomeNoop, nil, nil
	}
	current, other := display[index], display[target]
	currentOrder, _ := OrderOf(current)
	otherOrder, _ := OrderOf(other)
	batch := domain.NewWriteBatch().
		Update(domain.DocumentRef{Collection: collection, ID: current.ID}, domain.Fields{OrderField: otherOrder}).
		Update(domain.DocumentRef{Collection: collection, ID: other.ID}, domain.Fields{OrderField: currentOrder})
	return OutcomeSwapped, batch, nil
}

// Move plans a move over records, the sibling set as last observed, and
// commits the resulting batch through w.
func Move(ctx context.Context, w domain.BatchWriter, collection string, records []domain.Record, id string, dir Direction) (Outcome, error) {
	outcome, batch, err := Plan(collection, records, id, dir)
	if err != nil || batch == nil {
		return outcome, err
	}
	if err := w.CommitBatch(ctx, batch); err != nil {
		return OutcomeNoop, fmt.Errorf("commit %s move: %w", outcome, err)
	}
	return outcome, nil
}
