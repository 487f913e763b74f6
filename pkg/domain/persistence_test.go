package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTx struct {
	calls  []string
	failOn string
}

func (tx *recordingTx) Get(DocumentRef) (Record, bool) { return Record{}, false }
func (tx *recordingTx) Query(Query) []Record           { return nil }
func (tx *recordingTx) Create(c string, f Fields) (Record, error) {
	return Record{ID: "new", Fields: f}, nil
}

func (tx *recordingTx) record(op string, ref DocumentRef) error {
	tx.calls = append(tx.calls, op+" "+ref.Path())
	if ref.ID == tx.failOn {
		return ErrNotFound
	}
	return nil
}

func (tx *recordingTx) Set(ref DocumentRef, f Fields) (Record, error) {
	return Record{ID: ref.ID, Fields: f}, tx.record("set", ref)
}

func (tx *recordingTx) Update(ref DocumentRef, f Fields) (Record, error) {
	return Record{ID: ref.ID, Fields: f}, tx.record("update", ref)
}

func (tx *recordingTx) Delete(ref DocumentRef) error { return tx.record("delete", ref) }

func TestWriteBatchAppliesInOrder(t *testing.T) {
	fields := Fields{"order": 1}
	batch := NewWriteBatch().
		Update(DocumentRef{Collection: "c", ID: "a"}, fields).
		Set(DocumentRef{Collection: "c", ID: "b"}, Fields{"x": true}).
		Delete(DocumentRef{Collection: "c", ID: "z"})
	fields["order"] = 99

	assert.Equal(t, 3, batch.Len())
	assert.Equal(t, 1, batch.Writes()[0].Fields["order"], "queued fields are copied")

	tx := &recordingTx{}
	require.NoError(t, batch.Apply(tx))
	assert.Equal(t, []string{"update c/a", "set c/b", "delete c/z"}, tx.calls)
}

func TestWriteBatchStopsAtFirstFailure(t *testing.T) {
	batch := NewWriteBatch().
		Update(DocumentRef{Collection: "c", ID: "a"}, Fields{}).
		Update(DocumentRef{Collection: "c", ID: "missing"}, Fields{}).
		Update(DocumentRef{Collection: "c", ID: "b"}, Fields{})
	tx := &recordingTx{failOn: "missing"}
	err := batch.Apply(tx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Len(t, tx.calls, 2)
}

func TestNilWriteBatch(t *testing.T) {
	var batch *WriteBatch
	assert.Zero(t, batch.Len())
	assert.Nil(t, batch.Writes())
}
