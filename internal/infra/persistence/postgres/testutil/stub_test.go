package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubDBCommitsOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	defer func() { _ = db.Close() }()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "INSERT INTO state(bucket,payload) VALUES($1,$2)", "posts", []byte(`[]`))
	require.NoError(t, err)
	_, ok := conn.Bucket("posts")
	assert.False(t, ok, "uncommitted write must stay pending")
	require.NoError(t, tx.Commit())
	payload, ok := conn.Bucket("posts")
	require.True(t, ok)
	assert.Equal(t, "[]", string(payload))

	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "INSERT INTO state(bucket,payload) VALUES($1,$2)", "items", []byte(`[]`))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	_, ok = conn.Bucket("items")
	assert.False(t, ok)

	rows, err := db.QueryContext(ctx, "SELECT bucket, payload FROM state")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	var names []string
	for rows.Next() {
		var name string
		var payload []byte
		require.NoError(t, rows.Scan(&name, &payload))
		names = append(names, name)
	}
	assert.Equal(t, []string{"posts"}, names)
}
