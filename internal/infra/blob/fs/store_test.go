package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexonsite/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir(), "https://cdn.example.com/media/")
	require.NoError(t, err)
	return store
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)

	info, err := store.Put(ctx, "blog_images/a.png", strings.NewReader("png-bytes"), core.PutOptions{
		ContentType: "image/png",
		Metadata:    map[string]string{"source": "upload"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), info.Size)
	assert.Equal(t, "https://cdn.example.com/media/blog_images/a.png", info.URL)
	assert.Len(t, info.ETag, 64)

	_, err = store.Put(ctx, "blog_images/a.png", strings.NewReader("again"), core.PutOptions{})
	assert.ErrorIs(t, err, core.ErrExists)

	head, err := store.Head(ctx, "blog_images/a.png")
	require.NoError(t, err)
	assert.Equal(t, info.ETag, head.ETag)
	assert.Equal(t, "upload", head.Metadata["source"])

	got, rc, err := store.Get(ctx, "blob_images/../blog_images/a.png")
	assert.Error(t, err, "traversal rejected")
	assert.Nil(t, rc)
	assert.Empty(t, got.Key)

	got, rc, err = store.Get(ctx, "blog_images/a.png")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, "image/png", got.ContentType)

	_, err = store.Put(ctx, "other/b.txt", strings.NewReader("b"), core.PutOptions{})
	require.NoError(t, err)
	list, err := store.List(ctx, "blog_images/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "blog_images/a.png", list[0].Key)
	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	existed, err := store.Delete(ctx, "blog_images/a.png")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = store.Delete(ctx, "blog_images/a.png")
	require.NoError(t, err)
	assert.False(t, existed)
	_, err = store.Head(ctx, "blog_images/a.png")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = store.Get(ctx, "blog_images/a.png")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCleanKey(t *testing.T) {
	for _, bad := range []string{"", "  ", "/abs", "../up", "a/../../b", `a\b`, "x.meta"} {
		_, err := cleanKey(bad)
		assert.Error(t, err, "key %q", bad)
	}
	k, err := cleanKey("blog_images//x.png")
	require.NoError(t, err)
	assert.Equal(t, "blog_images/x.png", k)
}

func TestPutLeavesNoTempFiles(t *testing.T) {
	store := newTempStore(t)
	_, err := store.Put(context.Background(), "d/x.bin", strings.NewReader("x"), core.PutOptions{})
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(store.Root(), "d"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"x.bin", "x.bin.meta"}, names)
}

func TestPutHonoursCancelledContext(t *testing.T) {
	store := newTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPresignURL(t *testing.T) {
	store, err := New(t.TempDir(), "")
	require.NoError(t, err)
	u, err := store.PresignURL(context.Background(), "a/b.png", core.SignedURLOptions{})
	require.NoError(t, err)
	assert.Equal(t, "/media/a/b.png", u)
	_, err = store.PresignURL(context.Background(), "a/b.png", core.SignedURLOptions{Method: "PUT"})
	assert.ErrorIs(t, err, core.ErrUnsupported)
	assert.Equal(t, core.DriverFilesystem, store.Driver())
}
