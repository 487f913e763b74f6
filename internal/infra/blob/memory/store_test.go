package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexonsite/internal/blob/core"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := New("")
	meta := map[string]string{"k": "v"}

	info, err := s.Put(ctx, "blog_images/x.gif", strings.NewReader("gif"), core.PutOptions{ContentType: "image/gif", Metadata: meta})
	require.NoError(t, err)
	assert.Equal(t, "/media/blog_images/x.gif", info.URL)
	meta["k"] = "mutated"

	_, err = s.Put(ctx, "blog_images/x.gif", strings.NewReader("dup"), core.PutOptions{})
	assert.ErrorIs(t, err, core.ErrExists)

	got, rc, err := s.Get(ctx, "blog_images/x.gif")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "gif", string(b))
	assert.Equal(t, "v", got.Metadata["k"])

	got.Metadata["k"] = "changed by caller"
	head, err := s.Head(ctx, "blog_images/x.gif")
	require.NoError(t, err)
	assert.Equal(t, "v", head.Metadata["k"])

	_, err = s.Head(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.Put(ctx, "a.txt", strings.NewReader("a"), core.PutOptions{})
	require.NoError(t, err)
	list, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.txt", list[0].Key)

	ok, err := s.Delete(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = s.Delete(ctx, "a.txt")
	assert.False(t, ok)

	_, err = s.PresignURL(ctx, "blog_images/x.gif", core.SignedURLOptions{})
	assert.ErrorIs(t, err, core.ErrUnsupported)
	_, err = s.Put(ctx, "", strings.NewReader(""), core.PutOptions{})
	assert.Error(t, err)
}
