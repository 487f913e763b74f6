package s3

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexonsite/internal/blob/core"
)

func TestMockStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	assert.Equal(t, core.DriverS3, store.Driver())

	info, err := store.Put(ctx, "blog_images/a.png", strings.NewReader("image-data"), core.PutOptions{ContentType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "blog_images/a.png", info.Key)
	assert.Equal(t, int64(len("image-data")), info.Size)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, MockEndpoint+"/media/blog_images/a.png", info.URL)

	_, err = store.Put(ctx, "blog_images/a.png", strings.NewReader("x"), core.PutOptions{})
	assert.ErrorIs(t, err, core.ErrExists)

	_, rc, err := store.Get(ctx, "blog_images/a.png")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "image-data", string(body))

	_, err = store.Put(ctx, "blog_images/b.png", strings.NewReader("b"), core.PutOptions{})
	require.NoError(t, err)
	list, err := store.List(ctx, "blog_images/")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "blog_images/b.png", list[1].Key)

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

func TestPresignURL(t *testing.T) {
	store := NewMockForTests()
	u, err := store.PresignURL(context.Background(), "blog_images/a.png", core.SignedURLOptions{Expiry: time.Minute})
	require.NoError(t, err)
	assert.Contains(t, u, "blog_images/a.png")
	assert.Contains(t, u, "X-Amz-Expires=60")
	_, err = store.PresignURL(context.Background(), "k", core.SignedURLOptions{Method: "PUT"})
	assert.ErrorIs(t, err, core.ErrUnsupported)
}

func TestPublicBase(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit", Config{Bucket: "b", PublicBaseURL: "https://cdn.example.com/"}, "https://cdn.example.com"},
		{"aws", Config{Bucket: "b", Region: "eu-west-1"}, "https://b.s3.eu-west-1.amazonaws.com"},
		{"aws default region", Config{Bucket: "b"}, "https://b.s3.us-east-1.amazonaws.com"},
		{"minio path style", Config{Bucket: "b", Endpoint: "http://localhost:9000", PathStyle: true}, "http://localhost:9000/b"},
		{"virtual host", Config{Bucket: "b", Endpoint: "https://storage.example.com"}, "https://b.storage.example.com"},
		{"bad endpoint", Config{Bucket: "b", Endpoint: "::"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, publicBase(tc.cfg))
		})
	}
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.EqualError(t, err, "s3 bucket required")
}

func TestDecodeAWSChunked(t *testing.T) {
	out, ok := decodeAWSChunked([]byte("5;chunk-signature=abc\r\nhello\r\n0\r\n\r\n"))
	require.True(t, ok)
	assert.Equal(t, "hello", string(out))
	_, ok = decodeAWSChunked([]byte("plain body"))
	assert.False(t, ok)
}
