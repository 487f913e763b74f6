package livedata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexonsite/internal/infra/persistence/memory"
	"nexonsite/pkg/domain"
)

func TestDocumentWatcherInitialStateIsLoading(t *testing.T) {
	w := NewDocumentWatcher(context.Background(), &fakeSubscriber{})
	defer w.Close()
	s := w.State()
	assert.True(t, s.Loading)
	assert.Nil(t, s.Data)
}

func TestDocumentWatcherNilRefIsIdleWithoutChannel(t *testing.T) {
	sub := &fakeSubscriber{}
	w := NewDocumentWatcher(context.Background(), sub)
	defer w.Close()

	w.Watch(nil)
	s := w.State()
	assert.False(t, s.Loading)
	assert.Nil(t, s.Data)
	assert.NoError(t, s.Err)
	assert.Empty(t, sub.log())
}

func TestDocumentWatcherLiveSnapshots(t *testing.T) {
	sub := &fakeSubscriber{}
	w := NewDocumentWatcher(context.Background(), sub)
	defer w.Close()
	ref := domain.Doc("posts", "42")

	w.Watch(ref)
	assert.True(t, w.State().Loading)

	ch := sub.channel(0)
	ch.pushDoc(docSnap(*ref, domain.Fields{"title": "Hello", "id": "ignored"}))
	s := w.State()
	assert.False(t, s.Loading)
	require.NotNil(t, s.Data)
	assert.Equal(t, "42", s.Data.ID)
	assert.Equal(t, "Hello", s.Data.String("title"))

	s.Data.Fields["title"] = "mutated by consumer"
	assert.Equal(t, "Hello", w.State().Data.String("title"))

	ch.pushDoc(docSnap(*ref, nil))
	s = w.State()
	assert.False(t, s.Loading)
	assert.Nil(t, s.Data, "missing document decodes to nil")
}

func TestDocumentWatcherSameValueRefDoesNotResubscribe(t *testing.T) {
	sub := &fakeSubscriber{}
	w := NewDocumentWatcher(context.Background(), sub)
	defer w.Close()

	w.Watch(domain.Doc("posts", "1"))
	w.Watch(domain.Doc("posts", "1"))
	assert.Equal(t, []string{"open posts/1"}, sub.log())
}

func TestDocumentWatcherSwitchClosesPreviousChannelFirst(t *testing.T) {
	sub := &fakeSubscriber{}
	w := NewDocumentWatcher(context.Background(), sub)
	defer w.Close()

	r1, r2 := domain.Doc("posts", "1"), domain.Doc("posts", "2")
	w.Watch(r1)
	first := sub.channel(0)
	first.pushDoc(docSnap(*r1, domain.Fields{"v": 1}))

	w.Watch(r2)
	assert.Equal(t, []string{"open posts/1", "close posts/1", "open posts/2"}, sub.log())
	s := w.State()
	assert.True(t, s.Loading, "reference change resets to loading")
	assert.Nil(t, s.Data)

	first.pushDoc(docSnap(*r1, domain.Fields{"v": "late"}))
	first.pushError(errors.New("late failure"))
	assert.True(t, w.State().Loading, "notifications from the old channel are dropped")
	assert.NoError(t, w.State().Err)

	sub.channel(1).pushDoc(docSnap(*r2, domain.Fields{"v": 2}))
	n, _ := w.State().Data.Int("v")
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, sub.open())
}

func TestDocumentWatcherFailureIsTerminalAndEmitted(t *testing.T) {
	sub := &fakeSubscriber{}
	emitter, emitted := captureEmitter()
	w := NewDocumentWatcher(context.Background(), sub, WithEmitter(emitter))
	defer w.Close()
	ref := domain.Doc("posts", "42")

	w.Watch(ref)
	ch := sub.channel(0)
	ch.pushDoc(docSnap(*ref, domain.Fields{"v": 1}))
	cause := errors.New("missing or insufficient permissions")
	ch.pushError(cause)

	s := w.State()
	assert.False(t, s.Loading)
	assert.Nil(t, s.Data)
	require.ErrorIs(t, s.Err, domain.ErrPermissionDenied)
	assert.ErrorIs(t, s.Err, cause)

	errs := emitted()
	require.Len(t, errs, 1)
	assert.Equal(t, domain.SecurityRuleContext{Path: "posts/42", Operation: domain.OperationGet}, errs[0].Context)
	assert.Equal(t, []string{"open posts/42", "close posts/42"}, sub.log(), "failed channel is detached and not retried")

	ch.pushDoc(docSnap(*ref, domain.Fields{"v": 2}))
	assert.Nil(t, w.State().Data)

	w.Watch(domain.Doc("posts", "42"))
	assert.Len(t, sub.log(), 2, "same reference stays failed")

	w.Refresh()
	assert.Equal(t, "open posts/42", sub.log()[2])
	assert.True(t, w.State().Loading)
}

func TestDocumentWatcherSynchronousErrorDuringSubscribe(t *testing.T) {
	sub := &fakeSubscriber{onOpen: func(ch *fakeChannel) { ch.pushError(errors.New("denied")) }}
	emitter, emitted := captureEmitter()
	w := NewDocumentWatcher(context.Background(), sub, WithEmitter(emitter))
	defer w.Close()

	w.Watch(domain.Doc("secrets", "x"))
	assert.False(t, w.State().Loading)
	assert.Len(t, emitted(), 1)
	assert.Zero(t, sub.open())
}

func TestDocumentWatcherResubscribeHasNoResidualData(t *testing.T) {
	sub := &fakeSubscriber{}
	w := NewDocumentWatcher(context.Background(), sub)
	defer w.Close()
	r1, r2 := domain.Doc("posts", "1"), domain.Doc("posts", "2")

	w.Watch(r1)
	sub.channel(0).pushDoc(docSnap(*r1, domain.Fields{"v": 1}))
	w.Watch(r2)
	sub.channel(1).pushDoc(docSnap(*r2, domain.Fields{"v": 2}))
	w.Watch(r1)

	s := w.State()
	assert.True(t, s.Loading)
	assert.Nil(t, s.Data)
	sub.channel(2).pushDoc(docSnap(*r1, domain.Fields{"v": 1}))
	s = w.State()
	assert.False(t, s.Loading)
	assert.Equal(t, "1", s.Data.ID)
	assert.Equal(t, 1, sub.open())
}

func TestDocumentWatcherLoadTimeout(t *testing.T) {
	sub := &fakeSubscriber{}
	w := NewDocumentWatcher(context.Background(), sub, WithLoadTimeout(20*time.Millisecond))
	defer w.Close()

	w.Watch(domain.Doc("posts", "slow"))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := w.Await(ctx, Settled[*domain.Record])
	require.NoError(t, err)
	assert.ErrorIs(t, s.Err, ErrLoadTimeout)
	assert.Nil(t, s.Data)
	assert.Eventually(t, func() bool { return sub.open() == 0 }, time.Second, 5*time.Millisecond,
		"timed out channel is detached")
}

func TestDocumentWatcherContextCancelCloses(t *testing.T) {
	sub := &fakeSubscriber{}
	ctx, cancel := context.WithCancel(context.Background())
	w := NewDocumentWatcher(ctx, sub)
	w.Watch(domain.Doc("posts", "1"))
	cancel()

	require.Eventually(t, func() bool { return sub.open() == 0 }, time.Second, 5*time.Millisecond)
	w.Watch(domain.Doc("posts", "2"))
	assert.Len(t, sub.log(), 2, "closed watcher ignores Watch")
	_, err := w.Await(context.Background(), func(DocumentState) bool { return false })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDocumentWatcherAgainstMemoryStore(t *testing.T) {
	store := memory.NewStore(nil)
	defer func() { _ = store.Close() }()
	ctx := context.Background()
	ref := domain.Doc("posts", "p1")

	w := NewDocumentWatcher(ctx, store)
	defer w.Close()
	w.Watch(ref)

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	s, err := w.Await(waitCtx, Settled[*domain.Record])
	require.NoError(t, err)
	assert.Nil(t, s.Data)

	require.NoError(t, store.CommitBatch(ctx, domain.NewWriteBatch().Set(*ref, domain.Fields{"title": "Live"})))
	s, err = w.Await(waitCtx, func(s DocumentState) bool { return s.Data != nil })
	require.NoError(t, err)
	assert.Equal(t, "Live", s.Data.String("title"))
	assert.Equal(t, "p1", s.Data.ID)
}
