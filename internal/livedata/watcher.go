package livedata

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"nexonsite/pkg/domain"
)

// opener subscribes the current reference. Callbacks must report through
// watcher.apply and watcher.fail with the generation they were opened for.
type opener func(ctx context.Context, gen uint64) (unsubscribe func())

// watcher is the state machine shared by document and collection watchers.
//
// opMu serializes Watch, Refresh and Close, so the previous channel is always
// detached before the next one opens. mu guards state and is the only lock
// taken by channel callbacks. Every detach bumps gen; callbacks carrying an
// older generation are dropped.
type watcher[T any] struct {
	kind  string
	idle  T
	clone func(T) T
	cfg   config
	base  context.Context

	opMu sync.Mutex

	mu       sync.Mutex
	bound    bool
	key      string
	active   bool
	path     string
	op       domain.Operation
	open     opener
	gen      uint64
	terminal bool
	closed   bool
	state    State[T]
	changed  chan struct{}
	unsub    func()
	timer    *time.Timer
	stopCtx  func() bool
}

func newWatcher[T any](ctx context.Context, kind string, idle T, clone func(T) T, opts []Option) *watcher[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	w := &watcher[T]{
		kind:    kind,
		idle:    idle,
		clone:   clone,
		cfg:     newConfig(opts),
		base:    ctx,
		state:   State[T]{Loading: true},
		changed: make(chan struct{}),
	}
	w.stopCtx = context.AfterFunc(ctx, w.close)
	return w
}

// setLocked replaces the state and wakes Snapshot waiters.
func (w *watcher[T]) setLocked(s State[T]) {
	w.state = s
	close(w.changed)
	w.changed = make(chan struct{})
}

// detachLocked invalidates the current channel and returns its unsubscribe
// function, to be called once mu is released.
func (w *watcher[T]) detachLocked() func() {
	w.gen++
	w.terminal = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	unsub := w.unsub
	w.unsub = nil
	return unsub
}

func (w *watcher[T]) release(unsub func()) {
	if unsub == nil {
		return
	}
	unsub()
	w.cfg.metrics.SubscriptionClosed(w.kind)
	w.cfg.logger.Debug("live channel closed", zap.String("kind", w.kind))
}

func (w *watcher[T]) bind(key string, active bool, path string, op domain.Operation, open opener, force bool) {
	w.opMu.Lock()
	defer w.opMu.Unlock()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if !force && w.bound && w.key == key && w.active == active {
		w.mu.Unlock()
		return
	}
	previous := w.detachLocked()
	w.bound, w.key, w.active = true, key, active
	w.path, w.op, w.open = path, op, open
	if !active {
		w.setLocked(State[T]{Data: w.idle})
		w.mu.Unlock()
		w.release(previous)
		return
	}
	w.setLocked(State[T]{Loading: true})
	gen := w.gen
	w.mu.Unlock()

	w.release(previous)
	w.cfg.logger.Debug("live channel opening", zap.String("kind", w.kind), zap.String("path", path))
	unsub := open(w.base, gen)
	w.cfg.metrics.SubscriptionOpened(w.kind)

	w.mu.Lock()
	if w.gen != gen || w.terminal {
		w.mu.Unlock()
		w.release(unsub)
		return
	}
	w.unsub = unsub
	if w.cfg.loadTimeout > 0 && w.state.Loading {
		w.timer = time.AfterFunc(w.cfg.loadTimeout, func() { w.timeout(gen) })
	}
	w.mu.Unlock()
}

func (w *watcher[T]) refresh() {
	w.mu.Lock()
	bound, key, active, path, op, open := w.bound, w.key, w.active, w.path, w.op, w.open
	w.mu.Unlock()
	if !bound {
		return
	}
	w.bind(key, active, path, op, open, true)
}

func (w *watcher[T]) apply(gen uint64, data T) {
	w.mu.Lock()
	if gen != w.gen || w.terminal || w.closed {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.setLocked(State[T]{Data: data})
	w.mu.Unlock()
	w.cfg.metrics.SnapshotApplied(w.kind)
}

// fail moves the current reference to its terminal failed state. The channel
// is detached and the translated error is emitted outside the lock.
func (w *watcher[T]) fail(gen uint64, cause error) {
	w.mu.Lock()
	if gen != w.gen || w.terminal || w.closed {
		w.mu.Unlock()
		return
	}
	perr := TranslateError(w.path, w.op, cause)
	w.terminal = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	unsub := w.unsub
	w.unsub = nil
	w.setLocked(State[T]{Data: w.idle, Err: perr})
	w.mu.Unlock()

	w.release(unsub)
	w.cfg.metrics.SubscriptionFailed(w.kind, "error")
	w.cfg.logger.Warn("live channel failed",
		zap.String("kind", w.kind),
		zap.String("path", perr.Context.Path),
		zap.String("operation", string(perr.Context.Operation)),
		zap.Error(cause))
	w.cfg.emitter.Emit(EventPermissionError, perr)
}

func (w *watcher[T]) timeout(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || w.terminal || w.closed || !w.state.Loading {
		w.mu.Unlock()
		return
	}
	w.terminal = true
	w.timer = nil
	unsub := w.unsub
	w.unsub = nil
	path := w.path
	w.setLocked(State[T]{Data: w.idle, Err: ErrLoadTimeout})
	w.mu.Unlock()

	w.release(unsub)
	w.cfg.metrics.SubscriptionFailed(w.kind, "timeout")
	w.cfg.logger.Warn("live channel timed out", zap.String("kind", w.kind), zap.String("path", path),
		zap.Duration("timeout", w.cfg.loadTimeout))
}

func (w *watcher[T]) close() {
	w.opMu.Lock()
	defer w.opMu.Unlock()
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	unsub := w.detachLocked()
	if w.state.Loading {
		w.setLocked(State[T]{Data: w.idle, Err: context.Canceled})
	} else {
		w.setLocked(w.state)
	}
	w.mu.Unlock()
	w.release(unsub)
	w.stopCtx()
}

func (w *watcher[T]) snapshot() (State[T], <-chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.state
	s.Data = w.clone(s.Data)
	return s, w.changed
}

func (w *watcher[T]) await(ctx context.Context, pred func(State[T]) bool) (State[T], error) {
	for {
		s, changed := w.snapshot()
		if pred(s) {
			return s, nil
		}
		w.mu.Lock()
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return s, context.Canceled
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-changed:
		}
	}
}
