package livedata

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"nexonsite/pkg/domain"
)

// EventPermissionError carries a *domain.PermissionError payload.
const EventPermissionError = "permission-error"

// Handler receives an event payload.
type Handler func(payload any)

// Listener is a registration returned by Emitter.On.
type Listener struct {
	event   string
	handler Handler
	emitter *Emitter
}

// Remove unregisters the listener. It is safe to call more than once.
func (l *Listener) Remove() {
	if l == nil || l.emitter == nil {
		return
	}
	l.emitter.RemoveListener(l.event, l)
}

// Emitter is a named-event fan-out bus. Emit calls every listener of the
// event synchronously, in registration order.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[string][]*Listener
}

// NewEmitter returns an emitter without listeners.
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[string][]*Listener)}
}

var (
	defaultEmitter     *Emitter
	defaultEmitterOnce sync.Once
)

// DefaultEmitter returns the process-wide emitter used when a watcher is not
// given one.
func DefaultEmitter() *Emitter {
	defaultEmitterOnce.Do(func() { defaultEmitter = NewEmitter() })
	return defaultEmitter
}

// On registers handler for event.
func (e *Emitter) On(event string, handler Handler) *Listener {
	l := &Listener{event: event, handler: handler, emitter: e}
	e.mu.Lock()
	e.listeners[event] = append(e.listeners[event], l)
	e.mu.Unlock()
	return l
}

// RemoveListener unregisters l and reports whether it was registered.
func (e *Emitter) RemoveListener(event string, l *Listener) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	current := e.listeners[event]
	for i, candidate := range current {
		if candidate == l {
			next := make([]*Listener, 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			if len(next) == 0 {
				delete(e.listeners, event)
			} else {
				e.listeners[event] = next
			}
			return true
		}
	}
	return false
}

// Emit delivers payload to every listener of event and returns how many were
// called. Listeners run outside the emitter lock.
func (e *Emitter) Emit(event string, payload any) int {
	e.mu.RLock()
	listeners := e.listeners[event]
	e.mu.RUnlock()
	for _, l := range listeners {
		l.handler(payload)
	}
	return len(listeners)
}

// ListenerCount returns the number of listeners registered for event.
func (e *Emitter) ListenerCount(event string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[event])
}

// InstallErrorListener registers the logging sink for permission errors. In
// strict mode the sink panics with the error after logging it, which surfaces
// access misconfiguration during development. The returned function removes
// the sink and must be called on teardown.
func InstallErrorListener(e *Emitter, logger *zap.Logger, strict bool) (uninstall func()) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := e.On(EventPermissionError, func(payload any) {
		err, _ := payload.(error)
		if err == nil {
			logger.Warn("permission-error event without error payload", zap.Any("payload", payload))
			return
		}
		fields := []zap.Field{zap.Error(err)}
		var perr *domain.PermissionError
		if errors.As(err, &perr) {
			fields = append(fields,
				zap.String("path", perr.Context.Path),
				zap.String("operation", string(perr.Context.Operation)))
		}
		logger.Error("access rules blocked a request", fields...)
		if strict {
			panic(err)
		}
	})
	return l.Remove
}
