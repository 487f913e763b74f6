package livedata

// State is what a watcher exposes to its consumer. Loading stays true until
// the first snapshot or error for the current reference.
type State[T any] struct {
	Data    T
	Loading bool
	Err     error
}

// Settled reports whether the state is no longer loading.
func Settled[T any](s State[T]) bool {
	return !s.Loading
}
