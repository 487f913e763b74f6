package livedata

import (
	"errors"

	"nexonsite/pkg/domain"
)

// UnknownPath stands in when a reference's canonical path cannot be recovered.
const UnknownPath = "unknown path"

// ErrLoadTimeout is recorded in state when no snapshot arrives in time.
var ErrLoadTimeout = errors.New("live data: timed out waiting for first snapshot")

// TranslateError builds the structured error reported for a failed channel.
// It has no side effects; callers publish the result on an Emitter.
func TranslateError(path string, op domain.Operation, cause error) *domain.PermissionError {
	if path == "" {
		path = UnknownPath
	}
	return domain.NewPermissionError(path, op, cause)
}

func queryPath(q *domain.Query) string {
	if q == nil || q.Path() == "" {
		return UnknownPath
	}
	return q.Path()
}
