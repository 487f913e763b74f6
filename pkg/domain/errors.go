package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Operation identifies the kind of access that a rule evaluated.
type Operation string

// Operations understood by the access rules.
const (
	OperationGet    Operation = "get"
	OperationList   Operation = "list"
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationWrite  Operation = "write"
)

// IsWrite reports whether the operation mutates state.
func (o Operation) IsWrite() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationWrite:
		return true
	default:
		return false
	}
}

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrPermissionDenied matches every *PermissionError through errors.Is.
	ErrPermissionDenied = errors.New("permission denied")
)

// SecurityRuleContext records what was attempted when access was refused.
type SecurityRuleContext struct {
	Path      string    `json:"path"`
	Operation Operation `json:"operation"`
}

// PermissionError is a structured access failure. Context is set once at
// construction and never mutated afterwards.
type PermissionError struct {
	Context SecurityRuleContext
	Err     error
	message string
}

// NewPermissionError builds the error and its human readable message.
func NewPermissionError(path string, op Operation, cause error) *PermissionError {
	ctx := SecurityRuleContext{Path: path, Operation: op}
	pretty, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		pretty = []byte(fmt.Sprintf("%+v", ctx))
	}
	return &PermissionError{
		Context: ctx,
		Err:     cause,
		message: fmt.Sprintf("access rules blocked a request at '%s'.\nContext: %s", path, pretty),
	}
}

func (e *PermissionError) Error() string {
	return e.message
}

// Unwrap exposes the backend cause.
func (e *PermissionError) Unwrap() error {
	return e.Err
}

// Is matches ErrPermissionDenied.
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}
