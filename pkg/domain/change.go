package domain

// Action describes the type of change applied to a document.
type Action string

// Change actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change records a committed mutation. Before is nil for creates and After is
// nil for deletes.
type Change struct {
	Collection string
	ID         string
	Action     Action
	Before     *Record
	After      *Record
}

// Ref returns the reference of the changed document.
func (c Change) Ref() DocumentRef {
	return DocumentRef{Collection: c.Collection, ID: c.ID}
}
