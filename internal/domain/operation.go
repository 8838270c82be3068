package domain

import "time"

// OperationKind selects the remote write form used on replay.
type OperationKind string

const (
	OperationInsert OperationKind = "insert"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

// Valid reports whether k is one of the known kinds.
func (k OperationKind) Valid() bool {
	switch k {
	case OperationInsert, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// PendingOperation is a remote write deferred while offline.
// The JSON layout matches what earlier clients persisted, so queues
// written by them replay unchanged.
type PendingOperation struct {
	ID         string        `json:"id,omitempty"`
	Collection string        `json:"table"`
	Kind       OperationKind `json:"operation"`
	Payload    Record        `json:"data"`
	EnqueuedAt int64         `json:"timestamp"` // epoch milliseconds
}

// EnqueuedTime returns EnqueuedAt as a time.Time.
func (op PendingOperation) EnqueuedTime() time.Time {
	return time.UnixMilli(op.EnqueuedAt)
}

// TargetID is the identifier update and delete operations apply to.
func (op PendingOperation) TargetID() string {
	return op.Payload.ID()
}
