package db

import "github.com/google/uuid"

// TransactionID is an opaque, process-unique identifier scoping locks
// and dirty-page ownership. Value equality suffices; it is backed by a
// random UUID rather than a counter so ids remain unique across
// process restarts and concurrent callers with no shared sequence to
// coordinate.
type TransactionID struct {
	id uuid.UUID
}

// NewTransactionID generates a fresh transaction id.
func NewTransactionID() TransactionID {
	return TransactionID{id: uuid.New()}
}

func (t TransactionID) String() string {
	return t.id.String()
}
