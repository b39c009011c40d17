package report

import (
	"errors"
	"fmt"
)

// ErrDuplicateEntry means the user already has an entry for the day.
var ErrDuplicateEntry = errors.New("entry for this day already exists")

// UserInputError is an answer the current state cannot accept. The dialogue
// recovers from it by asking again.
type UserInputError struct {
	State State
	Input string
}

func (e *UserInputError) Error() string {
	return fmt.Sprintf("unexpected input %q in state %s", e.Input, e.State)
}

// StorageFault wraps a ledger failure that survived the ledger's own retry.
type StorageFault struct {
	Op  string
	Err error
}

func (e *StorageFault) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageFault) Unwrap() error {
	return e.Err
}
