package adventure

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("adventure not found")
	ErrQueueClosed = errors.New("work queue closed")
	ErrDuplicateID = errors.New("duplicate adventure id")
)

// InvalidDefinitionError reports a definition that breaks a load-time rule.
type InvalidDefinitionError struct {
	ID     int
	Reason string
}

func (e InvalidDefinitionError) Error() string {
	return fmt.Sprintf("invalid adventure %d: %s", e.ID, e.Reason)
}
