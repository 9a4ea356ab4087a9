package core

import (
	"fmt"
	"strings"
)

// MalformedInputError reports required input fields missing from a
// submitted batch. It aborts the whole batch before any stage runs.
type MalformedInputError struct {
	Missing []string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: missing required fields: %s", strings.Join(e.Missing, ", "))
}

// ScoringModelError reports a feature-extraction or model failure for one
// recipient in one stage. The stage substitutes its neutral default score
// and the recipient proceeds.
type ScoringModelError struct {
	Stage string
	Err   error
}

func (e *ScoringModelError) Error() string {
	return fmt.Sprintf("scoring stage %s failed: %v", e.Stage, e.Err)
}

func (e *ScoringModelError) Unwrap() error { return e.Err }

// PersistenceError reports a failed batch write. The batch is rolled back
// and nothing from it survives.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
