package main

import (
	"fmt"
)

// ValidationError reports a domain-level precondition failure: empty or
// duplicate node id, unknown resource kind, non-positive amount, or a
// quota violation. Always raised before any chain or consensus work.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// ConsensusRejectedError means the candidate block was well-formed but the
// roster did not reach the required vote count, or pre-validation failed.
// It carries the full vote tally.
type ConsensusRejectedError struct {
	Details VoteDetails
}

func (e *ConsensusRejectedError) Error() string {
	if e.Details.Reason != "" {
		return fmt.Sprintf("consensus rejected: %s (%d/%d votes)", e.Details.Reason, e.Details.VotesFor, e.Details.RequiredVotes)
	}
	return fmt.Sprintf("consensus rejected: %d of %d required votes", e.Details.VotesFor, e.Details.RequiredVotes)
}

// IntegrityError reports a chain hash/link mismatch or a snapshot checksum
// mismatch. Never auto-repaired; mutation halts until an operator resolves it.
type IntegrityError struct {
	Component string
	Reason    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation in %s: %s", e.Component, e.Reason)
}

// PersistenceError wraps a failed snapshot write or read
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
