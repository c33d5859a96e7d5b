package service

import "errors"

// Failure classes reported per source and per run.
var (
	// ErrProducer marks a source whose batch could not be produced. The
	// source is skipped for the run; its graph state is untouched.
	ErrProducer = errors.New("producer failed")
	// ErrStoreTransaction marks an ingestion transaction that rolled back.
	ErrStoreTransaction = errors.New("store transaction failed")
	// ErrInvariantViolation marks a store that holds more than one active
	// claim for a slot. Ingestion aborts and nothing is written.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrInferenceRebuild marks a failed rebuild. Committed ingestion stays.
	ErrInferenceRebuild = errors.New("inference rebuild failed")
)

var (
	ErrInvalidFact     = errors.New("invalid fact")
	ErrSourceMismatch  = errors.New("fact source does not match batch source")
	ErrEmptySourceID   = errors.New("source_id is required")
	ErrEntityNotFound  = errors.New("entity not found")
	ErrClientNotFound  = errors.New("client not found")
	ErrClientConflict  = errors.New("a client for this source already exists")
	ErrClientNameEmpty = errors.New("name is required")
	ErrUnknownSource   = errors.New("unknown source")
)
