package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures shared by the engine, the
// bundle pipeline and the stores.
// -----------------------------------------------------------------------------

// Document errors
var (
	ErrInvalidDocument = errors.New("invalid exercise document")
	ErrUnknownGroup    = errors.New("unknown group")
	ErrUnknownItem     = errors.New("unknown audio item")
)

// Result errors
var (
	ErrNoResult = errors.New("no result recorded")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)
