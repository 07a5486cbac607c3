package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")

	// ErrDuplicateID is returned when an annotation id is already taken.
	ErrDuplicateID = errors.New("duplicate annotation id")
	// ErrIDMismatch is returned by updates whose replacement carries a different id.
	ErrIDMismatch = errors.New("annotation id mismatch")

	ErrDuplicateLayer = errors.New("duplicate layer id")
	ErrReservedLayer  = errors.New("reserved layer")
	ErrLocked         = errors.New("layer is locked")

	// ErrInfeasible reports a geometry operation that produced no usable result.
	ErrInfeasible = errors.New("operation not feasible")

	ErrBatchActive = errors.New("batch already active")
	ErrNoBatch     = errors.New("no active batch")

	ErrInvalidDocument = errors.New("invalid document")
)
