// Package binder keeps the state behind a "merge pages from many documents"
// workflow: imported source documents, page sub-ranges cut from them, the
// ordered merge list, and rendered page previews.
//
// All durable state lives in a Store, an append-only journal of JSON lines
// where every mutation belongs to a transaction terminated by a checksummed
// commit record. A Registry sits on top of the Store and owns the cascading
// rules: removing a document removes its sub-ranges, every merge item that
// points at either, and their cached previews, in one transaction. Rendered
// pages are held in a fixed-capacity PageCache whose handles are explicitly
// revoked on eviction, and a Merger turns the merge list into a single
// output through an external Composer.
package binder

import "errors"

// Sentinel errors for programmatic handling. Callers use errors.Is to tell
// expected outcomes (ErrValidation, ErrNotFound) from collaborator failures
// (ErrRender) and persistence failures (ErrStorage, ErrCorruptRecord).
var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrRender         = errors.New("render failed")
	ErrStorage        = errors.New("storage failed")
	ErrClosed         = errors.New("store is closed")
	ErrReadOnly       = errors.New("transaction is read-only")
	ErrCorruptHeader  = errors.New("corrupt header")
	ErrCorruptRecord  = errors.New("corrupt record")
	ErrRecordTooLarge = errors.New("record exceeds maximum size")
	ErrDecompress     = errors.New("decompression failed")
)

// Validation outcomes. Both wrap ErrValidation.
var (
	ErrInvalidRange   = validation("invalid page range")
	ErrDuplicateRange = validation("duplicate page range")
	ErrInvalidKind    = validation("invalid merge item kind")
)

type validationError struct{ msg string }

func validation(msg string) error { return &validationError{msg} }

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }
