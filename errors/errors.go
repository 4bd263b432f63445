// Package errors defines all exported error sentinels for the staticmph library.
//
// This is the single source of truth for error values. Both the top-level
// staticmph package and internal algorithm packages import from here,
// ensuring errors.Is checks work across package boundaries.
package errors

import "errors"

// Input errors
var (
	ErrTooManyKeys  = errors.New("staticmph: key count exceeds maximum (256)")
	ErrDuplicateKey = errors.New("staticmph: duplicate key detected")
)

// Build errors
var (
	ErrPartitionFailed    = errors.New("staticmph: no bit-test scheme keeps every bucket within 64 keys")
	ErrMatrixSearchFailed = errors.New("staticmph: row mask search exhausted without separating a bucket")
	ErrBuildFailed        = errors.New("staticmph: table build failed")
)
