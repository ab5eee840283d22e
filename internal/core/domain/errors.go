package domain

import "errors"

// Structural failures carry typed errors so callers can branch on them.
// NaN samples are deliberately not in this list: a NaN input produces a NaN
// output element and the batch keeps going.
var (
	// ErrShapeMismatch reports index-aligned input slices of unequal length.
	ErrShapeMismatch = errors.New("input slices have mismatched lengths")

	// ErrIndexOutOfRange reports an out-of-bounds series access.
	ErrIndexOutOfRange = errors.New("index outside series bounds")

	// ErrModelNotFound reports that no geomagnetic model covers the
	// requested epoch year.
	ErrModelNotFound = errors.New("no geomagnetic model for epoch")

	// ErrResourceNotFound reports a missing coefficient resource backing an
	// otherwise known model epoch.
	ErrResourceNotFound = errors.New("coefficient resource not found")

	// ErrDeploymentNotFound reports an unknown deployment ID.
	ErrDeploymentNotFound = errors.New("deployment not found")
)
