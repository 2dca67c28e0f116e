package td2d

import (
	"fmt"
)

// InvalidInputError reports a malformed image or configuration. It aborts the
// run.
type InvalidInputError struct {
	// What names the offending input, e.g. "image" or "config".
	What string
	Err  error
}

func (e *InvalidInputError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid %s", e.What)
	}
	return fmt.Sprintf("invalid %s: %v", e.What, e.Err)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

// DegenerateGeometryError reports a candidate whose corners could not be
// fitted. The candidate is dropped; the run continues.
type DegenerateGeometryError struct {
	Candidate int
	Err       error
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("candidate %d: degenerate geometry: %v", e.Candidate, e.Err)
}

func (e *DegenerateGeometryError) Unwrap() error { return e.Err }

// UncalibratedError reports that world coordinates were requested without a
// calibration transform.
type UncalibratedError struct{}

func (e *UncalibratedError) Error() string {
	return "world coordinates requested without a calibration transform"
}
