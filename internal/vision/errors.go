package vision

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrEmptyImage is returned when an operation receives a raster with no pixels.
var ErrEmptyImage = errors.New("empty image")

// ImageReadError reports an input raster that could not be decoded.
type ImageReadError struct {
	Source string
	Err    error
}

func (e *ImageReadError) Error() string {
	return fmt.Sprintf("could not read image %s: %v", e.Source, e.Err)
}

func (e *ImageReadError) Unwrap() error {
	return e.Err
}

// DetectionError reports that every board detection strategy failed.
// Err combines the individual strategy failures.
type DetectionError struct {
	Err error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("board detection failed: %v", e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

// Failures returns the error of each strategy, in the order they ran.
func (e *DetectionError) Failures() []error {
	return multierr.Errors(e.Err)
}
