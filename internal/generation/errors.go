package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrGenerationFailed matches any *GenerationFailedError.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrInvalidConfig indicates a backend could not be configured.
	ErrInvalidConfig = errors.New("invalid generation config")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("generator closed")
)

// GenerationFailedError reports a failed model call.
type GenerationFailedError struct {
	Model string
	Err   error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generation failed (model %s): %v", e.Model, e.Err)
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrGenerationFailed.
func (e *GenerationFailedError) Is(target error) bool {
	return target == ErrGenerationFailed
}
