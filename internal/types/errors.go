package types

import (
	"errors"
	"fmt"
)

// ErrAuthRequired is returned when a mutating operation is attempted without
// an identity.
var ErrAuthRequired = errors.New("authentication required")

// GenerationErrorKind classifies a generation failure for user-facing text.
type GenerationErrorKind string

const (
	GenerationBusy        GenerationErrorKind = "busy"
	GenerationRateLimited GenerationErrorKind = "rate_limited"
	GenerationNetwork     GenerationErrorKind = "network"
	GenerationConfig      GenerationErrorKind = "config"
	GenerationGeneric     GenerationErrorKind = "generic"
)

// GenerationError is returned when the upstream generation service failed or
// produced an unusable payload after retries were exhausted.
type GenerationError struct {
	Kind GenerationErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("recipe generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// UserMessage returns the text the presentation layer should show.
func (e *GenerationError) UserMessage() string {
	switch e.Kind {
	case GenerationBusy:
		return "The recipe service is busy right now. Please try again in a moment."
	case GenerationRateLimited:
		return "Too many requests. Please wait a little before generating another recipe."
	case GenerationNetwork:
		return "Could not reach the recipe service. Check your connection and try again."
	case GenerationConfig:
		return "The recipe service is not configured. Contact the administrator."
	default:
		return "Something went wrong while generating the recipe. Please try again."
	}
}

// ValidationError is returned when a structurally complete response is
// missing required fields. Never retried.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("generated recipe is missing %s", e.Field)
}

// StorageError wraps a write-path failure in the recipe store. Read-path
// failures degrade to an empty collection instead of raising.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("recipe store %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
