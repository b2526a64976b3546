package engine

import "errors"

var (
	// ErrProviderUnavailable signals the semantic provider (or cross-encoder)
	// could not serve a call. Search degrades to the remaining signals.
	ErrProviderUnavailable = errors.New("semantic provider unavailable")

	// ErrInvalidConfig is wrapped by every configuration setter rejection.
	// Setters fail fast and never clamp silently.
	ErrInvalidConfig = errors.New("invalid configuration")
)
