package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when a completion or embedding call
	// fails for any general reason
	ErrGenerationFailed = errors.New("external generation service call failed")

	// ErrInvalidResponse is returned when the service response cannot be
	// parsed or does not match the request cardinality
	ErrInvalidResponse = errors.New("invalid response from generation service")

	// ErrContentBlocked is returned when the service blocks content due to
	// safety filters
	ErrContentBlocked = errors.New("content blocked by generation service safety filters")

	// ErrTransientFailure is returned for temporary errors that might
	// resolve on retry
	ErrTransientFailure = errors.New("transient error calling generation service")

	// ErrInvalidConfig is returned when the service configuration is invalid
	ErrInvalidConfig = errors.New("invalid generation service configuration")
)
