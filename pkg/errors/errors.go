// Package errors defines the shared error taxonomy for modshare. Components
// wrap these sentinels with context so callers can classify failures with
// errors.Is while logs keep the full chain.
package errors

import "fmt"

// Common error types.
var (
	// Cache and local I/O errors.
	ErrCacheWrite     = fmt.Errorf("failed to write cache entry")
	ErrCacheDirectory = fmt.Errorf("invalid cache directory")
	ErrInvalidPath    = fmt.Errorf("invalid path")

	// Transfer errors.
	ErrTransport      = fmt.Errorf("transfer failed")
	ErrForbidden      = fmt.Errorf("recipient rejected by relay")
	ErrTooLarge       = fmt.Errorf("package exceeds size limit")
	ErrNotFound       = fmt.Errorf("not found on relay")
	ErrHashMismatch   = fmt.Errorf("digest mismatch")
	ErrLocallyMissing = fmt.Errorf("package bytes missing locally")

	// Coordinator state errors.
	ErrBusy           = fmt.Errorf("operation already in progress")
	ErrAlreadyPending = fmt.Errorf("transfer already pending")

	// Config errors.
	ErrEmptyConfigPath  = fmt.Errorf("config file path cannot be empty")
	ErrConfigParse      = fmt.Errorf("failed to parse config")
	ErrConfigValidation = fmt.Errorf("invalid configuration")

	// Validation errors.
	ErrValidation = fmt.Errorf("validation failed")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
