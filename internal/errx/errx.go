// Package errx provides small helpers for annotating sentinel errors
// while keeping errors.Is and errors.As intact.
package errx

import "fmt"

// Wrap returns an error that matches both the sentinel and the cause.
func Wrap(sentinel, cause error) error {
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// With returns the sentinel annotated with a formatted suffix.
// The format string may itself contain %w verbs.
func With(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w"+format, append([]any{sentinel}, args...)...)
}
