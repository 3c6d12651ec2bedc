// Package faults defines the error kinds a call request can end with and
// how each one surfaces at the HTTP boundary.
package faults

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports missing or unusable caller input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConfigurationError reports a required process-wide secret or setting that is absent.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.Message }

// UpstreamError wraps a failure returned by the recognition, generation or
// synthesis collaborator.
type UpstreamError struct {
	// Provider names the collaborator (e.g. "google-speech", "groq").
	Provider string

	// StatusCode is the HTTP status reported by the collaborator, 0 when the
	// call never produced a response.
	StatusCode int

	Err error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func Validation(message string) error {
	return &ValidationError{Message: message}
}

func Configuration(format string, args ...any) error {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps err with provider context. A nil err stays nil and an error
// that is already an *UpstreamError is returned unchanged.
func Upstream(provider string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Provider: provider, StatusCode: statusCode, Err: err}
}

// HTTPStatus maps an error to the status code written to the caller.
func HTTPStatus(err error) int {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Kind returns a short label for logs and metrics.
func Kind(err error) string {
	var (
		ve *ValidationError
		ce *ConfigurationError
		ue *UpstreamError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ce):
		return "configuration"
	case errors.As(err, &ue):
		return "upstream"
	default:
		return "internal"
	}
}
