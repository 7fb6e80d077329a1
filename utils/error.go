package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DescriptorError reports malformed build outputs or coordinates. It is never retried.
type DescriptorError struct {
	Coordinates string
	Message     string
}

func (e *DescriptorError) Error() string {
	if e.Coordinates == "" {
		return "invalid artifact descriptor: " + e.Message
	}
	return fmt.Sprintf("invalid artifact descriptor '%s': %s", e.Coordinates, e.Message)
}

func NewDescriptorError(coordinates, format string, a ...interface{}) *DescriptorError {
	return &DescriptorError{Coordinates: coordinates, Message: fmt.Sprintf(format, a...)}
}

type DuplicateTargetError struct {
	Name string
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("repository target '%s' is already registered", e.Name)
}

type UnknownTargetError struct {
	Name string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("repository target '%s' is not registered", e.Name)
}

// ConfigurationError reports a missing or invalid setting, such as an absent credential property.
type ConfigurationError struct {
	Property string
	Message  string
}

func (e *ConfigurationError) Error() string {
	if e.Property == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Property, e.Message)
}

// UploadError is returned when a single file could not be transferred to the repository.
// Transient errors (network failures, 5xx, 408, 429) may be retried.
type UploadError struct {
	Path       string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *UploadError) Error() string {
	var sb strings.Builder
	sb.WriteString("failed uploading '" + e.Path + "'")
	if e.StatusCode != 0 {
		sb.WriteString(fmt.Sprintf(" (status code: %d)", e.StatusCode))
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// NewUploadErrorFromStatus classifies an HTTP status code returned for an upload.
func NewUploadErrorFromStatus(path string, statusCode int, body string) *UploadError {
	uploadErr := &UploadError{Path: path, StatusCode: statusCode, Transient: IsTransientStatus(statusCode)}
	if body != "" {
		uploadErr.Err = errors.New(body)
	}
	return uploadErr
}

func IsTransientStatus(statusCode int) bool {
	return statusCode >= http.StatusInternalServerError ||
		statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests
}

// ValidationError is returned when the repository rejects the staged content on close.
type ValidationError struct {
	SessionId string
	Failures  []string
}

func (e *ValidationError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("staging session '%s' failed validation", e.SessionId)
	}
	return fmt.Sprintf("staging session '%s' failed validation: %s", e.SessionId, strings.Join(e.Failures, "; "))
}

// StagingStateError reports an attempted transition that the staging state machine does not allow.
type StagingStateError struct {
	SessionId string
	From      string
	To        string
}

func (e *StagingStateError) Error() string {
	return fmt.Sprintf("staging session '%s' cannot move from %s to %s", e.SessionId, e.From, e.To)
}

// IsTransient reports whether err is an UploadError that is worth retrying.
func IsTransient(err error) bool {
	var uploadErr *UploadError
	return errors.As(err, &uploadErr) && uploadErr.Transient
}

// IsForbidden checks whether the error was caused by a 401 or 403 response.
func IsForbidden(err error) bool {
	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		return false
	}
	return uploadErr.StatusCode == http.StatusForbidden || uploadErr.StatusCode == http.StatusUnauthorized
}
