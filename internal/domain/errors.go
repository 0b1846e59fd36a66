package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized = errors.New("sync engine is not initialized")
	ErrRoomNotFound   = errors.New("room not found")
	ErrEmptyContent   = errors.New("message content is empty")
	ErrNotConnected   = errors.New("event channel is not connected")
)

// ConfigurationError means the chat service rejected the application
// configuration: unknown app id, domain not allowed, or a bad token.
// It is terminal for the current initialization attempt.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransportError is a failed or malformed request/response exchange.
// StatusCode is zero when no HTTP response was received.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("request %s failed: %v", e.Endpoint, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("request %s failed (%d): %s", e.Endpoint, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("request %s rejected: %s", e.Endpoint, e.Message)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConnectionError is a failure of the persistent event channel.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is, or wraps, a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsTransportError reports whether err is, or wraps, a *TransportError.
func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsConnectionError reports whether err is, or wraps, a *ConnectionError.
func IsConnectionError(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}
