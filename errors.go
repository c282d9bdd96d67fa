package statsig

import (
	"errors"
	"fmt"
)

// Error Variables
type StatsigError error

var (
	ErrAlreadyInitialized StatsigError = errors.New("client already initialized")
	ErrUninitialized      StatsigError = errors.New("must Initialize before calling")
	ErrInstantiation      StatsigError = errors.New("failed to instantiate client")
	ErrShutdownTimeout    StatsigError = errors.New("timed out draining pending events")
	ErrNetworkRequest     StatsigError = errors.New("failed network request")
	ErrFailedLogEvent     StatsigError = errors.New("failed to log events")
	ErrDataAdapter        StatsigError = errors.New("failed data adapter")
)

type RequestMetadata struct {
	StatusCode int
	Endpoint   string
}

type TransportError struct {
	RequestMetadata *RequestMetadata
	Err             error
}

func (e *TransportError) Error() string {
	if e.RequestMetadata != nil {
		return fmt.Sprintf("Failed request to %s with status %d: %s", e.RequestMetadata.Endpoint, e.RequestMetadata.StatusCode, e.Err.Error())
	} else {
		return e.Err.Error()
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrNetworkRequest }

type LogEventError struct {
	Err    error
	Events int
}

func (e *LogEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Failed to log %d events: %s", e.Events, e.Err.Error())
	} else {
		return fmt.Sprintf("Failed to log %d events", e.Events)
	}
}

func (e *LogEventError) Unwrap() error { return e.Err }

func (e *LogEventError) Is(target error) bool { return target == ErrFailedLogEvent }

type DataAdapterError struct {
	Err    error
	Method string
}

func (e *DataAdapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Error calling data adapter %s: %s", e.Method, e.Err.Error())
	} else {
		return fmt.Sprintf("Error calling data adapter %s", e.Method)
	}
}

func (e *DataAdapterError) Unwrap() error { return e.Err }

func (e *DataAdapterError) Is(target error) bool { return target == ErrDataAdapter }
