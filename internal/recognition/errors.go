package recognition

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/leonardotrapani/livecaption/internal/shutdown"
)

// Class is the reconnect decision for a stream failure.
type Class int

const (
	// ClassTransient failures reconnect.
	ClassTransient Class = iota
	// ClassClient failures end the session quietly.
	ClassClient
	// ClassShutdown failures propagate so the process can exit.
	ClassShutdown
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassClient:
		return "client"
	case ClassShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// ClientError marks a request the service rejected (bad configuration,
// authentication, quota). Retrying it cannot succeed.
type ClientError struct {
	Err error
}

func (e *ClientError) Error() string {
	if e == nil || e.Err == nil {
		return "recognition client error"
	}
	return e.Err.Error()
}

func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewClientError wraps err as a ClientError. A nil err stays nil.
func NewClientError(err error) error {
	if err == nil {
		return nil
	}
	return &ClientError{Err: err}
}

// TransientError marks a server or network failure worth reconnecting for.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "recognition transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewTransientError wraps err as a TransientError. A nil err stays nil.
func NewTransientError(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// clientCodes are gRPC codes that describe the request, not the server.
var clientCodes = map[codes.Code]bool{
	codes.InvalidArgument:    true,
	codes.PermissionDenied:   true,
	codes.Unauthenticated:    true,
	codes.ResourceExhausted:  true,
	codes.FailedPrecondition: true,
	codes.NotFound:           true,
	codes.Unimplemented:      true,
	codes.AlreadyExists:      true,
}

// Classify decides what the reconnect loop does with err. userRequested is
// the shutdown controller's flag and overrides everything else; a
// cancellation that the user did not ask for is transient.
func Classify(err error, userRequested bool) Class {
	if userRequested || errors.Is(err, shutdown.ErrRequested) {
		return ClassShutdown
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return ClassClient
	}
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return ClassTransient
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	if _, ok := status.FromError(err); ok {
		if clientCodes[status.Code(err)] {
			return ClassClient
		}
	}
	return ClassTransient
}
