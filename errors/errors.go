package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	ErrorNone ErrorType = iota
	ErrorTransport
	ErrorProtocol
	ErrorInvalidArgument
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTransport:
		return "Transport error"
	case ErrorProtocol:
		return "Protocol error"
	case ErrorInvalidArgument:
		return "Invalid argument"
	default:
		return "Unknown error"
	}
}

// TransportError represents transport-layer specific errors
type TransportError int

const (
	TransportErrorNone TransportError = iota
	TransportErrorDnsFailure
	TransportErrorSocketCreateFailure
	TransportErrorSocketConnectFailure
	TransportErrorTlsHandshakeFailure
	TransportErrorSocketReadFailure
	TransportErrorSocketWriteFailure
	TransportErrorConnectionClosed
	TransportErrorNotConnected
	TransportErrorDupFailure
	TransportErrorIoUringInit
	TransportErrorIoUringSubmit
)

func (e TransportError) String() string {
	switch e {
	case TransportErrorDnsFailure:
		return "address resolution failed"
	case TransportErrorSocketCreateFailure:
		return "socket creation failed"
	case TransportErrorSocketConnectFailure:
		return "connect failed"
	case TransportErrorTlsHandshakeFailure:
		return "TLS handshake failed"
	case TransportErrorSocketReadFailure:
		return "read failed"
	case TransportErrorSocketWriteFailure:
		return "write failed"
	case TransportErrorConnectionClosed:
		return "connection closed"
	case TransportErrorNotConnected:
		return "not connected"
	case TransportErrorDupFailure:
		return "socket duplication failed"
	case TransportErrorIoUringInit:
		return "io_uring setup failed"
	case TransportErrorIoUringSubmit:
		return "io_uring submission failed"
	default:
		return fmt.Sprintf("transport error %d", int(e))
	}
}

// ProtocolError represents protocol-layer specific errors
type ProtocolError int

const (
	ProtocolErrorNone ProtocolError = iota
	ProtocolErrorInvalidStatusLine
	ProtocolErrorInvalidHeader
	ProtocolErrorMissingContentLength
	ProtocolErrorInvalidContentLength
	ProtocolErrorInvalidBodyEncoding
	ProtocolErrorIncompleteResponse
)

func (e ProtocolError) String() string {
	switch e {
	case ProtocolErrorInvalidStatusLine:
		return "malformed status line"
	case ProtocolErrorInvalidHeader:
		return "malformed header line"
	case ProtocolErrorMissingContentLength:
		return "no Content-Length provided"
	case ProtocolErrorInvalidContentLength:
		return "invalid Content-Length"
	case ProtocolErrorInvalidBodyEncoding:
		return "body is not valid UTF-8"
	case ProtocolErrorIncompleteResponse:
		return "incomplete response"
	default:
		return fmt.Sprintf("protocol error %d", int(e))
	}
}

// HttpError is the main error type for the HTTP client
type HttpError struct {
	Type          ErrorType
	TransportErr  TransportError
	ProtocolErr   ProtocolError
	Message       string
	UnderlyingErr error
}

// Error implements the error interface
func (e *HttpError) Error() string {
	if e == nil {
		return "no error"
	}

	var typeStr string
	switch e.Type {
	case ErrorTransport:
		typeStr = fmt.Sprintf("%s (%s)", e.Type, e.TransportErr)
	case ErrorProtocol:
		typeStr = fmt.Sprintf("%s (%s)", e.Type, e.ProtocolErr)
	default:
		typeStr = e.Type.String()
	}

	if e.Message != "" {
		typeStr = fmt.Sprintf("%s: %s", typeStr, e.Message)
	}

	if e.UnderlyingErr != nil {
		return fmt.Sprintf("%s (caused by: %v)", typeStr, e.UnderlyingErr)
	}

	return typeStr
}

// Unwrap returns the underlying error for error chain support
func (e *HttpError) Unwrap() error {
	return e.UnderlyingErr
}

// Is reports whether target is an *HttpError with the same category and code.
// Message and cause are ignored, so a bare &HttpError{...} works as a sentinel.
func (e *HttpError) Is(target error) bool {
	t, ok := target.(*HttpError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Type == t.Type && e.TransportErr == t.TransportErr && e.ProtocolErr == t.ProtocolErr
}

// NewTransportError creates a new transport error
func NewTransportError(err TransportError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorTransport,
		TransportErr:  err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewProtocolError creates a new protocol error
func NewProtocolError(err ProtocolError, message string) *HttpError {
	return &HttpError{
		Type:        ErrorProtocol,
		ProtocolErr: err,
		Message:     message,
	}
}

// WrapProtocolError creates a protocol error carrying the cause that triggered it
func WrapProtocolError(err ProtocolError, message string, underlying error) *HttpError {
	e := NewProtocolError(err, message)
	e.UnderlyingErr = underlying
	return e
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string) *HttpError {
	return &HttpError{
		Type:    ErrorInvalidArgument,
		Message: message,
	}
}

// IsTransport reports whether err carries the given transport code anywhere in its chain.
func IsTransport(err error, code TransportError) bool {
	var httpErr *HttpError
	return stderrors.As(err, &httpErr) && httpErr.Type == ErrorTransport && httpErr.TransportErr == code
}

// IsProtocol reports whether err carries the given protocol code anywhere in its chain.
func IsProtocol(err error, code ProtocolError) bool {
	var httpErr *HttpError
	return stderrors.As(err, &httpErr) && httpErr.Type == ErrorProtocol && httpErr.ProtocolErr == code
}
