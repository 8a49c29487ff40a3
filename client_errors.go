package mqtt311

import "errors"

// EventHandler receives client lifecycle events as error values. Inspect
// them with errors.Is and errors.As.
type EventHandler func(client *Client, event error)

// Sentinel events for the client lifecycle - check with errors.Is().
var (
	// ErrConnected is emitted when the client successfully connects.
	ErrConnected = errors.New("connected")

	// ErrDisconnected is emitted when the client disconnects gracefully.
	ErrDisconnected = errors.New("disconnected")

	// ErrConnectionLost is emitted when the connection is lost unexpectedly.
	ErrConnectionLost = errors.New("connection lost")
)

// Sentinel errors - check with errors.Is().
var (
	// ErrProtocol is the base error for all protocol violations.
	ErrProtocol = errors.New("protocol error")

	// ErrConnectionRefused is the base error for CONNACK refusals.
	ErrConnectionRefused = errors.New("connection refused")

	// ErrConnectionClosed is returned when the connection or the outbound
	// queue was closed while an operation was in flight.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrClientClosed is returned when an operation is attempted on a
	// closed client.
	ErrClientClosed = errors.New("client closed")

	// ErrNotConnected is returned when an operation requires an active
	// connection.
	ErrNotConnected = errors.New("not connected")

	// ErrKeepAliveTimeout is emitted when the server fails to answer a
	// PINGREQ within the keep-alive interval.
	ErrKeepAliveTimeout = errors.New("keep-alive timeout")

	// ErrSubscriptionRejected is returned when the server answers a
	// subscription with the 0x80 failure code.
	ErrSubscriptionRejected = errors.New("subscription rejected by server")
)

// ProtocolError reports a malformed frame, an unknown command, an
// unknown CONNACK return code or an invalid QoS value. It matches
// ErrProtocol with errors.Is().
type ProtocolError struct {
	message string
	cause   error
}

func (e *ProtocolError) Error() string {
	if e.cause != nil {
		return "protocol error: " + e.message + ": " + e.cause.Error()
	}
	return "protocol error: " + e.message
}

func (e *ProtocolError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrProtocol, e.cause}
	}
	return []error{ErrProtocol}
}

// newProtocolError creates a ProtocolError with an optional cause.
func newProtocolError(message string, cause error) *ProtocolError {
	return &ProtocolError{message: message, cause: cause}
}

// ConnectError is a valid CONNACK refusal. The ReturnCode carries the
// specific reason. It matches ErrConnectionRefused with errors.Is().
type ConnectError struct {
	ReturnCode ReturnCode
}

func (e *ConnectError) Error() string { return e.ReturnCode.String() }

func (e *ConnectError) Unwrap() error { return ErrConnectionRefused }

// NewConnectError creates a ConnectError from a CONNACK return code.
func NewConnectError(code ReturnCode) *ConnectError {
	return &ConnectError{ReturnCode: code}
}

// ConnectionLostError contains details about an unexpected disconnection.
// Extract with errors.As().
type ConnectionLostError struct {
	Cause error
}

func (e *ConnectionLostError) Error() string {
	if e.Cause != nil {
		return "connection lost: " + e.Cause.Error()
	}
	return "connection lost"
}

func (e *ConnectionLostError) Unwrap() error { return ErrConnectionLost }

// NewConnectionLostError creates a new ConnectionLostError.
func NewConnectionLostError(cause error) *ConnectionLostError {
	return &ConnectionLostError{Cause: cause}
}
