package transport

import "fmt"

// ErrorCode identifies the class of a transport error.
type ErrorCode uint8

// Error kinds surfaced by the connection core.
const (
	NoError ErrorCode = iota
	InternalError
	NoMemory
	NoBuffer
	ProtocolViolation
	FlowControlError
	StreamInUse
	StreamIDBlocked
	StreamDataBlocked
	InvalidArgument
	InvalidState
	BadPacketHash
	CallbackFailure
)

var errorCodeNames = [...]string{
	"no_error",
	"internal_error",
	"no_memory",
	"no_buffer",
	"protocol_violation",
	"flow_control_error",
	"stream_in_use",
	"stream_id_blocked",
	"stream_data_blocked",
	"invalid_argument",
	"invalid_state",
	"bad_packet_hash",
	"callback_failure",
}

func (c ErrorCode) String() string {
	if int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return fmt.Sprintf("error_code_%d", uint8(c))
}

// Error is the error type returned by every core entry point.
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func newError(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// CodeOf extracts the ErrorCode carried by err, or InternalError if err does
// not originate from this package.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return NoError
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return InternalError
}
