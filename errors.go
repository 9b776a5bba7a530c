package fcgiclient

import (
	"fmt"

	"github.com/mazrean/fcgiclient/internal/id"
	"github.com/mazrean/fcgiclient/protocol"
)

// ErrIDSpaceExhausted is returned by Execute when no request id became
// free before the context deadline. The request was never sent.
var ErrIDSpaceExhausted = id.ErrExhausted

// ResponseIDMismatchError reports a response record whose request id
// matches no request currently in flight on the connection. It means
// the connection is desynced and should not be reused.
type ResponseIDMismatchError struct {
	ID uint16
}

func (e *ResponseIDMismatchError) Error() string {
	return fmt.Sprintf("response for unknown request id %d", e.ID)
}

// UnexpectedRecordTypeError reports a record type the server must never
// send in a response stream.
type UnexpectedRecordTypeError struct {
	Type protocol.RecordType
}

func (e *UnexpectedRecordTypeError) Error() string {
	return fmt.Sprintf("unexpected record type %s in response", e.Type)
}

// EndRequestError is a non-success protocol status decoded from an
// EndRequest record, carrying the server's application status code.
// The client never retries; callers decide whether reconnecting and
// resending makes sense (e.g. for StatusOverloaded).
type EndRequestError struct {
	Status    protocol.ProtocolStatus
	AppStatus uint32
}

func (e *EndRequestError) Error() string {
	switch e.Status {
	case protocol.StatusCantMpxConn:
		return fmt.Sprintf("this app can't multiplex connections [CantMpxConn]; app status: %d", e.AppStatus)
	case protocol.StatusOverloaded:
		return fmt.Sprintf("new request rejected; too busy [Overloaded]; app status: %d", e.AppStatus)
	case protocol.StatusUnknownRole:
		return fmt.Sprintf("role value not known [UnknownRole]; app status: %d", e.AppStatus)
	default:
		return fmt.Sprintf("request not complete [%s]; app status: %d", e.Status, e.AppStatus)
	}
}
