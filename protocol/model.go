// Package protocol implements the FastCGI 1.0 record layer: the fixed
// 8-byte header, the begin/end request bodies and the name-value pair
// encoding used for Params streams.
//
// See https://fastcgi-archives.github.io/FastCGI_Specification.html
package protocol

// Version1 is the only FastCGI protocol version in existence.
const Version1 uint8 = 1

// HeaderLen is the size of a record header on the wire.
const HeaderLen = 8

// MaxContentLen is the largest content block a single record can carry.
const MaxContentLen = 0xffff

// RecordType is the type tag of a FastCGI record.
type RecordType uint8

const (
	RecordBeginRequest    RecordType = 1
	RecordAbortRequest    RecordType = 2
	RecordEndRequest      RecordType = 3
	RecordParams          RecordType = 4
	RecordStdin           RecordType = 5
	RecordStdout          RecordType = 6
	RecordStderr          RecordType = 7
	RecordData            RecordType = 8
	RecordGetValues       RecordType = 9
	RecordGetValuesResult RecordType = 10
	RecordUnknownType     RecordType = 11
)

// RecordTypeFromByte maps a wire byte to a RecordType. Tags outside the
// known range decode to RecordUnknownType instead of failing decode.
func RecordTypeFromByte(b uint8) RecordType {
	if b >= 1 && b <= 10 {
		return RecordType(b)
	}
	return RecordUnknownType
}

// String returns the record type name for logging.
func (t RecordType) String() string {
	switch t {
	case RecordBeginRequest:
		return "BeginRequest"
	case RecordAbortRequest:
		return "AbortRequest"
	case RecordEndRequest:
		return "EndRequest"
	case RecordParams:
		return "Params"
	case RecordStdin:
		return "Stdin"
	case RecordStdout:
		return "Stdout"
	case RecordStderr:
		return "Stderr"
	case RecordData:
		return "Data"
	case RecordGetValues:
		return "GetValues"
	case RecordGetValuesResult:
		return "GetValuesResult"
	default:
		return "UnknownType"
	}
}

// Role is the application behavior mode requested in a begin request.
// This client only ever issues RoleResponder.
type Role uint16

const (
	RoleResponder  Role = 1
	RoleAuthorizer Role = 2
	RoleFilter     Role = 3
)

// ProtocolStatus is the server-reported outcome code carried in an end
// request body, distinct from the application's own exit status.
type ProtocolStatus uint8

const (
	// StatusRequestComplete signals normal completion.
	StatusRequestComplete ProtocolStatus = 0
	// StatusCantMpxConn means the app can't multiplex this connection.
	StatusCantMpxConn ProtocolStatus = 1
	// StatusOverloaded means the request was rejected as too busy.
	StatusOverloaded ProtocolStatus = 2
	// StatusUnknownRole means the requested role is not supported.
	StatusUnknownRole ProtocolStatus = 3
)

// String returns the protocol status name for logging and error messages.
func (s ProtocolStatus) String() string {
	switch s {
	case StatusRequestComplete:
		return "RequestComplete"
	case StatusCantMpxConn:
		return "CantMpxConn"
	case StatusOverloaded:
		return "Overloaded"
	case StatusUnknownRole:
		return "UnknownRole"
	default:
		return "UnknownStatus"
	}
}

// Header is the fixed 8-byte prefix of every record.
//
// ContentLength+PaddingLength is always a multiple of 8 octets, so
// record boundaries stay 8-aligned on the wire.
type Header struct {
	Version       uint8
	Type          RecordType
	RequestID     uint16
	ContentLength uint16
	PaddingLength uint8
	Reserved      uint8
}

// NewHeader builds a header for one record carrying content. Content
// longer than MaxContentLen is clamped; callers chunk via WriteBatches.
func NewHeader(recordType RecordType, requestID uint16, content []byte) Header {
	contentLength := len(content)
	if contentLength > MaxContentLen {
		contentLength = MaxContentLen
	}

	return Header{
		Version:       Version1,
		Type:          recordType,
		RequestID:     requestID,
		ContentLength: uint16(contentLength),
		PaddingLength: uint8(-contentLength & 7),
	}
}

// BeginRequestBody is the 8-byte content of a BeginRequest record.
type BeginRequestBody struct {
	Role     Role
	Flags    uint8
	Reserved [5]uint8
}

// FlagKeepConn is bit 0 of the begin request flags byte. When set, the
// server keeps the connection open after the request completes.
const FlagKeepConn uint8 = 1

// NewBeginRequestBody builds the begin request body for a role.
func NewBeginRequestBody(role Role, keepAlive bool) BeginRequestBody {
	body := BeginRequestBody{Role: role}
	if keepAlive {
		body.Flags = FlagKeepConn
	}
	return body
}

// EndRequestBody is the 8-byte content of an EndRequest record.
type EndRequestBody struct {
	AppStatus      uint32
	ProtocolStatus ProtocolStatus
	Reserved       [3]uint8
}
