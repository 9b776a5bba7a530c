package fcgiclient

import "io"

// Params is the set of name-value pairs sent in the Params stream of a
// request. Keys mirror common gateway conventions (REQUEST_METHOD,
// SCRIPT_FILENAME, ...) but the client treats both keys and values as
// opaque strings.
type Params map[string]string

// DefaultParams returns a parameter set preloaded with the values that
// are the same for every request this client issues.
func DefaultParams() Params {
	return Params{
		"GATEWAY_INTERFACE": "FastCGI/1.0",
		"SERVER_SOFTWARE":   "go/fcgiclient",
		"SERVER_PROTOCOL":   "HTTP/1.1",
	}
}

// Request is one logical FastCGI request: a parameter set plus an
// optional stdin body stream. A nil Stdin is treated as empty.
type Request struct {
	Params Params
	Stdin  io.Reader
}

// NewRequest creates a request from a parameter set and body reader.
func NewRequest(params Params, stdin io.Reader) *Request {
	return &Request{
		Params: params,
		Stdin:  stdin,
	}
}
