package fcgiclient

import (
	"io"

	"github.com/mazrean/fcgiclient/protocol"
)

// Response is the assembled output of one request. Stdout and Stderr
// are nil, not empty, when the server sent no bytes on that stream.
type Response struct {
	Stdout []byte
	Stderr []byte
}

// Chunk is one piece of response output as it arrived on the wire,
// yielded by ResponseStream. Type is RecordStdout or RecordStderr.
type Chunk struct {
	Type protocol.RecordType
	Data []byte
}

// accumulator collects the response records of one in-flight request id
// until its EndRequest arrives. All fields are guarded by the client's
// read lock.
type accumulator struct {
	chunks []Chunk
	done   bool
	err    error
}

func (a *accumulator) push(recordType protocol.RecordType, data []byte) {
	if len(data) == 0 {
		// Zero-length records carry no output, only stream framing.
		return
	}
	a.chunks = append(a.chunks, Chunk{Type: recordType, Data: data})
}

func (a *accumulator) finish(body protocol.EndRequestBody) {
	if body.ProtocolStatus != protocol.StatusRequestComplete {
		a.err = &EndRequestError{
			Status:    body.ProtocolStatus,
			AppStatus: body.AppStatus,
		}
	}
	a.done = true
}

func (a *accumulator) fail(err error) {
	a.err = err
	a.done = true
}

// response concatenates the accumulated chunks into a Response.
func (a *accumulator) response() *Response {
	res := &Response{}
	for _, chunk := range a.chunks {
		switch chunk.Type {
		case protocol.RecordStdout:
			res.Stdout = append(res.Stdout, chunk.Data...)
		case protocol.RecordStderr:
			res.Stderr = append(res.Stderr, chunk.Data...)
		}
	}

	return res
}

// ResponseStream yields response chunks incrementally instead of
// buffering the whole response, for large outputs. The stream must be
// consumed until Next returns io.EOF or an error; the request id is
// only reclaimed then.
type ResponseStream struct {
	client *Client
	id     uint16
	acc    *accumulator
	pos    int
	closed bool
}

// Next returns the next output chunk. It returns io.EOF after the
// request completed successfully, and the terminating error otherwise.
func (s *ResponseStream) Next() (Chunk, error) {
	if s.closed {
		return Chunk{}, io.EOF
	}

	for {
		s.client.readLocker.Lock()

		if s.pos < len(s.acc.chunks) {
			chunk := s.acc.chunks[s.pos]
			s.pos++
			s.client.readLocker.Unlock()
			return chunk, nil
		}

		if s.acc.done {
			err := s.acc.err
			s.client.readLocker.Unlock()
			s.close()
			if err != nil {
				return Chunk{}, err
			}
			return Chunk{}, io.EOF
		}

		err := s.client.readRecord()
		s.client.readLocker.Unlock()
		if err != nil {
			s.close()
			return Chunk{}, err
		}
	}
}

func (s *ResponseStream) close() {
	if s.closed {
		return
	}
	s.closed = true
	s.client.finish(s.id)
}
