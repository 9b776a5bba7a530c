// Package fcgiclient is a FastCGI client: it speaks the record protocol
// of the FastCGI 1.0 specification as a web-server-side requester over
// any connected byte stream, such as a net.Conn to php-fpm.
//
// The client does not dial, configure, or retry connections; the caller
// supplies a connected stream and owns its lifetime. Timeouts on the
// stream itself belong to the transport layer (net.Conn deadlines).
package fcgiclient

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/mazrean/fcgiclient/internal/id"
	myio "github.com/mazrean/fcgiclient/internal/pkg/io"
	"github.com/mazrean/fcgiclient/log"
	"github.com/mazrean/fcgiclient/protocol"
)

// ErrOneShotDone is returned when a one-shot client is asked to execute
// a second request. One-shot connections carry exactly one request.
var ErrOneShotDone = errors.New("one-shot client has already executed a request")

// clientOption holds the configuration options for a Client instance
type clientOption struct {
	logger   log.Logger
	observer protocol.HeaderObserver
	idLimit  uint16
}

// ClientOption defines a function type for configuring Client instances
type ClientOption func(*clientOption)

// WithLogger sets the logger instance for the Client
// If not set, the default logger will be used
func WithLogger(logger log.Logger) ClientOption {
	return func(o *clientOption) {
		o.logger = logger
	}
}

// WithHeaderObserver registers a callback invoked with every header
// just before its record is written. It is diagnostic instrumentation
// only; the protocol behaves identically without it.
func WithHeaderObserver(observer protocol.HeaderObserver) ClientOption {
	return func(o *clientOption) {
		o.observer = observer
	}
}

// WithIDLimit caps the number of request ids a persistent client hands
// out, bounding the number of in-flight requests. Zero means the full
// 16-bit id space. One-shot clients ignore it.
func WithIDLimit(limit uint16) ClientOption {
	return func(o *clientOption) {
		o.idLimit = limit
	}
}

// Client executes FastCGI requests over an injected byte stream.
//
// Writes are serialized per request: one request's full record sequence
// reaches the stream, flush included, before another's begins. Reads
// are drained by one caller at a time, demultiplexing records into
// per-request accumulators by request id.
type Client struct {
	logger   log.Logger
	observer protocol.HeaderObserver

	allocator id.Allocator
	keepAlive bool
	oneShot   bool
	used      atomic.Bool

	writeLocker sync.Mutex
	writer      *bufio.Writer

	readLocker sync.Mutex
	reader     *bufio.Reader

	pendingLocker sync.Mutex
	pending       map[uint16]*accumulator
}

// New creates a one-shot client: the stream carries exactly one
// request/response cycle and the server closes it afterwards. The
// request id is the fixed nginx-style id.
func New(stream io.ReadWriter, options ...ClientOption) *Client {
	return newClient(stream, false, options)
}

// NewPersistent creates a keep-alive client: the stream is shared
// across calls, with a pooled request-id allocator so multiple requests
// may be in flight when the server supports multiplexing.
func NewPersistent(stream io.ReadWriter, options ...ClientOption) *Client {
	return newClient(stream, true, options)
}

func newClient(stream io.ReadWriter, keepAlive bool, options []ClientOption) *Client {
	o := &clientOption{
		logger: log.DefaultLogger,
	}
	for _, option := range options {
		option(o)
	}

	var allocator id.Allocator
	if keepAlive {
		allocator = id.NewPool(o.idLimit)
	} else {
		allocator = id.NewFixed()
	}

	return &Client{
		logger:    o.logger,
		observer:  o.observer,
		allocator: allocator,
		keepAlive: keepAlive,
		oneShot:   !keepAlive,
		writer:    bufio.NewWriter(stream),
		reader:    bufio.NewReader(stream),
		pending:   make(map[uint16]*accumulator),
	}
}

// Execute sends one request and blocks until its response has been
// fully assembled. The context bounds request-id allocation; once the
// pool times out, ErrIDSpaceExhausted is returned and nothing has been
// written. A failed request yields no partial response.
func (c *Client) Execute(ctx context.Context, req *Request) (*Response, error) {
	acc, reqID, err := c.start(ctx, req)
	if err != nil {
		return nil, err
	}
	defer c.finish(reqID)

	if err := c.await(acc); err != nil {
		return nil, err
	}
	if acc.err != nil {
		return nil, acc.err
	}

	return acc.response(), nil
}

// ExecuteStream sends one request and returns a stream yielding
// response chunks as they arrive, instead of buffering them. The same
// state machine applies; only the output sink differs.
func (c *Client) ExecuteStream(ctx context.Context, req *Request) (*ResponseStream, error) {
	acc, reqID, err := c.start(ctx, req)
	if err != nil {
		return nil, err
	}

	return &ResponseStream{client: c, id: reqID, acc: acc}, nil
}

// start allocates a request id, registers its accumulator and writes
// the full request record sequence. On write failure the id is
// reclaimed and the error returned; nothing is retried.
func (c *Client) start(ctx context.Context, req *Request) (*accumulator, uint16, error) {
	if c.oneShot && c.used.Swap(true) {
		return nil, 0, ErrOneShotDone
	}

	reqID, err := c.allocator.Alloc(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("allocate request id: %w", err)
	}

	acc := &accumulator{}
	c.pendingLocker.Lock()
	c.pending[reqID] = acc
	c.pendingLocker.Unlock()

	if err := c.sendRequest(reqID, req); err != nil {
		c.finish(reqID)
		return nil, 0, err
	}

	return acc, reqID, nil
}

// finish removes a request from the demux table and releases its id.
// It runs on every exit path, success or error, so an id is never
// reused while its response could still arrive.
func (c *Client) finish(reqID uint16) {
	c.pendingLocker.Lock()
	delete(c.pending, reqID)
	c.pendingLocker.Unlock()

	c.allocator.Release(reqID)
}

// sendRequest writes Begin → Params(+terminator) → Stdin(+terminator)
// and flushes. The write lock is held end to end so records of two
// requests never interleave on the wire.
func (c *Client) sendRequest(reqID uint16, req *Request) error {
	c.writeLocker.Lock()
	defer c.writeLocker.Unlock()

	c.logger.Debugf("start request: id=%d", reqID)

	if err := c.sendBeginRequest(reqID); err != nil {
		return fmt.Errorf("send begin request: %w", err)
	}

	if err := c.sendParams(reqID, req.Params); err != nil {
		return fmt.Errorf("send params: %w", err)
	}

	if err := c.sendStdin(reqID, req.Stdin); err != nil {
		return fmt.Errorf("send stdin: %w", err)
	}

	// A buffered request that is never flushed deadlocks against a
	// server still waiting for input.
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("flush request: %w", err)
	}

	return nil
}

func (c *Client) sendBeginRequest(reqID uint16) error {
	body := protocol.NewBeginRequestBody(protocol.RoleResponder, c.keepAlive)
	content := protocol.EncodeBeginRequestBody(body)

	header := protocol.NewHeader(protocol.RecordBeginRequest, reqID, content[:])
	c.observeHeader(header)

	return protocol.WriteRecord(c.writer, header, content[:])
}

func (c *Client) sendParams(reqID uint16, params Params) error {
	content := protocol.EncodeParams(params)

	return protocol.WriteBatches(
		protocol.RecordParams,
		reqID,
		c.writer,
		bytes.NewReader(content),
		c.observeHeader,
	)
}

func (c *Client) sendStdin(reqID uint16, stdin io.Reader) error {
	if stdin == nil {
		stdin = myio.EmptyReader
	}

	return protocol.WriteBatches(
		protocol.RecordStdin,
		reqID,
		c.writer,
		stdin,
		c.observeHeader,
	)
}

func (c *Client) observeHeader(header protocol.Header) {
	c.logger.Debugf("send record: type=%s id=%d content=%d padding=%d",
		header.Type, header.RequestID, header.ContentLength, header.PaddingLength)

	if c.observer != nil {
		c.observer(header)
	}
}

// await drains response records until acc has terminated. Only one
// caller reads the stream at a time; records for other in-flight
// requests are routed to their accumulators, and the lock is dropped
// between records so their owners can observe completion.
func (c *Client) await(acc *accumulator) error {
	for {
		c.readLocker.Lock()
		if acc.done {
			c.readLocker.Unlock()
			return nil
		}

		err := c.readRecord()
		c.readLocker.Unlock()
		if err != nil {
			return err
		}
	}
}

// readRecord consumes one record from the stream and routes it. The
// caller must hold the read lock. A returned error means the stream is
// desynced or dead; the connection must not be reused.
func (c *Client) readRecord() error {
	header, err := protocol.ReadHeader(c.reader)
	if err != nil {
		return err
	}

	c.logger.Debugf("receive record: type=%s id=%d content=%d padding=%d",
		header.Type, header.RequestID, header.ContentLength, header.PaddingLength)

	c.pendingLocker.Lock()
	acc, ok := c.pending[header.RequestID]
	c.pendingLocker.Unlock()
	if !ok {
		return &ResponseIDMismatchError{ID: header.RequestID}
	}

	switch header.Type {
	case protocol.RecordStdout, protocol.RecordStderr:
		content, err := protocol.ReadContent(c.reader, header)
		if err != nil {
			return err
		}
		acc.push(header.Type, content)
	case protocol.RecordEndRequest:
		content, err := protocol.ReadContent(c.reader, header)
		if err != nil {
			return err
		}

		body, err := protocol.DecodeEndRequestBody(content)
		if err != nil {
			return fmt.Errorf("decode end request: %w", err)
		}
		acc.finish(body)
	default:
		// Consume the content so the record boundary stays intact,
		// then terminate the request it was addressed to.
		if _, err := protocol.ReadContent(c.reader, header); err != nil {
			return err
		}
		acc.fail(&UnexpectedRecordTypeError{Type: header.Type})
	}

	return nil
}
