package io

import "io"

// EmptyReader is a reader that is always at EOF. It stands in for the
// stdin of a request without a body, so the record writer still emits
// the terminating empty Stdin record.
var EmptyReader io.Reader = emptyReader{}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) {
	return 0, io.EOF
}
