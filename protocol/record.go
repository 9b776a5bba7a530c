package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderObserver is called with each header just before its record is
// written. It is diagnostic instrumentation only and must not assume the
// record can still be changed.
type HeaderObserver func(Header)

// EncodeHeader serializes a header into its 8-byte wire form.
func EncodeHeader(header Header) [HeaderLen]byte {
	var buf [HeaderLen]byte
	buf[0] = header.Version
	buf[1] = uint8(header.Type)
	binary.BigEndian.PutUint16(buf[2:4], header.RequestID)
	binary.BigEndian.PutUint16(buf[4:6], header.ContentLength)
	buf[6] = header.PaddingLength
	buf[7] = header.Reserved
	return buf
}

// DecodeHeader parses the 8-byte wire form of a header. Unknown type
// bytes decode to RecordUnknownType.
func DecodeHeader(buf [HeaderLen]byte) Header {
	return Header{
		Version:       buf[0],
		Type:          RecordTypeFromByte(buf[1]),
		RequestID:     binary.BigEndian.Uint16(buf[2:4]),
		ContentLength: binary.BigEndian.Uint16(buf[4:6]),
		PaddingLength: buf[6],
		Reserved:      buf[7],
	}
}

// WriteRecord writes one complete record: header, content, then
// PaddingLength zero bytes. A record is the minimal atomic write unit;
// callers sharing a connection must serialize calls.
func WriteRecord(w io.Writer, header Header, content []byte) error {
	headerBuf := EncodeHeader(header)
	if _, err := w.Write(headerBuf[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}

	if _, err := w.Write(content[:header.ContentLength]); err != nil {
		return fmt.Errorf("write record content: %w", err)
	}

	if header.PaddingLength > 0 {
		var padding [7]byte
		if _, err := w.Write(padding[:header.PaddingLength]); err != nil {
			return fmt.Errorf("write record padding: %w", err)
		}
	}

	return nil
}

// WriteBatches reads content in chunks of up to MaxContentLen bytes and
// writes one record per chunk. The zero-length record terminating a
// Params or Stdin stream is always emitted exactly once: a source that
// is empty on the first read produces a single empty record, and a
// non-empty source is followed by one trailing empty record.
func WriteBatches(recordType RecordType, requestID uint16, w io.Writer, content io.Reader, observer HeaderObserver) error {
	buf := make([]byte, MaxContentLen)

	for {
		n, err := io.ReadFull(content, buf)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = nil
		}
		if err != nil {
			return fmt.Errorf("read record content source: %w", err)
		}

		header := NewHeader(recordType, requestID, buf[:n])
		if observer != nil {
			observer(header)
		}
		if err := WriteRecord(w, header, buf[:n]); err != nil {
			return err
		}

		if n == 0 {
			// The zero-length record doubles as the stream
			// terminator, including for an empty source.
			return nil
		}
	}
}

// ReadHeader reads exactly 8 bytes and decodes them. Short reads are
// fatal transport errors.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, fmt.Errorf("read record header: %w", err)
	}

	return DecodeHeader(buf), nil
}

// ReadContent reads the record content announced by header, then
// discards its padding.
func ReadContent(r io.Reader, header Header) ([]byte, error) {
	content := make([]byte, header.ContentLength)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, fmt.Errorf("read record content: %w", err)
	}

	if header.PaddingLength > 0 {
		var padding [255]byte
		if _, err := io.ReadFull(r, padding[:header.PaddingLength]); err != nil {
			return nil, fmt.Errorf("read record padding: %w", err)
		}
	}

	return content, nil
}

// EncodeBeginRequestBody serializes a begin request body: role as
// big-endian u16, flags byte, 5 reserved bytes.
func EncodeBeginRequestBody(body BeginRequestBody) [8]byte {
	var buf [8]byte
	binary.BigEndian.PutUint16(buf[0:2], uint16(body.Role))
	buf[2] = body.Flags
	copy(buf[3:], body.Reserved[:])
	return buf
}

// DecodeEndRequestBody parses an end request body: app status as
// big-endian u32, protocol status byte, 3 reserved bytes.
func DecodeEndRequestBody(content []byte) (EndRequestBody, error) {
	if len(content) < 8 {
		return EndRequestBody{}, fmt.Errorf("end request body too short: %d bytes", len(content))
	}

	body := EndRequestBody{
		AppStatus:      binary.BigEndian.Uint32(content[0:4]),
		ProtocolStatus: ProtocolStatus(content[4]),
	}
	copy(body.Reserved[:], content[5:8])

	return body, nil
}
