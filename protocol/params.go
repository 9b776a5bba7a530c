package protocol

import (
	"encoding/binary"
)

// longLengthFlag marks the high bit of a 4-byte pair length. Lengths
// below 128 use the 1-byte short form instead.
const longLengthFlag = uint32(1) << 31

// appendPairLength appends a name or value length in its wire form:
// one byte below 128, otherwise four big-endian bytes with the high
// bit set.
func appendPairLength(buf []byte, length int) []byte {
	if length < 128 {
		return append(buf, uint8(length))
	}

	return binary.BigEndian.AppendUint32(buf, uint32(length)|longLengthFlag)
}

// EncodeParams serializes a parameter set into one logical Params
// content block: for each pair, name length, value length, then the raw
// bytes of name and value. Iteration order is unspecified; the protocol
// does not require one.
func EncodeParams(params map[string]string) []byte {
	buf := make([]byte, 0, 512)
	for name, value := range params {
		buf = appendPairLength(buf, len(name))
		buf = appendPairLength(buf, len(value))
		buf = append(buf, name...)
		buf = append(buf, value...)
	}

	return buf
}
