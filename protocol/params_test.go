package protocol

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// decodeParams parses an encoded Params content block back into a map,
// inverting the short/long length rule.
func decodeParams(t *testing.T, buf []byte) map[string]string {
	t.Helper()

	readLength := func() int {
		if len(buf) == 0 {
			t.Fatal("truncated pair length")
		}
		if buf[0] < 128 {
			length := int(buf[0])
			buf = buf[1:]
			return length
		}
		if len(buf) < 4 {
			t.Fatal("truncated long pair length")
		}
		length := int(binary.BigEndian.Uint32(buf[:4]) &^ (1 << 31))
		buf = buf[4:]
		return length
	}

	params := map[string]string{}
	for len(buf) > 0 {
		nameLen := readLength()
		valueLen := readLength()
		if len(buf) < nameLen+valueLen {
			t.Fatalf("truncated pair data: need %d bytes, have %d", nameLen+valueLen, len(buf))
		}
		params[string(buf[:nameLen])] = string(buf[nameLen : nameLen+valueLen])
		buf = buf[nameLen+valueLen:]
	}

	return params
}

func TestEncodeParams_roundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		params map[string]string
	}{
		{
			name:   "empty set",
			params: map[string]string{},
		},
		{
			name:   "single short pair",
			params: map[string]string{"A": "1"},
		},
		{
			name: "gateway convention keys",
			params: map[string]string{
				"GATEWAY_INTERFACE": "FastCGI/1.0",
				"REQUEST_METHOD":    "GET",
				"SCRIPT_FILENAME":   "/var/www/index.php",
				"QUERY_STRING":      "",
			},
		},
		{
			name: "value at short length boundary",
			params: map[string]string{
				"K": strings.Repeat("v", 127),
			},
		},
		{
			name: "value just past short length boundary",
			params: map[string]string{
				"K": strings.Repeat("v", 128),
			},
		},
		{
			name: "long name and long value",
			params: map[string]string{
				strings.Repeat("n", 300): strings.Repeat("v", 70000),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := decodeParams(t, EncodeParams(tt.params))
			if diff := cmp.Diff(tt.params, got); diff != "" {
				t.Errorf("params mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeParams_longFormLength(t *testing.T) {
	t.Parallel()

	value := strings.Repeat("v", 130)
	buf := EncodeParams(map[string]string{"A": value})

	// name length "A" is the 1-byte short form
	if buf[0] != 1 {
		t.Errorf("name length mismatch: got %d, want 1", buf[0])
	}

	// value length 130 must use the 4-byte long form with its top bit set
	valueLength := binary.BigEndian.Uint32(buf[1:5])
	if want := uint32(130) | 1<<31; valueLength != want {
		t.Errorf("value length mismatch: got %#08x, want %#08x", valueLength, want)
	}

	rest := buf[5:]
	if string(rest[:1]) != "A" {
		t.Errorf("name bytes mismatch: got %q", rest[:1])
	}
	if string(rest[1:]) != value {
		t.Errorf("value bytes mismatch: got %d bytes", len(rest)-1)
	}
}

func TestEncodeParams_duplicateOverwrite(t *testing.T) {
	t.Parallel()

	params := map[string]string{"KEY": "first"}
	params["KEY"] = "second"

	got := decodeParams(t, EncodeParams(params))
	if diff := cmp.Diff(map[string]string{"KEY": "second"}, got); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
}
