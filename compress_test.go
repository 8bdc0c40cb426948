package binder

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"simple text", []byte("hello world")},
		{"single byte", []byte{0x42}},
		{"binary data", []byte{0x00, 0x01, 0xff, 0xfe, 0x80, 0x7f}},
		{"unicode", []byte("日本語テキスト")},
		{"pdf-like", []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := decompress(compress(tt.data))
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}
			if !bytes.Equal(decoded, tt.data) {
				t.Errorf("round trip failed: got %v, want %v", decoded, tt.data)
			}
		})
	}
}

func TestCompressEmpty(t *testing.T) {
	if got := compress(nil); got != "" {
		t.Errorf("compress(nil) = %q, want empty string", got)
	}
	got, err := decompress("")
	if err != nil || got != nil {
		t.Errorf("decompress(empty) = %v, %v, want nil, nil", got, err)
	}
}

// TestCompressPrintable checks that encoded output is printable ASCII and
// never contains a newline that would split a journal line.
func TestCompressPrintable(t *testing.T) {
	data := bytes.Repeat([]byte{0x00, '\n', '"', '\\', 0xff}, 1000)
	encoded := compress(data)
	if strings.ContainsAny(encoded, "\r\n") {
		t.Error("encoded output contains a line break")
	}
	for _, c := range []byte(encoded) {
		if c < '!' || c > 'z' {
			t.Fatalf("encoded output contains %q", c)
		}
	}
}

func TestCompressLargeData(t *testing.T) {
	data := bytes.Repeat([]byte("test data for compression "), 40000)

	encoded := compress(data)
	if len(encoded) >= len(data) {
		t.Errorf("compressed %d bytes to %d", len(data), len(encoded))
	}
	decoded, err := decompress(encoded)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Error("large round trip failed")
	}
}

func TestDecompressInvalid(t *testing.T) {
	if _, err := decompress("this is not zstd"); !errors.Is(err, ErrDecompress) {
		t.Errorf("decompress = %v, want ErrDecompress", err)
	}
}
