// Header management for the journal file.
//
// The header is exactly HeaderSize bytes, padded with spaces and terminated
// with a newline. It records the format version, the checksum algorithm and
// a dirty flag that is set on the first write of a session and cleared on
// a clean Close.
package binder

import (
	"bytes"
	"os"

	json "github.com/goccy/go-json"
)

// HeaderSize is the fixed size of the header in bytes.
const HeaderSize = 128

// formatVersion is the current journal layout.
const formatVersion = 1

// Header contains journal metadata stored at the start of the file.
type Header struct {
	Version   int   `json:"_v"`   // Journal layout version
	Error     int   `json:"_e"`   // 0=clean, 1=dirty (crash indicator)
	Algorithm int   `json:"_alg"` // Checksum algorithm (1=xxHash3, 2=FNV1a, 3=Blake2b)
	Timestamp int64 `json:"_ts"`  // Unix milliseconds when written
}

// header reads and parses the header from a file.
func header(f *os.File) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, ErrCorruptHeader
	}

	var hdr Header
	if err := json.Unmarshal(bytes.TrimSpace(buf), &hdr); err != nil {
		return nil, ErrCorruptHeader
	}
	if hdr.Version != formatVersion {
		return nil, ErrCorruptHeader
	}
	return &hdr, nil
}

// dirty sets or clears the dirty flag at its fixed offset in the header.
// The _e value is at byte offset 13: {"_v":1,"_e":X
func dirty(w *os.File, v bool) error {
	b := byte('0')
	if v {
		b = '1'
	}
	_, err := w.WriteAt([]byte{b}, 13)
	return err
}

// encode serialises the header to exactly HeaderSize bytes with padding.
func (h *Header) encode() ([]byte, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}

	if len(data) > HeaderSize-1 {
		return nil, ErrCorruptHeader // header too large
	}

	buf := make([]byte, HeaderSize)
	copy(buf, data)
	for i := len(data); i < HeaderSize-1; i++ {
		buf[i] = ' '
	}
	buf[HeaderSize-1] = '\n'

	return buf, nil
}
