// Record types for the journal.
//
// Every line after the header is a single JSON record with the op field
// first. Put, Delete and Clear records describe a mutation of one
// collection; a Commit record closes the transaction that precedes it and
// carries the count and checksum of its op lines. Mutations that are not
// followed by a valid Commit were never committed.
package binder

import (
	json "github.com/goccy/go-json"
)

// Record op markers.
const (
	OpPut    = 1 // Insert or replace a row
	OpDelete = 2 // Remove a row
	OpClear  = 3 // Remove every row of a collection
	OpCommit = 4 // Close a transaction
)

// MaxRecordSize is the default maximum length of a single record (64MB).
const MaxRecordSize = 64 * 1024 * 1024

// Record is one journal line.
type Record struct {
	Op         int             `json:"op"`
	Collection Collection      `json:"_c,omitempty"`
	ID         string          `json:"_id,omitempty"`
	Timestamp  int64           `json:"_ts"`
	Data       json.RawMessage `json:"_d,omitempty"`
	Seq        uint64          `json:"_tx,omitempty"`  // Commit only
	Count      int             `json:"_n,omitempty"`   // Commit only
	Sum        string          `json:"_sum,omitempty"` // Commit only
}

// decode parses raw bytes into a Record.
func decode(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, ErrCorruptRecord
	}
	if r.Op < OpPut || r.Op > OpCommit {
		return nil, ErrCorruptRecord
	}
	return &r, nil
}

// valid checks if a line looks like a record (starts with '{').
func valid(line []byte) bool {
	return len(line) > 0 && line[0] == '{'
}
