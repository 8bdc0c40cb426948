// Write primitives for the append-only journal.
//
// A transaction is written as its op lines followed by one Commit record,
// all concatenated into one buffer and placed with a single WriteAt at
// s.tail. The dirty flag is set on the first write of a session so that an
// unclean shutdown is detected on next Open and triggers repair. If the
// write fails the file is truncated back to the old tail so the next
// transaction does not land behind a torn one.
package binder

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// encodeTx renders ops plus their commit record as journal lines.
func encodeTx(ops []Record, seq uint64, alg, maxRecord int) ([]byte, error) {
	var buf []byte
	for i := range ops {
		line, err := json.Marshal(&ops[i])
		if err != nil {
			return nil, err
		}
		if len(line) > maxRecord {
			return nil, fmt.Errorf("%w: %s %s is %d bytes", ErrRecordTooLarge, ops[i].Collection, ops[i].ID, len(line))
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	commit := Record{
		Op:        OpCommit,
		Timestamp: now(),
		Seq:       seq,
		Count:     len(ops),
		Sum:       checksum(buf, alg),
	}
	line, err := json.Marshal(&commit)
	if err != nil {
		return nil, err
	}
	buf = append(buf, line...)
	buf = append(buf, '\n')
	return buf, nil
}

// commit appends one transaction at the tail.
func (s *Store) commit(ops []Record) error {
	buf, err := encodeTx(ops, s.seq+1, s.header.Algorithm, s.config.MaxRecordSize)
	if err != nil {
		return err
	}

	if s.header.Error == 0 {
		if err := dirty(s.file, true); err != nil {
			return err
		}
		s.header.Error = 1
	}

	if _, err := s.file.WriteAt(buf, s.tail); err != nil {
		s.file.Truncate(s.tail)
		return err
	}
	if s.config.SyncWrites {
		if err := s.file.Sync(); err != nil {
			s.file.Truncate(s.tail)
			return err
		}
	}

	s.tail += int64(len(buf))
	s.seq++
	return nil
}
