// Journal rewrite, shared by crash repair and compaction.
//
// Over time the journal accumulates superseded puts, deletes, and whole
// transactions that a later Clear made irrelevant. rewrite writes the live
// rows as a single transaction into "<name>.tmp", syncs it, and renames it
// over the journal. A crash before the rename leaves the original intact
// and orphans the .tmp file, which Open removes and then repairs from the
// original. The header of the new file is clean and uses the configured
// checksum algorithm, so a rewrite is also how a journal migrates between
// algorithms.
//
// Called with s.mu held for writing (or before the Store is shared).
package binder

import (
	"fmt"
	"os"
)

func (s *Store) rewrite() error {
	ops, err := s.state.snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	hdr := Header{
		Version:   formatVersion,
		Algorithm: s.config.HashAlgorithm,
		Timestamp: now(),
	}
	hdrBytes, err := hdr.encode()
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	var seq uint64
	body := []byte{}
	if len(ops) > 0 {
		seq = 1
		body, err = encodeTx(ops, seq, hdr.Algorithm, s.config.MaxRecordSize)
		if err != nil {
			return fmt.Errorf("encode rows: %w", err)
		}
	}

	tmp, err := s.root.Create(s.name + ".tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(hdrBytes); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	s.file.Close()

	if err := s.root.Rename(s.name+".tmp", s.name); err != nil {
		s.root.Remove(s.name + ".tmp")
		// Keep serving the original journal.
		file, rerr := reopenJournal(s.root, s.name)
		if rerr != nil {
			s.abandon()
			return fmt.Errorf("rename: %w; reopen: %w: %w", err, ErrClosed, rerr)
		}
		s.file = file
		return fmt.Errorf("rename: %w", err)
	}

	file, err := reopenJournal(s.root, s.name)
	if err != nil {
		s.abandon()
		return fmt.Errorf("reopen: %w: %w", ErrClosed, err)
	}

	s.file = file
	s.header = &hdr
	s.tail = int64(len(hdrBytes) + len(body))
	s.seq = seq
	return nil
}

// reopenJournal opens the journal for appending after a rewrite.
var reopenJournal = func(root *os.Root, name string) (*os.File, error) {
	return root.OpenFile(name, os.O_RDWR, 0644)
}

// abandon closes a Store whose journal handle was lost mid-rewrite. The
// journal on disk is intact; a new Open replays it.
func (s *Store) abandon() {
	s.closed = true
	s.lock.release()
	s.root.Close()
	s.log.Error("journal handle lost, store closed", "name", s.name)
}
