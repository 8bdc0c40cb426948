// Journal replay.
//
// Open rebuilds the committed state by reading every line after the header.
// Op records are buffered until their Commit record arrives; the commit is
// accepted only if its op count and checksum match the buffered lines, and
// only then are the ops applied. Anything after the last accepted commit
// (a torn write, a partial transaction, garbage) is reported so that Open
// can truncate it via repair.
package binder

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// replayResult describes how far replay got.
type replayResult struct {
	end  int64  // offset just past the last accepted commit
	seq  uint64 // sequence of the last accepted commit
	torn bool   // bytes after end were discarded
}

// replay applies every committed transaction in f to st.
func replay(f *os.File, st *state, alg, bufSize, maxRecord int) (replayResult, error) {
	res := replayResult{end: HeaderSize}

	total, err := size(f)
	if err != nil {
		return res, err
	}
	if total <= HeaderSize {
		return res, nil
	}

	reader := bufio.NewReaderSize(io.NewSectionReader(f, HeaderSize, total-HeaderSize), bufSize)

	var (
		pending []*Record
		body    bytes.Buffer // op lines of the open transaction, for the checksum
		offset  = int64(HeaderSize)
	)

	for {
		raw, err := reader.ReadBytes('\n')
		if len(raw) == 0 && err == io.EOF {
			break
		}
		if err != nil && err != io.EOF {
			return res, err
		}
		offset += int64(len(raw))

		// A final line without its newline was cut short.
		if raw[len(raw)-1] != '\n' {
			res.torn = true
			break
		}
		line := raw[:len(raw)-1]
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if len(line) > maxRecord || !valid(line) {
			res.torn = true
			break
		}

		rec, err := decode(line)
		if err != nil {
			res.torn = true
			break
		}

		if rec.Op != OpCommit {
			if st.lookup(rec.Collection) == nil {
				res.torn = true
				break
			}
			pending = append(pending, rec)
			body.Write(line)
			body.WriteByte('\n')
			continue
		}

		if rec.Count != len(pending) || rec.Sum != checksum(body.Bytes(), alg) {
			res.torn = true
			break
		}
		for _, op := range pending {
			if err := st.lookup(op.Collection).apply(op); err != nil {
				return res, fmt.Errorf("replay transaction %d: %w", rec.Seq, err)
			}
		}
		pending = pending[:0]
		body.Reset()
		res.end = offset
		res.seq = rec.Seq
	}

	if len(pending) > 0 || res.end < total {
		res.torn = true
	}
	return res, nil
}

func size(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
