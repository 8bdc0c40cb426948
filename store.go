// Store type and lifecycle operations.
//
// Store is the source of truth for every collection. It keeps the committed
// state in memory, serialises transactions, and appends each committed
// transaction to the journal before making it visible.
package binder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Config holds store configuration options.
type Config struct {
	HashAlgorithm int          // 1=xxHash3, 2=FNV1a, 3=Blake2b
	ReadBuffer    int          // Buffer size for replay (default 64KB)
	MaxRecordSize int          // Maximum single record size (default 64MB)
	SyncWrites    bool         // Call fsync after each commit
	Logger        *slog.Logger // Defaults to discarding
}

// Store is an open journal.
type Store struct {
	root   *os.Root  // Sandboxed filesystem access
	name   string    // Journal filename
	file   *os.File  // Read/write handle
	lock   *fileLock // Exclusive ownership of the journal
	header *Header   // Cached header
	config Config
	log    *slog.Logger
	tail   int64  // Append offset (end of last commit)
	seq    uint64 // Sequence of the last commit
	state  *state // Committed state, never mutated in place
	closed bool
	mu     sync.RWMutex
}

// Open opens or creates the journal name inside dir and replays it.
// A journal left dirty by a crash, or with a torn tail, is repaired before
// Open returns.
func Open(dir, name string, config Config) (*Store, error) {
	if config.HashAlgorithm == 0 {
		config.HashAlgorithm = AlgXXHash3
	}
	if config.ReadBuffer == 0 {
		config.ReadBuffer = 64 * 1024
	}
	if config.MaxRecordSize == 0 {
		config.MaxRecordSize = MaxRecordSize
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if checksum(nil, config.HashAlgorithm) == "" {
		return nil, fmt.Errorf("unknown hash algorithm %d", config.HashAlgorithm)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}

	lock, err := acquire(root, name+".lock")
	if err != nil {
		root.Close()
		return nil, err
	}

	fail := func(err error) (*Store, error) {
		lock.release()
		root.Close()
		return nil, err
	}

	if _, err := root.Stat(name); os.IsNotExist(err) {
		if err := create(root, name, config.HashAlgorithm); err != nil {
			return fail(err)
		}
	}

	file, err := root.OpenFile(name, os.O_RDWR, 0644)
	if err != nil {
		return fail(err)
	}

	hdr, err := header(file)
	if err != nil {
		file.Close()
		return fail(err)
	}

	st := newState()
	res, err := replay(file, st, hdr.Algorithm, config.ReadBuffer, config.MaxRecordSize)
	if err != nil {
		file.Close()
		return fail(err)
	}

	s := &Store{
		root:   root,
		name:   name,
		file:   file,
		lock:   lock,
		header: hdr,
		config: config,
		log:    config.Logger,
		tail:   res.end,
		seq:    res.seq,
		state:  st,
	}

	// Crash detection
	_, tmpErr := root.Stat(name + ".tmp")
	tmpExists := tmpErr == nil
	if tmpExists || hdr.Error == 1 || res.torn {
		s.log.Warn("repairing journal",
			"name", name, "dirty", hdr.Error == 1, "tmp", tmpExists, "torn", res.torn)
		if tmpExists {
			root.Remove(name + ".tmp")
		}
		if err := s.rewrite(); err != nil {
			s.file.Close()
			return fail(fmt.Errorf("repair: %w", err))
		}
	}

	return s, nil
}

// create writes a fresh journal holding only a header.
func create(root *os.Root, name string, alg int) error {
	file, err := root.Create(name)
	if err != nil {
		return err
	}
	hdr := Header{Version: formatVersion, Algorithm: alg, Timestamp: now()}
	buf, err := hdr.encode()
	if err != nil {
		file.Close()
		return err
	}
	if _, err := file.Write(buf); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Close marks the journal clean and releases every handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.header.Error == 1 {
		s.header.Error = 0
		if err := dirty(s.file, false); err != nil {
			errs = append(errs, err)
		}
		if err := s.file.Sync(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.lock.release(); err != nil {
		errs = append(errs, err)
	}
	if err := s.root.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Update runs fn in a read-write transaction. If fn returns an error, or a
// mutation inside it failed, nothing is written and the committed state is
// unchanged. Otherwise the transaction is appended to the journal and then
// becomes visible to later transactions. Journal failures are reported
// wrapped in ErrStorage.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx := &Tx{st: s.state.copy(), writable: true}
	if err := fn(tx); err != nil {
		return err
	}
	if tx.err != nil {
		return tx.err
	}
	if len(tx.ops) == 0 {
		return nil
	}

	if err := s.commit(tx.ops); err != nil {
		s.log.Error("commit failed", "seq", s.seq+1, "ops", len(tx.ops), "error", err)
		return fmt.Errorf("%w: commit: %w", ErrStorage, err)
	}
	s.state = tx.st
	return nil
}

// View runs fn in a read-only transaction over the committed state.
func (s *Store) View(ctx context.Context, fn func(*Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	tx := &Tx{st: s.state}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.err
}
