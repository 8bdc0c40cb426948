// Public entry point for rewriting the journal.
package binder

import "fmt"

// Compact rewrites the journal so that it holds only the live rows, as one
// transaction. The committed state is unchanged.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.rewrite(); err != nil {
		s.log.Error("compaction failed", "name", s.name, "error", err)
		return fmt.Errorf("%w: compact: %w", ErrStorage, err)
	}
	return nil
}
