// Sub-range creation and removal.
package binder

import (
	"context"
	"errors"
	"fmt"
)

// CreateSubRange cuts pages [start, end] (1-based, inclusive) out of a
// document. It returns false, without writing anything, when the parent is
// missing, the range does not fit the parent, or the parent already has a
// sub-range with the same bounds. Those are expected outcomes, not errors.
func (r *Registry) CreateSubRange(ctx context.Context, parent string, start, end int) bool {
	sub := SubRange{ID: newID(), Parent: parent, Start: start, End: end}

	r.write.Lock()
	defer r.write.Unlock()

	err := r.store.Update(ctx, func(tx *Tx) error {
		doc, ok := tx.Documents().Get(parent)
		if !ok {
			return fmt.Errorf("%w: document %s", ErrNotFound, parent)
		}
		if !validRange(start, end, doc.Pages) {
			return fmt.Errorf("%w: [%d,%d] in %d pages", ErrInvalidRange, start, end, doc.Pages)
		}
		dup := func(s SubRange) bool { return s.Parent == parent && s.Start == start && s.End == end }
		if len(tx.SubRanges().Where(dup)) > 0 {
			return fmt.Errorf("%w: [%d,%d]", ErrDuplicateRange, start, end)
		}

		tx.SubRanges().Put(sub)
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrValidation):
		r.log.Info("sub-range rejected", "document", parent, "start", start, "end", end, "reason", err)
		return false
	default:
		r.log.Error("creating sub-range failed", "document", parent, "start", start, "end", end, "error", err)
		return false
	}

	r.refresh(ctx)
	return true
}

// RemoveSubRange deletes a sub-range, its merge items and its persisted
// preview in one transaction. The
// surviving merge items are renumbered in the same transaction.
func (r *Registry) RemoveSubRange(ctx context.Context, id, parent string) error {
	r.write.Lock()
	defer r.write.Unlock()

	err := r.store.Update(ctx, func(tx *Tx) error {
		sub, ok := tx.SubRanges().Get(id)
		if !ok || sub.Parent != parent {
			return fmt.Errorf("%w: sub-range %s of %s", ErrNotFound, id, parent)
		}

		tx.SubRanges().Delete(id)
		tx.SubRangePreviews().Delete(id)
		for _, m := range tx.MergeItems().Where(func(m MergeItem) bool { return m.Kind == KindSubRange && m.Target == id }) {
			tx.MergeItems().Delete(m.ID)
		}
		renumber(tx)
		return nil
	})
	if err != nil {
		r.log.Error("removing sub-range failed", "subRange", id, "document", parent, "error", err)
		return err
	}

	r.refresh(ctx)
	return nil
}
