// Merge order maintenance.
//
// The Order values of the merge items are always exactly 0..N-1. Appends
// take Order = N inside the transaction that inserts them; every removal
// renumbers the survivors inside the transaction that removes, re-reading
// the rows there rather than trusting anything read before.
package binder

import (
	"cmp"
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
)

// renumber rewrites Order as the position in the current Order sequence.
// Relative order is preserved and only rows whose Order changes are
// written.
func renumber(tx *Tx) {
	items := tx.MergeItems().All()
	slices.SortStableFunc(items, func(a, b MergeItem) int { return cmp.Compare(a.Order, b.Order) })
	for i, m := range items {
		if m.Order != i {
			m.Order = i
			tx.MergeItems().Put(m)
		}
	}
}

// ListMergeOrder returns the merge items sorted by Order.
func (r *Registry) ListMergeOrder() []MergeItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.merge)
}

// MergeCount returns how many merge items refer to a target.
func (r *Registry) MergeCount(kind Kind, target string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.merge {
		if m.Kind == kind && m.Target == target {
			n++
		}
	}
	return n
}

// AddToMergeOrder appends a document or sub-range to the merge order. The
// same target may be added more than once. A missing target returns an
// error wrapping ErrNotFound and writes nothing.
func (r *Registry) AddToMergeOrder(ctx context.Context, kind Kind, target string) error {
	r.write.Lock()
	defer r.write.Unlock()

	err := r.store.Update(ctx, func(tx *Tx) error {
		item := MergeItem{
			ID:     newID(),
			Kind:   kind,
			Target: target,
			Order:  tx.MergeItems().Count(),
		}
		switch kind {
		case KindDocument:
			if _, ok := tx.Documents().Get(target); !ok {
				return fmt.Errorf("%w: document %s", ErrNotFound, target)
			}
		case KindSubRange:
			sub, ok := tx.SubRanges().Get(target)
			if !ok {
				return fmt.Errorf("%w: sub-range %s", ErrNotFound, target)
			}
			item.Parent = sub.Parent
		default:
			return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
		}
		tx.MergeItems().Put(item)
		return nil
	})
	if err != nil {
		r.log.Error("adding to merge order failed", "kind", kind, "target", target, "error", err)
		return err
	}

	r.refresh(ctx)
	return nil
}

// UpdateMergeOrder replaces the whole merge order with items, as given.
// The caller supplies contiguous Order values. Items without an ID get one.
func (r *Registry) UpdateMergeOrder(ctx context.Context, items []MergeItem) error {
	r.write.Lock()
	defer r.write.Unlock()

	err := r.store.Update(ctx, func(tx *Tx) error {
		replace(tx, items)
		return nil
	})
	if err != nil {
		r.log.Error("updating merge order failed", "items", len(items), "error", err)
		return err
	}

	r.refresh(ctx)
	return nil
}

func replace(tx *Tx, items []MergeItem) {
	tx.MergeItems().Clear()
	for _, m := range items {
		if m.ID == "" {
			m.ID = newID()
		}
		tx.MergeItems().Put(m)
	}
}

// RemoveMergeOrder deletes the merge items matching kind, target and
// order, then renumbers the rest, in one transaction. When nothing matches
// it logs a warning and changes nothing.
func (r *Registry) RemoveMergeOrder(ctx context.Context, kind Kind, target string, order int) error {
	r.write.Lock()
	defer r.write.Unlock()

	removed := 0
	err := r.store.Update(ctx, func(tx *Tx) error {
		match := func(m MergeItem) bool { return m.Kind == kind && m.Target == target && m.Order == order }
		for _, m := range tx.MergeItems().Where(match) {
			tx.MergeItems().Delete(m.ID)
			removed++
		}
		if removed == 0 {
			return nil
		}
		renumber(tx)
		return nil
	})
	if err != nil {
		r.log.Error("removing from merge order failed", "kind", kind, "target", target, "order", order, "error", err)
		return err
	}
	if removed == 0 {
		r.log.Warn("no matching merge item", "kind", kind, "target", target, "order", order)
		return nil
	}

	r.refresh(ctx)
	return nil
}

// Prune drops merge items whose target no longer exists, renumbers the
// rest and returns how many were dropped.
func (r *Registry) Prune(ctx context.Context) (int, error) {
	r.write.Lock()
	defer r.write.Unlock()

	dropped := 0
	err := r.store.Update(ctx, func(tx *Tx) error {
		items := tx.MergeItems().All()
		slices.SortStableFunc(items, func(a, b MergeItem) int { return cmp.Compare(a.Order, b.Order) })

		kept := items[:0]
		for _, m := range items {
			if _, err := resolve(tx, m); err != nil {
				dropped++
				continue
			}
			m.Order = len(kept)
			kept = append(kept, m)
		}
		if dropped == 0 {
			return nil
		}
		replace(tx, kept)
		return nil
	})
	if err != nil {
		r.log.Error("pruning merge order failed", "error", err)
		return 0, err
	}
	if dropped > 0 {
		r.log.Info("pruned merge order", "dropped", dropped)
		r.refresh(ctx)
	}
	return dropped, nil
}

// OutputName returns the default file name for the merged output, derived
// from the title of the first merge item.
func (r *Registry) OutputName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.merge) == 0 {
		return "merged.pdf"
	}

	first := r.merge[0]
	owner := first.Target
	if first.Kind == KindSubRange {
		owner = first.Parent
	}

	title := ""
	for _, d := range r.documents {
		if d.ID == owner {
			title = d.Title
			break
		}
	}
	if ext := path.Ext(title); strings.EqualFold(ext, ".pdf") {
		title = strings.TrimSuffix(title, ext)
	}
	return r.prefix + title + ".pdf"
}
