// Merge composition.
//
// The merge order is resolved into a plan of steps, each naming a source
// document and the 0-based page indices to copy out of it. TotalPageCount
// and Compose both work from the same plan so the count shown before an
// export always matches the export.
package binder

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// Step is one resolved merge item.
type Step struct {
	Item     MergeItem
	Document string // source document
	Title    string
	Indices  []int // 0-based pages to copy, in order
	source   []byte
}

// Merger turns the merge order into one output document.
type Merger struct {
	store    *Store
	composer Composer
	log      *slog.Logger
}

// NewMerger returns a Merger reading the merge order from store.
func NewMerger(store *Store, composer Composer, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Merger{store: store, composer: composer, log: logger}
}

// Plan resolves the merge order, sorted by Order. A merge item whose
// target no longer exists fails the whole plan with ErrNotFound.
func (m *Merger) Plan(ctx context.Context) ([]Step, error) {
	var steps []Step
	err := m.store.View(ctx, func(tx *Tx) error {
		items := tx.MergeItems().All()
		slices.SortStableFunc(items, func(a, b MergeItem) int { return cmp.Compare(a.Order, b.Order) })

		steps = make([]Step, 0, len(items))
		for _, item := range items {
			step, err := resolve(tx, item)
			if err != nil {
				return err
			}
			steps = append(steps, step)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func resolve(tx *Tx, item MergeItem) (Step, error) {
	switch item.Kind {
	case KindDocument:
		doc, ok := tx.Documents().Get(item.Target)
		if !ok {
			return Step{}, fmt.Errorf("%w: document %s at position %d", ErrNotFound, item.Target, item.Order)
		}
		return Step{Item: item, Document: doc.ID, Title: doc.Title, Indices: pageIndices(1, doc.Pages, doc.Pages), source: doc.Source}, nil

	case KindSubRange:
		sub, ok := tx.SubRanges().Get(item.Target)
		if !ok {
			return Step{}, fmt.Errorf("%w: sub-range %s at position %d", ErrNotFound, item.Target, item.Order)
		}
		doc, ok := tx.Documents().Get(sub.Parent)
		if !ok {
			return Step{}, fmt.Errorf("%w: document %s at position %d", ErrNotFound, sub.Parent, item.Order)
		}
		return Step{Item: item, Document: doc.ID, Title: doc.Title, Indices: pageIndices(sub.Start, sub.End, doc.Pages), source: doc.Source}, nil

	default:
		return Step{}, fmt.Errorf("%w: %q at position %d", ErrInvalidKind, item.Kind, item.Order)
	}
}

// pageIndices converts the 1-based inclusive range [start, end] to 0-based
// indices, clamped to a document of n pages.
func pageIndices(start, end, n int) []int {
	lo := max(start-1, 0)
	hi := min(end-1, n-1)
	if hi < lo {
		return nil
	}
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

// TotalPageCount returns the number of pages Compose would produce.
func (m *Merger) TotalPageCount(ctx context.Context) (int, error) {
	steps, err := m.Plan(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, s := range steps {
		total += len(s.Indices)
	}
	return total, nil
}

// Compose builds the output document. If any step fails it logs, and
// returns nil bytes with the error; it never returns a partial merge.
func (m *Merger) Compose(ctx context.Context) ([]byte, error) {
	out, err := m.compose(ctx)
	if err != nil {
		m.log.Error("compose failed", "error", err)
		return nil, err
	}
	return out, nil
}

func (m *Merger) compose(ctx context.Context) ([]byte, error) {
	steps, err := m.Plan(ctx)
	if err != nil {
		return nil, err
	}

	output := m.composer.NewOutput()
	for _, s := range steps {
		if len(s.Indices) == 0 {
			continue
		}
		pages, err := m.composer.ExtractPages(ctx, s.source, s.Indices)
		if err != nil {
			return nil, fmt.Errorf("%w: extract %d pages from %s: %w", ErrRender, len(s.Indices), s.Document, err)
		}
		if len(pages) != len(s.Indices) {
			return nil, fmt.Errorf("%w: extracted %d pages from %s, want %d", ErrRender, len(pages), s.Document, len(s.Indices))
		}
		for _, p := range pages {
			output.AddPage(p)
		}
	}

	data, err := output.Save()
	if err != nil {
		return nil, fmt.Errorf("%w: save: %w", ErrRender, err)
	}
	return data, nil
}
