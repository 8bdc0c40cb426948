// Persisted preview cache.
//
// The first page of every document and the first and last pages of every
// sub-range are rendered once and kept in the store, so they survive
// restarts and are never evicted. The rows are looked up by owning id
// before anything is rendered and are removed only by the owner's cascade
// delete. Because the images outlive any handle they are returned as data
// URLs.
package binder

import (
	"context"
	"fmt"
	"log/slog"
)

// Previews serves persisted preview images.
type Previews struct {
	store *Store
	cache *PageCache
	log   *slog.Logger
}

// NewPreviews returns a preview cache over store that renders misses
// through cache.
func NewPreviews(store *Store, cache *PageCache, logger *slog.Logger) *Previews {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Previews{store: store, cache: cache, log: logger}
}

// FirstPage returns the first page of a document. Any failure is logged
// and yields the placeholder.
func (p *Previews) FirstPage(ctx context.Context, document string) string {
	img, err := p.firstPage(ctx, document)
	if err != nil {
		p.log.Error("first page preview failed", "document", document, "error", err)
		return PlaceholderURL()
	}
	return dataURL(img)
}

func (p *Previews) firstPage(ctx context.Context, document string) ([]byte, error) {
	start := p.cache.epoch()

	var (
		cached []byte
		doc    Document
	)
	err := p.store.View(ctx, func(tx *Tx) error {
		if row, ok := tx.FirstPagePreviews().Get(document); ok {
			cached = row.Image
			return nil
		}
		d, ok := tx.Documents().Get(document)
		if !ok {
			return fmt.Errorf("%w: document %s", ErrNotFound, document)
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	_, img, err := p.cache.get(ctx, doc, 1, start)
	if err != nil {
		return nil, err
	}

	// The document may have been removed while rendering; only persist
	// for an owner that still exists.
	err = p.store.Update(ctx, func(tx *Tx) error {
		if _, ok := tx.Documents().Get(document); !ok {
			return nil
		}
		tx.FirstPagePreviews().Put(FirstPagePreview{Document: document, Image: img})
		return nil
	})
	if err != nil {
		p.log.Warn("persisting first page preview failed", "document", document, "error", err)
	}
	return img, nil
}

// SubRange returns the first and last pages of a sub-range. Any failure
// is logged and yields placeholders.
func (p *Previews) SubRange(ctx context.Context, sub string) [2]string {
	first, last, err := p.subRange(ctx, sub)
	if err != nil {
		p.log.Error("sub-range preview failed", "subRange", sub, "error", err)
		url := PlaceholderURL()
		return [2]string{url, url}
	}
	return [2]string{dataURL(first), dataURL(last)}
}

func (p *Previews) subRange(ctx context.Context, id string) ([]byte, []byte, error) {
	start := p.cache.epoch()

	var (
		cached *SubRangePreview
		sub    SubRange
		doc    Document
	)
	err := p.store.View(ctx, func(tx *Tx) error {
		if row, ok := tx.SubRangePreviews().Get(id); ok {
			cached = &row
			return nil
		}
		s, ok := tx.SubRanges().Get(id)
		if !ok {
			return fmt.Errorf("%w: sub-range %s", ErrNotFound, id)
		}
		d, ok := tx.Documents().Get(s.Parent)
		if !ok {
			return fmt.Errorf("%w: document %s", ErrNotFound, s.Parent)
		}
		sub, doc = s, d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if cached != nil {
		return cached.First, cached.Last, nil
	}

	_, first, err := p.cache.get(ctx, doc, sub.Start, start)
	if err != nil {
		return nil, nil, err
	}
	_, last, err := p.cache.get(ctx, doc, sub.End, start)
	if err != nil {
		return nil, nil, err
	}

	err = p.store.Update(ctx, func(tx *Tx) error {
		if _, ok := tx.SubRanges().Get(id); !ok {
			return nil
		}
		tx.SubRangePreviews().Put(SubRangePreview{SubRange: id, Parent: sub.Parent, First: first, Last: last})
		return nil
	})
	if err != nil {
		p.log.Warn("persisting sub-range preview failed", "subRange", id, "error", err)
	}
	return first, last, nil
}
