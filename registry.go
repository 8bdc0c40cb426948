// Document registry.
//
// Registry is the entry point for the interactive flow. Every mutation is a
// single Store transaction that enforces the cross-collection rules, then a
// reload of the in-memory mirror from the Store. The mirror is never
// written directly, so it can lag a commit but never disagree with one.
// Mutations are serialised together with their follow-up work (cache
// release, full reset, reload), so a reload never installs a snapshot older
// than one already installed, and nothing lands between a reset's commit
// and its wipe.
//
// Outcomes the interactive flow expects (an invalid range, a missing
// target, a failed render) are logged and surface as false, a placeholder,
// or a returned error the caller may ignore. Nothing panics.
package binder

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// DefaultRetainedKeys survive a full reset.
var DefaultRetainedKeys = []string{"analytics_id", "user_preferences"}

// DefaultOutputPrefix starts the merged file name when Options leaves it
// empty.
const DefaultOutputPrefix = "Merged_"

// Options configures a Registry.
type Options struct {
	Loader   Loader
	Renderer Renderer
	Composer Composer
	Wipe     WipeFunc // Optional

	// OutputPrefix starts the default merged file name.
	// Default: DefaultOutputPrefix
	OutputPrefix string

	// RetainedKeys are passed to Wipe on a full reset.
	// Default: DefaultRetainedKeys
	RetainedKeys []string

	CacheCapacity int     // Default: 50
	RenderScale   float64 // Default: 1.5

	Logger *slog.Logger
}

// Registry manages documents, sub-ranges, the merge order and previews.
type Registry struct {
	store    *Store
	loader   Loader
	wipe     WipeFunc
	retained []string
	prefix   string
	handles  *Handles
	cache    *PageCache
	previews *Previews
	merger   *Merger
	log      *slog.Logger

	write sync.Mutex // Held across a mutation and its reload

	mu        sync.RWMutex
	documents []Document
	merge     []MergeItem
}

// NewRegistry returns a Registry over store and loads its mirror.
func NewRegistry(ctx context.Context, store *Store, opts Options) (*Registry, error) {
	if opts.Loader == nil || opts.Renderer == nil || opts.Composer == nil {
		return nil, fmt.Errorf("registry needs a loader, a renderer and a composer")
	}
	if opts.RetainedKeys == nil {
		opts.RetainedKeys = DefaultRetainedKeys
	}
	if opts.OutputPrefix == "" {
		opts.OutputPrefix = DefaultOutputPrefix
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	handles := NewHandles()
	cache := NewPageCache(opts.Renderer, handles, CacheConfig{
		Capacity: opts.CacheCapacity,
		Scale:    opts.RenderScale,
		Logger:   opts.Logger,
	})

	r := &Registry{
		store:    store,
		loader:   opts.Loader,
		wipe:     opts.Wipe,
		retained: slices.Clone(opts.RetainedKeys),
		prefix:   opts.OutputPrefix,
		handles:  handles,
		cache:    cache,
		previews: NewPreviews(store, cache, opts.Logger),
		merger:   NewMerger(store, opts.Composer, opts.Logger),
		log:      opts.Logger,
	}
	if err := r.reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// reload refreshes the mirror from the store. Each document's SubRanges
// are filled from the subRanges collection in creation order.
func (r *Registry) reload(ctx context.Context) error {
	var (
		docs  []Document
		items []MergeItem
	)
	err := r.store.View(ctx, func(tx *Tx) error {
		docs = tx.Documents().All()
		items = tx.MergeItems().All()

		byParent := map[string][]SubRange{}
		for _, s := range tx.SubRanges().All() {
			byParent[s.Parent] = append(byParent[s.Parent], s)
		}
		for i := range docs {
			docs[i].SubRanges = byParent[docs[i].ID]
		}
		return nil
	})
	if err != nil {
		r.log.Error("reload failed", "error", err)
		return err
	}
	slices.SortStableFunc(items, func(a, b MergeItem) int { return cmp.Compare(a.Order, b.Order) })

	r.mu.Lock()
	r.documents = docs
	r.merge = items
	r.mu.Unlock()
	return nil
}

// refresh reloads after a committed mutation. The commit stands even if
// the reload fails; the next successful reload catches the mirror up.
// Called with r.write held.
func (r *Registry) refresh(ctx context.Context) {
	_ = r.reload(context.WithoutCancel(ctx))
}

// ListDocuments returns the documents in import order.
func (r *Registry) ListDocuments() []Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Document, len(r.documents))
	for i, d := range r.documents {
		out[i] = cloneDocument(d)
	}
	return out
}

// Document returns one document from the mirror.
func (r *Registry) Document(id string) (Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.documents {
		if d.ID == id {
			return cloneDocument(d), true
		}
	}
	return Document{}, false
}

// AddDocument imports a source document. The page count comes from the
// Loader; if it rejects the source nothing is written and the error wraps
// ErrRender.
func (r *Registry) AddDocument(ctx context.Context, source []byte, title string, size int64) (string, error) {
	pages, err := r.loader.Load(ctx, source)
	if err == nil && pages < 1 {
		err = fmt.Errorf("document has %d pages", pages)
	}
	if err != nil {
		r.log.Error("loading document failed", "title", title, "error", err)
		return "", fmt.Errorf("%w: load %q: %w", ErrRender, title, err)
	}

	doc := Document{
		ID:      newID(),
		Title:   norm.NFC.String(title),
		Source:  source,
		Size:    size,
		Pages:   pages,
		Created: now(),
	}

	r.write.Lock()
	defer r.write.Unlock()

	err = r.store.Update(ctx, func(tx *Tx) error {
		tx.Documents().Put(doc)
		return nil
	})
	if err != nil {
		r.log.Error("adding document failed", "title", doc.Title, "error", err)
		return "", err
	}

	r.log.Info("document added", "document", doc.ID, "title", doc.Title, "pages", pages, "size", FormatSize(size))
	r.refresh(ctx)
	return doc.ID, nil
}

// RemoveDocument deletes a document and everything that refers to it: its
// sub-ranges, every merge item targeting the document or one of its
// sub-ranges, and the persisted previews of both, in one transaction. The
// surviving merge items are renumbered in the same transaction. The
// document's rendered pages are then released. Removing the last document
// performs a full reset.
func (r *Registry) RemoveDocument(ctx context.Context, id string) error {
	r.write.Lock()
	defer r.write.Unlock()

	var empty bool
	err := r.store.Update(ctx, func(tx *Tx) error {
		if _, ok := tx.Documents().Get(id); !ok {
			return fmt.Errorf("%w: document %s", ErrNotFound, id)
		}

		subs := map[string]bool{}
		for _, s := range tx.SubRanges().Where(func(s SubRange) bool { return s.Parent == id }) {
			subs[s.ID] = true
			tx.SubRanges().Delete(s.ID)
			tx.SubRangePreviews().Delete(s.ID)
		}
		for _, p := range tx.SubRangePreviews().Where(func(p SubRangePreview) bool { return p.Parent == id }) {
			tx.SubRangePreviews().Delete(p.SubRange)
		}

		for _, m := range tx.MergeItems().All() {
			if m.Target == id || m.Parent == id || subs[m.Target] {
				tx.MergeItems().Delete(m.ID)
			}
		}
		renumber(tx)

		tx.FirstPagePreviews().Delete(id)
		tx.Documents().Delete(id)

		if tx.Documents().Count() == 0 {
			tx.Clear()
			empty = true
		}
		return nil
	})
	if err != nil {
		r.log.Error("removing document failed", "document", id, "error", err)
		return err
	}

	released := r.cache.Invalidate(id)
	r.log.Info("document removed", "document", id, "released", released)

	if empty {
		r.finishReset(ctx)
	}
	r.refresh(ctx)
	return nil
}

// GetOrRenderPage returns a handle URL for one page of a document. Render
// failures wrap ErrRender; show PlaceholderURL instead.
func (r *Registry) GetOrRenderPage(ctx context.Context, document string, page int) (string, error) {
	start := r.cache.epoch()

	var doc Document
	err := r.store.View(ctx, func(tx *Tx) error {
		d, ok := tx.Documents().Get(document)
		if !ok {
			return fmt.Errorf("%w: document %s", ErrNotFound, document)
		}
		doc = d
		return nil
	})
	if err != nil {
		r.log.Error("page lookup failed", "document", document, "page", page, "error", err)
		return "", err
	}
	url, _, err := r.cache.get(ctx, doc, page, start)
	return url, err
}

// FirstPagePreview returns the persisted first-page image of a document,
// or the placeholder.
func (r *Registry) FirstPagePreview(ctx context.Context, document string) string {
	return r.previews.FirstPage(ctx, document)
}

// SubRangePreview returns the persisted first and last page images of a
// sub-range, or placeholders.
func (r *Registry) SubRangePreview(ctx context.Context, sub string) [2]string {
	return r.previews.SubRange(ctx, sub)
}

// Invalidate releases every rendered page of a document.
func (r *Registry) Invalidate(document string) {
	r.cache.Invalidate(document)
}

// Cache returns the bounded page cache.
func (r *Registry) Cache() *PageCache { return r.cache }

// Handles returns the handle table backing the page cache.
func (r *Registry) Handles() *Handles { return r.handles }

// Compose builds the merged output; see Merger.Compose.
func (r *Registry) Compose(ctx context.Context) ([]byte, error) {
	return r.merger.Compose(ctx)
}

// TotalPageCount returns the page count of the merged output.
func (r *Registry) TotalPageCount(ctx context.Context) (int, error) {
	return r.merger.TotalPageCount(ctx)
}

// Plan returns the resolved merge plan.
func (r *Registry) Plan(ctx context.Context) ([]Step, error) {
	return r.merger.Plan(ctx)
}

// Close releases every rendered page handle. The store stays open.
func (r *Registry) Close() error {
	r.cache.Clear()
	return nil
}
