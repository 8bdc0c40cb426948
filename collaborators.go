// External collaborators.
//
// binder never parses, rasterises or writes document bytes itself. Page
// counting, page rendering and page composition are delegated to the
// interfaces below, and the final "forget everything" step of a full reset
// is delegated to a WipeFunc supplied by the host application.
package binder

import "context"

// Loader extracts metadata from a source document. It fails on malformed
// input.
type Loader interface {
	Load(ctx context.Context, source []byte) (pages int, err error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, source []byte) (int, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, source []byte) (int, error) {
	return f(ctx, source)
}

// Renderer rasterises one 1-based page of a source document at the given
// scale and returns the encoded PNG image.
type Renderer interface {
	Render(ctx context.Context, source []byte, page int, scale float64) ([]byte, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, source []byte, page int, scale float64) ([]byte, error)

// Render implements Renderer.
func (f RendererFunc) Render(ctx context.Context, source []byte, page int, scale float64) ([]byte, error) {
	return f(ctx, source, page, scale)
}

// Page is an extracted page. Its concrete type is private to the Composer
// that produced it.
type Page any

// Composer copies pages between documents.
type Composer interface {
	// NewOutput starts an empty output document.
	NewOutput() Output
	// ExtractPages copies the pages at the given 0-based indices out of
	// source, in the order given.
	ExtractPages(ctx context.Context, source []byte, indices []int) ([]Page, error)
}

// Output is an output document under construction.
type Output interface {
	AddPage(p Page)
	Save() ([]byte, error)
}

// WipeFunc clears host-side storage (caches, preference stores) except for
// the retained keys. It is invoked at the end of a full reset, while the
// Registry is still serialising mutations, so it must not call back into
// the Registry.
type WipeFunc func(ctx context.Context, retained []string) error
