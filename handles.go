// Revocable handles for rendered images.
//
// Rendered pages are handed to callers as opaque "blob:" URLs that resolve
// to image bytes held here. A handle stays alive until it is revoked; the
// table never reclaims anything on its own, so every handle the PageCache
// creates must be revoked by the PageCache when it lets go of it. Len makes
// leaks observable.
package binder

import (
	"encoding/base64"
	"strings"
	"sync"
)

const blobScheme = "blob:"

// Handles is a table of live image handles.
type Handles struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewHandles returns an empty handle table.
func NewHandles() *Handles {
	return &Handles{blobs: map[string][]byte{}}
}

// Create registers data and returns its handle URL.
func (h *Handles) Create(data []byte) string {
	url := blobScheme + newID()
	h.mu.Lock()
	h.blobs[url] = data
	h.mu.Unlock()
	return url
}

// Revoke releases a handle. URLs that are not blob handles are ignored.
// It reports whether a live handle was released.
func (h *Handles) Revoke(url string) bool {
	if !strings.HasPrefix(url, blobScheme) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.blobs[url]; !ok {
		return false
	}
	delete(h.blobs, url)
	return true
}

// Resolve returns the bytes behind a live handle.
func (h *Handles) Resolve(url string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.blobs[url]
	return data, ok
}

// Len returns the number of live handles.
func (h *Handles) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.blobs)
}

// dataURL encodes a PNG image as a self-contained URL. Unlike a handle it
// needs no release and survives restarts.
func dataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
