package binder

import (
	"context"
	"testing"
)

func TestFirstPagePreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addDoc(t, "A", 3)

	url := f.reg.FirstPagePreview(ctx, a)
	if url != dataURL([]byte("A:3#1")) {
		t.Errorf("FirstPagePreview = %q", url)
	}
	if again := f.reg.FirstPagePreview(ctx, a); again != url {
		t.Errorf("second call = %q, want %q", again, url)
	}
	if f.renderer.calls.Load() != 1 {
		t.Errorf("rendered %d times, want 1", f.renderer.calls.Load())
	}

	f.store.View(ctx, func(tx *Tx) error {
		row, ok := tx.FirstPagePreviews().Get(a)
		if !ok || string(row.Image) != "A:3#1" {
			t.Errorf("persisted preview = %+v, %v", row, ok)
		}
		return nil
	})
}

// TestPreviewSurvivesRestart checks that a persisted preview is served
// from the store by a new registry without rendering again.
func TestPreviewSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	f := newFixtureIn(t, dir, Options{})
	a := f.addDoc(t, "A", 3)
	s := f.addSub(t, a, 2, 3)
	f.reg.FirstPagePreview(context.Background(), a)
	f.reg.SubRangePreview(context.Background(), s)
	f.reg.Close()
	f.store.Close()

	f2 := newFixtureIn(t, dir, Options{})
	if got := f2.reg.FirstPagePreview(context.Background(), a); got != dataURL([]byte("A:3#1")) {
		t.Errorf("FirstPagePreview after restart = %q", got)
	}
	got := f2.reg.SubRangePreview(context.Background(), s)
	if got[0] != dataURL([]byte("A:3#2")) || got[1] != dataURL([]byte("A:3#3")) {
		t.Errorf("SubRangePreview after restart = %q", got)
	}
	if n := f2.renderer.calls.Load(); n != 0 {
		t.Errorf("rendered %d times after restart, want 0", n)
	}
}

func TestFirstPagePreviewPlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addDoc(t, "A", 3)
	f.renderer.fail.Store(true)

	if got := f.reg.FirstPagePreview(ctx, a); got != PlaceholderURL() {
		t.Errorf("FirstPagePreview = %.40q, want the placeholder", got)
	}
	if got := f.reg.FirstPagePreview(ctx, "missing"); got != PlaceholderURL() {
		t.Errorf("missing document = %.40q, want the placeholder", got)
	}
	if n := counts(t, f.store)[FirstPagePreviews]; n != 0 {
		t.Errorf("%d previews persisted after failure, want 0", n)
	}

	// A later success is persisted.
	f.renderer.fail.Store(false)
	if got := f.reg.FirstPagePreview(ctx, a); got == PlaceholderURL() {
		t.Error("placeholder after renderer recovered")
	}
	if n := counts(t, f.store)[FirstPagePreviews]; n != 1 {
		t.Errorf("%d previews persisted, want 1", n)
	}
}

func TestSubRangePreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addDoc(t, "A", 9)
	s := f.addSub(t, a, 4, 7)

	got := f.reg.SubRangePreview(ctx, s)
	if got[0] != dataURL([]byte("A:9#4")) || got[1] != dataURL([]byte("A:9#7")) {
		t.Errorf("SubRangePreview = %q", got)
	}
	f.store.View(ctx, func(tx *Tx) error {
		row, ok := tx.SubRangePreviews().Get(s)
		if !ok || row.Parent != a || string(row.First) != "A:9#4" || string(row.Last) != "A:9#7" {
			t.Errorf("persisted preview = %+v, %v", row, ok)
		}
		return nil
	})

	calls := f.renderer.calls.Load()
	f.reg.SubRangePreview(ctx, s)
	if f.renderer.calls.Load() != calls {
		t.Error("persisted sub-range preview rendered again")
	}
}

func TestSubRangePreviewSinglePage(t *testing.T) {
	f := newFixture(t)
	a := f.addDoc(t, "A", 9)
	s := f.addSub(t, a, 5, 5)

	got := f.reg.SubRangePreview(context.Background(), s)
	if got[0] != got[1] || got[0] != dataURL([]byte("A:9#5")) {
		t.Errorf("SubRangePreview = %q", got)
	}
}

func TestSubRangePreviewPlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addDoc(t, "A", 9)
	s := f.addSub(t, a, 1, 2)
	f.renderer.fail.Store(true)

	want := [2]string{PlaceholderURL(), PlaceholderURL()}
	if got := f.reg.SubRangePreview(ctx, s); got != want {
		t.Error("SubRangePreview did not fall back to placeholders")
	}
	if got := f.reg.SubRangePreview(ctx, "missing"); got != want {
		t.Error("missing sub-range did not fall back to placeholders")
	}
	if n := counts(t, f.store)[SubRangePreviews]; n != 0 {
		t.Errorf("%d previews persisted after failure, want 0", n)
	}
}

// TestPreviewOfRemovedDocument removes a document while its first page is
// being rendered. The preview must not be persisted for a missing owner.
func TestPreviewOfRemovedDocument(t *testing.T) {
	dir := t.TempDir()
	r := &testRenderer{started: make(chan struct{}, 1), gate: make(chan struct{})}
	f := newFixtureIn(t, dir, Options{Renderer: r})
	ctx := context.Background()
	a := f.addDoc(t, "A", 2)
	f.addDoc(t, "B", 2)

	done := make(chan string, 1)
	go func() { done <- f.reg.FirstPagePreview(ctx, a) }()

	<-r.started
	if err := f.reg.RemoveDocument(ctx, a); err != nil {
		t.Fatalf("RemoveDocument: %v", err)
	}
	close(r.gate)

	if got := <-done; got != PlaceholderURL() {
		t.Errorf("FirstPagePreview = %.40q, want the placeholder", got)
	}
	if n := counts(t, f.store)[FirstPagePreviews]; n != 0 {
		t.Errorf("%d previews persisted for a removed document", n)
	}
	if f.reg.Handles().Len() != f.reg.Cache().Len() {
		t.Errorf("cache %d, handles %d", f.reg.Cache().Len(), f.reg.Handles().Len())
	}
}
