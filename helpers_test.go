package binder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

const testJournal = "test.journal"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	return openTestStoreIn(t, t.TempDir())
}

func openTestStoreIn(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir, testJournal, Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Test sources are "<name>:<pages>", e.g. "A:10".
var testLoader = LoaderFunc(func(_ context.Context, source []byte) (int, error) {
	_, n, ok := strings.Cut(string(source), ":")
	if !ok {
		return 0, errors.New("malformed document")
	}
	return strconv.Atoi(n)
})

// testRenderer renders page p of source s as the bytes "s#p".
type testRenderer struct {
	calls   atomic.Int32
	fail    atomic.Bool
	started chan struct{} // receives once per call when non-nil
	gate    chan struct{} // blocks every call until closed when non-nil
}

func (r *testRenderer) Render(_ context.Context, source []byte, page int, _ float64) ([]byte, error) {
	r.calls.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}
	if r.fail.Load() {
		return nil, errors.New("renderer exploded")
	}
	return []byte(fmt.Sprintf("%s#%d", source, page)), nil
}

// testComposer extracts page i of "<name>:<pages>" as the string
// "<name><i+1>" and saves the output as the comma-joined pages.
type testComposer struct {
	fail bool
}

func (c *testComposer) NewOutput() Output { return &testOutput{} }

func (c *testComposer) ExtractPages(_ context.Context, source []byte, indices []int) ([]Page, error) {
	if c.fail {
		return nil, errors.New("composer exploded")
	}
	name, _, _ := strings.Cut(string(source), ":")
	out := make([]Page, len(indices))
	for i, idx := range indices {
		out[i] = fmt.Sprintf("%s%d", name, idx+1)
	}
	return out, nil
}

type testOutput struct {
	pages []string
}

func (o *testOutput) AddPage(p Page) { o.pages = append(o.pages, p.(string)) }

func (o *testOutput) Save() ([]byte, error) { return []byte(strings.Join(o.pages, ",")), nil }

// wipeRecorder records every WipeFunc call.
type wipeRecorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (w *wipeRecorder) wipe(_ context.Context, retained []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, retained)
	return nil
}

type fixture struct {
	dir      string
	store    *Store
	reg      *Registry
	renderer *testRenderer
	composer *testComposer
	wiped    *wipeRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureIn(t, t.TempDir(), Options{})
}

// newFixtureIn opens a store in dir and a registry over it. Collaborators
// missing from opts are filled with the test fakes.
func newFixtureIn(t *testing.T, dir string, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		dir:      dir,
		store:    openTestStoreIn(t, dir),
		renderer: &testRenderer{},
		composer: &testComposer{},
		wiped:    &wipeRecorder{},
	}
	if opts.Loader == nil {
		opts.Loader = testLoader
	}
	if opts.Renderer == nil {
		opts.Renderer = f.renderer
	}
	if opts.Composer == nil {
		opts.Composer = f.composer
	}
	if opts.Wipe == nil {
		opts.Wipe = f.wiped.wipe
	}

	reg, err := NewRegistry(context.Background(), f.store, opts)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	f.reg = reg
	return f
}

func (f *fixture) addDoc(t *testing.T, name string, pages int) string {
	t.Helper()
	id, err := f.reg.AddDocument(context.Background(), []byte(fmt.Sprintf("%s:%d", name, pages)), name+".pdf", 1024)
	if err != nil {
		t.Fatalf("AddDocument(%s): %v", name, err)
	}
	return id
}

func (f *fixture) addSub(t *testing.T, parent string, start, end int) string {
	t.Helper()
	if !f.reg.CreateSubRange(context.Background(), parent, start, end) {
		t.Fatalf("CreateSubRange(%d,%d) = false", start, end)
	}
	doc, _ := f.reg.Document(parent)
	for _, s := range doc.SubRanges {
		if s.Start == start && s.End == end {
			return s.ID
		}
	}
	t.Fatalf("sub-range [%d,%d] missing from parent", start, end)
	return ""
}

func (f *fixture) addMerge(t *testing.T, kind Kind, target string) {
	t.Helper()
	if err := f.reg.AddToMergeOrder(context.Background(), kind, target); err != nil {
		t.Fatalf("AddToMergeOrder: %v", err)
	}
}

// counts returns the row count of every collection.
func counts(t *testing.T, s *Store) map[Collection]int {
	t.Helper()
	out := map[Collection]int{}
	err := s.View(context.Background(), func(tx *Tx) error {
		out[Documents] = tx.Documents().Count()
		out[SubRanges] = tx.SubRanges().Count()
		out[MergeOrderItems] = tx.MergeItems().Count()
		out[FirstPagePreviews] = tx.FirstPagePreviews().Count()
		out[SubRangePreviews] = tx.SubRangePreviews().Count()
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	return out
}

// checkOrders fails unless the merge order holds exactly 0..N-1.
func checkOrders(t *testing.T, items []MergeItem) {
	t.Helper()
	for i, m := range items {
		if m.Order != i {
			t.Fatalf("item %d has order %d; orders = %v", i, m.Order, orders(items))
		}
	}
}

func orders(items []MergeItem) []int {
	out := make([]int, len(items))
	for i, m := range items {
		out[i] = m.Order
	}
	return out
}

func targets(items []MergeItem) []string {
	out := make([]string, len(items))
	for i, m := range items {
		out[i] = m.Target
	}
	return out
}
