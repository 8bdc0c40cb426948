// Entity types stored in the journal.
//
// Parent/child links are explicit foreign-key fields on separate
// collections: a SubRange names its parent Document, a MergeItem names its
// target and, for sub-ranges, the target's parent. Document rows never hold
// their sub-ranges; the Registry fills Document.SubRanges from the
// subRanges collection when it loads its mirror.
package binder

import (
	"slices"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Collection names a persisted collection.
type Collection string

// Persisted collections.
const (
	Documents         Collection = "documents"
	SubRanges         Collection = "subRanges"
	MergeOrderItems   Collection = "mergeOrderItems"
	FirstPagePreviews Collection = "firstPagePreviews"
	SubRangePreviews  Collection = "subRangePreviews"
)

// Kind selects what a MergeItem refers to.
type Kind string

const (
	KindDocument Kind = "document"
	KindSubRange Kind = "subRange"
)

// Document is an imported source file with a known page count.
type Document struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Source    []byte     `json:"-"`
	Size      int64      `json:"size"`
	Pages     int        `json:"pages"`
	SubRanges []SubRange `json:"-"` // Filled by the Registry
	Created   int64      `json:"created"`
}

func (d Document) key() string { return d.ID }

// SubRange is a page-bounded view into one Document. Start and End are
// 1-based and inclusive.
type SubRange struct {
	ID     string `json:"id"`
	Parent string `json:"parent"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

func (s SubRange) key() string { return s.ID }

// Range returns [Start, End].
func (s SubRange) Range() [2]int { return [2]int{s.Start, s.End} }

// Pages returns the number of pages the range spans.
func (s SubRange) Pages() int { return s.End - s.Start + 1 }

// validRange reports whether [start, end] fits a document of n pages.
func validRange(start, end, n int) bool {
	return start >= 1 && start <= end && end <= n
}

// MergeItem is one entry in the final composition sequence. Parent is set
// only when Kind is KindSubRange.
type MergeItem struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Target string `json:"target"`
	Order  int    `json:"order"`
	Parent string `json:"parent,omitempty"`
}

func (m MergeItem) key() string { return m.ID }

// FirstPagePreview is the persisted first-page image of a document.
type FirstPagePreview struct {
	Document string `json:"document"`
	Image    []byte `json:"image"`
}

func (p FirstPagePreview) key() string { return p.Document }

// SubRangePreview is the persisted first and last page images of a
// sub-range.
type SubRangePreview struct {
	SubRange string `json:"subRange"`
	Parent   string `json:"parent"`
	First    []byte `json:"first"`
	Last     []byte `json:"last"`
}

func (p SubRangePreview) key() string { return p.SubRange }

// documentRecord is the journal form of a Document. The source bytes are
// compressed inline.
type documentRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Source  string `json:"source"`
	Size    int64  `json:"size"`
	Pages   int    `json:"pages"`
	Created int64  `json:"created"`
}

func encodeDocument(d Document) ([]byte, error) {
	return json.Marshal(documentRecord{
		ID:      d.ID,
		Title:   d.Title,
		Source:  compress(d.Source),
		Size:    d.Size,
		Pages:   d.Pages,
		Created: d.Created,
	})
}

func decodeDocument(data []byte) (Document, error) {
	var r documentRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return Document{}, ErrCorruptRecord
	}
	source, err := decompress(r.Source)
	if err != nil {
		return Document{}, err
	}
	return Document{
		ID:      r.ID,
		Title:   r.Title,
		Source:  source,
		Size:    r.Size,
		Pages:   r.Pages,
		Created: r.Created,
	}, nil
}

// cloneDocument copies the SubRanges slice so that callers never write
// into the mirror's backing array.
func cloneDocument(d Document) Document {
	d.SubRanges = slices.Clone(d.SubRanges)
	return d
}

// bareDocument is the row a Store holds: the sub-range list lives in its
// own collection.
func bareDocument(d Document) Document {
	d.SubRanges = nil
	return d
}

// newID returns a time-ordered identifier.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// now returns the current time in unix milliseconds.
func now() int64 {
	return time.Now().UnixMilli()
}
