// In-memory collections and their journal codecs.
//
// The committed state is a set of tables, one per collection. A table is
// never mutated after it has been committed: Update clones every table,
// lets the transaction mutate the clones, and swaps them in only once the
// commit record is on disk.
package binder

import (
	"cmp"
	"maps"
	"slices"

	json "github.com/goccy/go-json"
)

// row is implemented by every persisted entity type.
type row interface {
	key() string
}

// table holds the rows of one collection in insertion order.
type table[T row] struct {
	name   Collection
	rows   map[string]T
	seq    map[string]uint64 // insertion sequence per key
	next   uint64
	encode func(T) ([]byte, error)
	decode func([]byte) (T, error)
	clone  func(T) T
}

func newTable[T row](name Collection) *table[T] {
	return &table[T]{
		name: name,
		rows: map[string]T{},
		seq:  map[string]uint64{},
		encode: func(v T) ([]byte, error) {
			return json.Marshal(v)
		},
		decode: func(data []byte) (T, error) {
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				return v, ErrCorruptRecord
			}
			return v, nil
		},
		clone: func(v T) T { return v },
	}
}

func (t *table[T]) copy() *table[T] {
	c := *t
	c.rows = maps.Clone(t.rows)
	c.seq = maps.Clone(t.seq)
	return &c
}

func (t *table[T]) put(v T) {
	k := v.key()
	if _, ok := t.seq[k]; !ok {
		t.seq[k] = t.next
		t.next++
	}
	t.rows[k] = v
}

func (t *table[T]) remove(k string) bool {
	if _, ok := t.rows[k]; !ok {
		return false
	}
	delete(t.rows, k)
	delete(t.seq, k)
	return true
}

func (t *table[T]) clear() {
	t.rows = map[string]T{}
	t.seq = map[string]uint64{}
}

// all returns the rows in insertion order.
func (t *table[T]) all() []T {
	keys := slices.SortedFunc(maps.Keys(t.rows), func(a, b string) int {
		return cmp.Compare(t.seq[a], t.seq[b])
	})
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.clone(t.rows[k]))
	}
	return out
}

// apply replays one journal op against the table.
func (t *table[T]) apply(r *Record) error {
	switch r.Op {
	case OpPut:
		v, err := t.decode(r.Data)
		if err != nil {
			return err
		}
		if v.key() != r.ID {
			return ErrCorruptRecord
		}
		t.put(v)
	case OpDelete:
		t.remove(r.ID)
	case OpClear:
		t.clear()
	}
	return nil
}

// applier is the untyped view of a table used by replay.
type applier interface {
	apply(r *Record) error
}

// state is the full set of collections.
type state struct {
	documents   *table[Document]
	subRanges   *table[SubRange]
	mergeItems  *table[MergeItem]
	firstPages  *table[FirstPagePreview]
	subPreviews *table[SubRangePreview]
}

func newState() *state {
	docs := newTable[Document](Documents)
	docs.encode = encodeDocument
	docs.decode = decodeDocument
	docs.clone = bareDocument

	return &state{
		documents:   docs,
		subRanges:   newTable[SubRange](SubRanges),
		mergeItems:  newTable[MergeItem](MergeOrderItems),
		firstPages:  newTable[FirstPagePreview](FirstPagePreviews),
		subPreviews: newTable[SubRangePreview](SubRangePreviews),
	}
}

func (s *state) copy() *state {
	return &state{
		documents:   s.documents.copy(),
		subRanges:   s.subRanges.copy(),
		mergeItems:  s.mergeItems.copy(),
		firstPages:  s.firstPages.copy(),
		subPreviews: s.subPreviews.copy(),
	}
}

func (s *state) lookup(c Collection) applier {
	switch c {
	case Documents:
		return s.documents
	case SubRanges:
		return s.subRanges
	case MergeOrderItems:
		return s.mergeItems
	case FirstPagePreviews:
		return s.firstPages
	case SubRangePreviews:
		return s.subPreviews
	default:
		return nil
	}
}

// snapshot encodes every live row as put records, collection by collection
// in insertion order. Used by Compact to rewrite the journal.
func (s *state) snapshot() ([]Record, error) {
	var out []Record
	var err error
	if out, err = dump(out, s.documents); err != nil {
		return nil, err
	}
	if out, err = dump(out, s.subRanges); err != nil {
		return nil, err
	}
	if out, err = dump(out, s.mergeItems); err != nil {
		return nil, err
	}
	if out, err = dump(out, s.firstPages); err != nil {
		return nil, err
	}
	return dump(out, s.subPreviews)
}

func dump[T row](out []Record, t *table[T]) ([]Record, error) {
	ts := now()
	for _, v := range t.all() {
		data, err := t.encode(v)
		if err != nil {
			return nil, err
		}
		out = append(out, Record{Op: OpPut, Collection: t.name, ID: v.key(), Timestamp: ts, Data: data})
	}
	return out, nil
}
