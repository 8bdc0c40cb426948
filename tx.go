// Transactions.
//
// A Tx is handed to the callback of Store.Update or Store.View. Reads see
// the transaction's own writes. Writes are recorded as journal ops and only
// reach disk if the callback returns nil; otherwise they are dropped along
// with the private copy of the state they were applied to.
package binder

// Tx is a transaction over every collection.
type Tx struct {
	st       *state
	ops      []Record
	writable bool
	err      error
}

// Documents returns the documents collection.
func (tx *Tx) Documents() Table[Document] { return Table[Document]{tx, tx.st.documents} }

// SubRanges returns the sub-ranges collection.
func (tx *Tx) SubRanges() Table[SubRange] { return Table[SubRange]{tx, tx.st.subRanges} }

// MergeItems returns the merge order collection.
func (tx *Tx) MergeItems() Table[MergeItem] { return Table[MergeItem]{tx, tx.st.mergeItems} }

// FirstPagePreviews returns the persisted first-page preview cache.
func (tx *Tx) FirstPagePreviews() Table[FirstPagePreview] {
	return Table[FirstPagePreview]{tx, tx.st.firstPages}
}

// SubRangePreviews returns the persisted sub-range preview cache.
func (tx *Tx) SubRangePreviews() Table[SubRangePreview] {
	return Table[SubRangePreview]{tx, tx.st.subPreviews}
}

// Clear empties every collection.
func (tx *Tx) Clear() {
	tx.Documents().Clear()
	tx.SubRanges().Clear()
	tx.MergeItems().Clear()
	tx.FirstPagePreviews().Clear()
	tx.SubRangePreviews().Clear()
}

// fail records the first error raised by a mutation. Update and View
// return it once the callback finishes.
func (tx *Tx) fail(err error) {
	if tx.err == nil {
		tx.err = err
	}
}

func (tx *Tx) record(r Record) bool {
	if !tx.writable {
		tx.fail(ErrReadOnly)
		return false
	}
	r.Timestamp = now()
	tx.ops = append(tx.ops, r)
	return true
}

// Table is one collection as seen from inside a transaction.
type Table[T row] struct {
	tx *Tx
	t  *table[T]
}

// Get returns the row with the given key.
func (t Table[T]) Get(id string) (T, bool) {
	v, ok := t.t.rows[id]
	if !ok {
		return v, false
	}
	return t.t.clone(v), true
}

// All returns every row in insertion order.
func (t Table[T]) All() []T {
	return t.t.all()
}

// Where returns the rows matching fn in insertion order.
func (t Table[T]) Where(fn func(T) bool) []T {
	var out []T
	for _, v := range t.t.all() {
		if fn(v) {
			out = append(out, v)
		}
	}
	return out
}

// Count returns the number of rows.
func (t Table[T]) Count() int {
	return len(t.t.rows)
}

// Put inserts or replaces a row. A replaced row keeps its position.
func (t Table[T]) Put(v T) {
	data, err := t.t.encode(v)
	if err != nil {
		t.tx.fail(err)
		return
	}
	if !t.tx.record(Record{Op: OpPut, Collection: t.t.name, ID: v.key(), Data: data}) {
		return
	}
	t.t.put(t.t.clone(v))
}

// Delete removes the row with the given key and reports whether it
// existed. Deleting a missing row records nothing.
func (t Table[T]) Delete(id string) bool {
	if _, ok := t.t.rows[id]; !ok {
		return false
	}
	if !t.tx.record(Record{Op: OpDelete, Collection: t.t.name, ID: id}) {
		return false
	}
	return t.t.remove(id)
}

// Clear removes every row.
func (t Table[T]) Clear() {
	if !t.tx.record(Record{Op: OpClear, Collection: t.t.name}) {
		return
	}
	t.t.clear()
}
