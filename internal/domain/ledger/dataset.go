package ledger

// Dataset is an ordered, in-memory collection of ledger rows. Order is
// stable across load/save so externally-edited files stay diffable.
type Dataset struct {
	rows []Transaction
}

// NewDataset builds a dataset from rows as-is, preserving order.
func NewDataset(rows []Transaction) *Dataset {
	return &Dataset{rows: rows}
}

// Rows returns the underlying rows. Callers must not mutate the slice;
// use Clone when a private copy is needed.
func (d *Dataset) Rows() []Transaction {
	if d == nil {
		return nil
	}
	return d.rows
}

// Len reports the total row count, tombstones included.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

// Active returns the non-deleted rows.
func (d *Dataset) Active() []Transaction {
	out := make([]Transaction, 0, d.Len())
	for _, r := range d.Rows() {
		if !r.Deleted {
			out = append(out, r)
		}
	}
	return out
}

// ActiveKeys returns the key set of all non-deleted rows. This is the set
// the identity invariant is defined over.
func (d *Dataset) ActiveKeys() map[Key]struct{} {
	keys := make(map[Key]struct{}, d.Len())
	for _, r := range d.Rows() {
		if !r.Deleted {
			keys[r.Key()] = struct{}{}
		}
	}
	return keys
}

// SoftDelete flips Deleted on every non-deleted row whose key is in keys
// and returns how many rows were flipped. Rows are never removed.
func (d *Dataset) SoftDelete(keys map[Key]struct{}) int {
	count := 0
	for i := range d.rows {
		if d.rows[i].Deleted {
			continue
		}
		if _, ok := keys[d.rows[i].Key()]; ok {
			d.rows[i].Deleted = true
			count++
		}
	}
	return count
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	rows := make([]Transaction, d.Len())
	copy(rows, d.Rows())
	return &Dataset{rows: rows}
}

// Equal reports whether two datasets hold the same rows in the same order.
func (d *Dataset) Equal(other *Dataset) bool {
	if d.Len() != other.Len() {
		return false
	}
	a, b := d.Rows(), other.Rows()
	for i := range a {
		if !a[i].Date.Equal(b[i].Date) ||
			a[i].Merchant != b[i].Merchant ||
			!a[i].Amount.Equal(b[i].Amount) ||
			a[i].Type != b[i].Type ||
			a[i].Source != b[i].Source ||
			a[i].Deleted != b[i].Deleted {
			return false
		}
	}
	return true
}
