package ledger

// MergeReport summarizes one merge pass.
type MergeReport struct {
	Added   int
	Skipped int
}

// Merge reconciles incoming rows against an existing dataset and returns a
// new dataset; neither input is mutated.
//
// A row whose key matches a non-deleted existing row is a duplicate and is
// dropped. Everything else is appended, including rows whose key matches
// only soft-deleted history: a user-deleted transaction reappearing from a
// fresh sync is a legitimate new entry, distinguishable from the tombstone
// by its own Deleted flag. Fields of already-present rows are never touched,
// so a mislabelled Type or Source on a duplicate never rewrites the ledger.
//
// Merging the same batch twice yields the same dataset as merging it once,
// which is what makes retrying a failed sync window safe.
func Merge(existing *Dataset, incoming []Transaction) (*Dataset, MergeReport) {
	out := existing.Clone()
	report := MergeReport{}

	active := out.ActiveKeys()
	for _, tx := range incoming {
		tx = tx.Normalize()
		key := tx.Key()
		if _, dup := active[key]; dup {
			report.Skipped++
			continue
		}
		tx.Deleted = false
		out.rows = append(out.rows, tx)
		active[key] = struct{}{}
		report.Added++
	}

	return out, report
}
