package ledgerstore

import "fmt"

// table is the raw decoded ledger file: a header and one string record per
// data row. Migrations operate on this level so they can see exactly which
// columns the file carries, including files edited outside the app.
type table struct {
	columns []string
	records [][]string
}

func (t *table) columnIndex(name string) int {
	for i, c := range t.columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (t *table) hasColumn(name string) bool {
	return t.columnIndex(name) >= 0
}

// Migration adds one column with a default value when the column is absent.
// Application is keyed purely by column presence rather than a stored
// version number, which tolerates externally-edited files: applying a
// migration to an already-migrated table is a no-op, existing values are
// never rewritten, and unrelated migrations commute.
type Migration struct {
	Name    string
	Column  string
	Default string
}

// allMigrations defines the additive schema history. None of these depend
// on another; a migration that did would have to compose its prerequisite
// explicitly rather than rely on slice order.
var allMigrations = []Migration{
	{
		// Pre-type ledgers recorded expenses only.
		Name:    "add_type_column",
		Column:  colType,
		Default: "expense",
	},
	{
		Name:    "add_source_column",
		Column:  colSource,
		Default: "Legacy Import",
	},
	{
		Name:    "add_deleted_column",
		Column:  colDeleted,
		Default: "false",
	},
}

// SchemaWarning records a migration that actually ran during a load.
type SchemaWarning struct {
	Migration string
	Rows      int
}

func (w SchemaWarning) String() string {
	return fmt.Sprintf("%s: defaulted %d row(s)", w.Migration, w.Rows)
}

// migrate applies every pending migration to the table and reports which
// ones ran. The input table is modified in place.
func migrate(t *table) []SchemaWarning {
	var warnings []SchemaWarning
	for _, m := range allMigrations {
		if t.hasColumn(m.Column) {
			continue
		}
		t.columns = append(t.columns, m.Column)
		for i := range t.records {
			t.records[i] = append(t.records[i], m.Default)
		}
		warnings = append(warnings, SchemaWarning{Migration: m.Name, Rows: len(t.records)})
	}
	return warnings
}
