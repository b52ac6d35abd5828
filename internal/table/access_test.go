package table

import (
	"testing"

	"github.com/SimonWaldherr/playdb/internal/pager"
)

func newTestAccess(t *testing.T, pageSize int, schema Schema) *Access {
	t.Helper()
	layout, err := pager.NewLayout(pageSize)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	store, err := pager.OpenStore(pager.Config{BaseDir: t.TempDir(), Layout: layout})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	tbl := NewTable(1, "test", schema)
	return NewAccess(tbl, store, layout)
}

func TestAccessInsertAndLoadAll(t *testing.T) {
	schema := Schema{NewVarcharColumn(1, "name", 10)}
	access := newTestAccess(t, 64, schema)

	if err := access.Insert(Row{VarcharCell("Hans")}); err != nil {
		t.Fatalf("insert 1: %v", err)
	}
	if err := access.Insert(Row{VarcharCell("Rabbit")}); err != nil {
		t.Fatalf("insert 2: %v", err)
	}

	rows, err := access.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
}

func TestAccessFindByColumn(t *testing.T) {
	schema := Schema{NewIntColumn(1, "id"), NewVarcharColumn(2, "name", 10)}
	access := newTestAccess(t, 64, schema)

	if err := access.Insert(Row{IntCell(1), VarcharCell("Hans")}); err != nil {
		t.Fatalf("insert Hans: %v", err)
	}
	if err := access.Insert(Row{IntCell(2), VarcharCell("Rabbit")}); err != nil {
		t.Fatalf("insert Rabbit: %v", err)
	}

	matches, err := access.Find("name", VarcharCell("Hans"))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0][0] != IntCell(1) || matches[0][1] != VarcharCell("Hans") {
		t.Fatalf("match = %v, want (1, Hans)", matches[0])
	}
}

func TestAccessFindIsCaseInsensitiveOnColumnName(t *testing.T) {
	schema := Schema{NewVarcharColumn(1, "Name", 10)}
	access := newTestAccess(t, 64, schema)
	if err := access.Insert(Row{VarcharCell("Hans")}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	matches, err := access.Find("name", VarcharCell("Hans"))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
}

func TestAccessFindUnknownColumn(t *testing.T) {
	schema := Schema{NewIntColumn(1, "id")}
	access := newTestAccess(t, 64, schema)
	if _, err := access.Find("nonexistent", IntCell(1)); err == nil {
		t.Fatalf("expected ColumnNotFoundError")
	}
}

func TestAccessInsertUsesFirstPageWithSpace(t *testing.T) {
	schema := Schema{NewVarcharColumn(1, "name", 20)}
	access := newTestAccess(t, 64, schema)

	for i := 0; i < 10; i++ {
		if err := access.Insert(Row{VarcharCell("row-value")}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	rows, err := access.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("got %d rows, want 10", len(rows))
	}

	// Each row is 2+9 = 11 bytes. A 64-byte page (50-byte data region)
	// takes two of them (50-7=43, then 39-14=25 free) and then has only
	// 28-21=7 free, so filling existing pages before allocating yields 5
	// pages for 10 rows.
	meta, err := access.store.ReadMetadata(access.table.ID)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if meta.NumberOfPages != 5 {
		t.Fatalf("number of pages = %d, want 5", meta.NumberOfPages)
	}
}

func TestAccessDrop(t *testing.T) {
	schema := Schema{NewIntColumn(1, "id")}
	access := newTestAccess(t, 64, schema)
	if err := access.Insert(Row{IntCell(1)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := access.Drop(); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	rows, err := access.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll after drop should reinitialize an empty file: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows after drop, want 0", len(rows))
	}
}
