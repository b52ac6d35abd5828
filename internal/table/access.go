package table

import (
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/text/cases"

	"github.com/SimonWaldherr/playdb/internal/pager"
)

// ColumnIndex finds the position of the column named name using a
// Unicode-aware case fold, so "Name" matches a column declared "name".
// Returns -1 if no column matches. A fresh cases.Caser is built per call:
// cases.Caser is not safe for concurrent use, and Access makes no
// single-threaded guarantee of its own.
func ColumnIndex(schema Schema, name string) int {
	fold := cases.Fold()
	target := fold.String(name)
	for i, c := range schema {
		if fold.String(c.Name) == target {
			return i
		}
	}
	return -1
}

// Access binds a Table, a page Store, and a layout together and provides
// the insert/find/load_all operations over them. It holds no page
// beyond the scope of a single call.
type Access struct {
	table  *Table
	store  *pager.Store
	layout *pager.Layout
}

// NewAccess constructs a Access for table over store.
func NewAccess(table *Table, store *pager.Store, layout *pager.Layout) *Access {
	return &Access{table: table, store: store, layout: layout}
}

// Columns returns the schema's column names in order.
func (a *Access) Columns() []string {
	return lo.Map(a.table.Schema, func(c Column, _ int) string { return c.Name })
}

// Insert validates row, serializes it, and places it in the first page
// (in id order) with sufficient free space, allocating a new page if
// none qualifies.
func (a *Access) Insert(row Row) error {
	if err := row.Validate(a.table.Schema); err != nil {
		return err
	}
	data := row.Serialize()

	it, err := a.store.PageIterator(a.table.ID)
	if err != nil {
		return &InsertRowError{Reason: "cannot retrieve page iterator", Err: err}
	}

	for {
		page, ok, err := it.Next()
		if err != nil {
			return &InsertRowError{Reason: "cannot read page", Err: err}
		}
		if !ok {
			break
		}
		if page.CanInsert(data) {
			if _, err := page.InsertRecord(data); err != nil {
				return &InsertRowError{Reason: "page refused record despite CanInsert", Err: err}
			}
			if err := a.store.WritePage(a.table.ID, page); err != nil {
				return &InsertRowError{Reason: "cannot write page", Err: err}
			}
			return nil
		}
	}

	page, err := a.store.AllocatePage(a.table.ID)
	if err != nil {
		return &InsertRowError{Reason: "cannot allocate page", Err: err}
	}
	if _, err := page.InsertRecord(data); err != nil {
		return &InsertRowError{Reason: "cannot insert into newly allocated page", Err: err}
	}
	if err := a.store.WritePage(a.table.ID, page); err != nil {
		return &InsertRowError{Reason: "cannot write newly allocated page", Err: err}
	}
	return nil
}

// Find scans every page in id order and every live record within a page
// in slot-index order, returning the rows whose cell at colName equals
// value.
func (a *Access) Find(colName string, value Cell) ([]Row, error) {
	idx := ColumnIndex(a.table.Schema, colName)
	if idx < 0 {
		return nil, &ColumnNotFoundError{Name: colName}
	}

	all, err := a.LoadAll()
	if err != nil {
		return nil, err
	}

	matches := lo.Filter(all, func(row Row, _ int) bool {
		return row[idx] == value
	})
	return matches, nil
}

// LoadAll scans every page in id order and every live record within a
// page in slot-index order, deserializing each into a Row.
func (a *Access) LoadAll() ([]Row, error) {
	var rows []Row

	it, err := a.store.PageIterator(a.table.ID)
	if err != nil {
		return nil, &LoadRowsError{Reason: "cannot retrieve page iterator", Err: err}
	}

	for {
		page, ok, err := it.Next()
		if err != nil {
			return nil, &LoadRowsError{Reason: "cannot read page", Err: err}
		}
		if !ok {
			break
		}

		recIt := page.RecordIterator()
		for {
			_, data, ok := recIt.Next()
			if !ok {
				break
			}
			row, err := DeserializeRow(data, a.table.Schema)
			if err != nil {
				return nil, &LoadRowsError{Reason: fmt.Sprintf("deserialize row in page %d", page.PageID()), Err: err}
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// Drop deletes the table's backing page file.
func (a *Access) Drop() error {
	return a.store.DropTable(a.table.ID)
}
