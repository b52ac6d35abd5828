package pager

import (
	"bytes"
	"os"
	"testing"
)

func truncateFile(path string, size int64) error {
	return os.Truncate(path, size)
}

func mustStore(t *testing.T, pageSize int) *Store {
	t.Helper()
	layout := mustLayout(t, pageSize)
	store, err := OpenStore(Config{BaseDir: t.TempDir(), Layout: layout})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	return store
}

func TestAllocatePageReturnsIncreasingIDs(t *testing.T) {
	store := mustStore(t, 128)

	p1, err := store.AllocatePage(1)
	if err != nil {
		t.Fatalf("AllocatePage 1: %v", err)
	}
	if p1.PageID() != 1 {
		t.Fatalf("first page id = %d, want 1", p1.PageID())
	}

	p2, err := store.AllocatePage(1)
	if err != nil {
		t.Fatalf("AllocatePage 2: %v", err)
	}
	if p2.PageID() != 2 {
		t.Fatalf("second page id = %d, want 2", p2.PageID())
	}

	meta, err := store.ReadMetadata(1)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if meta.NextID != 3 || meta.NumberOfPages != 2 {
		t.Fatalf("metadata = %+v, want next_id=3 number_of_pages=2", meta)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := mustStore(t, 128)

	page, err := store.AllocatePage(1)
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if page.PageID() != 1 {
		t.Fatalf("page id = %d, want 1", page.PageID())
	}

	row := []byte{0, 0, 0, 42} // Int(42), big-endian
	if _, err := page.InsertRecord(row); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	if err := store.WritePage(1, page); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	read, err := store.ReadPage(1, 1)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}

	it := read.RecordIterator()
	_, data, ok := it.Next()
	if !ok {
		t.Fatalf("expected one live record")
	}
	if !bytes.Equal(data, row) {
		t.Fatalf("record = %v, want %v", data, row)
	}
}

func TestTwoPageAllocation(t *testing.T) {
	store := mustStore(t, 128)

	if _, err := store.AllocatePage(1); err != nil {
		t.Fatalf("allocate page 1: %v", err)
	}
	page2, err := store.AllocatePage(1)
	if err != nil {
		t.Fatalf("allocate page 2: %v", err)
	}
	if page2.PageID() != 2 {
		t.Fatalf("second allocated page id = %d, want 2", page2.PageID())
	}

	row := []byte{0, 0, 0, 42}
	if _, err := page2.InsertRecord(row); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	if err := store.WritePage(1, page2); err != nil {
		t.Fatalf("WritePage 2: %v", err)
	}

	read2, err := store.ReadPage(1, 2)
	if err != nil {
		t.Fatalf("ReadPage(2): %v", err)
	}
	if _, data, ok := read2.RecordIterator().Next(); !ok || !bytes.Equal(data, row) {
		t.Fatalf("page 2 record = %v ok=%v, want %v", data, ok, row)
	}

	read1, err := store.ReadPage(1, 1)
	if err != nil {
		t.Fatalf("ReadPage(1): %v", err)
	}
	if _, _, ok := read1.RecordIterator().Next(); ok {
		t.Fatalf("page 1 should still be empty")
	}
}

func TestPageIteratorYieldsAllocatedPagesInOrder(t *testing.T) {
	store := mustStore(t, 64)
	for i := 0; i < 3; i++ {
		if _, err := store.AllocatePage(7); err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}

	it, err := store.PageIterator(7)
	if err != nil {
		t.Fatalf("PageIterator: %v", err)
	}
	var ids []int32
	for {
		page, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		ids = append(ids, page.PageID())
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("ids = %v, want [1 2 3]", ids)
	}
}

func TestOpenStoreDetectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	layout := mustLayout(t, 64)
	store, err := OpenStore(Config{BaseDir: dir, Layout: layout})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if _, err := store.AllocatePage(1); err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening a fresh Store against the same directory, then truncating
	// the backing file underneath it, should surface as corruption on the
	// next access that opens the file handle.
	store2, err := OpenStore(Config{BaseDir: dir, Layout: layout})
	if err != nil {
		t.Fatalf("OpenStore (reopen): %v", err)
	}
	path := store2.tablePath(1)
	if err := truncateFile(path, 4); err != nil {
		t.Fatalf("truncateFile: %v", err)
	}
	if _, err := store2.ReadMetadata(1); err == nil {
		t.Fatalf("expected corruption error after truncation")
	}
}
