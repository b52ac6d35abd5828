package pager

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// metadata field offsets within the file header.
const (
	metaOffNextID         = 0
	metaOffNumberOfPages  = 4
	metaInitialNextID     = 1
	metaInitialPageCount  = 0
)

// Metadata is the page file's 8-byte header: the next id the allocator
// will hand out, and the number of pages currently on disk.
type Metadata struct {
	NextID        int32
	NumberOfPages int32
}

// Config configures a Store.
type Config struct {
	// BaseDir is the directory holding one file per table.
	BaseDir string
	// Layout is the page layout shared by every page in every table file
	// opened through this Store.
	Layout *Layout
	// Logger receives page-file initialization, allocation and drop
	// events. Defaults to log.Default() when nil.
	Logger *log.Logger
}

// Store is the page file backend: one physical file per table, each a
// metadata header followed by a sequence of fixed-size pages. A Store
// serializes its own operations behind a mutex; it makes no claim about
// safety across multiple processes or multiple Store instances over the
// same directory.
type Store struct {
	mu      sync.Mutex
	baseDir string
	layout  *Layout
	logger  *log.Logger
	files   map[int32]*os.File
}

// OpenStore prepares a Store rooted at cfg.BaseDir. The directory is
// created if it does not exist; individual table files are opened lazily
// on first access.
func OpenStore(cfg Config) (*Store, error) {
	if cfg.Layout == nil {
		return nil, fmt.Errorf("pager: OpenStore requires a Layout")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, &IoError{Op: "mkdir " + cfg.BaseDir, Err: err}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		baseDir: cfg.BaseDir,
		layout:  cfg.Layout,
		logger:  logger,
		files:   make(map[int32]*os.File),
	}, nil
}

// tableFileName returns the basename of a table's backing file.
func tableFileName(tableID int32) string {
	return fmt.Sprintf("table_%d.dat", tableID)
}

// tablePath returns the full path to a table's backing file.
func (s *Store) tablePath(tableID int32) string {
	return filepath.Join(s.baseDir, tableFileName(tableID))
}

// file returns the open handle for tableID, opening (and if necessary
// creating and initializing) it on first use. Caller must hold s.mu.
func (s *Store) file(tableID int32) (*os.File, error) {
	if f, ok := s.files[tableID]; ok {
		return f, nil
	}
	path := s.tablePath(tableID)
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &IoError{Op: "open " + path, Err: err}
	}
	s.files[tableID] = f

	if isNew {
		if err := s.writeMetadataLocked(tableID, Metadata{NextID: metaInitialNextID, NumberOfPages: metaInitialPageCount}); err != nil {
			return nil, err
		}
		s.logger.Printf("pager: initialized page file %s", path)
	} else {
		if err := s.checkFileSizeLocked(tableID); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// checkFileSizeLocked verifies an existing file's length agrees with its
// own metadata, treating a mismatch as corruption.
func (s *Store) checkFileSizeLocked(tableID int32) error {
	f := s.files[tableID]
	info, err := f.Stat()
	if err != nil {
		return &IoError{Op: "stat table file", Err: err}
	}
	if info.Size() < FileHeaderSize {
		return &CorruptPageFileError{Path: s.tablePath(tableID), ExpectedSize: FileHeaderSize, ActualSize: info.Size()}
	}
	meta, err := s.readMetadataLocked(tableID)
	if err != nil {
		return err
	}
	expected := int64(FileHeaderSize) + int64(meta.NumberOfPages)*int64(s.layout.PageSize())
	if info.Size() != expected {
		return &CorruptPageFileError{Path: s.tablePath(tableID), ExpectedSize: expected, ActualSize: info.Size()}
	}
	return nil
}

// ReadMetadata returns the current metadata for a table's page file.
func (s *Store) ReadMetadata(tableID int32) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file(tableID); err != nil {
		return Metadata{}, err
	}
	return s.readMetadataLocked(tableID)
}

func (s *Store) readMetadataLocked(tableID int32) (Metadata, error) {
	buf := make([]byte, FileHeaderSize)
	if _, err := s.files[tableID].ReadAt(buf, 0); err != nil {
		return Metadata{}, &IoError{Op: fmt.Sprintf("read metadata for table %d", tableID), Err: err}
	}
	return Metadata{
		NextID:        int32(binary.BigEndian.Uint32(buf[metaOffNextID:])),
		NumberOfPages: int32(binary.BigEndian.Uint32(buf[metaOffNumberOfPages:])),
	}, nil
}

// WriteMetadata overwrites a table's file header.
func (s *Store) WriteMetadata(tableID int32, meta Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file(tableID); err != nil {
		return err
	}
	return s.writeMetadataLocked(tableID, meta)
}

func (s *Store) writeMetadataLocked(tableID int32, meta Metadata) error {
	buf := make([]byte, FileHeaderSize)
	binary.BigEndian.PutUint32(buf[metaOffNextID:], uint32(meta.NextID))
	binary.BigEndian.PutUint32(buf[metaOffNumberOfPages:], uint32(meta.NumberOfPages))
	if _, err := s.files[tableID].WriteAt(buf, 0); err != nil {
		return &IoError{Op: fmt.Sprintf("write metadata for table %d", tableID), Err: err}
	}
	return nil
}

// pageOffset returns the byte offset of page k within its file.
func (s *Store) pageOffset(pageID int32) int64 {
	return int64(FileHeaderSize) + int64(pageID-1)*int64(s.layout.PageSize())
}

// ReadPage reads and deserializes page pageID from tableID's file.
func (s *Store) ReadPage(tableID, pageID int32) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.file(tableID)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, s.layout.PageSize())
	if _, err := f.ReadAt(buf, s.pageOffset(pageID)); err != nil {
		return nil, &ReadPageError{PageID: pageID, Reason: "io error", Err: err}
	}
	return DeserializePage(buf, s.layout)
}

// WritePage serializes and writes page to its byte position in tableID's
// file.
func (s *Store) WritePage(tableID int32, page *Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.file(tableID)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(page.Serialize(), s.pageOffset(page.PageID())); err != nil {
		return &IoError{Op: fmt.Sprintf("write page %d of table %d", page.PageID(), tableID), Err: err}
	}
	return nil
}

// AllocatePage claims the next page id for tableID, persists the updated
// metadata, writes an empty page to its reserved byte position, and
// returns it. The metadata write and the page write are not atomic with
// each other: a crash between them leaves metadata claiming a
// page that is not yet on disk. A correlation id ties the two log lines
// for one allocation together, for post-mortem diagnosis only.
func (s *Store) AllocatePage(tableID int32) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file(tableID); err != nil {
		return nil, err
	}
	meta, err := s.readMetadataLocked(tableID)
	if err != nil {
		return nil, err
	}

	corrID := uuid.NewString()
	id := meta.NextID
	meta.NextID++
	meta.NumberOfPages++

	page := NewPage(s.layout)
	if err := page.SetPageID(id); err != nil {
		return nil, err
	}

	if err := s.writeMetadataLocked(tableID, meta); err != nil {
		return nil, err
	}
	s.logger.Printf("pager: [%s] allocated page %d of table %d (metadata committed)", corrID, id, tableID)

	f := s.files[tableID]
	if _, err := f.WriteAt(page.Serialize(), s.pageOffset(id)); err != nil {
		return nil, &IoError{Op: fmt.Sprintf("write allocated page %d of table %d", id, tableID), Err: err}
	}
	s.logger.Printf("pager: [%s] wrote empty page %d of table %d", corrID, id, tableID)

	return page, nil
}

// PageIterator yields a table's pages in ascending id order.
type PageIterator struct {
	store         *Store
	tableID       int32
	nextID        int32
	numberOfPages int32
}

// PageIterator reads tableID's metadata once and returns an iterator over
// its pages in id order, 1..number_of_pages.
func (s *Store) PageIterator(tableID int32) (*PageIterator, error) {
	meta, err := s.ReadMetadata(tableID)
	if err != nil {
		return nil, err
	}
	return &PageIterator{store: s, tableID: tableID, nextID: 1, numberOfPages: meta.NumberOfPages}, nil
}

// Next returns the next page, or ok=false once the table's pages at the
// time the iterator was constructed are exhausted.
func (it *PageIterator) Next() (page *Page, ok bool, err error) {
	if it.nextID > it.numberOfPages {
		return nil, false, nil
	}
	page, err = it.store.ReadPage(it.tableID, it.nextID)
	if err != nil {
		return nil, false, err
	}
	it.nextID++
	return page, true, nil
}

// DropTable removes a table's backing file and closes any open handle to
// it. It is not an error if the file does not exist.
func (s *Store) DropTable(tableID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[tableID]; ok {
		_ = f.Close()
		delete(s.files, tableID)
	}
	path := s.tablePath(tableID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &IoError{Op: "remove " + path, Err: err}
	}
	s.logger.Printf("pager: dropped table file %s", path)
	return nil
}

// Close closes every open table file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for id, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = &IoError{Op: fmt.Sprintf("close table %d", id), Err: err}
		}
	}
	s.files = make(map[int32]*os.File)
	return firstErr
}

// Layout returns the layout this Store was opened with.
func (s *Store) Layout() *Layout { return s.layout }
