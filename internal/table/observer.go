package table

import (
	"log"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
)

// Observer periodically walks a table's pages and logs free-space
// utilization. It is pure observability: it never mutates the table and
// is disabled unless explicitly started. It exists because a
// slotted-page engine with a naive linear insert scan benefits
// from visibility into how full its pages are getting, without needing a
// real free-space map.
type Observer struct {
	access *Access
	logger *log.Logger
	cron   *cron.Cron
	mu     sync.Mutex
	entry  cron.EntryID
	active bool
}

// NewObserver builds an Observer for access. logger defaults to
// log.Default() when nil.
func NewObserver(access *Access, logger *log.Logger) *Observer {
	if logger == nil {
		logger = log.Default()
	}
	return &Observer{access: access, logger: logger, cron: cron.New()}
}

// Start schedules a health-log run on the given cron expression (e.g.
// "@every 1m") and begins running it. Calling Start twice without a Stop
// in between is a no-op.
func (o *Observer) Start(spec string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		return nil
	}
	id, err := o.cron.AddFunc(spec, o.logUtilization)
	if err != nil {
		return err
	}
	o.entry = id
	o.cron.Start()
	o.active = true
	return nil
}

// Stop halts the scheduled run, if any.
func (o *Observer) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return
	}
	o.cron.Remove(o.entry)
	ctx := o.cron.Stop()
	<-ctx.Done()
	o.active = false
}

// logUtilization scans the table's pages once and logs a one-line
// summary: page count, and live record count and free space summed over
// all pages.
func (o *Observer) logUtilization() {
	it, err := o.access.store.PageIterator(o.access.table.ID)
	if err != nil {
		o.logger.Printf("table: observer: cannot open page iterator for %q: %v", o.access.table.Name, err)
		return
	}

	pages := 0
	liveRecords := 0
	var totalFree int

	for {
		page, ok, err := it.Next()
		if err != nil {
			o.logger.Printf("table: observer: error scanning %q: %v", o.access.table.Name, err)
			return
		}
		if !ok {
			break
		}
		pages++
		liveRecords += int(page.NumberOfRecords())
		totalFree += page.SpaceRemaining()
	}

	o.logger.Printf("table: %q health: %d pages, %d live records, %s free space reclaimable",
		o.access.table.Name, pages, liveRecords, humanize.Bytes(uint64(totalFree)))
}
