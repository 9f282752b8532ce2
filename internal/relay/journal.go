package relay

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Journal event types
const (
	EvtConnect    = "connect"
	EvtDisconnect = "disconnect"
	EvtHostAssign = "host_assign"
	EvtTraffic    = "traffic"
)

// Event is a single journal record
type Event struct {
	Type      string
	SessionID string
	Detail    string // JSON metadata (optional)
	Timestamp time.Time
}

// Journal persists relay lifecycle events to SQLite with batched
// background writes. It is an operator's log: nothing in it is ever
// read back into protocol state. A nil *Journal is a disabled journal
// and every method on it is a no-op.
type Journal struct {
	db     *sql.DB
	events chan Event
	stop   chan struct{}
	wg     sync.WaitGroup
}

// OpenJournal opens (or creates) the journal database and starts the
// background writer.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL keeps the writer from blocking /status queries
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		session_id TEXT,
		detail TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
	CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{
		db:     db,
		events: make(chan Event, 1024),
		stop:   make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writer()
	return j, nil
}

// Record enqueues an event for async persistence (non-blocking)
func (j *Journal) Record(evtType, sessionID, detail string) {
	if j == nil {
		return
	}
	select {
	case j.events <- Event{
		Type:      evtType,
		SessionID: sessionID,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}:
	default:
		// Channel full, drop the record rather than block the relay
	}
}

// Stop flushes pending events and stops the writer. The database stays
// open for queries until Close.
func (j *Journal) Stop() {
	if j == nil {
		return
	}
	close(j.stop)
	j.wg.Wait()
}

// Close releases the database. Call Stop first.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

// writer is the background goroutine that batches and writes events
func (j *Journal) writer() {
	defer j.wg.Done()

	batch := make([]Event, 0, 64)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt := <-j.events:
			batch = append(batch, evt)
			// Flush immediately if batch is large
			if len(batch) >= 50 {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-j.stop:
			// Drain remaining events
			close(j.events)
			for evt := range j.events {
				batch = append(batch, evt)
			}
			if len(batch) > 0 {
				j.flush(batch)
			}
			return
		}
	}
}

// flush writes a batch of events to the database
func (j *Journal) flush(events []Event) {
	tx, err := j.db.Begin()
	if err != nil {
		log.Printf("journal: begin tx error: %v", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO events (event_type, session_id, detail, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		log.Printf("journal: prepare error: %v", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		sid := sql.NullString{String: evt.SessionID, Valid: evt.SessionID != ""}
		detail := sql.NullString{String: evt.Detail, Valid: evt.Detail != ""}
		if _, err := stmt.Exec(evt.Type, sid, detail, evt.Timestamp.Format(time.RFC3339)); err != nil {
			log.Printf("journal: insert error: %v", err)
		}
	}
	tx.Commit()
}

// EventCounts returns counts of each event type for the last N days
func (j *Journal) EventCounts(days int) (map[string]int, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.db.Query(`
		SELECT event_type, COUNT(*) FROM events
		WHERE created_at >= date('now', '-' || ? || ' days')
		GROUP BY event_type ORDER BY COUNT(*) DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			continue
		}
		result[evtType] = count
	}
	return result, rows.Err()
}

// Recent returns the newest events, newest first
func (j *Journal) Recent(limit int) ([]Event, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.db.Query(`
		SELECT event_type, COALESCE(session_id, ''), COALESCE(detail, ''), created_at
		FROM events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		var e Event
		var ts string
		if err := rows.Scan(&e.Type, &e.SessionID, &e.Detail, &ts); err != nil {
			continue
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		result = append(result, e)
	}
	return result, rows.Err()
}
