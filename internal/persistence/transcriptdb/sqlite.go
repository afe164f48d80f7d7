// Package transcriptdb keeps a queryable history of every transcript line the
// session store inserts, so a restarted client can show what scrolled by.
package transcriptdb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
	_ "modernc.org/sqlite"

	"arxclient.ai/internal/session"
)

type DB struct {
	db  *sql.DB
	log zerolog.Logger

	mu   sync.RWMutex // guards ch against send-after-close
	ch   chan row
	wg   sync.WaitGroup
	once sync.Once

	closed    atomic.Bool
	dropTotal atomic.Uint64
}

type row struct {
	character session.CharacterID
	entry     session.TranscriptEntry
}

type Stats struct {
	QueueLen  int    `json:"queue_len"`
	DropTotal uint64 `json:"drop_total"`
}

func OpenSQLite(path string, logger zerolog.Logger) (*DB, error) {
	errb := oops.In("transcriptdb")
	if path == "" {
		return nil, errb.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errb.Wrapf(err, "create dir for %s", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errb.Wrapf(err, "open %s", path)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, errb.Wrapf(err, "pragmas")
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, errb.Wrapf(err, "schema")
	}

	s := &DB{
		db:  db,
		log: logger.With().Str("component", "transcriptdb").Logger(),
		ch:  make(chan row, 8192),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transcript (
			character TEXT NOT NULL,
			entry_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			ts TEXT NOT NULL,
			PRIMARY KEY (character, entry_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_character_ts ON transcript(character, ts);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordEntry queues an entry for the writer goroutine. It never blocks the
// caller; entries are dropped (and counted) when the queue is full.
func (s *DB) RecordEntry(id session.CharacterID, e session.TranscriptEntry) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- row{character: id, entry: e}:
	default:
		s.dropTotal.Add(1)
	}
}

func (s *DB) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{QueueLen: len(s.ch), DropTotal: s.dropTotal.Load()}
}

// History returns up to limit most recent entries for a character, oldest
// first.
func (s *DB) History(ctx context.Context, id session.CharacterID, limit int) ([]session.TranscriptEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `SELECT entry_id, kind, content, ts FROM (
		SELECT entry_id, kind, content, ts FROM transcript
		WHERE character = ? ORDER BY entry_id DESC LIMIT ?
	) ORDER BY entry_id ASC`, string(id), limit)
	if err != nil {
		return nil, oops.In("transcriptdb").Wrapf(err, "history %s", id)
	}
	defer rows.Close()

	out := []session.TranscriptEntry{}
	for rows.Next() {
		var (
			e    session.TranscriptEntry
			kind string
			ts   string
		)
		if err := rows.Scan(&e.ID, &kind, &e.Content, &ts); err != nil {
			return nil, oops.In("transcriptdb").Wrapf(err, "scan history %s", id)
		}
		e.Kind = session.EntryKind(kind)
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *DB) loop() {
	ctx := context.Background()
	for first := range s.ch {
		batch := []row{first}
	drain:
		for len(batch) < 512 {
			select {
			case r, ok := <-s.ch:
				if !ok {
					break drain
				}
				batch = append(batch, r)
			default:
				break drain
			}
		}
		if err := s.writeBatch(ctx, batch); err != nil {
			s.log.Error().Err(err).Int("rows", len(batch)).Msg("write transcript batch")
		}
	}
}

func (s *DB) writeBatch(ctx context.Context, batch []row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO transcript(character,entry_id,kind,content,ts) VALUES(?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range batch {
		ts := r.entry.Timestamp.UTC().Format(time.RFC3339Nano)
		if _, err := stmt.ExecContext(ctx, string(r.character), r.entry.ID, string(r.entry.Kind), r.entry.Content, ts); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
