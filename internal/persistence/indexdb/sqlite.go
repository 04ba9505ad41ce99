// Package indexdb keeps a queryable sqlite index of a session's history.
// The JSONL journals and snapshots stay the source of truth; the index is
// fed asynchronously and drops writes when it falls behind.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"mentorsim.ai/internal/persistence/snapshot"
	"mentorsim.ai/internal/sim/catalogs"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/session"
	"mentorsim.ai/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqQuarter reqKind = iota + 1
	reqDecision
	reqChoice
	reqSnapshot
)

type req struct {
	kind reqKind

	quarter  session.Report
	decision model.DecisionEvent
	choice   choiceRow
	snapshot snapshotRow
}

type choiceRow struct {
	DecisionID string
	OptionID   string
	Quarter    model.Quarter
}

type snapshotRow struct {
	Quarter  model.Quarter
	Path     string
	Seed     int64
	Students int
	Papers   int
	Grants   int
	Backlog  int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, 4096)}
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
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS quarters (
			quarter_index INTEGER PRIMARY KEY,
			year INTEGER NOT NULL,
			q INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			accepted INTEGER NOT NULL,
			revisions INTEGER NOT NULL,
			rejected INTEGER NOT NULL,
			grants_funded INTEGER NOT NULL,
			upkeep INTEGER NOT NULL,
			decisions INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			created_index INTEGER NOT NULL,
			paper_id TEXT,
			grant_id TEXT,
			student_id TEXT,
			chosen_option TEXT,
			resolved_index INTEGER,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_kind ON decisions(kind, created_index);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			quarter_index INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			students INTEGER NOT NULL,
			papers INTEGER NOT NULL,
			grants INTEGER NOT NULL,
			backlog INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains pending writes and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) send(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
	}
}

func (s *SQLiteIndex) WriteQuarter(r session.Report) error {
	s.send(req{kind: reqQuarter, quarter: r})
	return nil
}

// RecordDecisions indexes queued decisions; already indexed ids are kept.
func (s *SQLiteIndex) RecordDecisions(ds []model.DecisionEvent) {
	for _, d := range ds {
		s.send(req{kind: reqDecision, decision: d})
	}
}

// RecordChoice marks a decision resolved.
func (s *SQLiteIndex) RecordChoice(decisionID, optionID string, at model.Quarter) {
	s.send(req{kind: reqChoice, choice: choiceRow{DecisionID: decisionID, OptionID: optionID, Quarter: at}})
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.Snapshot) {
	s.send(req{kind: reqSnapshot, snapshot: snapshotRow{
		Quarter:  snap.Header.Quarter,
		Path:     path,
		Seed:     snap.Header.Seed,
		Students: len(snap.State.Students),
		Papers:   len(snap.State.Papers),
		Grants:   len(snap.State.Grants),
		Backlog:  len(snap.State.Backlog),
	}})
}

// UpsertCatalogs stores the catalogs and tuning in effect, keyed by digest.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if cats != nil {
		if b, _ := json.Marshal(cats.Traits.Defs); len(b) > 0 {
			rows = append(rows, kv{name: "traits", digest: cats.Traits.Digest, json: b})
		}
		if b, _ := json.Marshal(cats.Narratives.ByTag); len(b) > 0 {
			rows = append(rows, kv{name: "narratives", digest: cats.Narratives.Digest, json: b})
		}
	}
	if b, _ := json.Marshal(tune); len(b) > 0 {
		rows = append(rows, kv{name: "tuning", digest: tune.Digest(), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertQuarter, _ := s.db.Prepare(`INSERT OR REPLACE INTO quarters(quarter_index,year,q,spawned,accepted,revisions,rejected,grants_funded,upkeep,decisions,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertDecision, _ := s.db.Prepare(`INSERT OR IGNORE INTO decisions(id,kind,title,created_index,paper_id,grant_id,student_id,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	updateChoice, _ := s.db.Prepare(`UPDATE decisions SET chosen_option=?, resolved_index=? WHERE id=?`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(quarter_index,path,seed,students,papers,grants,backlog) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertQuarter, insertDecision, updateChoice, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 200
		commitMaxWait = time.Second
	)
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx, opCount, lastCommit = txx, 0, time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx, opCount, lastCommit = nil, 0, time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx, opCount, lastCommit = nil, 0, time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqQuarter:
			q := r.quarter
			raw, _ := json.Marshal(q)
			exec(insertQuarter, q.Quarter.Index(), q.Quarter.Year, q.Quarter.Q,
				q.Spawned, q.Accepted, q.Revisions, q.Rejected, q.GrantsFunded, q.Upkeep,
				len(q.Decisions), string(raw))
		case reqDecision:
			d := r.decision
			raw, _ := json.Marshal(d)
			exec(insertDecision, d.ID, string(d.Kind), d.Title, d.CreatedAt.Index(),
				d.Context.PaperID, d.Context.GrantID, d.Context.StudentID, string(raw))
		case reqChoice:
			c := r.choice
			exec(updateChoice, c.OptionID, c.Quarter.Index(), c.DecisionID)
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, sn.Quarter.Index(), sn.Path, sn.Seed, sn.Students, sn.Papers, sn.Grants, sn.Backlog)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}
	commit()
}
