// Package runsdb records simulation runs and their final allocations in a
// sqlite database. Writes funnel through a single writer goroutine behind a
// 1024-entry queue, so the fleet loop waits on disk only when that queue is
// full.
package runsdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqAllocation
	reqTickStats
)

type req struct {
	kind reqKind

	run   RunRow
	alloc AllocationRow
	tick  TickStatsRow
}

type RunRow struct {
	RunID     string
	Scenario  string
	Agents    int
	Tasks     int
	TicksRun  int
	Converged bool
	StartedAt time.Time
}

type AllocationRow struct {
	RunID    string
	AgentID  string
	TaskID   string
	Position int
	Score    float64
}

type TickStatsRow struct {
	RunID           string
	Tick            int
	AssignedTasks   int
	ConvergedAgents int
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	scenario   TEXT NOT NULL,
	agents     INTEGER NOT NULL,
	tasks      INTEGER NOT NULL,
	ticks_run  INTEGER NOT NULL,
	converged  INTEGER NOT NULL,
	started_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS allocations (
	run_id   TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	task_id  TEXT NOT NULL,
	position INTEGER NOT NULL,
	score    REAL NOT NULL,
	PRIMARY KEY (run_id, task_id)
);
CREATE TABLE IF NOT EXISTS tick_stats (
	run_id           TEXT NOT NULL,
	tick             INTEGER NOT NULL,
	assigned_tasks   INTEGER NOT NULL,
	converged_agents INTEGER NOT NULL,
	PRIMARY KEY (run_id, tick)
);
`

func Open(path string) (*DB, error) {
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

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	d := &DB{db: db, ch: make(chan req, 1024)}
	d.wg.Add(1)
	go d.writer()
	return d, nil
}

func (d *DB) writer() {
	defer d.wg.Done()
	for r := range d.ch {
		var err error
		switch r.kind {
		case reqRun:
			_, err = d.db.Exec(
				`INSERT OR REPLACE INTO runs (run_id, scenario, agents, tasks, ticks_run, converged, started_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				r.run.RunID, r.run.Scenario, r.run.Agents, r.run.Tasks,
				r.run.TicksRun, boolInt(r.run.Converged), r.run.StartedAt.UTC().Format(time.RFC3339))
		case reqAllocation:
			_, err = d.db.Exec(
				`INSERT OR REPLACE INTO allocations (run_id, agent_id, task_id, position, score)
				 VALUES (?, ?, ?, ?, ?)`,
				r.alloc.RunID, r.alloc.AgentID, r.alloc.TaskID, r.alloc.Position, r.alloc.Score)
		case reqTickStats:
			_, err = d.db.Exec(
				`INSERT OR REPLACE INTO tick_stats (run_id, tick, assigned_tasks, converged_agents)
				 VALUES (?, ?, ?, ?)`,
				r.tick.RunID, r.tick.Tick, r.tick.AssignedTasks, r.tick.ConvergedAgents)
		}
		if err != nil {
			// Recording is best-effort; the run itself must not fail.
			fmt.Fprintf(os.Stderr, "runsdb: %v\n", err)
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (d *DB) enqueue(r req) {
	if d.closed.Load() {
		return
	}
	d.ch <- r
}

func (d *DB) RecordRun(row RunRow)               { d.enqueue(req{kind: reqRun, run: row}) }
func (d *DB) RecordAllocation(row AllocationRow) { d.enqueue(req{kind: reqAllocation, alloc: row}) }
func (d *DB) RecordTickStats(row TickStatsRow)   { d.enqueue(req{kind: reqTickStats, tick: row}) }

// Close flushes the queue and closes the database.
func (d *DB) Close() error {
	var err error
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
		err = d.db.Close()
	})
	return err
}

// Run reads back one recorded run.
func (d *DB) Run(runID string) (RunRow, error) {
	var row RunRow
	var converged int
	var startedAt string
	err := d.db.QueryRow(
		`SELECT run_id, scenario, agents, tasks, ticks_run, converged, started_at FROM runs WHERE run_id = ?`,
		runID).Scan(&row.RunID, &row.Scenario, &row.Agents, &row.Tasks, &row.TicksRun, &converged, &startedAt)
	if err != nil {
		return row, err
	}
	row.Converged = converged != 0
	row.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	return row, nil
}

// Allocations reads back a run's final allocation, ordered by agent and path
// position.
func (d *DB) Allocations(runID string) ([]AllocationRow, error) {
	rows, err := d.db.Query(
		`SELECT run_id, agent_id, task_id, position, score FROM allocations
		 WHERE run_id = ? ORDER BY agent_id, position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AllocationRow
	for rows.Next() {
		var r AllocationRow
		if err := rows.Scan(&r.RunID, &r.AgentID, &r.TaskID, &r.Position, &r.Score); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
