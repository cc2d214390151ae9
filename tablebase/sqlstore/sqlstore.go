// Package sqlstore implements tablebase.Store on top of a SQLite database
// via the pure-Go modernc.org/sqlite driver, giving tablebase
// construction runs durability and resumability across process restarts.
// Transactions are batched and committed with
// github.com/avast/retry-go wrapping each commit against SQLite's
// transient "database is locked" error at the store's collaborator
// boundary rather than inline.
package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"

	"github.com/kbrew/tb2048/grid"
	"github.com/kbrew/tb2048/tablebase"
)

// schema is the authoritative on-disk layout: column and table names
// match what any other implementation reading this file must agree on.
// node.seq is the one addition, recording SetNode call order so
// CopyNodesToScoreQueue can reseed the score queue in reverse without a
// separate ordering table.
const schema = `
CREATE TABLE IF NOT EXISTS node (
	grid_state     BLOB PRIMARY KEY,
	inter_score    REAL NOT NULL,
	noninter_score REAL NOT NULL,
	seq            INTEGER
);
CREATE TABLE IF NOT EXISTS edge (
	start_state BLOB NOT NULL,
	end_state   BLOB NOT NULL,
	weight      REAL NOT NULL,
	PRIMARY KEY (start_state, end_state)
);
CREATE INDEX IF NOT EXISTS idx_edge_end_state ON edge(end_state);
CREATE TABLE IF NOT EXISTS edge_queue (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	node       BLOB NOT NULL,
	node_depth INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS score_queue (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	node BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS config (
	prop_name  TEXT PRIMARY KEY,
	prop_value TEXT NOT NULL
);
`

// execer is satisfied by both *sql.DB and *sql.Tx, so every query below
// can run either autocommitted or inside a WithStep transaction without
// duplicating the SQL.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store is a SQLite-backed tablebase.Store.
type Store struct {
	n       int
	db      *sql.DB
	nodeSeq int64

	// tx is non-nil while a WithStep call is in progress; conn() routes
	// every query through it so the whole step commits or rolls back as
	// one unit. Construction is single-writer (tablebase.Tablebase never
	// calls into a Store concurrently with itself), so this field needs
	// no locking of its own.
	tx *sql.Tx
}

func (s *Store) conn() execer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Options configures Open.
type Options struct {
	// PageCacheMemoryFraction is the fraction of total system memory (as
	// reported by pbnjay/memory) to offer SQLite as its page cache,
	// useful for large builds where durability can be relaxed. Zero
	// selects a conservative 5% default.
	PageCacheMemoryFraction float64
}

// Open opens (creating if absent) a SQLite-backed store at path for
// boards of side n, with relaxed synchronous=NORMAL/journal_mode=WAL
// pragmas: an interrupted build resumes from the last phase WithStep
// committed, so full fsync-per-commit durability isn't needed during
// construction.
func Open(path string, n int, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite allows one writer; avoid pool contention.

	frac := opts.PageCacheMemoryFraction
	if frac <= 0 {
		frac = 0.05
	}
	cacheBytes := float64(memory.TotalMemory()) * frac
	cachePages := -int64(cacheBytes / 1024) // negative cache_size is a KiB budget in sqlite

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA cache_size=%d", cachePages),
		"PRAGMA foreign_keys=OFF",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: create schema: %w", err)
	}

	s := &Store{n: n, db: db}
	seq, err := s.maxNodeSeq()
	if err != nil {
		db.Close()
		return nil, err
	}
	s.nodeSeq = seq

	log.Info().Str("path", path).Int("n", n).Int64("cache_kib", -cachePages).Msg("sqlstore opened")
	return s, nil
}

func (s *Store) maxNodeSeq() (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(seq) FROM node`).Scan(&seq); err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// withRetry wraps fn, a single committed unit of work, in retry-go
// against the transient "database is locked" error a concurrent
// checkpoint or reader can momentarily raise.
func withRetry(fn func() error) error {
	return retry.Do(
		fn,
		retry.Attempts(5),
		retry.Delay(10*time.Millisecond),
		retry.RetryIf(func(err error) bool {
			return err != nil && strings.Contains(err.Error(), "locked")
		}),
	)
}

// WithStep runs fn inside a single SQLite transaction: every write fn
// issues through this Store's other methods lands in that transaction
// via conn(), and is committed in full on a nil return or rolled back
// entirely otherwise. This is what gives a partial build step (one
// queue pop plus all the edges/scores it produces) its atomicity: a
// crash mid-fn leaves the transaction uncommitted, so the next run sees
// either the whole step or none of it, never a popped queue entry with
// only some of its writes applied.
func (s *Store) WithStep(fn func() error) error {
	return withRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		s.tx = tx
		defer func() { s.tx = nil }()

		if err := fn(); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func (s *Store) SetNode(g *grid.Grid) error {
	s.nodeSeq++
	_, err := s.conn().Exec(
		`INSERT INTO node(grid_state, noninter_score, inter_score, seq) VALUES (?, ?, ?, ?) ON CONFLICT(grid_state) DO NOTHING`,
		g.Bytes(), tablebase.Unknown, tablebase.Unknown, s.nodeSeq,
	)
	return err
}

func (s *Store) HasNode(g *grid.Grid) (bool, error) {
	var one int
	err := s.conn().QueryRow(`SELECT 1 FROM node WHERE grid_state = ?`, g.Bytes()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) GetNodeScores(g *grid.Grid) (float32, float32, error) {
	var final, inter float64
	err := s.conn().QueryRow(`SELECT noninter_score, inter_score FROM node WHERE grid_state = ?`, g.Bytes()).Scan(&final, &inter)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("%w: %x", tablebase.ErrNodeNotFound, g.Bytes())
	}
	if err != nil {
		return 0, 0, err
	}
	return float32(final), float32(inter), nil
}

func (s *Store) AddEdge(parent, child *grid.Grid, weight float32) error {
	_, err := s.conn().Exec(
		`INSERT INTO edge(start_state, end_state, weight) VALUES (?, ?, ?) ON CONFLICT(start_state, end_state) DO NOTHING`,
		parent.Bytes(), child.Bytes(), weight,
	)
	return err
}

func (s *Store) HasEdge(g *grid.Grid) (bool, error) {
	var one int
	err := s.conn().QueryRow(`SELECT 1 FROM edge WHERE start_state = ? LIMIT 1`, g.Bytes()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) GetEdges(g *grid.Grid) ([]tablebase.EdgeRef, error) {
	rows, err := s.conn().Query(`SELECT end_state, weight FROM edge WHERE start_state = ?`, g.Bytes())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tablebase.EdgeRef
	for rows.Next() {
		var b []byte
		var w float64
		if err := rows.Scan(&b, &w); err != nil {
			return nil, err
		}
		child, err := grid.FromBytes(s.n, b)
		if err != nil {
			return nil, err
		}
		out = append(out, tablebase.EdgeRef{Child: child, Weight: float32(w)})
	}
	return out, rows.Err()
}

func (s *Store) GetEdgeWeight(parent, child *grid.Grid) (float32, error) {
	var w float64
	err := s.conn().QueryRow(
		`SELECT weight FROM edge WHERE start_state = ? AND end_state = ?`,
		parent.Bytes(), child.Bytes(),
	).Scan(&w)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %x -> %x", tablebase.ErrEdgeNotFound, parent.Bytes(), child.Bytes())
	}
	return float32(w), err
}

func (s *Store) GetParents(child *grid.Grid) ([]*grid.Grid, error) {
	rows, err := s.conn().Query(`SELECT start_state FROM edge WHERE end_state = ?`, child.Bytes())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*grid.Grid
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		g, err := grid.FromBytes(s.n, b)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) PushToEdgeQueue(g *grid.Grid, depth int) error {
	_, err := s.conn().Exec(`INSERT INTO edge_queue(node, node_depth) VALUES (?, ?)`, g.Bytes(), depth)
	return err
}

func (s *Store) PopFromEdgeQueue() (*grid.Grid, int, error) {
	var id int64
	var b []byte
	var depth int
	err := s.conn().QueryRow(`SELECT id, node, node_depth FROM edge_queue ORDER BY id LIMIT 1`).Scan(&id, &b, &depth)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, tablebase.ErrQueueEmpty
	}
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.conn().Exec(`DELETE FROM edge_queue WHERE id = ?`, id); err != nil {
		return nil, 0, err
	}
	g, err := grid.FromBytes(s.n, b)
	return g, depth, err
}

func (s *Store) EdgeQueueEmpty() (bool, error) {
	var one int
	err := s.conn().QueryRow(`SELECT 1 FROM edge_queue LIMIT 1`).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	return false, err
}

func (s *Store) CopyNodesToScoreQueue() error {
	return s.WithStep(func() error {
		if _, err := s.conn().Exec(`DELETE FROM score_queue`); err != nil {
			return err
		}
		_, err := s.conn().Exec(`INSERT INTO score_queue(node) SELECT grid_state FROM node ORDER BY seq DESC`)
		return err
	})
}

func (s *Store) PushToScoreQueue(g *grid.Grid) error {
	_, err := s.conn().Exec(`INSERT INTO score_queue(node) VALUES (?)`, g.Bytes())
	return err
}

func (s *Store) PopFromScoreQueue() (*grid.Grid, error) {
	var id int64
	var b []byte
	err := s.conn().QueryRow(`SELECT id, node FROM score_queue ORDER BY id LIMIT 1`).Scan(&id, &b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tablebase.ErrQueueEmpty
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.conn().Exec(`DELETE FROM score_queue WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return grid.FromBytes(s.n, b)
}

func (s *Store) ScoreQueueEmpty() (bool, error) {
	var one int
	err := s.conn().QueryRow(`SELECT 1 FROM score_queue LIMIT 1`).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	return false, err
}

func (s *Store) AddInterScore(g *grid.Grid, v float32) error {
	res, err := s.conn().Exec(`UPDATE node SET inter_score = ? WHERE grid_state = ?`, v, g.Bytes())
	if err != nil {
		return err
	}
	return checkRowsAffected(res, g)
}

func (s *Store) AddNonInterScore(g *grid.Grid, v float32) error {
	res, err := s.conn().Exec(`UPDATE node SET noninter_score = ? WHERE grid_state = ?`, v, g.Bytes())
	if err != nil {
		return err
	}
	return checkRowsAffected(res, g)
}

func checkRowsAffected(res sql.Result, g *grid.Grid) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %x", tablebase.ErrNodeNotFound, g.Bytes())
	}
	return nil
}

func (s *Store) getFlag(key string) (bool, error) {
	var v string
	err := s.conn().QueryRow(`SELECT prop_value FROM config WHERE prop_name = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	return b, err
}

func (s *Store) setFlag(key string) error {
	return withRetry(func() error {
		_, err := s.conn().Exec(
			`INSERT INTO config(prop_name, prop_value) VALUES (?, 'true') ON CONFLICT(prop_name) DO UPDATE SET prop_value = 'true'`,
			key,
		)
		return err
	})
}

func (s *Store) EdgeQueueInitialized() (bool, error)  { return s.getFlag("edge_queue_init") }
func (s *Store) SetEdgeQueueInitialized() error       { return s.setFlag("edge_queue_init") }
func (s *Store) ScoreQueueInitialized() (bool, error) { return s.getFlag("score_queue_init") }
func (s *Store) SetScoreQueueInitialized() error      { return s.setFlag("score_queue_init") }

func (s *Store) Close() error { return s.db.Close() }

var _ tablebase.Store = (*Store)(nil)
