// Package history persists a local ledger of script-runner sessions: one
// row per invocation of the runner, with embedded migrations applied once
// at Open.
package history

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the sqlite-backed run ledger at ~/.qutest/history.db.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the history database at path and
// applies any pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: set WAL mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

// Run is one recorded runner session.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	TargetID    string
	LogPath     string
	NumGroups   int
	NumTests    int
	NumFailed   int
	FailedTests []int
}

// NewRun allocates a session ID for a fresh runner invocation.
func NewRun(targetID, logPath string) Run {
	return Run{ID: uuid.NewString(), StartedAt: time.Now(), TargetID: targetID, LogPath: logPath}
}

// Record inserts the finished run into the ledger.
func (s *Store) Record(r Run) error {
	failed := make([]string, len(r.FailedTests))
	for i, n := range r.FailedTests {
		failed[i] = strconv.Itoa(n)
	}
	_, err := s.db.Exec(`INSERT INTO runs
		(id, started_at, finished_at, target_id, log_path, num_groups, num_tests, num_failed, failed_tests)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt, r.FinishedAt, r.TargetID, r.LogPath, r.NumGroups, r.NumTests, r.NumFailed,
		strings.Join(failed, ","))
	if err != nil {
		return fmt.Errorf("history: record run %s: %w", r.ID, err)
	}
	return nil
}

// Recent returns the n most recent runs, newest first.
func (s *Store) Recent(n int) ([]Run, error) {
	rows, err := s.db.Query(`SELECT id, started_at, finished_at, target_id, log_path,
		num_groups, num_tests, num_failed, failed_tests
		FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var failed string
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.TargetID, &r.LogPath,
			&r.NumGroups, &r.NumTests, &r.NumFailed, &failed); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.FailedTests = parseFailed(failed)
		out = append(out, r)
	}
	return out, rows.Err()
}

func parseFailed(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// Summary renders a one-line human-readable description of a run. The CLI
// has no subcommand that prints it.
func Summary(r Run) string {
	status := "OK"
	if r.NumFailed > 0 {
		status = fmt.Sprintf("FAIL (%d)", r.NumFailed)
	}
	return fmt.Sprintf("%s  %s  target=%s  tests=%d  %s  (%s)",
		humanize.Time(r.StartedAt), status, r.TargetID, r.NumTests,
		humanize.RelTime(r.StartedAt, r.FinishedAt, "", ""), r.ID[:8])
}
