// Package sqlite persists load-test records in a single table, with logs,
// result, snapshot, and options stored as JSON sub-documents of the row so a
// record's history stays atomic with its status.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/usecase"
)

const schema = `
CREATE TABLE IF NOT EXISTS load_tests (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	snapshot      TEXT NOT NULL,
	script        TEXT NOT NULL,
	options       TEXT NOT NULL,
	status        TEXT NOT NULL,
	result        TEXT,
	logs          TEXT NOT NULL DEFAULT '[]',
	error_details TEXT,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_load_tests_created_at ON load_tests (created_at DESC);
`

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer connection keeps UPDATE-based compare-and-set serial
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Create(ctx context.Context, t domain.LoadTest) error {
	snap, err := json.Marshal(t.Snapshot)
	if err != nil {
		return err
	}
	opts, err := json.Marshal(t.Options)
	if err != nil {
		return err
	}
	logs, err := json.Marshal(t.Logs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO load_tests (id, name, description, snapshot, script, options, status, logs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Name, t.Description, string(snap), t.Script, string(opts), string(t.Status), string(logs), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert load test: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.LoadTest, bool, error) {
	row := s.db.QueryRowContext(ctx, selectCols+" FROM load_tests WHERE id = ?", id)
	t, err := scanTest(row)
	if err == sql.ErrNoRows {
		return domain.LoadTest{}, false, nil
	}
	if err != nil {
		return domain.LoadTest{}, false, err
	}
	return t, true, nil
}

func (s *Store) List(ctx context.Context, f usecase.ListFilter) ([]domain.LoadTest, int, error) {
	rows, err := s.db.QueryContext(ctx, selectCols+" FROM load_tests ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []domain.LoadTest
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, 0, err
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.Q != "" && !matchQ(t, f.Q) {
			continue
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	total := len(results)
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + f.Limit
	if f.Limit <= 0 || end > total {
		end = total
	}
	return results[start:end], total, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM load_tests WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AppendLog runs in one transaction so an error-level append is never visible
// without its status/errorDetails side effect.
func (s *Store) AppendLog(ctx context.Context, id string, e domain.LogEntry) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var logsJSON, status string
	err = tx.QueryRowContext(ctx, "SELECT logs, status FROM load_tests WHERE id = ?", id).Scan(&logsJSON, &status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var logs []domain.LogEntry
	if err := json.Unmarshal([]byte(logsJSON), &logs); err != nil {
		logs = nil
	}
	logs = append(logs, e)
	updated, err := json.Marshal(logs)
	if err != nil {
		return false, err
	}

	var errJSON *string
	if e.Level == domain.LogError {
		status = string(domain.StatusFailed)
		if e.Error != nil {
			b, err := json.Marshal(e.Error)
			if err != nil {
				return false, err
			}
			v := string(b)
			errJSON = &v
		}
	}

	if errJSON != nil {
		_, err = tx.ExecContext(ctx, "UPDATE load_tests SET logs = ?, status = ?, error_details = ?, updated_at = ? WHERE id = ?",
			string(updated), status, *errJSON, time.Now().UTC(), id)
	} else {
		_, err = tx.ExecContext(ctx, "UPDATE load_tests SET logs = ?, status = ?, updated_at = ? WHERE id = ?",
			string(updated), status, time.Now().UTC(), id)
	}
	if err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// SetStatus is the compare-and-set: the WHERE clause only matches when the
// stored status equals expected, so exactly one racing caller wins.
func (s *Store) SetStatus(ctx context.Context, id string, to, expected domain.Status) error {
	var (
		res sql.Result
		err error
	)
	if to == domain.StatusRunning {
		res, err = s.db.ExecContext(ctx, `
			UPDATE load_tests SET status = ?, result = NULL, error_details = NULL, updated_at = ?
			WHERE id = ? AND status = ?
		`, string(to), time.Now().UTC(), id, string(expected))
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE load_tests SET status = ?, updated_at = ? WHERE id = ? AND status = ?
		`, string(to), time.Now().UTC(), id, string(expected))
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT 1 FROM load_tests WHERE id = ?", id).Scan(&exists); err == sql.ErrNoRows {
		return usecase.ErrNotFound
	} else if err != nil {
		return err
	}
	return usecase.ErrStatusConflict
}

func (s *Store) SetResult(ctx context.Context, id string, r domain.LoadTestResult, final domain.Status) (bool, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, "UPDATE load_tests SET result = ?, status = ?, updated_at = ? WHERE id = ?",
		string(b), string(final), time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const selectCols = `SELECT id, name, description, snapshot, script, options, status, result, logs, error_details, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTest(row rowScanner) (domain.LoadTest, error) {
	var (
		t                  domain.LoadTest
		snap, opts, logs   string
		status             string
		result, errDetails sql.NullString
	)
	err := row.Scan(&t.ID, &t.Name, &t.Description, &snap, &t.Script, &opts, &status,
		&result, &logs, &errDetails, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.LoadTest{}, err
	}
	t.Status = domain.Status(status)
	if err := json.Unmarshal([]byte(snap), &t.Snapshot); err != nil {
		return domain.LoadTest{}, fmt.Errorf("bad snapshot for %s: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(opts), &t.Options); err != nil {
		return domain.LoadTest{}, fmt.Errorf("bad options for %s: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(logs), &t.Logs); err != nil {
		return domain.LoadTest{}, fmt.Errorf("bad logs for %s: %w", t.ID, err)
	}
	if result.Valid {
		t.Result = &domain.LoadTestResult{}
		if err := json.Unmarshal([]byte(result.String), t.Result); err != nil {
			return domain.LoadTest{}, fmt.Errorf("bad result for %s: %w", t.ID, err)
		}
	}
	if errDetails.Valid {
		t.ErrorDetails = &domain.ErrorDetails{}
		if err := json.Unmarshal([]byte(errDetails.String), t.ErrorDetails); err != nil {
			return domain.LoadTest{}, fmt.Errorf("bad error details for %s: %w", t.ID, err)
		}
	}
	return t, nil
}

func matchQ(t domain.LoadTest, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(t.Name), q) ||
		strings.Contains(strings.ToLower(t.Snapshot.URL), q)
}
