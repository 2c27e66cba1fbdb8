// Package store handles SQLite persistence of the analysis history.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/curricheck/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Outcomes recorded for an analysis.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Store wraps SQLite access for analysis records.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			analyzed_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			message TEXT NOT NULL,
			pair_count INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS analysis_pairs (
			analysis_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			first TEXT NOT NULL,
			second TEXT NOT NULL,
			similarity REAL NOT NULL,
			PRIMARY KEY (analysis_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_analyzed_at ON analyses(analyzed_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertAnalysis stores a finished analysis and its pairs. An empty ID is
// filled with a new UUID, which is returned.
func (s *Store) InsertAnalysis(ctx context.Context, rec model.AnalysisRecord) (id string, err error) {
	id = rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO analyses (id, file_name, analyzed_at, duration_ms, outcome, message, pair_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		rec.FileName,
		rec.AnalyzedAt.UTC().Format(time.RFC3339Nano),
		rec.DurationMs,
		rec.Outcome,
		rec.Message,
		len(rec.Pairs),
	)
	if err != nil {
		return "", err
	}

	if len(rec.Pairs) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO analysis_pairs (analysis_id, position, first, second, similarity)
			 VALUES (?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return "", err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, p := range rec.Pairs {
			if _, err = stmt.ExecContext(ctx, id, i, p.First, p.Second, p.Similarity); err != nil {
				return "", err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// ListAnalyses returns analyses oldest first, filtered by cfg.
func (s *Store) ListAnalyses(ctx context.Context, cfg model.HistoryConfig) ([]model.AnalysisRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Since != nil {
		clauses = append(clauses, "analyzed_at >= ?")
		args = append(args, cfg.Since.UTC().Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, file_name, analyzed_at, duration_ms, outcome, message, pair_count
		FROM analyses
		WHERE %s
		ORDER BY analyzed_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var records []model.AnalysisRecord
	for rows.Next() {
		var rec model.AnalysisRecord
		var analyzedAt string
		if err := rows.Scan(&rec.ID, &rec.FileName, &analyzedAt, &rec.DurationMs, &rec.Outcome, &rec.Message, &rec.PairCount); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, analyzedAt)
		if err != nil {
			return nil, err
		}
		rec.AnalyzedAt = parsed
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if cfg.Last > 0 && len(records) > cfg.Last {
		records = records[len(records)-cfg.Last:]
	}
	return records, nil
}

// ListPairs returns the stored pairs of one analysis in their original order.
func (s *Store) ListPairs(ctx context.Context, analysisID string) ([]model.RedundancyPair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT first, second, similarity FROM analysis_pairs
		 WHERE analysis_id = ?
		 ORDER BY position ASC`, analysisID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var pairs []model.RedundancyPair
	for rows.Next() {
		var p model.RedundancyPair
		if err := rows.Scan(&p.First, &p.Second, &p.Similarity); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}
