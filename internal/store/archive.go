package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/prospect/internal/model"

	_ "modernc.org/sqlite"
)

const createOutcomesTable = `
CREATE TABLE IF NOT EXISTS outcomes (
    exploration_id   TEXT PRIMARY KEY,
    type             TEXT NOT NULL,
    status           TEXT NOT NULL,
    outcome          TEXT,
    confidence       REAL NOT NULL,
    reasoning        TEXT,
    insights         TEXT,
    cross_references TEXT,
    possibilities    TEXT,
    relevance_score  REAL NOT NULL,
    duration_ms      INTEGER NOT NULL,
    error            TEXT,
    archived_at      DATETIME NOT NULL
)`

// ArchivedOutcome is one row of the outcome archive: the terminal outcome of
// an exploration plus the status and error it terminated with.
type ArchivedOutcome struct {
	model.Outcome
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ArchivedAt time.Time `json:"archived_at"`
}

// SQLiteArchive is a write-only record of terminal explorations, kept for
// post-hoc inspection. The engine never reads it back at startup; the
// in-memory store stays authoritative and nothing survives a restart as far
// as the engine is concerned.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive opens the SQLite database at dbPath and runs migrations.
func NewSQLiteArchive(dbPath string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection keeps :memory: databases coherent and serializes the
	// archive's small write load.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createOutcomesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create outcomes table: %w", err)
	}

	return &SQLiteArchive{db: db}, nil
}

// Close closes the underlying database connection.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

// Record inserts the terminal outcome of an exploration. Re-recording the
// same id replaces the previous row, which only happens if an id is reused.
func (a *SQLiteArchive) Record(ctx context.Context, status, errMsg string, o *model.Outcome) error {
	outcomeJSON, err := json.Marshal(o.Outcome)
	if err != nil {
		return fmt.Errorf("encode outcome payload: %w", err)
	}
	insights, err := json.Marshal(o.Insights)
	if err != nil {
		return fmt.Errorf("encode insights: %w", err)
	}
	crossRefs, err := json.Marshal(o.CrossReferences)
	if err != nil {
		return fmt.Errorf("encode cross references: %w", err)
	}
	possibilities, err := json.Marshal(o.Possibilities)
	if err != nil {
		return fmt.Errorf("encode possibilities: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO outcomes (
			exploration_id, type, status, outcome, confidence, reasoning,
			insights, cross_references, possibilities, relevance_score,
			duration_ms, error, archived_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ExplorationID, o.Type, status, string(outcomeJSON), o.Confidence, o.Reasoning,
		string(insights), string(crossRefs), string(possibilities), o.RelevanceScore,
		o.DurationMS, errMsg, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// Get retrieves an archived outcome by exploration id.
func (a *SQLiteArchive) Get(ctx context.Context, id string) (*ArchivedOutcome, error) {
	row := &ArchivedOutcome{}
	var outcomeJSON, insights, crossRefs, possibilities string

	err := a.db.QueryRowContext(ctx,
		`SELECT exploration_id, type, status, outcome, confidence, reasoning,
			insights, cross_references, possibilities, relevance_score,
			duration_ms, error, archived_at
		FROM outcomes WHERE exploration_id = ?`, id,
	).Scan(
		&row.ExplorationID, &row.Type, &row.Status, &outcomeJSON, &row.Confidence,
		&row.Reasoning, &insights, &crossRefs, &possibilities, &row.RelevanceScore,
		&row.DurationMS, &row.Error, &row.ArchivedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get archived outcome: %w", err)
	}

	if outcomeJSON != "" {
		if err := json.Unmarshal([]byte(outcomeJSON), &row.Outcome.Outcome); err != nil {
			return nil, fmt.Errorf("decode outcome payload: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(insights), &row.Insights); err != nil {
		return nil, fmt.Errorf("decode insights: %w", err)
	}
	if err := json.Unmarshal([]byte(crossRefs), &row.CrossReferences); err != nil {
		return nil, fmt.Errorf("decode cross references: %w", err)
	}
	if err := json.Unmarshal([]byte(possibilities), &row.Possibilities); err != nil {
		return nil, fmt.Errorf("decode possibilities: %w", err)
	}

	return row, nil
}
