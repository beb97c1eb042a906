package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/haniff/arena/internal/core"
)

// SQLiteStore implements Store on SQLite. Records are stored as one row
// per debate with the structured parts serialized as JSON, which keeps the
// snapshot contract identical to the memory store. Single-process use
// only; the per-entry locks serialize mutators the same way.
type SQLiteStore struct {
	db   *sql.DB
	path string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSQLiteStore opens (or creates) a SQLite-backed store at the path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStore{
		db:    db,
		path:  dbPath,
		locks: make(map[string]*sync.Mutex),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS debates (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'created',
		current_round INTEGER NOT NULL DEFAULT 0,
		current_turn INTEGER NOT NULL DEFAULT 0,
		config_json TEXT NOT NULL,
		history_json TEXT NOT NULL,
		judge_result_json TEXT,
		error_message TEXT,
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_debates_status ON debates(status);
	CREATE INDEX IF NOT EXISTS idx_debates_created_at ON debates(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create persists a new record.
func (s *SQLiteStore) Create(state *core.DebateState) error {
	configJSON, historyJSON, judgeJSON, err := marshalParts(state)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO debates (id, topic, status, current_round, current_turn, config_json, history_json, judge_result_json, error_message, created_at, started_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		state.DebateID,
		state.Config.Topic,
		string(state.Status),
		state.CurrentRound,
		state.CurrentTurn,
		configJSON,
		historyJSON,
		judgeJSON,
		nullString(state.ErrorMessage),
		state.CreatedAt,
		state.StartedAt,
		state.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert debate: %w", err)
	}
	return nil
}

// Get returns a snapshot of the record.
func (s *SQLiteStore) Get(id string) (*core.DebateState, error) {
	return s.scanOne(s.db.QueryRow(selectColumns+" WHERE id = ?", id), id)
}

// List returns snapshots of all records, oldest first.
func (s *SQLiteStore) List() ([]*core.DebateState, error) {
	rows, err := s.db.Query(selectColumns + " ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list debates: %w", err)
	}
	defer rows.Close()

	var out []*core.DebateState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	return out, rows.Err()
}

// Update reads the record, runs the mutator, and writes the result back
// under the per-debate lock.
func (s *SQLiteStore) Update(id string, mutate Mutator) (*core.DebateState, error) {
	lock := s.entryLock(id)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := mutate(state); err != nil {
		return nil, err
	}

	configJSON, historyJSON, judgeJSON, err := marshalParts(state)
	if err != nil {
		return nil, err
	}

	query := `
	UPDATE debates
	SET topic = ?, status = ?, current_round = ?, current_turn = ?, config_json = ?, history_json = ?, judge_result_json = ?, error_message = ?, started_at = ?, completed_at = ?
	WHERE id = ?
	`
	_, err = s.db.Exec(query,
		state.Config.Topic,
		string(state.Status),
		state.CurrentRound,
		state.CurrentTurn,
		configJSON,
		historyJSON,
		judgeJSON,
		nullString(state.ErrorMessage),
		state.StartedAt,
		state.CompletedAt,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update debate: %w", err)
	}
	return state.Clone(), nil
}

// Delete removes the record.
func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM debates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete debate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(id)
	}

	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	return nil
}

func (s *SQLiteStore) entryLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

const selectColumns = `
SELECT id, status, current_round, current_turn, config_json, history_json, judge_result_json, error_message, created_at, started_at, completed_at
FROM debates`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanOne(row *sql.Row, id string) (*core.DebateState, error) {
	state, err := scanState(row)
	if err == sql.ErrNoRows {
		return nil, notFound(id)
	}
	return state, err
}

func scanState(row rowScanner) (*core.DebateState, error) {
	var state core.DebateState
	var status, configJSON, historyJSON string
	var judgeJSON, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&state.DebateID,
		&status,
		&state.CurrentRound,
		&state.CurrentTurn,
		&configJSON,
		&historyJSON,
		&judgeJSON,
		&errorMessage,
		&state.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	state.Status = core.DebateStatus(status)
	if err := json.Unmarshal([]byte(configJSON), &state.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &state.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	if judgeJSON.Valid {
		var jr core.JudgeResult
		if err := json.Unmarshal([]byte(judgeJSON.String), &jr); err != nil {
			return nil, fmt.Errorf("failed to unmarshal judge result: %w", err)
		}
		state.JudgeResult = &jr
	}
	if errorMessage.Valid {
		state.ErrorMessage = errorMessage.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		state.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		state.CompletedAt = &t
	}
	return &state, nil
}

func marshalParts(state *core.DebateState) (string, string, *string, error) {
	configJSON, err := json.Marshal(state.Config)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	historyJSON, err := json.Marshal(state.History)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	var judgeJSON *string
	if state.JudgeResult != nil {
		data, err := json.Marshal(state.JudgeResult)
		if err != nil {
			return "", "", nil, fmt.Errorf("failed to marshal judge result: %w", err)
		}
		str := string(data)
		judgeJSON = &str
	}
	return string(configJSON), string(historyJSON), judgeJSON, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
