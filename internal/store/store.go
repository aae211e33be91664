package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/xaminai/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS graded_results (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		question TEXT NOT NULL DEFAULT '',
		student_answer TEXT NOT NULL DEFAULT '',
		correct_answer TEXT NOT NULL DEFAULT '',
		submitted_question TEXT NOT NULL DEFAULT '',
		submitted_answer TEXT NOT NULL DEFAULT '',
		raw_text TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL DEFAULT 0,
		max_score INTEGER NOT NULL DEFAULT 5,
		difficulty TEXT NOT NULL DEFAULT 'medium',
		feedback TEXT NOT NULL DEFAULT '',
		file_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_graded_results_created ON graded_results(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const resultColumns = `id, mode, question, student_answer, correct_answer, submitted_question,
	submitted_answer, raw_text, score, max_score, difficulty, feedback, file_name, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (model.GradedResult, error) {
	var r model.GradedResult
	err := row.Scan(&r.ID, &r.Mode, &r.Question, &r.StudentAnswer, &r.CorrectAnswer, &r.SubmittedQuestion,
		&r.SubmittedAnswer, &r.RawText, &r.Score, &r.MaxScore, &r.Difficulty, &r.Feedback, &r.FileName, &r.CreatedAt)
	return r, err
}

// SaveResult stores a graded result, assigning an ID and timestamp when unset.
// It returns the stored result.
func (s *Store) SaveResult(r model.GradedResult) (model.GradedResult, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO graded_results (`+resultColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Mode, r.Question, r.StudentAnswer, r.CorrectAnswer, r.SubmittedQuestion,
		r.SubmittedAnswer, r.RawText, r.Score, r.MaxScore, r.Difficulty, r.Feedback, r.FileName, r.CreatedAt,
	)
	if err != nil {
		return r, fmt.Errorf("insert result: %w", err)
	}
	return r, nil
}

// GetResult returns a result by ID, or nil if it does not exist.
func (s *Store) GetResult(id string) (*model.GradedResult, error) {
	r, err := scanResult(s.db.QueryRow(`SELECT `+resultColumns+` FROM graded_results WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecentResults returns up to limit results, newest first.
func (s *Store) ListRecentResults(limit int) ([]model.GradedResult, error) {
	rows, err := s.db.Query(
		`SELECT `+resultColumns+` FROM graded_results ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.GradedResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ResultCount returns the number of stored results.
func (s *Store) ResultCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM graded_results`).Scan(&count)
	return count, err
}
