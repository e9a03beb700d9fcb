// Package storage persists candidate accounts and finished-session reports in
// SQLite. Live sessions are never stored here.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/keshav2232/viva/internal/viva/domain"
)

// DBFile is the database file name inside the data directory.
const DBFile = "viva.db"

type Storage struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var (
	_ domain.UserStore     = (*Storage)(nil)
	_ domain.ReportArchive = (*Storage)(nil)
)

// New opens (creating if needed) the database in dataDir.
func New(dataDir string) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Storage{db: db, path: dbPath, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_created ON users(created_at DESC);

	CREATE TABLE IF NOT EXISTS reports (
		session_id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		persona TEXT NOT NULL,
		overall_score REAL NOT NULL DEFAULT 0,
		finished_at DATETIME NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_finished ON reports(finished_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *Storage) Path() string { return s.path }

func (s *Storage) Close() error {
	return s.db.Close()
}

// User operations

// SaveUser returns the account registered under email, creating it on first login.
func (s *Storage) SaveUser(ctx context.Context, name, email string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", domain.ErrInvalidUser)
	}

	u := &domain.User{
		ID:        ulid.Make().String(),
		Name:      name,
		Email:     email,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING
	`, u.ID, u.Name, u.Email, u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.userByEmail(ctx, email)
}

func (s *Storage) userByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// ListUsers returns all accounts, newest first.
func (s *Storage) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, created_at FROM users ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// Report operations

// SaveReport stores or replaces the report of a finished session.
func (s *Storage) SaveReport(ctx context.Context, r *domain.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports (session_id, topic, persona, overall_score, finished_at, report_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.SessionID, r.Topic, string(r.Persona), r.Summary.OverallScore, r.FinishedAt.UTC(), string(data))
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// GetReport loads a report by session id.
func (s *Storage) GetReport(ctx context.Context, sessionID string) (*domain.Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM reports WHERE session_id = ?`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrReportNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	var r domain.Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// ReportInfo is one row of the report listing.
type ReportInfo struct {
	SessionID    string    `json:"sessionId"`
	Topic        string    `json:"topic"`
	Persona      string    `json:"persona"`
	OverallScore float64   `json:"overallScore"`
	FinishedAt   time.Time `json:"finishedAt"`
}

// ListReports returns the most recent reports, newest first.
func (s *Storage) ListReports(ctx context.Context, limit int) ([]ReportInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, topic, persona, overall_score, finished_at
		FROM reports ORDER BY finished_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []ReportInfo
	for rows.Next() {
		var ri ReportInfo
		if err := rows.Scan(&ri.SessionID, &ri.Topic, &ri.Persona, &ri.OverallScore, &ri.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}
