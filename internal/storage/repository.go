package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/state"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists the session, the offline snapshot and the outbox
// in a local SQLite file shared by the server and the worker.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ state.Persistence = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// The server and the worker share the file.
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) stamp() int64 { return r.now().UnixMilli() }

func (r *SQLiteRepository) LoadSession(ctx context.Context) (core.Session, error) {
	var token, userJSON string
	err := r.db.QueryRowContext(ctx, `SELECT token, user_json FROM session WHERE id = 1`).Scan(&token, &userJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, state.ErrNoSession
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("load session: %w", err)
	}
	var user core.User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return core.Session{}, fmt.Errorf("decode session user: %w", err)
	}
	return core.Session{Token: token, User: user}, nil
}

func (r *SQLiteRepository) SaveSession(ctx context.Context, s core.Session) error {
	userJSON, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO session (id, token, user_json, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token, user_json = excluded.user_json, updated_at = excluded.updated_at`,
		s.Token, string(userJSON), r.stamp())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	slog.InfoContext(ctx, "Session saved", "user_id", s.User.ID.String())
	return nil
}

// ClearSession removes the session and the cached data of its user.
func (r *SQLiteRepository) ClearSession(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s state.Snapshot) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = r.now()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshot (id, version, data_json, saved_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version, data_json = excluded.data_json, saved_at = excluded.saved_at`,
		s.Version, string(data), s.SavedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) LoadSnapshot(ctx context.Context) (state.Snapshot, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data_json FROM snapshot WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return state.Snapshot{}, state.ErrNotFound
	}
	if err != nil {
		return state.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var s state.Snapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return state.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
