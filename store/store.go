// Package store keeps uploaded documents for the serving mode: each
// upload becomes a session addressed by an opaque id, kept until it goes
// unused longer than the configured lifetime.
package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	content       BLOB NOT NULL,
	digest        TEXT NOT NULL,
	uploaded_at   INTEGER NOT NULL,
	last_accessed INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_last_accessed ON sessions(last_accessed);
`

// Session describes one stored upload.
type Session struct {
	ID           string
	Name         string
	Size         int64
	Digest       string
	UploadedAt   time.Time
	LastAccessed time.Time
}

// ErrNotFound reports a missing or expired session id.
type ErrNotFound struct {
	ID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("no session with id %s", e.ID)
}

// Store is a sqlite backed session store, safe for concurrent use.
type Store struct {
	pool *sqlitex.Pool
	ttl  time.Duration
	log  *zap.Logger
}

// Open creates or opens the store database and applies the schema. ttl is
// the idle lifetime after which Sweep removes a session.
func Open(ctx context.Context, path string, ttl time.Duration, log *zap.Logger) (*Store, error) {

	if path == "" {
		path = "file:sessions?mode=memory&cache=shared"
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		Flags:    sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenWAL | sqlite.OpenURI,
		PoolSize: 10,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open session store (%s): %w", path, err)
	}

	conn, err := pool.Take(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to initialize session store: %w", err)
	}
	err = sqlitex.ExecuteScript(conn, schema, nil)
	pool.Put(conn)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to apply session store schema: %w", err)
	}

	return &Store{pool: pool, ttl: ttl, log: log}, nil
}

// Close releases the underlying connections.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Put stores an upload and returns its session. The digest identifies the
// content, not the session: two uploads of the same bytes get distinct
// ids but equal digests.
func (s *Store) Put(ctx context.Context, name string, content []byte) (Session, error) {

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("unable to get store connection: %w", err)
	}
	defer s.pool.Put(conn)

	sum := blake3.Sum256(content)
	now := time.Now()
	ses := Session{
		ID:           uuid.NewString(),
		Name:         name,
		Size:         int64(len(content)),
		Digest:       hex.EncodeToString(sum[:]),
		UploadedAt:   now,
		LastAccessed: now,
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO sessions (id, name, content, digest, uploaded_at, last_accessed) VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{ses.ID, ses.Name, content, ses.Digest, now.Unix(), now.Unix()},
		})
	if err != nil {
		return Session{}, fmt.Errorf("unable to store session: %w", err)
	}

	s.log.Debug("Stored session",
		zap.String("id", ses.ID), zap.String("name", name), zap.Int64("size", ses.Size))
	return ses, nil
}

// Get returns a session and its content and refreshes the idle timer.
func (s *Store) Get(ctx context.Context, id string) (Session, []byte, error) {

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Session{}, nil, fmt.Errorf("unable to get store connection: %w", err)
	}
	defer s.pool.Put(conn)

	var (
		ses     Session
		content []byte
		found   bool
	)
	err = sqlitex.Execute(conn,
		`SELECT id, name, content, digest, uploaded_at, last_accessed FROM sessions WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				ses.ID = stmt.ColumnText(0)
				ses.Name = stmt.ColumnText(1)
				var err error
				content, err = io.ReadAll(stmt.ColumnReader(2))
				if err != nil {
					return err
				}
				ses.Size = int64(len(content))
				ses.Digest = stmt.ColumnText(3)
				ses.UploadedAt = time.Unix(stmt.ColumnInt64(4), 0)
				ses.LastAccessed = time.Unix(stmt.ColumnInt64(5), 0)
				return nil
			},
		})
	if err != nil {
		return Session{}, nil, fmt.Errorf("unable to read session: %w", err)
	}
	if !found {
		return Session{}, nil, &ErrNotFound{ID: id}
	}

	err = sqlitex.Execute(conn,
		`UPDATE sessions SET last_accessed = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{time.Now().Unix(), id}})
	if err != nil {
		s.log.Warn("Unable to refresh session idle timer", zap.String("id", id), zap.Error(err))
	}
	return ses, content, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("unable to get store connection: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM sessions WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{id}})
	if err != nil {
		return fmt.Errorf("unable to delete session: %w", err)
	}
	return nil
}

// Sweep drops sessions idle longer than the store lifetime and reports
// how many went away.
func (s *Store) Sweep(ctx context.Context) (int, error) {

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("unable to get store connection: %w", err)
	}
	defer s.pool.Put(conn)

	cutoff := time.Now().Add(-s.ttl).Unix()
	err = sqlitex.Execute(conn, `DELETE FROM sessions WHERE last_accessed < ?`,
		&sqlitex.ExecOptions{Args: []any{cutoff}})
	if err != nil {
		return 0, fmt.Errorf("unable to sweep sessions: %w", err)
	}
	return conn.Changes(), nil
}

// Run sweeps expired sessions periodically until the context is
// canceled. Meant to be started on its own goroutine by the server.
func (s *Store) Run(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("Session sweep failed", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				s.log.Info("Swept expired sessions", zap.Int("count", n))
			}
		}
	}
}
