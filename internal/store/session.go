package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Session is one recorded capture run.
type Session struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	Mode      string     `json:"mode"`
	Config    string     `json:"config"`
	Frames    int        `json:"frames"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Active reports whether the session has not been ended.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. An empty ID is filled with a fresh UUID and
// StartedAt defaults to now.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	if sess.Config == "" {
		sess.Config = "{}"
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, source, mode, config, frames, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Source, sess.Mode, sess.Config, sess.Frames, sess.StartedAt,
	)
	return err
}

// End marks a session finished and records its frame count.
func (r *SessionRepository) End(id string, frames int) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, frames = ? WHERE id = ?`,
		time.Now(), frames, id,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(
		`SELECT id, source, mode, config, frames, started_at, ended_at
		 FROM sessions WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List returns all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, source, mode, config, frames, started_at, ended_at
		 FROM sessions ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Delete removes a session and, through the foreign key, its frames.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime
	if err := row.Scan(&sess.ID, &sess.Source, &sess.Mode, &sess.Config, &sess.Frames, &sess.StartedAt, &ended); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
