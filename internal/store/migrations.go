package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per capture run
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			frames INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// Published snapshots, msgpack encoded. Summary columns are kept
		// alongside the blob for listing without decoding.
		`CREATE TABLE IF NOT EXISTS frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			human_present INTEGER NOT NULL DEFAULT 0,
			left_path TEXT NOT NULL DEFAULT '',
			right_path TEXT NOT NULL DEFAULT '',
			data BLOB NOT NULL,
			UNIQUE(session_id, seq)
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_frames_session_id ON frames(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
