package store

import (
	"database/sql"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ayusman/holistic/internal/pipeline"
)

// FrameSummary describes a recorded frame without its landmark payload.
type FrameSummary struct {
	Seq          uint64 `json:"seq"`
	TimestampMs  int64  `json:"timestamp_ms"`
	HumanPresent bool   `json:"human_present"`
	LeftPath     string `json:"left_path"`
	RightPath    string `json:"right_path"`
}

// FrameRepository stores published snapshots for a session.
type FrameRepository struct {
	db *sql.DB
}

// Frames returns the frame repository for this store.
func (s *Store) Frames() *FrameRepository {
	return &FrameRepository{db: s.db}
}

// Append records snap under sessionID.
func (r *FrameRepository) Append(sessionID string, snap *pipeline.Snapshot) error {
	data, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %d: %w", snap.Seq, err)
	}

	_, err = r.db.Exec(
		`INSERT INTO frames (session_id, seq, timestamp_ms, human_present, left_path, right_path, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, snap.Seq, snap.Timestamp.Milliseconds(), snap.HumanPresent,
		snap.HandPaths[0].String(), snap.HandPaths[1].String(), data,
	)
	return err
}

// List decodes every snapshot recorded for sessionID in sequence order.
func (r *FrameRepository) List(sessionID string) ([]*pipeline.Snapshot, error) {
	rows, err := r.db.Query(
		`SELECT data FROM frames WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*pipeline.Snapshot
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		snap := &pipeline.Snapshot{}
		if err := msgpack.Unmarshal(data, snap); err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snaps, nil
}

// Summaries lists frame summaries for sessionID in sequence order.
func (r *FrameRepository) Summaries(sessionID string) ([]FrameSummary, error) {
	rows, err := r.db.Query(
		`SELECT seq, timestamp_ms, human_present, left_path, right_path
		 FROM frames WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FrameSummary
	for rows.Next() {
		var f FrameSummary
		if err := rows.Scan(&f.Seq, &f.TimestampMs, &f.HumanPresent, &f.LeftPath, &f.RightPath); err != nil {
			return nil, err
		}
		out = append(out, f)
	}

	return out, rows.Err()
}

// Count returns the number of frames recorded for sessionID.
func (r *FrameRepository) Count(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM frames WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
