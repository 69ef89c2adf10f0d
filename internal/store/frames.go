package store

import (
	"database/sql"
	"fmt"

	"github.com/rodlie/autocache/internal/timecode"
)

// HasFrame reports whether pixel data for this content hash is cached.
func (s *Store) HasFrame(hash string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM frames WHERE hash = ?", hash).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("frame lookup: %w", err)
	}
	return true, nil
}

// SaveFrame stores pixel data under its content hash. Writing the same
// hash twice is a no-op; content-addressed data never changes.
func (s *Store) SaveFrame(hash string, data []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO frames (hash, data, size)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, data, len(data))
	if err != nil {
		return fmt.Errorf("save frame: %w", err)
	}
	return nil
}

// AssociateFrame records that the frame at time t currently has the given
// content hash, replacing any previous association for that time.
func (s *Store) AssociateFrame(t timecode.Rational, hash string) error {
	_, err := s.db.Exec(`
		INSERT INTO frame_times (time, hash)
		VALUES (?, ?)
		ON CONFLICT(time) DO UPDATE SET hash = excluded.hash
	`, t.String(), hash)
	if err != nil {
		return fmt.Errorf("associate frame: %w", err)
	}
	return nil
}

// FrameAt returns the cached pixel data for the frame at time t.
func (s *Store) FrameAt(t timecode.Rational) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow(`
		SELECT f.data FROM frame_times ft
		JOIN frames f ON f.hash = ft.hash
		WHERE ft.time = ?
	`, t.String()).Scan(&data)
	switch {
	case err == sql.ErrNoRows:
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("frame read: %w", err)
	}
	return data, true, nil
}

// HashAt returns the content hash associated with the frame at time t.
func (s *Store) HashAt(t timecode.Rational) (string, bool, error) {
	var hash string
	err := s.db.QueryRow("SELECT hash FROM frame_times WHERE time = ?", t.String()).Scan(&hash)
	switch {
	case err == sql.ErrNoRows:
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("hash read: %w", err)
	}
	return hash, true, nil
}

// PruneUnreferenced deletes frames no time points at anymore and returns
// how many were removed. Run occasionally; associations churn as edits
// re-point times at new content.
func (s *Store) PruneUnreferenced() (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM frames
		WHERE hash NOT IN (SELECT DISTINCT hash FROM frame_times)
	`)
	if err != nil {
		return 0, fmt.Errorf("prune frames: %w", err)
	}
	return res.RowsAffected()
}
