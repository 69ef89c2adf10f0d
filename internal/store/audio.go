package store

import (
	"database/sql"
	"fmt"

	"github.com/rodlie/autocache/internal/timecode"
)

// SaveAudio stores rendered samples for a range, replacing any segments the
// range overlaps. Partial overlaps are dropped whole; the scheduler renders
// on a fixed chunk grid, so in practice replacement is exact.
func (s *Store) SaveAudio(r timecode.TimeRange, data []byte, format string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save audio: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM audio_segments
		WHERE start_sec < ? AND end_sec > ?
	`, r.End().Seconds(), r.Start().Seconds()); err != nil {
		return fmt.Errorf("save audio: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO audio_segments
		(start_num, start_den, end_num, end_den, start_sec, end_sec, format, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.Start().Num(), r.Start().Den(),
		r.End().Num(), r.End().Den(),
		r.Start().Seconds(), r.End().Seconds(),
		format, data,
	); err != nil {
		return fmt.Errorf("save audio: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save audio: %w", err)
	}
	return nil
}

// SetAudioFormat retags every segment overlapping r with a new format,
// after a conform pass converted the samples.
func (s *Store) SetAudioFormat(r timecode.TimeRange, format string) error {
	_, err := s.db.Exec(`
		UPDATE audio_segments SET format = ?
		WHERE start_sec < ? AND end_sec > ?
	`, format, r.End().Seconds(), r.Start().Seconds())
	if err != nil {
		return fmt.Errorf("set audio format: %w", err)
	}
	return nil
}

// AudioAt returns the samples and format of the segment covering t.
func (s *Store) AudioAt(t timecode.Rational) ([]byte, string, bool, error) {
	var (
		data   []byte
		format string
	)
	err := s.db.QueryRow(`
		SELECT data, format FROM audio_segments
		WHERE start_sec <= ? AND end_sec > ?
	`, t.Seconds(), t.Seconds()).Scan(&data, &format)
	switch {
	case err == sql.ErrNoRows:
		return nil, "", false, nil
	case err != nil:
		return nil, "", false, fmt.Errorf("audio read: %w", err)
	}
	return data, format, true, nil
}
