package store

import "fmt"

// Stats summarizes cache contents for inspection tooling.
type Stats struct {
	Frames        int64 `json:"frames" yaml:"frames"`
	FrameBytes    int64 `json:"frame_bytes" yaml:"frame_bytes"`
	Associations  int64 `json:"associations" yaml:"associations"`
	AudioSegments int64 `json:"audio_segments" yaml:"audio_segments"`
	AudioBytes    int64 `json:"audio_bytes" yaml:"audio_bytes"`
}

// Stats reads summary counts from the cache.
func (s *Store) Stats() (Stats, error) {
	var st Stats

	row := s.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(size), 0) FROM frames")
	if err := row.Scan(&st.Frames, &st.FrameBytes); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}

	row = s.db.QueryRow("SELECT COUNT(*) FROM frame_times")
	if err := row.Scan(&st.Associations); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}

	row = s.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(LENGTH(data)), 0) FROM audio_segments")
	if err := row.Scan(&st.AudioSegments, &st.AudioBytes); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}
