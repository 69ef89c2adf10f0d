package testutil

import (
	"sync"

	"github.com/rodlie/autocache/internal/cacher"
	"github.com/rodlie/autocache/internal/timecode"
)

type audioSegment struct {
	r      timecode.TimeRange
	data   []byte
	format string
}

// MemStore is an in-memory cacher.FrameStore. Frames are stored by content
// hash with a separate time-to-hash association, mirroring how the SQLite
// store lays the cache out.
type MemStore struct {
	mu     sync.Mutex
	frames map[string][]byte
	assoc  map[string]string // frame time -> hash
	audio  []audioSegment
}

var _ cacher.FrameStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		frames: make(map[string][]byte),
		assoc:  make(map[string]string),
	}
}

// SeedFrame pre-populates a cached frame, as if an earlier session stored
// it. For exercising hash-hit adoption.
func (s *MemStore) SeedFrame(hash string, data []byte) {
	s.mu.Lock()
	s.frames[hash] = data
	s.mu.Unlock()
}

func (s *MemStore) HasFrame(hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.frames[hash]
	return ok, nil
}

func (s *MemStore) SaveFrame(hash string, data []byte) error {
	s.mu.Lock()
	s.frames[hash] = data
	s.mu.Unlock()
	return nil
}

func (s *MemStore) AssociateFrame(t timecode.Rational, hash string) error {
	s.mu.Lock()
	s.assoc[t.String()] = hash
	s.mu.Unlock()
	return nil
}

func (s *MemStore) SaveAudio(r timecode.TimeRange, data []byte, format string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.audio[:0]
	for _, seg := range s.audio {
		if !seg.r.Overlaps(r) {
			kept = append(kept, seg)
		}
	}
	s.audio = append(kept, audioSegment{r: r, data: data, format: format})
	return nil
}

func (s *MemStore) SetAudioFormat(r timecode.TimeRange, format string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.audio {
		if s.audio[i].r.Overlaps(r) {
			s.audio[i].format = format
		}
	}
	return nil
}

// HashAt returns the hash associated with a frame time, if any.
func (s *MemStore) HashAt(t timecode.Rational) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.assoc[t.String()]
	return h, ok
}

// FrameCount returns how many distinct frames are stored.
func (s *MemStore) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// AssociationCount returns how many frame times map to a cached frame.
func (s *MemStore) AssociationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.assoc)
}

// AudioFormatAt returns the format of the stored audio covering t.
func (s *MemStore) AudioFormatAt(t timecode.Rational) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seg := range s.audio {
		if seg.r.Contains(t) {
			return seg.format, true
		}
	}
	return "", false
}

// AudioSegmentCount returns how many audio segments are stored.
func (s *MemStore) AudioSegmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audio)
}
