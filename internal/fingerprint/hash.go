package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix allows
// an algorithm migration to change every digest at once instead of colliding
// with the old cache.
const (
	DomainVideoFrame = "autocache/frame/v1"
	DomainAudioChunk = "autocache/audio/v1"
)

// hashWithDomain computes SHA-256 over domain + 0x00 + data. The null
// separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Frame computes the content hash for a video frame from its evaluated
// parameter payload. The payload must already include everything that
// affects pixels - node parameters, topology, render format - and must NOT
// include the timestamp itself, or identical frames at different times would
// hash apart.
func Frame(payload map[string]any) (string, error) {
	canonical, err := Canonical(payload)
	if err != nil {
		return "", fmt.Errorf("frame fingerprint: %w", err)
	}
	return hashWithDomain(DomainVideoFrame, canonical), nil
}

// Audio computes the content hash for a rendered audio chunk payload.
func Audio(payload map[string]any) (string, error) {
	canonical, err := Canonical(payload)
	if err != nil {
		return "", fmt.Errorf("audio fingerprint: %w", err)
	}
	return hashWithDomain(DomainAudioChunk, canonical), nil
}
