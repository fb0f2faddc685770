package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Fingerprint returns the hex SHA-256 digest of the file at path.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open audio for fingerprint: %w", err)
	}
	defer f.Close()
	return FingerprintReader(f)
}

// FingerprintReader hashes r until EOF.
func FingerprintReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash audio: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
