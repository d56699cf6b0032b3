package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// HashFile returns the hex SHA-256 of a file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileIdentity returns a cheap identity string for a file (path, size,
// mtime). Used for large grid files where hashing the full content on every
// request would dominate the pipeline.
func FileIdentity(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano()), nil
}

// Fingerprint derives the cache key from the source content hash, the grid
// identity and the full processing configuration. The config is serialised
// to canonical JSON (sorted keys) so equal configurations always produce
// equal keys.
func Fingerprint(sourceHash, gridIdentity string, processingConfig interface{}) (string, error) {
	cfgJSON, err := json.Marshal(processingConfig)
	if err != nil {
		return "", fmt.Errorf("failed to serialise processing config: %w", err)
	}

	h := sha256.New()
	fmt.Fprintf(h, "source:%s\n", sourceHash)
	fmt.Fprintf(h, "grid:%s\n", gridIdentity)
	h.Write(cfgJSON)
	return hex.EncodeToString(h.Sum(nil)), nil
}
