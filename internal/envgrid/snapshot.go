package envgrid

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
)

// Snapshots are a gob+gzip serialisation of a loaded Grid. They let a grid
// extracted once from a large NetCDF file be reloaded cheaply, and give
// tests a compact fixture format.

// SerializeGrid compresses a grid using gob encoding and gzip compression.
func SerializeGrid(g *Grid) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(g); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DeserializeGrid decompresses and decodes a grid from a gob+gzip blob.
func DeserializeGrid(blob []byte) (*Grid, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty grid blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var g Grid
	dec := gob.NewDecoder(gz)
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("failed to decode grid: %w", err)
	}
	return &g, nil
}

// WriteSnapshot serialises a grid to a .snap.gz file. The write goes through
// a temp file and rename so a crash never leaves a torn snapshot visible.
func WriteSnapshot(g *Grid, path string) error {
	blob, err := SerializeGrid(g)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadSnapshot loads a grid from a .snap.gz file.
func ReadSnapshot(path string) (*Grid, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DeserializeGrid(blob)
}
