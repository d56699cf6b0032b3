package traj

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
)

// Encode serialises a trajectory to a gob+gzip blob. The encoding is
// deterministic: field order is explicit in the model and gob writes slices
// in order, so identical trajectories produce identical bytes. The cache
// layer relies on this.
func Encode(t *Trajectory) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(t); err != nil {
		gz.Close()
		return nil, fmt.Errorf("encode trajectory: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserialises a trajectory from a gob+gzip blob.
func Decode(blob []byte) (*Trajectory, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty trajectory blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var t Trajectory
	dec := gob.NewDecoder(gz)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode trajectory: %w", err)
	}
	return &t, nil
}
