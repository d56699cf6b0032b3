package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shiptrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
trajectory:
  path: data/voyage.xlsx
  encoding: gbk
  sheet: Sheet2
  resample_interval: 30m
grid:
  path: data/wind.nc
  levels: [10]
cache:
  db_path: /tmp/test.db
  memory_entries: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "data/voyage.xlsx", cfg.Trajectory.Path)
	assert.Equal(t, "gbk", cfg.Trajectory.Encoding)
	assert.Equal(t, 30*time.Minute, cfg.GetResampleInterval())
	assert.Equal(t, []int{10}, cfg.Grid.Levels)
	assert.Equal(t, 4, cfg.Cache.MemoryEntries)

	// untouched fields keep defaults
	assert.Equal(t, 100000, cfg.Trajectory.RowLimit)
	assert.Equal(t, 30*time.Second, cfg.GetGridReadTimeout())
}

func TestLoadRejectsWrongExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadEncoding(t *testing.T) {
	cfg := Default()
	cfg.Trajectory.Encoding = "latin-1"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadResampleInterval(t *testing.T) {
	cfg := Default()
	cfg.Trajectory.ResampleInterval = "sometimes"
	assert.Error(t, cfg.Validate())

	cfg.Trajectory.ResampleInterval = "-5m"
	assert.Error(t, cfg.Validate())
}

func TestValidateClipRules(t *testing.T) {
	min, max := 0.0, 30.0

	cfg := Default()
	cfg.Trajectory.Clips = map[string]ClipRule{
		"speed": {Kind: "range", Min: &min, Max: &max},
		"mode":  {Kind: "enum", Allow: []float64{0, 1, 2}},
	}
	require.NoError(t, cfg.Validate())

	cfg.Trajectory.Clips = map[string]ClipRule{"speed": {Kind: "range"}}
	assert.Error(t, cfg.Validate(), "range rule without bounds")

	cfg.Trajectory.Clips = map[string]ClipRule{"speed": {Kind: "range", Min: &max, Max: &min}}
	assert.Error(t, cfg.Validate(), "inverted bounds")

	cfg.Trajectory.Clips = map[string]ClipRule{"mode": {Kind: "enum"}}
	assert.Error(t, cfg.Validate(), "enum rule without values")

	cfg.Trajectory.Clips = map[string]ClipRule{"speed": {Kind: "clamp"}}
	assert.Error(t, cfg.Validate(), "unknown kind")
}

func TestValidateRejectsBadUnit(t *testing.T) {
	cfg := Default()
	cfg.Trajectory.Units = map[string]string{"speed": "furlongs"}
	assert.Error(t, cfg.Validate())
}

func TestGetResampleIntervalEmptyMeansPassthrough(t *testing.T) {
	cfg := Default()
	assert.Equal(t, time.Duration(0), cfg.GetResampleInterval())
}

func TestLLMEnabled(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.LLMEnabled(), "no model configured")

	cfg.LLM.Model = "test-model"
	cfg.LLM.BaseURL = "https://llm.example.com"
	t.Setenv(LLMKeyEnv, "")
	assert.False(t, cfg.LLMEnabled(), "no key in environment")

	t.Setenv(LLMKeyEnv, "k")
	assert.True(t, cfg.LLMEnabled())
	assert.Equal(t, "k", cfg.LLMKey())
}
