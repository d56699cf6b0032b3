// Package pipeline orchestrates the full trajectory computation: load the
// tabular source, join it against the environment grid, and memoise the
// result behind the content-addressed cache.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/seaway-data/shiptrace/internal/cache"
	"github.com/seaway-data/shiptrace/internal/config"
	"github.com/seaway-data/shiptrace/internal/envgrid"
	"github.com/seaway-data/shiptrace/internal/ingest"
	"github.com/seaway-data/shiptrace/internal/join"
	"github.com/seaway-data/shiptrace/internal/monitoring"
	"github.com/seaway-data/shiptrace/internal/traj"
)

// Pipeline wires the loader, the grid and the cache together. A Pipeline is
// safe for concurrent use; concurrent requests for the same inputs share one
// computation through the cache.
type Pipeline struct {
	cfg    *config.Config
	loader *ingest.Loader
	grid   *envgrid.Grid
	cache  *cache.Cache
}

// processingOptions is the slice of configuration that affects the computed
// result. It feeds the cache fingerprint, so adding a field here invalidates
// old entries for configs that set it.
type processingOptions struct {
	Encoding         string                     `json:"encoding"`
	Sheet            string                     `json:"sheet"`
	ResampleInterval string                     `json:"resample_interval"`
	RowLimit         int                        `json:"row_limit"`
	Clips            map[string]config.ClipRule `json:"clips"`
	Units            map[string]string          `json:"units"`
	Levels           []int                      `json:"levels"`
	Resolver         resolverOptions            `json:"resolver"`
}

// resolverOptions captures the schema-resolution configuration. A different
// synonym table or language-model setup can map the same headers to different
// fields, so both must change the cache key.
type resolverOptions struct {
	SynonymTableHash string  `json:"synonym_table_hash"`
	LLMBaseURL       string  `json:"llm_base_url,omitempty"`
	LLMModel         string  `json:"llm_model,omitempty"`
	LLMTemperature   float64 `json:"llm_temperature,omitempty"`
}

// New assembles a pipeline from loaded configuration, a ready grid and an
// open cache.
func New(cfg *config.Config, loader *ingest.Loader, grid *envgrid.Grid, c *cache.Cache) *Pipeline {
	return &Pipeline{cfg: cfg, loader: loader, grid: grid, cache: c}
}

// Grid exposes the environment grid for diagnostic endpoints.
func (p *Pipeline) Grid() *envgrid.Grid { return p.grid }

// Result returns the joined trajectory for the configured inputs, computing
// it at most once per (source content, grid identity, processing options)
// triple.
func (p *Pipeline) Result(ctx context.Context) (*traj.Trajectory, error) {
	sourcePath := p.cfg.Trajectory.Path

	sourceHash, err := cache.HashFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting trajectory source: %w", err)
	}

	gridIdentity := ""
	if p.grid != nil {
		gridIdentity, err = cache.FileIdentity(p.cfg.Grid.Path)
		if err != nil {
			return nil, fmt.Errorf("fingerprinting grid: %w", err)
		}
	}

	resolver := resolverOptions{}
	if p.cfg.Trajectory.SynonymTable != "" {
		resolver.SynonymTableHash, err = cache.HashFile(p.cfg.Trajectory.SynonymTable)
		if err != nil {
			return nil, fmt.Errorf("fingerprinting synonym table: %w", err)
		}
	}
	if p.cfg.LLMEnabled() {
		resolver.LLMBaseURL = p.cfg.LLM.BaseURL
		resolver.LLMModel = p.cfg.LLM.Model
		resolver.LLMTemperature = p.cfg.LLM.Temperature
	}

	key, err := cache.Fingerprint(sourceHash, gridIdentity, processingOptions{
		Encoding:         p.cfg.Trajectory.Encoding,
		Sheet:            p.cfg.Trajectory.Sheet,
		ResampleInterval: p.cfg.Trajectory.ResampleInterval,
		RowLimit:         p.cfg.Trajectory.RowLimit,
		Clips:            p.cfg.Trajectory.Clips,
		Units:            p.cfg.Trajectory.Units,
		Levels:           p.cfg.Grid.Levels,
		Resolver:         resolver,
	})
	if err != nil {
		return nil, fmt.Errorf("building cache key: %w", err)
	}

	if p.cfg.Cache.ForceRegeneration {
		if err := p.cache.Invalidate(sourcePath); err != nil {
			monitoring.Logf("pipeline: cache invalidation for %s failed: %v", sourcePath, err)
		}
	}

	return p.cache.GetOrCompute(ctx, key, sourcePath, func(ctx context.Context) (*traj.Trajectory, error) {
		return p.compute(ctx, sourcePath, sourceHash)
	})
}

// compute runs the load and join stages without touching the cache.
func (p *Pipeline) compute(ctx context.Context, sourcePath, sourceHash string) (*traj.Trajectory, error) {
	started := time.Now()

	t, err := p.loader.Load(ctx, sourcePath, sourceHash)
	if err != nil {
		return nil, err
	}
	monitoring.Debugf("pipeline: loaded %d points from %s in %s", t.Len(), sourcePath, time.Since(started))

	if p.grid != nil {
		t = join.Join(t, p.grid, p.cfg.Grid.Levels)
	}
	monitoring.Logf("pipeline: computed trajectory %s (%d points, %d fields) in %s",
		sourceHash[:12], t.Len(), len(t.Fields), time.Since(started))
	return t, nil
}
