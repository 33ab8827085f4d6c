// Package pipeline runs zone conversions end to end: load the mesh, convert
// it, stamp the root ID from WMOAreaTable and write the map files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/wmoforge/pkg/convert"
	"github.com/Faultbox/wmoforge/pkg/formats"
	"github.com/Faultbox/wmoforge/pkg/mesh"
)

// ErrMissingDependency is returned by New when Loader or Converter is nil.
var ErrMissingDependency = errors.New("pipeline: missing dependency")

// Config holds the shared resources of a run.
type Config struct {
	Loader    mesh.Loader
	Converter *convert.Converter
	OutputDir string
	// Areas, when set, supplies root IDs by map name.
	Areas []formats.WMOArea
	// Verify reads every written map back and compares group counts.
	Verify  bool
	Workers int
	Logger  *zap.Logger
}

// Job names one zone to convert.
type Job struct {
	Name string
}

// Result holds the outcome of one job.
type Result struct {
	Name             string        `yaml:"name"`
	Success          bool          `yaml:"success"`
	Error            string        `yaml:"error,omitempty"`
	Groups           int           `yaml:"groups"`
	Triangles        int           `yaml:"triangles"`
	RootID           uint32        `yaml:"root_id"`
	DroppedTexCoords int           `yaml:"dropped_texcoords"`
	Duration         time.Duration `yaml:"duration"`
}

// Report is the outcome of a batch.
type Report struct {
	RunID     string   `yaml:"run_id"`
	Succeeded int      `yaml:"succeeded"`
	Failed    int      `yaml:"failed"`
	Results   []Result `yaml:"results"`
}

// Runner executes jobs. It is safe for concurrent use.
type Runner struct {
	cfg Config
	log *zap.Logger
}

// New validates cfg and creates a Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Loader == nil {
		return nil, fmt.Errorf("%w: loader", ErrMissingDependency)
	}
	if cfg.Converter == nil {
		return nil, fmt.Errorf("%w: converter", ErrMissingDependency)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{cfg: cfg, log: log}, nil
}

// Run processes jobs with at most Workers in flight. Results keep the order
// of jobs. A failed job does not stop the others; only cancellation of ctx
// makes Run return an error.
func (r *Runner) Run(ctx context.Context, jobs []Job) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString(),
		Results: make([]Result, len(jobs)),
	}
	log := r.log.With(zap.String("run", report.RunID))

	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	log.Info("batch started", zap.Int("jobs", len(jobs)), zap.Int("workers", r.cfg.Workers))
	start := time.Now()

	eg := new(errgroup.Group)
	eg.SetLimit(r.cfg.Workers)
	for i, job := range jobs {
		eg.Go(func() error {
			report.Results[i] = r.run(ctx, log, job)
			return nil
		})
	}
	_ = eg.Wait()

	for _, res := range report.Results {
		if res.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	log.Info("batch finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", time.Since(start)))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// RunOne processes a single job.
func (r *Runner) RunOne(ctx context.Context, job Job) Result {
	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return Result{Name: job.Name, Error: err.Error()}
	}
	return r.run(ctx, r.log, job)
}

func (r *Runner) run(ctx context.Context, log *zap.Logger, job Job) Result {
	start := time.Now()
	res := Result{Name: job.Name}
	log = log.With(zap.String("map", job.Name))

	if err := r.process(ctx, log, job, &res); err != nil {
		res.Error = err.Error()
		log.Error("conversion failed", zap.Error(err))
	} else {
		res.Success = true
		log.Info("map written",
			zap.Int("groups", res.Groups),
			zap.Int("triangles", res.Triangles),
			zap.Uint32("root_id", res.RootID))
	}
	res.Duration = time.Since(start)
	return res
}

func (r *Runner) process(ctx context.Context, log *zap.Logger, job Job, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := r.cfg.Loader.Load(ctx, job.Name)
	if err != nil {
		return fmt.Errorf("loading %s: %w", job.Name, err)
	}

	out, err := r.cfg.Converter.Convert(ctx, m, job.Name)
	if err != nil {
		return fmt.Errorf("converting %s: %w", job.Name, err)
	}
	root := out.Root
	res.DroppedTexCoords = out.DroppedTexCoords

	if r.cfg.Areas != nil {
		if area, ok := formats.FindWMOArea(r.cfg.Areas, job.Name); ok && area.RootID >= 0 {
			root.Header.ID = uint32(area.RootID)
		} else {
			log.Debug("no WMOAreaTable entry")
		}
	}
	res.RootID = root.Header.ID
	res.Groups = len(root.Groups)
	for _, g := range root.Groups {
		res.Triangles += len(g.Triangles)
	}

	if err := formats.WriteMap(r.cfg.OutputDir, job.Name, root); err != nil {
		return fmt.Errorf("writing %s: %w", job.Name, err)
	}

	if r.cfg.Verify {
		return r.verify(log, job.Name, res.Groups)
	}
	return nil
}

// verify reads the written map back, logging any chunk it does not know.
func (r *Runner) verify(log *zap.Logger, name string, groups int) error {
	back, err := formats.ReadMap(r.cfg.OutputDir, name, formats.OnUnknownChunk(func(tag formats.ChunkTag, size int) {
		log.Warn("unknown chunk", zap.String("tag", string(tag)), zap.Int("size", size))
	}))
	if err != nil {
		return fmt.Errorf("verifying %s: %w", name, err)
	}
	if err := back.Validate(); err != nil {
		return fmt.Errorf("verifying %s: %w", name, err)
	}
	if len(back.Groups) != groups {
		return fmt.Errorf("verifying %s: %w: wrote %d groups, read %d", name, formats.ErrStructuralMismatch, groups, len(back.Groups))
	}
	return nil
}

// LoadAreas reads a WMOAreaTable.dbc with names in the given locale.
func LoadAreas(path string, locale formats.Locale) ([]formats.WMOArea, error) {
	dbc, err := formats.ParseDBCFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return formats.WMOAreaTable(dbc, locale)
}
