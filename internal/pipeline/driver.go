package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"face-augmentor/internal/augment"
	"face-augmentor/internal/logger"
	"face-augmentor/internal/manifest"
	"face-augmentor/internal/opencv/memory"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

var sourceExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".tif": true, ".tiff": true, ".webp": true,
}

type DriverOptions struct {
	SourceDir       string
	Workers         int
	Seed            uint64
	SkipUnchanged   bool
	ContinueOnError bool
	Progress        bool
	// ProgressWriter defaults to os.Stderr.
	ProgressWriter io.Writer
}

type Failure struct {
	Source string
	Err    error
}

type Summary struct {
	RunID        string
	Total        int
	Processed    int
	Skipped      int
	Failed       int
	BytesWritten int64
	Duration     time.Duration
	Failures     []Failure
}

// Driver runs the coordinator over every source image of a directory.
// The manifest store is optional. Run must not be called concurrently.
type Driver struct {
	coord  *Coordinator
	store  *manifest.Store
	opts   DriverOptions
	logger logger.Logger

	mu      sync.Mutex
	summary *Summary
}

func NewDriver(coord *Coordinator, store *manifest.Store, opts DriverOptions, log logger.Logger) (*Driver, error) {
	if coord == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if opts.SourceDir == "" {
		return nil, fmt.Errorf("source directory cannot be empty")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ProgressWriter == nil {
		opts.ProgressWriter = os.Stderr
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Driver{coord: coord, store: store, opts: opts, logger: log}, nil
}

// Run processes the source directory once. Image i draws its randomness
// from stream i of the configured seed, so output does not depend on
// worker scheduling. The returned summary is valid even when err is not nil.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	d.summary = summary

	sources, err := ListSources(d.opts.SourceDir)
	if err != nil {
		return summary, err
	}
	summary.Total = len(sources)

	d.logger.Info("Driver", "run started", logger.Fields{
		"run_id":  summary.RunID,
		"sources": len(sources),
		"workers": d.opts.Workers,
		"seed":    d.opts.Seed,
	})

	var bar *progressbar.ProgressBar
	if d.opts.Progress && len(sources) > 0 {
		bar = progressbar.NewOptions(len(sources),
			progressbar.OptionSetWriter(d.opts.ProgressWriter),
			progressbar.OptionSetDescription("augmenting"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowIts(),
			progressbar.OptionClearOnFinish(),
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)

	for i, src := range sources {
		if gctx.Err() != nil {
			break
		}
		stream := uint64(i)
		g.Go(func() error {
			err := d.processOne(gctx, src, stream, summary.RunID)
			if bar != nil {
				bar.Add(1)
			}
			return err
		})
	}

	err = g.Wait()
	if bar != nil {
		bar.Finish()
	}
	if err == nil {
		err = ctx.Err()
	}
	summary.Duration = time.Since(start)
	// Every worker closes its Mats before returning, so survivors are leaks.
	memory.Default.LogStats(d.logger, 0)

	fields := logger.Fields{
		"run_id":    summary.RunID,
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
		"written":   humanize.Bytes(uint64(summary.BytesWritten)),
		"duration":  summary.Duration.Round(time.Millisecond).String(),
	}
	if err != nil {
		d.logger.Error("Driver", err, fields)
		return summary, err
	}
	d.logger.Info("Driver", "run finished", fields)
	return summary, nil
}

func (d *Driver) processOne(ctx context.Context, src string, stream uint64, runID string) error {
	hash, err := HashFile(src)
	if err != nil {
		return d.fail(src, err)
	}

	fingerprint := d.coord.Fingerprint(d.opts.Seed, stream)

	if d.opts.SkipUnchanged && d.store != nil {
		prev, err := d.store.Lookup(ctx, src)
		switch {
		case err == nil && upToDate(prev, hash, fingerprint):
			d.mu.Lock()
			d.summary.Skipped++
			d.mu.Unlock()
			d.logger.Debug("Driver", "source unchanged, skipped", logger.Fields{"source": src})
			return nil
		case err != nil && !errors.Is(err, manifest.ErrNotFound):
			return d.fail(src, err)
		}
	}

	rng := augment.NewSource(d.opts.Seed, stream)
	res, err := d.coord.ProcessFile(ctx, src, rng)
	if err != nil {
		return d.fail(src, err)
	}

	if d.store != nil {
		entry := manifest.Entry{
			SourcePath:  src,
			Hash:        hash,
			Fingerprint: fingerprint,
			RunID:       runID,
			ProcessedAt: time.Now(),
			Outputs:     res.Outputs,
		}
		if err := d.store.Record(ctx, entry); err != nil {
			return d.fail(src, err)
		}
	}

	d.mu.Lock()
	d.summary.Processed++
	d.summary.BytesWritten += res.BytesWritten
	d.mu.Unlock()
	return nil
}

// upToDate reports whether prev was produced from the same bytes with the
// same settings and all of its outputs are still on disk.
func upToDate(prev *manifest.Entry, hash, fingerprint string) bool {
	if prev.Hash != hash || prev.Fingerprint != fingerprint {
		return false
	}
	if len(prev.Outputs) != augment.NumVariants {
		return false
	}
	for _, out := range prev.Outputs {
		if _, err := os.Stat(out); err != nil {
			return false
		}
	}
	return true
}

// fail records a per-image failure. Cancellation always stops the run;
// other errors stop it only when ContinueOnError is off.
func (d *Driver) fail(src string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	d.mu.Lock()
	d.summary.Failed++
	d.summary.Failures = append(d.summary.Failures, Failure{Source: src, Err: err})
	d.mu.Unlock()

	d.logger.Error("Driver", err, logger.Fields{"source": src})

	if d.opts.ContinueOnError {
		return nil
	}
	return fmt.Errorf("processing %s: %w", src, err)
}

// ListSources returns the image files directly inside dir, sorted by name.
func ListSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources in %s: %w", dir, err)
	}

	var sources []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if sourceExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			sources = append(sources, filepath.Join(dir, e.Name()))
		}
	}
	return sources, nil
}

// HashFile returns the hex sha256 of the file contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
