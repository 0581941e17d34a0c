// Package pipeline turns a directory of face photos into an augmented
// training set: load and preprocess, augment, then persist every variant.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"face-augmentor/internal/augment"
	"face-augmentor/internal/logger"
	"face-augmentor/internal/preprocess"
	"face-augmentor/internal/raster"
)

type ImageLoader interface {
	LoadFromPath(path string) (*ImageData, error)
	LoadFromBytes(data []byte, name string) (*ImageData, error)
}

type ImageProcessor interface {
	ProcessImageWithContext(ctx context.Context, inputData *ImageData, rng augment.RandomSource) (augment.Batch, float64, error)
}

type ImageSaver interface {
	SaveToWriter(writer io.Writer, img *raster.Image, format string) error
	SaveToPath(path string, img *raster.Image) (int64, error)
}

// ImageData is a preprocessed source image.
type ImageData struct {
	Image  *raster.Image
	Path   string
	Base   string
	Format string
}

// Result describes the files written for one source.
type Result struct {
	Source       string
	Preprocessed string
	Outputs      []string
	Angle        float64
	BytesWritten int64
	Duration     time.Duration
}

type Options struct {
	ProcessedDir     string
	AugmentedDir     string
	Format           string
	JPEGQuality      int
	SavePreprocessed bool
}

type Coordinator struct {
	opts      Options
	settings  string
	logger    logger.Logger
	loader    ImageLoader
	processor ImageProcessor
	saver     ImageSaver
}

func NewCoordinator(pre *preprocess.Preprocessor, aug *augment.Augmenter, opts Options, log logger.Logger) (*Coordinator, error) {
	if pre == nil || aug == nil {
		return nil, fmt.Errorf("preprocessor and augmenter are required")
	}
	if opts.AugmentedDir == "" {
		return nil, fmt.Errorf("augmented directory cannot be empty")
	}
	if opts.SavePreprocessed && opts.ProcessedDir == "" {
		return nil, fmt.Errorf("processed directory cannot be empty when saving preprocessed images")
	}
	if opts.Format == "" {
		opts.Format = "jpg"
	}
	opts.Format = strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if opts.JPEGQuality == 0 {
		opts.JPEGQuality = 95
	}
	if log == nil {
		log = logger.NewNop()
	}

	coord := &Coordinator{
		opts:     opts,
		settings: fmt.Sprintf("pre=%+v aug=%+v out=%+v", pre.Options(), aug.Parameters(), opts),
		logger:   log,
		loader: &imageLoader{
			preprocessor: pre,
			logger:       log,
		},
		processor: &imageProcessor{
			augmenter: aug,
			logger:    log,
		},
		saver: &imageSaver{
			logger:  log,
			quality: opts.JPEGQuality,
		},
	}

	log.Debug("PipelineCoordinator", "initialized", logger.Fields{
		"augmented_dir": opts.AugmentedDir,
		"processed_dir": opts.ProcessedDir,
		"format":        opts.Format,
	})
	return coord, nil
}

// ProcessFile preprocesses and augments the image at path and writes every
// variant to the augmented directory. Nothing is written when loading fails.
func (c *Coordinator) ProcessFile(ctx context.Context, path string, rng augment.RandomSource) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := c.loader.LoadFromPath(path)
	if err != nil {
		return nil, err
	}

	result := &Result{Source: path}

	if c.opts.SavePreprocessed {
		out := filepath.Join(c.opts.ProcessedDir, data.Base+"."+c.opts.Format)
		n, err := c.saver.SaveToPath(out, data.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to save preprocessed %s: %w", path, err)
		}
		result.Preprocessed = out
		result.BytesWritten += n
	}

	batch, angle, err := c.processor.ProcessImageWithContext(ctx, data, rng)
	if err != nil {
		return nil, err
	}
	result.Angle = angle

	outputs, n, err := c.SaveBatch(ctx, data.Base, batch)
	if err != nil {
		return nil, err
	}
	result.Outputs = outputs
	result.BytesWritten += n
	result.Duration = time.Since(start)

	c.logger.Info("PipelineCoordinator", "image augmented", logger.Fields{
		"source":       path,
		"variants":     len(outputs),
		"angle":        angle,
		"process_time": result.Duration,
	})

	return result, nil
}

// AugmentBytes preprocesses an encoded image and returns its variants
// without touching the filesystem.
func (c *Coordinator) AugmentBytes(ctx context.Context, data []byte, name string, rng augment.RandomSource) (augment.Batch, error) {
	img, err := c.loader.LoadFromBytes(data, name)
	if err != nil {
		return augment.Batch{}, err
	}
	batch, _, err := c.processor.ProcessImageWithContext(ctx, img, rng)
	return batch, err
}

// SaveBatch writes batch as {base}_aug_{i}.{format} in the augmented
// directory and returns the written paths in variant order.
func (c *Coordinator) SaveBatch(ctx context.Context, base string, batch augment.Batch) ([]string, int64, error) {
	outputs := make([]string, 0, len(batch))
	var total int64

	for i, img := range batch {
		if err := ctx.Err(); err != nil {
			return outputs, total, err
		}

		out := filepath.Join(c.opts.AugmentedDir, VariantName(base, i, c.opts.Format))
		n, err := c.saver.SaveToPath(out, img)
		if err != nil {
			c.logger.Error("PipelineCoordinator", err, logger.Fields{
				"operation": "save_variant",
				"variant":   augment.Variant(i).String(),
			})
			return outputs, total, fmt.Errorf("failed to save %s variant: %w", augment.Variant(i), err)
		}
		outputs = append(outputs, out)
		total += n
	}

	return outputs, total, nil
}

// SaveImage writes img to path, encoded by its extension.
func (c *Coordinator) SaveImage(path string, img *raster.Image) (int64, error) {
	return c.saver.SaveToPath(path, img)
}

// WriteImage encodes img to w in the given format.
func (c *Coordinator) WriteImage(w io.Writer, img *raster.Image, format string) error {
	return c.saver.SaveToWriter(w, img, format)
}

// Fingerprint identifies everything besides the source bytes that decides
// what ProcessFile writes for the image drawing from stream of seed.
func (c *Coordinator) Fingerprint(seed, stream uint64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s seed=%d stream=%d", c.settings, seed, stream)))
	return hex.EncodeToString(sum[:])
}

func (c *Coordinator) Options() Options {
	return c.opts
}
