// Package preprocess normalizes raw face images before augmentation: a
// Gaussian denoise on the full-color image followed by a luma-weighted
// conversion to a single gray channel.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"time"

	"face-augmentor/internal/logger"
	"face-augmentor/internal/opencv/bridge"
	"face-augmentor/internal/opencv/conversion"
	"face-augmentor/internal/opencv/safe"
	"face-augmentor/internal/raster"

	"gocv.io/x/gocv"
)

var errUndecodable = errors.New("not a decodable image")

type Options struct {
	// KernelSize is the side of the square Gaussian kernel. Must be odd.
	KernelSize int `yaml:"kernel_size"`
	// Sigma is the kernel standard deviation; 0 derives it from KernelSize.
	Sigma float64 `yaml:"sigma"`
}

func DefaultOptions() Options {
	return Options{KernelSize: 5, Sigma: 0}
}

func (o Options) Validate() error {
	if o.KernelSize < 1 || o.KernelSize%2 == 0 {
		return fmt.Errorf("kernel_size must be a positive odd number, got: %d", o.KernelSize)
	}
	if math.IsNaN(o.Sigma) || math.IsInf(o.Sigma, 0) {
		return fmt.Errorf("sigma must be a finite number, got: %f", o.Sigma)
	}
	if o.Sigma < 0 {
		return fmt.Errorf("sigma must not be negative, got: %f", o.Sigma)
	}
	return nil
}

// Preprocessor holds no per-image state and is safe for concurrent use.
type Preprocessor struct {
	opts   Options
	logger logger.Logger
}

func New(opts Options, log logger.Logger) (*Preprocessor, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("preprocess options: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Preprocessor{opts: opts, logger: log}, nil
}

func (p *Preprocessor) Options() Options {
	return p.opts
}

// PreprocessFile decodes the image at path and normalizes it. Unreadable or
// undecodable files yield a *raster.IOError.
func (p *Preprocessor) PreprocessFile(path string) (*raster.Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &raster.IOError{Path: path, Err: err}
	}

	mat := gocv.IMRead(path, gocv.IMReadAnyColor)
	if mat.Empty() {
		mat.Close()
		return nil, &raster.IOError{Path: path, Err: errUndecodable}
	}

	src, err := safe.Adopt(mat, "source")
	if err != nil {
		return nil, &raster.IOError{Path: path, Err: err}
	}
	defer src.Close()

	return p.run(src, path)
}

// PreprocessBytes is PreprocessFile for an encoded in-memory buffer.
func (p *Preprocessor) PreprocessBytes(data []byte, name string) (*raster.Image, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadAnyColor)
	if err != nil {
		return nil, &raster.IOError{Path: name, Err: err}
	}
	if mat.Empty() {
		mat.Close()
		return nil, &raster.IOError{Path: name, Err: errUndecodable}
	}

	src, err := safe.Adopt(mat, "source")
	if err != nil {
		return nil, &raster.IOError{Path: name, Err: err}
	}
	defer src.Close()

	return p.run(src, name)
}

// Preprocess normalizes an already decoded raster.
func (p *Preprocessor) Preprocess(img *raster.Image) (*raster.Image, error) {
	if err := img.Validate("Preprocess"); err != nil {
		return nil, err
	}

	src, err := bridge.RasterToMat(img, "source")
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return p.run(src, "<memory>")
}

func (p *Preprocessor) run(src *safe.Mat, name string) (*raster.Image, error) {
	start := time.Now()

	if err := safe.ValidateEightBit(src, "Preprocess"); err != nil {
		return nil, &raster.InvalidInputError{Op: "Preprocess", Reason: err.Error()}
	}

	blurred, err := p.denoise(src)
	if err != nil {
		return nil, fmt.Errorf("denoise %s: %w", name, err)
	}
	defer blurred.Close()

	gray, err := conversion.ConvertToGrayscale(blurred)
	if err != nil {
		return nil, fmt.Errorf("grayscale %s: %w", name, err)
	}
	defer gray.Close()

	out, err := bridge.MatToRaster(gray)
	if err != nil {
		return nil, fmt.Errorf("copy %s: %w", name, err)
	}

	p.logger.Debug("Preprocessor", "image preprocessed", logger.Fields{
		"source":      name,
		"width":       out.Cols,
		"height":      out.Rows,
		"in_channels": src.Channels(),
		"duration":    time.Since(start),
	})

	return out, nil
}

// denoise runs before the gray conversion so the blur sees every channel.
func (p *Preprocessor) denoise(src *safe.Mat) (*safe.Mat, error) {
	dst := gocv.NewMat()
	k := p.opts.KernelSize
	if err := gocv.GaussianBlur(src.GetMat(), &dst, image.Point{X: k, Y: k}, p.opts.Sigma, p.opts.Sigma, gocv.BorderDefault); err != nil {
		dst.Close()
		return nil, fmt.Errorf("gaussian blur %dx%d failed: %w", k, k, err)
	}
	return safe.Adopt(dst, src.Tag()+"_blurred")
}
