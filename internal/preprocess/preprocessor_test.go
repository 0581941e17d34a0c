package preprocess

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"face-augmentor/internal/logger"
	"face-augmentor/internal/opencv/memory"
	"face-augmentor/internal/raster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPreprocessor(t *testing.T) *Preprocessor {
	t.Helper()
	p, err := New(DefaultOptions(), nil)
	require.NoError(t, err)
	return p
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "face.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
	assert.Error(t, Options{KernelSize: 4}.Validate())
	assert.Error(t, Options{KernelSize: 0}.Validate())
	assert.Error(t, Options{KernelSize: 5, Sigma: -1}.Validate())
	assert.Error(t, Options{KernelSize: 5, Sigma: math.NaN()}.Validate())
	assert.Error(t, Options{KernelSize: 5, Sigma: math.Inf(1)}.Validate())

	_, err := New(Options{KernelSize: 2}, nil)
	assert.Error(t, err)
}

func TestPreprocessFileMissing(t *testing.T) {
	_, err := newPreprocessor(t).PreprocessFile(filepath.Join(t.TempDir(), "nope.jpg"))
	require.Error(t, err)
	assert.ErrorIs(t, err, raster.ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPreprocessFileUndecodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a jpeg"), 0o644))

	_, err := newPreprocessor(t).PreprocessFile(path)
	require.Error(t, err)
	var ioErr *raster.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, path, ioErr.Path)
}

func TestPreprocessBytesUndecodable(t *testing.T) {
	_, err := newPreprocessor(t).PreprocessBytes([]byte{1, 2, 3}, "inline")
	assert.ErrorIs(t, err, raster.ErrIO)
}

func TestPreprocessColorFileBecomesGray(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 12, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 12; x++ {
			src.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	out, err := newPreprocessor(t).PreprocessFile(writePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, 8, out.Rows)
	assert.Equal(t, 12, out.Cols)
	assert.Equal(t, 2, out.Dims())
	// Luma weighting: 0.299 * 255 rounds to 76; an average would give 85.
	assert.Equal(t, out.Size(), out.Count(76))
}

func TestPreprocessGrayPassesThroughSolidImage(t *testing.T) {
	img := raster.NewGrayFilled(9, 9, 128)
	out, err := newPreprocessor(t).Preprocess(img)
	require.NoError(t, err)
	assert.True(t, img.Equal(out))
}

func TestPreprocessIsStableOnSmoothImage(t *testing.T) {
	ramp := raster.NewGray(16, 40)
	for y := 0; y < ramp.Rows; y++ {
		for x := 0; x < ramp.Cols; x++ {
			ramp.Set(y, x, uint8(40+3*x))
		}
	}

	p := newPreprocessor(t)
	once, err := p.Preprocess(ramp)
	require.NoError(t, err)
	twice, err := p.Preprocess(once)
	require.NoError(t, err)

	for y := 0; y < ramp.Rows; y++ {
		for x := 4; x < ramp.Cols-4; x++ {
			assert.InDelta(t, int(once.At(y, x)), int(twice.At(y, x)), 1, "pixel (%d,%d)", y, x)
		}
	}
}

func TestPreprocessRejectsEmptyRaster(t *testing.T) {
	_, err := newPreprocessor(t).Preprocess(raster.NewGray(0, 3))
	assert.ErrorIs(t, err, raster.ErrInvalidInput)
}

func TestPreprocessReleasesMats(t *testing.T) {
	p := newPreprocessor(t)
	before := memory.Default.GetActiveMatCount()

	_, err := p.Preprocess(raster.NewGrayFilled(6, 6, 10))
	require.NoError(t, err)
	_, err = p.PreprocessBytes([]byte("garbage"), "inline")
	require.Error(t, err)

	assert.Equal(t, before, memory.Default.GetActiveMatCount())
}

func TestDenoiseReportsOpenCVErrors(t *testing.T) {
	// An even kernel never passes Options.Validate; build the value directly
	// to reach the OpenCV failure path.
	p := &Preprocessor{opts: Options{KernelSize: 4}, logger: logger.NewNop()}

	_, err := p.Preprocess(raster.NewGrayFilled(8, 8, 50))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gaussian blur")
}
