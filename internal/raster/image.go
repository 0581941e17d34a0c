// Package raster holds the in-memory image model shared by the preprocessor,
// the augmenter and the dataset pipeline.
//
// An Image is a dense, row-major, channel-last buffer of 8-bit samples.
// Single-channel images carry no channel axis (Dims reports 2); color images
// keep OpenCV's BGR(A) channel order so they round-trip through gocv without
// swizzling.
package raster

const (
	Gray = 1
	BGR  = 3
	BGRA = 4
)

type Image struct {
	Rows     int
	Cols     int
	Channels int
	Pix      []uint8
}

// New allocates a zero-filled image.
func New(rows, cols, channels int) *Image {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	if channels < 1 {
		channels = 1
	}
	return &Image{
		Rows:     rows,
		Cols:     cols,
		Channels: channels,
		Pix:      make([]uint8, rows*cols*channels),
	}
}

func NewGray(rows, cols int) *Image {
	return New(rows, cols, Gray)
}

// NewGrayFilled returns a rows x cols grayscale image with every sample set to v.
func NewGrayFilled(rows, cols int, v uint8) *Image {
	img := NewGray(rows, cols)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// FromPix wraps pix without copying.
func FromPix(rows, cols, channels int, pix []uint8) (*Image, error) {
	img := &Image{Rows: rows, Cols: cols, Channels: channels, Pix: pix}
	if err := img.Validate("FromPix"); err != nil {
		return nil, err
	}
	return img, nil
}

// Dims is 2 for single-channel images and 3 otherwise.
func (im *Image) Dims() int {
	if im.Channels == Gray {
		return 2
	}
	return 3
}

func (im *Image) Size() int {
	return len(im.Pix)
}

func (im *Image) Empty() bool {
	return im == nil || im.Rows == 0 || im.Cols == 0
}

func (im *Image) At(row, col int) uint8 {
	return im.Pix[(row*im.Cols+col)*im.Channels]
}

func (im *Image) Set(row, col int, v uint8) {
	im.Pix[(row*im.Cols+col)*im.Channels] = v
}

func (im *Image) AtChannel(row, col, channel int) uint8 {
	return im.Pix[(row*im.Cols+col)*im.Channels+channel]
}

func (im *Image) SetChannel(row, col, channel int, v uint8) {
	im.Pix[(row*im.Cols+col)*im.Channels+channel] = v
}

// Row returns the samples of one row, aliasing the image buffer.
func (im *Image) Row(row int) []uint8 {
	stride := im.Cols * im.Channels
	return im.Pix[row*stride : (row+1)*stride]
}

func (im *Image) Clone() *Image {
	pix := make([]uint8, len(im.Pix))
	copy(pix, im.Pix)
	return &Image{Rows: im.Rows, Cols: im.Cols, Channels: im.Channels, Pix: pix}
}

// SameShape reports whether both images have identical dimensions.
func (im *Image) SameShape(other *Image) bool {
	return im.Rows == other.Rows && im.Cols == other.Cols && im.Channels == other.Channels
}

func (im *Image) Equal(other *Image) bool {
	if im == nil || other == nil {
		return im == other
	}
	if !im.SameShape(other) {
		return false
	}
	for i := range im.Pix {
		if im.Pix[i] != other.Pix[i] {
			return false
		}
	}
	return true
}

// Count returns how many samples equal v.
func (im *Image) Count(v uint8) int {
	n := 0
	for _, p := range im.Pix {
		if p == v {
			n++
		}
	}
	return n
}

// Validate checks that the image is non-empty and that its buffer matches
// its declared shape.
func (im *Image) Validate(op string) error {
	if im == nil {
		return invalid(op, "image is nil")
	}
	if im.Rows <= 0 || im.Cols <= 0 {
		return invalid(op, "empty image %dx%d", im.Cols, im.Rows)
	}
	if im.Channels != Gray && im.Channels != BGR && im.Channels != BGRA {
		return invalid(op, "unsupported channel count %d", im.Channels)
	}
	if want := im.Rows * im.Cols * im.Channels; len(im.Pix) != want {
		return invalid(op, "pixel buffer holds %d samples, shape %dx%dx%d needs %d",
			len(im.Pix), im.Rows, im.Cols, im.Channels, want)
	}
	return nil
}

// ValidateGray is Validate plus the requirement of a 2-D image.
func (im *Image) ValidateGray(op string) error {
	if err := im.Validate(op); err != nil {
		return err
	}
	if im.Dims() != 2 {
		return invalid(op, "expected a 2-dimensional image, got %d channels", im.Channels)
	}
	return nil
}
