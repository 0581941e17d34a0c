package raster

import (
	"image"
	"image/color"
)

// ToImage converts the raster into a standard library image for encoding.
// Gray rasters become *image.Gray, BGR rasters *image.RGBA and BGRA rasters
// *image.NRGBA.
func (im *Image) ToImage() (image.Image, error) {
	if err := im.Validate("ToImage"); err != nil {
		return nil, err
	}

	rect := image.Rect(0, 0, im.Cols, im.Rows)
	switch im.Channels {
	case Gray:
		img := image.NewGray(rect)
		for y := 0; y < im.Rows; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+im.Cols], im.Row(y))
		}
		return img, nil
	case BGR:
		img := image.NewRGBA(rect)
		for y := 0; y < im.Rows; y++ {
			for x := 0; x < im.Cols; x++ {
				img.SetRGBA(x, y, color.RGBA{
					R: im.AtChannel(y, x, 2),
					G: im.AtChannel(y, x, 1),
					B: im.AtChannel(y, x, 0),
					A: 255,
				})
			}
		}
		return img, nil
	default:
		img := image.NewNRGBA(rect)
		for y := 0; y < im.Rows; y++ {
			for x := 0; x < im.Cols; x++ {
				img.SetNRGBA(x, y, color.NRGBA{
					R: im.AtChannel(y, x, 2),
					G: im.AtChannel(y, x, 1),
					B: im.AtChannel(y, x, 0),
					A: im.AtChannel(y, x, 3),
				})
			}
		}
		return img, nil
	}
}

// FromImage copies a standard library image into a raster. *image.Gray
// sources keep a single channel; everything else becomes BGR.
func FromImage(img image.Image) (*Image, error) {
	if img == nil {
		return nil, invalid("FromImage", "image is nil")
	}

	bounds := img.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	if rows == 0 || cols == 0 {
		return nil, invalid("FromImage", "empty image %dx%d", cols, rows)
	}

	if gray, ok := img.(*image.Gray); ok {
		out := NewGray(rows, cols)
		for y := 0; y < rows; y++ {
			start := (y+bounds.Min.Y-gray.Rect.Min.Y)*gray.Stride + (bounds.Min.X - gray.Rect.Min.X)
			copy(out.Row(y), gray.Pix[start:start+cols])
		}
		return out, nil
	}

	out := New(rows, cols, BGR)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			out.SetChannel(y, x, 0, uint8(b>>8))
			out.SetChannel(y, x, 1, uint8(g>>8))
			out.SetChannel(y, x, 2, uint8(r>>8))
		}
	}
	return out, nil
}
