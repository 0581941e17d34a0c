package bridge

import (
	"fmt"

	"face-augmentor/internal/opencv/safe"
	"face-augmentor/internal/raster"
)

// MatToRaster copies an 8-bit Mat into a raster with the same channel count.
func MatToRaster(mat *safe.Mat) (*raster.Image, error) {
	if err := safe.ValidateEightBit(mat, "MatToRaster"); err != nil {
		return nil, err
	}

	rows, cols, channels := mat.Rows(), mat.Cols(), mat.Channels()
	data, err := mat.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read Mat data: %w", err)
	}

	img, err := raster.FromPix(rows, cols, channels, data)
	if err != nil {
		return nil, fmt.Errorf("Mat data does not match %dx%dx%d: %w", rows, cols, channels, err)
	}
	return img, nil
}

// RasterToMat copies a raster into a newly allocated Mat. The caller owns
// the result and must Close it.
func RasterToMat(img *raster.Image, tag string) (*safe.Mat, error) {
	if err := img.Validate("RasterToMat"); err != nil {
		return nil, err
	}

	mat, err := safe.NewMatFromBytes(img.Rows, img.Cols, img.Channels, img.Pix, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to convert raster %dx%d to Mat: %w", img.Cols, img.Rows, err)
	}
	return mat, nil
}
