package conversion

import (
	"fmt"

	"face-augmentor/internal/opencv/safe"

	"gocv.io/x/gocv"
)

func CvtColorSafe(src *safe.Mat, dst *safe.Mat, code gocv.ColorConversionCode) error {
	if err := safe.ValidateColorConversion(src, code); err != nil {
		return fmt.Errorf("color conversion validation failed: %w", err)
	}

	if err := safe.ValidateMatForOperation(dst, "CvtColor destination"); err != nil {
		return fmt.Errorf("destination mat validation failed: %w", err)
	}

	srcMat := src.GetMat()
	dstMat := dst.GetMat()

	if err := gocv.CvtColor(srcMat, &dstMat, code); err != nil {
		return fmt.Errorf("CvtColor failed: %w", err)
	}

	return nil
}

// ConvertToGrayscale returns a new single-channel Mat using luma weights
// (0.299 R + 0.587 G + 0.114 B). A single-channel source is cloned.
func ConvertToGrayscale(src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "ConvertToGrayscale"); err != nil {
		return nil, err
	}

	var code gocv.ColorConversionCode
	switch channels := src.Channels(); channels {
	case 1:
		return Clone(src, src.Tag()+"_gray")
	case 3:
		code = gocv.ColorBGRToGray
	case 4:
		code = gocv.ColorBGRAToGray
	default:
		return nil, fmt.Errorf("unsupported channel count for grayscale conversion: %d", channels)
	}

	dst, err := safe.NewMat(src.Rows(), src.Cols(), gocv.MatTypeCV8UC1, src.Tag()+"_gray")
	if err != nil {
		return nil, fmt.Errorf("failed to create destination Mat: %w", err)
	}

	if err := CvtColorSafe(src, dst, code); err != nil {
		dst.Close()
		return nil, fmt.Errorf("color conversion failed: %w", err)
	}

	return dst, nil
}

func Clone(src *safe.Mat, tag string) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "Clone"); err != nil {
		return nil, err
	}
	return safe.Adopt(src.GetMat().Clone(), tag)
}
