package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"face-augmentor/internal/logger"
	"face-augmentor/internal/raster"

	"github.com/disintegration/imaging"
)

// VariantName is the file name of augmented variant i of base.
func VariantName(base string, i int, format string) string {
	return fmt.Sprintf("%s_aug_%d.%s", base, i, strings.TrimPrefix(format, "."))
}

type imageSaver struct {
	logger  logger.Logger
	quality int
}

func (s *imageSaver) SaveToWriter(writer io.Writer, img *raster.Image, format string) error {
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return fmt.Errorf("unsupported output format %q: %w", format, err)
	}

	std, err := img.ToImage()
	if err != nil {
		return err
	}

	if err := imaging.Encode(writer, std, f, imaging.JPEGQuality(s.quality)); err != nil {
		s.logger.Error("ImageSaver", err, logger.Fields{"format": format})
		return err
	}
	return nil
}

// SaveToPath encodes img by the extension of path, creating the parent
// directory when needed, and returns the size of the written file.
func (s *imageSaver) SaveToPath(path string, img *raster.Image) (int64, error) {
	if img == nil {
		return 0, fmt.Errorf("no image data to save")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, &raster.IOError{Path: path, Err: err}
	}

	std, err := img.ToImage()
	if err != nil {
		return 0, err
	}

	if err := imaging.Save(std, path, imaging.JPEGQuality(s.quality)); err != nil {
		s.logger.Error("ImageSaver", err, logger.Fields{"path": path})
		return 0, &raster.IOError{Path: path, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, &raster.IOError{Path: path, Err: err}
	}

	s.logger.Debug("ImageSaver", "image saved", logger.Fields{
		"path":  path,
		"bytes": info.Size(),
	})

	return info.Size(), nil
}
