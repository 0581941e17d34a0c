package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"face-augmentor/internal/logger"
	"face-augmentor/internal/preprocess"
)

type imageLoader struct {
	preprocessor *preprocess.Preprocessor
	logger       logger.Logger
}

func (l *imageLoader) LoadFromPath(path string) (*ImageData, error) {
	img, err := l.preprocessor.PreprocessFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	data := &ImageData{
		Image:  img,
		Path:   path,
		Base:   baseName(path),
		Format: determineFormat(filepath.Ext(path)),
	}

	l.logger.Debug("ImageLoader", "image loaded", logger.Fields{
		"path":   path,
		"width":  img.Cols,
		"height": img.Rows,
		"format": data.Format,
	})

	return data, nil
}

func (l *imageLoader) LoadFromBytes(data []byte, name string) (*ImageData, error) {
	img, err := l.preprocessor.PreprocessBytes(data, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}

	return &ImageData{
		Image:  img,
		Path:   name,
		Base:   baseName(name),
		Format: determineFormat(filepath.Ext(name)),
	}, nil
}

func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func determineFormat(ext string) string {
	switch strings.ToLower(ext) {
	case ".tiff", ".tif":
		return "tiff"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	case ".bmp":
		return "bmp"
	case ".gif":
		return "gif"
	case ".webp":
		return "webp"
	default:
		return "unknown"
	}
}
