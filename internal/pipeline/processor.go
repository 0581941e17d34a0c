package pipeline

import (
	"context"
	"fmt"
	"time"

	"face-augmentor/internal/augment"
	"face-augmentor/internal/logger"
)

type imageProcessor struct {
	augmenter *augment.Augmenter
	logger    logger.Logger
}

func (p *imageProcessor) ProcessImageWithContext(ctx context.Context, inputData *ImageData, rng augment.RandomSource) (augment.Batch, float64, error) {
	if inputData == nil {
		return augment.Batch{}, 0, fmt.Errorf("no image data to augment")
	}

	select {
	case <-ctx.Done():
		return augment.Batch{}, 0, ctx.Err()
	default:
	}

	start := time.Now()
	batch, angle, err := p.augmenter.AugmentWithAngle(inputData.Image, rng)
	if err != nil {
		return augment.Batch{}, 0, fmt.Errorf("augmentation failed for %s: %w", inputData.Path, err)
	}

	p.logger.Debug("ImageProcessor", "augmentation completed", logger.Fields{
		"source":     inputData.Path,
		"size":       fmt.Sprintf("%dx%d", inputData.Image.Cols, inputData.Image.Rows),
		"variants":   len(batch),
		"angle":      angle,
		"augment_ms": time.Since(start).Milliseconds(),
	})

	return batch, angle, nil
}
