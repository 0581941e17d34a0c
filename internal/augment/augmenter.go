// Package augment synthesizes training samples from a single grayscale face
// image. Augment always yields the same five variants in the same order;
// only the rotation angle and the noise coordinates are random, and both are
// drawn from a caller-supplied RandomSource.
package augment

import (
	"errors"
	"fmt"

	"face-augmentor/internal/raster"
)

var ErrNilRandomSource = errors.New("augment: random source is nil")

type Variant int

const (
	VariantFlip Variant = iota
	VariantBrightness
	VariantContrast
	VariantRotation
	VariantNoise
)

// NumVariants is the fixed size of a Batch.
const NumVariants = int(VariantNoise) + 1

func (v Variant) String() string {
	switch v {
	case VariantFlip:
		return "flip"
	case VariantBrightness:
		return "brightness"
	case VariantContrast:
		return "contrast"
	case VariantRotation:
		return "rotation"
	case VariantNoise:
		return "noise"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// Variants lists every variant in batch order.
func Variants() []Variant {
	out := make([]Variant, NumVariants)
	for i := range out {
		out[i] = Variant(i)
	}
	return out
}

// Batch holds one image per Variant, indexed by the Variant value.
type Batch [NumVariants]*raster.Image

func (b Batch) Get(v Variant) *raster.Image {
	return b[v]
}

// Augmenter is immutable after construction and safe for concurrent use as
// long as each goroutine passes its own RandomSource.
type Augmenter struct {
	params Parameters
}

func New(params Parameters) (*Augmenter, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Augmenter{params: params}, nil
}

// NewDefault returns an Augmenter with DefaultParameters.
func NewDefault() *Augmenter {
	return &Augmenter{params: DefaultParameters()}
}

func (a *Augmenter) Parameters() Parameters {
	return a.params
}

// Augment derives every variant from img independently. img must be a
// non-empty single-channel image.
func (a *Augmenter) Augment(img *raster.Image, rng RandomSource) (Batch, error) {
	batch, _, err := a.augment(img, rng)
	return batch, err
}

// AugmentWithAngle is Augment that also reports the drawn rotation angle.
func (a *Augmenter) AugmentWithAngle(img *raster.Image, rng RandomSource) (Batch, float64, error) {
	return a.augment(img, rng)
}

func (a *Augmenter) augment(img *raster.Image, rng RandomSource) (Batch, float64, error) {
	var batch Batch

	if err := img.ValidateGray("Augment"); err != nil {
		return batch, 0, err
	}
	if rng == nil {
		return batch, 0, ErrNilRandomSource
	}

	var err error
	if batch[VariantFlip], err = FlipHorizontal(img); err != nil {
		return batch, 0, fmt.Errorf("%s variant: %w", VariantFlip, err)
	}
	if batch[VariantBrightness], err = AdjustLinear(img, a.params.BrightnessGain, a.params.BrightnessBias); err != nil {
		return batch, 0, fmt.Errorf("%s variant: %w", VariantBrightness, err)
	}
	if batch[VariantContrast], err = AdjustLinear(img, a.params.ContrastGain, 0); err != nil {
		return batch, 0, fmt.Errorf("%s variant: %w", VariantContrast, err)
	}

	var angle float64
	if batch[VariantRotation], angle, err = Rotate(img, a.params.MaxRotationDegrees, rng); err != nil {
		return batch, 0, fmt.Errorf("%s variant: %w", VariantRotation, err)
	}
	if batch[VariantNoise], err = SaltAndPepper(img, a.params.SaltFraction, a.params.PepperFraction, rng); err != nil {
		return batch, 0, fmt.Errorf("%s variant: %w", VariantNoise, err)
	}

	return batch, angle, nil
}
