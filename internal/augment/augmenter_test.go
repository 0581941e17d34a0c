package augment

import (
	"math"
	"math/rand/v2"
	"testing"

	"face-augmentor/internal/raster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource replays fixed draws, wrapping around when exhausted.
type scriptedSource struct {
	floats []float64
	ints   []int
	fi, ii int
}

func (s *scriptedSource) Float64() float64 {
	f := s.floats[s.fi%len(s.floats)]
	s.fi++
	return f
}

func (s *scriptedSource) IntN(n int) int {
	v := s.ints[s.ii%len(s.ints)] % n
	s.ii++
	return v
}

// fixedAngleSource returns a constant Float64 and delegates IntN to a PCG stream.
type fixedAngleSource struct {
	*rand.Rand
	f float64
}

func (s fixedAngleSource) Float64() float64 { return s.f }

func randomGray(rows, cols int, seed uint64) *raster.Image {
	rng := NewSource(seed, 0)
	img := raster.NewGray(rows, cols)
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.IntN(256))
	}
	return img
}

func TestAugmentReturnsFiveVariantsOfSameShape(t *testing.T) {
	aug := NewDefault()
	for _, size := range [][2]int{{1, 1}, {10, 10}, {7, 13}, {64, 48}} {
		img := randomGray(size[0], size[1], 1)
		batch, err := aug.Augment(img, NewSource(1, 2))
		require.NoError(t, err)
		require.Len(t, batch, NumVariants)
		for _, v := range Variants() {
			out := batch.Get(v)
			require.NotNil(t, out, "variant %s", v)
			assert.True(t, out.SameShape(img), "variant %s has shape %dx%dx%d", v, out.Rows, out.Cols, out.Channels)
		}
	}
}

func TestAugmentDoesNotMutateInput(t *testing.T) {
	img := randomGray(20, 30, 3)
	orig := img.Clone()
	_, err := NewDefault().Augment(img, NewSource(3, 3))
	require.NoError(t, err)
	assert.True(t, img.Equal(orig))
}

func TestAugmentInvalidInput(t *testing.T) {
	aug := NewDefault()
	rng := NewSource(0, 0)

	for name, img := range map[string]*raster.Image{
		"nil":     nil,
		"no rows": raster.NewGray(0, 5),
		"no cols": raster.NewGray(5, 0),
		"color":   raster.New(4, 4, raster.BGR),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := aug.Augment(img, rng)
			require.Error(t, err)
			assert.ErrorIs(t, err, raster.ErrInvalidInput)
		})
	}

	_, err := aug.Augment(raster.NewGray(2, 2), nil)
	assert.ErrorIs(t, err, ErrNilRandomSource)
}

func TestFlipIsInvolution(t *testing.T) {
	img := randomGray(9, 17, 5)
	once, err := FlipHorizontal(img)
	require.NoError(t, err)
	assert.Equal(t, img.At(3, 0), once.At(3, 16))
	twice, err := FlipHorizontal(once)
	require.NoError(t, err)
	assert.True(t, img.Equal(twice))
}

func TestAdjustLinearFormulas(t *testing.T) {
	img := raster.NewGray(1, 256)
	for v := 0; v < 256; v++ {
		img.Pix[v] = uint8(v)
	}

	bright, err := AdjustLinear(img, 1.2, 30)
	require.NoError(t, err)
	contrast, err := AdjustLinear(img, 1.5, 0)
	require.NoError(t, err)

	for v := 0; v < 256; v++ {
		wantBright := math.Min(255, math.Round(float64(v)*1.2+30))
		wantContrast := math.Min(255, math.Round(float64(v)*1.5))
		assert.Equal(t, uint8(wantBright), bright.Pix[v], "brightness(%d)", v)
		assert.Equal(t, uint8(wantContrast), contrast.Pix[v], "contrast(%d)", v)
	}

	assert.Equal(t, uint8(184), bright.Pix[128])
	assert.Equal(t, uint8(255), bright.Pix[200])
	assert.Equal(t, uint8(192), contrast.Pix[128])
	assert.Equal(t, uint8(255), contrast.Pix[170])
}

func TestAdjustLinearClampsAtZero(t *testing.T) {
	img := raster.NewGrayFilled(2, 2, 10)
	out, err := AdjustLinear(img, 1, -50)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Count(0))
}

func TestRotationMatrixKeepsCenter(t *testing.T) {
	for _, angle := range []float64{-10, -3.3, 0, 7, 10, 90} {
		m := RotationMatrix(40, 60, angle)
		x, y := m.Apply(30, 20)
		assert.InDelta(t, 30, x, 1e-9, "angle %v", angle)
		assert.InDelta(t, 20, y, 1e-9, "angle %v", angle)
	}
}

func TestRotateZeroIsIdentity(t *testing.T) {
	img := randomGray(31, 23, 7)
	out, err := RotateByAngle(img, 0)
	require.NoError(t, err)
	assert.True(t, img.Equal(out))
}

func TestRotateNonzeroLeavesBlackCorners(t *testing.T) {
	img := raster.NewGrayFilled(50, 50, 255)
	for _, angle := range []float64{-10, 10} {
		out, err := RotateByAngle(img, angle)
		require.NoError(t, err)
		assert.True(t, out.SameShape(img))
		assert.Equal(t, uint8(0), out.At(0, 0))
		assert.Equal(t, uint8(0), out.At(49, 49))
		assert.Equal(t, out.Size(), out.Count(0)+out.Count(255))
		assert.Greater(t, out.Count(255), out.Size()/2)
	}
}

func TestRotateForwardMapsSinglePixel(t *testing.T) {
	// Everything from (10, 15) onward in row-major order is 200, so no later
	// write can clear the cell (10, 15) is pushed to.
	img := raster.NewGray(21, 21)
	for i := 10*21 + 15; i < img.Size(); i++ {
		img.Pix[i] = 200
	}

	out, err := RotateByAngle(img, 7)
	require.NoError(t, err)

	m := RotationMatrix(21, 21, 7)
	fx, fy := m.Apply(15, 10)
	assert.Equal(t, uint8(200), out.At(int(fy), int(fx)))
	assert.Equal(t, uint8(0), out.At(0, 0))
}

func TestRotateDrawsAngleFromSource(t *testing.T) {
	img := randomGray(12, 12, 9)

	out, angle, err := Rotate(img, 10, &scriptedSource{floats: []float64{0.5}, ints: []int{0}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, angle)
	assert.True(t, img.Equal(out))

	_, angle, err = Rotate(img, 10, &scriptedSource{floats: []float64{0}, ints: []int{0}})
	require.NoError(t, err)
	assert.Equal(t, -10.0, angle)
}

func TestDrawAngleRange(t *testing.T) {
	rng := NewSource(11, 0)
	for i := 0; i < 1000; i++ {
		a := DrawAngle(rng, 10)
		require.GreaterOrEqual(t, a, -10.0)
		require.Less(t, a, 10.0)
	}
}

func TestNoiseCount(t *testing.T) {
	assert.Equal(t, 200, NoiseCount(0.02, 10000))
	assert.Equal(t, 2, NoiseCount(0.02, 100))
	assert.Equal(t, 1, NoiseCount(0.02, 1))
	assert.Equal(t, 0, NoiseCount(0, 100))
}

func TestSaltAndPepperOnBlackImage(t *testing.T) {
	img := raster.NewGray(100, 100)
	out, err := SaltAndPepper(img, 0.02, 0.02, NewSource(5, 1))
	require.NoError(t, err)

	salt := out.Count(255)
	assert.LessOrEqual(t, salt, 200)
	assert.Greater(t, salt, 0)
	assert.Equal(t, out.Size(), salt+out.Count(0))
	assert.Equal(t, 0, img.Count(255))
}

func TestSaltAndPepperDrawOrderAndCollisions(t *testing.T) {
	img := raster.NewGrayFilled(2, 2, 128)
	// salt rows, salt cols, pepper rows, pepper cols
	rng := &scriptedSource{floats: []float64{0}, ints: []int{0, 1, 0, 1, 0, 1, 0, 0}}

	out, err := SaltAndPepper(img, 0.5, 0.5, rng)
	require.NoError(t, err)

	assert.Equal(t, uint8(0), out.At(0, 0), "pepper overrides salt")
	assert.Equal(t, uint8(128), out.At(0, 1))
	assert.Equal(t, uint8(0), out.At(1, 0))
	assert.Equal(t, uint8(255), out.At(1, 1))
}

func TestMidGrayScenario(t *testing.T) {
	img := raster.NewGrayFilled(10, 10, 128)
	rng := fixedAngleSource{Rand: NewSource(21, 4), f: 0.5}

	batch, angle, err := NewDefault().AugmentWithAngle(img, rng)
	require.NoError(t, err)
	assert.Equal(t, 0.0, angle)

	assert.True(t, img.Equal(batch[VariantFlip]))
	assert.Equal(t, 100, batch[VariantBrightness].Count(184))
	assert.Equal(t, 100, batch[VariantContrast].Count(192))
	assert.True(t, img.Equal(batch[VariantRotation]))

	noisy := batch[VariantNoise]
	salt, pepper, gray := noisy.Count(255), noisy.Count(0), noisy.Count(128)
	assert.LessOrEqual(t, salt, 2)
	assert.LessOrEqual(t, pepper, 2)
	assert.GreaterOrEqual(t, pepper, 1)
	assert.Equal(t, 100, salt+pepper+gray)
}

func TestAugmentReproducibleForSameStream(t *testing.T) {
	img := randomGray(64, 64, 13)
	aug := NewDefault()

	a, angleA, err := aug.AugmentWithAngle(img, NewSource(42, 7))
	require.NoError(t, err)
	b, angleB, err := aug.AugmentWithAngle(img, NewSource(42, 7))
	require.NoError(t, err)
	assert.Equal(t, angleA, angleB)
	for _, v := range Variants() {
		assert.True(t, a[v].Equal(b[v]), "variant %s", v)
	}

	c, _, err := aug.AugmentWithAngle(img, NewSource(42, 8))
	require.NoError(t, err)
	assert.False(t, a[VariantNoise].Equal(c[VariantNoise]))
}

func TestParametersValidate(t *testing.T) {
	require.NoError(t, DefaultParameters().Validate())

	bad := []func(p *Parameters){
		func(p *Parameters) { p.BrightnessGain = -1 },
		func(p *Parameters) { p.ContrastGain = -0.1 },
		func(p *Parameters) { p.BrightnessBias = 300 },
		func(p *Parameters) { p.MaxRotationDegrees = 181 },
		func(p *Parameters) { p.SaltFraction = 1.5 },
		func(p *Parameters) { p.PepperFraction = -0.5 },
	}
	for i, mutate := range bad {
		p := DefaultParameters()
		mutate(&p)
		err := p.Validate()
		require.Error(t, err, "case %d", i)
		var pe *ParameterError
		assert.ErrorAs(t, err, &pe)

		_, err = New(p)
		assert.Error(t, err)
	}
}

func TestParametersRejectNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		p := DefaultParameters()
		p.SaltFraction = v
		var pe *ParameterError
		require.ErrorAs(t, p.Validate(), &pe, "salt_fraction %v", v)
		assert.Equal(t, "salt_fraction", pe.Field)

		p = DefaultParameters()
		p.BrightnessGain = v
		require.ErrorAs(t, p.Validate(), &pe, "brightness_gain %v", v)
		assert.Equal(t, "brightness_gain", pe.Field)
	}
}

func TestVariantString(t *testing.T) {
	names := make([]string, 0, NumVariants)
	for _, v := range Variants() {
		names = append(names, v.String())
	}
	assert.Equal(t, []string{"flip", "brightness", "contrast", "rotation", "noise"}, names)
	assert.Equal(t, "variant(9)", Variant(9).String())
}
