package augment

import (
	"math"

	"face-augmentor/internal/raster"
)

// FlipHorizontal mirrors the columns of a grayscale image.
func FlipHorizontal(img *raster.Image) (*raster.Image, error) {
	if err := img.ValidateGray("FlipHorizontal"); err != nil {
		return nil, err
	}

	out := raster.NewGray(img.Rows, img.Cols)
	for y := 0; y < img.Rows; y++ {
		src, dst := img.Row(y), out.Row(y)
		last := img.Cols - 1
		for x := range src {
			dst[last-x] = src[x]
		}
	}
	return out, nil
}

// AdjustLinear maps every sample v to clamp(v*gain+bias, 0, 255), rounded
// to the nearest integer. The arithmetic happens in float64 so nothing
// wraps around before the clamp.
func AdjustLinear(img *raster.Image, gain, bias float64) (*raster.Image, error) {
	if err := img.ValidateGray("AdjustLinear"); err != nil {
		return nil, err
	}

	var lut [256]uint8
	for v := range lut {
		lut[v] = clampRound(float64(v)*gain + bias)
	}

	out := raster.NewGray(img.Rows, img.Cols)
	for i, v := range img.Pix {
		out.Pix[i] = lut[v]
	}
	return out, nil
}

func clampRound(f float64) uint8 {
	switch {
	case math.IsNaN(f), f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	return uint8(math.Round(f))
}

// Affine is a 2x3 matrix applied to column vectors (x, y, 1).
type Affine [2][3]float64

func (m Affine) Apply(x, y float64) (float64, float64) {
	return m[0][0]*x + m[0][1]*y + m[0][2],
		m[1][0]*x + m[1][1]*y + m[1][2]
}

// RotationMatrix builds the rotation by degrees around the center of a
// rows x cols image.
func RotationMatrix(rows, cols int, degrees float64) Affine {
	theta := degrees * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	r, c := float64(rows), float64(cols)
	return Affine{
		{cos, -sin, (c - c*cos + r*sin) / 2},
		{sin, cos, (r - c*sin - r*cos) / 2},
	}
}

// RotateByAngle rotates a grayscale image by degrees with nearest-neighbor
// forward mapping: each source pixel is pushed to the destination cell its
// truncated coordinates land in. Destination cells nothing lands in stay
// black, and several sources may land in the same cell (the last write in
// row-major order wins).
func RotateByAngle(img *raster.Image, degrees float64) (*raster.Image, error) {
	if err := img.ValidateGray("RotateByAngle"); err != nil {
		return nil, err
	}

	m := RotationMatrix(img.Rows, img.Cols, degrees)
	out := raster.NewGray(img.Rows, img.Cols)
	for i := 0; i < img.Rows; i++ {
		for j := 0; j < img.Cols; j++ {
			fx, fy := m.Apply(float64(j), float64(i))
			// int() truncates toward zero, so -0.5 lands on 0.
			x, y := int(fx), int(fy)
			if x >= 0 && x < img.Cols && y >= 0 && y < img.Rows {
				out.Pix[y*img.Cols+x] = img.Pix[i*img.Cols+j]
			}
		}
	}
	return out, nil
}

// DrawAngle returns a rotation angle uniformly distributed in
// [-maxDegrees, maxDegrees).
func DrawAngle(rng RandomSource, maxDegrees float64) float64 {
	return -maxDegrees + 2*maxDegrees*rng.Float64()
}

// Rotate draws an angle from rng and rotates by it.
func Rotate(img *raster.Image, maxDegrees float64, rng RandomSource) (*raster.Image, float64, error) {
	if rng == nil {
		return nil, 0, ErrNilRandomSource
	}
	angle := DrawAngle(rng, maxDegrees)
	out, err := RotateByAngle(img, angle)
	if err != nil {
		return nil, 0, err
	}
	return out, angle, nil
}

// NoiseCount is ceil(fraction * samples), the number of coordinates drawn
// for one kind of noise.
func NoiseCount(fraction float64, samples int) int {
	return int(math.Ceil(fraction * float64(samples)))
}

// SaltAndPepper copies img and forces randomly chosen samples to 255 (salt)
// and then to 0 (pepper). Coordinates are drawn per axis, uniformly and with
// replacement: every row index of a kind first, then every column index.
func SaltAndPepper(img *raster.Image, saltFraction, pepperFraction float64, rng RandomSource) (*raster.Image, error) {
	if err := img.ValidateGray("SaltAndPepper"); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, ErrNilRandomSource
	}

	out := img.Clone()
	scatter(out, NoiseCount(saltFraction, img.Size()), 255, rng)
	scatter(out, NoiseCount(pepperFraction, img.Size()), 0, rng)
	return out, nil
}

func scatter(img *raster.Image, n int, v uint8, rng RandomSource) {
	if n <= 0 {
		return
	}
	rows := make([]int, n)
	for k := range rows {
		rows[k] = rng.IntN(img.Rows)
	}
	cols := make([]int, n)
	for k := range cols {
		cols[k] = rng.IntN(img.Cols)
	}
	for k := 0; k < n; k++ {
		img.Pix[rows[k]*img.Cols+cols[k]] = v
	}
}
