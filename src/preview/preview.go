// Package preview keeps the live camera preview aligned with the display
// rotation.
package preview

import (
	"image"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Rotation is the display rotation reported by the host, in degrees.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// Valid reports whether r is one of the four supported rotations.
func (r Rotation) Valid() bool {
	switch r {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		return true
	}
	return false
}

// Identity is the transform of an unrotated preview.
var Identity = f64.Aff3{1, 0, 0, 0, 1, 0}

// exact sin/cos for the negated rotation angles, avoiding float residue.
var trig = map[Rotation][2]float64{
	Rotation0:   {0, 1},
	Rotation90:  {-1, 0},
	Rotation180: {0, -1},
	Rotation270: {1, 0},
}

// Transform returns the matrix rotating the view by -r degrees about its
// centre. ok is false for unsupported rotations.
func Transform(size image.Point, r Rotation) (m f64.Aff3, ok bool) {
	sc, ok := trig[r]
	if !ok {
		return f64.Aff3{}, false
	}
	sin, cos := sc[0], sc[1]
	cx, cy := float64(size.X)/2, float64(size.Y)/2
	return f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}, true
}

// Map applies m to the point (x, y).
func Map(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// mul returns a*b (apply b first).
func mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3], a[0]*b[1] + a[1]*b[4], a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3], a[3]*b[1] + a[4]*b[4], a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

// Render scales frame to fill a view of the given size and applies m.
func Render(frame image.Image, size image.Point, m f64.Aff3) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	sb := frame.Bounds()
	if sb.Empty() || size.X <= 0 || size.Y <= 0 {
		return dst
	}
	scale := f64.Aff3{
		float64(size.X) / float64(sb.Dx()), 0, -float64(sb.Min.X) * float64(size.X) / float64(sb.Dx()),
		0, float64(size.Y) / float64(sb.Dy()), -float64(sb.Min.Y) * float64(size.Y) / float64(sb.Dy()),
	}
	xdraw.ApproxBiLinear.Transform(dst, mul(m, scale), frame, sb, xdraw.Src, nil)
	return dst
}
