package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// Icon is a 32x32 PNG camera glyph.
var Icon = drawIcon(32)

func drawIcon(n int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, n, n))
	body := color.NRGBA{0x33, 0x33, 0x33, 0xff}
	lens := color.NRGBA{0x00, 0x78, 0xd4, 0xff}
	c := n / 2
	r := n / 5
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			dx, dy := x-c, y-c-n/16
			switch {
			case dx*dx+dy*dy <= r*r:
				img.Set(x, y, lens)
			case y >= n/4 && y < n-n/8 && x >= n/16 && x < n-n/16:
				img.Set(x, y, body)
			case y >= n/8 && y < n/4 && x >= n/3 && x < 2*n/3:
				img.Set(x, y, body)
			}
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
