package main

import (
	"image/color"

	"github.com/pthm-cable/detonate/grid"
)

// sliceZ copies the z-plane of a volume into an image-ordered slice, top row
// first, scaled so the largest magnitude maps to 1.
func sliceZ(data []float32, size grid.Size, z int) []float32 {
	out := make([]float32, size.X*size.Y)
	var peak float32
	for y := 0; y < size.Y; y++ {
		row := size.Y - 1 - y
		for x := 0; x < size.X; x++ {
			v := data[size.Index(x, y, z)]
			if v < 0 {
				v = -v
			}
			out[row*size.X+x] = v
			peak = max(peak, v)
		}
	}
	if peak > 0 {
		for i := range out {
			out[i] /= peak
		}
	}
	return out
}

// colorize maps [0,1] values through a dark blue -> cyan -> yellow -> white
// ramp.
func colorize(values []float32) []color.RGBA {
	pixels := make([]color.RGBA, len(values))
	for i, v := range values {
		v = min(max(v, 0), 1)
		var r, g, b uint8
		switch {
		case v < 0.25:
			t := v / 0.25
			r = uint8(10 + t*30)
			g = uint8(20 + t*60)
			b = uint8(60 + t*100)
		case v < 0.5:
			t := (v - 0.25) / 0.25
			r = uint8(40 + t*20)
			g = uint8(80 + t*120)
			b = uint8(160 + t*40)
		case v < 0.75:
			t := (v - 0.5) / 0.25
			r = uint8(60 + t*140)
			g = uint8(200 - t*40)
			b = uint8(200 - t*150)
		default:
			t := (v - 0.75) / 0.25
			r = uint8(200 + t*55)
			g = uint8(160 + t*95)
			b = uint8(50 + t*205)
		}
		pixels[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return pixels
}
