// Package render draws OLED frames onto any drivers.Displayer.
package render

import (
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinydraw"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"picodemo/types"
)

var (
	On  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Off = color.RGBA{A: 255}
)

// Font used for frame text.
var Font = &proggy.TinySZ8pt7b

// Clear switches every pixel of d off without flushing.
func Clear(d drivers.Displayer) {
	w, h := d.Size()
	for y := int16(0); y < h; y++ {
		for x := int16(0); x < w; x++ {
			d.SetPixel(x, y, Off)
		}
	}
}

// Frame clears d and draws f. It does not call Display.
func Frame(d drivers.Displayer, f types.OLEDFrame) {
	Clear(d)
	if f.Text != "" {
		tinyfont.WriteLine(d, Font, f.TextX, f.TextY, f.Text, On)
	}
	for _, c := range f.Circles {
		Circle(d, c)
	}
}

// Circle draws c so that it fills its Diameter x Diameter box exactly,
// including even diameters whose centre falls between pixels. Each row is
// one or two horizontal runs.
func Circle(d drivers.Displayer, c types.Circle) {
	n := int32(c.Diameter)
	if n <= 0 {
		return
	}
	outer, inner := threshold(n), int32(-1)
	if !c.Filled && n > 2 {
		inner = threshold(n - 2)
	}
	// Distances are taken in doubled coordinates so the centre (n-1)/2 is
	// an integer.
	lit := func(col, row int32) bool {
		dx, dy := 2*col-(n-1), 2*row-(n-1)
		d2 := dx*dx + dy*dy
		return d2 < outer && d2 >= inner
	}
	for row := int32(0); row < n; row++ {
		y := c.Y + int16(row)
		start := int32(-1)
		for col := int32(0); col <= n; col++ {
			on := col < n && lit(col, row)
			switch {
			case on && start < 0:
				start = col
			case !on && start >= 0:
				tinydraw.Line(d, c.X+int16(start), y, c.X+int16(col-1), y, On)
				start = -1
			}
		}
	}
}

// threshold is the squared doubled radius below which a pixel centre is
// inside a circle of diameter n. Small circles are trimmed so they do not
// come out square.
func threshold(n int32) int32 {
	if n <= 4 {
		return n*n - n/2
	}
	return n * n
}
