// Package bounce holds the bouncing-ball animation state for the 128x64
// OLED demo.
package bounce

import (
	"picodemo/types"
	"picodemo/x/mathx"
)

// Title position; y is the text baseline.
const (
	TitleX = 30
	TitleY = 10
)

// Bounds is the inclusive range the ball's top-left corner moves in.
type Bounds struct {
	MinX, MaxX int16
	MinY, MaxY int16
}

// DefaultBounds keeps an 8 px ball inside a 128x64 panel.
var DefaultBounds = Bounds{MinX: 0, MaxX: 120, MinY: 0, MaxY: 56}

// Ball is described by its top-left corner, velocity and diameter.
type Ball struct {
	X, Y     int16
	DX, DY   int16
	Diameter int16
	Bounds   Bounds
}

// NewBall returns the ball at (20,20) moving down-right at 2 px per frame.
func NewBall() Ball {
	return Ball{X: 20, Y: 20, DX: 2, DY: 2, Diameter: 8, Bounds: DefaultBounds}
}

// Step moves the ball by its velocity and reverses each axis whose new
// position reached or crossed a bound. Positions are not clamped.
func (b *Ball) Step() {
	b.X += b.DX
	b.Y += b.DY
	if b.X <= b.Bounds.MinX || b.X >= b.Bounds.MaxX {
		b.DX = -b.DX
	}
	if b.Y <= b.Bounds.MinY || b.Y >= b.Bounds.MaxY {
		b.DY = -b.DY
	}
}

// InBounds reports whether the corner lies within the bounds, allowing one
// step of overshoot.
func (b Ball) InBounds() bool {
	ox, oy := mathx.Abs(b.DX), mathx.Abs(b.DY)
	return mathx.Between(b.X, b.Bounds.MinX-ox, b.Bounds.MaxX+ox) &&
		mathx.Between(b.Y, b.Bounds.MinY-oy, b.Bounds.MaxY+oy)
}

// Frame builds the OLED frame for the current ball position.
func (b Ball) Frame(title string) types.OLEDFrame {
	return types.OLEDFrame{
		Text:  title,
		TextX: TitleX,
		TextY: TitleY,
		Circles: []types.Circle{{
			X: b.X, Y: b.Y, Diameter: b.Diameter,
		}},
	}
}
