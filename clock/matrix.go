package clock

// Modules is the number of chained 8x8 modules the clock is laid out for.
const Modules = 4

const (
	glyphWidth = 3
	glyphGap   = 1
	glyphColon = 10
)

// font holds 3x8 glyphs for '0'..'9' and ':'. Each row uses the low three
// bits; bit 2 is the left-most column.
var font = [11][8]byte{
	{0b111, 0b101, 0b101, 0b101, 0b101, 0b101, 0b111, 0}, // 0
	{0b010, 0b110, 0b010, 0b010, 0b010, 0b010, 0b111, 0}, // 1
	{0b111, 0b001, 0b001, 0b111, 0b100, 0b100, 0b111, 0}, // 2
	{0b111, 0b001, 0b001, 0b111, 0b001, 0b001, 0b111, 0}, // 3
	{0b101, 0b101, 0b101, 0b111, 0b001, 0b001, 0b001, 0}, // 4
	{0b111, 0b100, 0b100, 0b111, 0b001, 0b001, 0b111, 0}, // 5
	{0b111, 0b100, 0b100, 0b111, 0b101, 0b101, 0b111, 0}, // 6
	{0b111, 0b001, 0b001, 0b010, 0b010, 0b010, 0b010, 0}, // 7
	{0b111, 0b101, 0b101, 0b111, 0b101, 0b101, 0b111, 0}, // 8
	{0b111, 0b101, 0b101, 0b111, 0b001, 0b001, 0b111, 0}, // 9
	{0b000, 0b000, 0b010, 0b000, 0b000, 0b010, 0b000, 0}, // :
}

// Glyph returns the 3x8 bitmap for a digit 0..9 or the colon (10).
// Out-of-range indices yield a blank glyph.
func Glyph(i int) [8]byte {
	if i < 0 || i >= len(font) {
		return [8]byte{}
	}
	return font[i]
}

// Digits returns the glyph indices shown for s: h h : m m : s s.
func (s State) Digits() [8]int {
	return [8]int{
		int(s.Hours / 10), int(s.Hours % 10), glyphColon,
		int(s.Mins / 10), int(s.Mins % 10), glyphColon,
		int(s.Secs / 10), int(s.Secs % 10),
	}
}

// PrepareBuffer renders s into one 8x8 bitmap per module. Glyphs are
// placed left to right from column 0 of a 32-column strip with one blank
// column between them; module i receives columns 8i..8i+7, bit 7 being
// the left-most column.
func PrepareBuffer(s State) [Modules][8]byte {
	var out [Modules][8]byte
	digits := s.Digits()
	for r := 0; r < 8; r++ {
		var row uint32
		cursor := 0
		for _, g := range digits {
			bits := Glyph(g)[r]
			for c := 0; c < glyphWidth; c++ {
				if bits&(1<<(glyphWidth-1-c)) != 0 {
					row |= 1 << (31 - (cursor + c))
				}
			}
			cursor += glyphWidth + glyphGap
		}
		for i := 0; i < Modules; i++ {
			out[i][r] = byte(row >> (24 - 8*i))
		}
	}
	return out
}
