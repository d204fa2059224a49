package panel

import (
	"fmt"
	"math"
)

// Color is an opaque RGB value.
type Color struct {
	R, G, B uint8
}

// Hex returns the color as #RRGGBB.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

var (
	// ColorFresh is the indicator color of a request with its full budget left.
	ColorFresh = Color{R: 0xFF, G: 0xD2, B: 0x4A}
	// ColorDepleted is the indicator color of a request about to expire.
	ColorDepleted = Color{R: 0xB4, G: 0x3C, B: 0x3C}
)

// IndicatorColor blends linearly from ColorFresh at fraction 1 to
// ColorDepleted at fraction 0. Out-of-range fractions are clamped.
func IndicatorColor(fraction float64) Color {
	t := 1 - math.Max(0, math.Min(1, fraction))
	return Color{
		R: lerp(ColorFresh.R, ColorDepleted.R, t),
		G: lerp(ColorFresh.G, ColorDepleted.G, t),
		B: lerp(ColorFresh.B, ColorDepleted.B, t),
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}
