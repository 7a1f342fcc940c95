package operations

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ParseColor accepts "#RRGGBB", "#RGB" or "R,G,B" and returns an opaque color
// with the given alpha.
func ParseColor(colorStr string, alpha uint8) (color.NRGBA, error) {
	colorStr = strings.ReplaceAll(strings.TrimSpace(colorStr), " ", "")
	if colorStr == "" {
		return color.NRGBA{}, fmt.Errorf("%w: empty", ErrInvalidColor)
	}

	if strings.Contains(colorStr, ",") {
		return parseRGBTriple(colorStr, alpha)
	}

	hex := strings.TrimPrefix(colorStr, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, colorStr)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, colorStr)
	}

	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: alpha}, nil
}

func parseRGBTriple(colorStr string, alpha uint8) (color.NRGBA, error) {
	parts := strings.Split(colorStr, ",")
	if len(parts) != 3 {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, colorStr)
	}

	var rgb [3]uint8
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, colorStr)
		}
		rgb[i] = uint8(clamp(v, 0, 255))
	}

	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: alpha}, nil
}

func clamp(value, lo, hi int) int {
	return max(lo, min(hi, value))
}
