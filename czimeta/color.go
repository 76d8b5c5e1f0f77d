package czimeta

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidColor is returned for color strings that are not #AARRGGBB.
var ErrInvalidColor = errors.New("czimeta: invalid color")

// RGB is an 8-bit color without alpha.
type RGB struct {
	R, G, B uint8
}

// Hex returns the color as #RRGGBB.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// DecodeColor decodes the RGB part of an ARGB color string "#AARRGGBB".
// The alpha byte is skipped. The leading '#' is optional.
func DecodeColor(s string) (RGB, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 8 {
		return RGB{}, fmt.Errorf("%w: %q: want 8 hex digits", ErrInvalidColor, s)
	}
	var out [3]uint8
	for i := range out {
		pos := 2 + 2*i
		v, err := strconv.ParseUint(hex[pos:pos+2], 16, 8)
		if err != nil {
			return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		out[i] = uint8(v)
	}
	// Alpha is not used, but must still be hex.
	if _, err := strconv.ParseUint(hex[:2], 16, 8); err != nil {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return RGB{R: out[0], G: out[1], B: out[2]}, nil
}
