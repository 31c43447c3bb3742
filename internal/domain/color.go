package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidColor = errors.New("invalid color")

// DefaultColor matches the red used for snails created without a color.
const DefaultColor = "#FF0000"

// ParseColor normalizes "#RGB" or "#RRGGBB" (any case, optional leading '#')
// into the canonical upper-case "#RRGGBB" form.
func ParseColor(s string) (string, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")

	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return "", fmt.Errorf("%w: %q must be #RGB or #RRGGBB", ErrInvalidColor, s)
	}

	if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
		return "", fmt.Errorf("%w: %q is not hexadecimal", ErrInvalidColor, s)
	}

	return "#" + strings.ToUpper(hex), nil
}
