package monitor

import (
	"fmt"
	"strconv"
	"strings"
)

// stepTowardGray moves every channel of a "#rrggbb" color at or below threshold by step
// of its remaining distance to threshold, plus one so the channel always ends up past
// it. Channels above threshold are left alone. ok is false if color can't be parsed.
func stepTowardGray(color string, threshold int, step float64) (next string, ok bool) {
	hex, found := strings.CutPrefix(color, "#")
	if !found || len(hex) != 6 {
		return "", false
	}

	var channels [3]int
	for i := range channels {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return "", false
		}
		c := int(v)
		if c <= threshold {
			c = int(float64(c) + float64(threshold-c)*step + 1)
		}
		channels[i] = min(c, 255)
	}

	return fmt.Sprintf("#%02x%02x%02x", channels[0], channels[1], channels[2]), true
}

func grayRGB(level int) string {
	return fmt.Sprintf("rgb(%d,%d,%d)", level, level, level)
}
