package testctl

import (
	"time"

	"github.com/dustin/go-humanize"
)

// RemainingSeconds is whole seconds from now until endAt, negative once it has passed.
func RemainingSeconds(endAt, now time.Time) int64 {
	return int64(endAt.Sub(now) / time.Second)
}

// IntComma groups digits in threes, 1234567 -> "1,234,567".
func IntComma(n int64) string {
	return humanize.Comma(n)
}
