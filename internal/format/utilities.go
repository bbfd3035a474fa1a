// Package format provides shared formatting utilities for human-readable output.
package format

import (
	"fmt"
	"time"
)

// Duration formats a duration for human-readable output.
// Handles microseconds, milliseconds, seconds, and minutes.
func Duration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.0fµs", float64(d.Microseconds()))
	}
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d.Milliseconds()))
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	return fmt.Sprintf("%.1fm", d.Minutes())
}

// Percent formats a rate out of 100 with one decimal place.
func Percent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate)
}

// Millis formats a float millisecond value.
func Millis(ms float64) string {
	if ms < 1 {
		return fmt.Sprintf("%.2fms", ms)
	}

	return fmt.Sprintf("%.0fms", ms)
}

// Count formats an integer with a singular or plural noun.
func Count(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}

	return fmt.Sprintf("%d %s", n, plural)
}
