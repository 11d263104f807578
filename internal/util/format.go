package util

import (
	"fmt"
	"math"
	"time"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatSize renders a byte count with binary units and up to three decimals
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	exp, div := 0, int64(1)
	for size/div >= unit && exp < len(sizeUnits)-1 {
		div *= unit
		exp++
	}
	value := size / div
	// three decimals, trailing zeros trimmed
	decimal := size % div * 1000 / div
	switch {
	case decimal == 0:
		return fmt.Sprintf("%d %s", value, sizeUnits[exp])
	case decimal%10 != 0:
		return fmt.Sprintf("%d.%03d %s", value, decimal, sizeUnits[exp])
	case decimal%100 != 0:
		return fmt.Sprintf("%d.%02d %s", value, decimal/10, sizeUnits[exp])
	default:
		return fmt.Sprintf("%d.%d %s", value, decimal/100, sizeUnits[exp])
	}
}

// FormatRate renders bytes per second
func FormatRate(bps int64) string {
	if bps <= 0 {
		return "-"
	}
	return FormatSize(bps) + "/s"
}

// FormatETA renders the remaining seconds. Negative values and math.MaxInt64 mean unknown.
func FormatETA(seconds int64) string {
	if seconds < 0 || seconds == math.MaxInt64 {
		return "∞"
	}
	if seconds == 0 {
		return "-"
	}
	return (time.Duration(seconds) * time.Second).String()
}
