package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// PadRight pads or truncates a string to a fixed width.
func PadRight(str string, width int) string {
	w := runewidth.StringWidth(str)
	if w > width {
		return runewidth.Truncate(str, width, "...")
	}
	return str + strings.Repeat(" ", width-w)
}

// Truncate shortens str to width cells without padding
func Truncate(str string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(str, width, "...")
}
