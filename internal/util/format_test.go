package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1 KB"},
		{1025, "1 KB"},
		{1536, "1.5 KB"},
		{1152, "1.125 KB"},
		{1048575, "1023.999 KB"},
		{1572864, "1.5 MB"},
		{2952790016, "2.75 GB"},
		{1649267441664, "1.5 TB"},
		{1125899906842624, "1 PB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSize(tt.size), "size %d", tt.size)
	}
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "-", FormatRate(0))
	assert.Equal(t, "-", FormatRate(-5))
	assert.Equal(t, "512 B/s", FormatRate(512))
	assert.Equal(t, "1.5 MB/s", FormatRate(1572864))
}

func TestFormatETA(t *testing.T) {
	assert.Equal(t, "∞", FormatETA(math.MaxInt64))
	assert.Equal(t, "∞", FormatETA(-1))
	assert.Equal(t, "-", FormatETA(0))
	assert.Equal(t, "1m30s", FormatETA(90))
	assert.Equal(t, "2h0m0s", FormatETA(7200))
}
