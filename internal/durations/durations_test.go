package durations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"90s", 90},
		{"5m", 300},
		{"2h", 7200},
		{"1d", 86400},
		{"1w", 604800},
		{"1h30m", 5400},
		{"2h5m10s", 7510},
		{"1w2d", 777600},
		{"1h 30m", 5400},
		{"1h, 30m", 5400},
		{"1H30M", 5400},
		{"  45s  ", 45},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"abc",
		"-5m",
		"1h30",   // dangling suffix
		"30",     // no unit
		"h",      // no number
		"1x",     // unknown unit
		"1h30mx", // trailing junk
		"0s",     // zero total
		"0m0s",
	}

	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.Error(t, err, "Parse(%q) should fail", in)
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{45, "45s"},
		{300, "5m"},
		{5400, "1h30m"},
		{7510, "2h5m10s"},
		{777600, "1w2d"},
		{0, "0s"},
		{-5, "0s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.in))
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, secs := range []int{1, 59, 60, 3661, 90000, 700000} {
		got, err := Parse(Format(secs))
		require.NoError(t, err)
		assert.Equal(t, secs, got)
	}
}
