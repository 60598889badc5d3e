// Package durations parses and formats human-friendly duration strings
// like "90s", "1h30m", or "1w2d".
package durations

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var tokenRe = regexp.MustCompile(`(?i)(\d+)\s*([smhdw])`)

var unitSeconds = map[string]int{
	"s": 1,
	"m": 60,
	"h": 3600,
	"d": 86400,
	"w": 7 * 86400,
}

// Parse converts a duration string into total seconds.
// Accepts compact forms ("90s", "2h", "1w") and combinations ("1h30m",
// "2h5m10s"), with optional spaces or commas between tokens. Units are
// case-insensitive. The whole input must be consumed by recognized tokens;
// a dangling suffix like "1h30" is an error, as is a total of zero.
func Parse(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	compact := strings.NewReplacer(" ", "", ",", "").Replace(s)

	matches := tokenRe.FindAllStringSubmatch(compact, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid duration: %q", raw)
	}

	// Reject partial matches: the reconstructed token stream must equal
	// the normalized input.
	var consumed strings.Builder
	for _, m := range matches {
		consumed.WriteString(m[0])
	}
	if !strings.EqualFold(consumed.String(), compact) {
		return 0, fmt.Errorf("invalid duration: %q", raw)
	}

	total := 0
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %q", raw)
		}
		total += n * unitSeconds[strings.ToLower(m[2])]
	}

	if total <= 0 {
		return 0, fmt.Errorf("duration must be > 0")
	}
	return total, nil
}

// Format renders seconds as a compact duration string ("1h30m", "45s").
func Format(seconds int) string {
	if seconds <= 0 {
		return "0s"
	}

	units := []struct {
		label string
		secs  int
	}{
		{"w", 7 * 86400},
		{"d", 86400},
		{"h", 3600},
		{"m", 60},
		{"s", 1},
	}

	var b strings.Builder
	rem := seconds
	for _, u := range units {
		if rem >= u.secs {
			fmt.Fprintf(&b, "%d%s", rem/u.secs, u.label)
			rem %= u.secs
		}
	}
	return b.String()
}
