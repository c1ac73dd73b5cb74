package argparser

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCount parses a non-negative object count with an optional
// decimal unit suffix, e.g. "500", "10k" or "2m".
func ParseCount(s string) (int, error) {
	s = strings.ToLower(s)
	if s == "" {
		return 0, fmt.Errorf("empty count")
	}

	multiplier := 1
	switch s[len(s)-1] {
	case 'k':
		multiplier = 1000
		s = s[:len(s)-1]
	case 'm':
		multiplier = 1000 * 1000
		s = s[:len(s)-1]
	case 'g':
		multiplier = 1000 * 1000 * 1000
		s = s[:len(s)-1]
	}

	count, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("illegal count format: %w", err)
	}
	if count < 0 {
		return 0, fmt.Errorf("count must not be negative: %d", count)
	}
	return count * multiplier, nil
}
