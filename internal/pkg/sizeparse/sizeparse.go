// Package sizeparse converts between human-readable size strings
// ("80M", "1.5GB") and byte counts.
package sizeparse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var units = []string{"B", "KB", "MB", "GB", "TB", "PB"}

var sizeRe = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*([KMGTP]?)B?$`)

var multipliers = map[string]float64{
	"":  1,
	"K": 1 << 10,
	"M": 1 << 20,
	"G": 1 << 30,
	"T": 1 << 40,
	"P": 1 << 50,
}

// Parse converts a size string like "80M", "2GB" or "1024" to bytes.
// Suffixes are case-insensitive; a bare number is taken as bytes.
func Parse(s string) (int64, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	if normalized == "" {
		return 0, fmt.Errorf("parse size: empty string")
	}

	match := sizeRe.FindStringSubmatch(normalized)
	if match == nil {
		return 0, fmt.Errorf("parse size: invalid format %q", s)
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}

	return int64(value * multipliers[match[2]]), nil
}

// Format renders a byte count using the largest unit where the quotient
// is at least 1, rounded to two decimals with trailing zeros trimmed.
// Format(0) yields "0 B".
func Format(bytes int64) string {
	value := float64(bytes)
	idx := 0
	for value >= 1024 && idx < len(units)-1 {
		value /= 1024
		idx++
	}

	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + units[idx]
}
