// Package units provides binary size unit multipliers (1024-based) and
// human-readable size parsing and formatting.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Binary size multipliers.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// ErrInvalidSize is returned when a size string cannot be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ParseSize parses a human-readable size such as "512MiB" or "1GB".
// Empty input and "0" parse to zero.
func ParseSize(value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == "0" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, value)
	}

	return size, nil
}

// FormatSize renders a byte count with binary units, e.g. "1.0 GiB".
func FormatSize(bytes uint64) string {
	return humanize.IBytes(bytes)
}
