// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package memory provides a human-readable byte-count type, used
// wherever a config value or metrics counter is more useful to an
// operator printed as "2.0 MB" than as a bare integer (quota
// ceilings, §6 limits.*, request/response byte budgets).
package memory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/errs"
)

// Size is a count of bytes that renders and parses using binary
// (1024-based) unit suffixes, the way operators write config values.
type Size int64

// Byte-count units.
const (
	B  Size = 1
	KB      = 1024 * B
	MB      = 1024 * KB
	GB      = 1024 * MB
	TB      = 1024 * GB
)

// String renders s using the largest unit that divides evenly enough
// to show one decimal digit, or a bare byte count below 1KB.
func (s Size) String() string {
	switch {
	case s == 0:
		return "0"
	case s < KB:
		return fmt.Sprintf("%d B", int64(s))
	case s < MB:
		return formatUnit(s, KB, "KB")
	case s < GB:
		return formatUnit(s, MB, "MB")
	case s < TB:
		return formatUnit(s, GB, "GB")
	default:
		return formatUnit(s, TB, "TB")
	}
}

func formatUnit(s, unit Size, suffix string) string {
	return fmt.Sprintf("%.1f %s", float64(s)/float64(unit), suffix)
}

// Type reports the pflag.Value type name.
func (Size) Type() string { return "memory.Size" }

// Set parses str (e.g. "2MB", "2.5 GB", "512") into s, accepting an
// optional case-insensitive B/KB/MB/GB/TB suffix with or without a
// separating space; a bare number is interpreted as bytes.
func (s *Size) Set(str string) error {
	str = strings.TrimSpace(str)
	if str == "" {
		return errs.New("memory: empty size")
	}

	i := 0
	for i < len(str) {
		c := str[i]
		if c == '.' || c == '-' || c == '+' || (c >= '0' && c <= '9') {
			i++
			continue
		}
		break
	}
	numPart, suffixPart := str[:i], strings.ToUpper(strings.TrimSpace(str[i:]))
	if numPart == "" {
		return errs.New("memory: invalid size %q", str)
	}

	val, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return errs.Wrap(err)
	}

	var unit float64
	switch suffixPart {
	case "", "B":
		unit = 1
	case "K", "KB":
		unit = float64(KB)
	case "M", "MB":
		unit = float64(MB)
	case "G", "GB":
		unit = float64(GB)
	case "T", "TB":
		unit = float64(TB)
	default:
		return errs.New("memory: unknown unit %q in %q", suffixPart, str)
	}

	*s = Size(val * unit)
	return nil
}
