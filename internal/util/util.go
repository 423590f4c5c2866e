// Package util provides small helpers shared by the event handlers.
package util

import (
	"fmt"
	"strconv"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg trims whitespace and wrapping quotes from a frontend argument.
func CleanArg(s string) string {
	return FixEscapeQuotes(TrimQuotes(strings.TrimSpace(s)))
}

// CleanArgs returns a cleaned copy of args.
func CleanArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = CleanArg(a)
	}
	return out
}

// Arg returns args[i], or an error naming the missing argument.
func Arg(args []string, i int, name string) (string, error) {
	if i >= len(args) || args[i] == "" {
		return "", fmt.Errorf("missing argument %d (%s)", i, name)
	}
	return args[i], nil
}

// ParseUint parses an optional unsigned argument. Empty input yields 0.
func ParseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}
