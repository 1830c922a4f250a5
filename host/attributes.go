// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package host

import (
	"strconv"
	"strings"
	"unicode"
)

// Observed attribute names.
const (
	WidthAttribute  = "width"
	HeightAttribute = "height"
)

// FallbackDimension is applied to the presentation when a width or
// height attribute does not resolve to an integer.
const FallbackDimension = 250

// Attributes is the raw attribute set of a host element.
// The zero value is ready to use.
type Attributes struct {
	values map[string]string
}

// Get returns the raw value of name.
func (a *Attributes) Get(name string) (string, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Set stores value verbatim.
func (a *Attributes) Set(name, value string) {
	if a.values == nil {
		a.values = make(map[string]string)
	}
	a.values[name] = value
}

// Int returns the attribute parsed as an integer. Unset or
// non-integer values report false.
func (a *Attributes) Int(name string) (int, bool) {
	v, ok := a.values[name]
	if !ok {
		return 0, false
	}
	return ParseInt(v)
}

// Width returns the declared width, if any.
func (a *Attributes) Width() (int, bool) {
	return a.Int(WidthAttribute)
}

// Height returns the declared height, if any.
func (a *Attributes) Height() (int, bool) {
	return a.Int(HeightAttribute)
}

// ParseInt parses the leading integer of s the way the host document
// does: leading white space is skipped, an optional sign and an optional
// 0x prefix are accepted and parsing stops at the first character that
// is not a digit. "400px" is 400, "abc" and "" are not integers.
// Values that overflow int64 are not integers either.
func ParseInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})

	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	base := 10
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}

	end := 0
	for end < len(s) && digit(s[end]) < base {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.ParseInt(s[:end], base, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		n = -n
	}
	return int(n), true
}

func digit(c byte) int {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0')
	case 'a' <= c && c <= 'z':
		return int(c-'a') + 10
	case 'A' <= c && c <= 'Z':
		return int(c-'A') + 10
	}
	return 36
}
