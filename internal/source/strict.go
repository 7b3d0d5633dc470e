package source

import (
	"fmt"
	"strings"
)

// StrictLevel is the enforcement level of a file, and of an error class.
// An error is reported only when the file's level is at least the error's.
type StrictLevel uint8

const (
	StrictNone StrictLevel = iota
	StrictIgnore
	StrictFalse
	StrictTrue
	StrictStrict
	StrictStrong
	StrictMax
)

var strictNames = map[StrictLevel]string{
	StrictNone:   "none",
	StrictIgnore: "ignore",
	StrictFalse:  "false",
	StrictTrue:   "true",
	StrictStrict: "strict",
	StrictStrong: "strong",
	StrictMax:    "max",
}

func (s StrictLevel) String() string {
	if n, ok := strictNames[s]; ok {
		return n
	}
	return fmt.Sprintf("StrictLevel(%d)", uint8(s))
}

// ParseStrictLevel accepts the lower-case names used in sigils and config files.
func ParseStrictLevel(s string) (StrictLevel, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for lvl, name := range strictNames {
		if name == want && lvl != StrictNone {
			return lvl, nil
		}
	}
	return StrictNone, fmt.Errorf("unknown strictness level %q", s)
}

// Allows reports whether an error class at level errLevel should be reported
// in a file running at level s.
func (s StrictLevel) Allows(errLevel StrictLevel) bool {
	return s >= errLevel
}
