package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity. Each level admits every scope up to
// and including its widest one.
type Level uint8

const (
	LevelOff    Level = iota
	LevelError        // ring only, dumped on a crash
	LevelPhase        // driver and pipeline stages
	LevelDetail       // plus one span per file
	LevelDebug        // plus one span per method
)

var levelNames = [...]string{
	LevelOff:    "off",
	LevelError:  "error",
	LevelPhase:  "phase",
	LevelDetail: "detail",
	LevelDebug:  "debug",
}

// widestScope is the last scope a level emits; zero emits nothing.
var widestScope = [...]Scope{
	LevelPhase:  ScopePass,
	LevelDetail: ScopeFile,
	LevelDebug:  ScopeMethod,
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel reads a level name in any case.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil // #nosec G115 -- five entries
		}
	}
	return LevelOff, fmt.Errorf("%q is not one of %s", s, strings.Join(levelNames[:], "|"))
}

// ShouldEmit reports whether events of scope pass at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	if int(l) >= len(widestScope) {
		return false
	}
	return scope <= widestScope[l]
}
