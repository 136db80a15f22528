package trace

import (
	"fmt"
	"strings"
)

// Level is how much of the pipeline a tracer records.
type Level uint8

const (
	LevelOff Level = iota
	// LevelError keeps pass-level events in the ring and prints them only
	// when a command fails.
	LevelError
	LevelPhase
	LevelDetail
	LevelDebug
)

var levelNames = [...]string{
	LevelOff:    "off",
	LevelError:  "error",
	LevelPhase:  "phase",
	LevelDetail: "detail",
	LevelDebug:  "debug",
}

// deepest is the finest scope each level lets through.
var deepest = [...]Scope{
	LevelError:  ScopePass,
	LevelPhase:  ScopePass,
	LevelDetail: ScopeUnit,
	LevelDebug:  ScopeNode,
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel accepts a level name in any case.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(s)
	for l, n := range levelNames {
		if n == name {
			return Level(l), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: %s)", s, strings.Join(levelNames[:], "|"))
}

// ShouldEmit reports whether events of scope pass the level filter.
func (l Level) ShouldEmit(scope Scope) bool {
	if l == LevelOff || int(l) >= len(deepest) {
		return false
	}
	return scope <= deepest[l]
}
