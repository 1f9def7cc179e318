package finding

import (
	"fmt"
	"strings"
)

// Level is a discretized threat score
type Level string

// Threat levels from least to most severe
const (
	LevelInfo     Level = "info"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

var levelRanks = map[Level]int{
	LevelInfo:     0,
	LevelLow:      1,
	LevelMedium:   2,
	LevelHigh:     3,
	LevelCritical: 4,
}

// LevelFromScore maps a 0-1 score onto a threat level
func LevelFromScore(score float64) Level {
	switch {
	case score >= 0.8:
		return LevelCritical
	case score >= 0.6:
		return LevelHigh
	case score >= 0.4:
		return LevelMedium
	case score >= 0.2:
		return LevelLow
	default:
		return LevelInfo
	}
}

// Rank orders levels; unknown levels rank below info
func (l Level) Rank() int {
	if r, ok := levelRanks[l]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether l is as severe as other
func (l Level) AtLeast(other Level) bool {
	return l.Rank() >= other.Rank()
}

// ParseLevel converts a case insensitive level name
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelRanks[l]; !ok {
		return LevelInfo, fmt.Errorf("unknown threat level %q", s)
	}
	return l, nil
}
