package alert

import (
	"fmt"
	"time"
)

// Level is the severity of an alert rule. Each level carries a default
// cooldown window and a Pushover priority.
type Level string

const (
	LevelCritical Level = "critical"
	LevelHigh     Level = "high"
	LevelMedium   Level = "medium"
	LevelLow      Level = "low"
)

type levelSpec struct {
	cooldown time.Duration
	priority int
}

var levels = map[Level]levelSpec{
	LevelCritical: {cooldown: 5 * time.Minute, priority: 2},
	LevelHigh:     {cooldown: 15 * time.Minute, priority: 1},
	LevelMedium:   {cooldown: 30 * time.Minute, priority: 0},
	LevelLow:      {cooldown: 60 * time.Minute, priority: -1},
}

// ParseLevel validates a level string.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if _, ok := levels[l]; !ok {
		return "", fmt.Errorf("unknown alert level %q", s)
	}
	return l, nil
}

// DefaultCooldown returns the level's built-in cooldown window.
func (l Level) DefaultCooldown() time.Duration {
	return levels[l].cooldown
}

// Priority returns the Pushover priority for the level. Critical maps to
// emergency priority, which requires acknowledgement.
func (l Level) Priority() int {
	return levels[l].priority
}
