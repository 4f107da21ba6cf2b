package transcript

import (
	"fmt"
	"strings"
	"time"
)

// StampLayout is the wall-clock format used in every log line.
const StampLayout = "15:04:05"

// JoinLine renders the arrival line of a participant. It doubles as the marker
// used to find where that participant's share of the transcript starts.
func JoinLine(stamp, name string) string {
	return fmt.Sprintf("[%s] %s joined.", stamp, name)
}

// UtteranceLine renders one recognized utterance.
func UtteranceLine(stamp, name, text string) string {
	return fmt.Sprintf("[%s] %s: %s", stamp, name, text)
}

// SliceFrom returns every line from the first one equal to marker to the end,
// newline-joined. When the marker is absent the whole log is returned.
func SliceFrom(lines []string, marker string) string {
	start := 0
	for i, line := range lines {
		if line == marker {
			start = i
			break
		}
	}
	return strings.Join(lines[start:], "\n")
}

// Clock formats instants in a fixed zone so join markers stay reproducible.
type Clock struct {
	loc *time.Location
}

// NewClock loads the named zone; an empty name means UTC.
func NewClock(zone string) (Clock, error) {
	if zone == "" {
		return Clock{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Clock{}, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return Clock{loc: loc}, nil
}

// Stamp formats t for a log line.
func (c Clock) Stamp(t time.Time) string {
	loc := c.loc
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(StampLayout)
}
