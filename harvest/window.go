package harvest

import (
	"fmt"
	"time"
)

// isoLayout is the accepted bound format, interpreted as UTC
const isoLayout = "2006-01-02T15:04:05"

// Class is the time-window verdict for a single item
type Class int

const (
	// InWindow items are counted
	InWindow Class = iota
	// TooNew items are skipped; scanning continues
	TooNew
	// TooOld items end the current probe's stream: results arrive newest
	// first, so nothing further can be in window
	TooOld
	// Unknown items (no creation timestamp) are skipped entirely
	Unknown
)

func (c Class) String() string {
	switch c {
	case InWindow:
		return "in_window"
	case TooNew:
		return "too_new"
	case TooOld:
		return "too_old"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Window is an inclusive [Earliest, Latest] epoch-second range. Earliest 0
// means unbounded below; Latest must be set before harvesting starts.
type Window struct {
	Earliest int64
	Latest   int64
}

// ParseWindow builds a Window from ISO bounds (YYYY-MM-DDTHH:MM:SS, UTC).
// earliestISO may be empty; latestISO is required.
func ParseWindow(earliestISO, latestISO string) (Window, error) {
	if latestISO == "" {
		return Window{}, fmt.Errorf("latest window bound is required (ISO UTC, e.g. 2025-07-31T19:00:00)")
	}

	latest, err := time.ParseInLocation(isoLayout, latestISO, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("invalid latest bound %q: %w", latestISO, err)
	}

	w := Window{Latest: latest.Unix()}

	if earliestISO != "" {
		earliest, err := time.ParseInLocation(isoLayout, earliestISO, time.UTC)
		if err != nil {
			return Window{}, fmt.Errorf("invalid earliest bound %q: %w", earliestISO, err)
		}
		w.Earliest = earliest.Unix()
	}

	if w.Earliest != 0 && w.Earliest > w.Latest {
		return Window{}, fmt.Errorf("earliest bound %s is after latest bound %s", earliestISO, latestISO)
	}

	return w, nil
}

// Classify places a creation timestamp relative to the window
func (w Window) Classify(created int64) Class {
	switch {
	case created == 0:
		return Unknown
	case created > w.Latest:
		return TooNew
	case w.Earliest != 0 && created < w.Earliest:
		return TooOld
	default:
		return InWindow
	}
}
