package notify

import (
	"fmt"
	"strings"
	"time"

	"steamwatch/internal/config"
	"steamwatch/internal/storage"
)

// QuietSpan is a daily window in minutes-of-day. Start and End are both
// inclusive; Start > End means the window wraps past midnight.
type QuietSpan struct {
	Start int
	End   int
}

// ParseQuietSpan parses "HH:MM-HH:MM".
func ParseQuietSpan(s string) (QuietSpan, error) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return QuietSpan{}, fmt.Errorf("quiet span %q: want HH:MM-HH:MM", s)
	}
	sh, sm, err := config.ParseHHMM(a)
	if err != nil {
		return QuietSpan{}, fmt.Errorf("quiet span %q: %w", s, err)
	}
	eh, em, err := config.ParseHHMM(b)
	if err != nil {
		return QuietSpan{}, fmt.Errorf("quiet span %q: %w", s, err)
	}
	return QuietSpan{Start: sh*60 + sm, End: eh*60 + em}, nil
}

// Contains reports whether t falls inside the span. Boundaries are
// inclusive on both ends.
func (q QuietSpan) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	if q.Start <= q.End {
		return m >= q.Start && m <= q.End
	}
	return m >= q.Start || m <= q.End
}

// GroupAllowed decides whether a friend-status message may be mirrored to
// the group described by pref. Malformed quiet spans are skipped rather
// than failing the whole preference.
func GroupAllowed(pref storage.GroupPref, friendID string, game string, now time.Time) bool {
	if pref.OnlyGame && game == "" {
		return false
	}
	if len(pref.Friends) > 0 {
		found := false
		for _, id := range pref.Friends {
			if id == friendID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, raw := range pref.Quiet {
		span, err := ParseQuietSpan(raw)
		if err != nil {
			continue
		}
		if span.Contains(now) {
			return false
		}
	}
	return true
}
