package domain

import (
	"fmt"
	"strings"
	"time"
)

// ExpiryZone is the wall-clock zone users enter expiries in (UTC+8).
var ExpiryZone = time.FixedZone("UTC+8", 8*60*60)

var wallClockLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseExpiry converts a user-entered expiry into an absolute UTC instant.
// Inputs with an explicit offset are honoured; bare wall-clock inputs are
// read in ExpiryZone.
func ParseExpiry(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: expiry time is required", ErrInvalidTrade)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range wallClockLayouts {
		if t, err := time.ParseInLocation(layout, s, ExpiryZone); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable expiry %q", ErrInvalidTrade, s)
}
