package service

import (
	"fmt"
	"strings"
	"time"
)

// localLayouts are accepted for timestamps written without a zone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// TimeNormalizer turns client timestamps into UTC instants. Inputs carrying
// an offset (RFC 3339, including "Z") keep their instant; inputs without one
// are read in Local.
type TimeNormalizer struct {
	Local *time.Location
}

// NewTimeNormalizer uses a fixed zone offsetHours east of UTC.
func NewTimeNormalizer(offsetHours int) TimeNormalizer {
	name := fmt.Sprintf("UTC%+d", offsetHours)
	return TimeNormalizer{Local: time.FixedZone(name, offsetHours*3600)}
}

// Parse normalizes s to UTC.
func (n TimeNormalizer) Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	loc := n.Local
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// timeLayout renders instants in error messages.
const timeLayout = "2006-01-02 15:04:05Z07:00"
