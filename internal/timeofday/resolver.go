// Package timeofday pins a clock reading taken from notice text to an
// absolute instant near the time the notice was posted.
package timeofday

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	apperrors "github.com/rajasatyajit/TransitDisruptions/internal/errors"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

const (
	// DefaultZone is the civil zone the transit agency publishes times in.
	DefaultZone = "Pacific/Auckland"
	// DefaultWindow bounds how far a reading without am/pm may land from
	// its posting time.
	DefaultWindow = 2 * time.Hour
)

// Resolver turns a TimeOfDay into an instant on the posting day. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	Location *time.Location
	Window   time.Duration
}

// NewResolver creates a resolver. A nil location means UTC and a
// non-positive window means DefaultWindow.
func NewResolver(loc *time.Location, window time.Duration) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Resolver{Location: loc, Window: window}
}

// LoadResolver creates a resolver for a named IANA zone.
func LoadResolver(zone string, window time.Duration) (*Resolver, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return NewResolver(loc, window), nil
}

// Resolve returns the normalized "H:MM am|pm" text and the instant the
// reading refers to, carrying the zone's UTC offset at that instant.
//
// An explicit meridiem always resolves on the posting day, and a 24-hour
// reading such as "13:30pm" keeps its hour. Without one, hours 0 and 13-23 are
// read on the 24-hour clock and hours 1-12 pick the am or pm reading nearest
// the posting time. Either way the reading fails when it lands further than
// Window from the posting time.
func (r *Resolver) Resolve(postedAt time.Time, tod models.TimeOfDay) (string, time.Time, error) {
	if tod.Hour < 0 || tod.Hour > 23 || tod.Minute < 0 || tod.Minute > 59 {
		return "", time.Time{}, &apperrors.InvalidTimeOfDayError{Hour: tod.Hour, Minute: tod.Minute}
	}
	local := postedAt.In(r.Location)

	var resolved time.Time
	switch tod.Meridiem {
	case models.MeridiemAM:
		hour := tod.Hour
		if hour == 12 {
			hour = 0
		}
		resolved = r.on(local, hour, tod.Minute)
	case models.MeridiemPM:
		resolved = r.on(local, tod.Hour%12+12, tod.Minute)
	case models.MeridiemUnspecified:
		var err error
		if tod.Hour == 0 || tod.Hour > 12 {
			resolved, err = r.direct(postedAt, local, tod)
		} else {
			resolved, err = r.nearest(postedAt, local, tod)
		}
		if err != nil {
			return "", time.Time{}, err
		}
	default:
		return "", time.Time{}, fmt.Errorf("unknown meridiem %q", tod.Meridiem)
	}

	return Format(resolved.Hour(), resolved.Minute()), resolved, nil
}

// direct reads a 24-hour clock value, which has a single candidate.
func (r *Resolver) direct(postedAt, local time.Time, tod models.TimeOfDay) (time.Time, error) {
	t := r.on(local, tod.Hour, tod.Minute)
	if absDuration(t.Sub(postedAt)) > r.Window {
		return time.Time{}, &apperrors.AmbiguousTimeOfDayError{
			Hour:       tod.Hour,
			Minute:     tod.Minute,
			PostedAt:   postedAt,
			Window:     r.Window,
			Candidates: []time.Time{t},
		}
	}
	return t, nil
}

func (r *Resolver) nearest(postedAt, local time.Time, tod models.TimeOfDay) (time.Time, error) {
	am := r.on(local, tod.Hour%12, tod.Minute)
	pm := r.on(local, tod.Hour%12+12, tod.Minute)

	var chosen time.Time
	switch {
	case postedAt.Before(am):
		chosen = am
	case postedAt.After(pm):
		chosen = pm
	case absDuration(postedAt.Sub(am)) <= absDuration(pm.Sub(postedAt)):
		chosen = am
	default:
		chosen = pm
	}

	if absDuration(chosen.Sub(postedAt)) > r.Window {
		return time.Time{}, &apperrors.AmbiguousTimeOfDayError{
			Hour:       tod.Hour,
			Minute:     tod.Minute,
			PostedAt:   postedAt,
			Window:     r.Window,
			Candidates: []time.Time{am, pm},
		}
	}
	return chosen, nil
}

// on builds hour:minute on local's calendar day and pins it to a fixed offset.
func (r *Resolver) on(local time.Time, hour, minute int) time.Time {
	t := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, r.Location)
	name, offset := t.Zone()
	return t.In(time.FixedZone(name, offset))
}

// Format renders a 24-hour clock reading as "H:MM am|pm".
func Format(hour, minute int) string {
	meridiem := models.MeridiemAM
	if hour >= 12 {
		meridiem = models.MeridiemPM
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:%02d %s", display, minute, meridiem)
}

// ParseTimeOfDay converts captured text into a TimeOfDay. An empty minute
// means on the hour and an empty meridiem means unspecified.
func ParseTimeOfDay(hour, minute, meridiem string) (models.TimeOfDay, error) {
	h, err := strconv.Atoi(strings.TrimSpace(hour))
	if err != nil {
		return models.TimeOfDay{}, fmt.Errorf("parse hour: %w", err)
	}

	m := 0
	if minute = strings.TrimSpace(minute); minute != "" {
		if m, err = strconv.Atoi(minute); err != nil {
			return models.TimeOfDay{}, fmt.Errorf("parse minute: %w", err)
		}
	}

	tod := models.TimeOfDay{Hour: h, Minute: m}
	switch strings.ToLower(strings.TrimSpace(meridiem)) {
	case "":
		tod.Meridiem = models.MeridiemUnspecified
	case "am":
		tod.Meridiem = models.MeridiemAM
	case "pm":
		tod.Meridiem = models.MeridiemPM
	default:
		return models.TimeOfDay{}, fmt.Errorf("parse meridiem: unknown designator %q", meridiem)
	}
	return tod, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
