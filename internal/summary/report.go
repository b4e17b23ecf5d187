package summary

import (
	"sort"
	"time"

	"github.com/rajasatyajit/TransitDisruptions/internal/classifier"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

// DefaultWeeks is how many completed weeks a report covers.
const DefaultWeeks = 4

// Week holds the events posted during one completed week.
type Week struct {
	// WeeksAgo is 1 for the week before the current one.
	WeeksAgo int                      `json:"weeks_ago"`
	Start    time.Time                `json:"start"`
	End      time.Time                `json:"end"`
	Events   []models.DisruptionEvent `json:"events"`
	Stats    Statistics               `json:"stats"`
}

// Report is the weekly breakdown written by the report command.
type Report struct {
	GeneratedAt time.Time            `json:"generated_at"`
	WeekStart   time.Time            `json:"week_start"`
	Weeks       []Week               `json:"weeks"`
	Failures    []classifier.Failure `json:"failures"`
}

// WeekStart returns Monday 00:00 of the week containing now, in loc.
func WeekStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	back := (int(local.Weekday()) + 6) % 7
	return time.Date(local.Year(), local.Month(), local.Day()-back, 0, 0, 0, 0, loc)
}

// BuildReport buckets events by posting time into the given number of
// completed weeks before the current one. Events outside those weeks are
// dropped. Week boundaries follow loc's calendar, so a week spanning a
// daylight saving change is not exactly 168 hours.
func BuildReport(now time.Time, loc *time.Location, weeks int, events []models.DisruptionEvent, failures []classifier.Failure) Report {
	if weeks <= 0 {
		weeks = DefaultWeeks
	}
	monday := WeekStart(now, loc)

	rep := Report{
		GeneratedAt: now,
		WeekStart:   monday,
		Weeks:       make([]Week, weeks),
		Failures:    failures,
	}
	if rep.Failures == nil {
		rep.Failures = []classifier.Failure{}
	}

	for i := range rep.Weeks {
		rep.Weeks[i] = Week{
			WeeksAgo: i + 1,
			Start:    monday.AddDate(0, 0, -7*(i+1)),
			End:      monday.AddDate(0, 0, -7*i),
			Events:   []models.DisruptionEvent{},
		}
	}

	for _, e := range events {
		for i := range rep.Weeks {
			w := &rep.Weeks[i]
			if !e.PostedAt.Before(w.Start) && e.PostedAt.Before(w.End) {
				w.Events = append(w.Events, e)
				break
			}
		}
	}

	for i := range rep.Weeks {
		w := &rep.Weeks[i]
		sort.Slice(w.Events, func(a, b int) bool { return w.Events[a].Less(w.Events[b]) })
		w.Stats = Summarize(w.Events)
	}
	return rep
}
