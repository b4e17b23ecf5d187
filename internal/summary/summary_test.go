package summary

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rajasatyajit/TransitDisruptions/internal/classifier"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

var nzdt = time.FixedZone("NZDT", 13*3600)

func event(posted, resolved time.Time) models.DisruptionEvent {
	return models.NewCancelled(models.Service{
		Route:       "3",
		Origin:      "Wellington Station",
		Destination: "Lyall Bay",
		RawTimeText: "10:30 am",
		PostedAt:    posted,
		Resolved:    resolved,
	})
}

func at(day, hour, minute int) time.Time {
	return time.Date(2021, 1, day, hour, minute, 0, 0, nzdt)
}

func sampleEvents() []models.DisruptionEvent {
	return []models.DisruptionEvent{
		event(at(25, 10, 0), at(25, 10, 30)), // +30m
		event(at(25, 18, 0), at(25, 17, 23)), // -37m
		event(at(26, 9, 0), at(26, 9, 0)),    // 0
		event(at(26, 12, 0), at(26, 19, 0)),  // +7h
	}
}

func dur(d time.Duration) *time.Duration { return &d }

func TestSummarize(t *testing.T) {
	got := Summarize(sampleEvents())

	want := Statistics{
		Count:    4,
		Earliest: &ClockTime{Hour: 9},
		Latest:   &ClockTime{Hour: 19},
		Notice: NoticeStats{
			Count:    4,
			Earliest: dur(7 * time.Hour),
			Latest:   dur(-37 * time.Minute),
			Average:  (413 * time.Minute) / 4,
		},
		BeforeNotice: NoticeStats{
			Count:    2,
			Earliest: dur(7 * time.Hour),
			Latest:   dur(30 * time.Minute),
			Average:  225 * time.Minute,
		},
		AfterNotice: NoticeStats{
			Count:    2,
			Earliest: dur(0),
			Latest:   dur(-37 * time.Minute),
			Average:  -37 * time.Minute / 2,
		},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Summarize() =\n  %+v\nwant\n  %+v", got, want)
	}
}

func TestSummarize_OrderIndependent(t *testing.T) {
	events := sampleEvents()
	reversed := make([]models.DisruptionEvent, len(events))
	for i, e := range events {
		reversed[len(events)-1-i] = e
	}
	if !reflect.DeepEqual(Summarize(events), Summarize(reversed)) {
		t.Error("summary depends on event order")
	}
}

func TestSummarize_Empty(t *testing.T) {
	got := Summarize(nil)
	if got.Count != 0 || got.Earliest != nil || got.Latest != nil {
		t.Errorf("unexpected empty summary %+v", got)
	}
	for _, n := range []NoticeStats{got.Notice, got.BeforeNotice, got.AfterNotice} {
		if n.Count != 0 || n.Earliest != nil || n.Latest != nil || n.Average != 0 {
			t.Errorf("unexpected empty notice stats %+v", n)
		}
	}
}

func TestStatistics_JSON(t *testing.T) {
	b, err := json.Marshal(Summarize(sampleEvents()))
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	for _, want := range []string{
		`"count":4`,
		`"earliest":"09:00:00"`,
		`"latest":"19:00:00"`,
		`"earliest_seconds":25200`,
		`"latest_seconds":-2220`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON missing %s: %s", want, s)
		}
	}

	var back Statistics
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back, Summarize(sampleEvents())) {
		t.Errorf("round trip mismatch: %+v", back)
	}

	empty, _ := json.Marshal(Summarize(nil))
	if !strings.Contains(string(empty), `"earliest":null`) || !strings.Contains(string(empty), `"average_seconds":0`) {
		t.Errorf("unexpected empty JSON %s", empty)
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{now: time.Date(2021, 2, 3, 12, 0, 0, 0, nzdt), want: time.Date(2021, 2, 1, 0, 0, 0, 0, nzdt)},
		{now: time.Date(2021, 2, 1, 0, 0, 0, 0, nzdt), want: time.Date(2021, 2, 1, 0, 0, 0, 0, nzdt)},
		{now: time.Date(2021, 2, 7, 23, 59, 0, 0, nzdt), want: time.Date(2021, 2, 1, 0, 0, 0, 0, nzdt)},
		// Sunday evening UTC is already Monday in Wellington
		{now: time.Date(2021, 1, 31, 12, 0, 0, 0, time.UTC), want: time.Date(2021, 2, 1, 0, 0, 0, 0, nzdt)},
	}
	for _, tt := range tests {
		if got := WeekStart(tt.now, nzdt); !got.Equal(tt.want) {
			t.Errorf("WeekStart(%s) = %s, want %s", tt.now, got, tt.want)
		}
	}
}

func TestBuildReport(t *testing.T) {
	now := time.Date(2021, 2, 3, 12, 0, 0, 0, nzdt)
	lastWeekLate := event(at(28, 9, 0), at(28, 9, 30))
	lastWeekEarly := event(at(26, 9, 0), at(26, 9, 30))
	twoWeeks := event(at(20, 9, 0), at(20, 9, 15))
	current := event(time.Date(2021, 2, 2, 9, 0, 0, 0, nzdt), time.Date(2021, 2, 2, 9, 30, 0, 0, nzdt))
	old := event(at(1, 9, 0), at(1, 9, 30))
	failures := []classifier.Failure{{MessageID: 7, Text: "Good morning", Error: "unrecognized"}}

	rep := BuildReport(now, nzdt, 2, []models.DisruptionEvent{lastWeekLate, current, twoWeeks, old, lastWeekEarly}, failures)

	if len(rep.Weeks) != 2 {
		t.Fatalf("got %d weeks, want 2", len(rep.Weeks))
	}
	if !rep.WeekStart.Equal(time.Date(2021, 2, 1, 0, 0, 0, 0, nzdt)) {
		t.Errorf("WeekStart = %s", rep.WeekStart)
	}

	w1 := rep.Weeks[0]
	if w1.WeeksAgo != 1 || !w1.Start.Equal(at(25, 0, 0)) || !w1.End.Equal(rep.WeekStart) {
		t.Errorf("unexpected first week bounds %s - %s", w1.Start, w1.End)
	}
	if len(w1.Events) != 2 || !w1.Events[0].Equal(lastWeekEarly) || !w1.Events[1].Equal(lastWeekLate) {
		t.Errorf("unexpected first week events %+v", w1.Events)
	}
	if w1.Stats.Count != 2 || w1.Stats.Notice.Average != 30*time.Minute {
		t.Errorf("unexpected first week stats %+v", w1.Stats)
	}

	w2 := rep.Weeks[1]
	if len(w2.Events) != 1 || !w2.Events[0].Equal(twoWeeks) {
		t.Errorf("unexpected second week events %+v", w2.Events)
	}
	if len(rep.Failures) != 1 || rep.Failures[0].MessageID != 7 {
		t.Errorf("failures not carried: %+v", rep.Failures)
	}
}

func TestBuildReport_DefaultWeeks(t *testing.T) {
	rep := BuildReport(time.Date(2021, 2, 3, 12, 0, 0, 0, nzdt), nzdt, 0, nil, nil)
	if len(rep.Weeks) != DefaultWeeks {
		t.Errorf("got %d weeks, want %d", len(rep.Weeks), DefaultWeeks)
	}
	if rep.Failures == nil {
		t.Error("failures should be an empty list")
	}
	for _, w := range rep.Weeks {
		if w.Events == nil || w.Stats.Count != 0 {
			t.Errorf("unexpected week %+v", w)
		}
	}
}
