// Package summary folds disruption events into notice statistics.
package summary

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

// ClockTime is a wall-clock reading without a date.
type ClockTime struct {
	Hour   int
	Minute int
	Second int
}

func clockOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

func (c ClockTime) seconds() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

// Before reports whether c is earlier in the day than o.
func (c ClockTime) Before(o ClockTime) bool {
	return c.seconds() < o.seconds()
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(time.TimeOnly, s)
	if err != nil {
		return fmt.Errorf("parse clock time: %w", err)
	}
	*c = clockOf(t)
	return nil
}

// NoticeStats describes a set of lead times. Earliest is the longest lead
// and Latest the shortest; both are nil for an empty set, where Average is 0.
type NoticeStats struct {
	Count    int
	Earliest *time.Duration
	Latest   *time.Duration
	Average  time.Duration
}

type noticeJSON struct {
	Count           int      `json:"count"`
	EarliestSeconds *float64 `json:"earliest_seconds"`
	LatestSeconds   *float64 `json:"latest_seconds"`
	AverageSeconds  float64  `json:"average_seconds"`
}

func seconds(d *time.Duration) *float64 {
	if d == nil {
		return nil
	}
	s := d.Seconds()
	return &s
}

func duration(s *float64) *time.Duration {
	if s == nil {
		return nil
	}
	d := time.Duration(*s * float64(time.Second))
	return &d
}

func (n NoticeStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(noticeJSON{
		Count:           n.Count,
		EarliestSeconds: seconds(n.Earliest),
		LatestSeconds:   seconds(n.Latest),
		AverageSeconds:  n.Average.Seconds(),
	})
}

func (n *NoticeStats) UnmarshalJSON(b []byte) error {
	var raw noticeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*n = NoticeStats{
		Count:    raw.Count,
		Earliest: duration(raw.EarliestSeconds),
		Latest:   duration(raw.LatestSeconds),
		Average:  time.Duration(raw.AverageSeconds * float64(time.Second)),
	}
	return nil
}

func noticeStats(durations []time.Duration) NoticeStats {
	var stats NoticeStats
	var total time.Duration
	for _, d := range durations {
		if stats.Earliest == nil || d > *stats.Earliest {
			v := d
			stats.Earliest = &v
		}
		if stats.Latest == nil || d < *stats.Latest {
			v := d
			stats.Latest = &v
		}
		total += d
		stats.Count++
	}
	if stats.Count > 0 {
		stats.Average = total / time.Duration(stats.Count)
	}
	return stats
}

// Statistics summarises a set of events.
//
// Earliest and Latest are the extreme scheduled times of day, read in the
// offset each event was resolved in. Notice is split into events reported
// ahead of the service (BeforeNotice) and at or after it (AfterNotice).
type Statistics struct {
	Count        int         `json:"count"`
	Earliest     *ClockTime  `json:"earliest"`
	Latest       *ClockTime  `json:"latest"`
	Notice       NoticeStats `json:"notice"`
	BeforeNotice NoticeStats `json:"before_notice"`
	AfterNotice  NoticeStats `json:"after_notice"`
}

// Summarize folds events into Statistics. The result does not depend on the
// order of events.
func Summarize(events []models.DisruptionEvent) Statistics {
	var st Statistics
	all := make([]time.Duration, 0, len(events))
	var before, after []time.Duration

	for _, e := range events {
		st.Count++

		clock := clockOf(e.ResolvedTime)
		if st.Earliest == nil || clock.Before(*st.Earliest) {
			c := clock
			st.Earliest = &c
		}
		if st.Latest == nil || st.Latest.Before(clock) {
			c := clock
			st.Latest = &c
		}

		notice := e.Notice()
		all = append(all, notice)
		if notice > 0 {
			before = append(before, notice)
		} else {
			after = append(after, notice)
		}
	}

	st.Notice = noticeStats(all)
	st.BeforeNotice = noticeStats(before)
	st.AfterNotice = noticeStats(after)
	return st
}
