package models

import (
	"fmt"
	"time"
)

// EventKind discriminates the variants of DisruptionEvent.
type EventKind string

const (
	KindCancelled          EventKind = "cancelled"
	KindPartiallyCancelled EventKind = "partially_cancelled"
	KindReinstated         EventKind = "reinstated"
	KindDelayed            EventKind = "delayed"
)

// Valid reports whether k is one of the known variants.
func (k EventKind) Valid() bool {
	switch k {
	case KindCancelled, KindPartiallyCancelled, KindReinstated, KindDelayed:
		return true
	}
	return false
}

// DisruptionEvent is a single reported service change extracted from a message.
//
// GapStart and GapEnd are only set on partial cancellations. DelayMinutes is
// only set on delays; it points at an empty string when the notice gave no
// figure.
type DisruptionEvent struct {
	ID           string    `json:"id" db:"id"`
	MessageID    uint64    `json:"message_id" db:"message_id"`
	Kind         EventKind `json:"kind" db:"kind"`
	Route        string    `json:"route" db:"route"`
	Origin       string    `json:"origin" db:"origin"`
	Destination  string    `json:"destination" db:"destination"`
	GapStart     string    `json:"gap_start,omitempty" db:"gap_start"`
	GapEnd       string    `json:"gap_end,omitempty" db:"gap_end"`
	DelayMinutes *string   `json:"delay_minutes,omitempty" db:"delay_minutes"`
	RawTimeText  string    `json:"raw_time_text" db:"raw_time_text"`
	PostedAt     time.Time `json:"posted_at" db:"posted_at"`
	ResolvedTime time.Time `json:"resolved_time" db:"resolved_time"`
}

// Service identifies the run a notice refers to.
type Service struct {
	Route       string
	Origin      string
	Destination string
	RawTimeText string
	PostedAt    time.Time
	Resolved    time.Time
}

func (s Service) event(kind EventKind) DisruptionEvent {
	return DisruptionEvent{
		Kind:         kind,
		Route:        s.Route,
		Origin:       s.Origin,
		Destination:  s.Destination,
		RawTimeText:  s.RawTimeText,
		PostedAt:     s.PostedAt,
		ResolvedTime: s.Resolved,
	}
}

func NewCancelled(s Service) DisruptionEvent {
	return s.event(KindCancelled)
}

func NewReinstated(s Service) DisruptionEvent {
	return s.event(KindReinstated)
}

func NewPartiallyCancelled(s Service, gapStart, gapEnd string) DisruptionEvent {
	e := s.event(KindPartiallyCancelled)
	e.GapStart = gapStart
	e.GapEnd = gapEnd
	return e
}

func NewDelayed(s Service, delayMinutes string) DisruptionEvent {
	e := s.event(KindDelayed)
	e.DelayMinutes = &delayMinutes
	return e
}

// Delay returns the delay figure and whether the event carries one at all.
func (e DisruptionEvent) Delay() (string, bool) {
	if e.DelayMinutes == nil {
		return "", false
	}
	return *e.DelayMinutes, true
}

// Notice is the lead time between posting and the scheduled service.
// Positive values mean advance notice.
func (e DisruptionEvent) Notice() time.Duration {
	return e.ResolvedTime.Sub(e.PostedAt)
}

// Validate checks that the variant-specific fields are consistent with Kind.
func (e DisruptionEvent) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.Route == "" {
		return fmt.Errorf("%s event without route", e.Kind)
	}
	if e.PostedAt.IsZero() || e.ResolvedTime.IsZero() {
		return fmt.Errorf("%s event without posted or resolved time", e.Kind)
	}
	switch e.Kind {
	case KindPartiallyCancelled:
		if e.GapStart == "" || e.GapEnd == "" {
			return fmt.Errorf("partial cancellation without gap")
		}
	case KindDelayed:
		if e.DelayMinutes == nil {
			return fmt.Errorf("delay without delay_minutes")
		}
	}
	if e.Kind != KindDelayed && e.DelayMinutes != nil {
		return fmt.Errorf("%s event with delay_minutes", e.Kind)
	}
	if e.Kind != KindPartiallyCancelled && (e.GapStart != "" || e.GapEnd != "") {
		return fmt.Errorf("%s event with gap", e.Kind)
	}
	return nil
}

// Equal compares events field by field, treating instants by value.
func (e DisruptionEvent) Equal(o DisruptionEvent) bool {
	ed, eok := e.Delay()
	od, ook := o.Delay()
	return e.ID == o.ID &&
		e.MessageID == o.MessageID &&
		e.Kind == o.Kind &&
		e.Route == o.Route &&
		e.Origin == o.Origin &&
		e.Destination == o.Destination &&
		e.GapStart == o.GapStart &&
		e.GapEnd == o.GapEnd &&
		eok == ook && ed == od &&
		e.RawTimeText == o.RawTimeText &&
		e.PostedAt.Equal(o.PostedAt) &&
		e.ResolvedTime.Equal(o.ResolvedTime)
}

// Less orders events by posting time, then scheduled time, route and kind.
func (e DisruptionEvent) Less(o DisruptionEvent) bool {
	if !e.PostedAt.Equal(o.PostedAt) {
		return e.PostedAt.Before(o.PostedAt)
	}
	if !e.ResolvedTime.Equal(o.ResolvedTime) {
		return e.ResolvedTime.Before(o.ResolvedTime)
	}
	if e.Route != o.Route {
		return e.Route < o.Route
	}
	if e.Kind != o.Kind {
		return e.Kind < o.Kind
	}
	return e.ID < o.ID
}
