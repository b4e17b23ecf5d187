package models

import (
	"fmt"
	"time"
)

// Message is a timestamped free-text notice as delivered by a source.
type Message struct {
	ID       uint64    `json:"id" validate:"required"`
	PostedAt time.Time `json:"created_at" validate:"required"`
	Text     string    `json:"text"`
}

// Meridiem is the am/pm designator of a time of day.
type Meridiem string

const (
	MeridiemUnspecified Meridiem = ""
	MeridiemAM          Meridiem = "am"
	MeridiemPM          Meridiem = "pm"
)

// TimeOfDay is a clock reading parsed from text. It never carries a date.
type TimeOfDay struct {
	Hour     int      `json:"hour"`
	Minute   int      `json:"minute"`
	Meridiem Meridiem `json:"meridiem,omitempty"`
}

// String renders the reading as written, e.g. "6:20pm" or "10:30".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%d:%02d%s", t.Hour, t.Minute, string(t.Meridiem))
}
