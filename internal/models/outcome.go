package models

// OutcomeKind is the classification of a single message.
type OutcomeKind string

const (
	// OutcomeDisruption means the message was understood; Events may be empty
	// when it carried no extractable service change.
	OutcomeDisruption OutcomeKind = "disruption"
	// OutcomeIgnored means the message is known noise.
	OutcomeIgnored OutcomeKind = "ignored"
	// OutcomeUnrecognized means no template matched.
	OutcomeUnrecognized OutcomeKind = "unrecognized"
)

// Outcome is the result of classifying one message.
type Outcome struct {
	Kind     OutcomeKind       `json:"kind"`
	Category string            `json:"category,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Events   []DisruptionEvent `json:"events,omitempty"`
}

func Disruption(category string, events []DisruptionEvent) Outcome {
	if events == nil {
		events = []DisruptionEvent{}
	}
	return Outcome{Kind: OutcomeDisruption, Category: category, Events: events}
}

func Ignored(reason string) Outcome {
	return Outcome{Kind: OutcomeIgnored, Reason: reason}
}

func Unrecognized() Outcome {
	return Outcome{Kind: OutcomeUnrecognized}
}
