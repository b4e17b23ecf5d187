package catalog

import (
	"regexp"

	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

// Pattern fragments shared by the bus templates.
const (
	TimeFragment     = `(?P<hour>[0-9]{1,2})(?:[.:](?P<minute>[0-9]{2}))?(?P<meridiem>am|pm)?`
	RouteFragment    = `Bu[sa] ?(?P<route>[0-9]+[a-z]?)`
	EndpointFragment = `(?:from )?(?P<origin>.*?) (?:to|tp|-) (?P<destination>.*?)`
	BothWaysFragment = `(?P<both_ways>,? (?:north and southbound|both directions))?`
	// TrailingBothWaysFragment is the same marker placed after the delay.
	TrailingBothWaysFragment = `(?P<both_ways_after>,? (?:north and southbound|both directions))?`

	// service heads every template: "Bus 3: 10:30am A to B".
	service = RouteFragment + `: +` + TimeFragment + ` ` + EndpointFragment

	// gap captures "X and Y" up to the end of the sentence.
	gap = `(?P<cancelled_from>.*?) (?:and|to|&amp;|&) (?P<cancelled_to>.*?) *\.`
)

// Categories in priority order.
const (
	CategoryReinstated                   = "bus-reinstated"
	CategoryDelayedByMinutes             = "bus-delayed-by-minutes"
	CategoryDelayedRunningLate           = "bus-delayed-running-late"
	CategoryDelayedIndeterminate         = "bus-delayed-indeterminate"
	CategoryPartCancelledBetween         = "bus-part-cancelled-between"
	CategoryPartCancelledBetweenNoOrigin = "bus-part-cancelled-between-no-origin"
	CategoryPartCancelledFrom            = "bus-part-cancelled-from"
	CategoryFullCancel                   = "bus-full-cancel"
)

// DefaultTemplates returns the built-in templates. Rarer, stricter shapes
// come before the catch-all cancellation so it cannot claim them.
func DefaultTemplates() []Template {
	return []Template{
		{
			Category: CategoryReinstated,
			Kind:     models.KindReinstated,
			Pattern: regexp.MustCompile(service +
				` (?:has been (?:REINSTATED|reinstated)(?: and will now run)?|that was cancelled will now run)`),
			Required: []string{"origin"},
			Extract: func(g Groups) (Match, error) {
				return g.service(), nil
			},
		},
		{
			Category: CategoryDelayedByMinutes,
			Kind:     models.KindDelayed,
			Pattern: regexp.MustCompile(service + BothWaysFragment +
				` (?:is|has been|will be) delayed(?: by)? (?P<delay>[0-9]+)(?:-(?P<delay_upper>[0-9]+))? min(?:ute)?s?` +
				TrailingBothWaysFragment),
			Required: []string{"origin", "delay", "delay_upper", "both_ways", "both_ways_after"},
			Extract:  extractDelay(CategoryDelayedByMinutes),
		},
		{
			Category: CategoryDelayedRunningLate,
			Kind:     models.KindDelayed,
			Pattern: regexp.MustCompile(service + BothWaysFragment +
				` will run (?P<delay>[0-9]+)(?:-(?P<delay_upper>[0-9]+))? min(?:ute)?s? late` + TrailingBothWaysFragment),
			Required: []string{"origin", "delay", "delay_upper", "both_ways", "both_ways_after"},
			Extract:  extractDelay(CategoryDelayedRunningLate),
		},
		{
			Category: CategoryDelayedIndeterminate,
			Kind:     models.KindDelayed,
			Pattern: regexp.MustCompile(service + BothWaysFragment +
				` (?:is|has been) delayed due to [^.]*?` + TrailingBothWaysFragment + `\.`),
			Required: []string{"origin", "both_ways", "both_ways_after"},
			Extract: func(g Groups) (Match, error) {
				m := g.service()
				m.Delay = ""
				return m, nil
			},
		},
		{
			Category: CategoryPartCancelledBetween,
			Kind:     models.KindPartiallyCancelled,
			Pattern: regexp.MustCompile(service +
				`(?: is| has been| will be|. Is) part[- ]cancelled (?:between|from) ` + gap),
			Required: []string{"origin", "cancelled_from", "cancelled_to"},
			Extract: func(g Groups) (Match, error) {
				m := g.service()
				m.GapStart = g["cancelled_from"]
				m.GapEnd = g["cancelled_to"]
				return m, nil
			},
		},
		{
			// "Bus 7: 5pm - Kingston is part cancelled between ..." names no
			// origin; the gap start stands in for it.
			Category: CategoryPartCancelledBetweenNoOrigin,
			Kind:     models.KindPartiallyCancelled,
			Pattern: regexp.MustCompile(RouteFragment + `: +` + TimeFragment +
				` (?:to|-) (?P<destination>.*?) (?:is|has been) part[- ]cancelled between ` + gap),
			Required: []string{"cancelled_from", "cancelled_to"},
			Extract: func(g Groups) (Match, error) {
				m := g.service()
				m.Origin = g["cancelled_from"]
				m.GapStart = g["cancelled_from"]
				m.GapEnd = g["cancelled_to"]
				return m, nil
			},
		},
		{
			// Cancelled from a stop onwards: the gap runs to the destination.
			Category: CategoryPartCancelledFrom,
			Kind:     models.KindPartiallyCancelled,
			Pattern: regexp.MustCompile(service +
				` +(?:is|has been) part[- ]cancelled from (?P<cancelled_from>.*?)\.`),
			Required: []string{"origin", "cancelled_from"},
			Extract: func(g Groups) (Match, error) {
				m := g.service()
				m.GapStart = g["cancelled_from"]
				m.GapEnd = m.Destination
				return m, nil
			},
		},
		{
			Category: CategoryFullCancel,
			Kind:     models.KindCancelled,
			Pattern:  regexp.MustCompile(service + ` (?:(?:is|has been|was) )?cancelled`),
			Excludes: regexp.MustCompile(`part[- ]cancelled`),
			Required: []string{"origin"},
			Extract: func(g Groups) (Match, error) {
				return g.service(), nil
			},
		},
	}
}

func extractDelay(category string) ExtractFunc {
	return func(g Groups) (Match, error) {
		delay, err := g.delay(category)
		if err != nil {
			return Match{}, err
		}
		m := g.service()
		m.Delay = delay
		return m, nil
	}
}
