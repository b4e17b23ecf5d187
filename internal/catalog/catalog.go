// Package catalog holds the ordered notice templates used to recognise bus
// disruption messages and pull their fields out.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	apperrors "github.com/rajasatyajit/TransitDisruptions/internal/errors"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

// ErrMissingGroup is wrapped into a CatalogError when a pattern lacks a named
// group its category depends on.
var ErrMissingGroup = errors.New("pattern has no such named group")

// Groups every template must capture.
var baseGroups = []string{"route", "hour", "minute", "meridiem", "destination"}

// Groups is the set of named captures of one match, whitespace-trimmed.
// Groups that did not participate are empty.
type Groups map[string]string

// ExtractFunc maps the captures of a template onto a Match. An error means
// the template and its field parsing disagree.
type ExtractFunc func(g Groups) (Match, error)

// Template is one recognisable notice shape.
type Template struct {
	Category string
	Kind     models.EventKind
	Pattern  *regexp.Regexp
	// Excludes, when set, keeps the template off any text it matches.
	Excludes *regexp.Regexp
	// Required lists the named groups Extract reads beyond the common ones.
	Required []string
	Extract  ExtractFunc
}

// Match is the normalized result of applying a template to a message.
type Match struct {
	Category    string
	Kind        models.EventKind
	Route       string
	Origin      string
	Destination string
	Hour        string
	Minute      string
	Meridiem    string
	GapStart    string
	GapEnd      string
	Delay       string
	// BothWays asks for a mirrored event from Destination back to Origin.
	BothWays bool
}

// Catalog is an ordered, immutable list of templates. The first template
// that matches wins.
type Catalog struct {
	templates []Template
}

// New validates templates and builds a catalog from them in the given order.
func New(templates []Template) (*Catalog, error) {
	seen := make(map[string]bool, len(templates))
	for _, tpl := range templates {
		if tpl.Category == "" {
			return nil, &apperrors.CatalogError{Category: "(unnamed)", Field: "category", Err: errors.New("empty category")}
		}
		if seen[tpl.Category] {
			return nil, &apperrors.CatalogError{Category: tpl.Category, Field: "category", Err: errors.New("duplicate category")}
		}
		seen[tpl.Category] = true

		if tpl.Pattern == nil {
			return nil, &apperrors.CatalogError{Category: tpl.Category, Field: "pattern", Err: errors.New("nil pattern")}
		}
		if tpl.Extract == nil {
			return nil, &apperrors.CatalogError{Category: tpl.Category, Field: "extract", Err: errors.New("nil extract func")}
		}
		if !tpl.Kind.Valid() {
			return nil, &apperrors.CatalogError{Category: tpl.Category, Field: "kind", Err: fmt.Errorf("unknown kind %q", tpl.Kind)}
		}

		for _, name := range append(append([]string{}, baseGroups...), tpl.Required...) {
			if tpl.Pattern.SubexpIndex(name) < 0 {
				return nil, &apperrors.CatalogError{Category: tpl.Category, Field: name, Err: ErrMissingGroup}
			}
		}
	}

	out := make([]Template, len(templates))
	copy(out, templates)
	return &Catalog{templates: out}, nil
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return New(DefaultTemplates())
})

// Default returns the shared built-in catalog.
func Default() (*Catalog, error) {
	return defaultCatalog()
}

// Templates returns a copy of the catalog's templates in priority order.
func (c *Catalog) Templates() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// Match applies the templates in order and returns the first hit.
// A returned error is always a *errors.CatalogError.
func (c *Catalog) Match(text string) (Match, bool, error) {
	for _, tpl := range c.templates {
		if tpl.Excludes != nil && tpl.Excludes.MatchString(text) {
			continue
		}
		sub := tpl.Pattern.FindStringSubmatch(text)
		if sub == nil {
			continue
		}

		groups := make(Groups, len(sub))
		for i, name := range tpl.Pattern.SubexpNames() {
			if name != "" {
				groups[name] = strings.TrimSpace(sub[i])
			}
		}

		m, err := tpl.Extract(groups)
		if err != nil {
			var ce *apperrors.CatalogError
			if errors.As(err, &ce) {
				return Match{}, false, err
			}
			return Match{}, false, &apperrors.CatalogError{Category: tpl.Category, Field: "extract", Err: err}
		}
		m.Category = tpl.Category
		m.Kind = tpl.Kind
		return m, true, nil
	}
	return Match{}, false, nil
}

// Len returns the number of templates.
func (c *Catalog) Len() int { return len(c.templates) }

// service copies the fields shared by all templates.
func (g Groups) service() Match {
	return Match{
		Route:       g["route"],
		Origin:      g["origin"],
		Destination: g["destination"],
		Hour:        g["hour"],
		Minute:      g["minute"],
		Meridiem:    g["meridiem"],
		BothWays:    g["both_ways"] != "" || g["both_ways_after"] != "",
	}
}

// delay returns the delay figure, preferring the upper end of a range.
func (g Groups) delay(category string) (string, error) {
	field := "delay"
	value := g["delay"]
	if upper := g["delay_upper"]; upper != "" {
		field, value = "delay_upper", upper
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return "", &apperrors.CatalogError{Category: category, Field: field, Err: err}
	}
	return strconv.Itoa(n), nil
}
