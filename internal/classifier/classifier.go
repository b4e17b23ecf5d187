package classifier

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rajasatyajit/TransitDisruptions/internal/catalog"
	apperrors "github.com/rajasatyajit/TransitDisruptions/internal/errors"
	"github.com/rajasatyajit/TransitDisruptions/internal/metrics"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
	"github.com/rajasatyajit/TransitDisruptions/internal/timeofday"
	"github.com/rajasatyajit/TransitDisruptions/pkg/utils"
)

// Reasons reported on ignored outcomes.
const (
	ReasonIgnoreList = "ignore-list"
	ReasonLinkOnly   = "link-only"
	ReasonOtherMode  = "non-bus-mode"
)

// DefaultIgnoredIDs are messages known to be malformed or non-substantive.
var DefaultIgnoredIDs = []uint64{
	1356690879805681664,
	1354966519957000195,
	1354966526365892612,
	1356836623581806593,
	1357189987502944257,
	1357200754935758849,
}

// Options configures a Classifier. Zero values fall back to DefaultOptions.
type Options struct {
	Catalog  *catalog.Catalog
	Resolver *timeofday.Resolver

	IgnoredIDs           []uint64
	TrainLineCodes       []string
	IgnoredPrefixes      []string
	BusPrefixes          []string
	LinkMarker           string
	NonDisruptionPhrases []string
	DisruptionKeywords   []string

	// Workers bounds ClassifyBatch parallelism.
	Workers int
}

// DefaultOptions returns the settings for the Wellington feed.
func DefaultOptions() Options {
	return Options{
		IgnoredIDs:           DefaultIgnoredIDs,
		TrainLineCodes:       []string{"WRL", "KPL", "HVL", "JVL", "MEL"},
		IgnoredPrefixes:      []string{"Trains", "Ferry", "Ferries"},
		BusPrefixes:          []string{"Bus", "Bua", "School"},
		LinkMarker:           "https://t.co/",
		NonDisruptionPhrases: []string{"buses cannot pass"},
		DisruptionKeywords:   []string{"cancelled", "delayed", "reinstated", "will run", "part cancelled", "part-cancelled"},
		Workers:              runtime.NumCPU(),
	}
}

// Classifier routes messages and extracts disruption events. It is immutable
// after New and safe for concurrent use.
type Classifier struct {
	catalog  *catalog.Catalog
	resolver *timeofday.Resolver

	ignored    map[uint64]struct{}
	trainCodes []string
	otherModes []string
	busMarkers []string
	link       string
	phrases    []string
	keywords   []string
	workers    int
}

// New creates a classifier from opts.
func New(opts Options) (*Classifier, error) {
	def := DefaultOptions()

	if opts.Catalog == nil {
		cat, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("default catalog: %w", err)
		}
		opts.Catalog = cat
	}
	if opts.Resolver == nil {
		r, err := timeofday.LoadResolver(timeofday.DefaultZone, timeofday.DefaultWindow)
		if err != nil {
			return nil, err
		}
		opts.Resolver = r
	}
	if opts.IgnoredIDs == nil {
		opts.IgnoredIDs = def.IgnoredIDs
	}
	if opts.TrainLineCodes == nil {
		opts.TrainLineCodes = def.TrainLineCodes
	}
	if opts.IgnoredPrefixes == nil {
		opts.IgnoredPrefixes = def.IgnoredPrefixes
	}
	if opts.BusPrefixes == nil {
		opts.BusPrefixes = def.BusPrefixes
	}
	if opts.LinkMarker == "" {
		opts.LinkMarker = def.LinkMarker
	}
	if opts.NonDisruptionPhrases == nil {
		opts.NonDisruptionPhrases = def.NonDisruptionPhrases
	}
	if opts.DisruptionKeywords == nil {
		opts.DisruptionKeywords = def.DisruptionKeywords
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}

	ignored := make(map[uint64]struct{}, len(opts.IgnoredIDs))
	for _, id := range opts.IgnoredIDs {
		ignored[id] = struct{}{}
	}

	return &Classifier{
		catalog:    opts.Catalog,
		resolver:   opts.Resolver,
		ignored:    ignored,
		trainCodes: append([]string(nil), opts.TrainLineCodes...),
		otherModes: append([]string(nil), opts.IgnoredPrefixes...),
		busMarkers: append([]string(nil), opts.BusPrefixes...),
		link:       opts.LinkMarker,
		phrases:    lowerAll(opts.NonDisruptionPhrases),
		keywords:   lowerAll(opts.DisruptionKeywords),
		workers:    opts.Workers,
	}, nil
}

// Classify determines what a single message is and extracts its events.
//
// Unrecognized messages come back with an *errors.UnrecognizedMessageError
// alongside the Unrecognized outcome. A time that cannot be pinned down
// returns the disruption outcome without events and an
// *errors.AmbiguousTimeOfDayError or *errors.InvalidTimeOfDayError. A
// *errors.CatalogError means the catalog itself is broken.
func (c *Classifier) Classify(msg models.Message) (models.Outcome, error) {
	text := msg.Text
	lower := strings.ToLower(text)
	isBus := utils.HasAnyPrefix(text, c.busMarkers)

	switch {
	case c.isIgnoredID(msg.ID):
		return models.Ignored(ReasonIgnoreList), nil
	case strings.Contains(text, c.link) && !isBus && !utils.ContainsAny(lower, c.keywords):
		return models.Ignored(ReasonLinkOnly), nil
	case utils.HasAnyPrefix(text, c.trainCodes) || utils.HasAnyPrefix(text, c.otherModes):
		return models.Ignored(ReasonOtherMode), nil
	case isBus:
		return c.extract(msg, lower)
	}
	return models.Unrecognized(), &apperrors.UnrecognizedMessageError{MessageID: msg.ID, Text: text}
}

func (c *Classifier) isIgnoredID(id uint64) bool {
	_, ok := c.ignored[id]
	return ok
}

func (c *Classifier) extract(msg models.Message, lower string) (models.Outcome, error) {
	m, ok, err := c.catalog.Match(msg.Text)
	if err != nil {
		return models.Outcome{}, err
	}
	if !ok {
		if strings.Contains(msg.Text, c.link) || utils.ContainsAny(lower, c.phrases) {
			return models.Disruption("", nil), nil
		}
		return models.Unrecognized(), &apperrors.UnrecognizedMessageError{MessageID: msg.ID, Text: msg.Text}
	}

	tod, err := timeofday.ParseTimeOfDay(m.Hour, m.Minute, m.Meridiem)
	if err != nil {
		return models.Outcome{}, &apperrors.CatalogError{Category: m.Category, Field: "time", Err: err}
	}
	raw, resolved, err := c.resolver.Resolve(msg.PostedAt, tod)
	if err != nil {
		return models.Outcome{Kind: models.OutcomeDisruption, Category: m.Category}, err
	}

	svc := models.Service{
		Route:       m.Route,
		Origin:      m.Origin,
		Destination: m.Destination,
		RawTimeText: raw,
		PostedAt:    msg.PostedAt,
		Resolved:    resolved,
	}
	services := []models.Service{svc}
	if m.BothWays {
		back := svc
		back.Origin, back.Destination = svc.Destination, svc.Origin
		services = append(services, back)
	}

	events := make([]models.DisruptionEvent, 0, len(services))
	for i, s := range services {
		var e models.DisruptionEvent
		switch m.Kind {
		case models.KindCancelled:
			e = models.NewCancelled(s)
		case models.KindReinstated:
			e = models.NewReinstated(s)
		case models.KindPartiallyCancelled:
			e = models.NewPartiallyCancelled(s, m.GapStart, m.GapEnd)
		case models.KindDelayed:
			e = models.NewDelayed(s, m.Delay)
		default:
			return models.Outcome{}, &apperrors.CatalogError{Category: m.Category, Field: "kind", Err: fmt.Errorf("unknown kind %q", m.Kind)}
		}
		e.ID = EventID(msg.ID, i)
		e.MessageID = msg.ID
		events = append(events, e)
	}

	return models.Disruption(m.Category, events), nil
}

// EventID derives a stable identifier for the index-th event of a message.
func EventID(messageID uint64, index int) string {
	return utils.HashString(fmt.Sprintf("%d/%d", messageID, index))
}

// Failure records a message that could not be turned into events.
type Failure struct {
	MessageID uint64 `json:"message_id"`
	Text      string `json:"text"`
	Error     string `json:"error"`
	Err       error  `json:"-"`
}

// BatchResult holds the per-message outcomes of a batch in input order,
// the flattened events and the failures.
type BatchResult struct {
	Outcomes []models.Outcome         `json:"outcomes"`
	Events   []models.DisruptionEvent `json:"events"`
	Failures []Failure                `json:"failures"`
}

// ClassifyBatch classifies msgs concurrently. Per-message failures are
// collected; only a catalog error or context cancellation aborts the batch.
func (c *Classifier) ClassifyBatch(ctx context.Context, msgs []models.Message) (*BatchResult, error) {
	outcomes := make([]models.Outcome, len(msgs))
	errs := make([]error, len(msgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, msg := range msgs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := c.Classify(msg)
			var ce *apperrors.CatalogError
			if apperrors.As(err, &ce) {
				return err
			}
			outcomes[i], errs[i] = out, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &BatchResult{
		Outcomes: outcomes,
		Events:   []models.DisruptionEvent{},
		Failures: []Failure{},
	}
	for i, out := range outcomes {
		if errs[i] != nil {
			res.Failures = append(res.Failures, Failure{
				MessageID: msgs[i].ID,
				Text:      msgs[i].Text,
				Error:     errs[i].Error(),
				Err:       errs[i],
			})
			metrics.RecordMessageClassified(outcomeLabel(out, errs[i]))
			continue
		}
		metrics.RecordMessageClassified(string(out.Kind))
		for _, e := range out.Events {
			metrics.RecordEventExtracted(string(e.Kind))
		}
		res.Events = append(res.Events, out.Events...)
	}
	return res, nil
}

func outcomeLabel(out models.Outcome, err error) string {
	var amb *apperrors.AmbiguousTimeOfDayError
	var inv *apperrors.InvalidTimeOfDayError
	switch {
	case apperrors.As(err, &amb):
		return "ambiguous_time"
	case apperrors.As(err, &inv):
		return "invalid_time"
	case out.Kind != "":
		return string(out.Kind)
	}
	return "error"
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
