// Package gtfsrt publishes disruption events as a GTFS-Realtime service
// alerts feed.
package gtfsrt

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"

	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

const (
	Binary        = false
	HumanReadable = true
)

// Feed is a snapshot of events to publish.
type Feed struct {
	Timestamp time.Time
	// AgencyID is set on every informed entity when non-empty.
	AgencyID string
	Language string
	Events   []models.DisruptionEvent
}

// AsGTFS builds the FeedMessage, one alert entity per event.
func (f *Feed) AsGTFS() *gtfs.FeedMessage {
	g := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: ptr("2.0"),
			Incrementality:      ptr(gtfs.FeedHeader_FULL_DATASET),
			Timestamp:           ptr(uint64(f.Timestamp.Unix())),
		},
	}

	g.Entity = make([]*gtfs.FeedEntity, 0, len(f.Events))
	for _, e := range f.Events {
		g.Entity = append(g.Entity, f.alert(e))
	}
	return g
}

func (f *Feed) alert(e models.DisruptionEvent) *gtfs.FeedEntity {
	lang := f.Language
	if lang == "" {
		lang = "en"
	}

	selector := &gtfs.EntitySelector{RouteId: ptr(e.Route)}
	if f.AgencyID != "" {
		selector.AgencyId = ptr(f.AgencyID)
	}

	return &gtfs.FeedEntity{
		Id: ptr(e.ID),
		Alert: &gtfs.Alert{
			ActivePeriod:    []*gtfs.TimeRange{{Start: ptr(uint64(e.ResolvedTime.Unix()))}},
			InformedEntity:  []*gtfs.EntitySelector{selector},
			Cause:           ptr(gtfs.Alert_UNKNOWN_CAUSE),
			Effect:          ptr(Effect(e.Kind)),
			HeaderText:      translatedString(Header(e), lang),
			DescriptionText: translatedString(Description(e), lang),
		},
	}
}

// Effect maps an event kind onto the GTFS-RT alert effect.
func Effect(kind models.EventKind) gtfs.Alert_Effect {
	switch kind {
	case models.KindCancelled:
		return gtfs.Alert_NO_SERVICE
	case models.KindPartiallyCancelled:
		return gtfs.Alert_REDUCED_SERVICE
	case models.KindDelayed:
		return gtfs.Alert_SIGNIFICANT_DELAYS
	default:
		return gtfs.Alert_OTHER_EFFECT
	}
}

// Header is the short alert title, e.g. "Bus 3 cancelled".
func Header(e models.DisruptionEvent) string {
	switch e.Kind {
	case models.KindCancelled:
		return fmt.Sprintf("Bus %s cancelled", e.Route)
	case models.KindPartiallyCancelled:
		return fmt.Sprintf("Bus %s part cancelled", e.Route)
	case models.KindDelayed:
		return fmt.Sprintf("Bus %s delayed", e.Route)
	case models.KindReinstated:
		return fmt.Sprintf("Bus %s reinstated", e.Route)
	}
	return fmt.Sprintf("Bus %s", e.Route)
}

// Description is the full sentence for one event.
func Description(e models.DisruptionEvent) string {
	service := fmt.Sprintf("The %s %s to %s service", e.RawTimeText, e.Origin, e.Destination)
	switch e.Kind {
	case models.KindCancelled:
		return service + " is cancelled."
	case models.KindPartiallyCancelled:
		return fmt.Sprintf("%s is cancelled between %s and %s.", service, e.GapStart, e.GapEnd)
	case models.KindDelayed:
		if d, _ := e.Delay(); d != "" {
			return fmt.Sprintf("%s is delayed by %s minutes.", service, d)
		}
		return service + " is delayed."
	case models.KindReinstated:
		return service + " has been reinstated."
	}
	return service + "."
}

// Dump writes the feed as protobuf, or as prototext when humanReadable.
func (f *Feed) Dump(w io.Writer, humanReadable bool) error {
	var data []byte
	var err error

	if humanReadable {
		data, err = prototext.MarshalOptions{Multiline: true}.Marshal(f.AsGTFS())
	} else {
		data, err = proto.Marshal(f.AsGTFS())
	}
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}

	_, err = io.Copy(w, bytes.NewReader(data))
	return err
}

// DumpFile writes the feed next to path and renames it into place.
func (f *Feed) DumpFile(path string, humanReadable bool) error {
	tempPath := tempOutputPath(path)

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	b := bufio.NewWriter(file)
	if err := f.Dump(b, humanReadable); err != nil {
		file.Close()
		return err
	}
	if err := b.Flush(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

func ptr[T any](thing T) *T {
	return &thing
}

func translatedString(s, lang string) *gtfs.TranslatedString {
	return &gtfs.TranslatedString{
		Translation: []*gtfs.TranslatedString_Translation{
			{
				Text:     ptr(s),
				Language: ptr(lang),
			},
		},
	}
}

func tempOutputPath(path string) string {
	dir, name := filepath.Split(path)
	return fmt.Sprintf("%s.%s.tmp", dir, name)
}
