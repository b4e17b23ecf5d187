package classifier

import (
	"github.com/rajasatyajit/TransitDisruptions/config"
	"github.com/rajasatyajit/TransitDisruptions/internal/timeofday"
)

// FromConfig builds a classifier from extractor settings. Empty lists keep
// the defaults.
func FromConfig(cfg config.ExtractorConfig) (*Classifier, error) {
	resolver, err := timeofday.LoadResolver(cfg.Timezone, cfg.PlausibilityWindow)
	if err != nil {
		return nil, err
	}
	opts := Options{Resolver: resolver, Workers: cfg.Workers}
	if len(cfg.IgnoredMessageIDs) > 0 {
		opts.IgnoredIDs = cfg.IgnoredMessageIDs
	}
	if len(cfg.TrainLineCodes) > 0 {
		opts.TrainLineCodes = cfg.TrainLineCodes
	}
	if len(cfg.IgnoredPrefixes) > 0 {
		opts.IgnoredPrefixes = cfg.IgnoredPrefixes
	}
	return New(opts)
}
