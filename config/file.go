package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the shape of the optional YAML overlay. Only the sections
// that are awkward to express as environment variables live here.
type fileConfig struct {
	Extractor *extractorFile `yaml:"extractor"`
	Sources   []SourceConfig `yaml:"sources"`
}

type extractorFile struct {
	Timezone           *string  `yaml:"timezone"`
	PlausibilityWindow *string  `yaml:"plausibility_window"`
	IgnoredMessageIDs  []uint64 `yaml:"ignored_message_ids"`
	TrainLineCodes     []string `yaml:"train_line_codes"`
	IgnoredPrefixes    []string `yaml:"ignored_prefixes"`
	Workers            *int     `yaml:"workers"`
}

// ApplyFile overlays the YAML file at path onto c. Sources listed in the
// file replace those taken from the environment.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.applyYAML(data)
}

func (c *Config) applyYAML(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	if e := fc.Extractor; e != nil {
		if e.Timezone != nil {
			c.Extractor.Timezone = *e.Timezone
		}
		if e.PlausibilityWindow != nil {
			d, err := time.ParseDuration(*e.PlausibilityWindow)
			if err != nil {
				return fmt.Errorf("plausibility_window: %w", err)
			}
			c.Extractor.PlausibilityWindow = d
		}
		if e.IgnoredMessageIDs != nil {
			c.Extractor.IgnoredMessageIDs = e.IgnoredMessageIDs
		}
		if e.TrainLineCodes != nil {
			c.Extractor.TrainLineCodes = e.TrainLineCodes
		}
		if e.IgnoredPrefixes != nil {
			c.Extractor.IgnoredPrefixes = e.IgnoredPrefixes
		}
		if e.Workers != nil {
			c.Extractor.Workers = *e.Workers
		}
	}

	if fc.Sources != nil {
		c.Sources = fc.Sources
	}
	return nil
}
