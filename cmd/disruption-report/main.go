// Command disruption-report classifies a cached message file and writes a
// weekly breakdown of the extracted events as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rajasatyajit/TransitDisruptions/config"
	"github.com/rajasatyajit/TransitDisruptions/internal/classifier"
	"github.com/rajasatyajit/TransitDisruptions/internal/gtfsrt"
	"github.com/rajasatyajit/TransitDisruptions/internal/logger"
	"github.com/rajasatyajit/TransitDisruptions/internal/pipeline"
	"github.com/rajasatyajit/TransitDisruptions/internal/summary"
)

// Exit codes
const (
	exitOK       = 0
	exitError    = 1
	exitFailures = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("disruption-report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cachePath = fs.String("cache", "tweets.json", "message cache file")
		outPath   = fs.String("out", "", "report file (default stdout)")
		weeks     = fs.Int("weeks", summary.DefaultWeeks, "completed weeks to report")
		zone      = fs.String("zone", "", "IANA time zone (default from config)")
		window    = fs.Duration("window", 0, "plausibility window for times without am/pm (default from config)")
		gtfsPath  = fs.String("gtfs", "", "also write a GTFS-Realtime alerts feed to this file")
		gtfsText  = fs.Bool("gtfs-text", false, "write the GTFS-Realtime feed as prototext")
		nowFlag   = fs.String("now", "", "report time as RFC3339 (default current time)")
		strict    = fs.Bool("strict", false, "exit non-zero when any message failed")
		logLevel  = fs.String("log-level", "info", "log level")
	)
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	logger.InitWithWriter(stderr, *logLevel, "text")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		return exitError
	}
	ext := cfg.Extractor
	if *zone != "" {
		ext.Timezone = *zone
	}
	if *window > 0 {
		ext.PlausibilityWindow = *window
	}
	loc, err := time.LoadLocation(ext.Timezone)
	if err != nil {
		logger.Error("Unknown time zone", "zone", ext.Timezone, "error", err)
		return exitError
	}

	now := time.Now()
	if *nowFlag != "" {
		if now, err = time.Parse(time.RFC3339, *nowFlag); err != nil {
			logger.Error("Invalid -now", "error", err)
			return exitError
		}
	}

	cls, err := classifier.FromConfig(ext)
	if err != nil {
		logger.Error("Failed to initialize classifier", "error", err)
		return exitError
	}

	src := pipeline.NewFileSource("message-cache", *cachePath, 0)
	if recent, err := src.HasRecentData(ctx, now); err == nil && !recent {
		logger.Warn("Message cache has no recent data", "path", *cachePath, "max_age", pipeline.RecentDataAge)
	}
	msgs, err := src.Fetch(ctx)
	if err != nil {
		logger.Error("Failed to read message cache", "path", *cachePath, "error", err)
		return exitError
	}

	result, err := cls.ClassifyBatch(ctx, msgs)
	if err != nil {
		logger.Error("Classification aborted", "error", err)
		return exitError
	}
	logger.Info("Classified messages",
		"messages", len(msgs),
		"events", len(result.Events),
		"failures", len(result.Failures),
	)
	for _, f := range result.Failures {
		logger.Warn("Message not extracted", "message_id", f.MessageID, "error", f.Error)
	}

	report := summary.BuildReport(now, loc, *weeks, result.Events, result.Failures)
	if err := writeReport(report, *outPath, stdout); err != nil {
		logger.Error("Failed to write report", "error", err)
		return exitError
	}

	if *gtfsPath != "" {
		feed := &gtfsrt.Feed{
			Timestamp: now,
			AgencyID:  cfg.API.AgencyID,
			Language:  "en",
			Events:    result.Events,
		}
		if err := feed.DumpFile(*gtfsPath, *gtfsText); err != nil {
			logger.Error("Failed to write GTFS-Realtime feed", "path", *gtfsPath, "error", err)
			return exitError
		}
	}

	if *strict && len(result.Failures) > 0 {
		return exitFailures
	}
	return exitOK
}

func writeReport(report summary.Report, path string, stdout io.Writer) error {
	w := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
