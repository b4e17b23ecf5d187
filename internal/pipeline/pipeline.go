package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/rajasatyajit/TransitDisruptions/config"
	"github.com/rajasatyajit/TransitDisruptions/internal/classifier"
	"github.com/rajasatyajit/TransitDisruptions/internal/dedup"
	apperrors "github.com/rajasatyajit/TransitDisruptions/internal/errors"
	"github.com/rajasatyajit/TransitDisruptions/internal/logger"
	"github.com/rajasatyajit/TransitDisruptions/internal/metrics"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

// Source defines a pluggable message source
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Message, error)
	Interval() time.Duration
}

// Classifier turns a batch of messages into events
type Classifier interface {
	ClassifyBatch(ctx context.Context, msgs []models.Message) (*classifier.BatchResult, error)
}

// Store interface for event storage
type Store interface {
	UpsertEvents(ctx context.Context, events []models.DisruptionEvent) error
}

// RunResult describes one pass over a source.
type RunResult struct {
	RunID    string               `json:"run_id"`
	Source   string               `json:"source"`
	Fetched  int                  `json:"fetched"`
	New      int                  `json:"new"`
	Events   int                  `json:"events"`
	Failures []classifier.Failure `json:"failures"`
	Duration time.Duration        `json:"duration_ns"`
	Error    string               `json:"error,omitempty"`
}

// Pipeline coordinates polling sources, skipping seen messages, classifying
// and storing the extracted events.
type Pipeline struct {
	store      Store
	classifier Classifier
	deduper    dedup.Deduper
	limiter    *rate.Limiter
	sources    []Source
	cfg        config.PipelineConfig
	sem        *semaphore.Weighted
	mu         sync.RWMutex
	running    bool
}

// New creates a new pipeline instance
func New(store Store, cls Classifier, deduper dedup.Deduper, sources []Source, cfg config.PipelineConfig) *Pipeline {
	if deduper == nil {
		deduper = dedup.NewMemory(0)
	}
	workers := cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}

	p := &Pipeline{
		store:      store,
		classifier: cls,
		deduper:    deduper,
		sources:    sources,
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, burst),
		sem:        semaphore.NewWeighted(int64(workers)),
	}

	logger.Info("Pipeline initialized",
		"sources", len(p.sources),
		"rate_limit", cfg.RateLimit,
		"workers", workers,
	)

	return p
}

// Sources returns the registered sources.
func (p *Pipeline) Sources() []Source { return p.sources }

// Run polls every source on its interval until ctx is cancelled
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already running")
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	logger.Info("Starting pipeline")

	var wg sync.WaitGroup
	for _, src := range p.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runSourcePoller(ctx, src)
		}()
	}
	wg.Wait()

	logger.Info("Pipeline stopped")
	return nil
}

// runSourcePoller runs a single source poller. Failed runs are logged and
// the source is tried again on the next tick.
func (p *Pipeline) runSourcePoller(ctx context.Context, src Source) {
	logger.Info("Starting source poller", "source", src.Name(), "interval", src.Interval())

	ticker := time.NewTicker(src.Interval())
	defer ticker.Stop()

	for {
		if _, err := p.runOnce(ctx, src); err != nil && ctx.Err() == nil {
			logger.Error("Source run failed", "source", src.Name(), "error", err)
		}

		select {
		case <-ctx.Done():
			logger.Info("Source poller stopping", "source", src.Name())
			return
		case <-ticker.C:
		}
	}
}

// RunOnce makes a single pass over every source concurrently and returns
// one result per source in registration order. The error joins the
// failures of individual sources.
func (p *Pipeline) RunOnce(ctx context.Context) ([]RunResult, error) {
	results := make([]RunResult, len(p.sources))
	errs := make([]error, len(p.sources))

	var wg sync.WaitGroup
	for i, src := range p.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = p.runOnce(ctx, src)
		}()
	}
	wg.Wait()

	var multi apperrors.MultiError
	for _, err := range errs {
		multi.Add(err)
	}
	if multi.HasErrors() {
		return results, multi
	}
	return results, nil
}

// runOnce executes a single pipeline run for a source
func (p *Pipeline) runOnce(ctx context.Context, src Source) (res RunResult, err error) {
	start := time.Now()
	res = RunResult{RunID: uuid.NewString(), Source: src.Name(), Failures: []classifier.Failure{}}
	defer func() {
		if err != nil {
			res.Error = err.Error()
		}
	}()
	ctx = logger.WithRunID(ctx, res.RunID)
	log := logger.WithContext(ctx).With("source", src.Name())

	if p.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
		defer cancel()
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return res, stageError(src, "acquire", err)
	}
	defer p.sem.Release(1)

	if err := p.limiter.Wait(ctx); err != nil {
		return res, stageError(src, "rate_limit", err)
	}

	defer func() {
		res.Duration = time.Since(start)
		metrics.RecordPipelineRun(src.Name(), res.Duration)
		log.Debug("Pipeline run completed", "duration_ms", res.Duration.Milliseconds())
	}()

	msgs, err := src.Fetch(ctx)
	if err != nil {
		return res, stageError(src, "fetch", err)
	}
	res.Fetched = len(msgs)

	fresh, err := p.unseen(ctx, msgs)
	if err != nil {
		return res, stageError(src, "dedup", err)
	}
	res.New = len(fresh)
	if len(fresh) == 0 {
		log.Debug("No new messages", "fetched", len(msgs))
		return res, nil
	}

	batchSize := p.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(fresh)
	}

	for i := 0; i < len(fresh); i += batchSize {
		end := min(i+batchSize, len(fresh))
		batch := fresh[i:end]

		stored, failures, err := p.processBatch(ctx, batch)
		if err != nil {
			log.Error("Batch processing failed",
				"batch_start", i,
				"batch_size", len(batch),
				"error", err,
			)
			return res, stageError(src, "process", err)
		}
		res.Events += stored
		res.Failures = append(res.Failures, failures...)
	}

	for _, f := range res.Failures {
		log.Warn("Message not extracted", "message_id", f.MessageID, "error", f.Error)
	}
	log.Info("Processed messages",
		"fetched", res.Fetched,
		"new", res.New,
		"events", res.Events,
		"failures", len(res.Failures),
	)
	return res, nil
}

// processBatch classifies and stores one batch, then marks its messages as
// seen. Messages that failed extraction are marked too: retrying them
// cannot succeed without a code change.
func (p *Pipeline) processBatch(ctx context.Context, batch []models.Message) (int, []classifier.Failure, error) {
	result, err := p.classifier.ClassifyBatch(ctx, batch)
	if err != nil {
		return 0, nil, fmt.Errorf("classify: %w", err)
	}

	if len(result.Events) > 0 {
		if err := p.store.UpsertEvents(ctx, result.Events); err != nil {
			return 0, nil, fmt.Errorf("store: %w", err)
		}
	}

	ids := make([]uint64, len(batch))
	for i, m := range batch {
		ids[i] = m.ID
	}
	if err := p.deduper.Mark(ctx, ids); err != nil {
		return 0, nil, fmt.Errorf("mark seen: %w", err)
	}

	return len(result.Events), result.Failures, nil
}

func (p *Pipeline) unseen(ctx context.Context, msgs []models.Message) ([]models.Message, error) {
	ids := make([]uint64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	fresh, err := p.deduper.Unseen(ctx, ids)
	if err != nil {
		return nil, err
	}
	keep := make(map[uint64]bool, len(fresh))
	for _, id := range fresh {
		keep[id] = true
	}
	out := make([]models.Message, 0, len(fresh))
	for _, m := range msgs {
		if keep[m.ID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func stageError(src Source, stage string, err error) error {
	return apperrors.PipelineError{Source: src.Name(), Stage: stage, Err: err}
}

// IsRunning returns whether the pipeline is currently running
func (p *Pipeline) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}
