// Package pipeline runs one scrape: fetch the listing page, archive it, extract
// listings, persist them in one batch and announce the result.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
	"github.com/JakeFAU/pm-internship-scraper/internal/metrics"
)

const snapshotContentType = "text/html; charset=utf-8"

// Config controls Pipeline behavior.
type Config struct {
	SourceURL string
	// Topic receives completion events. Empty disables notifications.
	Topic string
}

// Deps are the collaborators of a Pipeline. Limiter, Retry, Headless, Detector, Snapshots,
// Hasher and Publisher are optional.
type Deps struct {
	Stores    internship.StoreProvider
	Fetcher   internship.Fetcher
	Limiter   internship.Limiter
	Retry     internship.RetryPolicy
	Headless  internship.Fetcher
	Detector  internship.HeadlessDetector
	Extractor internship.Extractor
	Snapshots internship.BlobStore
	Hasher    internship.Hasher
	Publisher internship.Publisher
	Clock     internship.Clock
}

// Event is published after listings are committed.
type Event struct {
	SourceURL   string    `json:"source_url"`
	Count       int       `json:"count"`
	DocumentIDs []string  `json:"document_ids"`
	SnapshotURI string    `json:"snapshot_uri,omitempty"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// Pipeline executes scrapes. It is safe for concurrent use when its Deps are.
type Pipeline struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Pipeline.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	switch {
	case deps.Stores == nil:
		return nil, fmt.Errorf("store provider is required")
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("fetcher is required")
	case deps.Extractor == nil:
		return nil, fmt.Errorf("extractor is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case cfg.SourceURL == "":
		return nil, fmt.Errorf("source url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, cfg: cfg, logger: logger}, nil
}

// Run performs one scrape. The returned error, if any, is an *internship.Error naming
// the failing stage; nothing after that stage runs.
func (p *Pipeline) Run(ctx context.Context) (internship.Result, error) {
	result, err := p.run(ctx)
	if err != nil {
		stage, _ := internship.StageOf(err)
		metrics.ObserveRun(string(stage))
		return internship.Result{}, err
	}
	metrics.ObserveRun(metrics.OutcomeSuccess)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context) (internship.Result, error) {
	scrapedAt := p.deps.Clock.Now()

	store, err := p.deps.Stores.Store(ctx)
	if err != nil {
		return internship.Result{}, internship.PersistError(err)
	}

	started := time.Now()
	resp, err := p.fetch(ctx)
	metrics.ObserveStage(string(internship.StageFetch), time.Since(started))
	if err != nil {
		return internship.Result{}, internship.FetchError(err)
	}
	metrics.ObserveFetch(resp.URL, len(resp.Body))
	p.logger.Debug("page fetched",
		zap.String("url", resp.URL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Bool("headless", resp.UsedHeadless),
		zap.Duration("duration", resp.Duration),
	)

	snapshotURI := p.snapshot(ctx, resp, scrapedAt)

	started = time.Now()
	listings, err := p.deps.Extractor.Extract(resp.Body)
	metrics.ObserveStage(string(internship.StageParse), time.Since(started))
	if err != nil {
		return internship.Result{}, internship.ParseError(err)
	}
	metrics.ObserveExtracted(len(listings))

	var ids []string
	if len(listings) > 0 {
		started = time.Now()
		ids, err = store.InsertListings(ctx, listings)
		metrics.ObserveStage(string(internship.StagePersist), time.Since(started))
		if err != nil {
			return internship.Result{}, internship.PersistError(err)
		}
		metrics.ObservePersisted(len(ids))
	}

	result := internship.Result{
		Count:       len(listings),
		DocumentIDs: ids,
		SnapshotURI: snapshotURI,
		ScrapedAt:   scrapedAt,
	}
	p.notify(ctx, result)
	p.logger.Info("scrape completed",
		zap.Int("count", result.Count),
		zap.String("snapshot_uri", snapshotURI),
	)
	return result, nil
}

func (p *Pipeline) fetch(ctx context.Context) (internship.FetchResponse, error) {
	request := internship.FetchRequest{URL: p.cfg.SourceURL}
	resp, err := p.fetchWithRetry(ctx, request)
	if err != nil {
		return internship.FetchResponse{}, err
	}
	if p.deps.Headless == nil || p.deps.Detector == nil || !p.deps.Detector.ShouldPromote(resp) {
		return resp, nil
	}

	rendered, err := p.deps.Headless.Fetch(ctx, request)
	if err != nil {
		p.logger.Warn("headless promotion failed", zap.String("url", p.cfg.SourceURL), zap.Error(err))
		return resp, nil
	}
	p.logger.Info("headless promotion applied", zap.String("url", p.cfg.SourceURL))
	rendered.UsedHeadless = true
	return rendered, nil
}

func (p *Pipeline) fetchWithRetry(ctx context.Context, request internship.FetchRequest) (internship.FetchResponse, error) {
	for attempt := 1; ; attempt++ {
		if p.deps.Limiter != nil {
			if err := p.deps.Limiter.Wait(ctx, request.URL); err != nil {
				return internship.FetchResponse{}, err
			}
		}
		resp, err := p.deps.Fetcher.Fetch(ctx, request)
		if err == nil {
			return resp, nil
		}
		if p.deps.Retry == nil {
			return internship.FetchResponse{}, err
		}
		delay, again := p.deps.Retry.Next(err, attempt)
		if !again {
			return internship.FetchResponse{}, err
		}
		p.logger.Warn("fetch failed, retrying",
			zap.String("url", request.URL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return internship.FetchResponse{}, fmt.Errorf("%w (retry abandoned: %w)", err, ctx.Err())
		case <-timer.C:
		}
	}
}

// snapshot archives the raw page. Failures are logged and counted only.
func (p *Pipeline) snapshot(ctx context.Context, resp internship.FetchResponse, at time.Time) string {
	if p.deps.Snapshots == nil {
		return ""
	}
	path, err := p.snapshotPath(resp.Body, at)
	if err == nil {
		var uri string
		uri, err = p.deps.Snapshots.PutObject(ctx, path, snapshotContentType, bytes.NewReader(resp.Body))
		if err == nil {
			return uri
		}
	}
	metrics.ObserveSideEffectFailure("snapshot")
	p.logger.Warn("snapshot failed", zap.String("path", path), zap.Error(err))
	return ""
}

func (p *Pipeline) snapshotPath(body []byte, at time.Time) (string, error) {
	name := at.UTC().Format("150405.000000000")
	if p.deps.Hasher != nil {
		digest, err := p.deps.Hasher.Hash(body)
		if err != nil {
			return "", fmt.Errorf("hash snapshot: %w", err)
		}
		name = digest
	}
	return fmt.Sprintf("%s/%s.html", at.UTC().Format("2006/01/02"), name), nil
}

// notify publishes the completion event. Failures are logged and counted only.
func (p *Pipeline) notify(ctx context.Context, result internship.Result) {
	if p.deps.Publisher == nil || p.cfg.Topic == "" {
		return
	}
	event := Event{
		SourceURL:   p.cfg.SourceURL,
		Count:       result.Count,
		DocumentIDs: result.DocumentIDs,
		SnapshotURI: result.SnapshotURI,
		ScrapedAt:   result.ScrapedAt,
	}
	id, err := p.deps.Publisher.Publish(ctx, p.cfg.Topic, event)
	if err != nil {
		metrics.ObserveSideEffectFailure("notify")
		p.logger.Warn("completion event publish failed", zap.String("topic", p.cfg.Topic), zap.Error(err))
		return
	}
	p.logger.Debug("completion event published", zap.String("topic", p.cfg.Topic), zap.String("message_id", id))
}
