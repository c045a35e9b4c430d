package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gfw-catalog-pipeline/internal/catalog"
	"github.com/JakeFAU/gfw-catalog-pipeline/internal/hash/sha256"
	"github.com/JakeFAU/gfw-catalog-pipeline/internal/metrics"
)

// FetcherConfig holds the fixed locations the fetch stage reads from and writes to.
type FetcherConfig struct {
	CatalogURL string
	Artifact   catalog.ArtifactLocation
	// Topic receives an ArtifactNotice after each successful write. Empty disables notifications.
	Topic string
}

// Fetcher downloads the catalog and overwrites the artifact.
type Fetcher struct {
	source    catalog.Source
	store     catalog.ArtifactStore
	publisher catalog.Publisher
	cfg       FetcherConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewFetcher wires a Fetcher. publisher may be nil.
func NewFetcher(
	source catalog.Source,
	store catalog.ArtifactStore,
	publisher catalog.Publisher,
	cfg FetcherConfig,
	logger *zap.Logger,
) (*Fetcher, error) {
	if source == nil {
		return nil, errors.New("catalog source is required")
	}
	if store == nil {
		return nil, errors.New("artifact store is required")
	}
	if cfg.CatalogURL == "" {
		return nil, errors.New("catalog url is required")
	}
	if cfg.Artifact.Object == "" {
		return nil, errors.New("artifact object is required")
	}
	if cfg.Artifact.ContentType == "" {
		cfg.Artifact.ContentType = "application/json"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		source:    source,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run performs one fetch-normalize-write cycle. The artifact is written only
// after every entry has been normalized; on failure any previous artifact is
// left as it was.
func (f *Fetcher) Run(ctx context.Context) Outcome {
	runID := newRunID()
	logger := f.logger.With(zap.String("run_id", runID))
	start := time.Now()

	out := f.run(ctx, runID, logger)
	out.Duration = time.Since(start)
	metrics.ObserveRun(string(StageFetch), outcomeLabel(out.Err), out.Duration)

	if out.Err != nil {
		logger.Error("Catalog fetch failed",
			zap.String("kind", string(catalog.KindOf(out.Err))),
			zap.Error(out.Err),
		)
		return out
	}
	logger.Info("Catalog fetch finished",
		zap.String("uri", out.Location),
		zap.Int("records", out.Records),
		zap.Duration("duration", out.Duration),
	)
	return out
}

func (f *Fetcher) run(ctx context.Context, runID string, logger *zap.Logger) Outcome {
	logger.Debug("Fetching catalog", zap.String("url", f.cfg.CatalogURL))
	resp, err := f.source.Fetch(ctx, catalog.FetchRequest{URL: f.cfg.CatalogURL})
	if err != nil {
		if catalog.KindOf(err) == catalog.KindInternal {
			err = catalog.TransportError("fetch catalog", err)
		}
		return failed(StageFetch, runID, err)
	}
	logger.Debug("Catalog downloaded",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("elapsed", resp.Duration),
	)

	entries, err := catalog.DecodeResponse(resp.Body)
	if err != nil {
		return failed(StageFetch, runID, err)
	}
	artifact, err := catalog.Normalize(entries)
	if err != nil {
		return failed(StageFetch, runID, err)
	}
	data, err := catalog.EncodeArtifact(artifact)
	if err != nil {
		return failed(StageFetch, runID, err)
	}

	uri, err := f.store.PutObject(ctx, f.cfg.Artifact.Object, f.cfg.Artifact.ContentType, data)
	if err != nil {
		return failed(StageFetch, runID, catalog.StorageError("write artifact", err))
	}
	digest := sha256.Digest(data)
	metrics.AddRecords(string(StageFetch), "normalized", len(artifact))
	metrics.SetArtifactBytes(len(data))
	logger.Debug("Artifact written", zap.String("uri", uri), zap.String("sha256", digest))

	f.notify(ctx, logger, catalog.ArtifactNotice{
		RunID:     runID,
		URI:       uri,
		Bucket:    f.cfg.Artifact.Bucket,
		Object:    f.cfg.Artifact.Object,
		Records:   len(artifact),
		SHA256:    digest,
		WrittenAt: f.now(),
	})

	return Outcome{
		Stage:    StageFetch,
		RunID:    runID,
		Status:   http.StatusOK,
		Message:  fmt.Sprintf("Dataset data saved to %s", uri),
		Location: uri,
		Records:  len(artifact),
	}
}

// notify publishes the notice when a topic is configured. The artifact is
// already durable at this point, so a publish failure is only logged.
func (f *Fetcher) notify(ctx context.Context, logger *zap.Logger, notice catalog.ArtifactNotice) {
	if f.publisher == nil || f.cfg.Topic == "" {
		return
	}
	id, err := f.publisher.Publish(ctx, f.cfg.Topic, notice)
	if err != nil {
		metrics.ObserveNotification("failed")
		logger.Warn("Failed to publish artifact notification",
			zap.String("topic", f.cfg.Topic),
			zap.Error(err),
		)
		return
	}
	metrics.ObserveNotification("published")
	logger.Debug("Artifact notification published",
		zap.String("topic", f.cfg.Topic),
		zap.String("message_id", id),
	)
}
