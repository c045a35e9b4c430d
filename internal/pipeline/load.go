package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gfw-catalog-pipeline/internal/catalog"
	"github.com/JakeFAU/gfw-catalog-pipeline/internal/metrics"
)

// LoaderConfig holds the artifact location and target table of the load stage.
type LoaderConfig struct {
	Artifact catalog.ArtifactLocation
	Table    string
}

// Loader upserts the current artifact into the datasets table.
type Loader struct {
	store    catalog.ArtifactStore
	datasets catalog.DatasetStore
	cfg      LoaderConfig
	logger   *zap.Logger
}

// NewLoader wires a Loader.
func NewLoader(
	store catalog.ArtifactStore,
	datasets catalog.DatasetStore,
	cfg LoaderConfig,
	logger *zap.Logger,
) (*Loader, error) {
	if store == nil {
		return nil, errors.New("artifact store is required")
	}
	if datasets == nil {
		return nil, errors.New("dataset store is required")
	}
	if cfg.Artifact.Object == "" {
		return nil, errors.New("artifact object is required")
	}
	if cfg.Table == "" {
		cfg.Table = "datasets"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		store:    store,
		datasets: datasets,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Run reads the artifact and upserts every valid record in one transaction.
// Records missing a name or coverage are skipped with a warning; any other
// failure rolls the whole batch back.
func (l *Loader) Run(ctx context.Context) Outcome {
	runID := newRunID()
	logger := l.logger.With(zap.String("run_id", runID))
	start := time.Now()

	out := l.run(ctx, runID, logger)
	out.Duration = time.Since(start)
	metrics.ObserveRun(string(StageLoad), outcomeLabel(out.Err), out.Duration)

	if out.Err != nil {
		logger.Error("Dataset load failed",
			zap.String("kind", string(catalog.KindOf(out.Err))),
			zap.Error(out.Err),
		)
		return out
	}
	logger.Info("Dataset load finished",
		zap.String("table", l.cfg.Table),
		zap.Int("upserted", out.Upserted),
		zap.Int("skipped", out.Skipped),
		zap.Duration("duration", out.Duration),
	)
	return out
}

func (l *Loader) run(ctx context.Context, runID string, logger *zap.Logger) Outcome {
	data, err := l.store.GetObject(ctx, l.cfg.Artifact.Object)
	if err != nil {
		return failed(StageLoad, runID, catalog.StorageError("read artifact", err))
	}
	artifact, err := catalog.DecodeArtifact(data)
	if err != nil {
		return failed(StageLoad, runID, err)
	}
	logger.Debug("Artifact read", zap.Int("records", len(artifact)), zap.Int("bytes", len(data)))

	var upserted, skipped int
	err = l.datasets.WithinTx(ctx, func(ctx context.Context, w catalog.DatasetWriter) error {
		upserted, skipped = 0, 0
		for i, rec := range artifact {
			if !rec.Valid() {
				skipped++
				logger.Warn("Skipping record with missing fields",
					zap.Int("index", i),
					zap.String("dataset_name", rec.DatasetName),
					zap.String("geographic_coverage", rec.GeographicCoverage),
				)
				continue
			}
			if err := w.UpsertDataset(ctx, rec); err != nil {
				return err
			}
			upserted++
		}
		return nil
	})
	if err != nil {
		if catalog.KindOf(err) == catalog.KindInternal {
			err = catalog.DatabaseError("load datasets", err)
		}
		return failed(StageLoad, runID, err)
	}
	metrics.AddRecords(string(StageLoad), "upserted", upserted)
	metrics.AddRecords(string(StageLoad), "skipped", skipped)

	return Outcome{
		Stage:    StageLoad,
		RunID:    runID,
		Status:   http.StatusOK,
		Message:  fmt.Sprintf("Loaded %d datasets into %s (%d skipped)", upserted, l.cfg.Table, skipped),
		Records:  len(artifact),
		Upserted: upserted,
		Skipped:  skipped,
	}
}
