// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/gfw-catalog-pipeline/internal/api"
	"github.com/JakeFAU/gfw-catalog-pipeline/internal/catalog"
	"github.com/JakeFAU/gfw-catalog-pipeline/internal/config"
	collyfetcher "github.com/JakeFAU/gfw-catalog-pipeline/internal/fetcher/colly"
	"github.com/JakeFAU/gfw-catalog-pipeline/internal/logging"
	"github.com/JakeFAU/gfw-catalog-pipeline/internal/metrics"
	"github.com/JakeFAU/gfw-catalog-pipeline/internal/pipeline"
	gcppublisher "github.com/JakeFAU/gfw-catalog-pipeline/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/gfw-catalog-pipeline/internal/storage/gcs"
	localstorage "github.com/JakeFAU/gfw-catalog-pipeline/internal/storage/local"
	memorystorage "github.com/JakeFAU/gfw-catalog-pipeline/internal/storage/memory"
	pgstore "github.com/JakeFAU/gfw-catalog-pipeline/internal/storage/postgres"
)

// pinger is implemented by artifact stores that can check their backend.
type pinger interface {
	Ping(ctx context.Context) error
}

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	apiServer    *api.Server
	fetcher      *pipeline.Fetcher
	loader       *pipeline.Loader
	storage      *storage.Client
	pubsubClient *pubsub.Client
	publisher    *gcppublisher.Publisher
}

// Build creates the application's dependencies, including its logger.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger creates the application's dependencies around an existing logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}
	app.logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
	)
	metrics.Init()

	artifacts, err := setupStorage(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	datasets, err := setupDatabase(app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	location := catalog.ArtifactLocation{
		Bucket:      cfg.Storage.Bucket,
		Object:      cfg.Storage.Object,
		ContentType: cfg.Storage.ContentType,
	}
	source := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.Catalog.UserAgent,
		Timeout:      cfg.CatalogTimeout(),
		MaxBodyBytes: cfg.Catalog.MaxBodyBytes,
	})
	app.logger.Info("using colly catalog fetcher",
		zap.String("url", cfg.Catalog.URL),
		zap.String("user_agent", cfg.Catalog.UserAgent),
	)

	app.fetcher, err = pipeline.NewFetcher(source, artifacts, publisher, pipeline.FetcherConfig{
		CatalogURL: cfg.Catalog.URL,
		Artifact:   location,
		Topic:      cfg.PubSub.TopicName,
	}, logger.Named("fetcher"))
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("fetcher init failed: %w", err)
	}
	app.loader, err = pipeline.NewLoader(artifacts, datasets, pipeline.LoaderConfig{
		Artifact: location,
		Table:    datasets.Table(),
	}, logger.Named("loader"))
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("loader init failed: %w", err)
	}

	opts := api.Options{RequestTimeout: cfg.RequestTimeout()}
	if p, ok := artifacts.(pinger); ok {
		opts.Ready = p.Ping
	}
	app.apiServer = api.NewServer(app.fetcher, app.loader, opts, logger.Named("api"))

	return app, nil
}

// Fetcher returns the fetch stage.
func (a *App) Fetcher() *pipeline.Fetcher {
	return a.fetcher
}

// Loader returns the load stage.
func (a *App) Loader() *pipeline.Loader {
	return a.loader
}

// Stage returns the runner for the named stage, or nil for an unknown stage.
func (a *App) Stage(stage pipeline.Stage) api.Runner {
	switch stage {
	case pipeline.StageFetch:
		return a.fetcher
	case pipeline.StageLoad:
		return a.loader
	default:
		return nil
	}
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Handler returns the HTTP handler serving both stages.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the HTTP server and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)
	if err := <-serveErr; err != nil {
		return fmt.Errorf("serve http: %w", err)
	}
	return closeErr
}

// Close releases clients held by the application.
func (a *App) Close(_ context.Context) error {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.publisher != nil {
		a.publisher.Stop()
		a.publisher = nil
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.pubsubClient = nil
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.storage = nil
	}
}

func setupStorage(ctx context.Context, app *App) (catalog.ArtifactStore, error) {
	cfg := app.cfg.Storage
	switch cfg.Backend {
	case config.BackendGCS:
		app.logger.Info("using GCS storage backend", zap.String("bucket", cfg.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs artifact store init failed: %w", err)
		}
		return store, nil
	case config.BackendLocal:
		app.logger.Info("using local storage backend", zap.String("path", cfg.Local.BaseDir))
		store, err := localstorage.New(localstorage.Config{BaseDir: cfg.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local artifact store init failed: %w", err)
		}
		return store, nil
	case config.BackendMemory:
		app.logger.Warn("using in-memory storage backend; artifacts do not survive restarts")
		return memorystorage.NewArtifactStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func setupDatabase(app *App) (*pgstore.DatasetStore, error) {
	db := app.cfg.Database
	if db.Host == "" || db.User == "" || db.Name == "" {
		app.logger.Warn("database parameters incomplete; load runs will fail until DB_HOST, DB_USER and DB_NAME are set")
	}
	store, err := pgstore.NewDatasetStore(pgstore.Config{
		Host:           db.Host,
		Port:           db.Port,
		User:           db.User,
		Password:       db.Password,
		Database:       db.Name,
		SSLMode:        db.SSLMode,
		Table:          db.Table,
		ConnectTimeout: app.cfg.ConnectTimeout(),
		Logger:         app.logger.Named("postgres"),
	})
	if err != nil {
		return nil, fmt.Errorf("dataset store init failed: %w", err)
	}
	app.logger.Info("dataset store initialized", zap.String("table", store.Table()))
	return store, nil
}

func setupPublisher(ctx context.Context, app *App) (catalog.Publisher, error) {
	ps := app.cfg.PubSub
	if ps.TopicName == "" || ps.ProjectID == "" {
		app.logger.Info("no Pub/Sub topic configured, artifact notifications disabled")
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, ps.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.publisher = gcppublisher.New(client)
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", ps.ProjectID),
		zap.String("topic", ps.TopicName),
	)
	return app.publisher, nil
}
