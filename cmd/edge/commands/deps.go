package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/edgefactory/internal/artifact"
	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/internal/events"
	"github.com/wonny/edgefactory/internal/features"
	"github.com/wonny/edgefactory/internal/feedback"
	"github.com/wonny/edgefactory/internal/guard"
	"github.com/wonny/edgefactory/internal/labeling"
	"github.com/wonny/edgefactory/internal/marketdata"
	"github.com/wonny/edgefactory/internal/ml"
	"github.com/wonny/edgefactory/internal/ranking"
	"github.com/wonny/edgefactory/internal/retrain"
	"github.com/wonny/edgefactory/internal/schema"
	"github.com/wonny/edgefactory/pkg/config"
	"github.com/wonny/edgefactory/pkg/database"
	"github.com/wonny/edgefactory/pkg/logger"
	"github.com/wonny/edgefactory/pkg/metrics"
)

// symbolProvider is a market data source that can also enumerate its universe.
type symbolProvider interface {
	contracts.MarketDataProvider
	Symbols(ctx context.Context) ([]string, error)
}

// deps is the wired application graph shared by all commands.
// ⭐ SSOT: 컴포넌트 조립은 이 파일에서만
type deps struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.DB // nil when running on CSV files

	provider  symbolProvider
	store     contracts.SignalStore
	artifacts *artifact.FileStore
	history   *artifact.FileOverfitHistory
	models    *artifact.Manager
	registry  *schema.Registry
	bus       *events.Bus
	recorder  *metrics.Recorder

	ranker   *ranking.Ranker
	runner   *retrain.Runner
	resolver *retrain.Resolver
}

// buildDeps loads config and wires every component. With --data-dir set the
// stack runs on CSV bars and an in-memory signal store, no database needed.
func buildDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	d := &deps{cfg: cfg, log: log}

	if cfg.MetricsEnabled {
		d.recorder = metrics.New()
	}

	// Model artifact storage is file-based in every mode.
	d.artifacts, err = artifact.NewFileStore(cfg.Learning.ModelDir, log)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	d.history, err = artifact.NewFileOverfitHistory(cfg.Learning.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("open overfit history: %w", err)
	}
	d.models = artifact.NewManager(d.artifacts, log)
	if err := d.models.Restore(); err != nil {
		return nil, fmt.Errorf("restore active model: %w", err)
	}
	d.registry = schema.NewRegistry(d.artifacts, log)
	d.bus = events.NewBus(log)

	// Market data and signal feedback storage.
	var baseStore contracts.SignalStore
	if dataDir != "" {
		log.WithField("dir", dataDir).Info("Using CSV market data (in-memory signal store)")
		d.provider = marketdata.NewCSVProvider(dataDir, log)
		baseStore = feedback.NewMemoryStore()
	} else {
		d.db, err = database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		log.Info("Connected to database")
		d.provider = marketdata.NewPostgresProvider(d.db.Pool, log)
		baseStore = feedback.NewPostgresStore(d.db.Pool)
	}

	onRetry := func() {}
	if d.recorder != nil {
		onRetry = d.recorder.RecordFeedRetry
	}
	d.store = feedback.NewRetryStore(baseStore,
		cfg.Ranking.FeedRetries, cfg.Ranking.FeedRetryDelay, onRetry, log)

	// Learning pipeline.
	extractor := features.NewExtractor(cfg.Learning.MinHistory, log)
	builder := labeling.NewBuilder(extractor,
		cfg.Learning.LookforwardHorizon,
		cfg.Learning.LongProfitThreshold,
		cfg.Learning.ShortProfitThreshold,
		log)
	trainer := ml.NewTrainer(cfg.Learning, log)
	g := guard.New(d.artifacts, d.history, d.bus, cfg.Learning.MaxTrainValGap, log)

	d.runner = retrain.NewRunner(cfg.Learning, cfg.Retrain.TrainingTimeout,
		d.provider, builder, extractor, d.registry, trainer, g,
		d.artifacts, d.models, d.recorder, log)

	d.ranker = ranking.NewRanker(cfg.Ranking, cfg.Learning.MinHistory,
		d.provider, extractor, d.models, d.store, d.bus, d.recorder, log)

	d.resolver = retrain.NewResolver(d.provider, d.store,
		cfg.Ranking.ResolveAfter,
		cfg.Learning.LongProfitThreshold,
		cfg.Learning.ShortProfitThreshold,
		log)

	return d, nil
}

// close releases the database pool and the event bus.
func (d *deps) close() {
	d.bus.Close()
	if d.db != nil {
		d.db.Close()
	}
}

// universe resolves the symbol list: the explicit flag value when given,
// otherwise everything the provider knows.
func (d *deps) universe(ctx context.Context, flagSymbols []string) ([]string, error) {
	if len(flagSymbols) > 0 {
		return flagSymbols, nil
	}
	symbols, err := d.provider.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols available, pass --symbols or load data first")
	}
	return symbols, nil
}

// startMetricsServer exposes Prometheus metrics when enabled. Returns a nil
// shutdown func when metrics are off.
func startMetricsServer(d *deps) func(context.Context) error {
	if !d.cfg.MetricsEnabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:        ":" + d.cfg.MetricsPort,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		d.log.WithField("port", d.cfg.MetricsPort).Info("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.log.WithError(err).Error("Metrics server failed")
		}
	}()

	return srv.Shutdown
}
