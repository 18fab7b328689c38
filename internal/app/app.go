package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expertdir/apps/recommender/features/job"
	"expertdir/apps/recommender/features/stats"
	"expertdir/apps/recommender/internal/config"
	"expertdir/apps/recommender/internal/index"
	"expertdir/apps/recommender/internal/keywords"
	"expertdir/apps/recommender/internal/llm"
	"expertdir/apps/recommender/internal/middleware"
	"expertdir/apps/recommender/internal/prompt"
	"expertdir/apps/recommender/internal/recommend"
	"expertdir/apps/recommender/internal/rpc"
	"expertdir/apps/recommender/internal/scheduler"
	"expertdir/apps/recommender/internal/settings"
	"expertdir/apps/recommender/internal/translation"
	"expertdir/apps/recommender/internal/worker"
)

type App struct {
	Handler    http.Handler
	Dispatcher *rpc.Dispatcher
	Index      *index.Service
	Refresher  *scheduler.Refresher
	Jobs       *job.Service
	Settings   *settings.Service

	cfg       *config.Config
	deps      *Dependencies
	engine    *recommend.Engine
	queryLog  *recommend.QueryLogger
	scheduler *scheduler.Scheduler
	consumer  *nsq.Consumer
}

func New(cfg *config.Config, deps *Dependencies) (*App, error) {
	lib, err := prompt.Load(cfg.PromptFile)
	if err != nil {
		return nil, err
	}

	client := llm.NewClient(deps.Generator,
		llm.WithMaxAttempts(cfg.LLMMaxAttempts),
		llm.WithRetryDelay(time.Duration(cfg.LLMRetryDelayMillis)*time.Millisecond),
	)
	tr := translation.New(deps.Translation,
		translation.WithLimits(cfg.TranslateCharLimit, cfg.TranslateChunkLimit),
		translation.WithCache(time.Duration(cfg.TranslateCacheMinutes)*time.Minute),
	)
	idx := index.NewService(deps.Store, deps.Embedder, tr, cfg.IndexLanguage)

	var ranker keywords.Ranker = keywords.NewEmbeddingRanker(deps.Embedder)
	if cfg.KeywordRanker == "rerank" && deps.Reranker != nil {
		ranker = keywords.NewRerankRanker(deps.Reranker)
	}
	extractor := keywords.NewExtractor(tr, client, lib, ranker, cfg.KeywordLanguage,
		keywords.WithParagraphSize(cfg.KeywordParagraphSize),
		keywords.WithTopN(cfg.KeywordTopN),
	)

	queryLog, err := recommend.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLog = recommend.NewQueryLogger(os.Stdout)
	}
	engine := recommend.NewEngine(tr, client, lib, idx, queryLog, recommend.Config{
		WorkingLanguage: cfg.IndexLanguage,
		DisplayLanguage: cfg.DisplayLanguage,
		Neighbors:       cfg.RecommendNeighbors,
		MaxDistance:     cfg.RecommendMaxDistance,
		MaxExperts:      cfg.RecommendMaxExperts,
	})

	// Feature: Job
	var (
		jobService *job.Service
		jobCounter stats.JobRepo
		opts       []rpc.Option
	)
	if deps.DB != nil {
		jobRepo := job.NewPostgresRepo(deps.DB)
		jobService = job.NewService(jobRepo, nil, slog.Default())
		jobCounter = jobRepo
		opts = append(opts, rpc.WithJournal(jobService))
	}

	d := rpc.NewDispatcher(rpc.NewTable(extractor, engine, idx), cfg.QueueSize, opts...)
	if jobService != nil {
		jobService.SetCaller(d)
	}

	// Feature: Settings
	var settingsService *settings.Service
	if deps.DB != nil {
		settingsService = settings.NewService(settings.NewPostgresRepo(deps.DB), &engineLimits{engine: engine, dispatcher: d})
	}

	refresher := scheduler.NewRefresher(deps.Records, idx, d)
	var sched *scheduler.Scheduler
	if cfg.EnableRefresh {
		sched, err = scheduler.New(cfg.RefreshSchedule, refresher)
		if err != nil {
			_ = queryLog.Close()
			return nil, err
		}
	}

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+middleware.CorrelationHeader)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	statsHandler := stats.NewHandler(idx, jobCounter, d)
	rpcHandler := rpc.NewHTTPHandler(d)

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /rpc", middleware.CorrelationID(enableCORS(rpcHandler.ServeHTTP)))
	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))
	if jobService != nil {
		jobHandler := job.NewHandler(jobService)
		mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
		mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))
		mux.Handle("DELETE /jobs/{id}", middleware.CorrelationID(enableCORS(jobHandler.Discard)))
	}
	if settingsService != nil {
		settingsHandler := settings.NewHandler(settingsService)
		mux.Handle("GET /settings", middleware.CorrelationID(enableCORS(settingsHandler.GetSettings)))
		mux.Handle("PUT /settings", middleware.CorrelationID(enableCORS(settingsHandler.UpdateSettings)))
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "state": d.State().String()})
	})

	return &App{
		Handler:    mux,
		Dispatcher: d,
		Index:      idx,
		Refresher:  refresher,
		Jobs:       jobService,
		Settings:   settingsService,
		cfg:        cfg,
		deps:       deps,
		engine:     engine,
		queryLog:   queryLog,
		scheduler:  sched,
	}, nil
}

// Initialize fills an empty index from the system of record, then starts
// serving requests from NSQ and the refresh schedule.
func (a *App) Initialize(ctx context.Context) error {
	n, err := a.Index.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting index: %w", err)
	}
	if n == 0 {
		slog.InfoContext(ctx, "index is empty, populating from system of record")
		if err := a.Refresher.Populate(ctx); err != nil {
			return fmt.Errorf("initial population: %w", err)
		}
	} else {
		slog.InfoContext(ctx, "index already populated", "snippets", n)
	}

	if a.Settings != nil {
		limits := a.engine.Limits()
		set, err := a.Settings.Load(ctx, settings.Settings{
			Neighbors:   limits.Neighbors,
			MaxDistance: limits.MaxDistance,
			MaxExperts:  limits.MaxExperts,
		})
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "recommendation settings loaded", "neighbors", set.Neighbors, "max_distance", set.MaxDistance, "max_experts", set.MaxExperts)
	}

	a.Dispatcher.Start()

	if a.cfg.EnableNSQ && a.deps.NSQProducer != nil {
		if err := a.startConsumer(); err != nil {
			return err
		}
	}

	if a.scheduler != nil {
		a.scheduler.Start()
	}
	return nil
}

func (a *App) startConsumer() error {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = 1

	consumer, err := nsq.NewConsumer(config.TopicRPCRequest, config.ChannelRecommender, nsqCfg)
	if err != nil {
		return fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.SetLoggerLevel(nsq.LogLevelWarning)
	consumer.AddHandler(worker.NewRequestConsumer(a.Dispatcher, a.deps.NSQProducer))

	if a.cfg.NSQLookupd != "" {
		err = consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd)
	} else {
		err = consumer.ConnectToNSQD(a.cfg.NSQDHost)
	}
	if err != nil {
		return fmt.Errorf("nsq connect error: %w", err)
	}
	a.consumer = consumer
	slog.Info("consuming rpc requests", "topic", config.TopicRPCRequest, "channel", config.ChannelRecommender)
	return nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops intake first, then drains queued requests before releasing
// the backends.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.consumer != nil {
		a.consumer.Stop()
		select {
		case <-a.consumer.StopChan:
		case <-ctx.Done():
		}
	}
	if a.scheduler != nil {
		if err := a.scheduler.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.Dispatcher.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.queryLog.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.deps.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// engineLimits applies settings to the engine. Once the dispatcher serves
// requests the change is queued between them.
type engineLimits struct {
	engine     *recommend.Engine
	dispatcher *rpc.Dispatcher
}

func (l *engineLimits) Apply(ctx context.Context, s settings.Settings) error {
	set := func(context.Context) error {
		l.engine.SetLimits(s.Neighbors, s.MaxDistance, s.MaxExperts)
		return nil
	}
	if l.dispatcher.State() == rpc.StateUninitialized {
		return set(ctx)
	}
	return l.dispatcher.Exec(ctx, set)
}
