package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"product-variant-service/internal/api"
	"product-variant-service/internal/config"
	"product-variant-service/internal/draft"
	"product-variant-service/internal/logger"
	"product-variant-service/internal/media"
	"product-variant-service/internal/metrics"
	"product-variant-service/internal/store"
	"product-variant-service/internal/variant"
)

const serviceName = "ProductVariantService"

func main() {
	// A missing .env is fine; the environment may be set some other way.
	envErr := godotenv.Load()

	// --- Configuration Loading ---
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString("FATAL: loading configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Encoding:    cfg.LogEncoding,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		_, _ = os.Stderr.WriteString("FATAL: building logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", serviceName))
	zap.ReplaceGlobals(log)
	if envErr != nil {
		log.Info(".env file not found, relying on system environment")
	}
	log.Info("configuration loaded", zap.String("app_env", cfg.AppEnv), zap.String("media_backend", cfg.Media.Backend))

	pricingDefaults, err := cfg.Pricing.Defaults()
	if err != nil {
		log.Fatal("invalid pricing defaults", zap.Error(err))
	}

	// --- Database Connection ---
	db, err := sqlx.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		log.Fatal("failed to initialize database connection", zap.Error(err))
	}
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		log.Fatal("failed to ping database", zap.Error(err))
	}
	log.Info("database connection established")
	dbStore := store.NewPostgresStore(db)

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// --- Media Storage ---
	uploader, closeUploader, err := newUploader(cfg.Media)
	if err != nil {
		log.Fatal("failed to initialize media storage", zap.Error(err))
	}

	// --- Variant Engine & Drafts ---
	engine := variant.NewEngine(pricingDefaults,
		variant.WithEngineLogger(log.Named("engine")),
		variant.WithMaxCombinations(cfg.Draft.MaxCombinations),
	)
	policy := variant.NewPolicy(engine, log.Named("policy"), m)
	drafts, err := draft.NewRegistry(draft.Deps{
		Policy:   policy,
		Uploader: uploader,
		Products: dbStore,
		UploadLimits: media.Limits{
			MaxBytes:    cfg.Media.MaxUploadBytes,
			Concurrency: cfg.Media.UploadConcurrency,
		},
		ConfirmTimeout: cfg.Draft.ConfirmTimeout,
		Logger:         log.Named("draft"),
		Metrics:        m,
	}, cfg.Draft.MaxDrafts)
	if err != nil {
		log.Fatal("failed to initialize drafts", zap.Error(err))
	}

	// --- Initialize API Handlers ---
	httpAPIHandler := api.NewHTTPHandler(drafts, dbStore, log.Named("http"),
		api.WithHealthCheck(func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return dbStore.Ping(ctx)
		}),
		api.WithMultipartMemory(cfg.Media.MaxUploadBytes),
	)
	grpcAPIHandler := api.NewGRPCHandler(engine, log.Named("grpc"))

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, log)
	httpRouter.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if cfg.Media.Backend == config.MediaBackendLocal {
		httpRouter.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.Media.LocalDir))))
	}
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("port", cfg.HttpServer.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server ListenAndServe error", zap.Error(err))
		}
		log.Info("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer := setupGRPCServer(log, grpcAPIHandler)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		log.Fatal("failed to listen for gRPC", zap.String("port", cfg.GrpcServer.Port), zap.Error(err))
	}

	go func() {
		log.Info("gRPC server listening", zap.String("port", cfg.GrpcServer.Port))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Fatal("gRPC server Serve error", zap.Error(err))
		}
		log.Info("gRPC server has stopped")
	}()

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(log, httpServer, grpcServer, func() {
		if err := closeUploader(); err != nil {
			log.Warn("error closing media storage", zap.Error(err))
		}
		if err := dbStore.Close(); err != nil {
			log.Warn("error closing database connection", zap.Error(err))
		}
	}, shutdownComplete)

	<-shutdownComplete // Block until graceful shutdown is complete
	log.Info("service shutdown sequence finished")
}

// newUploader picks the media backend. The returned close func releases the
// backend's client.
func newUploader(cfg config.MediaConfig) (media.Uploader, func() error, error) {
	switch cfg.Backend {
	case config.MediaBackendGCS:
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		up, err := media.NewGCSUploader(context.Background(), cfg.Bucket, cfg.BaseURL, cfg.Prefix, opts...)
		if err != nil {
			return nil, nil, err
		}
		return up, up.Close, nil
	default:
		up, err := media.NewLocalUploader(cfg.LocalDir, cfg.BaseURL, cfg.Prefix)
		if err != nil {
			return nil, nil, err
		}
		return up, func() error { return nil }, nil
	}
}

func setupBaseMiddleware(router *chi.Mux, log *zap.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logger.RequestLogger(log.Named("access")))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(5 * time.Minute)) // drafts may wait on uploads
}

// unaryLogger logs every RPC with its code and latency.
func unaryLogger(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{zap.String("method", info.FullMethod), zap.Duration("latency", time.Since(start))}
		if err != nil {
			log.Warn("rpc failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("rpc completed", fields...)
		}
		return resp, err
	}
}

func setupGRPCServer(log *zap.Logger, grpcAPIHandler *api.GRPCHandler) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(log.Named("rpc"))))

	s.RegisterService(&api.PreviewServiceDesc, grpcAPIHandler)
	log.Info("VariantPreview gRPC service registered")

	// Register gRPC Health Checking Protocol service.
	grpc_health_v1.RegisterHealthServer(s, health.NewServer())

	// Enable gRPC server reflection (useful for tools like grpcurl).
	reflection.Register(s)

	return s
}

func waitForShutdown(
	log *zap.Logger,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	closeResources func(),
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete) // Ensure channel is closed when function exits

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	receivedSignal := <-sigChan
	log.Info("received signal, starting graceful shutdown", zap.String("signal", receivedSignal.String()))

	// Create a context with a timeout for the shutdown process.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		log.Info("HTTP server gracefully shut down")
	}

	// Wait for gRPC to finish shutting down or timeout
	select {
	case <-stoppedGrpc:
		log.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		log.Warn("gRPC server graceful shutdown timed out, forcing stop", zap.Error(shutdownCtx.Err()))
		grpcServer.Stop()
	}

	closeResources()
	log.Info("graceful shutdown sequence completed")
}
