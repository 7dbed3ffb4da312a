package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinsim/platform/pkg/analytics"
	"github.com/clinsim/platform/pkg/common/config"
	"github.com/clinsim/platform/pkg/common/database"
	"github.com/clinsim/platform/pkg/common/kafka"
	"github.com/clinsim/platform/pkg/common/logger"
	"github.com/clinsim/platform/pkg/investigation"
	"github.com/clinsim/platform/pkg/reference"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := investigation.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate investigation tables")
	}

	library := reference.Default()
	if cfg.ReferenceLibraryPath != "" {
		sources := append(reference.BuiltinSources(), reference.FileSource(cfg.ReferenceLibraryPath))
		library = reference.New(sources...)
	}
	if err := library.Load(); err != nil {
		logger.Log.WithError(err).Fatal("failed to load reference library")
	}

	var sink analytics.Sink = analytics.LogSink{}
	if len(cfg.KafkaBrokers) > 0 && os.Getenv("KAFKA_BROKERS") != "" {
		sink = kafka.NewProducer(cfg.AnalyticsTopic)
	}
	emitter := analytics.NewEmitter(sink, cfg.AnalyticsBufferSize)

	service := investigation.NewService(repo, library, emitter)
	if os.Getenv("REDIS_HOST") != "" {
		service = service.WithIdempotencyGuard(database.GetRedis(), cfg.IdempotencyKeyTTL)
	}
	handler := investigation.NewHandler(service, library)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1/investigations").Subrouter()
	handler.Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Investigation service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start investigation service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down investigation service...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("investigation service forced to shutdown")
	}
	if err := emitter.Close(); err != nil {
		logger.Log.WithError(err).Error("failed to flush analytics events")
	}
	logger.Log.Info("Investigation service stopped")
}
