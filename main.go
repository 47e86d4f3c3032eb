package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"lexibrief/internal/api"
	"lexibrief/internal/config"
	"lexibrief/internal/extract"
	"lexibrief/internal/logging"
	"lexibrief/internal/pipeline"
	"lexibrief/internal/service/summarizer"
	"lexibrief/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv(config.EnvConfigPath))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		Workers:   cfg.Server.Workers,
		QueueSize: cfg.Server.QueueSize,
	})
	defer dispatcher.Stop()

	extractor, err := extract.NewExtractor(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("init pdf extractor")
	}

	// A failed engine leaves the UI up; requests report the engine as unavailable.
	summarizerService, err := summarizer.Initialize(ctx, cfg, dispatcher)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load summarizer")
	}

	controller := pipeline.New(extractor, summarizerService, pipeline.Options{
		MaxBytes:         cfg.Upload.MaxBytes,
		TempDir:          cfg.Upload.TempDir,
		ExcerptChars:     cfg.Upload.ExcerptChars,
		MinLength:        cfg.Summarizer.MinLength,
		MaxLength:        cfg.Summarizer.MaxLength,
		InferenceTimeout: time.Duration(cfg.Server.InferenceTimeoutSeconds) * time.Second,
	})
	pipeline.StartTempFileCleaner(ctx, cfg.Upload.TempDir, pipeline.DefaultTempFileCleanupInterval, pipeline.DefaultStaleTempFileAge)

	logo, err := api.LoadLogo(cfg.Assets.LogoPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.Assets.LogoPath).Msg("header logo unavailable")
	}

	handlers := api.NewHandler(controller, summarizerService, api.Options{
		MaxUploadBytes:     cfg.Upload.MaxBytes,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		Logo:               logo,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(logging.GinLogger(), gin.Recovery())
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.Address).Msg("lexibrief listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}
