package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ndelvaux/jurisnote/internal/api"
	"github.com/ndelvaux/jurisnote/internal/chapters"
	"github.com/ndelvaux/jurisnote/internal/config"
	"github.com/ndelvaux/jurisnote/internal/match"
	"github.com/ndelvaux/jurisnote/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := match.NewOllamaClient(cfg.OllamaURL)
	stats := match.NewLLMStats(time.Hour)

	newMatcher := func(model string) pipeline.Matcher {
		if model == "" {
			model = cfg.OllamaModel
		}
		return match.NewEngine(client, match.Config{
			Model:           model,
			MaxRetries:      cfg.MatchMaxRetries,
			AttemptTimeout:  cfg.MatchAttemptTimeout,
			BodyPrefixRunes: cfg.MatchBodyPrefixChars,
		}, stats, log)
	}

	orch := pipeline.NewOrchestrator(pipeline.Config{
		SessionTTL:      cfg.SessionTTL,
		SessionDeadline: cfg.SessionDeadline,
		ExtractOptions:  chapters.Options{MinTitleFontSize: cfg.MinTitleFontSize},
	}, newMatcher, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, client, stats, log, cfg)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		client.Close()
	}()

	log.Info("starting jurisnote", "port", cfg.Port, "model", cfg.OllamaModel, "ollama", cfg.OllamaURL)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
