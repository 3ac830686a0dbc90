package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DevRickLin/social-reactor/internal/api"
	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/biz/usecase"
	"github.com/DevRickLin/social-reactor/internal/conf"
	"github.com/DevRickLin/social-reactor/internal/data"
	"github.com/DevRickLin/social-reactor/internal/infra/feishu"
	"github.com/DevRickLin/social-reactor/internal/infra/news"
	"github.com/DevRickLin/social-reactor/internal/infra/openai"
	"github.com/DevRickLin/social-reactor/internal/infra/x"
	"github.com/DevRickLin/social-reactor/internal/logging"
	"github.com/DevRickLin/social-reactor/internal/service"
)

func main() {
	// Load .env file
	envErr := godotenv.Load()

	// Load configuration
	cfg, err := conf.LoadFromEnv()
	if err != nil {
		logging.Error().Err(err).Msg("[Agent] Failed to load config")
		os.Exit(1)
	}

	level := cfg.Log.Level
	if cfg.Debug {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: cfg.Log.Format})

	if envErr != nil {
		logging.Info().Msg("[Agent] No .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		logging.Error().Err(err).Msg("[Agent] Invalid config")
		os.Exit(1)
	}

	// Initialize clients; a platform without credentials stays nil
	clients := data.Clients{}
	if cfg.HasX() {
		clients.X = x.NewClient(x.Config{
			BaseURL:           cfg.X.BaseURL,
			ClientID:          cfg.X.ClientID,
			ClientSecret:      cfg.X.ClientSecret,
			AccessToken:       cfg.X.AccessToken,
			RefreshToken:      cfg.X.RefreshToken,
			UserID:            cfg.X.UserID,
			RequestsPerMinute: cfg.X.RequestsPerMinute,
		})
		logging.Info().Msg("[Agent] X client enabled")
	}
	if cfg.News.APIKey != "" {
		clients.News = news.NewClient(cfg.News.BaseURL, cfg.News.APIKey, cfg.News.Language)
		logging.Info().Msg("[Agent] News client enabled")
	}
	if cfg.HasFeishu() {
		clients.Feishu = feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
		logging.Info().Msg("[Agent] Feishu client enabled")
	}
	if cfg.LLM.APIKey != "" || cfg.LLM.BaseURL != "" {
		clients.LLM = openai.NewClient(openai.Config{
			APIKey:    cfg.LLM.APIKey,
			BaseURL:   cfg.LLM.BaseURL,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
			Timeout:   cfg.LLM.Timeout,
		})
		logging.Info().Str("model", clients.LLM.Model()).Msg("[Agent] Generator enabled")
	}

	// Initialize repository layer
	repos, err := data.NewRepositories(clients, cfg.Store.DBPath, cfg.Feishu.ChatID, data.GeneratorOptions{
		SystemPrompt: cfg.Agent.Generator.SystemPrompt,
		LastLineOnly: cfg.Agent.LastLineOnly(),
	})
	if err != nil {
		logging.Error().Err(err).Msg("[Agent] Failed to create repositories")
		os.Exit(1)
	}
	logging.Info().Str("path", cfg.Store.DBPath).Msg("[Agent] Watermark store opened")

	// Initialize usecase layer
	reactionUC := usecase.NewReactionUsecase(repos.Generator, repos.Outbound)
	streamUC := usecase.NewStreamUsecase(cfg.Agent.Prefix, repos.Watermarks, repos.Feeds, reactionUC)

	// Initialize scheduler
	jobs, err := cfg.Agent.BuildJobSpecs()
	if err != nil {
		logging.Error().Err(err).Msg("[Agent] Invalid jobs")
		os.Exit(1)
	}

	scheduler := service.NewScheduler(service.WithRunOnStart(cfg.RunOnStart))
	for _, job := range jobs {
		if err := scheduler.Register(job.Name, job.Interval, streamUC.Handler(job)); err != nil {
			logging.Error().Err(err).Msg("[Agent] Failed to register job")
			os.Exit(1)
		}
	}

	// Initialize HTTP API server
	outbound := repos.Outbound[domain.PlatformX]
	apiServer := api.NewServer(outbound, scheduler, repos.Watermarks, cfg.Agent.Prefix, cfg.API.Addr)
	go func() {
		if err := apiServer.Start(); err != nil {
			logging.Error().Err(err).Msg("[Agent] API server error")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx)

	logging.Info().
		Str("prefix", cfg.Agent.Prefix).
		Int("jobs", len(jobs)).
		Str("api", cfg.API.Addr).
		Msg("[Agent] Running")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logging.Info().Msg("[Agent] Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("[Agent] API server shutdown")
	}

	cancel()
	scheduler.Stop()

	if err := repos.Close(); err != nil {
		logging.Warn().Err(err).Msg("[Agent] Failed to close watermark store")
	}
	logging.Info().Msg("[Agent] Stopped")
}
