package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"eve-jita-price/internal/api"
	"eve-jita-price/internal/bot"
	"eve-jita-price/internal/config"
	"eve-jita-price/internal/db"
	"eve-jita-price/internal/engine"
	"eve-jita-price/internal/esi"
	"eve-jita-price/internal/inquiry"
	"eve-jita-price/internal/logger"
	"eve-jita-price/internal/report"
	"eve-jita-price/internal/sde"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "YAML config file")
	query := flag.String("query", "", "price one item name and exit")
	command := flag.String("command", "", "price command for -query (default: first configured)")
	flag.Parse()

	logger.Banner(version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Config", fmt.Sprintf("Failed to load config: %v", err))
		os.Exit(1)
	}
	if err := logger.Setup(cfg.Log.Env, cfg.Log.Level); err != nil {
		logger.Error("Config", fmt.Sprintf("Bad log settings: %v", err))
		os.Exit(1)
	}
	defer logger.Sync()

	var settings api.SettingsStore
	if cfg.DBPath != "" {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
			os.Exit(1)
		}
		defer database.Close()
		cfg = database.LoadConfig(cfg)
		settings = database
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := sde.NewStore(cfg.TypesPath, cfg.PreDecompression)
	if err := store.Preload(ctx); err != nil {
		logger.Error("Catalog", fmt.Sprintf("Cannot start without item data: %v", err))
		os.Exit(1)
	}
	if store.Eager() {
		logger.Stats("Item types", store.Size())
	}

	esiClient := esi.NewClient(esi.Options{
		BaseURL:     cfg.ESI.BaseURL,
		Concurrency: cfg.ESI.Concurrency,
		Timeout:     cfg.ESI.Timeout,
		Retry:       esi.RetryPolicy{Attempts: cfg.ESI.RetryAttempts, Delay: cfg.ESI.RetryDelay},
	})
	svc := inquiry.NewService(
		store,
		engine.NewQuoter(esiClient),
		report.NewFormatter(cfg.ReportLanguage),
		inquiry.OptionsFrom(cfg),
	)

	if *query != "" {
		os.Exit(runOnce(ctx, cfg, svc, *command, *query))
	}

	if cfg.Telegram.Token == "" && cfg.HTTP.Addr == "" {
		logger.Warn("Main", "Neither telegram.token nor http.addr is set, nothing to run")
		os.Exit(1)
	}

	logger.Section("Services")
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Telegram.Token != "" {
		b, err := bot.New(gctx, cfg.Telegram.Token, cfg.PriceCommands, svc)
		if err != nil {
			logger.Error("Bot", fmt.Sprintf("Failed to start: %v", err))
			os.Exit(1)
		}
		g.Go(func() error { return b.Run(gctx) })
	}
	if cfg.HTTP.Addr != "" {
		srv := api.NewServer(cfg, store, svc, esiClient, settings)
		g.Go(func() error { return srv.ListenAndServe(gctx, cfg.HTTP.Addr) })
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("Main", "Stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Main", "Shut down")
}

// runOnce prices a single query and prints the report.
func runOnce(ctx context.Context, cfg *config.Config, svc *inquiry.Service, command, query string) int {
	if command == "" {
		command = cfg.PriceCommands[0].Command
	}
	region, ok := cfg.Location(command)
	if !ok {
		logger.Error("Main", fmt.Sprintf("Unknown command %q", command))
		return 2
	}

	reply, err := svc.Ask(ctx, inquiry.Request{Command: command, RegionID: region, Text: query})
	if reply.Preface != "" {
		fmt.Println(reply.Preface)
	}
	fmt.Println(reply.Text)
	if err != nil {
		logger.Error("Main", "Inquiry failed", zap.Error(err))
		return 1
	}
	return 0
}
