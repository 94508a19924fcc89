package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"signal-trackers/internal/pipeline/config"
	"signal-trackers/internal/pipeline/repository"
	"signal-trackers/internal/pipeline/service"
	"signal-trackers/pkg/logger"
	"signal-trackers/pkg/mailer"
	"signal-trackers/pkg/postgres"
	"signal-trackers/pkg/telegram"

	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the signal pipeline service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Signal Pipeline Service", logger.Field("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize repositories
	indicatorRepo := repository.NewIndicatorRepository(db.DB)
	regimeRepo := repository.NewRegimeRepository(db.DB)
	summaryRepo := repository.NewAISummaryRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)
	alertRepo := repository.NewAlertRepository(db.DB)
	portfolioRepo := repository.NewPortfolioRepository(db.DB)
	fredRepo := repository.NewFREDRepository(cfg, appLogger)
	yahooRepo := repository.NewYahooFinanceRepository(cfg, appLogger)
	kalshiRepo := repository.NewKalshiRepository(cfg, appLogger)
	tavilyRepo := repository.NewTavilyRepository(cfg, appLogger)

	var modelRepo repository.ModelClient
	maxTokens := cfg.OpenAI.MaxTokens
	switch cfg.AI.Provider {
	case "anthropic":
		modelRepo = repository.NewAnthropicRepository(cfg, appLogger)
		maxTokens = cfg.Anthropic.MaxTokens
	default:
		modelRepo = repository.NewOpenAIRepository(cfg, appLogger)
	}
	appLogger.Info("AI narrative back-end selected",
		logger.StringField("provider", modelRepo.Provider()),
		logger.StringField("model", modelRepo.Model()))

	// Initialize outbound channels
	sender := mailer.NewSender(mailer.Config{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		FromAddress: cfg.SMTP.FromAddress,
		FromName:    cfg.SMTP.FromName,
	})

	var notifier telegram.Notifier = telegram.NoopNotifier{}
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	}

	// Initialize services
	storeSvc := service.NewStoreService(indicatorRepo, appLogger)
	ingesterSvc := service.NewIngesterService(cfg, indicatorRepo, fredRepo, yahooRepo, appLogger)
	regimeSvc := service.NewRegimeService(storeSvc, regimeRepo, notifier, appLogger)
	summarySvc := service.NewSummaryService(storeSvc, regimeSvc, summaryRepo, modelRepo, tavilyRepo, maxTokens, appLogger)
	alertSvc := service.NewAlertService(storeSvc, userRepo, alertRepo, appLogger)
	dispatchSvc := service.NewDispatchService(alertRepo, userRepo, sender, notifier, appLogger)
	briefingSvc := service.NewBriefingService(storeSvc, regimeSvc, summarySvc, userRepo, alertRepo, portfolioRepo, kalshiRepo, sender, appLogger, nil)

	schedulerSvc := service.NewSchedulerService(cfg.Scheduler.WorkerPoolSize, cfg.Scheduler.MisfireGrace, appLogger)

	jobs := []service.Job{
		{
			Name: "ingest_and_refresh",
			Spec: cfg.Scheduler.IngestCron,
			Run: func(ctx context.Context) error {
				if _, err := ingesterSvc.IngestAll(ctx); err != nil {
					return err
				}
				if _, err := regimeSvc.Update(ctx); err != nil {
					return err
				}
				if _, err := summarySvc.GenerateDaily(ctx); err != nil {
					appLogger.ErrorContext(ctx, "Daily narrative generation failed", logger.ErrorField(err))
				}
				return nil
			},
		},
		{
			Name: "check_alerts",
			Spec: cfg.Scheduler.AlertCron,
			Run: func(ctx context.Context) error {
				if _, err := alertSvc.CheckAlerts(ctx); err != nil {
					return err
				}
				_, err := dispatchSvc.DispatchPending(ctx)
				return err
			},
		},
		{
			Name: "daily_briefings",
			Spec: cfg.Scheduler.BriefingCron,
			Run: func(ctx context.Context) error {
				_, err := briefingSvc.ComposeAndSend(ctx)
				return err
			},
		},
	}
	for _, job := range jobs {
		if err := schedulerSvc.Register(job); err != nil {
			appLogger.Fatal("Failed to register job",
				logger.StringField("job", job.Name), logger.ErrorField(err))
		}
	}

	schedulerSvc.Start(ctx)

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down pipeline service...")
	schedulerSvc.Stop()
	appLogger.Info("Pipeline service exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "pipeline-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-pipeline.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing pipeline-service CLI: %s\n", err)
		os.Exit(1)
	}
}
