package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chrxmium/expense-bot/internal/application/agent"
	"github.com/chrxmium/expense-bot/internal/application/engine"
	"github.com/chrxmium/expense-bot/internal/config"
	"github.com/chrxmium/expense-bot/internal/export"
	"github.com/chrxmium/expense-bot/internal/infrastructure/external/openai"
	"github.com/chrxmium/expense-bot/internal/infrastructure/external/telegram"
	"github.com/chrxmium/expense-bot/internal/infrastructure/persistence/repository"
	"github.com/chrxmium/expense-bot/internal/infrastructure/query"
	httpserver "github.com/chrxmium/expense-bot/internal/interfaces/http"
	"github.com/chrxmium/expense-bot/internal/receipt"
	"github.com/chrxmium/expense-bot/pkg/database"
	"github.com/chrxmium/expense-bot/pkg/utils"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting expense bot",
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	userRepo := repository.NewUserRepository(db.DB, logger)
	expenseRepo := repository.NewExpenseRepository(db.DB, logger)
	whitelistRepo := repository.NewWhitelistRepository(db.DB, logger)
	sessionRepo := repository.NewSessionRepository(db.DB, logger)

	// Model collaborators
	prompts, err := openai.LoadPrompts(cfg.OpenAI.PromptsPath)
	if err != nil {
		logger.Fatal("Failed to load prompts", zap.Error(err))
	}
	extractor := openai.NewExtractor(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Timeout, prompts, logger)
	agentModel := openai.NewAgentModel(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Timeout, prompts, logger)

	executor := query.NewExecutor(db, logger)
	agentRunner := agent.New(agentModel, executor, cfg.Agent.MaxRetries, logger)

	exporter := export.NewService(expenseRepo, cfg.Export.OutputDir, cfg.Export.Format, logger)
	renderer := receipt.NewRenderer(cfg.Telegram.DownloadDir, logger)

	messenger := telegram.NewClient(telegram.Config{
		BotToken:    cfg.Telegram.BotToken,
		APITimeout:  cfg.Telegram.APITimeout,
		DownloadDir: cfg.Telegram.DownloadDir,
	}, logger)

	bot := engine.New(
		sessionRepo,
		userRepo,
		expenseRepo,
		whitelistRepo,
		extractor,
		agentRunner,
		exporter,
		messenger,
		engine.Options{
			DefaultCurrency:  cfg.Bot.DefaultCurrency,
			RequireWhitelist: cfg.Bot.RequireWhitelist,
			NoticeInterval:   cfg.Agent.NoticeInterval,
			RenderPDF:        renderer.RenderFirstPage,
		},
		logger,
	)

	processor := telegram.NewProcessor(bot, cfg.Telegram.DedupCapacity, logger)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		WebhookPath:  cfg.Telegram.WebhookPath,
	}, processor, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}

	logger.Info("Expense bot stopped")
}
