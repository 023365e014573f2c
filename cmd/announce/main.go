// Command announce broadcasts a one-off message to every known user,
// typically for feature announcements:
//
//	announce "Receipts can now be sent as photos 📸"
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/chrxmium/expense-bot/internal/config"
	"github.com/chrxmium/expense-bot/internal/infrastructure/external/telegram"
	"github.com/chrxmium/expense-bot/internal/infrastructure/persistence/repository"
	"github.com/chrxmium/expense-bot/pkg/database"
	"github.com/chrxmium/expense-bot/pkg/utils"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) != 2 || os.Args[1] == "" {
		fmt.Fprintln(os.Stderr, "Usage: announce <message>")
		os.Exit(2)
	}
	message := os.Args[1]

	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stderr",
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	users := repository.NewUserRepository(db.DB, logger)
	messenger := telegram.NewClient(telegram.Config{
		BotToken:   cfg.Telegram.BotToken,
		APITimeout: cfg.Telegram.APITimeout,
	}, logger)

	ctx := context.Background()
	ids, err := users.ListTelegramIDs(ctx)
	if err != nil {
		logger.Fatal("Failed to list users", zap.Error(err))
	}

	sent, failed := 0, 0
	for _, id := range ids {
		if _, err := messenger.SendText(ctx, id, message); err != nil {
			// Users who blocked the bot fail here; keep going.
			logger.Warn("Failed to deliver announcement", zap.Int64("telegram_id", id), zap.Error(err))
			failed++
			continue
		}
		sent++
	}

	fmt.Printf("Announcement delivered to %d user(s), %d failed\n", sent, failed)
}
