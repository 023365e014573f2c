// Command whitelist manages the access-control list from the shell:
//
//	whitelist add <username> [notes]
//	whitelist remove <username>
//	whitelist list
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chrxmium/expense-bot/internal/config"
	"github.com/chrxmium/expense-bot/internal/infrastructure/persistence/repository"
	"github.com/chrxmium/expense-bot/pkg/database"
	"github.com/chrxmium/expense-bot/pkg/utils"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      "warn",
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

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	repo := repository.NewWhitelistRepository(db.DB, logger)
	ctx := context.Background()

	switch os.Args[1] {
	case "add":
		if len(os.Args) < 3 {
			usage()
			os.Exit(2)
		}
		username := normalize(os.Args[2])
		notes := strings.Join(os.Args[3:], " ")
		added, err := repo.Add(ctx, username, notes)
		if err != nil {
			logger.Fatal("Failed to add user", zap.Error(err))
		}
		if added {
			fmt.Printf("Added @%s to the whitelist\n", username)
		} else {
			fmt.Printf("@%s is already whitelisted\n", username)
		}

	case "remove":
		if len(os.Args) < 3 {
			usage()
			os.Exit(2)
		}
		username := normalize(os.Args[2])
		removed, err := repo.Remove(ctx, username)
		if err != nil {
			logger.Fatal("Failed to remove user", zap.Error(err))
		}
		if removed {
			fmt.Printf("Removed @%s from the whitelist\n", username)
		} else {
			fmt.Printf("@%s was not on the whitelist\n", username)
		}

	case "list":
		entries, err := repo.List(ctx)
		if err != nil {
			logger.Fatal("Failed to list whitelist", zap.Error(err))
		}
		if len(entries) == 0 {
			fmt.Println("The whitelist is empty")
			return
		}
		for _, entry := range entries {
			line := fmt.Sprintf("@%s\tadded %s", entry.Username, entry.AddedDate.Format("2006-01-02"))
			if entry.Notes != "" {
				line += "\t" + entry.Notes
			}
			fmt.Println(line)
		}

	default:
		usage()
		os.Exit(2)
	}
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: whitelist add <username> [notes] | remove <username> | list")
}
