package main

import (
	"log"
	"log/slog"
	"os"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/mahdibari/mosi-project-sub000/internal/config"
	apphttp "github.com/mahdibari/mosi-project-sub000/internal/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	db, err := gorm.Open(mysql.Open(cfg.DB.DSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	r := apphttp.NewRouter(logger, db, cfg)

	logger.Info("listening", "addr", cfg.Server.Addr, "env", cfg.Server.Env)
	if err := r.Run(cfg.Server.Addr); err != nil {
		log.Fatal(err)
	}
}
