package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rongwang/vaccine-scheduler/internal/cli"
	"github.com/rongwang/vaccine-scheduler/internal/config"
	"github.com/rongwang/vaccine-scheduler/internal/repository"
	"github.com/rongwang/vaccine-scheduler/internal/service"
	"github.com/rongwang/vaccine-scheduler/internal/utils"
)

func main() {
	_ = godotenv.Load()

	logger := utils.NewLogger()

	// Load configuration
	cfg := config.LoadConfig()

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to set up database: %v", err)
	}
	defer db.Close()

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create service
	svc := service.NewDefaultService(repo, cfg.Auth.JWTSecret)

	// Run the interactive command loop; a non-nil error is a store fault
	c := cli.New(svc, os.Stdin, os.Stdout)
	if err := c.Run(context.Background()); err != nil {
		logger.Fatal("Unrecoverable store fault: %v", err)
	}
}
