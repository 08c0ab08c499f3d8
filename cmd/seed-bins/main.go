package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/poubelles/poubelles-backend/internal/bins/repository"
	"github.com/poubelles/poubelles-backend/internal/bins/seed"
	"github.com/poubelles/poubelles-backend/pkg/config"
	"github.com/poubelles/poubelles-backend/pkg/database"
	"github.com/poubelles/poubelles-backend/pkg/logger"
)

const serviceName = "seed-bins"

func main() {
	cfg, err := config.Load(serviceName)
	if err == nil {
		err = cfg.Database.Validate(cfg.Server.Environment)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	inserted, err := seed.Run(ctx, db, repository.NewBinRepository(db, nil), seed.DemoFleet(), log)
	if err != nil {
		log.Error().Err(err).Msg("seeding failed")
		db.Close()
		os.Exit(1)
	}
	log.Info().Int("inserted", inserted).Str("driver", cfg.Database.Driver).Msg("done")
}
