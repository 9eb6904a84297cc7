package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ThanosKa/magic-room-sub001/internal/config"
	"github.com/ThanosKa/magic-room-sub001/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	bunDB := db.NewBunPostgresClient(cfg.DatabaseURL)
	defer bunDB.Close()

	if err := db.InitSchema(context.Background(), bunDB); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	fmt.Println("Schema is up to date")
}
