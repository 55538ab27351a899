// Package rankings generates the leaderboard snapshot from the world store.
// It is designed to run on a schedule; the server picks up a new snapshot
// through its modification time.
package rankings

import (
	"context"
	"log"
	"time"

	platformcmd "github.com/tradewinds-game/tradewinds/internal/platform/cmd"
	"github.com/tradewinds-game/tradewinds/internal/rankings"
	"github.com/tradewinds-game/tradewinds/internal/storage/sqlite"
)

// Config captures rankings-builder settings sourced from the environment.
type Config struct {
	DatabasePath string `env:"TRADEWINDS_DB_PATH" envDefault:"tradewinds.db"`
	RankingsPath string `env:"TRADEWINDS_RANKINGS_PATH" envDefault:"rankings.json"`
}

// ParseConfig loads builder configuration from the environment.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds one snapshot and publishes it atomically.
func Run(ctx context.Context, cfg Config) error {
	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	snapshot, err := rankings.Build(ctx, store, time.Now())
	if err != nil {
		return err
	}
	if err := rankings.Write(cfg.RankingsPath, snapshot); err != nil {
		return err
	}
	log.Printf("wrote %s: %d players, %d corporations",
		cfg.RankingsPath, len(snapshot.Players), len(snapshot.Corporations))
	return nil
}
