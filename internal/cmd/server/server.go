// Package server configures and runs the game server process.
package server

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradewinds-game/tradewinds/internal/app"
	platformcmd "github.com/tradewinds-game/tradewinds/internal/platform/cmd"
)

// Config captures server settings sourced from the environment.
type Config struct {
	Addr         string `env:"TRADEWINDS_HTTP_ADDR" envDefault:":8080"`
	DatabasePath string `env:"TRADEWINDS_DB_PATH" envDefault:"tradewinds.db"`
	UniversePath string `env:"TRADEWINDS_UNIVERSE_PATH" envDefault:"universe.toml"`
	EventLogPath string `env:"TRADEWINDS_EVENT_LOG_PATH" envDefault:"events.jsonl"`
	RankingsPath string `env:"TRADEWINDS_RANKINGS_PATH" envDefault:"rankings.json"`

	TokenSecret string        `env:"TRADEWINDS_TOKEN_SECRET"`
	TokenTTL    time.Duration `env:"TRADEWINDS_TOKEN_TTL" envDefault:"24h"`

	RoundInterval  time.Duration `env:"TRADEWINDS_ROUND_INTERVAL" envDefault:"10s"`
	StalemateLimit int           `env:"TRADEWINDS_STALEMATE_LIMIT" envDefault:"3"`
	GracePeriod    time.Duration `env:"TRADEWINDS_GRACE_PERIOD" envDefault:"60s"`
	WarpDuration   time.Duration `env:"TRADEWINDS_WARP_DURATION" envDefault:"3s"`
}

// ParseConfig loads server configuration from the environment.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.TokenSecret == "" {
		return Config{}, fmt.Errorf("TRADEWINDS_TOKEN_SECRET is required")
	}
	return cfg, nil
}

// Run starts the server and blocks until shutdown.
func Run(ctx context.Context, cfg Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := app.New(app.Config{
		Addr:           cfg.Addr,
		DatabasePath:   cfg.DatabasePath,
		UniversePath:   cfg.UniversePath,
		EventLogPath:   cfg.EventLogPath,
		RankingsPath:   cfg.RankingsPath,
		TokenSecret:    []byte(cfg.TokenSecret),
		TokenTTL:       cfg.TokenTTL,
		RoundInterval:  cfg.RoundInterval,
		StalemateLimit: cfg.StalemateLimit,
		GracePeriod:    cfg.GracePeriod,
		WarpDuration:   cfg.WarpDuration,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
