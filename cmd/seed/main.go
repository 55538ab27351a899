package main

import (
	"context"
	"log"

	"github.com/tradewinds-game/tradewinds/internal/cmd/seed"
	platformcmd "github.com/tradewinds-game/tradewinds/internal/platform/cmd"
	"github.com/tradewinds-game/tradewinds/internal/platform/config"
)

func main() {
	log.SetPrefix("seed: ")
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)

	cfg, err := seed.ParseConfig()
	if err != nil {
		config.Exitf("parse config: %v", err)
	}

	ctx := context.Background()
	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceSeed, func(ctx context.Context) error {
		return seed.Run(ctx, cfg)
	})
	if err != nil {
		config.Exitf("seed: %v", err)
	}
}
