package main

import (
	"context"
	"log"

	"github.com/tradewinds-game/tradewinds/internal/cmd/rankings"
	platformcmd "github.com/tradewinds-game/tradewinds/internal/platform/cmd"
	"github.com/tradewinds-game/tradewinds/internal/platform/config"
)

func main() {
	log.SetPrefix("rankings: ")
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)

	cfg, err := rankings.ParseConfig()
	if err != nil {
		config.Exitf("parse config: %v", err)
	}

	ctx := context.Background()
	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceRankings, func(ctx context.Context) error {
		return rankings.Run(ctx, cfg)
	})
	if err != nil {
		config.Exitf("rankings: %v", err)
	}
}
