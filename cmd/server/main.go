package main

import (
	"context"
	"log"

	"github.com/tradewinds-game/tradewinds/internal/cmd/server"
	platformcmd "github.com/tradewinds-game/tradewinds/internal/platform/cmd"
	"github.com/tradewinds-game/tradewinds/internal/platform/config"
)

func main() {
	log.SetPrefix("server: ")
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)

	cfg, err := server.ParseConfig()
	if err != nil {
		config.Exitf("parse config: %v", err)
	}

	ctx := context.Background()
	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceServer, func(ctx context.Context) error {
		return server.Run(ctx, cfg)
	})
	if err != nil {
		config.Exitf("server: %v", err)
	}
}
