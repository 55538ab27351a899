// Package seed initializes a world database from a universe map: one port
// per sector that declares one, stocked with every commodity.
package seed

import (
	"context"
	"fmt"
	"log"

	platformcmd "github.com/tradewinds-game/tradewinds/internal/platform/cmd"
	"github.com/tradewinds-game/tradewinds/internal/platform/id"
	"github.com/tradewinds-game/tradewinds/internal/storage"
	"github.com/tradewinds-game/tradewinds/internal/storage/sqlite"
	"github.com/tradewinds-game/tradewinds/internal/universe"

	apperrors "github.com/tradewinds-game/tradewinds/internal/platform/errors"
)

// Config captures seeder settings sourced from the environment.
type Config struct {
	DatabasePath string `env:"TRADEWINDS_DB_PATH" envDefault:"tradewinds.db"`
	UniversePath string `env:"TRADEWINDS_UNIVERSE_PATH" envDefault:"universe.toml"`

	PortCredits   int64 `env:"TRADEWINDS_SEED_PORT_CREDITS" envDefault:"100000"`
	StockQuantity int   `env:"TRADEWINDS_SEED_STOCK_QUANTITY" envDefault:"500"`
}

// Base prices per commodity. Ports drift from these through trading.
var basePrices = map[storage.Commodity]int64{
	storage.CommodityFuelOre:   12,
	storage.CommodityOrganics:  25,
	storage.CommodityEquipment: 60,
}

// ParseConfig loads seeder configuration from the environment.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run creates ports for every sector in the map that names one. Sectors
// whose port already exists are skipped, so reseeding is safe.
func Run(ctx context.Context, cfg Config) error {
	world, err := universe.Load(cfg.UniversePath)
	if err != nil {
		return err
	}
	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	created := 0
	for _, sectorID := range world.SectorIDs() {
		sector, err := world.Sector(sectorID)
		if err != nil {
			return err
		}
		if sector.PortName == "" {
			continue
		}
		if _, err := store.GetPortBySector(ctx, sectorID); err == nil {
			continue
		} else if !apperrors.IsCode(err, apperrors.CodeTradePortNotFound) {
			return err
		}

		portID, err := id.NewID()
		if err != nil {
			return fmt.Errorf("new port id: %w", err)
		}
		port := storage.Port{
			ID:      portID,
			Sector:  sectorID,
			Name:    sector.PortName,
			Credits: cfg.PortCredits,
		}
		var stock []storage.PortStock
		for _, commodity := range storage.Commodities() {
			stock = append(stock, storage.PortStock{
				PortID:    portID,
				Commodity: commodity,
				Quantity:  cfg.StockQuantity,
				Price:     basePrices[commodity],
			})
		}
		if err := store.CreatePort(ctx, port, stock); err != nil {
			return fmt.Errorf("create port in sector %d: %w", sectorID, err)
		}
		created++
	}
	log.Printf("seeded %d ports from %s", created, cfg.UniversePath)
	return nil
}
