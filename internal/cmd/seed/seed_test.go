package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tradewinds-game/tradewinds/internal/storage"
	"github.com/tradewinds-game/tradewinds/internal/storage/sqlite"
)

const testMap = `
[[sectors]]
id = 1
warps = [2]
port = "Terra Station"

[[sectors]]
id = 2
warps = [1]

[[sectors]]
id = 3
warps = []
port = "Rigel Depot"
`

func TestRunSeedsPorts(t *testing.T) {
	dir := t.TempDir()
	universePath := filepath.Join(dir, "universe.toml")
	if err := os.WriteFile(universePath, []byte(testMap), 0o644); err != nil {
		t.Fatalf("write map: %v", err)
	}

	cfg := Config{
		DatabasePath:  filepath.Join(dir, "world.db"),
		UniversePath:  universePath,
		PortCredits:   50000,
		StockQuantity: 200,
	}
	ctx := context.Background()
	if err := Run(ctx, cfg); err != nil {
		t.Fatalf("run: %v", err)
	}

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	port, err := store.GetPortBySector(ctx, 1)
	if err != nil {
		t.Fatalf("get port: %v", err)
	}
	if port.Name != "Terra Station" || port.Credits != 50000 {
		t.Fatalf("unexpected port: %+v", port)
	}
	for _, commodity := range storage.Commodities() {
		line, err := store.GetPortStock(ctx, port.ID, commodity)
		if err != nil {
			t.Fatalf("get stock %s: %v", commodity, err)
		}
		if line.Quantity != 200 || line.Price != basePrices[commodity] {
			t.Fatalf("unexpected stock line: %+v", line)
		}
	}

	// Sector 2 names no port.
	if _, err := store.GetPortBySector(ctx, 2); err == nil {
		t.Fatal("expected no port in sector 2")
	}

	// Reseeding is a no-op, not an error.
	if err := Run(ctx, cfg); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	again, err := store.GetPortBySector(ctx, 1)
	if err != nil {
		t.Fatalf("get port after rerun: %v", err)
	}
	if again.ID != port.ID {
		t.Fatalf("rerun replaced port: %s vs %s", again.ID, port.ID)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.StockQuantity != 500 || cfg.PortCredits != 100000 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
