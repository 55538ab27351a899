// Package sqlite implements the world store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tradewinds-game/tradewinds/internal/platform/storage/sqlitemigrate"
	"github.com/tradewinds-game/tradewinds/internal/storage"
	"github.com/tradewinds-game/tradewinds/internal/storage/sqlite/migrations"
	"github.com/tradewinds-game/tradewinds/internal/telemetry"

	apperrors "github.com/tradewinds-game/tradewinds/internal/platform/errors"
)

// Store is a SQLite-backed world store implementing storage.Store.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite world store at the provided path and applies embedded
// migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateCharacter inserts a new character row.
func (s *Store) CreateCharacter(ctx context.Context, c storage.Character) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO characters (id, name, corporation_id, sector, credits, fighters, shields, turns_per_warp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.CorporationID, c.Sector, c.Credits, c.Fighters, c.Shields, c.TurnsPerWarp)
	if err != nil {
		return fmt.Errorf("insert character: %w", err)
	}
	return nil
}

// GetCharacter loads one character by id.
func (s *Store) GetCharacter(ctx context.Context, id string) (storage.Character, error) {
	var c storage.Character
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, corporation_id, sector, credits, fighters, shields, turns_per_warp
		 FROM characters WHERE id = ?`, id)
	if err := row.Scan(&c.ID, &c.Name, &c.CorporationID, &c.Sector, &c.Credits,
		&c.Fighters, &c.Shields, &c.TurnsPerWarp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Character{}, apperrors.WithMetadata(apperrors.CodeNotFound,
				"character not found", map[string]string{"character_id": id})
		}
		return storage.Character{}, fmt.Errorf("scan character: %w", err)
	}
	return c, nil
}

// UpdateCharacter persists a character's mutable fields.
func (s *Store) UpdateCharacter(ctx context.Context, c storage.Character) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE characters SET name = ?, corporation_id = ?, sector = ?, credits = ?,
		 fighters = ?, shields = ?, turns_per_warp = ? WHERE id = ?`,
		c.Name, c.CorporationID, c.Sector, c.Credits, c.Fighters, c.Shields, c.TurnsPerWarp, c.ID)
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	return requireRow(res, "character", c.ID)
}

// ListCharacters returns all characters ordered by id.
func (s *Store) ListCharacters(ctx context.Context) ([]storage.Character, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, corporation_id, sector, credits, fighters, shields, turns_per_warp
		 FROM characters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	var out []storage.Character
	for rows.Next() {
		var c storage.Character
		if err := rows.Scan(&c.ID, &c.Name, &c.CorporationID, &c.Sector, &c.Credits,
			&c.Fighters, &c.Shields, &c.TurnsPerWarp); err != nil {
			return nil, fmt.Errorf("scan character row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCorporation inserts a new corporation row.
func (s *Store) CreateCorporation(ctx context.Context, c storage.Corporation) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO corporations (id, name) VALUES (?, ?)`, c.ID, c.Name)
	if err != nil {
		return fmt.Errorf("insert corporation: %w", err)
	}
	return nil
}

// ListCorporations returns all corporations ordered by id.
func (s *Store) ListCorporations(ctx context.Context) ([]storage.Corporation, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, name FROM corporations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list corporations: %w", err)
	}
	defer rows.Close()

	var out []storage.Corporation
	for rows.Next() {
		var c storage.Corporation
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan corporation row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreatePort inserts a port and its initial stock in one transaction.
func (s *Store) CreatePort(ctx context.Context, p storage.Port, stock []storage.PortStock) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create port: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ports (id, sector, name, credits) VALUES (?, ?, ?, ?)`,
		p.ID, p.Sector, p.Name, p.Credits); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert port: %w", err)
	}
	for _, line := range stock {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO port_stock (port_id, commodity, quantity, price) VALUES (?, ?, ?, ?)`,
			p.ID, line.Commodity, line.Quantity, line.Price); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert port stock: %w", err)
		}
	}
	return tx.Commit()
}

// GetPortBySector loads the port in a sector.
func (s *Store) GetPortBySector(ctx context.Context, sector int) (storage.Port, error) {
	var p storage.Port
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, sector, name, credits FROM ports WHERE sector = ?`, sector)
	if err := row.Scan(&p.ID, &p.Sector, &p.Name, &p.Credits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Port{}, apperrors.WithMetadata(apperrors.CodeTradePortNotFound,
				"no port in sector", map[string]string{"sector": fmt.Sprintf("%d", sector)})
		}
		return storage.Port{}, fmt.Errorf("scan port: %w", err)
	}
	return p, nil
}

// GetPortStock loads one commodity line at a port.
func (s *Store) GetPortStock(ctx context.Context, portID string, commodity storage.Commodity) (storage.PortStock, error) {
	var line storage.PortStock
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT port_id, commodity, quantity, price FROM port_stock WHERE port_id = ? AND commodity = ?`,
		portID, commodity)
	if err := row.Scan(&line.PortID, &line.Commodity, &line.Quantity, &line.Price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PortStock{}, apperrors.WithMetadata(apperrors.CodeTradeUnknownCommodity,
				"port does not trade this commodity", map[string]string{
					"port_id":   portID,
					"commodity": string(commodity),
				})
		}
		return storage.PortStock{}, fmt.Errorf("scan port stock: %w", err)
	}
	return line, nil
}

// UpdatePort persists a port's mutable fields.
func (s *Store) UpdatePort(ctx context.Context, p storage.Port) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE ports SET name = ?, credits = ? WHERE id = ?`, p.Name, p.Credits, p.ID)
	if err != nil {
		return fmt.Errorf("update port: %w", err)
	}
	return requireRow(res, "port", p.ID)
}

// UpdatePortStock persists one commodity line.
func (s *Store) UpdatePortStock(ctx context.Context, line storage.PortStock) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE port_stock SET quantity = ?, price = ? WHERE port_id = ? AND commodity = ?`,
		line.Quantity, line.Price, line.PortID, line.Commodity)
	if err != nil {
		return fmt.Errorf("update port stock: %w", err)
	}
	return requireRow(res, "port stock", line.PortID)
}

// GetHold loads one cargo line, returning a zero-quantity hold when the
// character has never carried the commodity.
func (s *Store) GetHold(ctx context.Context, characterID string, commodity storage.Commodity) (storage.Hold, error) {
	var h storage.Hold
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT character_id, commodity, quantity FROM holds WHERE character_id = ? AND commodity = ?`,
		characterID, commodity)
	if err := row.Scan(&h.CharacterID, &h.Commodity, &h.Quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Hold{CharacterID: characterID, Commodity: commodity}, nil
		}
		return storage.Hold{}, fmt.Errorf("scan hold: %w", err)
	}
	return h, nil
}

// SetHold upserts one cargo line.
func (s *Store) SetHold(ctx context.Context, h storage.Hold) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO holds (character_id, commodity, quantity) VALUES (?, ?, ?)
		 ON CONFLICT (character_id, commodity) DO UPDATE SET quantity = excluded.quantity`,
		h.CharacterID, h.Commodity, h.Quantity)
	if err != nil {
		return fmt.Errorf("set hold: %w", err)
	}
	return nil
}

// ListHolds returns a character's cargo lines in commodity order.
func (s *Store) ListHolds(ctx context.Context, characterID string) ([]storage.Hold, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT character_id, commodity, quantity FROM holds WHERE character_id = ? ORDER BY commodity`,
		characterID)
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	defer rows.Close()

	var out []storage.Hold
	for rows.Next() {
		var h storage.Hold
		if err := rows.Scan(&h.CharacterID, &h.Commodity, &h.Quantity); err != nil {
			return nil, fmt.Errorf("scan hold row: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// UpsertGarrison creates or replaces the garrison in a sector.
func (s *Store) UpsertGarrison(ctx context.Context, g storage.Garrison) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO garrisons (sector, owner_id, mode, toll, fighters) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (sector) DO UPDATE SET owner_id = excluded.owner_id, mode = excluded.mode,
		 toll = excluded.toll, fighters = excluded.fighters`,
		g.Sector, g.OwnerID, g.Mode, g.Toll, g.Fighters)
	if err != nil {
		return fmt.Errorf("upsert garrison: %w", err)
	}
	return nil
}

// GetGarrison loads the garrison in a sector.
func (s *Store) GetGarrison(ctx context.Context, sector int) (storage.Garrison, error) {
	var g storage.Garrison
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT sector, owner_id, mode, toll, fighters FROM garrisons WHERE sector = ?`, sector)
	if err := row.Scan(&g.Sector, &g.OwnerID, &g.Mode, &g.Toll, &g.Fighters); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Garrison{}, apperrors.WithMetadata(apperrors.CodeGarrisonNotFound,
				"no garrison in sector", map[string]string{"sector": fmt.Sprintf("%d", sector)})
		}
		return storage.Garrison{}, fmt.Errorf("scan garrison: %w", err)
	}
	return g, nil
}

// DeleteGarrison removes the garrison in a sector if present.
func (s *Store) DeleteGarrison(ctx context.Context, sector int) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM garrisons WHERE sector = ?`, sector); err != nil {
		return fmt.Errorf("delete garrison: %w", err)
	}
	return nil
}

// ListGarrisons returns every deployed garrison ordered by sector.
func (s *Store) ListGarrisons(ctx context.Context) ([]storage.Garrison, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT sector, owner_id, mode, toll, fighters FROM garrisons ORDER BY sector`)
	if err != nil {
		return nil, fmt.Errorf("list garrisons: %w", err)
	}
	defer rows.Close()

	var out []storage.Garrison
	for rows.Next() {
		var g storage.Garrison
		if err := rows.Scan(&g.Sector, &g.OwnerID, &g.Mode, &g.Toll, &g.Fighters); err != nil {
			return nil, fmt.Errorf("scan garrison row: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// AppendTelemetryEvent persists one operational telemetry event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt telemetry.Event) error {
	fields := "{}"
	if len(evt.Fields) > 0 {
		encoded, err := json.Marshal(evt.Fields)
		if err != nil {
			return fmt.Errorf("encode telemetry fields: %w", err)
		}
		fields = string(encoded)
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO telemetry_events (created_at, severity, component, name, fields) VALUES (?, ?, ?, ?, ?)`,
		evt.Timestamp.UTC().Format(time.RFC3339Nano), evt.Severity, evt.Component, evt.Name, fields)
	if err != nil {
		return fmt.Errorf("insert telemetry event: %w", err)
	}
	return nil
}

func requireRow(res sql.Result, entity, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.WithMetadata(apperrors.CodeNotFound,
			entity+" not found", map[string]string{"id": id})
	}
	return nil
}
