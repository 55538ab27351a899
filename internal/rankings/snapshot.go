// Package rankings builds and serves leaderboard snapshots.
package rankings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	apperrors "github.com/tradewinds-game/tradewinds/internal/platform/errors"
	"github.com/tradewinds-game/tradewinds/internal/storage"
)

// SchemaVersion is bumped whenever the snapshot layout changes. Readers
// reject snapshots written by a different version.
const SchemaVersion = 1

// PlayerRank is one leaderboard row for a character.
type PlayerRank struct {
	Rank          int    `json:"rank"`
	CharacterID   string `json:"character_id"`
	Name          string `json:"name"`
	CorporationID string `json:"corporation_id,omitempty"`
	Credits       int64  `json:"credits"`
}

// CorporationRank is one leaderboard row for a corporation, aggregating
// member credits.
type CorporationRank struct {
	Rank          int    `json:"rank"`
	CorporationID string `json:"corporation_id"`
	Name          string `json:"name"`
	Members       int    `json:"members"`
	Credits       int64  `json:"credits"`
}

// Snapshot is the on-disk leaderboard document.
type Snapshot struct {
	SchemaVersion int               `json:"schema_version"`
	GeneratedAt   time.Time         `json:"generated_at"`
	Players       []PlayerRank      `json:"players"`
	Corporations  []CorporationRank `json:"corporations"`
}

// Build computes a snapshot from current world state. Players rank by
// credits descending, ties broken by name.
func Build(ctx context.Context, store storage.Store, now time.Time) (Snapshot, error) {
	characters, err := store.ListCharacters(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list characters: %w", err)
	}
	corporations, err := store.ListCorporations(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list corporations: %w", err)
	}

	players := make([]PlayerRank, 0, len(characters))
	corpTotals := make(map[string]*CorporationRank, len(corporations))
	for _, corp := range corporations {
		corpTotals[corp.ID] = &CorporationRank{CorporationID: corp.ID, Name: corp.Name}
	}
	for _, c := range characters {
		players = append(players, PlayerRank{
			CharacterID:   c.ID,
			Name:          c.Name,
			CorporationID: c.CorporationID,
			Credits:       c.Credits,
		})
		if total, ok := corpTotals[c.CorporationID]; ok {
			total.Members++
			total.Credits += c.Credits
		}
	}

	sort.Slice(players, func(i, j int) bool {
		if players[i].Credits != players[j].Credits {
			return players[i].Credits > players[j].Credits
		}
		return players[i].Name < players[j].Name
	})
	for i := range players {
		players[i].Rank = i + 1
	}

	corps := make([]CorporationRank, 0, len(corpTotals))
	for _, total := range corpTotals {
		corps = append(corps, *total)
	}
	sort.Slice(corps, func(i, j int) bool {
		if corps[i].Credits != corps[j].Credits {
			return corps[i].Credits > corps[j].Credits
		}
		return corps[i].Name < corps[j].Name
	})
	for i := range corps {
		corps[i].Rank = i + 1
	}

	return Snapshot{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   now.UTC(),
		Players:       players,
		Corporations:  corps,
	}, nil
}

// Write persists a snapshot atomically: it writes to a temp file in the
// same directory and renames it over the target so readers never observe
// a partial document.
func Write(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".rankings-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

func readSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, apperrors.WithMetadata(apperrors.CodeRankingsSnapshotMissing,
				"rankings snapshot has not been generated yet", map[string]string{"path": path})
		}
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snapshot.SchemaVersion != SchemaVersion {
		return Snapshot{}, apperrors.WithMetadata(apperrors.CodeRankingsSchemaMismatch,
			"rankings snapshot was written by an incompatible version",
			map[string]string{
				"want": fmt.Sprintf("%d", SchemaVersion),
				"got":  fmt.Sprintf("%d", snapshot.SchemaVersion),
			})
	}
	return snapshot, nil
}
