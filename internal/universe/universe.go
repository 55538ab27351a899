// Package universe holds the static sector map and per-character hyperspace
// transit state.
package universe

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"

	apperrors "github.com/tradewinds-game/tradewinds/internal/platform/errors"
)

// Sector is one node of the warp graph.
type Sector struct {
	ID       int    `toml:"id"`
	Warps    []int  `toml:"warps"`
	PortName string `toml:"port"`
}

// Universe is the loaded sector map.
type Universe struct {
	sectors map[int]Sector
}

type mapFile struct {
	Sectors []Sector `toml:"sectors"`
}

// Load reads a TOML sector map from path.
func Load(path string) (*Universe, error) {
	var file mapFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("decode universe map: %w", err)
	}
	return fromSectors(file.Sectors)
}

// Parse reads a TOML sector map from a string. Used by tests and seeding.
func Parse(data string) (*Universe, error) {
	var file mapFile
	if _, err := toml.Decode(data, &file); err != nil {
		return nil, fmt.Errorf("decode universe map: %w", err)
	}
	return fromSectors(file.Sectors)
}

func fromSectors(sectors []Sector) (*Universe, error) {
	if len(sectors) == 0 {
		return nil, fmt.Errorf("universe map has no sectors")
	}
	u := &Universe{sectors: make(map[int]Sector, len(sectors))}
	for _, s := range sectors {
		if _, dup := u.sectors[s.ID]; dup {
			return nil, fmt.Errorf("duplicate sector id %d", s.ID)
		}
		u.sectors[s.ID] = s
	}
	for _, s := range sectors {
		for _, warp := range s.Warps {
			if _, ok := u.sectors[warp]; !ok {
				return nil, fmt.Errorf("sector %d warps to unknown sector %d", s.ID, warp)
			}
		}
	}
	return u, nil
}

// Sector returns one sector by id.
func (u *Universe) Sector(id int) (Sector, error) {
	s, ok := u.sectors[id]
	if !ok {
		return Sector{}, apperrors.WithMetadata(apperrors.CodeSectorNotFound,
			"unknown sector", map[string]string{"sector": fmt.Sprintf("%d", id)})
	}
	return s, nil
}

// SectorIDs returns every sector id in ascending order.
func (u *Universe) SectorIDs() []int {
	ids := make([]int, 0, len(u.sectors))
	for id := range u.sectors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Adjacent reports whether to is one warp away from from.
func (u *Universe) Adjacent(from, to int) bool {
	s, ok := u.sectors[from]
	if !ok {
		return false
	}
	for _, warp := range s.Warps {
		if warp == to {
			return true
		}
	}
	return false
}
