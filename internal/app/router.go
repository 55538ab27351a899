package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tradewinds-game/tradewinds/internal/combat"
	"github.com/tradewinds-game/tradewinds/internal/encounter"
	"github.com/tradewinds-game/tradewinds/internal/events"
	"github.com/tradewinds-game/tradewinds/internal/garrison"
	"github.com/tradewinds-game/tradewinds/internal/storage"
	"github.com/tradewinds-game/tradewinds/internal/transport/ws"

	apperrors "github.com/tradewinds-game/tradewinds/internal/platform/errors"
)

// Dispatch routes one client command to the owning component. It
// implements ws.Router.
func (s *Server) Dispatch(ctx context.Context, session ws.Session, method string, params json.RawMessage) (any, error) {
	switch method {
	case "trade.buy", "trade.sell":
		var p struct {
			Commodity storage.Commodity `json:"commodity"`
			Quantity  int               `json:"quantity"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if method == "trade.buy" {
			return s.trades.Buy(ctx, session.CharacterID, p.Commodity, p.Quantity)
		}
		return s.trades.Sell(ctx, session.CharacterID, p.Commodity, p.Quantity)

	case "garrison.deploy":
		var p struct {
			Sector   int                  `json:"sector"`
			Fighters int                  `json:"fighters"`
			Mode     storage.GarrisonMode `json:"mode"`
			Toll     int64                `json:"toll"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return s.garrisons.Deploy(ctx, garrison.DeployInput{
			CharacterID: session.CharacterID,
			Sector:      p.Sector,
			Fighters:    p.Fighters,
			Mode:        p.Mode,
			Toll:        p.Toll,
		})

	case "garrison.set_mode":
		var p struct {
			Sector int                  `json:"sector"`
			Mode   storage.GarrisonMode `json:"mode"`
			Toll   int64                `json:"toll"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return s.garrisons.SetMode(ctx, session.CharacterID, p.Sector, p.Mode, p.Toll)

	case "garrison.withdraw":
		var p struct {
			Sector int `json:"sector"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		recovered, err := s.garrisons.Withdraw(ctx, session.CharacterID, p.Sector)
		if err != nil {
			return nil, err
		}
		return map[string]int{"fighters": recovered}, nil

	case "move.warp":
		var p struct {
			To int `json:"to"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return s.warp(ctx, session.CharacterID, p.To)

	case "combat.engage":
		var p struct {
			TargetID string `json:"target_id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return s.engage(ctx, session.CharacterID, p.TargetID)

	case "combat.action":
		var p struct {
			CombatID string            `json:"combat_id"`
			Kind     combat.ActionKind `json:"kind"`
			Commit   int               `json:"commit"`
			TargetID string            `json:"target_id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		action := combat.Action{Kind: p.Kind, Commit: p.Commit, TargetID: p.TargetID}
		if err := s.encounters.SubmitAction(ctx, p.CombatID, session.CharacterID, action); err != nil {
			return nil, err
		}
		return s.encounters.Get(p.CombatID)

	case "combat.status":
		return s.encounters.FindFor(session.CharacterID)

	case "rankings.get":
		return s.rankings.Get(s.cfg.RankingsPath)

	default:
		return nil, apperrors.WithMetadata(apperrors.CodeMethodNotFound,
			"unknown method", map[string]string{"method": method})
	}
}

// engage starts an encounter between the attacker and a target in the
// same sector. The sector's garrison, if hostile to the attacker, joins
// on the defender's side.
func (s *Server) engage(ctx context.Context, attackerID, targetID string) (encounter.View, error) {
	if attackerID == targetID {
		return encounter.View{}, apperrors.New(apperrors.CodeCombatUnknownTarget,
			"cannot engage yourself")
	}
	if _, err := s.encounters.FindFor(attackerID); err == nil {
		return encounter.View{}, apperrors.WithMetadata(apperrors.CodeAlreadyInCombat,
			"already in an encounter", map[string]string{"character": attackerID})
	}

	attacker, err := s.store.GetCharacter(ctx, attackerID)
	if err != nil {
		return encounter.View{}, err
	}
	target, err := s.store.GetCharacter(ctx, targetID)
	if err != nil {
		return encounter.View{}, err
	}
	if target.Sector != attacker.Sector {
		return encounter.View{}, apperrors.WithMetadata(apperrors.CodeCombatUnknownTarget,
			"target is not in this sector", map[string]string{"target": targetID})
	}
	if s.transit.InHyperspace(attackerID) || s.transit.InHyperspace(targetID) {
		return encounter.View{}, apperrors.New(apperrors.CodeCharacterInHyperspace,
			"combatant is in hyperspace")
	}

	combatants := []combat.Combatant{
		shipCombatant(attacker),
		shipCombatant(target),
	}
	if g, err := s.store.GetGarrison(ctx, attacker.Sector); err == nil {
		if g.OwnerID != attackerID && g.Mode != storage.GarrisonToll {
			combatants = append(combatants, combat.Combatant{
				ID:          fmt.Sprintf("garrison:%d", g.Sector),
				Kind:        combat.KindGarrison,
				Name:        fmt.Sprintf("Sector %d garrison", g.Sector),
				Fighters:    g.Fighters,
				MaxFighters: g.Fighters,
				OwnerID:     g.OwnerID,
			})
		}
	}
	return s.encounters.Start(ctx, attacker.Sector, combatants)
}

func shipCombatant(c storage.Character) combat.Combatant {
	return combat.Combatant{
		ID:           c.ID,
		Kind:         combat.KindCharacter,
		Name:         c.Name,
		Fighters:     c.Fighters,
		Shields:      c.Shields,
		MaxFighters:  c.Fighters,
		MaxShields:   c.Shields,
		TurnsPerWarp: c.TurnsPerWarp,
		OwnerID:      c.ID,
	}
}

// warp moves a character one sector along the warp graph and puts them in
// hyperspace for the transit duration.
func (s *Server) warp(ctx context.Context, characterID string, to int) (storage.Character, error) {
	character, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return storage.Character{}, err
	}
	if s.transit.InHyperspace(characterID) {
		return storage.Character{}, apperrors.WithMetadata(apperrors.CodeCharacterInHyperspace,
			"already in hyperspace", map[string]string{"character": characterID})
	}
	if _, err := s.world.Sector(to); err != nil {
		return storage.Character{}, err
	}
	if !s.world.Adjacent(character.Sector, to) {
		return storage.Character{}, apperrors.WithMetadata(apperrors.CodeMoveNotAdjacent,
			"destination is not one warp away", map[string]string{
				"from": fmt.Sprintf("%d", character.Sector),
				"to":   fmt.Sprintf("%d", to),
			})
	}

	character.Sector = to
	if err := s.store.UpdateCharacter(ctx, character); err != nil {
		return storage.Character{}, err
	}
	s.transit.Enter(characterID, s.cfg.WarpDuration)

	s.dispatcher.Emit(ctx, events.EmitInput{
		Name:            "character.warped",
		Payload:         map[string]int{"sector": to},
		CharacterFilter: []string{characterID},
		Log: events.LogContext{
			SenderID:      characterID,
			Sector:        to,
			CorporationID: character.CorporationID,
		},
	})
	return character, nil
}

func decodeParams(params json.RawMessage, target any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, target); err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, "malformed command params", err)
	}
	return nil
}
