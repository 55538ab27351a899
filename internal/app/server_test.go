package app

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tradewinds-game/tradewinds/internal/combat"
	"github.com/tradewinds-game/tradewinds/internal/encounter"
	"github.com/tradewinds-game/tradewinds/internal/rankings"
	"github.com/tradewinds-game/tradewinds/internal/storage"
	"github.com/tradewinds-game/tradewinds/internal/trade"
	"github.com/tradewinds-game/tradewinds/internal/transport/ws"

	apperrors "github.com/tradewinds-game/tradewinds/internal/platform/errors"
)

const testUniverse = `
[[sectors]]
id = 1
warps = [2]

[[sectors]]
id = 2
warps = [1, 3]
port = "Terra Station"

[[sectors]]
id = 3
warps = [2]
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	universePath := filepath.Join(dir, "universe.toml")
	if err := os.WriteFile(universePath, []byte(testUniverse), 0o644); err != nil {
		t.Fatalf("write universe: %v", err)
	}

	srv, err := New(Config{
		Addr:         "127.0.0.1:0",
		DatabasePath: filepath.Join(dir, "world.db"),
		UniversePath: universePath,
		EventLogPath: filepath.Join(dir, "events.jsonl"),
		RankingsPath: filepath.Join(dir, "rankings.json"),
		TokenSecret:  []byte("test-secret"),
		WarpDuration: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	ctx := context.Background()
	characters := []storage.Character{
		{ID: "char-a", Name: "Avery", Sector: 2, Credits: 1000, Fighters: 50, Shields: 30, TurnsPerWarp: 3},
		{ID: "char-b", Name: "Blake", Sector: 2, Credits: 500, Fighters: 40, Shields: 20, TurnsPerWarp: 3},
	}
	for _, c := range characters {
		if err := srv.store.CreateCharacter(ctx, c); err != nil {
			t.Fatalf("create character: %v", err)
		}
	}
	port := storage.Port{ID: "port-1", Sector: 2, Name: "Terra Station", Credits: 10000}
	stock := []storage.PortStock{
		{PortID: "port-1", Commodity: storage.CommodityFuelOre, Quantity: 100, Price: 10},
	}
	if err := srv.store.CreatePort(ctx, port, stock); err != nil {
		t.Fatalf("create port: %v", err)
	}
	return srv
}

func dispatch(t *testing.T, srv *Server, characterID, method string, params any) (any, error) {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return srv.Dispatch(context.Background(), ws.Session{CharacterID: characterID}, method, raw)
}

func TestNewRequiresTokenSecret(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing token secret")
	}
}

func TestDispatchTrade(t *testing.T) {
	srv := newTestServer(t)

	result, err := dispatch(t, srv, "char-a", "trade.buy",
		map[string]any{"commodity": "fuel_ore", "quantity": 10})
	if err != nil {
		t.Fatalf("trade.buy: %v", err)
	}
	receipt, ok := result.(trade.Receipt)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	if receipt.Total != 100 || receipt.Credits != 900 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	if _, err := dispatch(t, srv, "char-a", "trade.sell",
		map[string]any{"commodity": "fuel_ore", "quantity": 4}); err != nil {
		t.Fatalf("trade.sell: %v", err)
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	srv := newTestServer(t)
	_, err := dispatch(t, srv, "char-a", "warp.drive", nil)
	if !apperrors.IsCode(err, apperrors.CodeMethodNotFound) {
		t.Fatalf("expected method-not-found, got %v", err)
	}
}

func TestDispatchWarp(t *testing.T) {
	srv := newTestServer(t)

	result, err := dispatch(t, srv, "char-a", "move.warp", map[string]int{"to": 3})
	if err != nil {
		t.Fatalf("move.warp: %v", err)
	}
	character, ok := result.(storage.Character)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	if character.Sector != 3 {
		t.Fatalf("sector not updated: %+v", character)
	}

	// In hyperspace until the warp duration elapses.
	if _, err := dispatch(t, srv, "char-a", "move.warp", map[string]int{"to": 2}); !apperrors.IsCode(err, apperrors.CodeCharacterInHyperspace) {
		t.Fatalf("expected in-hyperspace, got %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for srv.transit.InHyperspace("char-a") {
		if time.Now().After(deadline) {
			t.Fatal("never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Sector 1 is two warps away from sector 3.
	if _, err := dispatch(t, srv, "char-a", "move.warp", map[string]int{"to": 1}); !apperrors.IsCode(err, apperrors.CodeMoveNotAdjacent) {
		t.Fatalf("expected not-adjacent, got %v", err)
	}
	if _, err := dispatch(t, srv, "char-a", "move.warp", map[string]int{"to": 99}); !apperrors.IsCode(err, apperrors.CodeSectorNotFound) {
		t.Fatalf("expected sector-not-found, got %v", err)
	}
}

func TestDispatchGarrison(t *testing.T) {
	srv := newTestServer(t)

	result, err := dispatch(t, srv, "char-a", "garrison.deploy",
		map[string]any{"sector": 2, "fighters": 25, "mode": "defensive"})
	if err != nil {
		t.Fatalf("garrison.deploy: %v", err)
	}
	g, ok := result.(storage.Garrison)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	if g.Fighters != 25 {
		t.Fatalf("unexpected garrison: %+v", g)
	}

	if _, err := dispatch(t, srv, "char-a", "garrison.set_mode",
		map[string]any{"sector": 2, "mode": "toll", "toll": 100}); err != nil {
		t.Fatalf("garrison.set_mode: %v", err)
	}

	result, err = dispatch(t, srv, "char-a", "garrison.withdraw", map[string]any{"sector": 2})
	if err != nil {
		t.Fatalf("garrison.withdraw: %v", err)
	}
	recovered := result.(map[string]int)
	if recovered["fighters"] != 25 {
		t.Fatalf("unexpected recovery: %+v", recovered)
	}
}

func TestDispatchCombatFlow(t *testing.T) {
	srv := newTestServer(t)

	result, err := dispatch(t, srv, "char-a", "combat.engage", map[string]string{"target_id": "char-b"})
	if err != nil {
		t.Fatalf("combat.engage: %v", err)
	}
	view, ok := result.(encounter.View)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	if len(view.Combatants) != 2 || view.Sector != 2 {
		t.Fatalf("unexpected encounter: %+v", view)
	}

	// Re-engaging while the encounter is live is rejected.
	if _, err := dispatch(t, srv, "char-a", "combat.engage", map[string]string{"target_id": "char-b"}); !apperrors.IsCode(err, apperrors.CodeAlreadyInCombat) {
		t.Fatalf("expected already-engaged, got %v", err)
	}

	// A third party cannot drag a busy target into a second encounter.
	if err := srv.store.CreateCharacter(context.Background(), storage.Character{ID: "char-d", Name: "Drew", Sector: 2, Fighters: 10}); err != nil {
		t.Fatalf("create character: %v", err)
	}
	if _, err := dispatch(t, srv, "char-d", "combat.engage", map[string]string{"target_id": "char-b"}); !apperrors.IsCode(err, apperrors.CodeAlreadyInCombat) {
		t.Fatalf("expected already-engaged for busy target, got %v", err)
	}

	status, err := dispatch(t, srv, "char-b", "combat.status", nil)
	if err != nil {
		t.Fatalf("combat.status: %v", err)
	}
	if status.(encounter.View).ID != view.ID {
		t.Fatalf("status returned a different encounter")
	}

	// Both act: the round resolves without waiting for the timer.
	if _, err := dispatch(t, srv, "char-a", "combat.action",
		map[string]any{"combat_id": view.ID, "kind": string(combat.ActionAttack), "commit": 10, "target_id": "char-b"}); err != nil {
		t.Fatalf("combat.action a: %v", err)
	}
	result, err = dispatch(t, srv, "char-b", "combat.action",
		map[string]any{"combat_id": view.ID, "kind": string(combat.ActionBrace)})
	if err != nil {
		t.Fatalf("combat.action b: %v", err)
	}
	after := result.(encounter.View)
	if after.Round != 2 {
		t.Fatalf("round did not advance: %+v", after)
	}
}

func TestDispatchEngageValidation(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	if _, err := dispatch(t, srv, "char-a", "combat.engage", map[string]string{"target_id": "char-a"}); !apperrors.IsCode(err, apperrors.CodeCombatUnknownTarget) {
		t.Fatalf("expected unknown-target for self, got %v", err)
	}

	if err := srv.store.CreateCharacter(ctx, storage.Character{ID: "char-c", Name: "Casey", Sector: 3}); err != nil {
		t.Fatalf("create character: %v", err)
	}
	if _, err := dispatch(t, srv, "char-a", "combat.engage", map[string]string{"target_id": "char-c"}); !apperrors.IsCode(err, apperrors.CodeCombatUnknownTarget) {
		t.Fatalf("expected unknown-target for other sector, got %v", err)
	}
}

func TestHandleRankings(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleRankings(rec, httptest.NewRequest("GET", "/rankings", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 before snapshot exists, got %d", rec.Code)
	}

	snapshot, err := rankings.Build(context.Background(), srv.store, time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := rankings.Write(srv.cfg.RankingsPath, snapshot); err != nil {
		t.Fatalf("write: %v", err)
	}

	rec = httptest.NewRecorder()
	srv.handleRankings(rec, httptest.NewRequest("GET", "/rankings", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var decoded rankings.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Players) != 2 {
		t.Fatalf("unexpected players: %+v", decoded.Players)
	}
}

func TestIssueToken(t *testing.T) {
	srv := newTestServer(t)

	token, err := srv.IssueToken(context.Background(), "char-a")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	session, err := srv.tokens.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if session.CharacterID != "char-a" || session.Name != "Avery" {
		t.Fatalf("unexpected session: %+v", session)
	}

	if _, err := srv.IssueToken(context.Background(), "ghost"); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
