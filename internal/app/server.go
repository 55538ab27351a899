// Package app assembles the game server from its components and runs the
// HTTP surface.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/tradewinds-game/tradewinds/internal/encounter"
	"github.com/tradewinds-game/tradewinds/internal/events"
	"github.com/tradewinds-game/tradewinds/internal/events/eventlog"
	"github.com/tradewinds-game/tradewinds/internal/garrison"
	"github.com/tradewinds-game/tradewinds/internal/locks"
	"github.com/tradewinds-game/tradewinds/internal/rankings"
	"github.com/tradewinds-game/tradewinds/internal/storage/sqlite"
	"github.com/tradewinds-game/tradewinds/internal/telemetry"
	"github.com/tradewinds-game/tradewinds/internal/trade"
	"github.com/tradewinds-game/tradewinds/internal/transport/ws"
	"github.com/tradewinds-game/tradewinds/internal/universe"

	apperrors "github.com/tradewinds-game/tradewinds/internal/platform/errors"
)

// Config holds everything the server needs to start.
type Config struct {
	Addr         string
	DatabasePath string
	UniversePath string
	EventLogPath string
	RankingsPath string

	TokenSecret []byte
	TokenTTL    time.Duration

	RoundInterval  time.Duration
	StalemateLimit int
	GracePeriod    time.Duration
	WarpDuration   time.Duration
}

// Server owns the wired components and the HTTP listener.
type Server struct {
	cfg Config

	store      *sqlite.Store
	eventLog   *eventlog.Log
	dispatcher *events.Dispatcher
	encounters *encounter.Manager
	lockMgr    *locks.Manager
	world      *universe.Universe
	transit    *universe.Transit
	garrisons  *garrison.Service
	trades     *trade.Service
	rankings   *rankings.Cache
	tokens     *ws.TokenIssuer

	httpServer *http.Server
}

// New opens the world store, loads the universe map, and wires every
// component. Call Close when done, whether or not Run was called.
func New(cfg Config) (*Server, error) {
	if len(cfg.TokenSecret) == 0 {
		return nil, fmt.Errorf("token secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.WarpDuration <= 0 {
		cfg.WarpDuration = 3 * time.Second
	}

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open world store: %w", err)
	}

	world, err := universe.Load(cfg.UniversePath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load universe: %w", err)
	}

	eventLog, err := eventlog.Open(cfg.EventLogPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open event log: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		store:    store,
		eventLog: eventLog,
		lockMgr:  locks.NewManager(),
		world:    world,
		transit:  universe.NewTransit(),
		rankings: rankings.NewCache(),
		tokens:   ws.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL),
	}

	tel := telemetry.NewEmitter(store)
	s.dispatcher = events.NewDispatcher(eventLog, tel)
	s.encounters = encounter.NewManager(s.dispatcher, s, s.cargoFor, encounter.Options{
		RoundInterval:  cfg.RoundInterval,
		StalemateLimit: cfg.StalemateLimit,
		GracePeriod:    cfg.GracePeriod,
	})
	s.garrisons = garrison.NewService(store, store, s.transit, s.dispatcher)
	s.trades = trade.NewService(store, s.lockMgr, s.transit, s.dispatcher)

	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewHandler(s.tokens, s.dispatcher, s))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/rankings", s.handleRankings)
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully: the listener stops, in-flight emissions drain, and the
// stores close.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	log.Printf("server listening on %s", s.cfg.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
		<-errCh
	case err := <-errCh:
		if err != nil {
			s.Close()
			return err
		}
	}
	return s.Close()
}

// Close releases every resource. Safe to call more than once.
func (s *Server) Close() error {
	var errs []error
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
	if s.eventLog != nil {
		if err := s.eventLog.Close(); err != nil {
			errs = append(errs, err)
		}
		s.eventLog = nil
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, err)
		}
		s.store = nil
	}
	return errors.Join(errs...)
}

// IssueToken mints a session token for a registered character.
func (s *Server) IssueToken(ctx context.Context, characterID string) (string, error) {
	character, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return "", err
	}
	return s.tokens.Issue(character.ID, character.Name)
}

// CreateSalvage publishes a salvage container to everyone in the sector.
// Cargo recovery is first come, first served at the sector.
func (s *Server) CreateSalvage(ctx context.Context, req encounter.SalvageRequest) error {
	s.dispatcher.Emit(ctx, events.EmitInput{
		Name: "salvage.created",
		Payload: map[string]any{
			"sector":      req.Sector,
			"participant": req.ParticipantID,
			"cargo":       req.Cargo,
		},
		Log: events.LogContext{SenderID: "system", Sector: req.Sector},
	})
	return nil
}

// cargoFor snapshots a participant's hold for salvage generation. Drones
// and garrisons carry no cargo and resolve to an empty map.
func (s *Server) cargoFor(participantID string) map[string]int {
	holds, err := s.store.ListHolds(context.Background(), participantID)
	if err != nil {
		return map[string]int{}
	}
	cargo := make(map[string]int, len(holds))
	for _, h := range holds {
		if h.Quantity > 0 {
			cargo[string(h.Commodity)] = h.Quantity
		}
	}
	return cargo
}

// handleRankings serves the cached leaderboard snapshot.
func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.rankings.Get(s.cfg.RankingsPath)
	if err != nil {
		env := apperrors.ToRPC(err)
		status := http.StatusInternalServerError
		if apperrors.IsCode(err, apperrors.CodeRankingsSnapshotMissing) {
			status = http.StatusNotFound
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(env)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}
