// Package hub is the registry of live draft lobbies and the command surface
// the transports call into.
//
// The registry lock only guards the map; it is never held while a lobby runs
// a command, so drafts never serialise behind each other.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bot-draft-backend/internal/engine"
	"github.com/DoyleJ11/bot-draft-backend/internal/lobby"
	"github.com/DoyleJ11/bot-draft-backend/internal/logging"
)

type Options struct {
	Roster         engine.RosterStore
	Picker         engine.Picker
	Logger         *zap.Logger
	AutoPickRetry  time.Duration
	SaveTimeout    time.Duration
	RecoverWorkers int
	Now            func() time.Time
}

type Hub struct {
	mu      sync.RWMutex
	lobbies map[string]*lobby.Lobby

	store     engine.Store
	catalog   engine.Catalog
	publisher lobby.Publisher
	opts      Options
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewHub(parent context.Context, store engine.Store, cat engine.Catalog, pub lobby.Publisher, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RecoverWorkers <= 0 {
		opts.RecoverWorkers = 8
	}
	return &Hub{
		lobbies:   make(map[string]*lobby.Lobby),
		store:     store,
		catalog:   cat,
		publisher: pub,
		opts:      opts,
		log:       logging.OrNop(opts.Logger),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Schedule creates a new draft in the scheduled state. The store insert is
// the single point that decides whether an id is taken.
func (h *Hub) Schedule(ctx context.Context, cfg engine.Config) (engine.Snapshot, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if h.lookup(cfg.ID) != nil {
		return engine.Snapshot{}, fmt.Errorf("%w: draft %s already exists", engine.ErrInvalidConfig, cfg.ID)
	}

	s, err := engine.NewSession(cfg, h.opts.Now())
	if err != nil {
		return engine.Snapshot{}, err
	}
	if err := h.store.Create(ctx, s); err != nil {
		if errors.Is(err, engine.ErrInvalidConfig) {
			return engine.Snapshot{}, err
		}
		return engine.Snapshot{}, fmt.Errorf("persist draft %s: %w", s.ID, err)
	}

	lb, err := h.ensure(s)
	if err != nil {
		return engine.Snapshot{}, err
	}
	h.log.Info("draft scheduled",
		zap.String("session_id", s.ID),
		zap.Int("teams", len(s.TeamOrder)),
		zap.Int("rounds", s.Rounds),
	)
	return lb.Snapshot(), nil
}

func (h *Hub) Start(ctx context.Context, id string) (engine.Snapshot, error) {
	return h.snapshotCmd(ctx, id, (*lobby.Lobby).Start)
}

func (h *Hub) Cancel(ctx context.Context, id string) (engine.Snapshot, error) {
	return h.snapshotCmd(ctx, id, (*lobby.Lobby).Cancel)
}

func (h *Hub) Resume(ctx context.Context, id string) (engine.Snapshot, error) {
	return h.snapshotCmd(ctx, id, (*lobby.Lobby).Resume)
}

func (h *Hub) SubmitPick(ctx context.Context, req engine.PickRequest) (engine.PickSlot, error) {
	var slot engine.PickSlot
	err := h.withLobby(ctx, req.SessionID, func(lb *lobby.Lobby) error {
		var err error
		slot, err = lb.SubmitPick(ctx, req)
		return err
	})
	return slot, err
}

// Snapshot returns the latest state of a draft, live or finished.
func (h *Hub) Snapshot(ctx context.Context, id string) (engine.Snapshot, error) {
	if lb := h.lookup(id); lb != nil {
		return lb.Snapshot(), nil
	}
	s, err := h.store.Load(ctx, id)
	if err != nil {
		return engine.Snapshot{}, err
	}
	if s.Status.Terminal() {
		return engine.BuildSnapshot(s, h.opts.Now()), nil
	}
	lb, err := h.ensure(s)
	if err != nil {
		return engine.Snapshot{}, err
	}
	return lb.Snapshot(), nil
}

// List returns a snapshot of every stored draft. Resident drafts report their
// live remaining time.
func (h *Hub) List(ctx context.Context) ([]engine.Snapshot, error) {
	sessions, err := h.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	now := h.opts.Now()
	out := make([]engine.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		if lb := h.lookup(s.ID); lb != nil {
			out = append(out, lb.Snapshot())
			continue
		}
		out = append(out, engine.BuildSnapshot(s, now))
	}
	return out, nil
}

// Board returns every slot of the draft grouped by round.
func (h *Hub) Board(ctx context.Context, id string) ([]engine.BoardRound, error) {
	s, err := h.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return engine.BuildBoard(s), nil
}

func (h *Hub) TeamSummary(ctx context.Context, id, teamID string) (engine.TeamSummary, error) {
	s, err := h.store.Load(ctx, id)
	if err != nil {
		return engine.TeamSummary{}, err
	}
	return engine.BuildTeamSummary(s, h.catalog, teamID)
}

// Available lists the players the draft can still take, in the order the
// fallback picker would consider them.
func (h *Hub) Available(ctx context.Context, id string) ([]engine.Candidate, error) {
	s, err := h.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	picker := h.opts.Picker
	if picker.Strategy == nil {
		picker = engine.NewPicker(nil)
	}
	return engine.Available(s, h.catalog, picker), nil
}

// Recover reloads every in-progress or stalled draft and re-arms its clock
// with the time it had left.
func (h *Hub) Recover(ctx context.Context) (int, error) {
	sessions, err := h.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active drafts: %w", err)
	}

	p := pool.New().WithErrors().WithMaxGoroutines(h.opts.RecoverWorkers)
	for _, s := range sessions {
		p.Go(func() error {
			if _, err := h.ensure(s); err != nil {
				return fmt.Errorf("recover draft %s: %w", s.ID, err)
			}
			h.log.Info("draft recovered",
				zap.String("session_id", s.ID),
				zap.String("status", string(s.Status)),
				zap.Int("pick", s.CurrentPick),
			)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// Len reports the number of resident lobbies.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lobbies)
}

// Shutdown stops every lobby and waits for each to exit or ctx to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	lobbies := make([]*lobby.Lobby, 0, len(h.lobbies))
	for _, lb := range h.lobbies {
		lobbies = append(lobbies, lb)
	}
	clear(h.lobbies)
	h.mu.Unlock()

	h.cancel()
	var err error
	for _, lb := range lobbies {
		select {
		case <-lb.Done():
		case <-ctx.Done():
			err = multierr.Append(err, fmt.Errorf("lobby %s: %w", lb.ID(), ctx.Err()))
		}
	}
	return err
}

func (h *Hub) snapshotCmd(ctx context.Context, id string, cmd func(*lobby.Lobby, context.Context) (engine.Snapshot, error)) (engine.Snapshot, error) {
	var snap engine.Snapshot
	err := h.withLobby(ctx, id, func(lb *lobby.Lobby) error {
		var err error
		snap, err = cmd(lb, ctx)
		return err
	})
	return snap, err
}

// withLobby runs fn against the draft's lobby, loading it from the store when
// it is not resident. A lobby that stops under us is retried once, which
// surfaces the stored terminal state as ErrInvalidState.
func (h *Hub) withLobby(ctx context.Context, id string, fn func(*lobby.Lobby) error) error {
	for attempt := 0; ; attempt++ {
		lb, err := h.lobbyFor(ctx, id)
		if err != nil {
			return err
		}
		err = fn(lb)
		if errors.Is(err, lobby.ErrClosed) && attempt == 0 {
			h.remove(id, lb)
			continue
		}
		return err
	}
}

func (h *Hub) lobbyFor(ctx context.Context, id string) (*lobby.Lobby, error) {
	if lb := h.lookup(id); lb != nil {
		return lb, nil
	}
	s, err := h.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status.Terminal() {
		return nil, fmt.Errorf("%w: draft %s is %s", engine.ErrInvalidState, id, s.Status)
	}
	return h.ensure(s)
}

func (h *Hub) lookup(id string) *lobby.Lobby {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lobbies[id]
}

// ensure returns the resident lobby for s.ID, creating it from s if needed.
func (h *Hub) ensure(s engine.Session) (*lobby.Lobby, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ctx.Err(); err != nil {
		return nil, fmt.Errorf("hub stopped: %w", err)
	}
	if lb := h.lobbies[s.ID]; lb != nil {
		return lb, nil
	}

	lb := lobby.NewLobby(h.ctx, s, lobby.Deps{
		Store:         h.store,
		Catalog:       h.catalog,
		Roster:        h.opts.Roster,
		Picker:        h.opts.Picker,
		Publisher:     h.publisher,
		Logger:        h.log,
		AutoPickRetry: h.opts.AutoPickRetry,
		SaveTimeout:   h.opts.SaveTimeout,
		Now:           h.opts.Now,
		OnTerminal:    func(l *lobby.Lobby) { h.remove(l.ID(), l) },
	})
	h.lobbies[s.ID] = lb
	return lb, nil
}

func (h *Hub) remove(id string, lb *lobby.Lobby) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lobbies[id] == lb {
		delete(h.lobbies, id)
	}
}
