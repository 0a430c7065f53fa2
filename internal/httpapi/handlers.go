package httpapi

import (
	"context"
	"math/rand/v2"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bot-draft-backend/internal/catalog"
	"github.com/DoyleJ11/bot-draft-backend/internal/engine"
	"github.com/DoyleJ11/bot-draft-backend/internal/hub"
	"github.com/DoyleJ11/bot-draft-backend/pkg/types"
)

// Defaults fill in draft settings a create request leaves out.
type Defaults struct {
	Rounds       int
	PickDuration time.Duration
}

func CreateDraft(h *hub.Hub, cat *catalog.Catalog, v *validator.Validate, d Defaults, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateDraftRequest
		if err := decodeJSON(r.Context(), r, v, &req); err != nil {
			writeError(w, err)
			return
		}

		order := req.TeamOrder
		if req.RandomizeOrder {
			order = shuffled(order)
		}
		cfg := engine.Config{
			ID:           req.ID,
			TeamOrder:    order,
			Rounds:       d.Rounds,
			PickDuration: d.PickDuration,
			Snake:        true,
			PositionCaps: req.PositionCaps,
		}
		if req.Rounds > 0 {
			cfg.Rounds = req.Rounds
		}
		if req.PickSeconds > 0 {
			cfg.PickDuration = time.Duration(req.PickSeconds) * time.Second
		}
		if req.Snake != nil {
			cfg.Snake = *req.Snake
		}
		if cfg.PositionCaps == nil && cat != nil {
			cfg.PositionCaps = cat.Caps()
		}

		snap, err := h.Schedule(r.Context(), cfg)
		if err != nil {
			log.Info("create draft rejected", zap.Error(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, snap)
	}
}

func ListDrafts(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		drafts, err := h.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, drafts)
	}
}

func GetDraft(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := h.Snapshot(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func GetBoard(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		board, err := h.Board(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, board)
	}
}

func GetTeam(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := h.TeamSummary(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "team"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// GetAvailable lists the players a draft can still take, best ranked first.
func GetAvailable(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		available, err := h.Available(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, available)
	}
}

func StartDraft(h *hub.Hub) http.HandlerFunc { return draftAction(h.Start) }
func CancelDraft(h *hub.Hub) http.HandlerFunc { return draftAction(h.Cancel) }
func ResumeDraft(h *hub.Hub) http.HandlerFunc { return draftAction(h.Resume) }

func draftAction(action func(ctx context.Context, id string) (engine.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := action(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func SubmitPick(h *hub.Hub, v *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SubmitPickRequest
		if err := decodeJSON(r.Context(), r, v, &req); err != nil {
			writeError(w, err)
			return
		}
		slot, err := h.SubmitPick(r.Context(), engine.PickRequest{
			SessionID:  chi.URLParam(r, "id"),
			PickNumber: req.PickNumber,
			EntityID:   req.EntityID,
			TeamID:     req.TeamID,
			Override:   req.Override,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, slot)
	}
}

// AddPlayers adds players to the shared pool. Stalled drafts pick them up on
// their next resume.
func AddPlayers(cat *catalog.Catalog, v *validator.Validate, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.AddPlayersRequest
		if err := decodeJSON(r.Context(), r, v, &req); err != nil {
			writeError(w, err)
			return
		}
		players := make([]catalog.Player, 0, len(req.Players))
		for _, p := range req.Players {
			players = append(players, p.Player())
		}
		cat.Add(players...)
		log.Info("player pool replenished", zap.Int("added", len(players)), zap.Int("total", cat.Len()))
		writeJSON(w, http.StatusCreated, types.AddPlayersResponse{Added: len(players), Total: cat.Len()})
	}
}

func ListPlayers(cat *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cat.Players())
	}
}

func shuffled(order []string) []string {
	out := slices.Clone(order)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
