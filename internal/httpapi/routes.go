package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bot-draft-backend/internal/broadcast"
	"github.com/DoyleJ11/bot-draft-backend/internal/catalog"
	"github.com/DoyleJ11/bot-draft-backend/internal/hub"
	"github.com/DoyleJ11/bot-draft-backend/internal/logging"
	"github.com/DoyleJ11/bot-draft-backend/internal/ws"
)

type Deps struct {
	Hub         *hub.Hub
	Broadcaster *broadcast.Broadcaster
	Catalog     *catalog.Catalog
	Defaults    Defaults
	WS          ws.Options
	Logger      *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	log := logging.OrNop(d.Logger)
	v := validator.New()
	if d.WS.Logger == nil {
		d.WS.Logger = log
	}
	wsHandler := ws.Handler(d.Hub, d.Broadcaster, d.WS)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogging(log))

	r.Get("/healthz", Healthz)
	r.Get("/ws", wsHandler)

	r.Route("/drafts", func(r chi.Router) {
		r.Get("/", ListDrafts(d.Hub))
		r.Post("/", CreateDraft(d.Hub, d.Catalog, v, d.Defaults, log))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", GetDraft(d.Hub))
			r.Get("/board", GetBoard(d.Hub))
			r.Get("/available", GetAvailable(d.Hub))
			r.Get("/teams/{team}", GetTeam(d.Hub))
			r.Post("/start", StartDraft(d.Hub))
			r.Post("/cancel", CancelDraft(d.Hub))
			r.Post("/resume", ResumeDraft(d.Hub))
			r.Post("/picks", SubmitPick(d.Hub, v))
			r.Get("/ws", wsHandler)
		})
	})

	r.Get("/players", ListPlayers(d.Catalog))
	r.Post("/players", AddPlayers(d.Catalog, v, log))
	return r
}
