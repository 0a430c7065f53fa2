package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bot-draft-backend/internal/broadcast"
	"github.com/DoyleJ11/bot-draft-backend/internal/engine"
	"github.com/DoyleJ11/bot-draft-backend/internal/hub"
	"github.com/DoyleJ11/bot-draft-backend/internal/logging"
	"github.com/DoyleJ11/bot-draft-backend/pkg/types"
)

type Options struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	OriginPatterns []string
	Logger         *zap.Logger
}

// Handler upgrades the request and streams the draft's events to the client.
// The draft id comes from the {id} route param or the draft query param.
func Handler(h *hub.Hub, b *broadcast.Broadcaster, opts Options) http.HandlerFunc {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	log := logging.OrNop(opts.Logger)

	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			id = r.URL.Query().Get("draft")
		}
		if id == "" {
			http.Error(w, "missing draft", http.StatusBadRequest)
			return
		}
		if _, err := h.Snapshot(r.Context(), id); err != nil {
			if errors.Is(err, engine.ErrSessionNotFound) {
				http.Error(w, "draft not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns})
		if err != nil {
			return
		}
		defer c.CloseNow()

		conn := NewConn(c)
		sub, err := b.Subscribe(r.Context(), id, conn)
		if err != nil {
			log.Warn("subscribe failed", zap.String("session_id", id), zap.Error(err))
			_ = c.Close(websocket.StatusInternalError, "subscribe failed")
			return
		}
		defer b.Unsubscribe(sub)

		// stop reading once the broadcaster drops us
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			select {
			case <-sub.Done():
				cancel()
			case <-ctx.Done():
			}
		}()

		s := session{id: id, hub: h, conn: conn, writeTimeout: opts.WriteTimeout, log: log.With(
			zap.String("session_id", id),
			zap.String("subscriber_id", sub.ID),
		)}

		// Reader loop
		for {
			readCtx, readCancel := context.WithTimeout(ctx, opts.ReadTimeout)
			_, data, err := c.Read(readCtx)
			readCancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					s.log.Debug("websocket read ended", zap.Error(err))
				}
				return
			}
			s.handle(ctx, data)
		}
	}
}

type session struct {
	id           string
	hub          *hub.Hub
	conn         *Conn
	writeTimeout time.Duration
	log          *zap.Logger
}

func (s session) handle(ctx context.Context, data []byte) {
	var msg types.ClientMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		s.reply(ctx, types.ServerMessage{Type: types.MsgError, Code: "bad_json", Error: "bad json"})
		return
	}

	switch msg.Type {
	case types.MsgPing:
		s.reply(ctx, types.ServerMessage{Type: types.MsgPong})

	case types.MsgGetState:
		snap, err := s.hub.Snapshot(ctx, s.id)
		if err != nil {
			s.replyErr(ctx, err)
			return
		}
		s.reply(ctx, engine.SnapshotEvent(snap))

	case types.MsgSubmitPick:
		// success is visible to everyone as pick_made; only failures are private
		if _, err := s.hub.SubmitPick(ctx, msg.PickRequest(s.id)); err != nil {
			s.replyErr(ctx, err)
		}

	default:
		s.reply(ctx, types.ServerMessage{Type: types.MsgError, Code: "unknown_type", Error: "unknown type"})
	}
}

func (s session) replyErr(ctx context.Context, err error) {
	s.reply(ctx, types.ServerMessage{Type: types.MsgError, Code: engine.ErrorCode(err), Error: err.Error()})
}

func (s session) reply(ctx context.Context, v any) {
	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	if err := s.conn.write(wctx, v); err != nil {
		s.log.Debug("reply failed", zap.Error(err))
	}
}
