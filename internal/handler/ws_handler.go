package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-chat/internal/config"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/internal/service"
	"github.com/weiawesome/wes-chat/pkg/log"
)

type WSHandler struct {
	hub      *hub.Hub
	service  service.SessionService
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub, svc service.SessionService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(wsCfg.AllowedOrigins),
		},
	}
}

// originChecker accepts any origin when the list is empty or contains "*".
// Requests without an Origin header come from non-browser clients and pass.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/chat/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and serves it until it closes. The
// read loop runs on the request goroutine so the request context lives as
// long as the connection.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	l := log.Ctx(c.Request.Context())

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	ctx := log.WithFields(c.Request.Context(), log.FieldConnectionID, client.ID)

	if err := h.hub.Register(client); err != nil {
		l.Warn().Err(err).Msg("failed to register websocket client")
		conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump(func(cl *hub.Client, raw []byte) {
		h.handleFrame(ctx, cl, raw)
	})

	if err := h.service.HandleDisconnect(ctx, client); err != nil {
		l.Warn().Err(err).Str(log.FieldConnectionID, client.ID).Msg("disconnect handling failed")
	}
}

// handleFrame decodes one client frame and routes it. Service errors have
// already been reported to the client; they are only logged here.
func (h *WSHandler) handleFrame(ctx context.Context, client *hub.Client, raw []byte) {
	var f domain.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		client.SendMessage(domain.BadFrame("invalid frame"))
		return
	}

	var err error
	switch f.Type {
	case domain.FrameAuth:
		err = h.service.HandleAuth(ctx, client, f.Token)
	case domain.FrameJoinChat:
		err = h.service.HandleJoinChat(ctx, client, f.ChatID)
	case domain.FrameLeaveChat:
		err = h.service.HandleLeaveChat(ctx, client, f.ChatID)
	case domain.FrameSendMessage:
		err = h.service.HandleSendMessage(ctx, client, &f)
	case domain.FramePing:
		err = client.SendMessage(domain.NewPong())
	default:
		err = client.SendMessage(domain.BadFrame("unknown frame type " + f.Type))
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("frame", f.Type).Str(log.FieldChatID, f.ChatID).Msg("websocket frame failed")
	}
}
