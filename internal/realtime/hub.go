// Package realtime carries the persistent chat channel. Authentication
// happens exactly once, at connection establishment; frames after the
// handshake are never re-validated.
package realtime

import (
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/net/websocket"

	"github.com/openincube/platform/internal/auth"
	"github.com/openincube/platform/internal/middleware"
	"github.com/openincube/platform/internal/model"
)

// Frame is the JSON message exchanged over a session.
type Frame struct {
	Type   string `json:"type"` // ping | pong | chat | error
	Body   string `json:"body,omitempty"`
	From   string `json:"from,omitempty"`
	Tenant string `json:"tenant,omitempty"`
	Error  string `json:"error,omitempty"`
}

type session struct {
	conn     *websocket.Conn
	identity *middleware.Identity // nil for unauthenticated connections
	sendMu   sync.Mutex
}

func (s *session) send(f Frame) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return websocket.JSON.Send(s.conn, f)
}

// Hub tracks live sessions and relays chat frames within a tenant.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*session]struct{}
}

func NewHub() *Hub {
	return &Hub{sessions: map[*session]struct{}{}}
}

// Handler upgrades the request and runs the handshake gate: the token is
// taken from the `token` query parameter or the Authorization header and
// validated with the same codec-plus-live-user check as the HTTP gate. A
// missing or bad token does not refuse the connection; it only leaves the
// session's identity unset, and identity-requiring frames are rejected
// later (the safe default).
func (h *Hub) Handler(codec *auth.Codec, resolver middleware.SubjectResolver) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := c.QueryParam("token")
		if raw == "" {
			raw, _ = middleware.BearerToken(c.Request().Header.Get("Authorization"))
		}
		var id *middleware.Identity
		if raw != "" {
			id, _ = middleware.ResolveIdentity(c.Request().Context(), codec, resolver, raw)
		}
		websocket.Handler(func(ws *websocket.Conn) {
			h.serve(ws, id)
		}).ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

func (h *Hub) serve(ws *websocket.Conn, id *middleware.Identity) {
	s := &session{conn: ws, identity: id}
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.sessions, s)
		h.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		var f Frame
		if err := websocket.JSON.Receive(ws, &f); err != nil {
			return
		}
		switch f.Type {
		case "ping":
			_ = s.send(Frame{Type: "pong"})
		case "chat":
			if !CanSend(s.identity, f.Type) {
				_ = s.send(Frame{Type: "error", Error: "authentication required"})
				return
			}
			h.broadcast(s.identity, Frame{
				Type:   "chat",
				Body:   f.Body,
				From:   s.identity.Email,
				Tenant: s.identity.TenantID,
			})
		default:
			_ = s.send(Frame{Type: "error", Error: "unknown frame type"})
		}
	}
}

// CanSend decides whether a session may emit a frame of the given type.
// Pings are always allowed; everything else requires an identity from the
// handshake.
func CanSend(id *middleware.Identity, frameType string) bool {
	if frameType == "ping" {
		return true
	}
	return id != nil
}

// broadcast relays a frame to every session in the sender's tenant.
// SUPER_ADMIN sessions are unscoped: they receive all traffic, and frames
// they send reach every tenant-scoped session.
func (h *Hub) broadcast(sender *middleware.Identity, f Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		if s.identity == nil {
			continue
		}
		if !sameAudience(sender, s.identity) {
			continue
		}
		_ = s.send(f)
	}
}

func sameAudience(sender, receiver *middleware.Identity) bool {
	if sender.Role == model.RoleSuperAdmin || receiver.Role == model.RoleSuperAdmin {
		return true
	}
	return sender.TenantID == receiver.TenantID
}
