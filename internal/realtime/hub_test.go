package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/openincube/platform/internal/auth"
	"github.com/openincube/platform/internal/middleware"
	"github.com/openincube/platform/internal/model"
	"github.com/openincube/platform/internal/service"
)

func TestCanSend(t *testing.T) {
	id := &middleware.Identity{UserID: 1, Role: model.RoleStartup}

	assert.True(t, CanSend(nil, "ping"), "unauthenticated sessions may ping")
	assert.False(t, CanSend(nil, "chat"), "chat requires a handshake identity")
	assert.True(t, CanSend(id, "ping"))
	assert.True(t, CanSend(id, "chat"))
}

func TestSameAudience(t *testing.T) {
	root := &middleware.Identity{Role: model.RoleSuperAdmin}
	a1 := &middleware.Identity{Role: model.RoleStartup, TenantID: "tenant-a"}
	a2 := &middleware.Identity{Role: model.RoleMentor, TenantID: "tenant-a"}
	b := &middleware.Identity{Role: model.RoleStartup, TenantID: "tenant-b"}

	assert.True(t, sameAudience(a1, a2), "same tenant hears each other")
	assert.False(t, sameAudience(a1, b), "tenants are isolated")
	assert.True(t, sameAudience(root, a1), "super admin reaches every tenant")
	assert.True(t, sameAudience(a1, root), "super admin hears every tenant")
}

type hubFixture struct {
	srv   *httptest.Server
	codec *auth.Codec
	users map[string]model.User
}

func (fx *hubFixture) ResolveActiveSubject(_ context.Context, email string) (model.User, error) {
	u, ok := fx.users[email]
	if !ok || !u.IsActive {
		return model.User{}, service.ErrAuthenticationFailed
	}
	return u, nil
}

var _ middleware.SubjectResolver = (*hubFixture)(nil)

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	fx := &hubFixture{
		codec: auth.NewCodec("hub-secret", 15),
		users: map[string]model.User{},
	}
	hub := NewHub()
	e := echo.New()
	e.GET("/v1/ws", hub.Handler(fx.codec, fx))
	fx.srv = httptest.NewServer(e)
	t.Cleanup(fx.srv.Close)
	return fx
}

func (fx *hubFixture) addUser(u model.User) { fx.users[u.Email] = u }

func (fx *hubFixture) token(t *testing.T, u model.User) string {
	t.Helper()
	tok, err := fx.codec.Issue(u)
	require.NoError(t, err)
	return tok.Token
}

// dial opens a websocket client with an optional token query parameter and
// waits for a ping round trip so the session is registered in the hub
// before the test continues.
func (fx *hubFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(fx.srv.URL, "http") + "/v1/ws"
	if token != "" {
		wsURL += "?token=" + token
	}
	ws, err := websocket.Dial(wsURL, "", fx.srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	require.NoError(t, websocket.JSON.Send(ws, Frame{Type: "ping"}))
	require.Equal(t, "pong", recvFrame(t, ws).Type)
	return ws
}

func recvFrame(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	var f Frame
	require.NoError(t, websocket.JSON.Receive(ws, &f))
	return f
}

func TestHub_ChatWithoutIdentityRejectedAndClosed(t *testing.T) {
	fx := newHubFixture(t)
	ws := fx.dial(t, "")

	require.NoError(t, websocket.JSON.Send(ws, Frame{Type: "chat", Body: "hi"}))
	f := recvFrame(t, ws)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "authentication required", f.Error)

	// The server closes after the rejection; the next read fails.
	var next Frame
	assert.Error(t, websocket.JSON.Receive(ws, &next))
}

func TestHub_BadTokenStillConnectsUnauthenticated(t *testing.T) {
	fx := newHubFixture(t)
	ws := fx.dial(t, "not-a-token")

	require.NoError(t, websocket.JSON.Send(ws, Frame{Type: "chat", Body: "hi"}))
	assert.Equal(t, "error", recvFrame(t, ws).Type)
}

func TestHub_ChatStaysInsideTenant(t *testing.T) {
	fx := newHubFixture(t)
	ada := model.User{ID: 1, Email: "ada@a.test", Role: model.RoleStartup, TenantID: "tenant-a", IsActive: true}
	bob := model.User{ID: 2, Email: "bob@a.test", Role: model.RoleMentor, TenantID: "tenant-a", IsActive: true}
	eve := model.User{ID: 3, Email: "eve@b.test", Role: model.RoleStartup, TenantID: "tenant-b", IsActive: true}
	for _, u := range []model.User{ada, bob, eve} {
		fx.addUser(u)
	}

	wsAda := fx.dial(t, fx.token(t, ada))
	wsBob := fx.dial(t, fx.token(t, bob))
	wsEve := fx.dial(t, fx.token(t, eve))

	require.NoError(t, websocket.JSON.Send(wsAda, Frame{Type: "chat", Body: "standup in 5"}))

	// Ada and Bob share a tenant; both receive the frame.
	for _, ws := range []*websocket.Conn{wsAda, wsBob} {
		f := recvFrame(t, ws)
		assert.Equal(t, "chat", f.Type)
		assert.Equal(t, "standup in 5", f.Body)
		assert.Equal(t, ada.Email, f.From)
		assert.Equal(t, "tenant-a", f.Tenant)
	}

	// Eve is in another tenant. A ping round trip proves her connection is
	// live and that no chat frame was queued ahead of the pong.
	require.NoError(t, websocket.JSON.Send(wsEve, Frame{Type: "ping"}))
	assert.Equal(t, "pong", recvFrame(t, wsEve).Type)
}

func TestHub_SuperAdminHearsEveryTenant(t *testing.T) {
	fx := newHubFixture(t)
	root := model.User{ID: 9, Email: "root@hq.test", Role: model.RoleSuperAdmin, IsActive: true}
	ada := model.User{ID: 1, Email: "ada@a.test", Role: model.RoleStartup, TenantID: "tenant-a", IsActive: true}
	fx.addUser(root)
	fx.addUser(ada)

	wsRoot := fx.dial(t, fx.token(t, root))
	wsAda := fx.dial(t, fx.token(t, ada))

	require.NoError(t, websocket.JSON.Send(wsAda, Frame{Type: "chat", Body: "hello"}))

	f := recvFrame(t, wsRoot)
	assert.Equal(t, "chat", f.Type)
	assert.Equal(t, "hello", f.Body)
}

func TestHub_UnknownFrameType(t *testing.T) {
	fx := newHubFixture(t)
	ws := fx.dial(t, "")

	require.NoError(t, websocket.JSON.Send(ws, Frame{Type: "subscribe"}))
	f := recvFrame(t, ws)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "unknown frame type", f.Error)
}
