package chat_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"BeepPager/module/protocol"
	"BeepPager/service/chat"
	"BeepPager/service/chat/handlers"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type client struct {
	t  *testing.T
	ws *websocket.Conn
}

func startServer(t *testing.T, opts ...chat.Option) (*chat.Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := chat.NewServer(opts...)
	handlers.RegisterAll(srv.Disp())

	r := gin.New()
	srv.Routes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, ts.URL
}

func dial(t *testing.T, base string) *client {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return &client{t: t, ws: ws}
}

func (c *client) send(cmd protocol.Command) {
	c.t.Helper()
	raw, err := protocol.EncodeCommand(cmd)
	require.NoError(c.t, err)
	require.NoError(c.t, c.ws.WriteMessage(websocket.TextMessage, raw))
}

func (c *client) next() protocol.Event {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := c.ws.ReadMessage()
	require.NoError(c.t, err)
	e, err := protocol.DecodeEvent(raw)
	require.NoError(c.t, err)
	return e
}

func (c *client) login(user, device string) {
	c.t.Helper()
	c.send(protocol.Login{UserToken: user, DeviceToken: device, SecretKey: "unused"})
	require.Equal(c.t, protocol.LoggedIn{}, c.next())
}

func TestSessionDeliversLiveUpdates(t *testing.T) {
	srv, url := startServer(t)

	bob := dial(t, url)
	bob.login("bob", "phone")

	alice := dial(t, url)
	alice.login("alice", "laptop")
	require.Equal(t, protocol.DeviceOnline{}, bob.next())

	bob.send(protocol.Sync{DevicePts: 0})
	require.Equal(t, protocol.SyncUpdates{Synced: true, Updates: []protocol.Update{}}, bob.next())

	alice.send(protocol.SendMessage{Receiver: "bob", Contents: "hi bob"})
	require.Equal(t, protocol.UpdatePushed{Update: protocol.Update{
		Pts:     1,
		Payload: protocol.NewMessage{Sender: "alice", Contents: "hi bob"},
	}}, bob.next())

	require.NoError(t, alice.ws.Close())
	require.Equal(t, protocol.DeviceOffline{}, bob.next())
	require.Eventually(t, func() bool { return srv.Registry().Len() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestSessionCatchUp(t *testing.T) {
	srv, url := startServer(t)

	bob := dial(t, url)
	bob.login("bob", "phone")
	alice := dial(t, url)
	alice.login("alice", "laptop")
	require.Equal(t, protocol.DeviceOnline{}, bob.next())

	for i := 0; i < 12; i++ {
		alice.send(protocol.SendMessage{Receiver: "bob", Contents: "backlog"})
	}
	box, ok := srv.Directory().Lookup("bob")
	require.True(t, ok)
	require.Eventually(t, func() bool { return box.Pts() == 12 }, 3*time.Second, 10*time.Millisecond)

	bob.send(protocol.Sync{DevicePts: 0})
	su := bob.next().(protocol.SyncUpdates)
	require.False(t, su.Synced)
	require.False(t, su.TooLong)
	require.Len(t, su.Updates, 10)
	require.Equal(t, uint64(10), su.Updates[9].Pts)

	bob.send(protocol.Sync{DevicePts: 10})
	su = bob.next().(protocol.SyncUpdates)
	require.Len(t, su.Updates, 2)

	bob.send(protocol.Sync{DevicePts: 12})
	require.Equal(t, protocol.SyncUpdates{Synced: true, Updates: []protocol.Update{}}, bob.next())
}

func TestProtocolErrorsAreSilent(t *testing.T) {
	_, url := startServer(t)

	c := dial(t, url)
	c.send(protocol.Sync{DevicePts: 0})
	c.send(protocol.SendMessage{Receiver: "ghost", Contents: "?"})
	c.login("carol", "tablet")
	c.send(protocol.SendMessage{Receiver: "ghost", Contents: "?"})
	c.send(protocol.Sync{DevicePts: 0})
	require.Equal(t, protocol.SyncUpdates{Synced: true, Updates: []protocol.Update{}}, c.next())
}

func TestMalformedFrameEndsSession(t *testing.T) {
	srv, url := startServer(t)

	watcher := dial(t, url)
	watcher.login("watcher", "w")

	bad := dial(t, url)
	require.Eventually(t, func() bool { return srv.Registry().Len() == 2 }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, bad.ws.WriteMessage(websocket.TextMessage, []byte(`{"cmd":"logout"}`)))

	require.NoError(t, bad.ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := bad.ws.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseUnsupportedData), "%v", err)

	require.Equal(t, protocol.DeviceOffline{}, watcher.next())
	require.Eventually(t, func() bool { return srv.Registry().Len() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestServerCloseEndsSessions(t *testing.T) {
	srv, url := startServer(t)
	c := dial(t, url)
	c.login("dave", "pc")

	srv.Close()

	require.NoError(t, c.ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := c.ws.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "%v", err)
	require.Zero(t, srv.Registry().Len())
}

func TestHealthz(t *testing.T) {
	_, url := startServer(t)
	c := dial(t, url)
	c.login("erin", "pc")

	resp, err := http.Get(url + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string     `json:"status"`
		Stats  chat.Stats `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, chat.Stats{Connections: 1, Users: 1}, body.Stats)
}

func TestInvalidJSONEndsSession(t *testing.T) {
	_, url := startServer(t)
	c := dial(t, url)
	require.NoError(t, c.ws.WriteMessage(websocket.TextMessage, []byte(`not json`)))

	require.NoError(t, c.ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := c.ws.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseUnsupportedData), "%v", err)
}

func TestFrameMissingFieldsEndsSession(t *testing.T) {
	for _, frame := range []string{`{"cmd":"login"}`, `{"cmd":"sync"}`, `{"cmd":"send_message"}`} {
		t.Run(frame, func(t *testing.T) {
			srv, url := startServer(t)
			c := dial(t, url)
			require.NoError(t, c.ws.WriteMessage(websocket.TextMessage, []byte(frame)))

			require.NoError(t, c.ws.SetReadDeadline(time.Now().Add(3*time.Second)))
			_, _, err := c.ws.ReadMessage()
			require.True(t, websocket.IsCloseError(err, websocket.CloseUnsupportedData), "%v", err)

			require.Eventually(t, func() bool { return srv.Registry().Len() == 0 }, 3*time.Second, 10*time.Millisecond)
			require.Zero(t, srv.Directory().Len())
		})
	}
}

func TestCloseRacingNewSessions(t *testing.T) {
	srv, url := startServer(t)
	wsURL := "ws" + strings.TrimPrefix(url, "http") + "/ws"

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				return
			}
			defer ws.Close()
			_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}

	srv.Close()
	require.Zero(t, srv.Registry().Len())
	wg.Wait()
	require.Zero(t, srv.Registry().Len())
}
