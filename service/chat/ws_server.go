package chat

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"BeepPager/logger"
	"BeepPager/module/protocol"
	"BeepPager/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrServerClosing = errors.New("server closing")
	ErrBadFrame      = errors.New("bad frame")
)

var upgrader = websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(r *http.Request) bool { return true }}

// HandleWS upgrades the request and runs the session until it ends.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already replied with an HTTP error
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}
	s.Serve(c.Request.Context(), ws)
}

// admit registers a running session unless the server is closing.
func (s *Server) admit() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	select {
	case <-s.closing:
		return false
	default:
	}
	s.sessions.Add(1)
	return true
}

type inbound struct {
	mt   int
	data []byte
	err  error
}

// Serve multiplexes one websocket: queued events are written out, inbound
// commands are dispatched, and pings keep the peer alive. The first transport
// error ends the session, after which the connection is torn down and closed.
func (s *Server) Serve(ctx context.Context, ws *websocket.Conn) {
	if !s.admit() {
		_ = ws.Close()
		return
	}
	defer s.sessions.Done()

	conn := s.Accept()
	q, err := conn.takeQueue()
	if err != nil {
		logger.Errorf("[WS] conn=%d: %v", conn.id, err)
		s.Teardown(conn)
		_ = ws.Close()
		return
	}
	logger.Info("[WS] connected", zap.Uint64("conn", conn.id), zap.Stringer("remote", ws.RemoteAddr()))

	ws.SetReadLimit(s.readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(s.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	frames := make(chan inbound)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	safe.Go("ws-reader", func() {
		defer wg.Done()
		readLoop(ws, frames, done)
	})

	ticker := time.NewTicker(s.pingInterval)
	err = s.loop(ctx, conn, q, ws, frames, ticker.C)
	ticker.Stop()
	close(done)

	s.Teardown(conn)

	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCode(err), ""), time.Now().Add(s.writeWait))
	_ = ws.Close()
	wg.Wait()

	logExit(conn, err)
}

func (s *Server) loop(ctx context.Context, conn *Conn, q *outbox, ws *websocket.Conn, frames <-chan inbound, ping <-chan time.Time) error {
	cc := &ChatContext{S: s, Ctx: ctx}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.closing:
			return ErrServerClosing

		case <-q.ready:
			evs, qerr := q.drain()
			for _, e := range evs {
				if err := s.writeEvent(ws, e); err != nil {
					return err
				}
			}
			if qerr != nil {
				return qerr
			}

		case in := <-frames:
			if in.err != nil {
				return in.err
			}
			if in.mt != websocket.TextMessage && in.mt != websocket.BinaryMessage {
				continue
			}
			cmd, err := protocol.DecodeCommand(in.data)
			if err != nil {
				return errors.Wrapf(ErrBadFrame, "%v", err)
			}
			if err := s.disp.Dispatch(cc, cmd, conn); err != nil {
				logger.Warn("[WS] command dropped", zap.Uint64("conn", conn.id), zap.String("cmd", cmd.Cmd()), zap.Error(err))
			}

		case <-ping:
			if err := ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.writeWait)); err != nil {
				return errors.Wrap(err, "write ping")
			}
		}
	}
}

func readLoop(ws *websocket.Conn, frames chan<- inbound, done <-chan struct{}) {
	for {
		mt, data, err := ws.ReadMessage()
		select {
		case frames <- inbound{mt: mt, data: data, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) writeEvent(ws *websocket.Conn, e protocol.Event) error {
	raw, err := protocol.EncodeEvent(e)
	if err != nil {
		return errors.Wrapf(err, "encode %s", e.EventName())
	}
	_ = ws.SetWriteDeadline(time.Now().Add(s.writeWait))
	if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
		return errors.Wrapf(err, "write %s", e.EventName())
	}
	return nil
}

func closeCode(err error) int {
	switch {
	case errors.Is(err, ErrSlowConsumer):
		return websocket.ClosePolicyViolation
	case errors.Is(err, ErrServerClosing):
		return websocket.CloseGoingAway
	case errors.Is(err, ErrBadFrame):
		return websocket.CloseUnsupportedData
	}
	return websocket.CloseNormalClosure
}

func logExit(conn *Conn, err error) {
	user, _ := conn.User()
	var ne net.Error
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		logger.Infof("[WS] peer closed conn=%d user=%s", conn.id, user)
	case errors.As(err, &ne) && ne.Timeout():
		logger.Infof("[WS] read timeout conn=%d user=%s err=%v", conn.id, user, err)
	case errors.Is(err, ErrServerClosing), errors.Is(err, context.Canceled):
		logger.Infof("[WS] shutdown conn=%d user=%s", conn.id, user)
	default:
		logger.Warnf("[WS] session ended conn=%d user=%s err=%v", conn.id, user, err)
	}
}
