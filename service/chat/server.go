package chat

import (
	"context"
	"sync"
	"time"

	"BeepPager/logger"
	"BeepPager/module/directory"
	"BeepPager/module/events"
	"BeepPager/module/mailbox"
	"BeepPager/module/protocol"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrUnknownReceiver = errors.New("unknown receiver")
	ErrUnauthorized    = errors.New("unauthorized")
)

// Authenticator checks the credential presented with a login command.
type Authenticator interface {
	Authenticate(user, device, secret string) error
}

// PresenceStore mirrors which devices are online.
type PresenceStore interface {
	Online(ctx context.Context, user, device string, connID uint64) error
	Offline(ctx context.Context, user, device string, connID uint64) error
}

// UpdateArchive keeps a copy of every posted update.
type UpdateArchive interface {
	Append(ctx context.Context, receiver string, u protocol.Update) error
}

type Server struct {
	dir  *directory.Directory
	reg  *Registry
	disp *Dispatcher

	auth     Authenticator
	presence PresenceStore
	archive  UpdateArchive
	bus      events.Bus

	retention     int
	syncBatch     int
	outboundLimit int
	pingInterval  time.Duration
	pongWait      time.Duration
	writeWait     time.Duration
	readLimit     int64
	sinkTimeout   time.Duration

	// lifeMu orders session admission against Close.
	lifeMu    sync.Mutex
	closeOnce sync.Once
	closing   chan struct{}
	sessions  sync.WaitGroup
}

type Option func(*Server)

func WithRetention(n int) Option               { return func(s *Server) { s.retention = n } }
func WithSyncBatch(n int) Option               { return func(s *Server) { s.syncBatch = n } }
func WithOutboundLimit(n int) Option           { return func(s *Server) { s.outboundLimit = n } }
func WithReadLimit(n int64) Option             { return func(s *Server) { s.readLimit = n } }
func WithAuthenticator(a Authenticator) Option { return func(s *Server) { s.auth = a } }
func WithPresenceStore(p PresenceStore) Option { return func(s *Server) { s.presence = p } }
func WithUpdateArchive(a UpdateArchive) Option { return func(s *Server) { s.archive = a } }
func WithEventBus(b events.Bus) Option         { return func(s *Server) { s.bus = b } }

// WithHeartbeat sets the ping period, how long to wait for a pong and the
// write deadline. Zero values keep the defaults.
func WithHeartbeat(ping, pong, write time.Duration) Option {
	return func(s *Server) {
		if ping > 0 {
			s.pingInterval = ping
		}
		if pong > 0 {
			s.pongWait = pong
		}
		if write > 0 {
			s.writeWait = write
		}
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		reg:          NewRegistry(),
		disp:         NewDispatcher(),
		retention:    mailbox.DefaultRetention,
		syncBatch:    mailbox.DefaultSyncBatch,
		pingInterval: 25 * time.Second,
		pongWait:     60 * time.Second,
		writeWait:    10 * time.Second,
		readLimit:    1 << 20,
		sinkTimeout:  2 * time.Second,
		closing:      make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.dir = directory.New(s.retention, mailbox.WithSyncBatch(s.syncBatch))
	return s
}

func (s *Server) Disp() *Dispatcher               { return s.disp }
func (s *Server) Registry() *Registry             { return s.reg }
func (s *Server) Directory() *directory.Directory { return s.dir }

// Accept creates and registers the handle of a new connection.
func (s *Server) Accept() *Conn {
	c := newConn(s.outboundLimit)
	s.reg.Register(c)
	return c
}

// Login binds c to user, broadcasts device_online to every other connection and
// confirms with logged_in. A re-login on the same connection drops its previous
// subscription.
func (s *Server) Login(ctx context.Context, c *Conn, user, device, secret string) error {
	if s.auth != nil {
		if err := s.auth.Authenticate(user, device, secret); err != nil {
			return errors.Wrapf(ErrUnauthorized, "user=%s device=%s: %v", user, device, err)
		}
	}

	box := s.dir.GetOrCreate(user)
	prevUser, prevDevice, prevBox := c.bind(user, device, box)
	if prevBox != nil {
		prevBox.Unsubscribe(c)
		c.subscribed.Store(false)
		s.mirrorPresence(ctx, c.id, prevUser, prevDevice, false)
	}

	s.reg.Broadcast(protocol.DeviceOnline{}, c.id)
	c.Push(protocol.LoggedIn{})
	logger.Info("[chat] logged in", zap.Uint64("conn", c.id), zap.String("user", user), zap.String("device", device))

	s.mirrorPresence(ctx, c.id, user, device, true)
	return nil
}

// SubscribeOrSync answers a sync command. A caught-up device is subscribed and
// the confirmation is pushed by the mailbox; otherwise the next batch is sent.
func (s *Server) SubscribeOrSync(_ context.Context, c *Conn, devicePts uint64) error {
	user, _, box := c.session()
	if box == nil {
		return ErrNotLoggedIn
	}

	oos, err := box.SubscribeOrSync(devicePts, c)
	if err != nil {
		return errors.Wrapf(err, "sync user=%s", user)
	}
	if oos == nil {
		if pts := box.Pts(); devicePts > pts {
			logger.Warn("[chat] device ahead of mailbox",
				zap.Uint64("conn", c.id), zap.String("user", user),
				zap.Uint64("device_pts", devicePts), zap.Uint64("pts", pts))
		}
		return nil
	}

	c.subscribed.Store(false)
	c.Push(protocol.SyncUpdates{TooLong: oos.TooLong, Updates: oos.Updates})
	return nil
}

// SendMessage posts a new_message update to receiver's mailbox.
func (s *Server) SendMessage(ctx context.Context, c *Conn, receiver, contents string) error {
	sender, _, box := c.session()
	if box == nil {
		return ErrNotLoggedIn
	}
	target, ok := s.dir.Lookup(receiver)
	if !ok {
		return errors.Wrapf(ErrUnknownReceiver, "receiver=%s", receiver)
	}

	u := target.Post(protocol.NewMessage{Sender: sender, Contents: contents})
	logger.Debug("[chat] posted", zap.String("from", sender), zap.String("to", receiver), zap.Uint64("pts", u.Pts))

	s.mirrorUpdate(ctx, receiver, u)
	return nil
}

// Teardown removes c from the registry, revokes its subscription, closes its
// queue and broadcasts device_offline. Only the first call has an effect.
func (s *Server) Teardown(c *Conn) {
	c.teardown.Do(func() {
		s.reg.Unregister(c.id)
		user, device, box := c.session()
		if box != nil {
			box.Unsubscribe(c)
		}
		c.subscribed.Store(false)
		c.out.close()
		n := s.reg.Broadcast(protocol.DeviceOffline{}, c.id)
		logger.Info("[chat] teardown", zap.Uint64("conn", c.id), zap.String("user", user), zap.Int("notified", n))

		if box != nil {
			ctx, cancel := context.WithTimeout(context.Background(), s.sinkTimeout)
			defer cancel()
			s.mirrorPresence(ctx, c.id, user, device, false)
		}
	})
}

// Close asks every running session to terminate and waits for them. Sessions
// arriving afterwards are refused.
func (s *Server) Close() {
	s.lifeMu.Lock()
	s.closeOnce.Do(func() { close(s.closing) })
	s.lifeMu.Unlock()
	s.sessions.Wait()
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			logger.Warnf("[chat] close event bus: %v", err)
		}
	}
}

type Stats struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
}

func (s *Server) Stats() Stats {
	return Stats{Connections: s.reg.Len(), Users: s.dir.Len()}
}

func (s *Server) mirrorPresence(ctx context.Context, connID uint64, user, device string, online bool) {
	if s.presence != nil {
		var err error
		if online {
			err = s.presence.Online(ctx, user, device, connID)
		} else {
			err = s.presence.Offline(ctx, user, device, connID)
		}
		if err != nil {
			logger.Warn("[chat] presence store", zap.String("user", user), zap.Bool("online", online), zap.Error(err))
		}
	}
	if s.bus != nil {
		p := events.Presence{User: user, Device: device, ConnID: connID, Online: online, At: events.Now()}
		if err := s.bus.PublishPresence(ctx, p); err != nil {
			logger.Warn("[chat] publish presence", zap.String("user", user), zap.Error(err))
		}
	}
}

func (s *Server) mirrorUpdate(ctx context.Context, receiver string, u protocol.Update) {
	if s.archive != nil {
		if err := s.archive.Append(ctx, receiver, u); err != nil {
			logger.Warn("[chat] archive update", zap.String("receiver", receiver), zap.Uint64("pts", u.Pts), zap.Error(err))
		}
	}
	if s.bus != nil {
		p := events.Posted{Receiver: receiver, Update: u, At: events.Now()}
		if err := s.bus.PublishUpdate(ctx, p); err != nil {
			logger.Warn("[chat] publish update", zap.String("receiver", receiver), zap.Error(err))
		}
	}
}
