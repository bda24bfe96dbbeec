package global

import (
	"context"
	"time"

	"BeepPager/global/config"
	"BeepPager/logger"
	"BeepPager/module/events"
	"BeepPager/service/chat"
	ka "BeepPager/service/kafka"
	"BeepPager/service/natsx"
	"BeepPager/service/storage"
	redis "BeepPager/service/storage/redis"
	"BeepPager/tools/ids"
	"BeepPager/tools/security"

	"github.com/pkg/errors"
)

// Stack is the set of backends the chat server is wired to.
type Stack struct {
	Options []chat.Option
	closers []func() error
}

// Close releases the clients opened by ConfigAll in reverse order. Event buses
// are owned by the chat server and closed by it.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warnf("[global] close: %v", err)
		}
	}
	s.closers = nil
}

// ConfigAll builds the server options from cfg. Backends left unconfigured are
// skipped; a configured backend that cannot be reached is an error.
func ConfigAll(ctx context.Context, cfg config.Config) (*Stack, error) {
	ConfigIds(cfg)

	st := &Stack{Options: []chat.Option{
		chat.WithRetention(cfg.MailboxRetention),
		chat.WithSyncBatch(cfg.SyncBatch),
		chat.WithOutboundLimit(cfg.OutboundLimit),
		chat.WithReadLimit(cfg.ReadLimit),
		chat.WithHeartbeat(cfg.PingInterval, cfg.PongWait, cfg.WriteWait),
	}}
	if a := ConfigAuth(cfg); a != nil {
		st.Options = append(st.Options, chat.WithAuthenticator(a))
	}

	if err := ConfigRedis(ctx, cfg, st); err != nil {
		st.Close()
		return nil, err
	}

	var buses []events.Bus
	if cfg.NATSURL != "" {
		b, err := ConfigNats(cfg)
		if err != nil {
			st.Close()
			return nil, err
		}
		buses = append(buses, b)
	}
	if len(cfg.KafkaBrokers) > 0 {
		b, err := ConfigKafka(cfg)
		if err != nil {
			for _, o := range buses {
				_ = o.Close()
			}
			st.Close()
			return nil, err
		}
		buses = append(buses, b)
	}
	if len(buses) > 0 {
		st.Options = append(st.Options, chat.WithEventBus(events.Fanout(buses...)))
	}
	return st, nil
}

func ConfigIds(cfg config.Config) {
	ids.SetNodeID(cfg.NodeID)
}

// ConfigAuth returns nil when no secret is set, which accepts every login.
func ConfigAuth(cfg config.Config) chat.Authenticator {
	if cfg.JWTSecret == "" {
		logger.Warn("[global] BP_JWT_SECRET not set, logins are not verified")
		return nil
	}
	return security.NewJWTAuthenticator(security.DefaultOptions([]byte(cfg.JWTSecret)))
}

// ConfigRedis mirrors presence and updates into Redis when BP_REDIS_ADDR is set.
func ConfigRedis(ctx context.Context, cfg config.Config, st *Stack) error {
	if cfg.RedisAddr == "" {
		return nil
	}
	rdb, err := redis.Open(ctx, redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	st.closers = append(st.closers, rdb.Close)
	st.Options = append(st.Options,
		chat.WithPresenceStore(storage.NewPresence(rdb, 24*time.Hour)),
		chat.WithUpdateArchive(storage.NewArchive(rdb, int64(cfg.MailboxRetention))),
	)
	logger.Infof("[global] redis ready at %s", cfg.RedisAddr)
	return nil
}

func ConfigNats(cfg config.Config) (events.Bus, error) {
	nc, err := natsx.Connect(natsx.NatsxConfig{
		Servers: []string{cfg.NATSURL},
		Name:    "beeppager",
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("[global] nats ready at %s, subject %s", nc.ConnectedUrl(), cfg.NATSSubject)
	return natsx.NewBus(nc, cfg.NATSSubject, natsx.WithRetry(2, 100*time.Millisecond)), nil
}

func ConfigKafka(cfg config.Config) (events.Bus, error) {
	kc := ka.DefaultConfig(cfg.KafkaBrokers, cfg.KafkaTopic)
	p, err := ka.NewSyncProducer(kc)
	if err != nil {
		return nil, errors.Wrapf(err, "kafka brokers %v", cfg.KafkaBrokers)
	}
	logger.Infof("[global] kafka ready, topic %s", cfg.KafkaTopic)
	return ka.NewBus(p, cfg.KafkaTopic), nil
}
