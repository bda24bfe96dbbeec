package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"BeepPager/logger"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const (
	DefaultPort  = 5020
	FallbackPort = 5000
)

// Config is read from BP_* environment variables. Unset variables keep the
// defaults below.
type Config struct {
	Port           int      `mapstructure:"BP_PORT"`
	LogLevel       string   `mapstructure:"BP_LOG_LEVEL"`
	AllowedOrigins []string `mapstructure:"BP_ALLOWED_ORIGINS"` // empty = any origin

	MailboxRetention int           `mapstructure:"BP_MAILBOX_RETENTION"`
	SyncBatch        int           `mapstructure:"BP_SYNC_BATCH"`
	OutboundLimit    int           `mapstructure:"BP_OUTBOUND_LIMIT"` // 0 = unbounded
	PingInterval     time.Duration `mapstructure:"BP_PING_INTERVAL"`
	PongWait         time.Duration `mapstructure:"BP_PONG_WAIT"`
	WriteWait        time.Duration `mapstructure:"BP_WRITE_WAIT"`
	ReadLimit        int64         `mapstructure:"BP_READ_LIMIT"`

	NodeID    int64  `mapstructure:"BP_NODE_ID"`
	JWTSecret string `mapstructure:"BP_JWT_SECRET"` // empty = accept every login

	RedisAddr     string `mapstructure:"BP_REDIS_ADDR"` // empty = disabled
	RedisPassword string `mapstructure:"BP_REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"BP_REDIS_DB"`

	NATSURL     string `mapstructure:"BP_NATS_URL"` // empty = disabled
	NATSSubject string `mapstructure:"BP_NATS_SUBJECT"`

	KafkaBrokers []string `mapstructure:"BP_KAFKA_BROKERS"` // empty = disabled
	KafkaTopic   string   `mapstructure:"BP_KAFKA_TOPIC"`
}

func Default() Config {
	return Config{
		Port:             DefaultPort,
		LogLevel:         "debug",
		MailboxRetention: 1024,
		SyncBatch:        10,
		PingInterval:     25 * time.Second,
		PongWait:         60 * time.Second,
		WriteWait:        10 * time.Second,
		ReadLimit:        1 << 20,
		NodeID:           1,
		NATSSubject:      "bp.events",
		KafkaTopic:       "bp-events",
	}
}

func (c Config) Addr() string { return ":" + strconv.Itoa(c.Port) }

// FromEnv loads the configuration of the current process.
func FromEnv() (Config, error) {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "BP_") {
			env[k] = v
		}
	}
	return Load(env)
}

// Load decodes env over the defaults. An unparsable BP_PORT falls back to
// FallbackPort; any other malformed value is an error.
func Load(env map[string]string) (Config, error) {
	cfg := Default()

	raw := make(map[string]interface{}, len(env))
	for k, v := range env {
		if strings.TrimSpace(v) == "" {
			continue
		}
		raw[k] = strings.TrimSpace(v)
	}

	if p, ok := raw["BP_PORT"]; ok {
		delete(raw, "BP_PORT")
		port, err := strconv.Atoi(p.(string))
		if err != nil || port <= 0 || port > 65535 {
			logger.Warnf("[config] invalid BP_PORT %q, using %d", p, FallbackPort)
			port = FallbackPort
		}
		cfg.Port = port
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return cfg, errors.Wrap(err, "build config decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, errors.Wrap(err, "decode environment")
	}

	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	cfg.AllowedOrigins = compact(cfg.AllowedOrigins)

	return cfg, cfg.validate()
}

func compact(list []string) []string {
	out := list[:0]
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c Config) validate() error {
	switch {
	case c.MailboxRetention <= 0:
		return errors.Errorf("BP_MAILBOX_RETENTION must be positive, got %d", c.MailboxRetention)
	case c.SyncBatch <= 0:
		return errors.Errorf("BP_SYNC_BATCH must be positive, got %d", c.SyncBatch)
	case c.OutboundLimit < 0:
		return errors.Errorf("BP_OUTBOUND_LIMIT must not be negative, got %d", c.OutboundLimit)
	case c.PingInterval <= 0 || c.PongWait <= c.PingInterval:
		return errors.Errorf("BP_PONG_WAIT (%s) must exceed BP_PING_INTERVAL (%s)", c.PongWait, c.PingInterval)
	case c.NodeID < 0 || c.NodeID > 1023:
		return errors.Errorf("BP_NODE_ID must be within 0..1023, got %d", c.NodeID)
	}
	return nil
}
