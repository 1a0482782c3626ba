// Package config loads service settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Tyrowin/roomchat/internal/log"
	"github.com/Tyrowin/roomchat/internal/moderation"
	"github.com/Tyrowin/roomchat/internal/room"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/store"
)

// EnvPrefix prefixes every automatically bound environment variable, so
// server.addr is read from ROOMCHAT_SERVER_ADDR.
const EnvPrefix = "ROOMCHAT"

// Config is the full service configuration.
type Config struct {
	Server     server.Config     `mapstructure:"server"`
	Room       room.Options      `mapstructure:"room"`
	Moderation moderation.Config `mapstructure:"moderation"`
	Store      store.Config      `mapstructure:"store"`
	Log        log.Config        `mapstructure:"log"`
}

// Short environment names kept for deployment platforms that set them.
var envAliases = map[string][]string{
	"server.addr":            {"PORT"},
	"server.allowed_origins": {"ALLOWED_ORIGINS"},
	"store.driver":           {"STORE_DRIVER"},
	"store.redis.address":    {"REDIS_ADDRESS"},
	"store.sqlite_path":      {"SQLITE_PATH"},
	"log.level":              {"LOG_LEVEL"},
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: server.DefaultConfig(),
		Room:   room.DefaultOptions(),
		Moderation: moderation.Config{
			Terms: append([]string(nil), moderation.DefaultTerms...),
			Mask:  string(moderation.DefaultMask),
		},
		Store: store.Config{
			Driver: store.DriverMemory,
			Redis: store.RedisConfig{
				Address: "localhost:6379",
				Prefix:  store.DefaultRedisPrefix,
			},
		},
		Log: log.Config{
			Level:       "info",
			ServiceName: "roomchat",
		},
	}
}

// Load reads path, or config.yaml from the working directory or ./config
// when path is empty. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		args := append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.sanitize()
	return &cfg, nil
}

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.allowed_origins", def.Server.AllowedOrigins)
	v.SetDefault("server.max_message_size", def.Server.MaxMessageSize)
	v.SetDefault("server.send_buffer", def.Server.SendBuffer)
	v.SetDefault("server.ping_interval", def.Server.PingInterval)
	v.SetDefault("server.pong_wait", def.Server.PongWait)
	v.SetDefault("server.write_wait", def.Server.WriteWait)
	v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout)
	v.SetDefault("server.rate_limit.burst", def.Server.RateLimit.Burst)
	v.SetDefault("server.rate_limit.refill_interval", def.Server.RateLimit.RefillInterval)

	v.SetDefault("room.capacity", def.Room.Capacity)
	v.SetDefault("room.history_limit", def.Room.HistoryLimit)
	v.SetDefault("room.ttl", def.Room.TTL)
	v.SetDefault("room.sweep_interval", def.Room.SweepInterval)
	v.SetDefault("room.queue_size", def.Room.QueueSize)

	v.SetDefault("moderation.terms", def.Moderation.Terms)
	v.SetDefault("moderation.mask", def.Moderation.Mask)

	v.SetDefault("store.driver", def.Store.Driver)
	v.SetDefault("store.sqlite_path", def.Store.SQLitePath)
	v.SetDefault("store.redis.address", def.Store.Redis.Address)
	v.SetDefault("store.redis.password", def.Store.Redis.Password)
	v.SetDefault("store.redis.db", def.Store.Redis.DB)
	v.SetDefault("store.redis.prefix", def.Store.Redis.Prefix)

	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.pretty", def.Log.Pretty)
	v.SetDefault("log.service_name", def.Log.ServiceName)
}

func (c *Config) sanitize() {
	def := Default()

	c.Server = c.Server.Sanitize()

	if c.Room.Capacity <= 0 {
		c.Room.Capacity = def.Room.Capacity
	}
	if c.Room.HistoryLimit <= 0 {
		c.Room.HistoryLimit = def.Room.HistoryLimit
	}
	if c.Room.TTL <= 0 {
		c.Room.TTL = def.Room.TTL
	}
	if c.Room.SweepInterval < time.Second {
		c.Room.SweepInterval = def.Room.SweepInterval
	}
	if c.Room.QueueSize <= 0 {
		c.Room.QueueSize = def.Room.QueueSize
	}

	if len([]rune(c.Moderation.Mask)) != 1 {
		c.Moderation.Mask = def.Moderation.Mask
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = def.Store.Driver
	}
	if c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = def.Store.Redis.Prefix
	}

	if c.Log.ServiceName == "" {
		c.Log.ServiceName = def.Log.ServiceName
	}
}
