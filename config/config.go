package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration, loaded once at startup.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Bus      BusConfig      `mapstructure:"bus"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Log      LogConfig      `mapstructure:"log"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite / postgres
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BusConfig describes the event streams this instance consumes.
type BusConfig struct {
	Streams   []string      `mapstructure:"streams"`
	Group     string        `mapstructure:"group"`
	Consumers int           `mapstructure:"consumers"`
	Block     time.Duration `mapstructure:"block"`
}

type AuthConfig struct {
	// GatewaySecret signs the identity claims attached by the upstream gateway.
	GatewaySecret string `mapstructure:"gateway_secret"`
}

// FeedConfig carries the fan-out tunables. Defaults match production behaviour.
type FeedConfig struct {
	TimelineSize    int           `mapstructure:"timeline_size"`
	TimelineTTL     time.Duration `mapstructure:"timeline_ttl"`
	EngagementTTL   time.Duration `mapstructure:"engagement_ttl"`
	RelationshipTTL time.Duration `mapstructure:"relationship_ttl"`
	EmptyFeedTTL    time.Duration `mapstructure:"empty_feed_ttl"`
	LikeWeight      int64         `mapstructure:"like_weight"`
	CommentWeight   int64         `mapstructure:"comment_weight"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json / console
}

type SentryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// Load reads config.yaml (working dir or ./config) with FANLINE_* env overrides.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("FANLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// config file is optional; env + defaults are enough to boot
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "fanline.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("bus.streams", []string{"POST_TOPIC"})
	v.SetDefault("bus.group", "feed-service-group")
	v.SetDefault("bus.consumers", 4)
	v.SetDefault("bus.block", 2*time.Second)

	v.SetDefault("feed.timeline_size", 100)
	v.SetDefault("feed.timeline_ttl", 7*24*time.Hour)
	v.SetDefault("feed.engagement_ttl", 7*24*time.Hour)
	v.SetDefault("feed.relationship_ttl", time.Hour)
	v.SetDefault("feed.empty_feed_ttl", time.Minute)
	v.SetDefault("feed.like_weight", 1)
	v.SetDefault("feed.comment_weight", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
}
