package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	pkgconfig "github.com/weiawesome/wes-io-live/chat-sync/pkg/config"
)

// Socket transports.
const (
	TransportWebSocket = "websocket"
	TransportRedis     = "redis"
)

type Config struct {
	App       AppConfig
	API       APIConfig
	Socket    SocketConfig
	Identity  IdentityConfig
	Reconnect ReconnectConfig
	Viewport  ViewportConfig
	Redis     RedisConfig
	Log       LogConfig
}

type AppConfig struct {
	ID    string
	Theme string
	// Domain is the origin of the embedding page, e.g. https://shop.example.com.
	Domain string
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SocketConfig struct {
	URL              string
	Transport        string
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	MaxMessageSize   int64         `mapstructure:"max_message_size"`
}

type UserConfig struct {
	ID         string
	Username   string
	ProfilePic string `mapstructure:"profile_pic"`
}

type IdentityConfig struct {
	User      UserConfig
	Recipient UserConfig
	Token     string
}

type ReconnectConfig struct {
	Enabled         bool
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type ViewportConfig struct {
	Width            int
	MobileBreakpoint int `mapstructure:"mobile_breakpoint"`
}

type RedisConfig struct {
	Address       string
	Password      string
	DB            int
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load(configPath string) (*Config, error) {
	v, err := pkgconfig.Load(configPath, "config", "CHATSYNC")
	if err != nil {
		return nil, err
	}

	setDefaults(v)

	v.BindEnv("app.id", "TEEMBOOM_APP_ID")
	v.BindEnv("identity.token", "TEEMBOOM_TOKEN")
	v.BindEnv("api.base_url", "TEEMBOOM_API_URL")
	v.BindEnv("socket.url", "TEEMBOOM_SOCKET_URL")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.API.Timeout = parseDuration(v, "api.timeout", 15*time.Second)
	cfg.Socket.PingInterval = parseDuration(v, "socket.ping_interval", 30*time.Second)
	cfg.Socket.PongWait = parseDuration(v, "socket.pong_wait", 60*time.Second)
	cfg.Socket.WriteWait = parseDuration(v, "socket.write_wait", 10*time.Second)
	cfg.Socket.HandshakeTimeout = parseDuration(v, "socket.handshake_timeout", 10*time.Second)
	cfg.Reconnect.InitialInterval = parseDuration(v, "reconnect.initial_interval", 500*time.Millisecond)
	cfg.Reconnect.MaxInterval = parseDuration(v, "reconnect.max_interval", 30*time.Second)
	cfg.Reconnect.MaxElapsedTime = parseDuration(v, "reconnect.max_elapsed_time", 5*time.Minute)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so AutomaticEnv can fill them on Unmarshal.
	for _, key := range []string{
		"app.id",
		"identity.token",
		"identity.user.id", "identity.user.username", "identity.user.profile_pic",
		"identity.recipient.id", "identity.recipient.username", "identity.recipient.profile_pic",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("app.theme", "classic_coup")
	v.SetDefault("app.domain", "http://localhost")
	v.SetDefault("api.base_url", "https://chat-api.teemboom.com")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("socket.url", "wss://chat-socket.teemboom.com/ws")
	v.SetDefault("socket.transport", TransportWebSocket)
	v.SetDefault("socket.ping_interval", "30s")
	v.SetDefault("socket.pong_wait", "60s")
	v.SetDefault("socket.write_wait", "10s")
	v.SetDefault("socket.handshake_timeout", "10s")
	v.SetDefault("socket.max_message_size", 65536)
	v.SetDefault("reconnect.enabled", true)
	v.SetDefault("reconnect.initial_interval", "500ms")
	v.SetDefault("reconnect.max_interval", "30s")
	v.SetDefault("reconnect.max_elapsed_time", "5m")
	v.SetDefault("viewport.width", 1024)
	v.SetDefault("viewport.mobile_breakpoint", 768)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "chat:events")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate applies the checks of the embed bootstrap: an app id is always
// required, and without a token the self identity must be complete.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.App.ID) == "" {
		return &domain.ConfigurationError{Reason: "missing app id"}
	}
	if c.Identity.Token == "" {
		if c.Identity.User.ID == "" {
			return &domain.ConfigurationError{Reason: "missing user id"}
		}
		if c.Identity.User.Username == "" {
			return &domain.ConfigurationError{Reason: "missing username"}
		}
	}
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return &domain.ConfigurationError{Reason: fmt.Sprintf("invalid api url %q", c.API.BaseURL), Err: err}
	}
	switch c.Socket.Transport {
	case TransportWebSocket:
		if _, err := url.ParseRequestURI(c.Socket.URL); err != nil {
			return &domain.ConfigurationError{Reason: fmt.Sprintf("invalid socket url %q", c.Socket.URL), Err: err}
		}
	case TransportRedis:
		if c.Redis.Address == "" {
			return &domain.ConfigurationError{Reason: "redis transport requires redis.address"}
		}
	default:
		return &domain.ConfigurationError{Reason: fmt.Sprintf("unknown socket transport %q", c.Socket.Transport)}
	}
	return nil
}

// SelfUser returns the configured self identity.
func (c *Config) SelfUser() domain.User {
	return domain.User{
		ID:         c.Identity.User.ID,
		Username:   c.Identity.User.Username,
		ProfilePic: c.Identity.User.ProfilePic,
	}
}

// RecipientUser returns the configured recipient, or nil when none is set.
func (c *Config) RecipientUser() *domain.User {
	if c.Identity.Recipient.ID == "" {
		return nil
	}
	return &domain.User{
		ID:         c.Identity.Recipient.ID,
		Username:   c.Identity.Recipient.Username,
		ProfilePic: c.Identity.Recipient.ProfilePic,
	}
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
