// Package config carrega a configuração do gateway a partir de variáveis de
// ambiente (com .env opcional) e de um arquivo opcional (yaml/toml/json).
//
// Variáveis de ambiente têm precedência sobre o arquivo.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

var DefaultBotIDs = []string{"ChatBot", "BIM", "BIM2", "RAPID", "RBM", "Raindance", "Skylark"}

// BotConfig é a forma de declarar bots no arquivo de configuração:
//
//	bots:
//	  - id: RAPID
//	    webhook: https://example.app.n8n.cloud/webhook/...
type BotConfig struct {
	ID      string `mapstructure:"id"`
	Webhook string `mapstructure:"webhook"`
}

type Config struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	ChatEndpoint string `mapstructure:"chat_endpoint"`

	BotIDs []string    `mapstructure:"bot_ids"`
	Bots   []BotConfig `mapstructure:"bots"`

	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	MaxMessageLength   int      `mapstructure:"max_message_length"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute"`
	RateLimitPerHour   int      `mapstructure:"rate_limit_per_hour"`
	TrustProxyHeaders  bool     `mapstructure:"trust_proxy_headers"`

	RateLimitBackend string        `mapstructure:"rate_limit_backend"`
	RateLimitPrefix  string        `mapstructure:"rate_limit_prefix"`
	JanitorInterval  time.Duration `mapstructure:"janitor_interval"`

	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`

	FloodRPS   float64 `mapstructure:"flood_rps"`
	FloodBurst int     `mapstructure:"flood_burst"`

	ConcurrencyMax     int           `mapstructure:"concurrency_max"`
	ConcurrencyTimeout time.Duration `mapstructure:"concurrency_timeout"`

	StatsBackend   string        `mapstructure:"stats_backend"`
	StatsPrefix    string        `mapstructure:"stats_prefix"`
	StatsTTL       time.Duration `mapstructure:"stats_ttl"`
	StatsTrackKeys bool          `mapstructure:"stats_track_keys"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Registry é montado em Load a partir de BotIDs, Bots e WEBHOOK_<ID>.
	Registry BotRegistry `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("chat_endpoint", "/api/chat")
	v.SetDefault("bot_ids", DefaultBotIDs)
	v.SetDefault("bots", []any{})
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("max_message_length", 500)
	v.SetDefault("rate_limit_per_minute", 5)
	v.SetDefault("rate_limit_per_hour", 50)
	v.SetDefault("trust_proxy_headers", false)
	v.SetDefault("rate_limit_backend", BackendMemory)
	v.SetDefault("rate_limit_prefix", "chatproxy:rl")
	v.SetDefault("janitor_interval", 5*time.Minute)
	v.SetDefault("upstream_timeout", 10*time.Second)
	v.SetDefault("flood_rps", 0.0)
	v.SetDefault("flood_burst", 20)
	v.SetDefault("concurrency_max", 100)
	v.SetDefault("concurrency_timeout", time.Duration(0))
	v.SetDefault("stats_backend", BackendMemory)
	v.SetDefault("stats_prefix", "chatproxy:stats")
	v.SetDefault("stats_ttl", 24*time.Hour)
	v.SetDefault("stats_track_keys", false)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load lê .env (se existir), o arquivo em configFile (se informado) e as
// variáveis de ambiente, e valida o resultado.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.BotIDs = cleanList(cfg.BotIDs)
	cfg.AllowedOrigins = cleanList(cfg.AllowedOrigins)
	cfg.Registry = buildRegistry(cfg.BotIDs, cfg.Bots)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// buildRegistry junta os ids de BOT_IDS e do arquivo. Para cada id a URL vem
// de WEBHOOK_<ID>; sem ela, do arquivo.
func buildRegistry(ids []string, bots []BotConfig) BotRegistry {
	hooks := make(map[string]string, len(ids)+len(bots))
	for _, id := range ids {
		hooks[id] = ""
	}
	for _, b := range bots {
		id := strings.TrimSpace(b.ID)
		if id == "" {
			continue
		}
		hooks[id] = strings.TrimSpace(b.Webhook)
	}
	for id := range hooks {
		if env := strings.TrimSpace(os.Getenv(WebhookEnvKey(id))); env != "" {
			hooks[id] = env
		}
	}
	return NewBotRegistry(hooks)
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errors.New("LISTEN_ADDR is required"))
	}
	if !strings.HasPrefix(c.ChatEndpoint, "/") {
		errs = append(errs, errors.New("CHAT_ENDPOINT must start with /"))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("MAX_MESSAGE_LENGTH must be > 0"))
	}
	if c.RateLimitPerMinute < 0 || c.RateLimitPerHour < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_PER_HOUR must be >= 0"))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be > 0"))
	}
	if c.FloodRPS < 0 {
		errs = append(errs, errors.New("FLOOD_RPS must be >= 0"))
	}
	if c.FloodRPS > 0 && c.FloodBurst <= 0 {
		errs = append(errs, errors.New("FLOOD_BURST must be > 0 when FLOOD_RPS is set"))
	}
	if c.ConcurrencyMax < 0 {
		errs = append(errs, errors.New("CONCURRENCY_MAX must be >= 0"))
	}

	switch c.RateLimitBackend {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, c.RateLimitBackend))
	}
	switch c.StatsBackend {
	case BackendMemory, BackendRedis, BackendNone:
	default:
		errs = append(errs, fmt.Errorf("STATS_BACKEND must be %q, %q or %q, got %q", BackendMemory, BackendRedis, BackendNone, c.StatsBackend))
	}
	if c.UsesRedis() && strings.TrimSpace(c.RedisAddr) == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when a redis backend is selected"))
	}

	if c.Registry.Len() == 0 {
		errs = append(errs, errors.New("no bots configured (BOT_IDS or bots in config file)"))
	}
	for _, id := range c.Registry.IDs() {
		hook, _ := c.Registry.Lookup(id)
		if hook == "" {
			continue
		}
		u, err := url.Parse(hook)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute http(s) URL", WebhookEnvKey(id)))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) UsesRedis() bool {
	return c.RateLimitBackend == BackendRedis || c.StatsBackend == BackendRedis
}
