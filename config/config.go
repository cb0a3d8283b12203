package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	BotToken string `env:"BOT_TOKEN,required"`
	Prefix   string `env:"BOT_PREFIX" envDefault:">"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"10m"`
	CacheMaxTrack time.Duration `env:"CACHE_MAX_TRACK" envDefault:"15m"`
	// CacheMaxEntries caps the in-process cache used without redis.
	CacheMaxEntries int `env:"CACHE_MAX_ENTRIES" envDefault:"64"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	YtDlpPath     string        `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	FFmpegPath    string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	OpusBitrate   int           `env:"OPUS_BITRATE" envDefault:"64"`
	EmptyCooldown time.Duration `env:"EMPTY_COOLDOWN" envDefault:"60s"`

	CommandRate  float64 `env:"COMMAND_RATE" envDefault:"1"`
	CommandBurst int     `env:"COMMAND_BURST" envDefault:"3"`

	MetricsAddr string `env:"METRICS_ADDR"`
}

// Load reads an optional dotenv file at path and then parses the process
// environment. A missing dotenv file is not an error.
func Load(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, errors.Wrapf(err, "load %s", path)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse builds a Config from the given variables only, ignoring the process
// environment.
func Parse(vars map[string]string) (Config, error) {
	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Prefix == "" {
		return errors.New("BOT_PREFIX must not be empty")
	}
	if c.OpusBitrate < 6 || c.OpusBitrate > 510 {
		return errors.Errorf("OPUS_BITRATE must be between 6 and 510 kbps, got %d", c.OpusBitrate)
	}
	if c.CacheTTL < 0 || c.CacheMaxTrack < 0 || c.EmptyCooldown < 0 {
		return errors.New("durations must not be negative")
	}
	if c.CacheMaxEntries < 0 {
		return errors.New("CACHE_MAX_ENTRIES must not be negative")
	}
	if c.CommandRate < 0 {
		return errors.New("COMMAND_RATE must not be negative")
	}
	if c.CommandRate > 0 && c.CommandBurst < 1 {
		return errors.New("COMMAND_BURST must be at least 1 when rate limiting is enabled")
	}
	return nil
}

// UseRedis reports whether a redis server is configured for the frame cache.
func (c Config) UseRedis() bool {
	return c.RedisAddr != ""
}
