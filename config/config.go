package config

import (
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"chess-tiers/engine"
)

type Config struct {
	Logs     LogConfig
	Engine   EngineConfig
	External ExternalConfig
}

type LogConfig struct {
	Style string
	Level string
}

type EngineConfig struct {
	Tier      engine.Tier
	MoveTime  time.Duration
	MaxThink  time.Duration
	TTEntries int
}

type ExternalConfig struct {
	Path    string
	Args    []string
	Depth   int
	Timeout time.Duration
	Retry   time.Duration
}

// Enabled reports whether an external engine is configured.
func (c ExternalConfig) Enabled() bool { return c.Path != "" }

// Load reads the environment after merging in the given .env files
// (".env" when none are named). Missing files are skipped; variables already
// set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "load %s", f)
		}
	}

	tier, err := engine.ParseTier(getenv("ENGINE_TIER", "medium"))
	if err != nil {
		return nil, errors.Wrap(err, "ENGINE_TIER")
	}
	moveTime, err := millis("ENGINE_MOVE_TIME_MS", 1000)
	if err != nil {
		return nil, err
	}
	maxThink, err := millis("ENGINE_MAX_THINK_MS", 5000)
	if err != nil {
		return nil, err
	}
	ttEntries, err := integer("ENGINE_TT_ENTRIES", engine.DefaultTTEntries)
	if err != nil {
		return nil, err
	}
	extTimeout, err := millis("EXTERNAL_TIMEOUT_MS", 2000)
	if err != nil {
		return nil, err
	}
	extRetry, err := millis("EXTERNAL_RETRY_MS", 30000)
	if err != nil {
		return nil, err
	}
	extDepth, err := integer("EXTERNAL_ENGINE_DEPTH", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Logs: LogConfig{
			Style: getenv("LOG_STYLE", "json"),
			Level: getenv("LOG_LEVEL", "info"),
		},
		Engine: EngineConfig{
			Tier:      tier,
			MoveTime:  moveTime,
			MaxThink:  maxThink,
			TTEntries: ttEntries,
		},
		External: ExternalConfig{
			Path:    os.Getenv("EXTERNAL_ENGINE_PATH"),
			Args:    strings.Fields(os.Getenv("EXTERNAL_ENGINE_ARGS")),
			Depth:   extDepth,
			Timeout: extTimeout,
			Retry:   extRetry,
		},
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func integer(key string, def int) (int, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", key)
	}
	if n < 0 {
		return 0, errors.Errorf("%s: negative value %d", key, n)
	}
	return n, nil
}

func millis(key string, def int) (time.Duration, error) {
	n, err := integer(key, def)
	return time.Duration(n) * time.Millisecond, err
}

// NewLogger builds the process logger. Output goes to stderr; stdout belongs
// to the UCI protocol.
func NewLogger(cfg LogConfig) (zerolog.Logger, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg LogConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), errors.Wrap(err, "LOG_LEVEL")
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if strings.EqualFold(cfg.Style, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
