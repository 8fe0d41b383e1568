/*
Package config resolves process configuration for the server and CLI.

PRECEDENCE (lowest to highest):
  1. Built-in defaults
  2. .env file in the working directory (or the path given)
  3. Environment variables
  4. Command-line flags

ENVIRONMENT:
  PROFORMA_PORT             HTTP port (default 8080)
  PROFORMA_DB               SQLite path (":memory:" for none) or postgres:// URL
                            (default proforma.db)
  PROFORMA_SEED             Model document loaded as a scenario on startup
  PROFORMA_LOG_LEVEL        debug | info | warn | error (default info)
  PROFORMA_LOG_FORMAT       text | json (default text)
  PROFORMA_ALLOWED_ORIGINS  Comma-separated CORS origins (default *)
  PROFORMA_STRICT           Validate every model before computing (default false)
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every process-level setting.
type Config struct {
	Port           int
	DBPath         string
	SeedPath       string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	Strict         bool
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Port:           8080,
		DBPath:         "proforma.db",
		LogLevel:       "info",
		LogFormat:      "text",
		AllowedOrigins: []string{"*"},
	}
}

// Load applies the .env file at envFile (".env" when empty; a missing file
// is not an error) and the environment over the defaults.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv applies environment variables read through lookup over the
// defaults.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	if v, ok := lookup("PROFORMA_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("PROFORMA_PORT: %w", err)
		}
		c.Port = port
	}
	if v, ok := lookup("PROFORMA_DB"); ok && v != "" {
		c.DBPath = v
	}
	if v, ok := lookup("PROFORMA_SEED"); ok {
		c.SeedPath = v
	}
	if v, ok := lookup("PROFORMA_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("PROFORMA_LOG_FORMAT"); ok && v != "" {
		c.LogFormat = v
	}
	if v, ok := lookup("PROFORMA_ALLOWED_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup("PROFORMA_STRICT"); ok && v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("PROFORMA_STRICT: %w", err)
		}
		c.Strict = strict
	}
	return c, c.Validate()
}

// RegisterFlags binds flags on fs to c, using c's current values as the
// defaults shown in usage.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Port, "port", c.Port, "HTTP server port")
	fs.StringVar(&c.DBPath, "db", c.DBPath, `SQLite database path (":memory:" for in-memory) or postgres:// URL`)
	fs.StringVar(&c.SeedPath, "seed", c.SeedPath, "model document (JSON/YAML) stored as a scenario on startup")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
	fs.BoolVar(&c.Strict, "strict", c.Strict, "validate every model before computing")
	fs.Var((*originList)(&c.AllowedOrigins), "origins", "comma-separated CORS origins")
}

// originList is a comma-separated flag value whose String round-trips
// through Set.
type originList []string

func (o *originList) String() string {
	if o == nil {
		return ""
	}
	return strings.Join(*o, ",")
}

func (o *originList) Set(v string) error {
	*o = splitList(v)
	return nil
}

// Validate rejects settings the process cannot start with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// Logger builds the structured logger described by c.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
