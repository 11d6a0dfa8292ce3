package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/newsdesk/internal/backend"
)

// Config is everything newsdesk reads from config.toml and the environment.
type Config struct {
	BaseURL        string
	UserAgent      string
	AttemptTimeout time.Duration
	PollInterval   time.Duration
	LogDir         string

	Retry       Retry
	Actor       Actor
	Credentials Credentials
	Mirror      Mirror
	Markers     []string
	Endpoints   backend.Catalog
}

// Retry tunes backoff for single attempts and whole read cascades.
type Retry struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	CascadeRetries int
}

// Actor is the identity operations run as.
type Actor struct {
	ID   string
	Role string
}

// Credentials lists where the bearer token is looked up. The durable tier is
// a TOML file, the session tier the process environment.
type Credentials struct {
	File      string
	EnvPrefix string
	Keys      []string
}

// Mirror selects the local mirror backend: "sqlite" or "memory".
type Mirror struct {
	Driver string
	Path   string
}

const (
	defaultConfigPath      = "~/.config/newsdesk/config.toml"
	defaultLogDir          = "~/.local/share/newsdesk"
	defaultBaseURL         = "http://127.0.0.1:8089"
	defaultCredentialsFile = "~/.config/newsdesk/credentials.toml"
	defaultMirrorPath      = "~/.local/share/newsdesk/mirror.db"
	defaultEnvPrefix       = "NEWSDESK_"
	defaultPollInterval    = 30 * time.Second
	defaultAttemptTimeout  = 12 * time.Second
)

var defaultCredentialKeys = []string{"token", "authToken", "auth_token", "accessToken", "access_token", "jwt"}

type rawConfig struct {
	APIBase        string `toml:"api_base"`
	UserAgent      string `toml:"user_agent"`
	AttemptTimeout string `toml:"attempt_timeout"`
	PollInterval   string `toml:"poll_interval"`
	LogDir         string `toml:"log_dir"`

	Retry struct {
		MaxAttempts    int    `toml:"max_attempts"`
		InitialDelay   string `toml:"initial_delay"`
		MaxDelay       string `toml:"max_delay"`
		CascadeRetries *int   `toml:"cascade_retries"`
	} `toml:"retry"`

	Actor struct {
		ID   string `toml:"id"`
		Role string `toml:"role"`
	} `toml:"actor"`

	Credentials struct {
		File      string   `toml:"file"`
		EnvPrefix string   `toml:"env_prefix"`
		Keys      []string `toml:"keys"`
	} `toml:"credentials"`

	Mirror struct {
		Driver string `toml:"driver"`
		Path   string `toml:"path"`
	} `toml:"mirror"`

	Submission struct {
		Markers []string `toml:"unknown_field_markers"`
	} `toml:"submission"`

	Endpoints map[string][]backend.Endpoint `toml:"endpoints"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		BaseURL:        defaultBaseURL,
		AttemptTimeout: defaultAttemptTimeout,
		PollInterval:   defaultPollInterval,
		LogDir:         mustExpand(defaultLogDir),
		Retry: Retry{
			MaxAttempts:    3,
			InitialDelay:   500 * time.Millisecond,
			MaxDelay:       8 * time.Second,
			CascadeRetries: 1,
		},
		Actor: Actor{Role: "editor"},
		Credentials: Credentials{
			File:      mustExpand(defaultCredentialsFile),
			EnvPrefix: defaultEnvPrefix,
			Keys:      append([]string(nil), defaultCredentialKeys...),
		},
		Mirror:    Mirror{Driver: "sqlite", Path: mustExpand(defaultMirrorPath)},
		Endpoints: backend.DefaultCatalog(),
	}
}

// Load reads the config file at path (the default location when empty),
// falls back to defaults when it is missing, then applies NEWSDESK_*
// environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	bytes, err := readFile(resolved)
	if err != nil {
		return Config{}, err
	}
	if bytes != nil {
		var raw rawConfig
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		if err := cfg.merge(raw); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(NewLoader(defaultEnvPrefix)); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LogPath returns the log file the CLI writes while the TUI owns the terminal.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/newsdesk.log")
	}
	return filepath.Join(c.LogDir, "newsdesk.log")
}

// Validate checks values that would only fail later and less clearly.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("api_base is empty")
	}
	switch c.Mirror.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("mirror driver %q is not sqlite or memory", c.Mirror.Driver)
	}
	if len(c.Credentials.Keys) == 0 {
		return fmt.Errorf("no credential keys configured")
	}
	if err := c.Endpoints.Validate(); err != nil {
		return fmt.Errorf("endpoints: %w", err)
	}
	return nil
}

func (c *Config) merge(raw rawConfig) error {
	setString(&c.BaseURL, raw.APIBase)
	setString(&c.UserAgent, raw.UserAgent)
	if err := setDuration(&c.AttemptTimeout, "attempt_timeout", raw.AttemptTimeout); err != nil {
		return err
	}
	if err := setDuration(&c.PollInterval, "poll_interval", raw.PollInterval); err != nil {
		return err
	}
	if dir := strings.TrimSpace(raw.LogDir); dir != "" {
		c.LogDir = mustExpand(dir)
	}

	if raw.Retry.MaxAttempts > 0 {
		c.Retry.MaxAttempts = raw.Retry.MaxAttempts
	}
	if err := setDuration(&c.Retry.InitialDelay, "retry.initial_delay", raw.Retry.InitialDelay); err != nil {
		return err
	}
	if err := setDuration(&c.Retry.MaxDelay, "retry.max_delay", raw.Retry.MaxDelay); err != nil {
		return err
	}
	if raw.Retry.CascadeRetries != nil && *raw.Retry.CascadeRetries >= 0 {
		c.Retry.CascadeRetries = *raw.Retry.CascadeRetries
	}

	setString(&c.Actor.ID, raw.Actor.ID)
	setString(&c.Actor.Role, raw.Actor.Role)

	if f := strings.TrimSpace(raw.Credentials.File); f != "" {
		c.Credentials.File = mustExpand(f)
	}
	setString(&c.Credentials.EnvPrefix, raw.Credentials.EnvPrefix)
	if keys := trimAll(raw.Credentials.Keys); len(keys) > 0 {
		c.Credentials.Keys = keys
	}

	setString(&c.Mirror.Driver, strings.ToLower(raw.Mirror.Driver))
	if p := strings.TrimSpace(raw.Mirror.Path); p != "" {
		c.Mirror.Path = mustExpand(p)
	}

	if markers := trimAll(raw.Submission.Markers); len(markers) > 0 {
		c.Markers = markers
	}

	if len(raw.Endpoints) > 0 {
		overrides := make(backend.Catalog, len(raw.Endpoints))
		known := make(map[backend.Op]bool)
		for _, op := range backend.Ops() {
			known[op] = true
		}
		for name, eps := range raw.Endpoints {
			op := backend.Op(strings.TrimSpace(name))
			if !known[op] {
				return fmt.Errorf("endpoints: unknown operation %q", name)
			}
			overrides[op] = eps
		}
		c.Endpoints = c.Endpoints.Merge(overrides)
	}
	return nil
}

func (c *Config) applyEnv(l Loader) error {
	c.BaseURL = l.String("API_BASE", c.BaseURL)
	c.UserAgent = l.String("USER_AGENT", c.UserAgent)
	c.Actor.ID = l.String("ACTOR_ID", c.Actor.ID)
	c.Actor.Role = l.String("ACTOR_ROLE", c.Actor.Role)
	c.Mirror.Driver = strings.ToLower(l.String("MIRROR_DRIVER", c.Mirror.Driver))
	if p := l.String("MIRROR_PATH", ""); p != "" {
		c.Mirror.Path = mustExpand(p)
	}
	c.Retry.MaxAttempts = l.Int("RETRY_MAX_ATTEMPTS", c.Retry.MaxAttempts)
	c.Retry.CascadeRetries = l.Int("CASCADE_RETRIES", c.Retry.CascadeRetries)

	var err error
	if c.AttemptTimeout, err = l.Duration("ATTEMPT_TIMEOUT", c.AttemptTimeout); err != nil {
		return err
	}
	if c.PollInterval, err = l.Duration("POLL_INTERVAL", c.PollInterval); err != nil {
		return err
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return bytes, nil
}

func setString(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, value string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, v)
	}
	*dst = d
	return nil
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
