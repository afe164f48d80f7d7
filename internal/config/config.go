package config

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// CharacterPlaceholder is substituted with the escaped character id in
// Server.URLTemplate.
const CharacterPlaceholder = "{character}"

type Config struct {
	Server     ServerSpec  `yaml:"server"`
	Control    ControlSpec `yaml:"control"`
	Storage    StorageSpec `yaml:"storage"`
	Roster     RosterSpec  `yaml:"roster"`
	Characters []string    `yaml:"characters" env:"ARX_CHARACTERS" envSeparator:","`
	LogLevel   string      `yaml:"log_level" env:"ARX_LOG_LEVEL"`
}

type ServerSpec struct {
	URLTemplate      string        `yaml:"url_template" env:"ARX_SERVER_URL"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env:"ARX_HANDSHAKE_TIMEOUT"`
	WriteTimeout     time.Duration `yaml:"write_timeout" env:"ARX_WRITE_TIMEOUT"`
	// ReadTimeout of zero waits forever for the next frame.
	ReadTimeout time.Duration `yaml:"read_timeout" env:"ARX_READ_TIMEOUT"`
}

type ControlSpec struct {
	Listen string `yaml:"listen" env:"ARX_CONTROL_LISTEN"`
}

type StorageSpec struct {
	StateFile    string `yaml:"state_file" env:"ARX_STATE_FILE"`
	TranscriptDB string `yaml:"transcript_db" env:"ARX_TRANSCRIPT_DB"`
	FrameLogDir  string `yaml:"frame_log_dir" env:"ARX_FRAME_LOG_DIR"`
}

type RosterSpec struct {
	URL          string        `yaml:"url" env:"ARX_ROSTER_URL"`
	PollInterval time.Duration `yaml:"poll_interval" env:"ARX_ROSTER_POLL_INTERVAL"`
}

// Load reads path (optional) over the defaults, then applies ARX_* environment
// overrides.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, oops.In("config").Wrapf(err, "read %s", path)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, oops.In("config").Wrapf(err, "client.yaml")
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, oops.In("config").Wrapf(err, "parse env")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, oops.In("config").Wrapf(err, "client.yaml")
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Server: ServerSpec{
			URLTemplate:      "ws://127.0.0.1:8000/ws/game/?character=" + CharacterPlaceholder,
			HandshakeTimeout: 5 * time.Second,
			WriteTimeout:     5 * time.Second,
		},
		Control: ControlSpec{Listen: "127.0.0.1:8095"},
		Storage: StorageSpec{
			StateFile:    "./data/client/connections.json",
			TranscriptDB: "./data/client/transcript.db",
			FrameLogDir:  "./data/client/frames",
		},
		Roster:   RosterSpec{PollInterval: 30 * time.Second},
		LogLevel: "info",
	}
}

func (c *Config) Normalize() {
	c.Server.URLTemplate = strings.TrimSpace(c.Server.URLTemplate)
	if c.Server.HandshakeTimeout <= 0 {
		c.Server.HandshakeTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 5 * time.Second
	}
	if c.Server.ReadTimeout < 0 {
		c.Server.ReadTimeout = 0
	}
	c.Control.Listen = strings.TrimSpace(c.Control.Listen)
	c.Roster.URL = strings.TrimSpace(c.Roster.URL)
	if c.Roster.PollInterval <= 0 {
		c.Roster.PollInterval = 30 * time.Second
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	seen := map[string]struct{}{}
	chars := make([]string, 0, len(c.Characters))
	for _, id := range c.Characters {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		chars = append(chars, id)
	}
	c.Characters = chars
}

func (c Config) Validate() error {
	if c.Server.URLTemplate == "" {
		return oops.Errorf("server.url_template is required")
	}
	u, err := url.Parse(c.URLFor("probe"))
	if err != nil {
		return oops.Wrapf(err, "server.url_template")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return oops.Errorf("server.url_template: scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.Roster.URL != "" {
		ru, err := url.Parse(c.Roster.URL)
		if err != nil || (ru.Scheme != "http" && ru.Scheme != "https") {
			return oops.Errorf("roster.url: must be an http(s) url")
		}
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return oops.Errorf("log_level: unknown level %q", c.LogLevel)
	}
	return nil
}

// URLFor renders the per-character socket url.
func (c Config) URLFor(character string) string {
	tpl := c.Server.URLTemplate
	if !strings.Contains(tpl, CharacterPlaceholder) {
		return tpl
	}
	return strings.ReplaceAll(tpl, CharacterPlaceholder, url.QueryEscape(character))
}
