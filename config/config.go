package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/m4xw311/mcpchat/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultProvider = "groq"
	DefaultModel    = "llama-3.1-8b-instant"
	DefaultMaxSteps = 15
	DefaultWebAddr  = ":8501"
	DefaultWebTitle = "MCP AI Assistant"

	DefaultWebIdleTimeout = 30 * time.Minute
	DefaultWebMaxSessions = 64
)

// DirName is the per-user and per-project configuration directory.
const DirName = ".mcpchat"

type Log struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Pretty bool   `yaml:"pretty"`
}

type Web struct {
	Addr        string        `yaml:"addr"`
	Title       string        `yaml:"title"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	MaxSessions int           `yaml:"max_sessions"`
}

type Config struct {
	LLMClient       string        `yaml:"llm"`
	Model           string        `yaml:"model"`
	MaxSteps        int           `yaml:"max_steps"`
	MemoryEnabled   bool          `yaml:"memory_enabled"`
	SystemPrompt    string        `yaml:"system_prompt"`
	MCPConfig       string        `yaml:"mcp_config"`
	DisallowedTools []string      `yaml:"disallowed_tools"`
	TurnTimeout     time.Duration `yaml:"turn_timeout"`
	SessionsDir     string        `yaml:"sessions_dir"`
	Log             Log           `yaml:"log"`
	Web             Web           `yaml:"web"`
}

// Default returns the configuration used when no file overrides a field.
func Default() *Config {
	return &Config{
		LLMClient:     DefaultProvider,
		Model:         DefaultModel,
		MaxSteps:      DefaultMaxSteps,
		MemoryEnabled: true,
		SessionsDir:   filepath.Join(DirName, "sessions"),
		Log:           Log{Level: "warn"},
		Web: Web{
			Addr:        DefaultWebAddr,
			Title:       DefaultWebTitle,
			IdleTimeout: DefaultWebIdleTimeout,
			MaxSessions: DefaultWebMaxSessions,
		},
	}
}

// LoadConfig loads configuration from the user's home directory, the current
// working directory and finally the explicit path (if any), each layer
// overriding the fields it sets.
func LoadConfig(explicitPath string) (*Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, DirName, "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, DirName, "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	if explicitPath != "" {
		if err := loadFromFile(explicitPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading config %s", explicitPath)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal only overwrites keys present in the document, so layering
	// is a shallow merge on top of whatever is already in cfg.
	return yaml.Unmarshal(data, cfg)
}

// Validate rejects settings the agent cannot run with.
func (c *Config) Validate() error {
	if c.MaxSteps < 1 {
		return errors.New("max_steps must be at least 1, got %d", c.MaxSteps)
	}
	if c.TurnTimeout < 0 {
		return errors.New("turn_timeout must not be negative, got %s", c.TurnTimeout)
	}
	if c.Web.IdleTimeout < 0 {
		return errors.New("web.idle_timeout must not be negative, got %s", c.Web.IdleTimeout)
	}
	if c.Web.MaxSessions < 0 {
		return errors.New("web.max_sessions must not be negative, got %d", c.Web.MaxSessions)
	}
	if c.LLMClient == "" {
		return errors.New("llm provider must be set")
	}
	return nil
}

// LoadEnv populates the process environment from dotenv files. Missing files
// are skipped; variables already set in the environment win. With no
// arguments it reads ".env" from the working directory.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "could not load %s", f)
		}
	}
	return nil
}
