package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Engine bounds enforced by Validate.
const (
	maxCascadeDepthLimit   = 4096
	maxImportParallelism   = 64
	defaultMaxCascadeDepth = 64
	defaultImportWorkers   = 8
	defaultImportDueDays   = 7
)

type Config struct {
	Database      DatabaseConfig      `toml:"database"`
	Logging       LoggingConfig       `toml:"logging"`
	Server        ServerConfig        `toml:"server"`
	Engine        EngineConfig        `toml:"engine"`
	Identity      IdentityConfig      `toml:"identity"`
	Notifications NotificationsConfig `toml:"notifications"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"` // debug | info | warn | error
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the optional logfmt file sink.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

// EngineConfig tunes the card engine.
type EngineConfig struct {
	MaxCascadeDepth   int `toml:"max_cascade_depth"`
	ImportParallelism int `toml:"import_parallelism"`
	ImportDueDays     int `toml:"import_due_days"`
}

type IdentityConfig struct {
	ActorName string `toml:"actor_name"`
}

type NotificationsConfig struct {
	Enabled bool `toml:"enabled"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: false,
				Dir:     ".cardflow/log",
			},
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Engine: EngineConfig{
			MaxCascadeDepth:   defaultMaxCascadeDepth,
			ImportParallelism: defaultImportWorkers,
			ImportDueDays:     defaultImportDueDays,
		},
		Identity: IdentityConfig{
			ActorName: "system",
		},
		Notifications: NotificationsConfig{
			Enabled: true,
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when the dev file sink is enabled")
	}

	api := strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/")
	mcp := strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/")
	if api != "" && api == mcp {
		return fmt.Errorf("server.api_endpoint and server.mcp_endpoint must differ: %q", c.Server.APIEndpoint)
	}

	if c.Engine.MaxCascadeDepth < 0 || c.Engine.MaxCascadeDepth > maxCascadeDepthLimit {
		return fmt.Errorf("engine.max_cascade_depth must be between 0 and %d", maxCascadeDepthLimit)
	}
	if c.Engine.ImportParallelism < 0 || c.Engine.ImportParallelism > maxImportParallelism {
		return fmt.Errorf("engine.import_parallelism must be between 0 and %d", maxImportParallelism)
	}
	if c.Engine.ImportDueDays < 0 {
		return errors.New("engine.import_due_days must be >= 0")
	}

	return nil
}

// ActorName returns the configured identity, falling back to "system".
func (c Config) ActorName() string {
	name := strings.TrimSpace(c.Identity.ActorName)
	if name == "" {
		return "system"
	}
	return name
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
