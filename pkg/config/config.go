/*
Package config manages TOML config for imeserve.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bastiangx/imeserve/internal/utils"
	"github.com/bastiangx/imeserve/pkg/codetable"
	"github.com/bastiangx/imeserve/pkg/dictionary"
	"github.com/bastiangx/imeserve/pkg/engine"
	"github.com/bastiangx/imeserve/pkg/session"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	Engine  EngineConfig  `toml:"engine"`
	Dict    DictConfig    `toml:"dict"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

// EngineConfig selects the engine loaded at startup.
type EngineConfig struct {
	Kind        string `toml:"kind"`
	CodeTable   string `toml:"codetable"`
	PerfectOnly bool   `toml:"perfect_only"`
}

// DictConfig holds dictionary options.
type DictConfig struct {
	Encoding        string `toml:"encoding"`
	DefaultPriority int    `toml:"default_priority"`
	Normalize       bool   `toml:"normalize"`
	Watch           bool   `toml:"watch"`
}

// ServerConfig has server related options.
type ServerConfig struct {
	MaxCandidates int `toml:"max_candidates"`
	CacheSize     int `toml:"cache_size"`
}

// LogConfig controls where and how much is logged.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address turns it
// off.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. $XDG_CONFIG_HOME/imeserve or ~/.config/imeserve
// 2. Current executable dir
func GetConfigDir() (string, error) {
	return utils.NewPathResolver().WritableConfigDir()
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/imeserve/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Kind:      engine.KindCodeTable.String(),
			CodeTable: "wubi.txt",
		},
		Dict: DictConfig{
			Encoding:        string(dictionary.CharsetUTF8),
			DefaultPriority: int(dictionary.DefaultPriority),
			Normalize:       true,
		},
		Server: ServerConfig{
			CacheSize: codetable.DefaultCacheSize,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	undecoded, err := utils.DecodeTOMLFile(configPath, config)
	if err != nil {
		log.Warnf("%v. Attempting partial recovery...", err)
		return tryPartialParse(configPath)
	}
	if len(undecoded) > 0 {
		log.Warnf("Ignoring unknown config keys in %s: %s", configPath, strings.Join(undecoded, ", "))
	}
	return config, nil
}

// tryPartialParse keeps every section that still parses as a plain table.
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.DecodeTOMLTable(configPath)
	if err != nil {
		log.Warnf("Could not recover any configuration: %v. Using all defaults.", err)
		return config, nil
	}

	if section, ok := utils.Extract[map[string]any](tempConfig, "engine"); ok {
		extractEngineConfig(section, &config.Engine)
	}
	if section, ok := utils.Extract[map[string]any](tempConfig, "dict"); ok {
		extractDictConfig(section, &config.Dict)
	}
	if section, ok := utils.Extract[map[string]any](tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.Extract[map[string]any](tempConfig, "log"); ok {
		extractLogConfig(section, &config.Log)
	}
	if section, ok := utils.Extract[map[string]any](tempConfig, "metrics"); ok {
		if val, ok := utils.Extract[string](section, "addr"); ok {
			config.Metrics.Addr = val
		}
	}
	return config, nil
}

func extractEngineConfig(data map[string]any, eng *EngineConfig) {
	if val, ok := utils.Extract[string](data, "kind"); ok {
		eng.Kind = val
	}
	if val, ok := utils.Extract[string](data, "codetable"); ok {
		eng.CodeTable = val
	}
	if val, ok := utils.Extract[bool](data, "perfect_only"); ok {
		eng.PerfectOnly = val
	}
}

func extractDictConfig(data map[string]any, dict *DictConfig) {
	if val, ok := utils.Extract[string](data, "encoding"); ok {
		dict.Encoding = val
	}
	if val, ok := utils.ExtractInt(data, "default_priority"); ok {
		dict.DefaultPriority = val
	}
	if val, ok := utils.Extract[bool](data, "normalize"); ok {
		dict.Normalize = val
	}
	if val, ok := utils.Extract[bool](data, "watch"); ok {
		dict.Watch = val
	}
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt(data, "max_candidates"); ok {
		server.MaxCandidates = val
	}
	if val, ok := utils.ExtractInt(data, "cache_size"); ok {
		server.CacheSize = val
	}
}

func extractLogConfig(data map[string]any, l *LogConfig) {
	if val, ok := utils.Extract[string](data, "level"); ok {
		l.Level = val
	}
	if val, ok := utils.Extract[string](data, "file"); ok {
		l.File = val
	}
}

// Validate reports values no engine could start with.
func (c *Config) Validate() error {
	if _, err := engine.ParseKind(c.Engine.Kind); err != nil {
		return err
	}
	if _, err := dictionary.LookupCharset(c.Dict.Encoding); err != nil {
		return err
	}
	if c.Dict.DefaultPriority < 0 || int64(c.Dict.DefaultPriority) > int64(^uint32(0)) {
		return fmt.Errorf("default_priority %d out of range", c.Dict.DefaultPriority)
	}
	if c.Server.MaxCandidates < 0 {
		return fmt.Errorf("max_candidates must not be negative, got %d", c.Server.MaxCandidates)
	}
	return nil
}

// EngineConfiguration converts the [engine] section.
func (c *Config) EngineConfiguration() (engine.Configuration, error) {
	kind, err := engine.ParseKind(c.Engine.Kind)
	if err != nil {
		return engine.Configuration{}, err
	}
	return engine.Configuration{
		Kind:        kind,
		CodeTable:   c.Engine.CodeTable,
		PerfectOnly: c.Engine.PerfectOnly,
	}, nil
}

// DictionaryOptions converts the [dict] section.
func (c *Config) DictionaryOptions() dictionary.Options {
	return dictionary.Options{
		Encoding:        c.Dict.Encoding,
		DefaultPriority: uint32(c.Dict.DefaultPriority),
		Normalize:       c.Dict.Normalize,
	}
}

// SessionOptions converts the [server] and [dict] sections. Table names are
// resolved with resolve.
func (c *Config) SessionOptions(resolve func(string) string) session.Options {
	return session.Options{
		MaxCandidates: c.Server.MaxCandidates,
		CacheSize:     c.Server.CacheSize,
		Dictionary:    c.DictionaryOptions(),
		Resolve:       resolve,
	}
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	configDir := filepath.Dir(defaultPath)
	if err := utils.EnsureDir(configDir); err != nil {
		return err
	}
	config := DefaultConfig()
	return utils.SaveTOMLFile(defaultPath, config)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.AbsPath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(configPath, config)
}
