package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
	homeDir string
}

// NewLoader creates a loader reading <rootDir>/.pykg/config.yml, falling
// back to ~/.pykg/config.yml when the project has none.
func NewLoader(rootDir string) Loader {
	home, _ := os.UserHomeDir()
	return &loader{rootDir: rootDir, homeDir: home}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (PYKG_*)
// 2. Config file (.pykg/config.yml, then ~/.pykg/config.yml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(l.rootDir, ".pykg"))
	if l.homeDir != "" {
		v.AddConfigPath(filepath.Join(l.homeDir, ".pykg"))
	}

	v.SetEnvPrefix("PYKG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvVars(v)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// bindEnvVars binds every scalar key so Unmarshal sees env-only values.
func bindEnvVars(v *viper.Viper) {
	for _, key := range []string{
		"environment.venv_root",
		"environment.python",
		"environment.upgrade_build_tools",
		"environment.prefer_binary",
		"environment.lock_timeout_sec",
		"extract.output_dir",
		"extract.exclude_modules",
		"extract.duplicate_policy",
		"graph.namespace",
		"graph.library_name",
		"graph.description_preview",
		"graph.default_module",
		"neo4j.url",
		"neo4j.user",
		"neo4j.password",
		"neo4j.database",
	} {
		_ = v.BindEnv(key)
	}
}

func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("environment.venv_root", defaults.Environment.VenvRoot)
	v.SetDefault("environment.python", defaults.Environment.Python)
	v.SetDefault("environment.upgrade_build_tools", defaults.Environment.UpgradeBuildTools)
	v.SetDefault("environment.prefer_binary", defaults.Environment.PreferBinary)
	v.SetDefault("environment.lock_timeout_sec", defaults.Environment.LockTimeoutSec)

	v.SetDefault("extract.output_dir", defaults.Extract.OutputDir)
	v.SetDefault("extract.exclude_modules", defaults.Extract.ExcludeModules)
	v.SetDefault("extract.duplicate_policy", defaults.Extract.DuplicatePolicy)

	v.SetDefault("graph.namespace", defaults.Graph.Namespace)
	v.SetDefault("graph.library_name", defaults.Graph.LibraryName)
	v.SetDefault("graph.description_preview", defaults.Graph.DescriptionPreview)
	v.SetDefault("graph.default_module", defaults.Graph.DefaultModule)
	v.SetDefault("graph.fallback_modules", defaults.Graph.FallbackModules)

	v.SetDefault("neo4j.url", defaults.Neo4j.URL)
	v.SetDefault("neo4j.user", defaults.Neo4j.User)
	v.SetDefault("neo4j.password", defaults.Neo4j.Password)
	v.SetDefault("neo4j.database", defaults.Neo4j.Database)
}

// LoadConfig loads configuration rooted at the current working directory.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
