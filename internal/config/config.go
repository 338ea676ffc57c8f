// Package config provides configuration loading for pykg.
//
// Configuration is read from .pykg/config.yml in the working directory,
// falling back to ~/.pykg/config.yml, with PYKG_* environment variables
// taking precedence over both. Nested keys map to underscores, e.g.
// PYKG_ENVIRONMENT_VENV_ROOT or PYKG_NEO4J_PASSWORD.
package config

import (
	"github.com/mvp-joe/pykg/internal/graph"
	"github.com/mvp-joe/pykg/internal/walker"
)

// Config represents the complete pykg configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment" mapstructure:"environment"`
	Extract     ExtractConfig     `yaml:"extract" mapstructure:"extract"`
	Graph       GraphConfig       `yaml:"graph" mapstructure:"graph"`
	Neo4j       Neo4jConfig       `yaml:"neo4j" mapstructure:"neo4j"`
}

// EnvironmentConfig configures per-package virtual environments.
type EnvironmentConfig struct {
	VenvRoot          string `yaml:"venv_root" mapstructure:"venv_root"`                     // directory holding temp_venv_<pkg>
	Python            string `yaml:"python" mapstructure:"python"`                           // base interpreter, empty for embedded
	UpgradeBuildTools bool   `yaml:"upgrade_build_tools" mapstructure:"upgrade_build_tools"` // upgrade pip/setuptools/wheel first
	PreferBinary      bool   `yaml:"prefer_binary" mapstructure:"prefer_binary"`             // pip --prefer-binary
	LockTimeoutSec    int    `yaml:"lock_timeout_sec" mapstructure:"lock_timeout_sec"`       // wait for a busy venv
}

// ExtractConfig configures record extraction.
type ExtractConfig struct {
	OutputDir       string   `yaml:"output_dir" mapstructure:"output_dir"`
	ExcludeModules  []string `yaml:"exclude_modules" mapstructure:"exclude_modules"`   // dotted globs, e.g. "pkg.tests.**"
	DuplicatePolicy string   `yaml:"duplicate_policy" mapstructure:"duplicate_policy"` // "aliases" or "collapse"
}

// GraphConfig configures graph building and Turtle output.
type GraphConfig struct {
	Namespace          string            `yaml:"namespace" mapstructure:"namespace"`
	LibraryName        string            `yaml:"library_name" mapstructure:"library_name"`
	DescriptionPreview int               `yaml:"description_preview" mapstructure:"description_preview"`
	DefaultModule      string            `yaml:"default_module" mapstructure:"default_module"`
	FallbackModules    map[string]string `yaml:"fallback_modules" mapstructure:"fallback_modules"` // class short name -> module
}

// Neo4jConfig holds the optional remote graph connection.
type Neo4jConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Environment: EnvironmentConfig{
			VenvRoot:          ".",
			UpgradeBuildTools: true,
			PreferBinary:      true,
			LockTimeoutSec:    300,
		},
		Extract: ExtractConfig{
			OutputDir:       "API_output",
			ExcludeModules:  []string{},
			DuplicatePolicy: string(walker.DuplicatesAsAliases),
		},
		Graph: GraphConfig{
			Namespace:          graph.DefaultNamespace,
			LibraryName:        graph.DefaultLibraryName,
			DescriptionPreview: graph.DefaultDescriptionPreview,
			DefaultModule:      graph.DefaultModule,
			FallbackModules:    graph.DefaultFallbackModules(),
		},
	}
}
