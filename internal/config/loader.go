package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/tidwall/jsonc"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".careerforge"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "CAREERFORGE"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("CAREERFORGE_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("CAREERFORGE_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	return os.UserHomeDir()
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
// The config file may contain comments and trailing commas.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Load process env vars from .env and ~/.careerforge/env first.
	LoadEnvFileCandidates()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := loadResolvedConfig(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	// Fallbacks for API keys
	if cfg.Providers.Gemini.APIKey == "" {
		cfg.Providers.Gemini.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.Providers.OpenAI.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Providers.OpenAI.APIKey = key
		} else if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
			cfg.Providers.OpenAI.APIKey = key
		}
	}

	normalize(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	groups := []struct {
		prefix string
		spec   any
	}{
		{EnvPrefix + "_PATHS", &cfg.Paths},
		{EnvPrefix + "_MODEL", &cfg.Model},
		{EnvPrefix + "_OPENAI", &cfg.Providers.OpenAI},
		{EnvPrefix + "_GEMINI", &cfg.Providers.Gemini},
		{EnvPrefix + "_GATEWAY", &cfg.Gateway},
		{EnvPrefix + "_STORE", &cfg.Store},
		{EnvPrefix + "_SANDBOX", &cfg.Sandbox},
		{EnvPrefix + "_AUDIT", &cfg.Audit},
		{EnvPrefix + "_AGENTS", &cfg.Agents},
	}
	for _, g := range groups {
		if err := envconfig.Process(g.prefix, g.spec); err != nil {
			return fmt.Errorf("env %s: %w", g.prefix, err)
		}
	}
	return nil
}

func normalize(cfg *Config) {
	expandHome := func(p *string) {
		if strings.HasPrefix(*p, "~") {
			if home, err := os.UserHomeDir(); err == nil {
				*p = filepath.Join(home, (*p)[1:])
			}
		}
	}
	expandHome(&cfg.Paths.DataDir)
	expandHome(&cfg.Agents.PromptsFile)

	def := DefaultConfig()
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Backend)) {
	case StoreBackendSQLite:
		cfg.Store.Backend = StoreBackendSQLite
	default:
		cfg.Store.Backend = StoreBackendJSON
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Driver)) {
	case "sqlite3":
		cfg.Store.Driver = "sqlite3"
	default:
		cfg.Store.Driver = "sqlite"
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Sandbox.PolicyMode)) {
	case "deny":
		cfg.Sandbox.PolicyMode = "deny"
	default:
		cfg.Sandbox.PolicyMode = "allow"
	}
	if cfg.Sandbox.Timeout <= 0 {
		cfg.Sandbox.Timeout = def.Sandbox.Timeout
	}
	if strings.TrimSpace(cfg.Sandbox.Interpreter) == "" {
		cfg.Sandbox.Interpreter = def.Sandbox.Interpreter
	}
	if cfg.Model.MaxToolIterations <= 0 {
		cfg.Model.MaxToolIterations = def.Model.MaxToolIterations
	}
	if cfg.Model.HistoryLimit <= 0 {
		cfg.Model.HistoryLimit = def.Model.HistoryLimit
	}
	if cfg.Gateway.Port <= 0 {
		cfg.Gateway.Port = def.Gateway.Port
	}
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// loadResolvedConfig reads the config file, strips comments and trailing
// commas, and substitutes ${VAR} references from the environment.
func loadResolvedConfig(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	substituteEnvValues(raw)
	return json.Marshal(raw)
}

func substituteEnvValues(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = substituteEnvValues(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = substituteEnvValues(item)
		}
		return t
	case string:
		return envPattern.ReplaceAllStringFunc(t, func(match string) string {
			parts := envPattern.FindStringSubmatch(match)
			if len(parts) != 2 {
				return match
			}
			if value, ok := os.LookupEnv(parts[1]); ok {
				return value
			}
			return match
		})
	default:
		return v
	}
}
