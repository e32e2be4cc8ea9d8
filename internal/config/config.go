// Package config provides configuration types and loading for careerforge.
package config

import (
	"path/filepath"
	"time"
)

// Config is the root configuration struct.
// Top-level groups: Paths, Model, Providers, Gateway, Store, Sandbox, Audit, Agents.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Model     ModelConfig     `json:"model"`
	Providers ProvidersConfig `json:"providers"`
	Gateway   GatewayConfig   `json:"gateway"`
	Store     StoreConfig     `json:"store"`
	Sandbox   SandboxConfig   `json:"sandbox"`
	Audit     AuditConfig     `json:"audit"`
	Agents    AgentsConfig    `json:"agents"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings. Relative file names are
// resolved against DataDir.
type PathsConfig struct {
	DataDir     string `json:"dataDir" envconfig:"DATA_DIR"`
	StorageFile string `json:"storageFile" envconfig:"STORAGE_FILE"`
	SQLiteFile  string `json:"sqliteFile" envconfig:"SQLITE_FILE"`
	SessionsDir string `json:"sessionsDir" envconfig:"SESSIONS_DIR"`
	AuditLog    string `json:"auditLog" envconfig:"AUDIT_LOG"`
}

// Resolve returns name joined to DataDir unless name is already absolute.
func (p PathsConfig) Resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.DataDir, name)
}

// ---------------------------------------------------------------------------
// Model – LLM behaviour
// ---------------------------------------------------------------------------

// ModelConfig groups LLM model and runner settings.
// Name uses the "provider/model" form, e.g. "gemini/gemini-2.0-flash".
type ModelConfig struct {
	Name              string  `json:"name" envconfig:"NAME"`
	MaxTokens         int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature       float64 `json:"temperature" envconfig:"TEMPERATURE"`
	MaxToolIterations int     `json:"maxToolIterations" envconfig:"MAX_TOOL_ITERATIONS"`
	HistoryLimit      int     `json:"historyLimit" envconfig:"HISTORY_LIMIT"`
}

// ---------------------------------------------------------------------------
// Providers – LLM API keys & endpoints
// ---------------------------------------------------------------------------

// ProvidersConfig contains LLM provider configurations.
type ProvidersConfig struct {
	OpenAI ProviderConfig `json:"openai"`
	Gemini ProviderConfig `json:"gemini"`
}

// ProviderConfig contains settings for a single LLM provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// ---------------------------------------------------------------------------
// Gateway – HTTP server networking
// ---------------------------------------------------------------------------

// GatewayConfig contains HTTP API settings.
type GatewayConfig struct {
	Host         string   `json:"host" envconfig:"HOST"`
	Port         int      `json:"port" envconfig:"PORT"`
	AllowOrigins []string `json:"allowOrigins" envconfig:"ALLOW_ORIGINS"`
}

// ---------------------------------------------------------------------------
// Store – conversation persistence
// ---------------------------------------------------------------------------

const (
	StoreBackendJSON   = "json"
	StoreBackendSQLite = "sqlite"
)

// StoreConfig selects the conversation store backend.
// Driver applies to the sqlite backend: "sqlite" (modernc) or "sqlite3" (cgo).
type StoreConfig struct {
	Backend string `json:"backend" envconfig:"BACKEND"`
	Driver  string `json:"driver" envconfig:"DRIVER"`
}

// ---------------------------------------------------------------------------
// Sandbox – code execution
// ---------------------------------------------------------------------------

// SandboxConfig configures the code execution sandbox and its import policy.
type SandboxConfig struct {
	Interpreter string        `json:"interpreter" envconfig:"INTERPRETER"`
	Timeout     Duration `json:"timeout" envconfig:"TIMEOUT"`
	PolicyMode  string        `json:"policyMode" envconfig:"POLICY_MODE"` // "allow" or "deny"
	DenyModules []string      `json:"denyModules" envconfig:"DENY_MODULES"`
}

// ---------------------------------------------------------------------------
// Audit – agent trace log
// ---------------------------------------------------------------------------

// AuditConfig configures optional audit sinks beyond the JSONL file.
type AuditConfig struct {
	KafkaBrokers string `json:"kafkaBrokers" envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string `json:"kafkaTopic" envconfig:"KAFKA_TOPIC"`
}

// ---------------------------------------------------------------------------
// Agents – prompt overrides
// ---------------------------------------------------------------------------

// AgentsConfig points at an optional YAML file overriding system prompts.
type AgentsConfig struct {
	PromptsFile string `json:"promptsFile" envconfig:"PROMPTS_FILE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:     "~/.careerforge/data",
			StorageFile: "storage.json",
			SQLiteFile:  "careerforge.db",
			SessionsDir: "sessions",
			AuditLog:    "agent_trace.jsonl",
		},
		Model: ModelConfig{
			Name:              "gemini/gemini-2.0-flash",
			MaxTokens:         4096,
			Temperature:       0.7,
			MaxToolIterations: 5,
			HistoryLimit:      40,
		},
		Gateway: GatewayConfig{
			Host:         "127.0.0.1",
			Port:         8000,
			AllowOrigins: []string{"*"},
		},
		Store: StoreConfig{
			Backend: StoreBackendJSON,
			Driver:  "sqlite",
		},
		Sandbox: SandboxConfig{
			Interpreter: "python3",
			Timeout:     Duration(10 * time.Second),
			PolicyMode:  "allow",
			DenyModules: []string{"os", "subprocess"},
		},
		Audit: AuditConfig{
			KafkaTopic: "careerforge.audit",
		},
	}
}
