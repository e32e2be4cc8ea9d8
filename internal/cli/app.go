package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/careerforge/careerforge/internal/agent"
	"github.com/careerforge/careerforge/internal/audit"
	"github.com/careerforge/careerforge/internal/config"
	"github.com/careerforge/careerforge/internal/policy"
	"github.com/careerforge/careerforge/internal/provider"
	"github.com/careerforge/careerforge/internal/routing"
	"github.com/careerforge/careerforge/internal/sandbox"
	"github.com/careerforge/careerforge/internal/session"
	"github.com/careerforge/careerforge/internal/store"
	"github.com/careerforge/careerforge/internal/store/jsonstore"
	"github.com/careerforge/careerforge/internal/store/sqlitestore"
	"github.com/careerforge/careerforge/internal/task"
	"github.com/careerforge/careerforge/internal/tools"
)

// app is the fully wired service graph shared by the commands.
type app struct {
	cfg      *config.Config
	store    store.Store
	sessions *session.Manager
	agents   *agent.Registry
	runner   *agent.Runner
	sandbox  *sandbox.Executor
	audit    *audit.Logger
	engine   *routing.Engine
	tasks    *task.Manager
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

func newApp(cfg *config.Config) (*app, error) {
	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	a := &app{cfg: cfg, sandbox: newSandbox(cfg)}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = st

	a.sessions, err = session.NewManager(cfg.Paths.Resolve(cfg.Paths.SessionsDir))
	if err != nil {
		a.Close()
		return nil, err
	}

	var prompts map[string]string
	if cfg.Agents.PromptsFile != "" {
		if prompts, err = agent.LoadPrompts(cfg.Agents.PromptsFile); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.agents, err = agent.NewRegistry(prompts, tools.NewPythonTool(a.sandbox, agent.Executor))
	if err != nil {
		a.Close()
		return nil, err
	}

	prov, err := provider.Resolve(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.runner = agent.NewRunner(prov, a.sessions, agent.RunnerOptions{
		MaxTokens:         cfg.Model.MaxTokens,
		Temperature:       cfg.Model.Temperature,
		HistoryLimit:      cfg.Model.HistoryLimit,
		MaxToolIterations: cfg.Model.MaxToolIterations,
	})

	a.audit = newAuditLogger(cfg)
	a.engine = routing.NewEngine(a.store, a.sessions, a.agents, a.runner, a.audit)
	a.tasks = task.NewManager(a.store, a.sessions, a.agents, a.runner, a.audit)
	return a, nil
}

func newSandbox(cfg *config.Config) *sandbox.Executor {
	pol := policy.NewImportPolicy(cfg.Sandbox.PolicyMode, cfg.Sandbox.DenyModules)
	return sandbox.New(cfg.Sandbox.Interpreter, cfg.Sandbox.Timeout.Std(), pol)
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendSQLite:
		return sqlitestore.Open(cfg.Store.Driver, cfg.Paths.Resolve(cfg.Paths.SQLiteFile))
	default:
		return jsonstore.Open(cfg.Paths.Resolve(cfg.Paths.StorageFile))
	}
}

func newAuditLogger(cfg *config.Config) *audit.Logger {
	var sinks []audit.Sink
	if path := cfg.Paths.Resolve(cfg.Paths.AuditLog); path != "" {
		if fs, err := audit.NewFileSink(path); err != nil {
			slog.Warn("Audit log disabled", "path", path, "error", err)
		} else {
			sinks = append(sinks, fs)
		}
	}
	if cfg.Audit.KafkaBrokers != "" {
		sinks = append(sinks, audit.NewKafkaSink(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic))
		slog.Info("Kafka audit sink enabled", "brokers", cfg.Audit.KafkaBrokers, "topic", cfg.Audit.KafkaTopic)
	}
	return audit.NewLogger(sinks...)
}

// Close releases the store and audit sinks.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.audit.Close())
	return errors.Join(errs...)
}
