package main

import (
	"fmt"
	"os"

	"viberunner/pkg/config"
	"viberunner/pkg/eventlog"
	"viberunner/pkg/events"
	"viberunner/pkg/exec"
	"viberunner/pkg/gemini"
	"viberunner/pkg/github"
	"viberunner/pkg/janitor"
	"viberunner/pkg/llm"
	"viberunner/pkg/llm/providers"
	"viberunner/pkg/logx"
	"viberunner/pkg/metrics"
	"viberunner/pkg/orchestrator"
	"viberunner/pkg/persistence"
	"viberunner/pkg/pipeline"
	"viberunner/pkg/scm"
	"viberunner/pkg/session"
)

// app is the wired runtime for one CLI invocation.
type app struct {
	cfg       *config.Config
	collector *events.Collector
	recorder  *metrics.Recorder
	store     *persistence.Store
	eventLog  *eventlog.Writer
	orch      *orchestrator.Orchestrator
	logger    *logx.Logger
}

// loadConfig reads configuration and applies logging settings.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(config.NewViper(opts.configFile))
	if err != nil {
		return nil, err
	}
	if opts.debug {
		cfg.Debug = true
	}
	if cfg.Debug {
		logx.SetDebug(true)
	}
	if cfg.LogFile != "" {
		if err := logx.SetOutputFile(cfg.LogFile); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newApp resolves secrets and builds every collaborator.
func newApp(opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireRepo(); err != nil {
		return nil, err
	}
	logger := logx.NewLogger("viberunner")

	secrets, err := config.LoadSecrets(cfg.StateDir, os.Getenv, config.TerminalPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := secrets.Require(config.RequiredSecrets()...); err != nil {
		return nil, err
	}

	client, err := providers.New(cfg.Providers(secrets))
	if err != nil {
		logger.Warn("⚠️ No summarization model available, falling back to raw output: %v", err)
	}
	jan, err := newJanitor(cfg, client)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		collector: events.NewCollector(),
		recorder:  metrics.NewRecorder(),
		logger:    logger,
	}

	if a.eventLog, err = eventlog.NewWriter(cfg.EventsDir()); err != nil {
		return nil, err
	}
	if a.store, err = persistence.Open(cfg.LedgerPath()); err != nil {
		_ = a.eventLog.Close()
		return nil, err
	}

	emitter := events.NewComposite(
		events.NewLogEmitter(),
		a.collector,
		events.NewConsoleEmitter(os.Stdout),
		a.eventLog,
		a.recorder,
	)

	executor := exec.NewLocalExec()
	git := scm.NewGit(executor, cfg.WorkDir)
	gh := github.NewClient(executor, cfg.RepoName, cfg.WorkDir).WithToken(secrets.Lookup(config.SecretGitHub))
	analyzer := gemini.NewCLI(executor, cfg.WorkDir).
		WithEnv(config.SecretGoogle + "=" + secrets.Lookup(config.SecretGoogle))

	agent := session.NewManager(cfg.Session(), executor, session.PTYSpawner{}, session.WithEmitter(emitter))

	p := pipeline.Build(cfg.Pipeline(), pipeline.Deps{
		Analyzer: analyzer,
		Git:      git,
		CI:       gh,
		Janitor:  jan,
		Emitter:  emitter,
	})

	a.orch = orchestrator.New(cfg.Orchestrator(), agent, p, emitter,
		orchestrator.WithSCM(git, jan),
		orchestrator.WithAuthCheck(gh),
		orchestrator.WithRecorder(a.recorder),
		orchestrator.WithLedger(a.store),
	)

	logger.Debug("Wired repo=%s work_dir=%s state_dir=%s", cfg.RepoName, cfg.WorkDir, cfg.StateDir)
	logger.Info("📥 Events logged to %s", a.eventLog.CurrentFile())
	return a, nil
}

// newJanitor builds the commit and log janitor. client is single-shot: commit
// rewriting is retried by the campaign, log summaries by SummaryRetry.
func newJanitor(cfg *config.Config, client llm.Client) (*janitor.Service, error) {
	return janitor.New(client,
		janitor.WithTokenBudget(cfg.CI.LogTokenBudget),
		janitor.WithSummaryRetry(cfg.SummaryRetry()),
	)
}

// writeMetrics dumps the registry when metrics_file is set.
func (a *app) writeMetrics() {
	if a.cfg.MetricsFile == "" {
		return
	}
	if err := metrics.WriteSnapshot(a.recorder.Registry(), a.cfg.MetricsFile); err != nil {
		a.logger.Warn("⚠️ Failed to write metrics snapshot: %v", err)
		return
	}
	a.logger.Info("📦 Metrics written to %s", a.cfg.MetricsFile)
}

func (a *app) Close() {
	if err := a.eventLog.Close(); err != nil {
		a.logger.Warn("⚠️ Failed to close event log: %v", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("⚠️ Failed to close ledger: %v", err)
	}
}
