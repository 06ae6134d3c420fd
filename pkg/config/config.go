// Package config holds the runner configuration, loads it with viper and
// resolves secrets from the encrypted secrets file or the environment.
package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"viberunner/pkg/llm/providers"
	"viberunner/pkg/orchestrator"
	"viberunner/pkg/persistence"
	"viberunner/pkg/pipeline"
	"viberunner/pkg/retry"
	"viberunner/pkg/session"
)

// Config is the full runner configuration.
//
//nolint:govet // Logical grouping preferred over memory optimization
type Config struct {
	RepoName          string   `mapstructure:"repo_name"`
	BaseBranch        string   `mapstructure:"base_branch"`
	MaxRetries        int      `mapstructure:"max_retries"`
	ExtensionsEnabled []string `mapstructure:"extensions_enabled"`

	LLMStrategy string `mapstructure:"llm_strategy"`
	LLMProvider string `mapstructure:"llm_provider"`
	LLMModel    string `mapstructure:"llm_model"`
	OllamaHost  string `mapstructure:"ollama_host"`

	Agent    AgentConfig    `mapstructure:"agent"`
	CI       CIConfig       `mapstructure:"ci"`
	Cycle    CycleConfig    `mapstructure:"cycle"`
	Campaign CampaignConfig `mapstructure:"campaign"`

	WorkDir     string `mapstructure:"work_dir"`
	StateDir    string `mapstructure:"state_dir"`
	ReportFile  string `mapstructure:"report_file"`
	MetricsFile string `mapstructure:"metrics_file"`
	LogFile     string `mapstructure:"log_file"`
	Debug       bool   `mapstructure:"debug"`
}

// AgentConfig drives the agent CLI.
type AgentConfig struct {
	Executable        string        `mapstructure:"executable"`
	SpecFile          string        `mapstructure:"spec_file"`
	LaunchTimeout     time.Duration `mapstructure:"launch_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	PostLaunchGrace   time.Duration `mapstructure:"post_launch_grace"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	PollErrorBackoff  time.Duration `mapstructure:"poll_error_backoff"`
	CompletionTimeout time.Duration `mapstructure:"completion_timeout"`
	SyncDirs          []string      `mapstructure:"sync_dirs"`
	SyncFiles         []string      `mapstructure:"sync_files"`
}

// CIConfig tunes CI polling and failure analysis.
type CIConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	MinWait        time.Duration `mapstructure:"min_wait"`
	MaxWait        time.Duration `mapstructure:"max_wait"`
	LogTailLines   int           `mapstructure:"log_tail_lines"`
	LogTokenBudget int           `mapstructure:"log_token_budget"`
}

// CycleConfig tunes the backoff between attempts.
type CycleConfig struct {
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
}

// CampaignConfig bounds open-ended campaigns.
type CampaignConfig struct {
	MaxIterations int `mapstructure:"max_iterations"`
}

// Default returns the stock configuration.
func Default() *Config {
	agent := session.DefaultConfig()
	ci := pipeline.DefaultCIConfig()
	cycle := orchestrator.DefaultConfig()

	return &Config{
		BaseBranch:        "develop",
		MaxRetries:        cycle.MaxRetries,
		ExtensionsEnabled: []string{pipeline.ExtensionSecurity, pipeline.ExtensionCodeReview},
		LLMStrategy:       providers.StrategyAPI,
		OllamaHost:        "http://localhost:11434",
		Agent: AgentConfig{
			Executable:        agent.Executable,
			SpecFile:          agent.SpecFile,
			LaunchTimeout:     agent.LaunchTimeout,
			ReadTimeout:       agent.ReadTimeout,
			PostLaunchGrace:   agent.PostLaunchGrace,
			PollInterval:      agent.PollInterval,
			PollErrorBackoff:  agent.PollErrorBackoff,
			CompletionTimeout: agent.CompletionTimeout,
			SyncDirs:          agent.SyncDirs,
			SyncFiles:         agent.SyncFiles,
		},
		CI: CIConfig{
			MaxAttempts:    ci.MaxAttempts,
			MinWait:        ci.MinWait,
			MaxWait:        ci.MaxWait,
			LogTailLines:   ci.LogTailLines,
			LogTokenBudget: 1500,
		},
		Cycle: CycleConfig{
			BackoffInitial: cycle.BackoffInitial,
			BackoffMax:     cycle.BackoffMax,
		},
		Campaign:   CampaignConfig{MaxIterations: cycle.MaxIterations},
		WorkDir:    ".",
		StateDir:   ".viberunner",
		ReportFile: "REPORT.md",
	}
}

// ValidationError is one invalid field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every invalid field.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if c.BaseBranch == "" {
		add("base_branch", c.BaseBranch, "must not be empty")
	}
	if c.MaxRetries < 1 {
		add("max_retries", c.MaxRetries, "must be at least 1")
	}
	for _, ext := range c.ExtensionsEnabled {
		if ext != pipeline.ExtensionSecurity && ext != pipeline.ExtensionCodeReview {
			add("extensions_enabled", ext, "unknown extension")
		}
	}
	if !slices.Contains([]string{providers.StrategyAPI, providers.StrategyLocal}, c.LLMStrategy) {
		add("llm_strategy", c.LLMStrategy, "must be api or local")
	}
	if c.LLMProvider != "" && !slices.Contains(providers.Names(), c.LLMProvider) {
		add("llm_provider", c.LLMProvider, "unknown provider")
	}
	if c.Agent.Executable == "" {
		add("agent.executable", c.Agent.Executable, "must not be empty")
	}
	for field, d := range map[string]time.Duration{
		"agent.launch_timeout":     c.Agent.LaunchTimeout,
		"agent.read_timeout":       c.Agent.ReadTimeout,
		"agent.poll_interval":      c.Agent.PollInterval,
		"agent.completion_timeout": c.Agent.CompletionTimeout,
	} {
		if d <= 0 {
			add(field, d, "must be positive")
		}
	}
	if c.CI.MaxAttempts < 1 {
		add("ci.max_attempts", c.CI.MaxAttempts, "must be at least 1")
	}
	if c.CI.MinWait > c.CI.MaxWait {
		add("ci.min_wait", c.CI.MinWait, "must not exceed ci.max_wait")
	}
	if c.CI.LogTailLines < 1 {
		add("ci.log_tail_lines", c.CI.LogTailLines, "must be at least 1")
	}
	if c.Cycle.BackoffInitial > c.Cycle.BackoffMax {
		add("cycle.backoff_initial", c.Cycle.BackoffInitial, "must not exceed cycle.backoff_max")
	}
	if c.Campaign.MaxIterations < 1 {
		add("campaign.max_iterations", c.Campaign.MaxIterations, "must be at least 1")
	}
	if c.StateDir == "" {
		add("state_dir", c.StateDir, "must not be empty")
	}

	if len(errs) == 0 {
		return nil
	}
	slices.SortFunc(errs, func(a, b ValidationError) int { return strings.Compare(a.Field, b.Field) })
	return errs
}

// RequireRepo reports a missing repo_name; only launching needs it.
func (c *Config) RequireRepo() error {
	if c.RepoName == "" {
		return ValidationErrors{{Field: "repo_name", Value: "", Message: "required to launch agent sessions"}}
	}
	return nil
}

// Session builds the agent session settings.
func (c *Config) Session() session.Config {
	cfg := session.DefaultConfig()
	cfg.Executable = c.Agent.Executable
	cfg.Repo = c.RepoName
	cfg.WorkDir = c.WorkDir
	cfg.SpecFile = c.Agent.SpecFile
	cfg.LaunchTimeout = c.Agent.LaunchTimeout
	cfg.ReadTimeout = c.Agent.ReadTimeout
	cfg.PostLaunchGrace = c.Agent.PostLaunchGrace
	cfg.PollInterval = c.Agent.PollInterval
	cfg.PollErrorBackoff = c.Agent.PollErrorBackoff
	cfg.CompletionTimeout = c.Agent.CompletionTimeout
	cfg.SyncDirs = c.Agent.SyncDirs
	cfg.SyncFiles = c.Agent.SyncFiles
	return cfg
}

// Pipeline builds the verification step settings.
func (c *Config) Pipeline() pipeline.BuildConfig {
	return pipeline.BuildConfig{
		Extensions: c.ExtensionsEnabled,
		CI: pipeline.CIConfig{
			MaxAttempts:  c.CI.MaxAttempts,
			MinWait:      c.CI.MinWait,
			MaxWait:      c.CI.MaxWait,
			LogTailLines: c.CI.LogTailLines,
		},
	}
}

// Orchestrator builds the cycle and campaign settings.
func (c *Config) Orchestrator() orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	cfg.MaxRetries = c.MaxRetries
	cfg.BackoffInitial = c.Cycle.BackoffInitial
	cfg.BackoffMax = c.Cycle.BackoffMax
	cfg.WorkDir = c.WorkDir
	cfg.MaxIterations = c.Campaign.MaxIterations
	return cfg
}

// Providers builds the completion client options from the configuration and secrets.
func (c *Config) Providers(s *Secrets) providers.Options {
	return providers.Options{
		Strategy:     c.LLMStrategy,
		Provider:     c.LLMProvider,
		Model:        c.LLMModel,
		OllamaHost:   c.OllamaHost,
		OpenAIKey:    s.Lookup(SecretOpenAI),
		DeepSeekKey:  s.Lookup(SecretDeepSeek),
		AnthropicKey: s.Lookup(SecretAnthropic),
		GoogleKey:    s.Lookup(SecretGoogle),
	}
}

// SummaryRetry is the backoff for CI log summarization calls.
func (c *Config) SummaryRetry() retry.Policy {
	return retry.NewPolicy(3, retry.Exponential{Initial: time.Second, Max: 8 * time.Second, Factor: 2, Jitter: true})
}

// LedgerPath is where the run ledger lives.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.StateDir, persistence.DefaultFileName)
}

// EventsDir is where JSONL event logs are written.
func (c *Config) EventsDir() string {
	return filepath.Join(c.StateDir, "events")
}
