package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Configuration file and environment naming.
const (
	ConfigName = "viberunner"
	EnvPrefix  = "VIBE"
)

// SetDefaults registers every key with its default so env overrides and
// Unmarshal see the full key set.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("repo_name", d.RepoName)
	v.SetDefault("base_branch", d.BaseBranch)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("extensions_enabled", d.ExtensionsEnabled)

	v.SetDefault("llm_strategy", d.LLMStrategy)
	v.SetDefault("llm_provider", d.LLMProvider)
	v.SetDefault("llm_model", d.LLMModel)
	v.SetDefault("ollama_host", d.OllamaHost)

	v.SetDefault("agent.executable", d.Agent.Executable)
	v.SetDefault("agent.spec_file", d.Agent.SpecFile)
	v.SetDefault("agent.launch_timeout", d.Agent.LaunchTimeout)
	v.SetDefault("agent.read_timeout", d.Agent.ReadTimeout)
	v.SetDefault("agent.post_launch_grace", d.Agent.PostLaunchGrace)
	v.SetDefault("agent.poll_interval", d.Agent.PollInterval)
	v.SetDefault("agent.poll_error_backoff", d.Agent.PollErrorBackoff)
	v.SetDefault("agent.completion_timeout", d.Agent.CompletionTimeout)
	v.SetDefault("agent.sync_dirs", d.Agent.SyncDirs)
	v.SetDefault("agent.sync_files", d.Agent.SyncFiles)

	v.SetDefault("ci.max_attempts", d.CI.MaxAttempts)
	v.SetDefault("ci.min_wait", d.CI.MinWait)
	v.SetDefault("ci.max_wait", d.CI.MaxWait)
	v.SetDefault("ci.log_tail_lines", d.CI.LogTailLines)
	v.SetDefault("ci.log_token_budget", d.CI.LogTokenBudget)

	v.SetDefault("cycle.backoff_initial", d.Cycle.BackoffInitial)
	v.SetDefault("cycle.backoff_max", d.Cycle.BackoffMax)
	v.SetDefault("campaign.max_iterations", d.Campaign.MaxIterations)

	v.SetDefault("work_dir", d.WorkDir)
	v.SetDefault("state_dir", d.StateDir)
	v.SetDefault("report_file", d.ReportFile)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("debug", d.Debug)
}

// NewViper creates a viper instance with defaults, the config file search path
// and VIBE_* environment overrides (VIBE_AGENT_POLL_INTERVAL for agent.poll_interval).
// An empty configFile searches for viberunner.yaml in the current directory.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file if there is one, applies overrides and validates.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
