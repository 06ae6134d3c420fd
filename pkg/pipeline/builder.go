package pipeline

import (
	"slices"
	"time"

	"viberunner/pkg/events"
	"viberunner/pkg/gemini"
	"viberunner/pkg/github"
	"viberunner/pkg/retry"
	"viberunner/pkg/scm"
)

// Extension names accepted in extensions_enabled.
const (
	ExtensionSecurity   = "security"
	ExtensionCodeReview = "code-review"
)

// CIConfig tunes the CI poll and log analysis.
type CIConfig struct {
	MaxAttempts  int
	MinWait      time.Duration
	MaxWait      time.Duration
	LogTailLines int
}

// DefaultCIConfig polls 30 times between 2s and 10s and keeps 2000 log lines.
func DefaultCIConfig() CIConfig {
	return CIConfig{MaxAttempts: 30, MinWait: 2 * time.Second, MaxWait: 10 * time.Second, LogTailLines: DefaultLogTailLines}
}

// Policy converts the CI settings into a retry policy.
func (c CIConfig) Policy(sleep retry.SleepFunc) retry.Policy {
	p := retry.NewPolicy(c.MaxAttempts, retry.Exponential{Initial: c.MinWait, Max: c.MaxWait, Factor: 2})
	if sleep != nil {
		p.Sleep = sleep
	}
	return p
}

// BuildConfig selects and tunes the verification steps.
type BuildConfig struct {
	Extensions []string
	// ScanPath is handed to the analyzer; empty means the working directory.
	ScanPath string
	CI       CIConfig
	// Sleep overrides the CI backoff sleeper.
	Sleep retry.SleepFunc
}

// Deps are the gateways the steps drive.
type Deps struct {
	Analyzer gemini.Analyzer
	Git      scm.Gateway
	CI       github.CIGateway
	Janitor  Janitor
	Emitter  events.Emitter
}

// Build assembles the local defense line followed by the remote one:
// security-scan, code-review, push, ci-poll, log-analysis. Extensions that are
// not enabled stay in the list and report success.
func Build(cfg BuildConfig, deps Deps) *Pipeline {
	ci := cfg.CI
	if ci.MaxAttempts <= 0 {
		ci = DefaultCIConfig()
	}

	return New(deps.Emitter,
		NewSecurityScanStep(deps.Analyzer, slices.Contains(cfg.Extensions, ExtensionSecurity), cfg.ScanPath, deps.Emitter),
		NewCodeReviewStep(deps.Analyzer, slices.Contains(cfg.Extensions, ExtensionCodeReview), cfg.ScanPath, deps.Emitter),
		NewPushStep(deps.Git, deps.Janitor, deps.Emitter),
		NewCIPollStep(deps.CI, ci.Policy(cfg.Sleep), false, deps.Emitter),
		NewLogAnalysisStep(deps.CI, deps.Janitor, ci.LogTailLines, deps.Emitter),
	)
}
