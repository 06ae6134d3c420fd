// Package orchestrator drives the agent through launch, completion, sync and
// verification, retrying with feedback, and strings cycles together into
// campaigns on an aggregation branch.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"viberunner/pkg/events"
	"viberunner/pkg/logx"
	"viberunner/pkg/persistence"
	"viberunner/pkg/pipeline"
	"viberunner/pkg/retry"
	"viberunner/pkg/scm"
	"viberunner/pkg/session"
)

// InfrastructureError means the tooling broke, not the code: launch, completion
// or sync failed. It aborts the cycle without retry.
type InfrastructureError struct {
	Phase string
	Err   error
}

func (e *InfrastructureError) Error() string {
	return "Agent workflow failed: " + e.Err.Error()
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// Phases reported in InfrastructureError.
const (
	PhaseAuth     = "auth"
	PhaseLaunch   = "launch"
	PhaseAwait    = "await"
	PhaseSync     = "sync"
	PhasePipeline = "pipeline"
)

// AuthChecker verifies CI credentials before any work starts.
type AuthChecker interface {
	CheckAuth(ctx context.Context) error
}

// Professionalizer rewrites raw commit logs into squash messages.
type Professionalizer interface {
	HasClient() bool
	Professionalize(ctx context.Context, rawLog string) (string, error)
	Sanitize(text string) string
}

// Recorder receives cycle, pipeline and iteration outcomes.
type Recorder interface {
	ObserveCycle(success bool, duration time.Duration)
	ObservePipeline(report pipeline.Report)
	ObserveIteration(outcome string)
}

// Ledger persists campaigns and attempts.
type Ledger interface {
	StartCampaign(ctx context.Context, c *persistence.Campaign) error
	FinishCampaign(ctx context.Context, id, status string, iterations int) error
	RecordAttempt(ctx context.Context, a *persistence.Attempt) error
}

// Config tunes the cycle and campaign loops.
type Config struct {
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// WorkDir is the working tree the agent's result is synced into.
	WorkDir string
	// MaxIterations caps open-ended campaigns.
	MaxIterations int
	// ProfessionalizeAttempts bounds commit message rewriting.
	ProfessionalizeAttempts int
}

// DefaultConfig returns the stock loop settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries:              5,
		BackoffInitial:          2 * time.Second,
		BackoffMax:              30 * time.Second,
		WorkDir:                 ".",
		MaxIterations:           1000,
		ProfessionalizeAttempts: 3,
	}
}

// Orchestrator runs cycles and campaigns.
//
//nolint:govet // Logical grouping preferred over memory optimization
type Orchestrator struct {
	cfg      Config
	agent    session.Agent
	pipeline *pipeline.Pipeline
	emitter  events.Emitter

	git     scm.Gateway
	janitor Professionalizer
	auth    AuthChecker

	recorder Recorder
	ledger   Ledger

	sleep retry.SleepFunc
	runID func() string
	now   func() time.Time

	logger *logx.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSCM enables campaigns with the given source-control gateway and commit rewriter.
func WithSCM(git scm.Gateway, janitor Professionalizer) Option {
	return func(o *Orchestrator) {
		o.git = git
		o.janitor = janitor
	}
}

// WithAuthCheck runs auth.CheckAuth before each cycle or campaign.
func WithAuthCheck(auth AuthChecker) Option {
	return func(o *Orchestrator) { o.auth = auth }
}

// WithRecorder reports outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithLedger persists campaigns and attempts.
func WithLedger(l Ledger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep retry.SleepFunc) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithRunID replaces the campaign run id generator.
func WithRunID(gen func() string) Option {
	return func(o *Orchestrator) { o.runID = gen }
}

// New creates an orchestrator.
func New(cfg Config, agent session.Agent, p *pipeline.Pipeline, emitter events.Emitter, opts ...Option) *Orchestrator {
	defaults := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = defaults.BackoffInitial
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaults.BackoffMax
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = defaults.WorkDir
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaults.MaxIterations
	}
	if cfg.ProfessionalizeAttempts <= 0 {
		cfg.ProfessionalizeAttempts = defaults.ProfessionalizeAttempts
	}
	if emitter == nil {
		emitter = events.Nop{}
	}

	o := &Orchestrator{
		cfg:      cfg,
		agent:    agent,
		pipeline: p,
		emitter:  emitter,
		recorder: nopRecorder{},
		sleep:    retry.Sleep,
		runID:    randomRunID,
		now:      time.Now,
		logger:   logx.NewLogger("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) checkAuth(ctx context.Context) error {
	if o.auth == nil {
		return nil
	}
	if err := o.auth.CheckAuth(ctx); err != nil {
		return &InfrastructureError{Phase: PhaseAuth, Err: fmt.Errorf("GitHub authentication check failed: %w", err)}
	}
	return nil
}

func (o *Orchestrator) record(ctx context.Context, a *persistence.Attempt) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.RecordAttempt(context.WithoutCancel(ctx), a); err != nil {
		o.logger.Warn("⚠️ Failed to record attempt on %s: %v", a.Branch, err)
	}
}

// IsInfrastructure reports whether err is an InfrastructureError.
func IsInfrastructure(err error) bool {
	var infra *InfrastructureError
	return errors.As(err, &infra)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCycle(bool, time.Duration) {}
func (nopRecorder) ObservePipeline(pipeline.Report)  {}
func (nopRecorder) ObserveIteration(string)          {}
