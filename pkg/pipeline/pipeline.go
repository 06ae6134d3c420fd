package pipeline

import (
	"context"
	"fmt"
	"time"

	"viberunner/pkg/events"
	"viberunner/pkg/logx"
)

// Result is what every step reports.
type Result struct {
	Success bool
	Message string
	Details map[string]any
}

// Pass builds a successful result.
func Pass(message string) Result {
	return Result{Success: true, Message: message}
}

// Fail builds a failed result.
func Fail(message string) Result {
	return Result{Success: false, Message: message}
}

// Step is one verification stage.
type Step interface {
	Name() string
	Execute(ctx context.Context, pc *Context) Result
}

// StepRecord is the outcome of one executed step.
type StepRecord struct {
	Step     string
	Result   Result
	Duration time.Duration
}

// Report is the outcome of a pipeline run. Records holds every executed step in order.
type Report struct {
	Records []StepRecord
}

// Success reports whether every executed step passed.
func (r Report) Success() bool {
	for _, rec := range r.Records {
		if !rec.Result.Success {
			return false
		}
	}
	return true
}

// Failure returns the first failed step's record.
func (r Report) Failure() (StepRecord, bool) {
	for _, rec := range r.Records {
		if !rec.Result.Success {
			return rec, true
		}
	}
	return StepRecord{}, false
}

// Pipeline executes its steps strictly in order, stopping at the first failure.
type Pipeline struct {
	steps   []Step
	emitter events.Emitter
	logger  *logx.Logger
}

// New creates a pipeline over steps.
func New(emitter events.Emitter, steps ...Step) *Pipeline {
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &Pipeline{steps: steps, emitter: emitter, logger: logx.NewLogger("pipeline")}
}

// Steps returns the configured steps.
func (p *Pipeline) Steps() []Step {
	return p.steps
}

// Run executes the steps against pc. A panicking step is reported as a failure.
func (p *Pipeline) Run(ctx context.Context, pc *Context) Report {
	var report Report
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			report.Records = append(report.Records, StepRecord{Step: step.Name(), Result: Fail(fmt.Sprintf("cancelled: %v", err))})
			return report
		}

		start := time.Now()
		result := p.execute(ctx, step, pc)
		rec := StepRecord{Step: step.Name(), Result: result, Duration: time.Since(start)}
		report.Records = append(report.Records, rec)

		if !result.Success {
			p.logger.Warn("❌ Step %s failed: %s", step.Name(), firstLine(result.Message))
			return report
		}
		p.logger.Info("✅ Step %s: %s", step.Name(), firstLine(result.Message))
	}
	return report
}

func (p *Pipeline) execute(ctx context.Context, step Step, pc *Context) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Step %s panicked: %v", step.Name(), r)
			result = Fail(fmt.Sprintf("step %s panicked: %v", step.Name(), r))
		}
	}()
	return step.Execute(ctx, pc)
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
