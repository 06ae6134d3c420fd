// Package metrics records cycle, pipeline and campaign outcomes in a Prometheus
// registry and writes text-format snapshots of it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"viberunner/pkg/events"
	"viberunner/pkg/pipeline"
)

// Recorder owns a private registry so snapshots only carry runner metrics.
type Recorder struct {
	registry *prometheus.Registry

	cyclesTotal     *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	attemptsTotal   prometheus.Counter
	stepsTotal      *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	ciPollsTotal    prometheus.Counter
	agentMessages   prometheus.Counter
	iterationsTotal *prometheus.CounterVec
	errorsTotal     prometheus.Counter
}

// NewRecorder creates a recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		cyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viberunner_cycles_total",
				Help: "Completed cycles by outcome",
			},
			[]string{"outcome"},
		),
		cycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "viberunner_cycle_duration_seconds",
				Help:    "Wall time of a cycle from first launch to outcome",
				Buckets: prometheus.ExponentialBuckets(30, 2, 10),
			},
		),
		attemptsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "viberunner_attempts_total",
				Help: "Agent launches across all cycles",
			},
		),
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viberunner_pipeline_steps_total",
				Help: "Executed verification steps by step and outcome",
			},
			[]string{"step", "outcome"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "viberunner_pipeline_step_duration_seconds",
				Help:    "Duration of verification steps",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"step"},
		),
		ciPollsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "viberunner_ci_polls_total",
				Help: "CI status queries issued while waiting for checks",
			},
		),
		agentMessages: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "viberunner_agent_messages_total",
				Help: "Autonomous replies sent to agent prompts",
			},
		),
		iterationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viberunner_campaign_iterations_total",
				Help: "Campaign iterations by outcome",
			},
			[]string{"outcome"},
		),
		errorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "viberunner_errors_total",
				Help: "Error events emitted",
			},
		),
	}
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ObserveCycle records a finished cycle.
func (r *Recorder) ObserveCycle(success bool, duration time.Duration) {
	r.cyclesTotal.WithLabelValues(outcome(success)).Inc()
	r.cycleDuration.Observe(duration.Seconds())
}

// ObservePipeline records every executed step of a pipeline run.
func (r *Recorder) ObservePipeline(report pipeline.Report) {
	for _, rec := range report.Records {
		r.stepsTotal.WithLabelValues(rec.Step, outcome(rec.Result.Success)).Inc()
		r.stepDuration.WithLabelValues(rec.Step).Observe(rec.Duration.Seconds())
	}
}

// ObserveIteration records a campaign iteration outcome (merged, failed, errored).
func (r *Recorder) ObserveIteration(result string) {
	r.iterationsTotal.WithLabelValues(result).Inc()
}

// Emit implements events.Emitter. Attempts, CI polls, agent replies and errors
// are counted from the event stream.
func (r *Recorder) Emit(e events.Event) {
	switch e.Type {
	case events.PhaseStart:
		if _, ok := e.Payload[events.KeyMax]; ok {
			r.attemptsTotal.Inc()
		}
	case events.CheckRunning:
		if e.Str(events.KeyPhase) == events.PhaseRemote {
			if _, ok := e.Payload[events.KeyAttempt]; ok {
				r.ciPollsTotal.Inc()
			}
		}
	case events.AgentMessage:
		r.agentMessages.Inc()
	case events.Error:
		r.errorsTotal.Inc()
	}
}
