// Package report renders the markdown certificate written after a run.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"viberunner/pkg/events"
)

//go:embed report.tpl.md
var reportTemplate string

// Run status values.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// Meta describes the run being reported.
type Meta struct {
	Task    string
	Branch  string
	Success bool
}

// Check is one check result line.
type Check struct {
	Name   string
	Status string
	Detail string
}

// Message is one agent message line.
type Message struct {
	Time    string
	Content string
}

// FrontMatter is the YAML header of the report.
type FrontMatter struct {
	Task     string    `yaml:"task"`
	Branch   string    `yaml:"branch"`
	Status   string    `yaml:"status"`
	Started  time.Time `yaml:"started"`
	Duration string    `yaml:"duration"`
	Checks   struct {
		Total  int `yaml:"total"`
		Passed int `yaml:"passed"`
		Failed int `yaml:"failed"`
	} `yaml:"checks"`
	Attempts int `yaml:"attempts"`
}

// Data is what the template renders.
type Data struct {
	FrontMatter   string
	Task          string
	Branch        string
	Generated     string
	Status        string
	Duration      string
	Total         int
	Passed        int
	Failed        int
	AgentChecks   []Check
	LocalChecks   []Check
	RemoteChecks  []Check
	AgentMessages []Message
}

// Build folds the event stream into report data.
func Build(evs []events.Event, meta Meta, now time.Time) (*Data, error) {
	var (
		fm    FrontMatter
		data  = &Data{Task: meta.Task, Branch: meta.Branch, Generated: now.UTC().Format("2006-01-02 15:04:05")}
		start time.Time
	)

	for _, e := range evs {
		switch e.Type {
		case events.CycleStart:
			if start.IsZero() {
				start = e.Timestamp
			}
		case events.PhaseStart:
			if _, ok := e.Payload[events.KeyMax]; ok {
				fm.Attempts++
			}
		case events.CheckResult:
			check := Check{Name: e.Message, Status: e.Str(events.KeyStatus), Detail: e.Str(events.KeyDetail)}
			switch check.Status {
			case events.StatusPass:
				data.Passed++
			case events.StatusFail:
				data.Failed++
			}
			switch e.Str(events.KeyPhase) {
			case events.PhaseLocal:
				data.LocalChecks = append(data.LocalChecks, check)
			case events.PhaseRemote:
				data.RemoteChecks = append(data.RemoteChecks, check)
			default:
				data.AgentChecks = append(data.AgentChecks, check)
			}
		case events.AgentMessage:
			data.AgentMessages = append(data.AgentMessages, Message{
				Time:    e.Timestamp.UTC().Format("15:04:05"),
				Content: e.Message,
			})
		}
	}

	if start.IsZero() && len(evs) > 0 {
		start = evs[0].Timestamp
	}
	end := start
	if len(evs) > 0 {
		end = evs[len(evs)-1].Timestamp
	}

	data.Total = data.Passed + data.Failed
	data.Duration = end.Sub(start).Truncate(time.Second).String()
	data.Status = StatusFailure
	if meta.Success {
		data.Status = StatusSuccess
	}

	fm.Task = meta.Task
	fm.Branch = meta.Branch
	fm.Status = data.Status
	fm.Started = start.UTC()
	fm.Duration = data.Duration
	fm.Checks.Total = data.Total
	fm.Checks.Passed = data.Passed
	fm.Checks.Failed = data.Failed

	header, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}
	data.FrontMatter = string(header)
	return data, nil
}

// Render produces the markdown report.
func Render(evs []events.Event, meta Meta, now time.Time) (string, error) {
	data, err := Build(evs, meta, now)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"icon":   icon,
		"indent": func(s string) string { return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n  ") },
	}).Parse(reportTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse report template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// WriteFile renders the report to path.
func WriteFile(path string, evs []events.Event, meta Meta) error {
	out, err := Render(evs, meta, time.Now())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

// ParseFrontMatter reads the YAML header back from a rendered report.
func ParseFrontMatter(markdown string) (*FrontMatter, error) {
	rest, ok := strings.CutPrefix(markdown, "---\n")
	if !ok {
		return nil, fmt.Errorf("report has no front matter")
	}
	header, _, ok := strings.Cut(rest, "---\n")
	if !ok {
		return nil, fmt.Errorf("unterminated front matter")
	}
	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, fmt.Errorf("failed to decode front matter: %w", err)
	}
	return &fm, nil
}

func icon(status string) string {
	switch status {
	case events.StatusPass:
		return "✅"
	case events.StatusFail:
		return "❌"
	case "":
		return "•"
	default:
		return "⚠️"
	}
}
