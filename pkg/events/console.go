package events

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// ConsoleEmitter renders check progress as styled status lines.
type ConsoleEmitter struct {
	mu      sync.Mutex
	out     io.Writer
	name    lipgloss.Style
	pass    lipgloss.Style
	fail    lipgloss.Style
	running lipgloss.Style
	dim     lipgloss.Style
	header  lipgloss.Style
}

// NewConsoleEmitter creates a ConsoleEmitter. Colors are used only when out is a terminal.
func NewConsoleEmitter(out io.Writer) *ConsoleEmitter {
	r := lipgloss.NewRenderer(out)
	return &ConsoleEmitter{
		out:     out,
		name:    r.NewStyle().Foreground(lipgloss.Color("14")).Width(28),
		pass:    r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		fail:    r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		running: r.NewStyle().Foreground(lipgloss.Color("11")),
		dim:     r.NewStyle().Faint(true),
		header:  r.NewStyle().Bold(true).Underline(true),
	}
}

// Emit implements Emitter.
func (c *ConsoleEmitter) Emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Type {
	case CycleStart, PhaseStart:
		fmt.Fprintln(c.out, c.header.Render(e.Message))
	case CheckRunning:
		fmt.Fprintf(c.out, "%s %s\n", c.name.Render(e.Message), c.running.Render("⏳ running"))
	case CheckResult:
		status := c.pass.Render("✅ pass")
		if e.Str(KeyStatus) == StatusFail {
			status = c.fail.Render("❌ fail")
		}
		line := fmt.Sprintf("%s %s", c.name.Render(e.Message), status)
		if detail := e.Str(KeyDetail); detail != "" {
			line += " " + c.dim.Render(truncate(detail, 120))
		}
		fmt.Fprintln(c.out, line)
	case AgentMessage:
		fmt.Fprintf(c.out, "🤖 %s\n", c.dim.Render(e.Message))
	case Error:
		fmt.Fprintf(c.out, "%s %s\n", c.fail.Render("error:"), e.Message)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
