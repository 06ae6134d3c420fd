// Package session drives the remote coding agent CLI: it launches a session on a
// pseudo-terminal and answers its prompts, polls the session until it settles, and
// teleports the produced tree into the working copy.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"viberunner/pkg/events"
	"viberunner/pkg/exec"
	"viberunner/pkg/logx"
	"viberunner/pkg/protocol"
	"viberunner/pkg/retry"
	"viberunner/pkg/utils"
)

// Agent is the session surface the cycle orchestrator depends on. Every method is
// fail-soft: failures are logged and reported as "" or false.
type Agent interface {
	// LaunchSession starts a session for task and returns its id, or "" if none was identified.
	LaunchSession(ctx context.Context, task string) string
	// WaitForCompletion reports whether the session reached the completed state.
	WaitForCompletion(ctx context.Context, sid string) bool
	// TeleportAndSync copies the session's result into targetRoot.
	TeleportAndSync(ctx context.Context, sid, targetRoot string) bool
	// MissionComplete reports whether the last launch observed the completion marker.
	MissionComplete() bool
}

// Config controls the agent CLI invocation and its time bounds.
//
//nolint:govet // Configuration struct, logical grouping preferred
type Config struct {
	Executable string
	Repo       string
	WorkDir    string
	// SpecFile, relative to WorkDir, is prepended to every prompt when it exists.
	SpecFile string

	LaunchTimeout     time.Duration
	ReadTimeout       time.Duration
	PostLaunchGrace   time.Duration
	PollInterval      time.Duration
	PollErrorBackoff  time.Duration
	CompletionTimeout time.Duration
	CommandTimeout    time.Duration

	SyncDirs  []string
	SyncFiles []string
}

// DefaultConfig returns the stock timings and sync layout.
func DefaultConfig() Config {
	return Config{
		Executable:        "jules",
		WorkDir:           ".",
		SpecFile:          "SPEC.md",
		LaunchTimeout:     30 * time.Minute,
		ReadTimeout:       5 * time.Second,
		PostLaunchGrace:   5 * time.Second,
		PollInterval:      20 * time.Second,
		PollErrorBackoff:  10 * time.Second,
		CompletionTimeout: 30 * time.Minute,
		CommandTimeout:    2 * time.Minute,
		SyncDirs:          []string{"src", "tests"},
		SyncFiles:         []string{"requirements.txt", "pyproject.toml"},
	}
}

// Manager implements Agent.
type Manager struct {
	cfg     Config
	exec    exec.Executor
	spawner Spawner
	emitter events.Emitter
	logger  *logx.Logger

	sleep retry.SleepFunc
	now   func() time.Time

	missionComplete atomic.Bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithSleep replaces the sleeper used between polls and for the post-launch grace period.
func WithSleep(sleep retry.SleepFunc) Option {
	return func(m *Manager) { m.sleep = sleep }
}

// WithClock replaces the clock that bounds completion polling.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithEmitter sends agent_message events for prompts answered and markers seen.
func WithEmitter(e events.Emitter) Option {
	return func(m *Manager) { m.emitter = e }
}

// NewManager creates a manager. Zero durations in cfg take their defaults.
func NewManager(cfg Config, executor exec.Executor, spawner Spawner, opts ...Option) *Manager {
	m := &Manager{
		cfg:     withDefaults(cfg),
		exec:    executor,
		spawner: spawner,
		emitter: events.Nop{},
		logger:  logx.NewLogger("session"),
		sleep:   retry.Sleep,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Executable == "" {
		cfg.Executable = def.Executable
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = def.WorkDir
	}
	for _, d := range []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&cfg.LaunchTimeout, def.LaunchTimeout},
		{&cfg.ReadTimeout, def.ReadTimeout},
		{&cfg.PollInterval, def.PollInterval},
		{&cfg.PollErrorBackoff, def.PollErrorBackoff},
		{&cfg.CompletionTimeout, def.CompletionTimeout},
		{&cfg.CommandTimeout, def.CommandTimeout},
	} {
		if *d.v <= 0 {
			*d.v = d.def
		}
	}
	if cfg.PostLaunchGrace < 0 {
		cfg.PostLaunchGrace = 0
	}
	return cfg
}

// MissionComplete implements Agent.
func (m *Manager) MissionComplete() bool {
	return m.missionComplete.Load()
}

type chunk struct {
	text string
	err  error
}

// LaunchSession implements Agent. The prompt is written once; every question the
// agent asks afterwards is answered with protocol.AutonomousReply. The session id comes
// from the output, or from a new row in the session listing when output goes quiet.
func (m *Manager) LaunchSession(ctx context.Context, task string) string {
	m.missionComplete.Store(false)
	before := m.listSessions(ctx)

	ctx, cancel := context.WithTimeout(ctx, m.cfg.LaunchTimeout)
	defer cancel()

	m.logger.Info("🚀 Launching agent session for repo %s", m.cfg.Repo)
	t, err := m.spawner.Spawn(ctx, m.cfg.Executable, []string{"new", "--repo", m.cfg.Repo}, m.cfg.WorkDir)
	if err != nil {
		m.logger.Error("❌ Failed to launch agent: %v", err)
		return ""
	}
	defer func() {
		if err := t.Terminate(); err != nil {
			m.logger.Warn("⚠️ Agent process did not exit cleanly: %v", err)
		}
	}()

	if _, err := io.WriteString(t, m.buildPrompt(task)+"\n"); err != nil {
		m.logger.Error("❌ Failed to send task prompt: %v", err)
		return ""
	}

	done := make(chan struct{})
	defer close(done)
	chunks := make(chan chunk)
	go readChunks(t, chunks, done)

	proto := protocol.New()
	sid := ""
	for sid == "" {
		select {
		case <-ctx.Done():
			m.logger.Error("❌ Session launch timed out after %s", m.cfg.LaunchTimeout)
			return ""

		case c := <-chunks:
			if c.err != nil {
				if !errors.Is(c.err, io.EOF) {
					m.logger.Warn("⚠️ Agent output read failed: %v", c.err)
				}
				m.logger.Info("Agent process finished")
				sid = m.newSession(ctx, before)
				if sid == "" {
					m.logger.Error("❌ Failed to detect new session ID")
					return ""
				}
				continue
			}
			sid = m.handle(t, proto.Feed(c.text))

		case <-time.After(m.cfg.ReadTimeout):
			sid = m.newSession(ctx, before)
		}
	}

	m.logger.Info("✨ Captured SID: %s", sid)
	if m.cfg.PostLaunchGrace > 0 {
		_ = m.sleep(ctx, m.cfg.PostLaunchGrace)
	}
	return sid
}

// handle applies protocol actions and returns the session id if one was identified.
func (m *Manager) handle(w io.Writer, actions []protocol.Action) string {
	sid := ""
	for _, action := range actions {
		switch action.Kind {
		case protocol.ActionReply:
			m.logger.Info("🤖 Auto-replying to agent query")
			m.emitter.Emit(events.New(events.AgentMessage, "Auto-replied to agent query", map[string]any{
				events.KeyPhase: events.PhaseAgent,
			}))
			if _, err := io.WriteString(w, action.Text); err != nil {
				m.logger.Warn("⚠️ Failed to send reply: %v", err)
			}
		case protocol.ActionCompleted:
			m.missionComplete.Store(true)
			m.logger.Info("✅ Mission complete signal detected")
			m.emitter.Emit(events.New(events.AgentMessage, "Mission complete signal detected", map[string]any{
				events.KeyPhase: events.PhaseAgent,
			}))
		case protocol.ActionSessionIdentified:
			if sid == "" {
				sid = action.SessionID
			}
		}
	}
	return sid
}

func readChunks(r io.Reader, out chan<- chunk, done <-chan struct{}) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case out <- chunk{text: string(buf[:n])}:
			case <-done:
				return
			}
		}
		if err != nil {
			select {
			case out <- chunk{err: err}:
			case <-done:
			}
			return
		}
	}
}

func (m *Manager) buildPrompt(task string) string {
	if m.cfg.SpecFile == "" {
		return task
	}
	path := m.cfg.SpecFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.cfg.WorkDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return task
	}
	return fmt.Sprintf("Context from %s:\n%s\n\n%s", filepath.Base(path), string(data), task)
}

func (m *Manager) listing(ctx context.Context) (string, error) {
	opts := exec.Opts{WorkDir: m.cfg.WorkDir, Timeout: m.cfg.CommandTimeout, Check: true}
	result, err := m.exec.Run(ctx, []string{m.cfg.Executable, "remote", "list", "--session"}, &opts)
	if err != nil {
		return "", err
	}
	return result.Stdout, nil
}

func (m *Manager) listSessions(ctx context.Context) map[string]bool {
	ids := map[string]bool{}
	out, err := m.listing(ctx)
	if err != nil {
		m.logger.Error("Failed to list sessions: %v", err)
		return ids
	}
	for _, e := range ParseListing(out) {
		ids[e.ID] = true
	}
	return ids
}

// newSession returns the first listed id that was not present before launch.
func (m *Manager) newSession(ctx context.Context, before map[string]bool) string {
	out, err := m.listing(ctx)
	if err != nil {
		m.logger.Debug("Session listing failed: %v", err)
		return ""
	}
	for _, e := range ParseListing(out) {
		if !before[e.ID] {
			return e.ID
		}
	}
	return ""
}

// WaitForCompletion implements Agent.
func (m *Manager) WaitForCompletion(ctx context.Context, sid string) bool {
	m.logger.Info("Monitoring status for SID: %s", sid)
	deadline := m.now().Add(m.cfg.CompletionTimeout)

	for m.now().Before(deadline) {
		out, err := m.listing(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			m.logger.Error("Error monitoring status: %v", err)
			if m.sleep(ctx, m.cfg.PollErrorBackoff) != nil {
				return false
			}
			continue
		}

		line, found := FindSession(out, sid)
		if !found {
			m.logger.Warn("⚠️ SID %s disappeared from list", sid)
			return false
		}

		status := strings.ToLower(line)
		switch {
		case strings.Contains(status, "completed"):
			m.logger.Info("✅ Session %s completed", sid)
			return true
		case strings.Contains(status, "failed"), strings.Contains(status, "error"):
			m.logger.Error("❌ Session failed: %s", strings.TrimSpace(line))
			return false
		}

		m.logger.Debug("Status heartbeat: %s", statusText(line))
		if m.sleep(ctx, m.cfg.PollInterval) != nil {
			return false
		}
	}

	m.logger.Error("❌ Session %s timed out after %s", sid, m.cfg.CompletionTimeout)
	return false
}

// TeleportAndSync implements Agent. The relay directory is always removed before returning.
func (m *Manager) TeleportAndSync(ctx context.Context, sid, targetRoot string) bool {
	m.logger.Info("📥 Running teleport for SID %s", sid)
	if !isDigits(sid) {
		m.logger.Error("❌ Refusing to teleport malformed session id %q", sid)
		return false
	}

	relay := filepath.Join(targetRoot, "jules_relay_"+sid)
	if err := os.MkdirAll(relay, 0755); err != nil {
		m.logger.Error("❌ Failed to create relay directory: %v", err)
		return false
	}
	defer func() {
		if err := os.RemoveAll(relay); err != nil {
			m.logger.Error("❌ Failed to remove relay directory %s: %v", relay, err)
		}
	}()

	opts := exec.Opts{WorkDir: relay, Stdin: "y\n", Timeout: m.cfg.CommandTimeout, Check: true}
	if _, err := m.exec.Run(ctx, []string{m.cfg.Executable, "teleport", sid}, &opts); err != nil {
		m.logger.Error("❌ Teleport command failed: %v", err)
		return false
	}

	source, err := producedTree(relay)
	if err != nil {
		m.logger.Error("❌ Teleport failed: %v", err)
		return false
	}
	m.logger.Info("🎉 Teleport succeeded, syncing from %s", filepath.Base(source))

	if err := m.sync(source, targetRoot); err != nil {
		m.logger.Error("❌ Sync failed: %v", err)
		return false
	}
	return true
}

func producedTree(relay string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(relay, "jules-*"))
	if err != nil {
		return "", err
	}
	sort.Strings(matches)
	for _, match := range matches {
		if info, err := os.Stat(match); err == nil && info.IsDir() {
			return match, nil
		}
	}
	return "", errors.New("no 'jules-*' folder found")
}

func (m *Manager) sync(source, targetRoot string) error {
	for _, dir := range m.cfg.SyncDirs {
		src := filepath.Join(source, dir)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(targetRoot, dir)
		staged := dst + ".new"
		_ = os.RemoveAll(staged)
		if err := utils.StageDir(src, staged); err != nil {
			_ = os.RemoveAll(staged)
			return fmt.Errorf("stage %s: %w", dir, err)
		}
		if err := utils.AtomicReplace(dst, staged); err != nil {
			_ = os.RemoveAll(staged)
			return fmt.Errorf("replace %s: %w", dir, err)
		}
		m.logger.Debug("Synced %s", dir)
	}

	for _, file := range m.cfg.SyncFiles {
		src := filepath.Join(source, file)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := utils.ReplaceFile(src, filepath.Join(targetRoot, file)); err != nil {
			return fmt.Errorf("replace %s: %w", file, err)
		}
	}
	return nil
}
