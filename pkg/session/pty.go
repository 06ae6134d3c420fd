package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// Terminal is a running interactive process. Reads return its combined output;
// writes go to its input.
type Terminal interface {
	io.Reader
	io.Writer
	// Terminate kills the process, releases the terminal and reaps the child.
	// It is safe to call more than once.
	Terminate() error
}

// Spawner starts interactive processes.
type Spawner interface {
	Spawn(ctx context.Context, name string, args []string, dir string) (Terminal, error)
}

// PTYSpawner runs commands on a pseudo-terminal so CLIs that only prompt when
// attached to a TTY behave interactively.
type PTYSpawner struct {
	// Env is appended to the inherited environment.
	Env []string
}

// Spawn starts name on a new pty. The slave side is put into raw mode so the child's
// input is not echoed back into the output stream.
func (s PTYSpawner) Spawn(ctx context.Context, name string, args []string, dir string) (Terminal, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open pty: %w", err)
	}

	if _, err := term.MakeRaw(int(tty.Fd())); err != nil {
		_ = ptmx.Close()
		_ = tty.Close()
		return nil, fmt.Errorf("failed to set raw mode: %w", err)
	}

	cmd := osexec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	if err := cmd.Start(); err != nil {
		_ = ptmx.Close()
		_ = tty.Close()
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	// The child holds its own copy; closing ours lets reads see EOF when it exits.
	_ = tty.Close()

	return &ptyTerminal{cmd: cmd, ptmx: ptmx}, nil
}

type ptyTerminal struct {
	cmd  *osexec.Cmd
	ptmx *os.File
	once sync.Once
	err  error
}

func (t *ptyTerminal) Read(p []byte) (int, error) {
	n, err := t.ptmx.Read(p)
	// Linux reports EIO on the master once the slave side is gone.
	if err != nil && errors.Is(err, syscall.EIO) {
		return n, io.EOF
	}
	return n, err
}

func (t *ptyTerminal) Write(p []byte) (int, error) {
	return t.ptmx.Write(p)
}

func (t *ptyTerminal) Terminate() error {
	t.once.Do(func() {
		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
		_ = t.ptmx.Close()
		err := t.cmd.Wait()
		var exitErr *osexec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			t.err = err
		}
	})
	return t.err
}
