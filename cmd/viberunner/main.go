// Command viberunner drives a remote coding agent through verification cycles
// and multi-iteration campaigns.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"viberunner/pkg/logx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	logx.Close()
	os.Exit(code)
}

// execute runs the CLI and maps the outcome to a process exit code.
func execute(ctx context.Context, args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		var failed *failedError
		if !errors.As(err, &failed) {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		}
		return 1
	}
	return 0
}

// failedError marks a run that completed but did not succeed. The outcome has
// already been reported, so execute only sets the exit code.
type failedError struct {
	msg string
}

func (e *failedError) Error() string { return e.msg }
