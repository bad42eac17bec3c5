// Package invoker runs external tools with a watchdog. Every invocation is
// bounded: when the budget expires the process is killed and the call fails
// with ERR_303. There are no retries.
package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
)

// DefaultWaitDelay is how long Wait keeps draining output after the process
// was killed, for grandchildren holding the pipes open.
const DefaultWaitDelay = 2 * time.Second

// Invoker runs one external command to completion.
type Invoker interface {
	// Invoke runs name with args under timeout and returns its buffered
	// stdout and stderr. A non-zero exit, launch failure or watchdog kill is
	// a ToolInvocationError. Cancellation of ctx returns ctx.Err().
	Invoke(ctx context.Context, name string, args []string, timeout time.Duration) (stdout, stderr []byte, err error)
}

// Exec is the os/exec backed Invoker.
type Exec struct {
	// WaitDelay overrides DefaultWaitDelay when positive.
	WaitDelay time.Duration

	// commandContext is injectable for tests.
	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// New creates an Exec invoker.
func New() *Exec {
	return &Exec{commandContext: exec.CommandContext}
}

// Invoke implements Invoker.
func (e *Exec) Invoke(ctx context.Context, name string, args []string, timeout time.Duration) ([]byte, []byte, error) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	commandContext := e.commandContext
	if commandContext == nil {
		commandContext = exec.CommandContext
	}
	cmd := commandContext(runCtx, name, args...)
	// Stdin stays nil: the child reads from the null device.
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = DefaultWaitDelay
	if e.WaitDelay > 0 {
		cmd.WaitDelay = e.WaitDelay
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, dexerrors.ToolInvocationError(dexerrors.ErrCodeToolLaunch,
			fmt.Sprintf("cannot start %s: %v", name, err), err).
			WithDetail("command", name).
			WithSuggestion(fmt.Sprintf("Install %s (poppler-utils) or set its path in the config", name))
	}

	waitErr := cmd.Wait()
	if waitErr == nil {
		return stdout.Bytes(), stderr.Bytes(), nil
	}

	if ctx.Err() != nil {
		return stdout.Bytes(), stderr.Bytes(), ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return stdout.Bytes(), stderr.Bytes(), dexerrors.ToolInvocationError(dexerrors.ErrCodeToolTimeout,
			fmt.Sprintf("timed out after %s: %s", timeout, commandLine(name, args)), waitErr).
			WithDetail("command", name).
			WithDetail("timeout", timeout.String())
	}

	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		msg = "command failed: " + commandLine(name, args)
	}
	de := dexerrors.ToolInvocationError(dexerrors.ErrCodeToolExit, msg, waitErr).WithDetail("command", name)
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		de.WithDetail("exit_code", fmt.Sprint(exitErr.ExitCode()))
	}
	return stdout.Bytes(), stderr.Bytes(), de
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
