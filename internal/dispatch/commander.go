package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
)

// Commander runs one invocation to completion and reports its exit code.
// The exec-backed implementation is the only one used outside tests.
type Commander interface {
	Run(ctx context.Context, inv Invocation) (int, error)
}

// ExecCommander runs invocations with os/exec, blocking until the child
// exits. A non-zero exit code is a result, not an error; errors are
// reserved for failing to run the program at all.
type ExecCommander struct{}

// Run starts the child in its own process group so cancellation can take
// the whole Python process tree down, not just the interpreter.
func (ExecCommander) Run(ctx context.Context, inv Invocation) (int, error) {
	cmd := exec.Command(inv.Program, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	cmd.Stdout = inv.Stdout
	cmd.Stderr = inv.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("dispatch: start %s: %w", inv.Program, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return 0, fmt.Errorf("dispatch: %s step cancelled: %w", inv.Step, ctx.Err())
	case err := <-done:
		if err == nil {
			return 0, nil
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("dispatch: run %s: %w", inv.Program, err)
	}
}
