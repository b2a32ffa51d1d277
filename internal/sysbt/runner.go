package sysbt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime/pprof"
	"strings"
)

// Runner executes an OS utility and returns its stdout. A non-zero exit
// status is reported as an error carrying the utility's stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// execRunner runs real processes.
type execRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() Runner {
	return &execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s timed out: %w", name, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			return "", fmt.Errorf("%s failed: %s", name, msg)
		}
		return "", fmt.Errorf("failed to run %s: %w", name, err)
	}

	return stdout.String(), nil
}

// Pool bounds how many OS-utility invocations run at once so that blocking
// exec calls cannot starve the rest of the process. Callers still block until
// their own invocation completes.
type Pool struct {
	next Runner
	sem  chan struct{}
}

// NewPool wraps next with a concurrency bound of workers (minimum 1).
func NewPool(next Runner, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		next: next,
		sem:  make(chan struct{}, workers),
	}
}

// Run acquires a worker slot, then dispatches to the wrapped Runner. The
// invocation is pprof-labeled so stuck utility calls show up by name in
// goroutine profiles.
func (p *Pool) Run(ctx context.Context, name string, args ...string) (string, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-p.sem }()

	var out string
	var err error
	pprof.Do(ctx, pprof.Labels("sysbt_exec", name), func(ctx context.Context) {
		out, err = p.next.Run(ctx, name, args...)
	})
	return out, err
}
