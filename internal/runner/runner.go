// Package runner executes external commands with bounded wall-clock time,
// captured output, and per-line streaming. Commands use explicit argv — no
// shell strings.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Command describes one external invocation.
type Command struct {
	Argv    []string
	Dir     string
	Env     []string // appended to the parent environment when set
	Timeout time.Duration
}

// Result is the structured outcome. A non-zero exit code is data, not an
// error: callers decide what constitutes failure.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Output returns combined stdout+stderr, for error messages.
func (r *Result) Output() string {
	return strings.TrimSpace(r.Stdout + r.Stderr)
}

// Sink receives each output line as it is produced. May be nil.
type Sink func(line string)

// Runner executes commands. The interface exists so the engine can be tested
// with a fake.
type Runner interface {
	Run(ctx context.Context, cmd Command, sink Sink) (*Result, error)
}

// Exec is the real Runner backed by os/exec.
type Exec struct{}

// Run starts the command in its own process group, streams stdout and stderr
// line by line to sink, and enforces cmd.Timeout by killing the whole group.
// An error is returned only when the command could not be started.
func (Exec) Run(ctx context.Context, cmd Command, sink Sink) (*Result, error) {
	if len(cmd.Argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.Command(cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}
	// Own process group so a timeout kill reaches children (docker compose
	// spawns its own subprocesses).
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: stdout pipe: %w", cmd.Argv[0], err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: stderr pipe: %w", cmd.Argv[0], err)
	}

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("%s: start: %w", cmd.Argv[0], err)
	}

	var outBuf, errBuf strings.Builder
	var mu sync.Mutex // serializes sink calls across the two pipes
	var wg sync.WaitGroup

	scan := func(r *bufio.Scanner, buf *strings.Builder) {
		defer wg.Done()
		r.Buffer(make([]byte, 64*1024), 1024*1024)
		for r.Scan() {
			line := r.Text()
			mu.Lock()
			buf.WriteString(line)
			buf.WriteByte('\n')
			if sink != nil {
				sink(line)
			}
			mu.Unlock()
		}
	}

	wg.Add(2)
	go scan(bufio.NewScanner(stdout), &outBuf)
	go scan(bufio.NewScanner(stderr), &errBuf)

	// Killer: on context expiry, take down the process group. Wait closes the
	// pipes, which unblocks the scanners.
	killed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
		case <-killed:
		}
	}()

	wg.Wait()
	waitErr := c.Wait()
	close(killed)

	result := &Result{
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
		TimedOut: ctx.Err() == context.DeadlineExceeded,
	}

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			// Negative when the process died from a signal (e.g. our kill).
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("%s: %w", cmd.Argv[0], waitErr)
		}
	}

	return result, nil
}
