package runner

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	var lines []string
	res, err := Exec{}.Run(context.Background(), Command{
		Argv: []string{"sh", "-c", "echo one; echo two >&2; echo three; exit 3"},
	}, func(line string) { lines = append(lines, line) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if res.TimedOut {
		t.Error("timed_out = true for a fast command")
	}
	if !strings.Contains(res.Stdout, "one") || !strings.Contains(res.Stdout, "three") {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if !strings.Contains(res.Stderr, "two") {
		t.Errorf("stderr = %q", res.Stderr)
	}
	if len(lines) != 3 {
		t.Errorf("sink saw %d lines, want 3: %v", len(lines), lines)
	}
}

func TestRunPreservesStdoutOrder(t *testing.T) {
	var lines []string
	_, err := Exec{}.Run(context.Background(), Command{
		Argv: []string{"sh", "-c", "for i in 1 2 3 4 5; do echo line-$i; done"},
	}, func(line string) { lines = append(lines, line) })
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"line-1", "line-2", "line-3", "line-4", "line-5"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	start := time.Now()
	res, err := Exec{}.Run(context.Background(), Command{
		Argv:    []string{"sh", "-c", "sleep 30"},
		Timeout: 200 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !res.TimedOut {
		t.Error("timed_out = false, want true")
	}
	if res.ExitCode >= 0 {
		t.Errorf("exit code = %d, want signal-derived negative value", res.ExitCode)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("command ran %v past its 200ms timeout", elapsed)
	}
}

func TestRunNilSink(t *testing.T) {
	res, err := Exec{}.Run(context.Background(), Command{Argv: []string{"true"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d", res.ExitCode)
	}
}

func TestRunEmptyCommand(t *testing.T) {
	if _, err := (Exec{}).Run(context.Background(), Command{}, nil); err == nil {
		t.Error("expected error for empty argv")
	}
}

func TestRunMissingBinary(t *testing.T) {
	if _, err := (Exec{}).Run(context.Background(), Command{Argv: []string{"/no/such/binary"}}, nil); err == nil {
		t.Error("expected start error for missing binary")
	}
}

func TestRunWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	res, err := Exec{}.Run(context.Background(), Command{Argv: []string{"pwd"}, Dir: dir}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(res.Stdout) != dir {
		t.Errorf("pwd = %q, want %q", strings.TrimSpace(res.Stdout), dir)
	}
}
