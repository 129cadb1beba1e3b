package prereq

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pihole-wizard/pihole-wizard/internal/runner"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fn    func(argv []string) (*runner.Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, cmd runner.Command, sink runner.Sink) (*runner.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, strings.Join(cmd.Argv, " "))
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(cmd.Argv)
	}
	return &runner.Result{}, nil
}

func checkByName(t *testing.T, rep *Report, name string) Check {
	t.Helper()
	for _, ch := range rep.Checks {
		if ch.Name == name {
			return ch
		}
	}
	t.Fatalf("check %q missing from report", name)
	return Check{}
}

func TestReportAllHealthy(t *testing.T) {
	fake := &fakeRunner{fn: func(argv []string) (*runner.Result, error) {
		if argv[0] == "docker" && argv[1] == "--version" {
			return &runner.Result{Stdout: "Docker version 27.0.1\n"}, nil
		}
		return &runner.Result{}, nil
	}}
	c := New(fake)
	c.ProbePort = func(int) bool { return false }

	rep := c.Report(context.Background())
	if !rep.Ready {
		t.Fatalf("ready = false, checks = %+v", rep.Checks)
	}
	if ch := checkByName(t, rep, "docker"); !strings.Contains(ch.Detail, "27.0.1") {
		t.Errorf("docker detail = %q", ch.Detail)
	}
	checkByName(t, rep, "compose")
	checkByName(t, rep, "port-53")
	checkByName(t, rep, "port-80")
}

func TestReportDockerDaemonDown(t *testing.T) {
	fake := &fakeRunner{fn: func(argv []string) (*runner.Result, error) {
		key := strings.Join(argv, " ")
		if key == "docker --version" {
			return &runner.Result{Stdout: "Docker version 27.0.1\n"}, nil
		}
		if key == "docker info" {
			return &runner.Result{ExitCode: 1, Stderr: "Cannot connect to the Docker daemon\n"}, nil
		}
		return &runner.Result{}, nil
	}}
	c := New(fake)
	c.ProbePort = func(int) bool { return false }

	rep := c.Report(context.Background())
	if rep.Ready {
		t.Fatal("ready = true with the daemon down")
	}
	ch := checkByName(t, rep, "docker")
	if ch.OK || !strings.Contains(ch.Detail, "daemon not running") {
		t.Errorf("docker check = %+v", ch)
	}
}

func TestReportComposeFallback(t *testing.T) {
	fake := &fakeRunner{fn: func(argv []string) (*runner.Result, error) {
		key := strings.Join(argv, " ")
		if key == "docker compose version" {
			return &runner.Result{ExitCode: 1}, nil
		}
		if key == "docker-compose --version" {
			return &runner.Result{Stdout: "docker-compose version 1.29.2\n"}, nil
		}
		return &runner.Result{}, nil
	}}
	c := New(fake)
	c.ProbePort = func(int) bool { return false }

	ch := checkByName(t, c.Report(context.Background()), "compose")
	if !ch.OK || !strings.Contains(ch.Detail, "1.29.2") {
		t.Errorf("compose check = %+v", ch)
	}
}

func TestReportPortInUseNamesProcess(t *testing.T) {
	fake := &fakeRunner{fn: func(argv []string) (*runner.Result, error) {
		if argv[0] == "lsof" {
			return &runner.Result{Stdout: "COMMAND PID USER\nsystemd-r 412 root\n"}, nil
		}
		return &runner.Result{}, nil
	}}
	c := New(fake)
	c.ProbePort = func(port int) bool { return port == 53 }

	rep := c.Report(context.Background())
	if rep.Ready {
		t.Fatal("ready = true with port 53 occupied")
	}
	ch := checkByName(t, rep, "port-53")
	if ch.OK {
		t.Error("port-53 ok = true")
	}
	if !strings.Contains(ch.Detail, "systemd-r") {
		t.Errorf("detail = %q", ch.Detail)
	}
	if ch80 := checkByName(t, rep, "port-80"); !ch80.OK {
		t.Error("port-80 should be free")
	}
}

func TestCheckPortDetailWithoutLsof(t *testing.T) {
	fake := &fakeRunner{fn: func(argv []string) (*runner.Result, error) {
		if argv[0] == "lsof" {
			return nil, fmt.Errorf("lsof: start: not found")
		}
		return &runner.Result{}, nil
	}}
	c := New(fake)
	c.ProbePort = func(int) bool { return true }
	ch := c.checkPort(context.Background(), 80)
	if ch.OK {
		t.Error("ok = true for an occupied port")
	}
	if ch.Detail != "port 80 is in use" {
		t.Errorf("detail = %q", ch.Detail)
	}
}
