// Package engine orchestrates the install and update pipelines: ordered
// external-command steps with progress, retries, cancellation, persistence,
// and live fan-out to websocket subscribers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/pihole-wizard/pihole-wizard/internal/config"
	"github.com/pihole-wizard/pihole-wizard/internal/runner"
)

// ErrRunActive is returned when a start is attempted while a run of the same
// kind is already in flight.
var ErrRunActive = errors.New("a run is already in progress")

// PortInUseError reports a required port held by a foreign process before any
// install step ran.
type PortInUseError struct {
	Port    int
	Process string
}

func (e *PortInUseError) Error() string {
	if e.Process != "" {
		return fmt.Sprintf("port %d is already in use by %s", e.Port, e.Process)
	}
	return fmt.Sprintf("port %d is already in use", e.Port)
}

// slot is one singleton pipeline: at most one run of its kind at a time.
type slot struct {
	kind   string
	broker *Broker

	mu      sync.Mutex
	active  bool
	current Run
	cancel  context.CancelFunc
}

func newSlot(kind string) *slot {
	return &slot{
		kind:    kind,
		broker:  NewBroker(),
		current: Run{Kind: kind, Status: StatusIdle},
	}
}

// tryStart is the single-run gate: check-and-set under one lock.
func (s *slot) tryStart(r Run, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return ErrRunActive
	}
	s.active = true
	s.current = r
	s.cancel = cancel
	return nil
}

func (s *slot) snapshot() Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// mutate applies fn to the current run under the slot lock and returns the
// updated snapshot.
func (s *slot) mutate(fn func(*Run)) Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.current)
	s.current.UpdatedAt = time.Now()
	return s.current
}

func (s *slot) finish() {
	s.mu.Lock()
	s.active = false
	s.cancel = nil
	s.mu.Unlock()
}

// Engine owns the install and update slots plus their shared machinery. The
// runner and port probe are injectable for tests.
type Engine struct {
	cfg   *config.Config
	store *Store
	run   runner.Runner

	// probePort reports whether something is listening on the local port.
	probePort func(port int) bool

	// settleOverride, when positive, replaces the post-start settle waits.
	// Tests set it to keep verification fast.
	settleOverride time.Duration

	install *slot
	update  *slot
}

// New opens the run database under dataDir and recovers any runs orphaned by
// a previous process.
func New(cfg *config.Config, r runner.Runner) (*Engine, error) {
	store, err := NewStore(filepath.Join(cfg.Paths.DataDir, "runs.db"))
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:       cfg,
		store:     store,
		run:       r,
		probePort: defaultProbePort,
		install:   newSlot(KindInstall),
		update:    newSlot(KindUpdate),
	}
	if _, err := store.RecoverOrphans(); err != nil {
		store.Close()
		return nil, fmt.Errorf("recovering orphaned runs: %w", err)
	}
	e.loadLatest(e.install)
	e.loadLatest(e.update)
	return e, nil
}

// loadLatest seeds a slot's snapshot from the last persisted run so status
// survives restarts.
func (e *Engine) loadLatest(s *slot) {
	if r, err := e.store.LatestRun(s.kind); err == nil && r != nil {
		s.mu.Lock()
		s.current = *r
		s.mu.Unlock()
	}
}

func (e *Engine) Close() error {
	return e.store.Close()
}

// SetProbePort overrides the local port probe, for tests and hosts where
// dialing localhost is not representative.
func (e *Engine) SetProbePort(fn func(port int) bool) {
	e.probePort = fn
}

// SetSettleOverride replaces the post-start settle waits.
func (e *Engine) SetSettleOverride(d time.Duration) {
	e.settleOverride = d
}

func defaultProbePort(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (e *Engine) slotFor(kind string) (*slot, error) {
	switch kind {
	case KindInstall:
		return e.install, nil
	case KindUpdate:
		return e.update, nil
	default:
		return nil, fmt.Errorf("unknown run kind %q", kind)
	}
}

// Status returns a torn-read-free snapshot of the current or most recent run
// of the given kind.
func (e *Engine) Status(kind string) (Run, error) {
	s, err := e.slotFor(kind)
	if err != nil {
		return Run{}, err
	}
	return s.snapshot(), nil
}

// Subscribe returns a live event subscription for the given kind. Callers
// should send the Status snapshot first, then relay events.
func (e *Engine) Subscribe(kind string) (*Subscription, error) {
	s, err := e.slotFor(kind)
	if err != nil {
		return nil, err
	}
	return s.broker.Subscribe(), nil
}

// Cancel requests cooperative cancellation of the active run of the given
// kind. No-op when nothing is running.
func (e *Engine) Cancel(kind string) error {
	s, err := e.slotFor(kind)
	if err != nil {
		return err
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// LogsSince returns persisted log lines for a run, for pollers and late
// websocket joiners.
func (e *Engine) LogsSince(runID string, afterID, limit int) ([]LogLine, error) {
	return e.store.LogsSince(runID, afterID, limit)
}

func (e *Engine) commandTimeout() time.Duration {
	return time.Duration(e.cfg.Install.CommandTimeoutMinutes) * time.Minute
}

func (e *Engine) retryDelay() time.Duration {
	return time.Duration(e.cfg.Install.RetryDelaySeconds) * time.Second
}

// start is the shared launch path: gate the slot, persist the new run, spawn
// the pipeline goroutine.
func (e *Engine) start(s *slot, body func(p *pipeline)) (Run, error) {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	r := Run{
		ID:        generateID(),
		Kind:      s.kind,
		Status:    StatusRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := s.tryStart(r, cancel); err != nil {
		cancel()
		return Run{}, err
	}
	if err := e.store.SaveRun(r); err != nil {
		s.finish()
		cancel()
		return Run{}, fmt.Errorf("persisting run: %w", err)
	}

	p := &pipeline{eng: e, slot: s, ctx: ctx, runID: r.ID}
	go func() {
		defer cancel()
		defer s.finish()
		body(p)
	}()
	return r, nil
}

// pipeline carries the context one run's steps execute under.
type pipeline struct {
	eng   *Engine
	slot  *slot
	ctx   context.Context
	runID string
}

// logf records a line in the run log and publishes it to subscribers.
// Outside a run (runID empty, e.g. the update check) output is discarded.
func (p *pipeline) logf(format string, args ...any) {
	if p.runID == "" {
		return
	}
	line := fmt.Sprintf(format, args...)
	p.eng.store.AppendLog(p.runID, line)
	r := p.slot.snapshot()
	p.slot.broker.Publish(Event{Type: "log", Message: line, Progress: r.Progress, Status: r.Status})
}

// setStep announces the step about to run. Progress does not move until the
// step succeeds.
func (p *pipeline) setStep(label string) {
	r := p.slot.mutate(func(r *Run) { r.CurrentStep = label })
	p.eng.store.SaveRun(r)
	p.eng.store.AppendLog(p.runID, label)
	p.slot.broker.Publish(Event{Type: "step", Step: label, Message: label, Progress: r.Progress, Status: r.Status})
}

// setProgress advances progress, never backwards.
func (p *pipeline) setProgress(pct int) {
	r := p.slot.mutate(func(r *Run) {
		if pct > r.Progress {
			r.Progress = pct
		}
	})
	p.eng.store.SaveRun(r)
	p.slot.broker.Publish(Event{Type: "step", Step: r.CurrentStep, Progress: r.Progress, Status: r.Status})
}

func (p *pipeline) succeed(message string) {
	now := time.Now()
	r := p.slot.mutate(func(r *Run) {
		r.Status = StatusSuccess
		r.Progress = 100
		r.CurrentStep = message
		r.CompletedAt = &now
	})
	p.eng.store.SaveRun(r)
	p.eng.store.AppendLog(p.runID, message)
	p.slot.broker.Publish(Event{Type: "complete", Message: message, Progress: 100, Status: StatusSuccess})
}

func (p *pipeline) fail(reason, message string) {
	now := time.Now()
	r := p.slot.mutate(func(r *Run) {
		r.Status = StatusFailed
		r.Reason = reason
		r.Error = message
		r.CompletedAt = &now
	})
	p.eng.store.SaveRun(r)
	p.eng.store.AppendLog(p.runID, message)
	p.slot.broker.Publish(Event{Type: "error", Message: message, Progress: r.Progress, Status: StatusFailed})
}

// cancelled reports whether the run was cancelled by the user.
func (p *pipeline) cancelled() bool {
	return p.ctx.Err() == context.Canceled
}

// settle waits for containers to come up before inspecting them, honoring
// cancellation.
func (p *pipeline) settle(d time.Duration) error {
	if p.eng.settleOverride > 0 {
		d = p.eng.settleOverride
	}
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// command runs argv with the configured timeout, streaming output into the
// run log and to subscribers.
func (p *pipeline) command(argv []string, dir string) (*runner.Result, error) {
	return p.eng.run.Run(p.ctx, runner.Command{
		Argv:    argv,
		Dir:     dir,
		Timeout: p.eng.commandTimeout(),
	}, func(line string) { p.logf("%s", line) })
}

// step is one pipeline stage. target is the cumulative progress reached when
// the stage succeeds.
type step struct {
	label  string
	target int
	fn     func(p *pipeline) error
}

// runSteps executes the stages in order with bounded retries and fixed
// backoff. The first exhausted stage fails the whole run.
func (p *pipeline) runSteps(steps []step, finalMessage string) {
	attempts := p.eng.cfg.Install.StepRetries + 1
	delay := p.eng.retryDelay()

	for _, st := range steps {
		if p.cancelled() {
			p.fail(ReasonCancelled, "cancelled by user")
			return
		}
		p.setStep(st.label)

		var lastErr error
		for attempt := 1; attempt <= attempts; attempt++ {
			if p.cancelled() {
				p.fail(ReasonCancelled, "cancelled by user")
				return
			}
			lastErr = st.fn(p)
			if lastErr == nil {
				break
			}
			if p.cancelled() {
				p.fail(ReasonCancelled, "cancelled by user")
				return
			}
			if attempt < attempts {
				p.logf("step failed (%v), retrying in %s (attempt %d/%d)", lastErr, delay, attempt+1, attempts)
				select {
				case <-p.ctx.Done():
				case <-time.After(delay):
				}
			}
		}
		if lastErr != nil {
			p.fail(ReasonStepFailed, fmt.Sprintf("%s: %v", st.label, lastErr))
			return
		}
		p.setProgress(st.target)
	}
	p.succeed(finalMessage)
}
