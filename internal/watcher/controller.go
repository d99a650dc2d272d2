package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tickwatch/internal/gateway/notifier"
	"tickwatch/internal/logger"
	"tickwatch/internal/prober"
	"tickwatch/internal/store/checklog"
)

// ErrInvalidInterval rejects Start calls with a non-positive interval.
var ErrInvalidInterval = errors.New("interval must be a positive number of seconds")

// Prober checks the target once.
type Prober interface {
	Probe(ctx context.Context) (prober.Result, error)
}

// Notifier receives check outcomes.
type Notifier interface {
	NotifyAvailable(ev notifier.Event) error
	NotifyCheckFailed(ev notifier.FailureEvent) error
	ReportSoldOut(ev notifier.Event) error
}

// Recorder persists check history. Optional.
type Recorder interface {
	Record(ctx context.Context, rec checklog.CheckRecord) (checklog.CheckRecord, error)
}

// Outcome is the observable result of the most recent check.
type Outcome struct {
	CheckedAt  time.Time
	Trigger    string
	Available  bool
	StatusCode int
	Err        string
}

// Status is a snapshot of the controller state.
type Status struct {
	Running  bool
	Interval time.Duration
	Silent   bool
	Notified bool
	Last     *Outcome
}

// Controller owns the polling loop. It is the only writer of the running
// state, the effective interval and the notified flag; command transports go
// through its methods and never touch that state directly.
type Controller struct {
	prober   Prober
	notify   Notifier
	recorder Recorder
	target   string

	mu       sync.Mutex
	state    state
	interval time.Duration
	notified bool
	silent   bool
	cancel   context.CancelFunc
	last     *Outcome

	// cycleMu serializes probe-and-notify cycles: a scheduled tick that finds
	// it held is skipped, a manual check waits.
	cycleMu sync.Mutex
}

type state int

const (
	stateStopped state = iota
	stateRunning
)

// Config carries the controller's construction parameters.
type Config struct {
	DefaultInterval time.Duration
	Target          string
}

func NewController(cfg Config, p Prober, n Notifier, rec Recorder) (*Controller, error) {
	if p == nil {
		return nil, fmt.Errorf("watcher requires a prober")
	}
	if n == nil {
		return nil, fmt.Errorf("watcher requires a notifier")
	}
	if cfg.DefaultInterval <= 0 {
		return nil, fmt.Errorf("watcher default interval must be > 0: %w", ErrInvalidInterval)
	}
	return &Controller{
		prober:   p,
		notify:   n,
		recorder: rec,
		target:   cfg.Target,
		interval: cfg.DefaultInterval,
	}, nil
}

// Start begins (or restarts) the polling loop. A zero interval keeps the
// currently effective one; a negative interval is a configuration error and
// leaves the controller state untouched. The first tick runs immediately.
// After Start returns exactly one timer loop is associated with the
// controller.
func (c *Controller) Start(interval time.Duration) (time.Duration, error) {
	if interval < 0 {
		return 0, ErrInvalidInterval
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if interval > 0 {
		c.interval = interval
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = stateRunning
	effective := c.interval
	go c.runLoop(ctx, effective)
	logger.Infof("watcher started: target=%s interval=%s", c.target, effective)
	return effective, nil
}

// Stop halts the polling loop. It reports false when the controller was not
// running; that is informational, not an error. An in-flight cycle has its
// probe cancelled and is abandoned without alerting or recording; it cannot
// re-arm the timer.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateRunning {
		return false
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = stateStopped
	logger.Infof("watcher stopped")
	return true
}

// CheckOnce runs a single probe-and-maybe-notify cycle immediately,
// regardless of the running state and without touching the periodic timer.
// It waits for any in-flight cycle before starting its own and returns the
// availability result for display.
func (c *Controller) CheckOnce(ctx context.Context) (bool, error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()
	out := c.runCycle(ctx, checklog.TriggerManual)
	if out.Err != "" {
		return false, fmt.Errorf("%s", out.Err)
	}
	return out.Available, nil
}

// ToggleSilent flips silent mode and returns the new value. While silent,
// routine "still sold out" reports are suppressed; availability hits and
// check failures always notify.
func (c *Controller) ToggleSilent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.silent = !c.silent
	return c.silent
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Running:  c.state == stateRunning,
		Interval: c.interval,
		Silent:   c.silent,
		Notified: c.notified,
	}
	if c.last != nil {
		outCopy := *c.last
		st.Last = &outCopy
	}
	return st
}

// Interval returns the effective polling interval.
func (c *Controller) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

func (c *Controller) runLoop(ctx context.Context, interval time.Duration) {
	c.scheduledTick(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.scheduledTick(ctx)
		}
	}
}

// scheduledTick runs one timer-driven cycle. If another cycle is still in
// flight the tick is skipped, not queued, so slow probes never stack.
func (c *Controller) scheduledTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !c.cycleMu.TryLock() {
		logger.Warnf("tick skipped: previous check still in flight")
		return
	}
	defer c.cycleMu.Unlock()
	c.runCycle(ctx, checklog.TriggerScheduled)
}

// runCycle is the tick handler: probe, apply the notify-once-per-streak rule,
// record the outcome. Callers must hold cycleMu.
func (c *Controller) runCycle(ctx context.Context, trigger string) Outcome {
	res, err := c.prober.Probe(ctx)
	now := time.Now()
	out := Outcome{CheckedAt: now, Trigger: trigger}

	if err != nil {
		// A cycle aborted by Stop or a restart is not a check failure: no
		// alert, no history row.
		if ctx.Err() != nil {
			logger.Debugf("check aborted: %v", ctx.Err())
			out.Err = err.Error()
			return out
		}
		// A failed probe is not evidence the streak ended: the notified flag
		// stays as it is and the loop continues on the next tick.
		var perr *prober.Error
		if errors.As(err, &perr) {
			out.StatusCode = perr.StatusCode
		}
		out.Err = err.Error()
		logger.Errorf("check failed: %v", err)
		if nerr := c.notify.NotifyCheckFailed(notifier.FailureEvent{
			Target:    c.target,
			Details:   err.Error(),
			CheckedAt: now,
		}); nerr != nil {
			logger.Warnf("failure notification incomplete: %v", nerr)
		}
		c.finishCycle(out, false)
		return out
	}

	out.Available = res.Available
	out.StatusCode = res.StatusCode
	ev := notifier.Event{Target: c.target, StatusCode: res.StatusCode, CheckedAt: now}

	c.mu.Lock()
	alreadyNotified := c.notified
	silent := c.silent
	c.notified = res.Available
	c.mu.Unlock()

	notifiedThisTick := false
	switch {
	case res.Available && !alreadyNotified:
		logger.Infof("tickets available (status=%d), notifying", res.StatusCode)
		notifiedThisTick = true
		// Best effort, at most one attempt per streak: a failed send is not
		// retried until availability drops and comes back.
		if nerr := c.notify.NotifyAvailable(ev); nerr != nil {
			logger.Warnf("availability notification incomplete: %v", nerr)
		}
	case res.Available:
		logger.Debugf("tickets still available, already notified this streak")
	default:
		logger.Infof("tickets still sold out (status=%d)", res.StatusCode)
		if !silent {
			if nerr := c.notify.ReportSoldOut(ev); nerr != nil {
				logger.Warnf("sold-out report incomplete: %v", nerr)
			}
		}
	}
	c.finishCycle(out, notifiedThisTick)
	return out
}

func (c *Controller) finishCycle(out Outcome, notified bool) {
	c.mu.Lock()
	outCopy := out
	c.last = &outCopy
	c.mu.Unlock()

	if c.recorder == nil {
		return
	}
	rec := checklog.CheckRecord{
		CheckedAt:  out.CheckedAt,
		Trigger:    out.Trigger,
		Available:  out.Available,
		Notified:   notified,
		StatusCode: out.StatusCode,
		Err:        out.Err,
	}
	// Recording uses its own context: a Stop that lands mid-cycle must not
	// lose the row for the cycle that just completed.
	if _, err := c.recorder.Record(context.Background(), rec); err != nil {
		logger.Warnf("recording check outcome failed: %v", err)
	}
}
