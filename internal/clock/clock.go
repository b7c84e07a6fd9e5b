// Package clock provides the time source for every time-stamping entity in
// the engine. A realtime clock reads the wall clock and runs a background
// scheduler; backtest and simulation clocks only move when the caller moves
// them, which keeps backtests deterministic.
package clock

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"
)

// Mode selects how the clock sources time.
type Mode uint8

const (
	// ModeRealtime reads the wall clock and runs the background scheduler.
	ModeRealtime Mode = iota
	// ModeBacktest is caller-driven via SetTime/AdvanceTime.
	ModeBacktest
	// ModeSimulation is caller-driven, reserved for accelerated replays.
	ModeSimulation
)

var ErrUnknownMode = errors.New("clock: unknown mode")

func (m Mode) String() string {
	switch m {
	case ModeRealtime:
		return "REALTIME"
	case ModeBacktest:
		return "BACKTEST"
	case ModeSimulation:
		return "SIMULATION"
	default:
		return "UNKNOWN"
	}
}

// ParseMode reads a mode name as it appears in config files.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "REALTIME", "":
		return ModeRealtime, nil
	case "BACKTEST":
		return ModeBacktest, nil
	case "SIMULATION":
		return ModeSimulation, nil
	default:
		return ModeRealtime, ErrUnknownMode
	}
}

// Callback runs when a scheduled event comes due.
type Callback func()

// schedulerInterval is how often the realtime scheduler polls for due events.
const schedulerInterval = time.Millisecond

type scheduledEvent struct {
	at        time.Time
	interval  time.Duration
	recurring bool
	fn        Callback
}

// Clock is a startable time source with one-shot and recurring schedules.
type Clock struct {
	mode    Mode
	running atomic.Bool

	mu      sync.Mutex
	current time.Time
	events  []*scheduledEvent

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a clock in the given mode. Caller-driven modes start at the
// wall-clock instant of creation until SetTime moves them.
func New(mode Mode) *Clock {
	return &Clock{
		mode:    mode,
		current: time.Now(),
	}
}

// Mode returns the clock's mode.
func (c *Clock) Mode() Mode { return c.mode }

// Running reports whether Start has been called without a matching Stop.
func (c *Clock) Running() bool { return c.running.Load() }

// Start launches the scheduler goroutine in realtime mode. Starting an
// already-running clock is a no-op.
func (c *Clock) Start() {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	if c.mode != ModeRealtime {
		return
	}

	c.done = make(chan struct{})
	c.wg.Add(1)
	go c.schedulerLoop()
}

// Stop halts the scheduler and waits for it to exit. Stopping a stopped
// clock is a no-op.
func (c *Clock) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	if c.done != nil {
		close(c.done)
		c.wg.Wait()
		c.done = nil
	}
}

func (c *Clock) schedulerLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(schedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.fireDue(now)
		}
	}
}

// Now returns the current time for this clock's mode.
func (c *Clock) Now() time.Time {
	if c.mode == ModeRealtime {
		return time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowNano returns the current time as nanoseconds since the epoch.
func (c *Clock) NowNano() int64 { return c.Now().UnixNano() }

// NowMilli returns the current time as milliseconds since the epoch.
func (c *Clock) NowMilli() int64 { return c.Now().UnixMilli() }

// ScheduleOnce registers fn to run once after delay.
func (c *Clock) ScheduleOnce(delay time.Duration, fn Callback) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, &scheduledEvent{
		at: c.unlockedNow().Add(delay),
		fn: fn,
	})
}

// ScheduleRecurring registers fn to run every interval.
func (c *Clock) ScheduleRecurring(interval time.Duration, fn Callback) {
	if fn == nil || interval <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, &scheduledEvent{
		at:        c.unlockedNow().Add(interval),
		interval:  interval,
		recurring: true,
		fn:        fn,
	})
}

func (c *Clock) unlockedNow() time.Time {
	if c.mode == ModeRealtime {
		return time.Now()
	}
	return c.current
}

// SetTime moves a caller-driven clock to t and fires any schedules that
// became due. Ignored in realtime mode.
func (c *Clock) SetTime(t time.Time) {
	if c.mode == ModeRealtime {
		return
	}
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
	c.fireDue(t)
}

// AdvanceTime moves a caller-driven clock forward by d and fires any
// schedules that became due. Ignored in realtime mode.
func (c *Clock) AdvanceTime(d time.Duration) {
	if c.mode == ModeRealtime {
		return
	}
	c.mu.Lock()
	c.current = c.current.Add(d)
	t := c.current
	c.mu.Unlock()
	c.fireDue(t)
}

// fireDue invokes every schedule due at now. Callbacks run outside the lock
// and a panicking callback never takes down the scheduler.
func (c *Clock) fireDue(now time.Time) {
	c.mu.Lock()
	var due []Callback
	remaining := c.events[:0]
	for _, ev := range c.events {
		if ev.at.After(now) {
			remaining = append(remaining, ev)
			continue
		}
		due = append(due, ev.fn)
		if ev.recurring {
			ev.at = now.Add(ev.interval)
			remaining = append(remaining, ev)
		}
	}
	c.events = remaining
	c.mu.Unlock()

	for _, fn := range due {
		invoke(fn)
	}
}

func invoke(fn Callback) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("scheduled callback panicked, err: %+v", r)
		}
	}()
	fn()
}

// PendingEvents returns the number of registered schedules.
func (c *Clock) PendingEvents() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

var (
	sharedMu sync.RWMutex
	shared   *Clock
)

// Shared returns the process-wide clock handle, creating a realtime clock on
// first use. Entities that stamp times outside any owning component (orders,
// book entries) default to this handle; tests swap it with SetShared.
func Shared() *Clock {
	sharedMu.RLock()
	c := shared
	sharedMu.RUnlock()
	if c != nil {
		return c
	}

	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		shared = New(ModeRealtime)
	}
	return shared
}

// SetShared replaces the shared handle and returns the previous one so tests
// can restore it.
func SetShared(c *Clock) *Clock {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	prev := shared
	shared = c
	return prev
}
