package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ChannelRelay/internal/domain"
	"ChannelRelay/internal/ports"
)

// IntervalFor converts the posts-per-day budget into the tick period.
func IntervalFor(postsPerDay int) time.Duration {
	if postsPerDay <= 0 {
		postsPerDay = 1
	}
	return 24 * time.Hour / time.Duration(postsPerDay)
}

// Scheduler wires the tick driver to the workflow and enforces that at
// most one tick is in flight: a tick that arrives while the previous
// one still runs is skipped, never queued.
type Scheduler struct {
	driver        ports.Scheduler
	workflow      *Workflow
	interval      time.Duration
	jitterMinutes int
	logger        *slog.Logger

	busy atomic.Bool
	wg   sync.WaitGroup

	mu           sync.Mutex
	running      bool
	startedAt    time.Time
	last         *domain.TickResult
	ticksStarted int
	ticksSkipped int
}

// NewScheduler returns the facade that owns recurring and manual runs.
func NewScheduler(driver ports.Scheduler, workflow *Workflow, interval time.Duration, jitterMinutes int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		driver:        driver,
		workflow:      workflow,
		interval:      interval,
		jitterMinutes: jitterMinutes,
		logger:        logger,
	}
}

// Start registers the workflow with the driver. The first post goes out
// one full interval after startup.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.workflow == nil {
		return fmt.Errorf("scheduler misconfigured")
	}

	// A tick already in flight must finish even after the daemon's
	// signal context is cancelled. The driver stops firing on ctx and
	// Stop waits out the running job.
	tickCtx := context.WithoutCancel(ctx)
	if err := s.driver.Start(ctx, func(time.Time) { s.tick(tickCtx) }); err != nil {
		return fmt.Errorf("start driver: %w", err)
	}

	s.mu.Lock()
	s.running = true
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	s.info("publishing schedule armed",
		"interval", s.interval,
		"posting_times", strings.Join(s.postingTimes(), " "))
	return nil
}

// Stop tears down the driver and waits for any manual run to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	var err error
	if s.driver != nil {
		err = s.driver.Stop(ctx)
	}
	s.wg.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return err
}

// RunOnce executes a single tick synchronously, for one-shot mode. A
// failed tick comes back as an error so the process can exit non-zero.
func (s *Scheduler) RunOnce(ctx context.Context) (domain.TickResult, error) {
	result, ok := s.tick(ctx)
	if !ok {
		return result, fmt.Errorf("a run is already in flight")
	}
	if result.Status == domain.TickFailed {
		if result.Err != nil {
			return result, result.Err
		}
		return result, fmt.Errorf("tick failed at stage %s", result.Stage)
	}
	return result, nil
}

// KickOff starts a tick in the background, reporting false when one is
// already in flight. Used by the admin surface.
func (s *Scheduler) KickOff() bool {
	if s.busy.Load() {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tick(context.Background())
	}()
	return true
}

// Snapshot reports the runner state for stats and the admin surface.
func (s *Scheduler) Snapshot() domain.RunnerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last *domain.TickResult
	if s.last != nil {
		copied := *s.last
		last = &copied
	}
	return domain.RunnerStatus{
		Running:      s.running,
		Busy:         s.busy.Load(),
		Interval:     s.interval,
		StartedAt:    s.startedAt,
		LastTick:     last,
		TicksStarted: s.ticksStarted,
		TicksSkipped: s.ticksSkipped,
	}
}

// tick is the single entry point for every run. The CAS is the overlap
// gate: whoever loses it skips.
func (s *Scheduler) tick(ctx context.Context) (domain.TickResult, bool) {
	if !s.busy.CompareAndSwap(false, true) {
		s.mu.Lock()
		s.ticksSkipped++
		s.mu.Unlock()
		s.warn("tick skipped, previous run still in flight")
		return domain.TickResult{}, false
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	s.ticksStarted++
	s.mu.Unlock()

	result := s.workflow.Run(ctx)

	s.mu.Lock()
	s.last = &result
	s.mu.Unlock()
	return result, true
}

// postingTimes renders the approximate daily posting plan. The jitter
// only moves the printed times; delivery runs on the fixed interval.
func (s *Scheduler) postingTimes() []string {
	if s.interval <= 0 {
		return nil
	}
	day := 24 * time.Hour
	var times []string
	for offset := time.Duration(0); offset < day; offset += s.interval {
		at := offset
		if s.jitterMinutes > 0 {
			at += time.Duration(rand.IntN(2*s.jitterMinutes+1)-s.jitterMinutes) * time.Minute
		}
		at = ((at % day) + day) % day
		times = append(times, time.Time{}.Add(at).Format("15:04"))
	}
	return times
}

func (s *Scheduler) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Scheduler) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
