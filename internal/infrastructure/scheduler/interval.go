// Package scheduler provides the time sources that drive the pipeline:
// a fixed-interval ticker for publishing and a cron job for ledger
// maintenance.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ChannelRelay/internal/ports"
)

// Interval fires a job at a fixed period. The first firing happens one
// full period after Start; jobs run in their own goroutines so a slow
// tick never delays the clock, and overlap control stays with the job.
type Interval struct {
	period time.Duration

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

var _ ports.Scheduler = (*Interval)(nil)

// NewInterval builds a driver with the given period.
func NewInterval(period time.Duration) *Interval {
	return &Interval{period: period}
}

// Start begins ticking. Starting twice is an error.
func (i *Interval) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return fmt.Errorf("interval: nil job")
	}
	if i.period <= 0 {
		return fmt.Errorf("interval: period %v is not positive", i.period)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stop != nil {
		return fmt.Errorf("interval: already started")
	}
	i.stop = make(chan struct{})
	stop := i.stop

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		ticker := time.NewTicker(i.period)
		defer ticker.Stop()
		for {
			select {
			case t := <-ticker.C:
				i.wg.Add(1)
				go func() {
					defer i.wg.Done()
					job(t)
				}()
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the clock and waits for in-flight jobs to return.
func (i *Interval) Stop(ctx context.Context) error {
	i.mu.Lock()
	if i.stop == nil {
		i.mu.Unlock()
		return nil
	}
	close(i.stop)
	i.stop = nil
	i.mu.Unlock()

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("interval: stop: %w", ctx.Err())
	}
}
