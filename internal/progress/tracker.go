package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is one progress sample. Speed is instantaneous (bytes/sec over the
// last sample interval); Percent is 0 when the total size is unknown.
type Event struct {
	Downloaded int64
	Total      int64
	Speed      float64
	Percent    float64
}

// Stats summarizes a finished session.
type Stats struct {
	Downloaded int64
	Total      int64
	Elapsed    time.Duration
	AvgSpeed   float64
}

// Tracker aggregates per-segment byte counts into one session counter. All
// workers share the same counter through Add; the sampler goroutine is the
// only reader on a cadence, so workers are never slowed by reporting.
type Tracker struct {
	total      int64
	downloaded atomic.Int64
	startTime  time.Time
	doneCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewTracker(total int64) *Tracker {
	return &Tracker{
		total:     total,
		startTime: time.Now(),
		doneCh:    make(chan struct{}),
	}
}

// Add records n more transferred bytes. Safe for concurrent use; negative n
// rolls back progress after a failed segment attempt is restarted.
func (t *Tracker) Add(n int64) {
	t.downloaded.Add(n)
}

func (t *Tracker) Downloaded() int64 {
	return t.downloaded.Load()
}

func (t *Tracker) Total() int64 {
	return t.total
}

// Start launches the sampler goroutine, invoking fn once per interval and a
// final time on Stop.
func (t *Tracker) Start(interval time.Duration, fn func(Event)) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var lastBytes int64
		lastTime := time.Now()
		for {
			select {
			case <-ticker.C:
				now := time.Now()
				sampled := t.downloaded.Load()
				elapsed := now.Sub(lastTime).Seconds()
				speed := float64(0)
				if elapsed > 0 {
					speed = float64(sampled-lastBytes) / elapsed
				}
				fn(t.makeEvent(sampled, speed))
				lastBytes = sampled
				lastTime = now
			case <-t.doneCh:
				sampled := t.downloaded.Load()
				elapsed := time.Since(t.startTime).Seconds()
				speed := float64(0)
				if elapsed > 0 {
					speed = float64(sampled) / elapsed
				}
				fn(t.makeEvent(sampled, speed))
				return
			}
		}
	}()
}

func (t *Tracker) makeEvent(sampled int64, speed float64) Event {
	event := Event{
		Downloaded: sampled,
		Total:      t.total,
		Speed:      speed,
	}
	if t.total > 0 {
		event.Percent = float64(sampled) / float64(t.total) * 100
	}
	return event
}

// Stop terminates the sampler after one final event and waits for it to
// exit. Safe to call more than once.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.doneCh)
	})
	t.wg.Wait()
}

// Stats returns the session summary as a value; the tracker keeps no
// process-wide state.
func (t *Tracker) Stats() Stats {
	downloaded := t.downloaded.Load()
	elapsed := time.Since(t.startTime)
	avg := float64(0)
	if elapsed.Seconds() > 0 {
		avg = float64(downloaded) / elapsed.Seconds()
	}
	return Stats{
		Downloaded: downloaded,
		Total:      t.total,
		Elapsed:    elapsed,
		AvgSpeed:   avg,
	}
}
