package prediction

import (
	"sync"
	"time"
)

// ProgressFunc observes the simulated progress value (0..100).
// It is called from a background goroutine and must not block for long.
type ProgressFunc func(percent int)

// ProgressConfig shapes the simulated progress. The value is not tied to bytes
// transferred: it climbs by Step every Interval until Cap, and jumps to 100 once
// the response arrives.
type ProgressConfig struct {
	Step     int
	Interval time.Duration
	Cap      int
}

func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{Step: 10, Interval: 200 * time.Millisecond, Cap: 90}
}

func (c ProgressConfig) withDefaults() ProgressConfig {
	d := DefaultProgressConfig()
	if c.Step <= 0 {
		c.Step = d.Step
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Cap <= 0 || c.Cap >= 100 {
		c.Cap = d.Cap
	}
	return c
}

// progressTicker drives one submission's simulated progress.
type progressTicker struct {
	cfg  ProgressConfig
	emit func(int)
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func startProgress(cfg ProgressConfig, emit func(int)) *progressTicker {
	p := &progressTicker{
		cfg:  cfg.withDefaults(),
		emit: emit,
		done: make(chan struct{}),
	}
	p.emit(0)

	p.wg.Add(1)
	go p.run()
	return p
}

func (p *progressTicker) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	value := 0
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			// done may be closed at the same time as a tick fires
			select {
			case <-p.done:
				return
			default:
			}
			value = min(value+p.cfg.Step, p.cfg.Cap)
			p.emit(value)
			if value >= p.cfg.Cap {
				return
			}
		}
	}
}

// stop cancels the ticker and waits until no further tick can be emitted.
func (p *progressTicker) stop() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}
