package fft

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EngineState reflects the engine lifecycle as observed from outside.
type EngineState int

const (
	EngineStopped EngineState = iota
	EngineRunning
	EngineFailed
)

func (s EngineState) String() string {
	switch s {
	case EngineStopped:
		return "stopped"
	case EngineRunning:
		return "running"
	case EngineFailed:
		return "failed"
	}
	return "unknown"
}

// Status is the engine's observable condition. Err is non-nil only in
// the Failed state.
type Status struct {
	State EngineState
	Err   error
}

// Config tunes the transformer stage.
type Config struct {
	// WindowSize must be one of 512, 1024, 2048, or 4096.
	WindowSize int
	// TargetFPS is clamped to [10, 120]; zero selects 30.
	TargetFPS int
	// Bins is the number of output bands, at least 1.
	Bins int
	// Smoothing in [0, 1); zero selects the default.
	Smoothing float64
}

func (c *Config) normalize() error {
	switch c.WindowSize {
	case 512, 1024, 2048, 4096:
	case 0:
		c.WindowSize = 1024
	default:
		return errorf("config", "window size %d not one of 512, 1024, 2048, 4096", c.WindowSize)
	}
	if c.TargetFPS == 0 {
		c.TargetFPS = 30
	}
	if c.TargetFPS < 10 {
		c.TargetFPS = 10
	}
	if c.TargetFPS > 120 {
		c.TargetFPS = 120
	}
	if c.Bins < 1 {
		return errorf("config", "need at least one output bin, got %d", c.Bins)
	}
	if c.Bins > c.WindowSize/2 {
		c.Bins = c.WindowSize / 2
	}
	if c.Smoothing == 0 {
		c.Smoothing = defaultSmoothing
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		return errorf("config", "smoothing %v outside [0, 1)", c.Smoothing)
	}
	return nil
}

// Engine couples a Source to the transformer worker and publishes
// spectrum frames most-recent-wins: a slow consumer only ever skips
// frames, it never applies back-pressure.
type Engine struct {
	logger zerolog.Logger

	mu      sync.Mutex
	cfg     Config
	src     Source
	ring    *Ring
	stop    chan struct{}
	done    chan struct{}
	status  Status
	binner  *binner
	rebuild bool

	frames chan []float64
}

// NewEngine returns a stopped engine. Frames carry Config.Bins band
// magnitudes each.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		logger: logger.With().Str("component", "fft").Logger(),
		frames: make(chan []float64, 1),
	}
}

// Frames is the most-recent-wins frame channel. When the consumer
// lags, older frames are replaced, not queued.
func (e *Engine) Frames() <-chan []float64 { return e.frames }

// Status reports the engine's current condition.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Start validates the configuration, starts the source, and spawns
// the transformer. A failure leaves the engine stopped with the error
// recorded in its status.
func (e *Engine) Start(cfg Config, src Source) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop != nil {
		return nil
	}
	if err := cfg.normalize(); err != nil {
		e.status = Status{State: EngineFailed, Err: err}
		return err
	}

	ring := NewRing(cfg.WindowSize * 2)
	if err := src.Start(ring); err != nil {
		e.status = Status{State: EngineFailed, Err: err}
		e.logger.Error().Err(err).Str("source", src.Name()).Msg("source failed to start")
		return err
	}

	e.cfg = cfg
	e.src = src
	e.ring = ring
	e.binner = newBinner(cfg.WindowSize, cfg.Bins, src.SampleRate(), cfg.Smoothing)
	e.rebuild = false
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	e.status = Status{State: EngineRunning}
	go e.transform(e.stop, e.done)
	e.logger.Debug().Str("source", src.Name()).Int("window", cfg.WindowSize).
		Int("bins", cfg.Bins).Int("fps", cfg.TargetFPS).Msg("engine started")
	return nil
}

// Stop halts the transformer and the source. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stop == nil {
		e.mu.Unlock()
		return
	}
	stop, done, src := e.stop, e.done, e.src
	e.stop = nil
	e.mu.Unlock()

	close(stop)
	<-done
	src.Stop()

	e.mu.Lock()
	e.src = nil
	if e.status.State == EngineRunning {
		e.status = Status{State: EngineStopped}
	}
	e.mu.Unlock()
}

// Restart applies a new configuration and source atomically.
func (e *Engine) Restart(cfg Config, src Source) error {
	e.Stop()
	return e.Start(cfg, src)
}

// SetBins changes the output band count without a reopen; it takes
// effect on the next frame.
func (e *Engine) SetBins(bins int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bins < 1 || bins == e.cfg.Bins {
		return
	}
	if bins > e.cfg.WindowSize/2 {
		bins = e.cfg.WindowSize / 2
	}
	e.cfg.Bins = bins
	e.rebuild = true
}

func (e *Engine) transform(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	e.mu.Lock()
	interval := time.Second / time.Duration(e.cfg.TargetFPS)
	window := make([]float64, e.cfg.WindowSize)
	ring := e.ring
	e.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if !ring.Snapshot(window) {
			continue
		}

		e.mu.Lock()
		if e.rebuild {
			e.binner = newBinner(e.cfg.WindowSize, e.cfg.Bins, e.src.SampleRate(), e.cfg.Smoothing)
			e.rebuild = false
		}
		b := e.binner
		e.mu.Unlock()

		frame := b.process(window)
		select {
		case e.frames <- frame:
		default:
			select {
			case <-e.frames:
			default:
			}
			select {
			case e.frames <- frame:
			default:
			}
		}
	}
}
