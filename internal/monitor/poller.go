package monitor

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftwatch-project/driftwatch/internal/extract"
)

const maxResultDeliveryTime = 100 * time.Millisecond

// Handler is a user-provided callback that receives a single Result.
// It MUST be fast and non-blocking; move expensive work to a goroutine.
type Handler func(res Result) error

// Options for NewPoller. All fields are optional; use functional helpers
// below. Zero values give reasonable defaults.
type Options struct {
	// DefaultInterval is used for targets that do not set their own.
	// A value < 1 picks the default (5 minutes).
	DefaultInterval time.Duration

	// Buffer is the size of the internal buffered channel.
	// A value < 1 picks the default (256).
	Buffer int

	Logger zerolog.Logger
}

func WithDefaultInterval(d time.Duration) func(*Options) {
	return func(o *Options) { o.DefaultInterval = d }
}

func WithBuffer(n int) func(*Options) {
	return func(o *Options) { o.Buffer = n }
}

func WithLogger(l zerolog.Logger) func(*Options) {
	return func(o *Options) { o.Logger = l }
}

// ErrClosed is returned by Add / Remove after Stop() has been called.
var ErrClosed = errors.New("monitor: poller has been stopped")

// Poller multiplexes per-target poll loops into one result stream. Each
// added target gets its own goroutine that checks immediately and then on
// every interval tick.
type Poller struct {
	ctx    context.Context
	cancel context.CancelFunc

	tracker *Tracker
	options Options

	results chan Result

	mutex   sync.RWMutex
	active  map[string]*runner
	running bool

	handlers []Handler

	wg sync.WaitGroup
}

type runner struct {
	stop context.CancelFunc
}

// NewPoller instantiates a new Poller. It starts no loops; call Add() for
// each target you want watched.
func NewPoller(parent context.Context, tracker *Tracker, opts ...func(*Options)) (*Poller, error) {
	if tracker == nil {
		return nil, errors.New("monitor: nil tracker")
	}

	options := Options{DefaultInterval: 5 * time.Minute, Buffer: 256}
	for _, fn := range opts {
		fn(&options)
	}
	if options.DefaultInterval < 1 {
		options.DefaultInterval = 5 * time.Minute
	}
	if options.Buffer < 1 {
		options.Buffer = 256
	}

	ctx, cancel := context.WithCancel(parent)

	p := &Poller{
		ctx:     ctx,
		cancel:  cancel,
		tracker: tracker,
		options: options,
		results: make(chan Result, options.Buffer),
		active:  make(map[string]*runner),
		running: true,
	}
	return p, nil
}

// Add registers (idempotently) a poll loop for the given target.
func (p *Poller) Add(target extract.Target) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.running {
		return ErrClosed
	}
	if _, ok := p.active[target.Name]; ok {
		// already running
		return nil
	}

	interval := target.Interval
	if interval < 1 {
		interval = p.options.DefaultInterval
	}

	ctx, cancel := context.WithCancel(p.ctx)
	p.active[target.Name] = &runner{stop: cancel}

	p.wg.Add(1)
	go p.loop(ctx, target, interval)

	p.options.Logger.Debug().
		Str("target", target.Name).
		Dur("interval", interval).
		Msg("started poll loop")
	return nil
}

// Remove stops and forgets the loop associated with the target name.
// It returns true if the loop was running, false if it was not.
func (p *Poller) Remove(name string) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if r, ok := p.active[name]; ok {
		r.stop()
		delete(p.active, name)

		p.options.Logger.Debug().Str("target", name).Msg("stopped poll loop")
		return true
	}

	return false
}

// Results exposes the unified, read-only result stream.
// The channel is closed after Stop().
func (p *Poller) Results() <-chan Result {
	return p.results
}

// RegisterHandler appends a synchronous callback executed for EVERY result.
func (p *Poller) RegisterHandler(h Handler) {
	if h == nil {
		return
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.handlers = append(p.handlers, h)
}

// Stop terminates all poll loops and closes the Results() channel.
func (p *Poller) Stop() {
	p.mutex.Lock()
	if !p.running {
		p.mutex.Unlock()
		return
	}
	p.running = false
	p.mutex.Unlock()

	p.cancel()

	p.mutex.RLock()
	for _, r := range p.active {
		r.stop()
	}
	p.mutex.RUnlock()

	p.wg.Wait()
	close(p.results)
}

func (p *Poller) loop(ctx context.Context, target extract.Target, interval time.Duration) {
	defer p.wg.Done()

	// spread the loops out a little so all targets don't hit the network
	// on the same tick
	if jitter := interval / 10; jitter > 0 {
		select {
		case <-time.After(rand.N(jitter)):
		case <-ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.check(ctx, target)
	for {
		select {
		case <-ticker.C:
			p.check(ctx, target)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) check(ctx context.Context, target extract.Target) {
	res, err := p.tracker.Check(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.options.Logger.Error().Err(err).Str("target", target.Name).Msg("check failed")
		return
	}

	// fast path: try to deliver into the channel without blocking longer
	// than a small grace period; otherwise drop + log (the next tick will
	// produce a fresh result against the same history).
	select {
	case p.results <- *res:
	case <-time.After(maxResultDeliveryTime):
		p.options.Logger.Warn().
			Str("target", target.Name).
			Msg("dropping result due to slow consumer")
	case <-p.ctx.Done():
		return
	}

	p.mutex.RLock()
	handlers := append([]Handler(nil), p.handlers...)
	p.mutex.RUnlock()

	for i, h := range handlers {
		if h == nil {
			continue
		}
		if err := h(*res); err != nil {
			p.options.Logger.Error().Err(err).Int("index", i).Msg("handler returned error, disabling")
			p.mutex.Lock()
			p.handlers[i] = nil
			p.mutex.Unlock()
		}
	}
}
