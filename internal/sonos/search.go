package sonos

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultSearchResend = 5 * time.Second

// Prober feeds SSDP replies to found until ctx ends.
type Prober interface {
	Probe(ctx context.Context, found func(SSDPResponse)) error
}

type ProberFunc func(ctx context.Context, found func(SSDPResponse)) error

func (f ProberFunc) Probe(ctx context.Context, found func(SSDPResponse)) error {
	return f(ctx, found)
}

type ssdpProber struct {
	resend time.Duration
}

func (p ssdpProber) Probe(ctx context.Context, found func(SSDPResponse)) error {
	return ssdpListen(ctx, p.resend, found)
}

type SearchOptions struct {
	// Timeout ends the search and fires the timeout event. Zero searches
	// until Destroy.
	Timeout time.Duration
	// ResendInterval repeats the M-SEARCH query; defaults to 5s.
	ResendInterval time.Duration
	// Prober replaces the SSDP probe.
	Prober Prober
}

// Searcher is a running speaker search. Each speaker is reported once, keyed
// by IP.
type Searcher struct {
	onDevice func(Device, string)
	cancel   context.CancelFunc
	timedOut chan struct{}
	finished chan struct{}

	mu        sync.Mutex
	timer     *time.Timer
	fired     bool
	destroyed bool
	listeners []func()
	seen      map[string]struct{}
}

// Search starts looking for speakers and calls onDevice with each new
// speaker and its model string. The callback runs on the search goroutine.
func Search(ctx context.Context, opts SearchOptions, onDevice func(dev Device, model string)) *Searcher {
	prober := opts.Prober
	if prober == nil {
		resend := opts.ResendInterval
		if resend <= 0 {
			resend = defaultSearchResend
		}
		prober = ssdpProber{resend: resend}
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Searcher{
		onDevice: onDevice,
		cancel:   cancel,
		timedOut: make(chan struct{}),
		finished: make(chan struct{}),
		seen:     map[string]struct{}{},
	}
	if opts.Timeout > 0 {
		s.timer = time.AfterFunc(opts.Timeout, s.fireTimeout)
	}

	go s.run(ctx, prober)
	return s
}

func (s *Searcher) run(ctx context.Context, prober Prober) {
	defer close(s.finished)
	if err := prober.Probe(ctx, s.handle); err != nil && ctx.Err() == nil {
		// The timeout still fires; a dead probe just finds nothing.
		slog.Debug("search: probe stopped", "err", err.Error())
	}
}

func (s *Searcher) handle(r SSDPResponse) {
	if !r.isZonePlayer() {
		return
	}
	ip, err := hostToIP(r.Location)
	if err != nil {
		return
	}

	s.mu.Lock()
	if s.fired || s.destroyed {
		s.mu.Unlock()
		return
	}
	if _, ok := s.seen[ip]; ok {
		s.mu.Unlock()
		return
	}
	s.seen[ip] = struct{}{}
	s.mu.Unlock()

	model := r.Model()
	slog.Debug("search: device", "ip", ip, "model", model)
	if s.onDevice != nil {
		s.onDevice(Device{IP: ip, UDN: r.UDN(), Location: r.Location, Model: model}, model)
	}
}

func (s *Searcher) fireTimeout() {
	s.mu.Lock()
	if s.fired || s.destroyed {
		s.mu.Unlock()
		return
	}
	s.fired = true
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	s.cancel()
	close(s.timedOut)
	for _, fn := range listeners {
		fn()
	}
}

// Timeout is closed when the search timeout elapses. It is never closed for
// a search without a timeout or one destroyed first.
func (s *Searcher) Timeout() <-chan struct{} {
	return s.timedOut
}

// OnTimeout registers fn to run once when the timeout fires. If it already
// fired, fn runs immediately; after Destroy it is dropped.
func (s *Searcher) OnTimeout(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	switch {
	case s.destroyed:
		s.mu.Unlock()
	case s.fired:
		s.mu.Unlock()
		fn()
	default:
		s.listeners = append(s.listeners, fn)
		s.mu.Unlock()
	}
}

// Destroy stops the search. A timeout that has not started firing is
// suppressed; listeners already running are left to finish, and may call
// Destroy themselves. done, if non-nil, runs on its own goroutine after the
// probe has shut down. Calling Destroy again only schedules done.
func (s *Searcher) Destroy(done func()) {
	s.mu.Lock()
	if !s.destroyed {
		s.destroyed = true
		if s.timer != nil {
			s.timer.Stop()
		}
		s.listeners = nil
	}
	s.mu.Unlock()
	s.cancel()

	if done != nil {
		go func() {
			<-s.finished
			done()
		}()
	}
}

// Done is closed once the probe has stopped, after a timeout or Destroy.
func (s *Searcher) Done() <-chan struct{} {
	return s.finished
}

func (s *Searcher) Close() error {
	s.Destroy(nil)
	return nil
}
