package connectivity

import (
	"net/http"
	"sync"
	"time"

	logpkg "github.com/stationkit/redeemq/pkg/log"
)

// Probe derives connectivity from a periodic HTTP reachability check. Any
// response from the target, regardless of status code, counts as reachable;
// only transport-level failures mean offline.
type Probe struct {
	url      string
	interval time.Duration
	hc       *http.Client
	logger   logpkg.Logger

	mu     sync.Mutex
	online bool
	subs   []func()
	stop   chan struct{}
}

// NewProbe creates a Probe targeting url (typically the server's healthz
// endpoint). The probe starts pessimistic: offline until the first check.
func NewProbe(url string, interval time.Duration, logger logpkg.Logger) *Probe {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Probe{
		url:      url,
		interval: interval,
		hc:       &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
	}
}

// IsOnline implements Observer.
func (p *Probe) IsOnline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// OnOnline implements Observer.
func (p *Probe) OnOnline(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
}

// CheckNow performs one synchronous reachability check and returns the
// resulting state, firing callbacks on an offline→online transition.
func (p *Probe) CheckNow() bool {
	reachable := p.check()
	p.setOnline(reachable)
	return reachable
}

// Start launches the background probe loop. Stop terminates it.
func (p *Probe) Start() {
	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	p.stop = stop
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.setOnline(p.check())
			}
		}
	}()
}

// Stop stops the background probe loop.
func (p *Probe) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

func (p *Probe) check() bool {
	resp, err := p.hc.Get(p.url)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (p *Probe) setOnline(online bool) {
	p.mu.Lock()
	transition := online && !p.online
	if transition {
		p.logger.Info("connectivity restored", logpkg.Str("probe_url", p.url))
	}
	p.online = online
	subs := append([]func(){}, p.subs...)
	p.mu.Unlock()
	if transition {
		for _, fn := range subs {
			fn()
		}
	}
}
