package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/monitoring"
)

// Policy selects whether platform state survives restarts
type Policy string

const (
	PolicyPersist Policy = "persist"
	PolicyDiscard Policy = "discard"
)

// DefaultInterval is the snapshot period
const DefaultInterval = 60 * time.Second

// ParsePolicy parses a session policy value
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyPersist:
		return PolicyPersist, nil
	case PolicyDiscard:
		return PolicyDiscard, nil
	default:
		return "", fmt.Errorf("unknown session policy %q (want %q or %q)", s, PolicyPersist, PolicyDiscard)
	}
}

// Persister recovers the store at startup and snapshots it periodically
type Persister struct {
	store    *Store
	path     string
	policy   Policy
	interval time.Duration
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	saveMu    sync.Mutex
	lastSaved time.Time

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPersister creates a persister writing <dir>/Session.json
func NewPersister(store *Store, dir string, policy Policy, interval time.Duration) *Persister {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Persister{
		store:    store,
		path:     SnapshotPath(dir),
		policy:   policy,
		interval: interval,
		logger:   zap.NewNop(),
	}
}

// WithLogger sets the persister's logger
func (p *Persister) WithLogger(logger *zap.Logger) *Persister {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WithMetrics sets the metrics collector
func (p *Persister) WithMetrics(metrics *monitoring.Metrics) *Persister {
	p.metrics = metrics
	return p
}

// Enabled reports whether the policy allows persistence
func (p *Persister) Enabled() bool {
	return p.policy == PolicyPersist
}

// Path returns the snapshot path
func (p *Persister) Path() string {
	return p.path
}

// LastSaved returns the time of the last successful snapshot
func (p *Persister) LastSaved() time.Time {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	return p.lastSaved
}

// Recover loads the snapshot into the store. It must run before the platform
// accepts traffic. It never fails: an unreadable or corrupt snapshot is
// logged and the platform starts with empty state. Returns true if state was
// restored.
func (p *Persister) Recover() bool {
	if !p.Enabled() {
		p.logger.Info("Session policy discards state, skipping recovery", zap.String("policy", string(p.policy)))
		return false
	}

	err := p.store.LoadFromFile(p.path)
	switch {
	case err == nil:
		stats := p.store.Stats()
		p.logger.Info("Platform state recovered",
			zap.String("path", p.path),
			zap.Int("containers", stats.Containers),
			zap.Int("pending", stats.PendingStarts),
			zap.Int("peers", stats.Connections))
		if p.metrics != nil {
			p.metrics.IncSnapshotsLoaded()
		}
		return true
	case errors.Is(err, os.ErrNotExist):
		p.logger.Info("No snapshot found, starting with empty state", zap.String("path", p.path))
	default:
		p.logger.Error("Failed to recover platform state, starting with empty state",
			zap.String("path", p.path), zap.Error(err))
	}

	p.store.Reset()
	return false
}

// Save writes one snapshot. Saves are serialized.
func (p *Persister) Save() error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	start := time.Now()
	err := p.store.SaveToFile(p.path)
	if p.metrics != nil {
		p.metrics.RecordSnapshot(err, time.Since(start))
	}
	if err != nil {
		return err
	}
	p.lastSaved = time.Now()
	return nil
}

// Start launches the periodic snapshot loop. It does nothing when the policy
// discards state or the loop is already running.
func (p *Persister) Start(ctx context.Context) {
	if !p.Enabled() {
		return
	}

	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx, p.done)

	p.logger.Info("Snapshot loop started",
		zap.String("path", p.path),
		zap.Duration("interval", p.interval))
}

func (p *Persister) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Failures wait for the next tick
			if err := p.Save(); err != nil {
				p.logger.Error("Snapshot failed", zap.String("path", p.path), zap.Error(err))
			}
		}
	}
}

// Stop ends the snapshot loop and writes a final snapshot
func (p *Persister) Stop() {
	if !p.Enabled() {
		return
	}

	p.runMu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.runMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	if err := p.Save(); err != nil {
		p.logger.Error("Final snapshot failed", zap.String("path", p.path), zap.Error(err))
		return
	}
	p.logger.Info("Final snapshot written", zap.String("path", p.path))
}
