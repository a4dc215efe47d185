package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// DefaultTimeout bounds a single backend call
const DefaultTimeout = 10 * time.Second

// Guard bounds every call to the wrapped backend with a timeout and a circuit
// breaker
type Guard struct {
	inner   Backend
	timeout time.Duration
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewGuard wraps inner
func NewGuard(inner Backend, timeout time.Duration, logger *zap.Logger) *Guard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Guard{
		inner:   inner,
		timeout: timeout,
		logger:  logger,
	}
	g.breaker = resilience.New("backend:"+inner.Name(), resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsBusinessError(err)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Backend circuit changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return g
}

// WithMetrics sets the metrics collector
func (g *Guard) WithMetrics(metrics *monitoring.Metrics) *Guard {
	g.metrics = metrics
	return g
}

// Unwrap returns the guarded backend
func (g *Guard) Unwrap() Backend {
	return g.inner
}

// Name returns the guarded backend's name
func (g *Guard) Name() string {
	return g.inner.Name()
}

// ListRunningContainers lists containers on the guarded backend
func (g *Guard) ListRunningContainers(ctx context.Context) ([]types.RunningContainer, error) {
	return guarded(ctx, g, "list", g.inner.ListRunningContainers)
}

// StartContainer starts a container on the guarded backend
func (g *Guard) StartContainer(ctx context.Context, req types.StartRequest) (string, error) {
	return guarded(ctx, g, "start", func(ctx context.Context) (string, error) {
		return g.inner.StartContainer(ctx, req)
	})
}

// StopContainer stops a container on the guarded backend
func (g *Guard) StopContainer(ctx context.Context, id string) error {
	_, err := guarded(ctx, g, "stop", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.StopContainer(ctx, id)
	})
	return err
}

// DescribeContainer describes a container, or returns ErrNotDescribed when
// the guarded backend cannot
func (g *Guard) DescribeContainer(ctx context.Context, id string) (types.RunningContainer, error) {
	d, ok := g.inner.(Describer)
	if !ok {
		return types.RunningContainer{}, ErrNotDescribed
	}
	return guarded(ctx, g, "describe", func(ctx context.Context) (types.RunningContainer, error) {
		return d.DescribeContainer(ctx, id)
	})
}

// InspectContainer returns backend metadata, or ErrNotSupported when the
// guarded backend has none
func (g *Guard) InspectContainer(ctx context.Context, id string) (types.BackendInfo, error) {
	i, ok := g.inner.(Inspector)
	if !ok {
		return types.BackendInfo{}, ErrNotSupported
	}
	return guarded(ctx, g, "inspect", func(ctx context.Context) (types.BackendInfo, error) {
		return i.InspectContainer(ctx, id)
	})
}

// BreakerState exposes the circuit state for health reporting
func (g *Guard) BreakerState() resilience.State {
	return g.breaker.State()
}

func guarded[T any](ctx context.Context, g *Guard, op string, fn func(context.Context) (T, error)) (T, error) {
	timer := monitoring.NewTimer(g.metrics, g.inner.Name(), op)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := resilience.Call(ctx, g.breaker, fn)
	switch {
	case err == nil:
		timer.Stop("success")
		return result, nil
	case IsBusinessError(err):
		timer.Stop("rejected")
		return result, err
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		timer.Stop("circuit_open")
	case errors.Is(err, context.DeadlineExceeded):
		timer.Stop("timeout")
	default:
		timer.Stop("error")
	}

	g.logger.Warn("Backend call failed",
		zap.String("backend", g.inner.Name()),
		zap.String("operation", op),
		zap.Error(err))
	return result, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, g.inner.Name(), op, err)
}

var (
	_ Backend   = (*Guard)(nil)
	_ Describer = (*Guard)(nil)
	_ Inspector = (*Guard)(nil)
)
