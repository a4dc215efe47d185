package backend_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/agentplatform/internal/backend"
	"github.com/GriffinCanCode/agentplatform/internal/backend/memory"
	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

type listOnly struct{}

func (listOnly) Name() string { return "list-only" }
func (listOnly) ListRunningContainers(context.Context) ([]types.RunningContainer, error) {
	return nil, nil
}
func (listOnly) StartContainer(context.Context, types.StartRequest) (string, error) { return "x", nil }
func (listOnly) StopContainer(context.Context, string) error                        { return nil }

func TestGuardPassesThrough(t *testing.T) {
	inner := memory.New()
	metrics := monitoring.NewMetrics()
	g := backend.NewGuard(inner, time.Second, zaptest.NewLogger(t)).WithMetrics(metrics)

	id, err := g.StartContainer(context.Background(), types.StartRequest{ContainerID: "ctr_1"})
	require.NoError(t, err)
	assert.Equal(t, "ctr_1", id)

	list, err := g.ListRunningContainers(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.Equal(t, "memory", g.Name())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BackendCalls.WithLabelValues("memory", "start", "success")))
}

func TestGuardTimeoutIsUnavailable(t *testing.T) {
	inner := memory.New()
	inner.SetDelay(time.Second)
	g := backend.NewGuard(inner, 20*time.Millisecond, zaptest.NewLogger(t))

	start := time.Now()
	_, err := g.ListRunningContainers(context.Background())
	assert.ErrorIs(t, err, backend.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGuardOpensCircuit(t *testing.T) {
	inner := memory.New()
	inner.SetUnavailable(true)
	g := backend.NewGuard(inner, time.Second, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		_, err := g.ListRunningContainers(context.Background())
		assert.ErrorIs(t, err, backend.ErrUnavailable)
	}
	assert.Equal(t, resilience.StateOpen, g.BreakerState())

	// The backend recovered but the circuit stays open for now
	inner.SetUnavailable(false)
	_, err := g.ListRunningContainers(context.Background())
	assert.ErrorIs(t, err, backend.ErrUnavailable)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestGuardBusinessErrorsDontTrip(t *testing.T) {
	g := backend.NewGuard(memory.New(), time.Second, zaptest.NewLogger(t))

	for i := 0; i < 10; i++ {
		err := g.StopContainer(context.Background(), "missing")
		assert.ErrorIs(t, err, backend.ErrNotFound)
		assert.NotErrorIs(t, err, backend.ErrUnavailable)
	}
	assert.Equal(t, resilience.StateClosed, g.BreakerState())
}

func TestGuardOptionalCapabilities(t *testing.T) {
	g := backend.NewGuard(listOnly{}, time.Second, nil)

	_, err := g.DescribeContainer(context.Background(), "x")
	assert.ErrorIs(t, err, backend.ErrNotDescribed)

	_, err = g.InspectContainer(context.Background(), "x")
	assert.ErrorIs(t, err, backend.ErrNotSupported)
}
