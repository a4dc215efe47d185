package capability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/agentplatform/internal/types"
)

type stubLister struct {
	containers []types.RunningContainer
	err        error
	delay      time.Duration
}

func (s *stubLister) ListRunningContainers(ctx context.Context) ([]types.RunningContainer, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.containers, s.err
}

var testInfo = types.PlatformInfo{
	ContainerEnvironment: "docker",
	PlatformEnvironment:  "native",
	SessionPolicy:        "persist",
	AuthEnabled:          false,
}

func calculator(id string) types.RunningContainer {
	return types.RunningContainer{
		ID: id,
		Image: types.AgentContainerImage{
			ImageName: "calculator",
			Provides:  []string{"math:arithmetic"},
		},
		Agents: []types.AgentDescriptor{{
			AgentID:   "calc-1",
			AgentType: "Calculator",
			Actions:   []types.Action{{Name: "Add"}, {Name: "Multiply"}},
		}},
	}
}

func TestCurrentProvisionsOrderAndContent(t *testing.T) {
	r := NewRegistry(testInfo, &stubLister{containers: []types.RunningContainer{calculator("c1")}}, time.Second, zaptest.NewLogger(t))

	assert.Equal(t, []string{
		"config:CONTAINER_ENVIRONMENT=docker",
		"config:PLATFORM_ENVIRONMENT=native",
		"config:SESSION_POLICY=persist",
		"config:ENABLE_AUTH=false",
		"image:calculator",
		"math:arithmetic",
		"agent:Calculator",
		"action:Add",
		"action:Multiply",
	}, r.CurrentProvisions(context.Background()))
}

func TestCurrentProvisionsDeduplicates(t *testing.T) {
	lister := &stubLister{containers: []types.RunningContainer{calculator("c1"), calculator("c2")}}
	r := NewRegistry(testInfo, lister, time.Second, nil)

	provisions := r.CurrentProvisions(context.Background())
	seen := map[string]int{}
	for _, p := range provisions {
		seen[p]++
	}
	for tag, n := range seen {
		assert.Equal(t, 1, n, tag)
	}
	assert.Len(t, provisions, 9)
}

func TestBackendFailureYieldsEmptyProvisions(t *testing.T) {
	r := NewRegistry(testInfo, &stubLister{err: errors.New("connection refused")}, time.Second, zaptest.NewLogger(t))

	assert.Empty(t, r.CurrentProvisions(context.Background()))

	image := types.AgentContainerImage{ImageName: "x", Requires: []string{"config:ENABLE_AUTH=false", "agent:Calculator"}}
	assert.Equal(t, []string{"agent:Calculator", "config:ENABLE_AUTH=false"}, r.CheckMissing(context.Background(), image))
}

func TestSlowBackendTimesOut(t *testing.T) {
	lister := &stubLister{containers: []types.RunningContainer{calculator("c1")}, delay: 200 * time.Millisecond}
	r := NewRegistry(testInfo, lister, 20*time.Millisecond, nil)

	start := time.Now()
	assert.Empty(t, r.CurrentProvisions(context.Background()))
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestCheckMissing(t *testing.T) {
	r := NewRegistry(testInfo, &stubLister{containers: []types.RunningContainer{calculator("c1")}}, time.Second, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		requires []string
		want     []string
	}{
		{"no requirements", nil, []string{}},
		{"all satisfied", []string{"action:Add", "image:calculator", "config:CONTAINER_ENVIRONMENT=docker"}, []string{}},
		{"some missing", []string{"action:Add", "action:Divide", "agent:Planner"}, []string{"action:Divide", "agent:Planner"}},
		{"exact match only", []string{"action:add"}, []string{"action:add"}},
		{"duplicates collapse", []string{"agent:Planner", "agent:Planner"}, []string{"agent:Planner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			image := types.AgentContainerImage{ImageName: "new", Requires: tt.requires}
			assert.Equal(t, tt.want, r.CheckMissing(ctx, image))
		})
	}
}

func TestNilListerProvidesConfigOnly(t *testing.T) {
	r := NewRegistry(testInfo, nil, 0, nil)
	assert.Equal(t, ConfigProvisions(testInfo), r.CurrentProvisions(context.Background()))
}
