// Package memory implements an in-process container backend. Containers are
// bookkeeping entries only; nothing is executed. It backs development setups
// (CONTAINER_ENVIRONMENT=memory) and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/agentplatform/internal/backend"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// Name of the backend
const Name = "memory"

// URLFunc builds the public URL of a container from its API port
type URLFunc func(req types.StartRequest, apiPort int) string

// Backend keeps containers in a map
type Backend struct {
	mu         sync.RWMutex
	containers map[string]types.RunningContainer
	catalog    map[string][]types.AgentDescriptor

	urlFor      URLFunc
	delay       time.Duration
	unavailable bool
}

// New creates an empty memory backend
func New() *Backend {
	return &Backend{
		containers: make(map[string]types.RunningContainer),
		catalog:    make(map[string][]types.AgentDescriptor),
		urlFor: func(_ types.StartRequest, port int) string {
			return fmt.Sprintf("http://localhost:%d", port)
		},
	}
}

// WithURLFunc overrides how container URLs are built
func (b *Backend) WithURLFunc(fn URLFunc) *Backend {
	b.urlFor = fn
	return b
}

// RegisterImage declares the agents an image hosts. Containers of registered
// images describe themselves immediately after start.
func (b *Backend) RegisterImage(imageName string, agents []types.AgentDescriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalog[imageName] = agents
}

// SetDelay makes every call wait before answering
func (b *Backend) SetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

// SetUnavailable makes every call fail as if the orchestrator were down
func (b *Backend) SetUnavailable(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unavailable = down
}

// Name returns "memory"
func (b *Backend) Name() string {
	return Name
}

// wait applies the configured delay and failure mode
func (b *Backend) wait(ctx context.Context) error {
	b.mu.RLock()
	delay, down := b.delay, b.unavailable
	b.mu.RUnlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if down {
		return fmt.Errorf("memory backend is down")
	}
	return nil
}

// ListRunningContainers returns the started containers ordered by ID
func (b *Backend) ListRunningContainers(ctx context.Context) ([]types.RunningContainer, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]types.RunningContainer, 0, len(b.containers))
	for _, c := range b.containers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// StartContainer records a running container under req.ContainerID
func (b *Backend) StartContainer(ctx context.Context, req types.StartRequest) (string, error) {
	if err := b.wait(ctx); err != nil {
		return "", err
	}
	if req.ContainerID == "" {
		return "", fmt.Errorf("container id is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.containers[req.ContainerID]; exists {
		return "", fmt.Errorf("container %s already running", req.ContainerID)
	}

	c := types.RunningContainer{
		ID:        req.ContainerID,
		Image:     req.Image,
		Agents:    b.catalog[req.Image.ImageName],
		Owner:     req.Owner,
		StartedAt: time.Now().UTC(),
	}
	if len(req.Ports) > 0 {
		c.Connectivity = &types.Connectivity{
			PublicURL: b.urlFor(req, req.Ports[0]),
			APIPort:   req.Ports[0],
			Ports:     append([]int(nil), req.Ports...),
		}
	}
	b.containers[req.ContainerID] = c
	return req.ContainerID, nil
}

// StopContainer forgets a container
func (b *Backend) StopContainer(ctx context.Context, id string) error {
	if err := b.wait(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.containers[id]; !ok {
		return fmt.Errorf("%w: %s", backend.ErrNotFound, id)
	}
	delete(b.containers, id)
	return nil
}

// DescribeContainer returns the container if its image is in the catalog
func (b *Backend) DescribeContainer(ctx context.Context, id string) (types.RunningContainer, error) {
	if err := b.wait(ctx); err != nil {
		return types.RunningContainer{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.containers[id]
	if !ok {
		return types.RunningContainer{}, fmt.Errorf("%w: %s", backend.ErrNotFound, id)
	}
	if _, known := b.catalog[c.Image.ImageName]; !known {
		return types.RunningContainer{}, fmt.Errorf("%w: %s", backend.ErrNotDescribed, id)
	}
	return c, nil
}

var (
	_ backend.Backend   = (*Backend)(nil)
	_ backend.Describer = (*Backend)(nil)
)
