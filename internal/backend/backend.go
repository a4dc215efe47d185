package backend

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/agentplatform/internal/types"
)

var (
	// ErrUnavailable means the orchestrator could not be reached in time
	ErrUnavailable = errors.New("container backend unavailable")
	// ErrNotFound means the orchestrator does not know the container
	ErrNotFound = errors.New("container not found on backend")
	// ErrNotDescribed means the container has not reported its agents yet
	ErrNotDescribed = errors.New("container not described yet")
	// ErrNotSupported means the backend lacks an optional capability
	ErrNotSupported = errors.New("operation not supported by backend")
)

// Backend is a container orchestrator
type Backend interface {
	// Name identifies the backend ("memory", "docker")
	Name() string
	// ListRunningContainers returns the containers this platform started that are still running
	ListRunningContainers(ctx context.Context) ([]types.RunningContainer, error)
	// StartContainer launches req.Image and returns the ID the container is addressed by
	StartContainer(ctx context.Context, req types.StartRequest) (string, error)
	// StopContainer stops and removes a container
	StopContainer(ctx context.Context, id string) error
}

// Describer reports the agents and connectivity of a started container
type Describer interface {
	DescribeContainer(ctx context.Context, id string) (types.RunningContainer, error)
}

// Inspector returns orchestrator-specific metadata for a container
type Inspector interface {
	InspectContainer(ctx context.Context, id string) (types.BackendInfo, error)
}

// IsBusinessError reports whether err is a well-formed answer from the
// backend rather than a sign that it is unhealthy
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotDescribed) || errors.Is(err, ErrNotSupported)
}
