package capability

import (
	"context"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// Configuration keys surfaced as config: capabilities
const (
	KeyContainerEnvironment = "CONTAINER_ENVIRONMENT"
	KeyPlatformEnvironment  = "PLATFORM_ENVIRONMENT"
	KeySessionPolicy        = "SESSION_POLICY"
	KeyAuthEnabled          = "ENABLE_AUTH"
)

// DefaultTimeout bounds one enumeration of running containers
const DefaultTimeout = 10 * time.Second

// ContainerLister enumerates the containers currently running. It may block
// on an external backend.
type ContainerLister interface {
	ListRunningContainers(ctx context.Context) ([]types.RunningContainer, error)
}

// Registry computes current provisions and missing requirements
type Registry struct {
	info    types.PlatformInfo
	lister  ContainerLister
	timeout time.Duration
	logger  *zap.Logger
}

// NewRegistry creates a capability registry. info supplies the configuration
// tags; lister supplies running containers.
func NewRegistry(info types.PlatformInfo, lister ContainerLister, timeout time.Duration, logger *zap.Logger) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		info:    info,
		lister:  lister,
		timeout: timeout,
		logger:  logger,
	}
}

// ConfigProvisions returns the config: tags derived from platform settings
func ConfigProvisions(info types.PlatformInfo) []types.Capability {
	return []types.Capability{
		configTag(KeyContainerEnvironment, info.ContainerEnvironment),
		configTag(KeyPlatformEnvironment, info.PlatformEnvironment),
		configTag(KeySessionPolicy, info.SessionPolicy),
		configTag(KeyAuthEnabled, strconv.FormatBool(info.AuthEnabled)),
	}
}

// ContainerProvisions returns the tags a running container contributes
func ContainerProvisions(c types.RunningContainer) []types.Capability {
	out := []types.Capability{types.CapabilityImage + c.Image.ImageName}
	out = append(out, c.Image.Provides...)
	for _, agent := range c.Agents {
		out = append(out, types.CapabilityAgent+agent.AgentType)
		for _, action := range agent.Actions {
			out = append(out, types.CapabilityAction+action.Name)
		}
	}
	return out
}

// CurrentProvisions returns the deduplicated provisions of the platform and
// its running containers. It returns an empty list when running containers
// cannot be enumerated.
func (r *Registry) CurrentProvisions(ctx context.Context) []types.Capability {
	containers, err := r.listContainers(ctx)
	if err != nil {
		r.logger.Warn("Cannot enumerate running containers, reporting no provisions", zap.Error(err))
		return []types.Capability{}
	}

	seen := make(map[types.Capability]struct{})
	provisions := make([]types.Capability, 0, 4+len(containers)*4)
	add := func(tags []types.Capability) {
		for _, tag := range tags {
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			provisions = append(provisions, tag)
		}
	}

	add(ConfigProvisions(r.info))
	for _, c := range containers {
		add(ContainerProvisions(c))
	}
	return provisions
}

// CheckMissing returns the requirements of image not found in the current
// provisions, sorted. An empty result means the image may be deployed.
func (r *Registry) CheckMissing(ctx context.Context, image types.AgentContainerImage) []types.Capability {
	if len(image.Requires) == 0 {
		return []types.Capability{}
	}
	return Missing(image.Requires, r.CurrentProvisions(ctx))
}

// Missing computes requires minus provisions as a sorted set
func Missing(requires, provisions []types.Capability) []types.Capability {
	have := make(map[types.Capability]struct{}, len(provisions))
	for _, p := range provisions {
		have[p] = struct{}{}
	}

	missing := make(map[types.Capability]struct{})
	for _, req := range requires {
		if _, ok := have[req]; !ok {
			missing[req] = struct{}{}
		}
	}

	out := make([]types.Capability, 0, len(missing))
	for req := range missing {
		out = append(out, req)
	}
	sort.Strings(out)
	return out
}

// listContainers enumerates containers within the registry timeout. A lister
// that ignores cancellation is abandoned once the timeout expires.
func (r *Registry) listContainers(ctx context.Context) ([]types.RunningContainer, error) {
	if r.lister == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		containers []types.RunningContainer
		err        error
	}
	done := make(chan result, 1)
	go func() {
		containers, err := r.lister.ListRunningContainers(ctx)
		done <- result{containers: containers, err: err}
	}()

	select {
	case res := <-done:
		return res.containers, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func configTag(key, val string) types.Capability {
	return types.CapabilityConfig + key + "=" + val
}
