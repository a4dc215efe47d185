// Package docker provides a Docker Engine backend for agent containers.
//
// The platform's view of a container travels with the container as labels:
// the image contract (agentplatform.image, .provides, .requires), the owner,
// and, when the image declares them, the hosted agents (agentplatform.agents,
// a JSON array usually baked into the image at build time).
package docker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentplatform/internal/backend"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// Name of the backend
const Name = "docker"

const (
	labelManagedBy   = "agentplatform.managed-by"
	labelContainerID = "agentplatform.container-id"
	labelOwner       = "agentplatform.owner"
	labelImage       = "agentplatform.image"
	LabelProvides    = "agentplatform.provides"
	LabelRequires    = "agentplatform.requires"
	LabelAgents      = "agentplatform.agents"
	managedByValue   = "agentplatform"

	// stopTimeout is how long to wait for graceful container stop before SIGKILL
	stopTimeout = 10 * time.Second
)

// Adapter implements backend.Backend using the Docker Engine API
type Adapter struct {
	client     *dockerclient.Client
	network    string
	publicHost string
	logger     *zap.Logger
}

// New creates a Docker adapter. Uses DOCKER_HOST or the default socket.
// publicHost is the host name clients use to reach published ports.
func New(networkName, publicHost string, logger *zap.Logger) (*Adapter, error) {
	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if publicHost == "" {
		publicHost = "localhost"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: cli, network: networkName, publicHost: publicHost, logger: logger}, nil
}

// Name returns "docker"
func (a *Adapter) Name() string {
	return Name
}

// Close releases the Docker client
func (a *Adapter) Close() error {
	return a.client.Close()
}

// EnsureNetwork creates the configured network if it doesn't exist
func (a *Adapter) EnsureNetwork(ctx context.Context) error {
	if a.network == "" {
		return nil
	}

	nets, err := a.client.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", a.network)),
	})
	if err != nil {
		return fmt.Errorf("list networks: %w", err)
	}
	for _, n := range nets {
		if n.Name == a.network {
			return nil
		}
	}

	_, err = a.client.NetworkCreate(ctx, a.network, network.CreateOptions{
		Driver:     "bridge",
		Attachable: true,
		Labels:     map[string]string{labelManagedBy: managedByValue},
	})
	if err != nil {
		return fmt.Errorf("create network %q: %w", a.network, err)
	}
	a.logger.Info("Created docker network", zap.String("network", a.network))
	return nil
}

// StartContainer creates and starts a container named after req.ContainerID
func (a *Adapter) StartContainer(ctx context.Context, req types.StartRequest) (string, error) {
	if req.Image.ImageName == "" {
		return "", fmt.Errorf("image name is required")
	}

	exposed, bindings, err := portBindings(req)
	if err != nil {
		return "", err
	}

	labels, err := containerLabels(req)
	if err != nil {
		return "", err
	}

	// Build environment
	env := make([]string, 0, len(req.Env)+2)
	env = append(env, "AGENT_CONTAINER_ID="+req.ContainerID)
	if req.Image.APIPort > 0 {
		env = append(env, "AGENT_API_PORT="+strconv.Itoa(req.Image.APIPort))
	}
	keys := make([]string, 0, len(req.Env))
	for k := range req.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+req.Env[k])
	}

	containerCfg := &container.Config{
		Image:        req.Image.ImageName,
		Env:          env,
		Labels:       labels,
		ExposedPorts: exposed,
	}
	hostCfg := &container.HostConfig{
		PortBindings:  bindings,
		RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
	}
	var networkCfg *network.NetworkingConfig
	if a.network != "" {
		networkCfg = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{a.network: {}},
		}
	}

	resp, err := a.client.ContainerCreate(ctx, containerCfg, hostCfg, networkCfg, nil, req.ContainerID)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	if err := a.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Best-effort cleanup
		_ = a.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("start container: %w", err)
	}

	a.logger.Info("Started container",
		zap.String("container_id", req.ContainerID),
		zap.String("docker_id", resp.ID),
		zap.String("image", req.Image.ImageName))
	return req.ContainerID, nil
}

// StopContainer stops and removes a container
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	timeout := int(stopTimeout.Seconds())
	if err := a.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		if dockerclient.IsErrNotFound(err) {
			return fmt.Errorf("%w: %s", backend.ErrNotFound, id)
		}
		return fmt.Errorf("stop container %s: %w", id, err)
	}
	if err := a.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		if !dockerclient.IsErrNotFound(err) {
			return fmt.Errorf("remove container %s: %w", id, err)
		}
	}
	return nil
}

// ListRunningContainers returns the running containers this platform manages
func (a *Adapter) ListRunningContainers(ctx context.Context) ([]types.RunningContainer, error) {
	list, err := a.client.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(
			filters.Arg("label", labelManagedBy+"="+managedByValue),
			filters.Arg("status", "running"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make([]types.RunningContainer, 0, len(list))
	for _, c := range list {
		rc, err := fromSummary(c, a.publicHost)
		if err != nil {
			a.logger.Warn("Skipping container with unreadable labels", zap.String("docker_id", c.ID), zap.Error(err))
			continue
		}
		out = append(out, rc)
	}
	return out, nil
}

// DescribeContainer reads the hosted agents from the container's labels
func (a *Adapter) DescribeContainer(ctx context.Context, id string) (types.RunningContainer, error) {
	inspect, err := a.client.ContainerInspect(ctx, id)
	if err != nil {
		if dockerclient.IsErrNotFound(err) {
			return types.RunningContainer{}, fmt.Errorf("%w: %s", backend.ErrNotFound, id)
		}
		return types.RunningContainer{}, fmt.Errorf("inspect container: %w", err)
	}
	return fromInspect(inspect, a.publicHost)
}

// InspectContainer returns the raw Docker inspect document
func (a *Adapter) InspectContainer(ctx context.Context, id string) (types.BackendInfo, error) {
	inspect, err := a.client.ContainerInspect(ctx, id)
	if err != nil {
		if dockerclient.IsErrNotFound(err) {
			return types.BackendInfo{}, fmt.Errorf("%w: %s", backend.ErrNotFound, id)
		}
		return types.BackendInfo{}, fmt.Errorf("inspect container: %w", err)
	}

	data, err := sonic.ConfigStd.Marshal(inspect)
	if err != nil {
		return types.BackendInfo{}, fmt.Errorf("marshal inspect: %w", err)
	}
	return types.BackendInfo{Backend: Name, Data: data}, nil
}

// --- helpers ---

// containerPorts lists the image's ports, API port first
func containerPorts(img types.AgentContainerImage) []int {
	if img.APIPort <= 0 {
		return nil
	}
	return append([]int{img.APIPort}, img.ExtraPorts...)
}

// portBindings publishes the image's ports on the reserved host ports, pairwise
func portBindings(req types.StartRequest) (nat.PortSet, nat.PortMap, error) {
	ports := containerPorts(req.Image)
	if len(ports) == 0 {
		return nil, nil, nil
	}
	if len(req.Ports) < len(ports) {
		return nil, nil, fmt.Errorf("image %s exposes %d ports but %d were reserved",
			req.Image.ImageName, len(ports), len(req.Ports))
	}

	exposed := make(nat.PortSet, len(ports))
	bindings := make(nat.PortMap, len(ports))
	for i, p := range ports {
		natPort, err := nat.NewPort("tcp", strconv.Itoa(p))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid container port %d: %w", p, err)
		}
		exposed[natPort] = struct{}{}
		bindings[natPort] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(req.Ports[i])}}
	}
	return exposed, bindings, nil
}

// containerLabels records the image contract and ownership on the container
func containerLabels(req types.StartRequest) (map[string]string, error) {
	image, err := sonic.ConfigStd.Marshal(req.Image)
	if err != nil {
		return nil, fmt.Errorf("marshal image: %w", err)
	}

	labels := map[string]string{
		labelManagedBy:   managedByValue,
		labelContainerID: req.ContainerID,
		labelImage:       string(image),
	}
	if req.Owner != "" {
		labels[labelOwner] = req.Owner
	}
	if len(req.Image.Provides) > 0 {
		labels[LabelProvides] = strings.Join(req.Image.Provides, ",")
	}
	if len(req.Image.Requires) > 0 {
		labels[LabelRequires] = strings.Join(req.Image.Requires, ",")
	}
	return labels, nil
}

// imageFromLabels restores the image contract. The JSON label wins; the
// comma-separated labels cover images started outside this platform.
func imageFromLabels(labels map[string]string, fallbackName string) (types.AgentContainerImage, error) {
	var img types.AgentContainerImage
	if raw, ok := labels[labelImage]; ok && raw != "" {
		if err := sonic.ConfigStd.UnmarshalFromString(raw, &img); err != nil {
			return img, fmt.Errorf("decode %s label: %w", labelImage, err)
		}
		return img, nil
	}

	img.ImageName = fallbackName
	img.Provides = splitList(labels[LabelProvides])
	img.Requires = splitList(labels[LabelRequires])
	return img, nil
}

// agentsFromLabels decodes the hosted agents; ok is false when the label is absent
func agentsFromLabels(labels map[string]string) ([]types.AgentDescriptor, bool, error) {
	raw, ok := labels[LabelAgents]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, false, nil
	}
	var agents []types.AgentDescriptor
	if err := sonic.ConfigStd.UnmarshalFromString(raw, &agents); err != nil {
		return nil, true, fmt.Errorf("decode %s label: %w", LabelAgents, err)
	}
	return agents, true, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// connectivity builds the public endpoint from host ports ordered like containerPorts
func connectivity(publicHost string, hostPorts []int) *types.Connectivity {
	if len(hostPorts) == 0 {
		return nil
	}
	return &types.Connectivity{
		PublicURL: fmt.Sprintf("http://%s:%d", publicHost, hostPorts[0]),
		APIPort:   hostPorts[0],
		Ports:     hostPorts,
	}
}

// hostPortsFromSummary maps the image's ports to their published host ports
func hostPortsFromSummary(img types.AgentContainerImage, published []dockertypes.Port) []int {
	byPrivate := make(map[int]int, len(published))
	for _, p := range published {
		if p.PublicPort != 0 {
			byPrivate[int(p.PrivatePort)] = int(p.PublicPort)
		}
	}

	var out []int
	for _, p := range containerPorts(img) {
		if host, ok := byPrivate[p]; ok {
			out = append(out, host)
		}
	}
	return out
}

func hostPortsFromInspect(img types.AgentContainerImage, inspect dockertypes.ContainerJSON) []int {
	if inspect.NetworkSettings == nil {
		return nil
	}

	var out []int
	for _, p := range containerPorts(img) {
		natPort, err := nat.NewPort("tcp", strconv.Itoa(p))
		if err != nil {
			continue
		}
		for _, b := range inspect.NetworkSettings.Ports[natPort] {
			if host, err := strconv.Atoi(b.HostPort); err == nil && host > 0 {
				out = append(out, host)
				break
			}
		}
	}
	return out
}

func fromSummary(c dockertypes.Container, publicHost string) (types.RunningContainer, error) {
	img, err := imageFromLabels(c.Labels, c.Image)
	if err != nil {
		return types.RunningContainer{}, err
	}
	agents, _, err := agentsFromLabels(c.Labels)
	if err != nil {
		return types.RunningContainer{}, err
	}

	id := c.Labels[labelContainerID]
	if id == "" && len(c.Names) > 0 {
		id = strings.TrimPrefix(c.Names[0], "/")
	}

	return types.RunningContainer{
		ID:           id,
		Image:        img,
		Agents:       agents,
		Owner:        c.Labels[labelOwner],
		Connectivity: connectivity(publicHost, hostPortsFromSummary(img, c.Ports)),
		StartedAt:    time.Unix(c.Created, 0).UTC(),
	}, nil
}

func fromInspect(inspect dockertypes.ContainerJSON, publicHost string) (types.RunningContainer, error) {
	if inspect.ContainerJSONBase == nil || inspect.Config == nil {
		return types.RunningContainer{}, fmt.Errorf("incomplete inspect data")
	}

	labels := inspect.Config.Labels
	img, err := imageFromLabels(labels, inspect.Config.Image)
	if err != nil {
		return types.RunningContainer{}, err
	}
	agents, ok, err := agentsFromLabels(labels)
	if err != nil {
		return types.RunningContainer{}, err
	}
	if !ok {
		return types.RunningContainer{}, fmt.Errorf("%w: %s has no %s label", backend.ErrNotDescribed, inspect.ID, LabelAgents)
	}

	id := labels[labelContainerID]
	if id == "" {
		id = strings.TrimPrefix(inspect.Name, "/")
	}

	startedAt := time.Now().UTC()
	if inspect.State != nil {
		if t, err := time.Parse(time.RFC3339Nano, inspect.State.StartedAt); err == nil {
			startedAt = t.UTC()
		}
	}

	return types.RunningContainer{
		ID:           id,
		Image:        img,
		Agents:       agents,
		Owner:        labels[labelOwner],
		Connectivity: connectivity(publicHost, hostPortsFromInspect(img, inspect)),
		StartedAt:    startedAt,
	}, nil
}

var (
	_ backend.Backend   = (*Adapter)(nil)
	_ backend.Describer = (*Adapter)(nil)
	_ backend.Inspector = (*Adapter)(nil)
)
