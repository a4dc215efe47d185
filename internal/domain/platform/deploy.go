package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentplatform/internal/backend"
	"github.com/GriffinCanCode/agentplatform/internal/shared/id"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// Deployment outcomes reported to metrics
const (
	outcomeRunning  = "running"
	outcomePending  = "pending"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// DeployContainer starts a container of req.Image once every requirement of
// the image is provided. The container is confirmed running right away when
// the backend can describe it, and stays pending otherwise.
func (s *Service) DeployContainer(ctx context.Context, req DeployRequest) (DeployResult, error) {
	image := req.Image
	if strings.TrimSpace(image.ImageName) == "" {
		return DeployResult{}, fmt.Errorf("%w: image name is required", ErrInvalidRequest)
	}
	if s.backend == nil {
		return DeployResult{}, backend.ErrUnavailable
	}

	if missing := s.capabilities.CheckMissing(ctx, image); len(missing) > 0 {
		s.recordDeployment(outcomeRejected)
		s.logger.Info("Deployment rejected",
			zap.String("image", image.ImageName),
			zap.Strings("missing", missing))
		return DeployResult{}, &MissingRequirementsError{Image: image.ImageName, Missing: missing}
	}

	ports, err := s.store.ReservePorts(portCount(image))
	if err != nil {
		s.recordDeployment(outcomeFailed)
		return DeployResult{}, err
	}

	start := types.StartRequest{
		ContainerID: id.NewContainerID().String(),
		Image:       image,
		Env:         req.Env,
		Ports:       ports,
		Owner:       req.Owner,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.store.AddPending(start); err != nil {
		s.store.ReleasePorts(ports...)
		s.recordDeployment(outcomeFailed)
		return DeployResult{}, err
	}

	if _, err := s.backend.StartContainer(ctx, start); err != nil {
		s.store.AbortPending(start.ContainerID)
		s.recordDeployment(outcomeFailed)
		s.logger.Error("Container start failed",
			zap.String("container_id", start.ContainerID),
			zap.String("image", image.ImageName),
			zap.Error(err))
		return DeployResult{}, err
	}

	result := DeployResult{
		ContainerID: start.ContainerID,
		Status:      StatusPending,
		Ports:       ports,
	}

	if running, ok := s.describe(ctx, start); ok {
		if err := s.store.ConfirmContainer(running); err == nil {
			result.Status = StatusRunning
			result.Container = &running
		}
	}
	s.inspect(ctx, start.ContainerID)
	s.refreshGauges()

	if result.Status == StatusRunning {
		s.recordDeployment(outcomeRunning)
	} else {
		s.recordDeployment(outcomePending)
	}
	s.logger.Info("Container deployed",
		zap.String("container_id", start.ContainerID),
		zap.String("image", image.ImageName),
		zap.String("status", result.Status),
		zap.Ints("ports", ports))
	return result, nil
}

// ConfirmContainer completes a pending start with the agents the container
// reported
func (s *Service) ConfirmContainer(ctx context.Context, req ConfirmRequest) (types.RunningContainer, error) {
	start, ok := s.store.Pending(req.ContainerID)
	if !ok {
		return types.RunningContainer{}, fmt.Errorf("%w: no pending start %s", ErrContainerNotFound, req.ContainerID)
	}

	running := types.RunningContainer{
		ID:           start.ContainerID,
		Image:        start.Image,
		Agents:       req.Agents,
		Owner:        start.Owner,
		Connectivity: connectivityFor(start, req.PublicURL),
		StartedAt:    time.Now().UTC(),
	}
	if err := s.store.ConfirmContainer(running); err != nil {
		return types.RunningContainer{}, fmt.Errorf("%w: %v", ErrContainerNotFound, err)
	}
	s.refreshGauges()

	s.logger.Info("Container confirmed",
		zap.String("container_id", running.ID),
		zap.Int("agents", len(running.Agents)))
	return running, nil
}

// StopContainer stops a running or pending container and forgets it
func (s *Service) StopContainer(ctx context.Context, containerID string) error {
	_, running := s.store.Container(containerID)
	_, pending := s.store.Pending(containerID)
	if !running && !pending {
		return fmt.Errorf("%w: %s", ErrContainerNotFound, containerID)
	}
	if s.backend == nil {
		return backend.ErrUnavailable
	}

	if err := s.backend.StopContainer(ctx, containerID); err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			return err
		}
		s.logger.Warn("Container already gone from backend",
			zap.String("container_id", containerID))
	}

	s.store.RemoveContainer(containerID)
	s.refreshGauges()

	s.logger.Info("Container stopped", zap.String("container_id", containerID))
	return nil
}

// describe asks the backend for the started container's agents
func (s *Service) describe(ctx context.Context, start types.StartRequest) (types.RunningContainer, bool) {
	describer, ok := s.backend.(backend.Describer)
	if !ok {
		return types.RunningContainer{}, false
	}

	running, err := describer.DescribeContainer(ctx, start.ContainerID)
	if err != nil {
		if !errors.Is(err, backend.ErrNotDescribed) {
			s.logger.Warn("Describing container failed",
				zap.String("container_id", start.ContainerID),
				zap.Error(err))
		}
		return types.RunningContainer{}, false
	}

	running.ID = start.ContainerID
	running.Image = start.Image
	running.Owner = start.Owner
	if running.Connectivity == nil {
		running.Connectivity = connectivityFor(start, "")
	}
	if running.StartedAt.IsZero() {
		running.StartedAt = time.Now().UTC()
	}
	return running, true
}

// inspect stores the backend's metadata for a container when available
func (s *Service) inspect(ctx context.Context, containerID string) {
	inspector, ok := s.backend.(backend.Inspector)
	if !ok {
		return
	}
	info, err := inspector.InspectContainer(ctx, containerID)
	if err != nil {
		if !errors.Is(err, backend.ErrNotSupported) {
			s.logger.Debug("Inspecting container failed",
				zap.String("container_id", containerID),
				zap.Error(err))
		}
		return
	}
	s.store.SetBackendInfo(containerID, info)
}

// portCount is the number of host ports an image needs
func portCount(image types.AgentContainerImage) int {
	n := len(image.ExtraPorts)
	if image.APIPort > 0 {
		n++
	}
	return n
}

// connectivityFor derives a container's endpoint from its reserved ports.
// The first port serves the agent API.
func connectivityFor(start types.StartRequest, publicURL string) *types.Connectivity {
	if len(start.Ports) == 0 && publicURL == "" {
		return nil
	}
	conn := &types.Connectivity{
		PublicURL: publicURL,
		Ports:     append([]int(nil), start.Ports...),
	}
	if len(start.Ports) > 0 {
		conn.APIPort = start.Ports[0]
		if conn.PublicURL == "" {
			conn.PublicURL = fmt.Sprintf("http://localhost:%d", conn.APIPort)
		}
	}
	return conn
}
