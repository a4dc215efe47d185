package platform

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentplatform/internal/shared/value"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// InvokeAction validates the arguments against the action's signature and
// forwards the call to the container hosting the agent
func (s *Service) InvokeAction(ctx context.Context, req InvokeRequest) (value.Value, error) {
	if req.Action == "" {
		return value.Null(), fmt.Errorf("%w: action is required", ErrInvalidRequest)
	}

	container, agent, action, err := s.locate(req)
	if err != nil {
		return value.Null(), err
	}

	detail := s.validator.Check(action.Parameters, req.Arguments)
	if s.metrics != nil {
		s.metrics.RecordValidation(detail == nil)
	}
	if detail != nil {
		s.logger.Info("Rejected action arguments",
			zap.String("action", action.Name),
			zap.String("agent_id", agent.AgentID),
			zap.String("path", detail.Path),
			zap.String("reason", string(detail.Reason)))
		return value.Null(), &InvalidArgumentsError{Action: action.Name, Detail: detail}
	}

	if container.Connectivity == nil || container.Connectivity.PublicURL == "" {
		return value.Null(), fmt.Errorf("%w: %s", ErrNoEndpoint, container.ID)
	}

	token := s.store.EnsureToken(container.ID)
	return s.remote.Invoke(ctx, container.Connectivity.PublicURL, action.Name, agent.AgentID, req.Arguments, token)
}

// locate finds the container, agent and action addressed by req
func (s *Service) locate(req InvokeRequest) (types.RunningContainer, types.AgentDescriptor, types.Action, error) {
	var candidates []types.RunningContainer
	if req.ContainerID != "" {
		c, ok := s.store.Container(req.ContainerID)
		if !ok {
			return types.RunningContainer{}, types.AgentDescriptor{}, types.Action{},
				fmt.Errorf("%w: %s", ErrContainerNotFound, req.ContainerID)
		}
		candidates = []types.RunningContainer{c}
	} else {
		candidates = s.store.Containers()
	}

	agentSeen := req.AgentID == ""
	for _, c := range candidates {
		for _, agent := range c.Agents {
			if req.AgentID != "" && agent.AgentID != req.AgentID {
				continue
			}
			agentSeen = true
			if action, ok := agent.Action(req.Action); ok {
				return c, agent, action, nil
			}
		}
	}

	if !agentSeen {
		return types.RunningContainer{}, types.AgentDescriptor{}, types.Action{},
			fmt.Errorf("%w: %s", ErrAgentNotFound, req.AgentID)
	}
	return types.RunningContainer{}, types.AgentDescriptor{}, types.Action{},
		fmt.Errorf("%w: %s", ErrActionNotFound, req.Action)
}
