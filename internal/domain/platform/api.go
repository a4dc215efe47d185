package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/agentplatform/internal/domain/validation"
	"github.com/GriffinCanCode/agentplatform/internal/shared/value"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

var (
	ErrContainerNotFound   = errors.New("container not found")
	ErrAgentNotFound       = errors.New("agent not found")
	ErrActionNotFound      = errors.New("action not found")
	ErrNoEndpoint          = errors.New("container has no endpoint")
	ErrPeerNotFound        = errors.New("peer platform not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrMissingRequirements = errors.New("missing requirements")
	ErrInvalidArguments    = errors.New("invalid arguments")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid token")
)

// API is the platform's public surface. Methods starting with "Get" are
// accessors without side effects.
type API interface {
	GetPlatformConfig(ctx context.Context) (types.PlatformInfo, error)
	GetContainers(ctx context.Context) ([]types.RunningContainer, error)
	GetContainer(ctx context.Context, id string) (types.RunningContainer, error)
	GetPendingStarts(ctx context.Context) ([]types.StartRequest, error)
	GetProvisions(ctx context.Context) ([]types.Capability, error)
	GetConnections(ctx context.Context) ([]types.PeerConnection, error)
	GetPeerContainers(ctx context.Context, peerID string) ([]types.RunningContainer, error)
	GetTokenOwner(ctx context.Context, token string) (TokenInfo, error)
	GetStats(ctx context.Context) (types.StateStats, error)

	DeployContainer(ctx context.Context, req DeployRequest) (DeployResult, error)
	ConfirmContainer(ctx context.Context, req ConfirmRequest) (types.RunningContainer, error)
	StopContainer(ctx context.Context, id string) error
	InvokeAction(ctx context.Context, req InvokeRequest) (value.Value, error)
	ConnectPeer(ctx context.Context, req ConnectRequest) (types.PeerConnection, error)
	DisconnectPeer(ctx context.Context, id string) error
	Login(ctx context.Context, req LoginRequest) (string, error)
	AddUser(ctx context.Context, req UserRequest) error
	RemoveUser(ctx context.Context, name string) error
}

// DeployRequest asks for a new container of Image
type DeployRequest struct {
	Image types.AgentContainerImage `json:"image"`
	Env   map[string]string         `json:"env,omitempty"`
	Owner string                    `json:"owner,omitempty"`
}

// Deployment statuses
const (
	StatusRunning = "running"
	StatusPending = "pending"
)

// DeployResult reports where a deployment ended up
type DeployResult struct {
	ContainerID string                  `json:"containerId"`
	Status      string                  `json:"status"`
	Ports       []int                   `json:"ports,omitempty"`
	Container   *types.RunningContainer `json:"container,omitempty"`
}

// ConfirmRequest completes a pending start with what the container reported
type ConfirmRequest struct {
	ContainerID string                  `json:"containerId"`
	Agents      []types.AgentDescriptor `json:"agents"`
	PublicURL   string                  `json:"publicUrl,omitempty"`
}

// InvokeRequest calls Action on AgentID. ContainerID is optional; without it
// the first running container hosting the agent is used. Without AgentID the
// first agent exposing the action is used.
type InvokeRequest struct {
	ContainerID string                 `json:"containerId,omitempty"`
	AgentID     string                 `json:"agentId,omitempty"`
	Action      string                 `json:"action"`
	Arguments   map[string]value.Value `json:"arguments"`
}

// ConnectRequest federates with the platform at BaseURL
type ConnectRequest struct {
	BaseURL string `json:"baseUrl"`
	Token   string `json:"token,omitempty"`
}

// LoginRequest carries user credentials
type LoginRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// UserRequest creates or updates a user
type UserRequest struct {
	Name     string   `json:"name"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
}

// TokenInfo describes the owner of a bearer token
type TokenInfo struct {
	Owner string   `json:"owner"`
	Roles []string `json:"roles,omitempty"`
}

// MissingRequirementsError lists the requirements no current provision satisfies
type MissingRequirementsError struct {
	Image   string
	Missing []types.Capability
}

func (e *MissingRequirementsError) Error() string {
	return fmt.Sprintf("image %s has unmet requirements: %s", e.Image, strings.Join(e.Missing, ", "))
}

// Is matches ErrMissingRequirements
func (e *MissingRequirementsError) Is(target error) bool {
	return target == ErrMissingRequirements
}

// InvalidArgumentsError carries the first argument that failed validation
type InvalidArgumentsError struct {
	Action string
	Detail *validation.Error
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Action, e.Detail)
}

// Is matches ErrInvalidArguments
func (e *InvalidArgumentsError) Is(target error) bool {
	return target == ErrInvalidArguments
}

// Unwrap exposes the validation detail
func (e *InvalidArgumentsError) Unwrap() error {
	if e.Detail == nil {
		return nil
	}
	return e.Detail
}
