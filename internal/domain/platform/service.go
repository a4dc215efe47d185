package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentplatform/internal/backend"
	"github.com/GriffinCanCode/agentplatform/internal/domain/capability"
	"github.com/GriffinCanCode/agentplatform/internal/domain/state"
	"github.com/GriffinCanCode/agentplatform/internal/domain/validation"
	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentplatform/internal/remote"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// Dependencies are the collaborators of a Service
type Dependencies struct {
	Store     *state.Store
	Backend   backend.Backend
	Validator *validation.Validator
	Remote    *remote.Client
	// CapabilityTimeout bounds one enumeration of running containers
	CapabilityTimeout time.Duration
	Logger            *zap.Logger
	Metrics           *monitoring.Metrics
}

// Service implements API
type Service struct {
	info         types.PlatformInfo
	store        *state.Store
	backend      backend.Backend
	capabilities *capability.Registry
	validator    *validation.Validator
	remote       *remote.Client
	logger       *zap.Logger
	metrics      *monitoring.Metrics
}

// NewService creates the platform service. Provisions are computed from the
// platform configuration in info, the backend's running containers and the
// containers of connected peers.
func NewService(info types.PlatformInfo, deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validator := deps.Validator
	if validator == nil {
		validator = validation.New(nil, logger)
	}
	client := deps.Remote
	if client == nil {
		client = remote.NewClient(remote.DefaultOptions(), logger)
	}

	s := &Service{
		info:      info,
		store:     deps.Store,
		backend:   deps.Backend,
		validator: validator,
		remote:    client,
		logger:    logger,
		metrics:   deps.Metrics,
	}
	s.capabilities = capability.NewRegistry(info, federatedLister{s}, deps.CapabilityTimeout, logger)
	return s
}

// Capabilities returns the service's capability registry
func (s *Service) Capabilities() *capability.Registry {
	return s.capabilities
}

// ============================================================================
// Accessors
// ============================================================================

// GetPlatformConfig describes this platform, including current provisions
func (s *Service) GetPlatformConfig(ctx context.Context) (types.PlatformInfo, error) {
	info := s.info
	info.Provisions = s.capabilities.CurrentProvisions(ctx)
	return info, nil
}

// GetContainers returns the confirmed running containers
func (s *Service) GetContainers(ctx context.Context) ([]types.RunningContainer, error) {
	return s.store.Containers(), nil
}

// GetContainer returns one running container
func (s *Service) GetContainer(ctx context.Context, id string) (types.RunningContainer, error) {
	c, ok := s.store.Container(id)
	if !ok {
		return types.RunningContainer{}, fmt.Errorf("%w: %s", ErrContainerNotFound, id)
	}
	return c, nil
}

// GetPendingStarts returns the starts awaiting confirmation
func (s *Service) GetPendingStarts(ctx context.Context) ([]types.StartRequest, error) {
	return s.store.PendingStarts(), nil
}

// GetProvisions returns the current provisions
func (s *Service) GetProvisions(ctx context.Context) ([]types.Capability, error) {
	return s.capabilities.CurrentProvisions(ctx), nil
}

// GetConnections returns the connected peer platforms
func (s *Service) GetConnections(ctx context.Context) ([]types.PeerConnection, error) {
	return s.store.Connections(), nil
}

// GetPeerContainers fetches the running containers of a connected peer
func (s *Service) GetPeerContainers(ctx context.Context, peerID string) ([]types.RunningContainer, error) {
	conn, ok := s.store.Connection(peerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPeerNotFound, peerID)
	}
	return s.remote.Containers(ctx, conn.BaseURL, conn.Token)
}

// GetTokenOwner resolves a bearer token
func (s *Service) GetTokenOwner(ctx context.Context, token string) (TokenInfo, error) {
	owner, ok := s.store.TokenOwner(token)
	if !ok {
		return TokenInfo{}, ErrInvalidToken
	}
	return TokenInfo{Owner: owner, Roles: s.store.Roles(owner)}, nil
}

// GetStats returns state collection sizes
func (s *Service) GetStats(ctx context.Context) (types.StateStats, error) {
	return s.store.Stats(), nil
}

// ============================================================================
// Users
// ============================================================================

// Login checks credentials and issues a bearer token
func (s *Service) Login(ctx context.Context, req LoginRequest) (string, error) {
	if req.User == "" || !s.store.CheckPassword(req.User, req.Password) {
		return "", ErrInvalidCredentials
	}
	return s.store.IssueToken(req.User), nil
}

// AddUser creates or updates a user
func (s *Service) AddUser(ctx context.Context, req UserRequest) error {
	if req.Name == "" || req.Password == "" {
		return fmt.Errorf("%w: user name and password are required", ErrInvalidRequest)
	}
	return s.store.PutUser(req.Name, req.Password, req.Roles)
}

// RemoveUser deletes a user and revokes its tokens
func (s *Service) RemoveUser(ctx context.Context, name string) error {
	if !s.store.DeleteUser(name) {
		return fmt.Errorf("%w: %s", ErrUserNotFound, name)
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

// refreshGauges publishes state sizes
func (s *Service) refreshGauges() {
	if s.metrics == nil {
		return
	}
	stats := s.store.Stats()
	s.metrics.SetContainers(stats.Containers, stats.PendingStarts)
	s.metrics.SetPortsReserved(stats.UsedPorts)
	s.metrics.SetPeersConnected(stats.Connections)
}

func (s *Service) recordDeployment(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordDeployment(outcome)
	}
}

// federatedLister enumerates the backend's containers followed by those of
// every connected peer. Backend entries are replaced by their confirmed
// version when the store has one. An unreachable peer is skipped; an unreachable
// backend fails the whole enumeration.
type federatedLister struct {
	s *Service
}

func (l federatedLister) ListRunningContainers(ctx context.Context) ([]types.RunningContainer, error) {
	if l.s.backend == nil {
		return nil, backend.ErrUnavailable
	}

	containers, err := l.s.backend.ListRunningContainers(ctx)
	if err != nil {
		return nil, err
	}

	// Confirmed entries carry the agents the container reported
	for i, c := range containers {
		if confirmed, ok := l.s.store.Container(c.ID); ok {
			containers[i] = confirmed
		}
	}

	for _, peer := range l.s.store.Connections() {
		remoteContainers, err := l.s.remote.Containers(ctx, peer.BaseURL, peer.Token)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			l.s.logger.Warn("Skipping unreachable peer in provisions",
				zap.String("peer", peer.ID),
				zap.String("url", peer.BaseURL),
				zap.Error(err))
			continue
		}
		containers = append(containers, remoteContainers...)
	}
	return containers, nil
}

var _ API = (*Service)(nil)
