package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/GriffinCanCode/agentplatform/internal/types"
)

var (
	ErrNoFreePort       = errors.New("no free port in range")
	ErrPendingExists    = errors.New("container start already pending")
	ErrContainerExists  = errors.New("container already registered")
	ErrPendingNotFound  = errors.New("no pending start for container")
	ErrInvalidPortRange = errors.New("invalid port range")
)

// PortRange is the inclusive range reserved ports are taken from
type PortRange struct {
	Start int
	End   int
}

// Size returns the number of ports in the range
func (r PortRange) Size() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Store is the exclusive owner of the platform state
type Store struct {
	mu sync.RWMutex

	tokens        map[string]string
	containers    map[string]types.RunningContainer
	pendingStarts map[string]types.StartRequest
	connections   map[string]types.PeerConnection
	backendInfo   map[string]types.BackendInfo
	usedPorts     map[int]struct{}
	credentials   map[string]string
	roles         map[string][]string

	ports      PortRange
	bcryptCost int
	logger     *zap.Logger
}

// NewStore creates an empty store reserving ports from the given range
func NewStore(ports PortRange) *Store {
	s := &Store{
		ports:      ports,
		bcryptCost: bcrypt.DefaultCost,
		logger:     zap.NewNop(),
	}
	s.clear()
	return s
}

// WithLogger sets the store's logger
func (s *Store) WithLogger(logger *zap.Logger) *Store {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithBcryptCost sets the cost used to hash user passwords
func (s *Store) WithBcryptCost(cost int) *Store {
	s.bcryptCost = cost
	return s
}

// clear allocates empty collections. Caller holds the lock or owns s.
func (s *Store) clear() {
	s.tokens = make(map[string]string)
	s.containers = make(map[string]types.RunningContainer)
	s.pendingStarts = make(map[string]types.StartRequest)
	s.connections = make(map[string]types.PeerConnection)
	s.backendInfo = make(map[string]types.BackendInfo)
	s.usedPorts = make(map[int]struct{})
	s.credentials = make(map[string]string)
	s.roles = make(map[string][]string)
}

// ============================================================================
// Containers
// ============================================================================

// AddPending records a container start that has not been confirmed yet
func (s *Store) AddPending(req types.StartRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pendingStarts[req.ContainerID]; ok {
		return fmt.Errorf("%w: %s", ErrPendingExists, req.ContainerID)
	}
	if _, ok := s.containers[req.ContainerID]; ok {
		return fmt.Errorf("%w: %s", ErrContainerExists, req.ContainerID)
	}
	s.pendingStarts[req.ContainerID] = cloneStartRequest(req)
	return nil
}

// Pending returns a pending start request
func (s *Store) Pending(containerID string) (types.StartRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.pendingStarts[containerID]
	return cloneStartRequest(req), ok
}

// PendingStarts returns all pending start requests ordered by container ID
func (s *Store) PendingStarts() []types.StartRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.StartRequest, 0, len(s.pendingStarts))
	for _, req := range s.pendingStarts {
		out = append(out, cloneStartRequest(req))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContainerID < out[j].ContainerID })
	return out
}

// AbortPending drops a pending start and releases its ports
func (s *Store) AbortPending(containerID string) (types.StartRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.pendingStarts[containerID]
	if !ok {
		return types.StartRequest{}, false
	}
	delete(s.pendingStarts, containerID)
	s.releaseLocked(req.Ports)
	return req, true
}

// ConfirmContainer turns a pending start into a running container. The
// container keeps the ports reserved for its start request.
func (s *Store) ConfirmContainer(c types.RunningContainer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.pendingStarts[c.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPendingNotFound, c.ID)
	}
	delete(s.pendingStarts, c.ID)

	stored := cloneContainer(c)
	stored.ReservedPorts = mergePorts(stored.ReservedPorts, req.Ports)
	s.containers[c.ID] = stored
	return nil
}

// PutContainer registers or replaces a running container
func (s *Store) PutContainer(c types.RunningContainer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.containers[c.ID] = cloneContainer(c)
}

// Container returns a running container
func (s *Store) Container(id string) (types.RunningContainer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.containers[id]
	if !ok {
		return types.RunningContainer{}, false
	}
	return cloneContainer(c), true
}

// Containers returns all running containers ordered by ID
func (s *Store) Containers() []types.RunningContainer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.RunningContainer, 0, len(s.containers))
	for _, c := range s.containers {
		out = append(out, cloneContainer(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveContainer forgets a container in one step: its running or pending
// entry, its backend metadata, its ports and the tokens it owns.
func (s *Store) RemoveContainer(id string) (types.RunningContainer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, running := s.containers[id]
	req, pending := s.pendingStarts[id]
	if !running && !pending {
		return types.RunningContainer{}, false
	}

	delete(s.containers, id)
	delete(s.pendingStarts, id)
	delete(s.backendInfo, id)
	s.releaseLocked(req.Ports)
	s.releaseLocked(c.ReservedPorts)
	if c.Connectivity != nil {
		s.releaseLocked(c.Connectivity.Ports)
	}
	s.revokeOwnerLocked(id)

	if !running {
		c = types.RunningContainer{ID: id, Image: req.Image}
	}
	return c, true
}

// SetBackendInfo stores orchestrator metadata for a container. Data is kept
// compact, the form it has in snapshots; data that is not JSON is stored as
// a JSON string.
func (s *Store) SetBackendInfo(containerID string, info types.BackendInfo) {
	info = cloneBackendInfo(info)
	if len(info.Data) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, info.Data); err == nil {
			info.Data = buf.Bytes()
		} else {
			s.logger.Warn("Backend metadata is not JSON, storing it as text",
				zap.String("container_id", containerID), zap.Error(err))
			quoted, _ := sonic.ConfigStd.Marshal(string(info.Data))
			info.Data = quoted
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.backendInfo[containerID] = info
}

// BackendInfo returns orchestrator metadata for a container
func (s *Store) BackendInfo(containerID string) (types.BackendInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.backendInfo[containerID]
	return cloneBackendInfo(info), ok
}

// ============================================================================
// Peer connections
// ============================================================================

// PutConnection registers or replaces a peer connection
func (s *Store) PutConnection(p types.PeerConnection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connections[p.ID] = cloneConnection(p)
}

// Connection returns a peer connection
func (s *Store) Connection(id string) (types.PeerConnection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.connections[id]
	return cloneConnection(p), ok
}

// Connections returns all peer connections ordered by ID
func (s *Store) Connections() []types.PeerConnection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.PeerConnection, 0, len(s.connections))
	for _, p := range s.connections {
		out = append(out, cloneConnection(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveConnection forgets a peer connection
func (s *Store) RemoveConnection(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connections[id]; !ok {
		return false
	}
	delete(s.connections, id)
	return true
}

// ============================================================================
// Ports
// ============================================================================

// ReservePort reserves the lowest free port of the range
func (s *Store) ReservePort() (int, error) {
	ports, err := s.ReservePorts(1)
	if err != nil {
		return 0, err
	}
	return ports[0], nil
}

// ReservePorts reserves n ports at once, or none if fewer than n are free
func (s *Store) ReservePorts(n int) ([]int, error) {
	if n <= 0 {
		return []int{}, nil
	}
	if s.ports.Size() == 0 {
		return nil, ErrInvalidPortRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int, 0, n)
	for port := s.ports.Start; port <= s.ports.End && len(out) < n; port++ {
		if _, used := s.usedPorts[port]; !used {
			out = append(out, port)
		}
	}
	if len(out) < n {
		return nil, fmt.Errorf("%w: need %d, %d free", ErrNoFreePort, n, len(out))
	}
	for _, port := range out {
		s.usedPorts[port] = struct{}{}
	}
	return out, nil
}

// ReleasePorts returns ports to the pool
func (s *Store) ReleasePorts(ports ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked(ports)
}

func (s *Store) releaseLocked(ports []int) {
	for _, port := range ports {
		delete(s.usedPorts, port)
	}
}

// ReservedPorts returns the reserved ports in ascending order
func (s *Store) ReservedPorts() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedPorts(s.usedPorts)
}

// ============================================================================
// Tokens
// ============================================================================

// IssueToken creates a bearer token for owner
func (s *Store) IssueToken(owner string) string {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[token] = owner
	return token
}

// EnsureToken returns a token owned by owner, issuing one if it has none
func (s *Store) EnsureToken(owner string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, o := range s.tokens {
		if o == owner {
			return token
		}
	}
	token := uuid.NewString()
	s.tokens[token] = owner
	return token
}

// TokenOwner returns the owner of a token
func (s *Store) TokenOwner(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, ok := s.tokens[token]
	return owner, ok
}

// RevokeToken invalidates a single token
func (s *Store) RevokeToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token]; !ok {
		return false
	}
	delete(s.tokens, token)
	return true
}

// RevokeOwner invalidates every token of owner and returns how many were removed
func (s *Store) RevokeOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revokeOwnerLocked(owner)
}

func (s *Store) revokeOwnerLocked(owner string) int {
	n := 0
	for token, o := range s.tokens {
		if o == owner {
			delete(s.tokens, token)
			n++
		}
	}
	return n
}

// ============================================================================
// Users and roles
// ============================================================================

// PutUser creates or updates a user with a bcrypt-hashed password
func (s *Store) PutUser(name, password string, roles []string) error {
	if name == "" {
		return errors.New("user name cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.credentials[name] = string(hash)
	s.roles[name] = append([]string(nil), roles...)
	return nil
}

// CheckPassword reports whether password matches the stored hash of name
func (s *Store) CheckPassword(name, password string) bool {
	s.mu.RLock()
	hash, ok := s.credentials[name]
	s.mu.RUnlock()

	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DeleteUser removes a user together with its roles and tokens
func (s *Store) DeleteUser(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[name]; !ok {
		return false
	}
	delete(s.credentials, name)
	delete(s.roles, name)
	s.revokeOwnerLocked(name)
	return true
}

// Users returns all user names in sorted order
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.credentials))
	for name := range s.credentials {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SetRoles replaces the roles of a user
func (s *Store) SetRoles(name string, roles []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roles[name] = append([]string(nil), roles...)
}

// Roles returns the roles of a user
func (s *Store) Roles(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.roles[name]...)
}

// ============================================================================
// Whole-state operations
// ============================================================================

// Snapshot returns a deep copy of the whole state taken under one lock
func (s *Store) Snapshot() types.PlatformState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := types.NewPlatformState()
	for k, v := range s.tokens {
		st.Tokens[k] = v
	}
	for k, v := range s.containers {
		st.Containers[k] = cloneContainer(v)
	}
	for k, v := range s.pendingStarts {
		st.PendingStarts[k] = cloneStartRequest(v)
	}
	for k, v := range s.connections {
		st.Connections[k] = cloneConnection(v)
	}
	for k, v := range s.backendInfo {
		st.BackendInfo[k] = cloneBackendInfo(v)
	}
	st.UsedPorts = sortedPorts(s.usedPorts)
	for k, v := range s.credentials {
		st.Credentials[k] = v
	}
	for k, v := range s.roles {
		st.Roles[k] = append([]string(nil), v...)
	}
	return st
}

// Replace clears every collection and repopulates it from st. Entries not
// present in st do not survive.
func (s *Store) Replace(st types.PlatformState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clear()
	for k, v := range st.Tokens {
		s.tokens[k] = v
	}
	for k, v := range st.Containers {
		s.containers[k] = cloneContainer(v)
	}
	for k, v := range st.PendingStarts {
		s.pendingStarts[k] = cloneStartRequest(v)
	}
	for k, v := range st.Connections {
		s.connections[k] = cloneConnection(v)
	}
	for k, v := range st.BackendInfo {
		s.backendInfo[k] = cloneBackendInfo(v)
	}
	for _, port := range st.UsedPorts {
		s.usedPorts[port] = struct{}{}
	}
	for k, v := range st.Credentials {
		s.credentials[k] = v
	}
	for k, v := range st.Roles {
		s.roles[k] = append([]string(nil), v...)
	}
}

// Reset empties the store
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clear()
}

// Stats returns collection sizes
func (s *Store) Stats() types.StateStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return types.StateStats{
		Containers:    len(s.containers),
		PendingStarts: len(s.pendingStarts),
		Connections:   len(s.connections),
		UsedPorts:     len(s.usedPorts),
		Tokens:        len(s.tokens),
		Users:         len(s.credentials),
	}
}

// mergePorts returns the sorted union of a and b
func mergePorts(a, b []int) []int {
	if len(a)+len(b) == 0 {
		return nil
	}
	set := make(map[int]struct{}, len(a)+len(b))
	for _, p := range a {
		set[p] = struct{}{}
	}
	for _, p := range b {
		set[p] = struct{}{}
	}
	return sortedPorts(set)
}

func sortedPorts(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for port := range set {
		out = append(out, port)
	}
	sort.Ints(out)
	return out
}
