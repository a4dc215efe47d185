package types

import "time"

// PlatformInfo describes this platform to clients and peers
type PlatformInfo struct {
	ID                   string   `json:"id"`
	PublicURL            string   `json:"publicUrl,omitempty"`
	ContainerEnvironment string   `json:"containerEnvironment"`
	PlatformEnvironment  string   `json:"platformEnvironment"`
	SessionPolicy        string   `json:"sessionPolicy"`
	AuthEnabled          bool     `json:"authEnabled"`
	Provisions           []string `json:"provisions,omitempty"`
}

// PeerConnection is a federated platform this platform is connected to
type PeerConnection struct {
	ID          string       `json:"id"`
	BaseURL     string       `json:"baseUrl"`
	Token       string       `json:"token,omitempty"`
	Info        PlatformInfo `json:"info"`
	ConnectedAt time.Time    `json:"connectedAt"`
}

// PlatformState is the recoverable runtime state of the platform. It is
// written to Session.json on every snapshot and read back on startup.
type PlatformState struct {
	// Tokens maps an issued bearer token to its owner (user or container ID)
	Tokens map[string]string `json:"tokens"`
	// Containers holds the containers confirmed running
	Containers map[string]RunningContainer `json:"runningContainers"`
	// PendingStarts holds containers requested but not yet confirmed
	PendingStarts map[string]StartRequest `json:"pendingStarts"`
	// Connections holds connected peer platforms keyed by peer ID
	Connections map[string]PeerConnection `json:"connectedPlatforms"`
	// BackendInfo holds backend-specific metadata keyed by container ID
	BackendInfo map[string]BackendInfo `json:"backendInfo"`
	// UsedPorts is the set of reserved network ports, kept sorted
	UsedPorts []int `json:"usedPorts"`
	// Credentials maps user names to bcrypt password hashes
	Credentials map[string]string `json:"userCredentials"`
	// Roles maps user names to their granted roles/privileges
	Roles map[string][]string `json:"roles"`
}

// NewPlatformState returns an empty state with every collection allocated
func NewPlatformState() PlatformState {
	return PlatformState{
		Tokens:        map[string]string{},
		Containers:    map[string]RunningContainer{},
		PendingStarts: map[string]StartRequest{},
		Connections:   map[string]PeerConnection{},
		BackendInfo:   map[string]BackendInfo{},
		UsedPorts:     []int{},
		Credentials:   map[string]string{},
		Roles:         map[string][]string{},
	}
}

// StateStats summarizes the platform state
type StateStats struct {
	Containers    int `json:"containers"`
	PendingStarts int `json:"pending_starts"`
	Connections   int `json:"connections"`
	UsedPorts     int `json:"used_ports"`
	Tokens        int `json:"tokens"`
	Users         int `json:"users"`
}
