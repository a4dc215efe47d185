package types

import (
	"encoding/json"
	"time"
)

// Capability is an opaque provision tag such as "config:ENABLE_AUTH=true",
// "image:sample-agent", "agent:Planner" or "action:Add". The namespace is
// informative only; matching is exact.
type Capability = string

// Capability namespaces
const (
	CapabilityConfig = "config:"
	CapabilityImage  = "image:"
	CapabilityAgent  = "agent:"
	CapabilityAction = "action:"
)

// AgentContainerImage is a deployable image and its capability contract
type AgentContainerImage struct {
	ImageName   string       `json:"imageName"`
	Description string       `json:"description,omitempty"`
	Provides    []Capability `json:"provides,omitempty"`
	Requires    []Capability `json:"requires,omitempty"`
	APIPort     int          `json:"apiPort,omitempty"`
	ExtraPorts  []int        `json:"extraPorts,omitempty"`
}

// Connectivity tells how to reach a running container
type Connectivity struct {
	PublicURL string `json:"publicUrl"`
	APIPort   int    `json:"apiPort"`
	Ports     []int  `json:"ports,omitempty"`
}

// RunningContainer is a container confirmed running on a backend
type RunningContainer struct {
	ID           string              `json:"containerId"`
	Image        AgentContainerImage `json:"image"`
	Agents       []AgentDescriptor   `json:"agents"`
	Owner        string              `json:"owner,omitempty"`
	Connectivity *Connectivity       `json:"connectivity,omitempty"`
	StartedAt    time.Time           `json:"startedAt"`

	// ReservedPorts are the platform ports held for the container until it stops
	ReservedPorts []int `json:"reservedPorts,omitempty"`
}

// Agent looks up a hosted agent by ID
func (c RunningContainer) Agent(agentID string) (AgentDescriptor, bool) {
	for _, agent := range c.Agents {
		if agent.AgentID == agentID {
			return agent, true
		}
	}
	return AgentDescriptor{}, false
}

// StartRequest is a deployment that was sent to a backend but not yet
// confirmed running
type StartRequest struct {
	ContainerID string              `json:"containerId"`
	Image       AgentContainerImage `json:"image"`
	Env         map[string]string   `json:"env,omitempty"`
	Ports       []int               `json:"ports,omitempty"`
	Owner       string              `json:"owner,omitempty"`
	RequestedAt time.Time           `json:"requestedAt"`
}

// BackendInfo is orchestrator-specific container metadata (Docker inspect
// data, Kubernetes pod info). The platform stores it without interpreting it.
type BackendInfo struct {
	Backend string          `json:"backend"`
	Data    json.RawMessage `json:"data,omitempty"`
}
