package state

import (
	"encoding/json"

	"github.com/GriffinCanCode/agentplatform/internal/types"
)

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneInts(in []int) []int {
	if in == nil {
		return nil
	}
	return append([]int(nil), in...)
}

func cloneImage(img types.AgentContainerImage) types.AgentContainerImage {
	img.Provides = cloneStrings(img.Provides)
	img.Requires = cloneStrings(img.Requires)
	img.ExtraPorts = cloneInts(img.ExtraPorts)
	return img
}

func cloneParameter(p *types.Parameter) *types.Parameter {
	if p == nil {
		return nil
	}
	out := *p
	out.Items = cloneParameter(p.Items)
	return &out
}

func cloneAgents(in []types.AgentDescriptor) []types.AgentDescriptor {
	if in == nil {
		return nil
	}
	out := make([]types.AgentDescriptor, len(in))
	for i, agent := range in {
		out[i] = agent
		if agent.Actions == nil {
			continue
		}
		out[i].Actions = make([]types.Action, len(agent.Actions))
		for j, action := range agent.Actions {
			copied := action
			copied.Result = cloneParameter(action.Result)
			if action.Parameters != nil {
				copied.Parameters = make(types.ActionSignature, len(action.Parameters))
				for name, p := range action.Parameters {
					p.Items = cloneParameter(p.Items)
					copied.Parameters[name] = p
				}
			}
			out[i].Actions[j] = copied
		}
	}
	return out
}

func cloneContainer(c types.RunningContainer) types.RunningContainer {
	c.Image = cloneImage(c.Image)
	c.Agents = cloneAgents(c.Agents)
	c.ReservedPorts = cloneInts(c.ReservedPorts)
	if c.Connectivity != nil {
		conn := *c.Connectivity
		conn.Ports = cloneInts(conn.Ports)
		c.Connectivity = &conn
	}
	return c
}

func cloneStartRequest(req types.StartRequest) types.StartRequest {
	req.Image = cloneImage(req.Image)
	req.Ports = cloneInts(req.Ports)
	if req.Env != nil {
		env := make(map[string]string, len(req.Env))
		for k, v := range req.Env {
			env[k] = v
		}
		req.Env = env
	}
	return req
}

func cloneConnection(p types.PeerConnection) types.PeerConnection {
	p.Info.Provisions = cloneStrings(p.Info.Provisions)
	return p
}

func cloneBackendInfo(info types.BackendInfo) types.BackendInfo {
	if info.Data != nil {
		info.Data = append(json.RawMessage(nil), info.Data...)
	}
	return info
}
