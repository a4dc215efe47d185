package audit

import (
	"context"

	"github.com/GriffinCanCode/agentplatform/internal/domain/platform"
	"github.com/GriffinCanCode/agentplatform/internal/shared/value"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// redacted replaces secrets in recorded params and results
const redacted = "[REDACTED]"

// secretResults lists methods whose result is a credential
var secretResults = map[string]bool{
	"Login": true,
}

// Wrap returns an API that records every non-accessor call made through it
// into log before delegating to target
func Wrap(target platform.API, log *Log) platform.API {
	return &auditedAPI{target: target, log: log}
}

type auditedAPI struct {
	target platform.API
	log    *Log
}

// forward routes one method through Dispatch
func forward[T any](a *auditedAPI, method string, params interface{}, fn func(platform.API) (T, error)) (T, error) {
	var call func() (T, error)
	if a.target != nil {
		call = func() (T, error) { return fn(a.target) }
	}
	return Dispatch(a.log, method, params, call)
}

// forwardErr routes a method that only returns an error
func forwardErr(a *auditedAPI, method string, params interface{}, fn func(platform.API) error) error {
	_, err := forward(a, method, params, func(t platform.API) (struct{}, error) {
		return struct{}{}, fn(t)
	})
	return err
}

func (a *auditedAPI) GetPlatformConfig(ctx context.Context) (types.PlatformInfo, error) {
	return forward(a, "GetPlatformConfig", nil, func(t platform.API) (types.PlatformInfo, error) {
		return t.GetPlatformConfig(ctx)
	})
}

func (a *auditedAPI) GetContainers(ctx context.Context) ([]types.RunningContainer, error) {
	return forward(a, "GetContainers", nil, func(t platform.API) ([]types.RunningContainer, error) {
		return t.GetContainers(ctx)
	})
}

func (a *auditedAPI) GetContainer(ctx context.Context, containerID string) (types.RunningContainer, error) {
	return forward(a, "GetContainer", containerID, func(t platform.API) (types.RunningContainer, error) {
		return t.GetContainer(ctx, containerID)
	})
}

func (a *auditedAPI) GetPendingStarts(ctx context.Context) ([]types.StartRequest, error) {
	return forward(a, "GetPendingStarts", nil, func(t platform.API) ([]types.StartRequest, error) {
		return t.GetPendingStarts(ctx)
	})
}

func (a *auditedAPI) GetProvisions(ctx context.Context) ([]types.Capability, error) {
	return forward(a, "GetProvisions", nil, func(t platform.API) ([]types.Capability, error) {
		return t.GetProvisions(ctx)
	})
}

func (a *auditedAPI) GetConnections(ctx context.Context) ([]types.PeerConnection, error) {
	return forward(a, "GetConnections", nil, func(t platform.API) ([]types.PeerConnection, error) {
		return t.GetConnections(ctx)
	})
}

func (a *auditedAPI) GetPeerContainers(ctx context.Context, peerID string) ([]types.RunningContainer, error) {
	return forward(a, "GetPeerContainers", peerID, func(t platform.API) ([]types.RunningContainer, error) {
		return t.GetPeerContainers(ctx, peerID)
	})
}

func (a *auditedAPI) GetTokenOwner(ctx context.Context, token string) (platform.TokenInfo, error) {
	return forward(a, "GetTokenOwner", nil, func(t platform.API) (platform.TokenInfo, error) {
		return t.GetTokenOwner(ctx, token)
	})
}

func (a *auditedAPI) GetStats(ctx context.Context) (types.StateStats, error) {
	return forward(a, "GetStats", nil, func(t platform.API) (types.StateStats, error) {
		return t.GetStats(ctx)
	})
}

func (a *auditedAPI) DeployContainer(ctx context.Context, req platform.DeployRequest) (platform.DeployResult, error) {
	return forward(a, "DeployContainer", req, func(t platform.API) (platform.DeployResult, error) {
		return t.DeployContainer(ctx, req)
	})
}

func (a *auditedAPI) ConfirmContainer(ctx context.Context, req platform.ConfirmRequest) (types.RunningContainer, error) {
	return forward(a, "ConfirmContainer", req, func(t platform.API) (types.RunningContainer, error) {
		return t.ConfirmContainer(ctx, req)
	})
}

func (a *auditedAPI) StopContainer(ctx context.Context, containerID string) error {
	return forwardErr(a, "StopContainer", map[string]string{"containerId": containerID}, func(t platform.API) error {
		return t.StopContainer(ctx, containerID)
	})
}

func (a *auditedAPI) InvokeAction(ctx context.Context, req platform.InvokeRequest) (value.Value, error) {
	return forward(a, "InvokeAction", req, func(t platform.API) (value.Value, error) {
		return t.InvokeAction(ctx, req)
	})
}

func (a *auditedAPI) ConnectPeer(ctx context.Context, req platform.ConnectRequest) (types.PeerConnection, error) {
	params := req
	if params.Token != "" {
		params.Token = redacted
	}
	return forward(a, "ConnectPeer", params, func(t platform.API) (types.PeerConnection, error) {
		return t.ConnectPeer(ctx, req)
	})
}

func (a *auditedAPI) DisconnectPeer(ctx context.Context, peerID string) error {
	return forwardErr(a, "DisconnectPeer", map[string]string{"peerId": peerID}, func(t platform.API) error {
		return t.DisconnectPeer(ctx, peerID)
	})
}

func (a *auditedAPI) Login(ctx context.Context, req platform.LoginRequest) (string, error) {
	params := platform.LoginRequest{User: req.User, Password: redacted}
	return forward(a, "Login", params, func(t platform.API) (string, error) {
		return t.Login(ctx, req)
	})
}

func (a *auditedAPI) AddUser(ctx context.Context, req platform.UserRequest) error {
	params := platform.UserRequest{Name: req.Name, Password: redacted, Roles: req.Roles}
	return forwardErr(a, "AddUser", params, func(t platform.API) error {
		return t.AddUser(ctx, req)
	})
}

func (a *auditedAPI) RemoveUser(ctx context.Context, name string) error {
	return forwardErr(a, "RemoveUser", map[string]string{"name": name}, func(t platform.API) error {
		return t.RemoveUser(ctx, name)
	})
}

var _ platform.API = (*auditedAPI)(nil)
