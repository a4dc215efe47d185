package http

import (
	"errors"
	"net/http"

	"github.com/GriffinCanCode/agentplatform/internal/backend"
	"github.com/GriffinCanCode/agentplatform/internal/domain/audit"
	"github.com/GriffinCanCode/agentplatform/internal/domain/platform"
	"github.com/GriffinCanCode/agentplatform/internal/domain/state"
	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/agentplatform/internal/remote"
)

// StatusFor maps a platform error to an HTTP status code
func StatusFor(err error) int {
	var statusErr *remote.StatusError

	switch {
	case errors.Is(err, platform.ErrInvalidRequest),
		errors.Is(err, platform.ErrInvalidArguments):
		return http.StatusBadRequest
	case errors.Is(err, platform.ErrInvalidCredentials),
		errors.Is(err, platform.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, platform.ErrContainerNotFound),
		errors.Is(err, platform.ErrAgentNotFound),
		errors.Is(err, platform.ErrActionNotFound),
		errors.Is(err, platform.ErrPeerNotFound),
		errors.Is(err, platform.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, platform.ErrNoEndpoint):
		return http.StatusConflict
	case errors.Is(err, platform.ErrMissingRequirements):
		return http.StatusPreconditionFailed
	case errors.As(err, &statusErr):
		return http.StatusBadGateway
	case errors.Is(err, backend.ErrUnavailable),
		errors.Is(err, remote.ErrUnavailable),
		errors.Is(err, audit.ErrTargetUnavailable),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, state.ErrNoFreePort):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
