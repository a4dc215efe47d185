package platform

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentplatform/internal/shared/id"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// ConnectPeer federates with another platform. Connecting to a URL that is
// already connected refreshes that connection and keeps its ID.
func (s *Service) ConnectPeer(ctx context.Context, req ConnectRequest) (types.PeerConnection, error) {
	baseURL, err := normalizeBaseURL(req.BaseURL)
	if err != nil {
		return types.PeerConnection{}, err
	}

	info, err := s.remote.PlatformConfig(ctx, baseURL, req.Token)
	if err != nil {
		return types.PeerConnection{}, fmt.Errorf("connect to %s: %w", baseURL, err)
	}
	if info.ID != "" && info.ID == s.info.ID {
		return types.PeerConnection{}, fmt.Errorf("%w: %s is this platform", ErrInvalidRequest, baseURL)
	}

	peerID := id.NewPeerID().String()
	for _, existing := range s.store.Connections() {
		if existing.BaseURL == baseURL {
			peerID = existing.ID
			break
		}
	}

	conn := types.PeerConnection{
		ID:          peerID,
		BaseURL:     baseURL,
		Token:       req.Token,
		Info:        info,
		ConnectedAt: time.Now().UTC(),
	}
	s.store.PutConnection(conn)
	s.refreshGauges()

	s.logger.Info("Connected peer platform",
		zap.String("peer", peerID),
		zap.String("url", baseURL),
		zap.String("remote_id", info.ID))
	return conn, nil
}

// DisconnectPeer forgets a peer platform
func (s *Service) DisconnectPeer(ctx context.Context, peerID string) error {
	if !s.store.RemoveConnection(peerID) {
		return fmt.Errorf("%w: %s", ErrPeerNotFound, peerID)
	}
	s.refreshGauges()
	s.logger.Info("Disconnected peer platform", zap.String("peer", peerID))
	return nil
}

// normalizeBaseURL accepts absolute http(s) URLs and strips trailing slashes
func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: invalid peer url %q", ErrInvalidRequest, raw)
	}
	return strings.TrimRight(raw, "/"), nil
}
