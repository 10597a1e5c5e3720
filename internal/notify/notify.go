package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"storebot/internal/util"
)

// Gateway delivers messages to users. Delivery either succeeds or fails as a
// whole; unreachable recipient, blocked delivery and transport errors all
// collapse into one failure signal, which the order engine treats as its
// rollback trigger.
type Gateway interface {
	SendDirect(ctx context.Context, userID int64, content string) error
}

// HTTPGateway talks to the chat-platform relay over its REST surface.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPGateway creates a gateway with an enforced per-call timeout.
// A timed-out delivery counts as a failed delivery.
func NewHTTPGateway(baseURL, token string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  util.GetLogger(),
	}
}

type directMessage struct {
	UserID  int64  `json:"user_id"`
	Content string `json:"content"`
}

// SendDirect delivers a private message to the given user.
func (g *HTTPGateway) SendDirect(ctx context.Context, userID int64, content string) error {
	body, err := json.Marshal(directMessage{UserID: userID, Content: content})
	if err != nil {
		return fmt.Errorf("failed to marshal direct message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/direct-messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("Direct message delivery failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("direct message delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Warn("Direct message rejected by relay",
			zap.Int64("user_id", userID),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("direct message rejected: status %d", resp.StatusCode)
	}
	return nil
}
