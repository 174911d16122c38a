package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PushSender posts notifications to the push gateway, which owns device
// tokens and the actual delivery mechanics.
type PushSender struct {
	gatewayURL string
	client     *http.Client
}

func NewPushSender(gatewayURL string, timeout time.Duration) *PushSender {
	return &PushSender{
		gatewayURL: gatewayURL,
		client:     &http.Client{Timeout: timeout},
	}
}

type pushRequest struct {
	UserID int64  `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

func (s *PushSender) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(pushRequest{
		UserID: n.UserID,
		Title:  n.Title,
		Body:   n.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}
	return nil
}
