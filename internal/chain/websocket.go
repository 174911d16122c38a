package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// LogEvent is one logsNotification pushed by the node: the transaction
// signature plus its program log lines.
type LogEvent struct {
	Signature string
	Logs      []string
}

// LogHandler receives pushed log events. Delivery order follows the node's
// notification order; handlers must not block for long.
type LogHandler func(ctx context.Context, event LogEvent)

// WSClient maintains a logsSubscribe subscription over a websocket and
// forwards matching transaction logs to a handler.
type WSClient struct {
	url     string
	mention string
	handler LogHandler
	logger  *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

func NewWSClient(url, mention string, handler LogHandler, logger *zap.Logger) *WSClient {
	return &WSClient{
		url:     url,
		mention: mention,
		handler: handler,
		logger:  logger,
	}
}

// Run connects, subscribes and consumes notifications until ctx is
// cancelled, reconnecting with a flat delay after any failure.
func (c *WSClient) Run(ctx context.Context) {
	for {
		if err := c.connectAndListen(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("websocket session ended", zap.Error(err))
		}
		c.setConnected(false)

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// Connected reports whether a live subscription is currently established.
func (c *WSClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// CheckConnection pings the node to detect a silently dead session. A
// failed ping closes the connection, which makes Run reestablish the
// subscription.
func (c *WSClient) CheckConnection() {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if !connected || conn == nil {
		return
	}
	deadline := time.Now().Add(10 * time.Second)
	if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		c.logger.Warn("websocket ping failed, dropping connection", zap.Error(err))
		conn.Close()
	}
}

func (c *WSClient) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Signature string   `json:"signature"`
				Logs      []string `json:"logs"`
				Err       any      `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

func (c *WSClient) connectAndListen(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	sub := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "logsSubscribe",
		"params": []any{
			map[string]any{"mentions": []string{c.mention}},
			map[string]any{"commitment": "confirmed"},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	// First frame is the subscription acknowledgement.
	if _, _, err := conn.ReadMessage(); err != nil {
		return fmt.Errorf("read subscription ack: %w", err)
	}

	c.setConnected(true)
	c.logger.Info("websocket subscribed", zap.String("mention", c.mention))

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var note wsNotification
		if err := json.Unmarshal(data, &note); err != nil {
			c.logger.Warn("malformed websocket frame", zap.Error(err))
			continue
		}
		if note.Method != "logsNotification" {
			continue
		}
		value := note.Params.Result.Value
		if value.Err != nil {
			// Failed transactions never settle a payment.
			continue
		}
		c.handler(ctx, LogEvent{Signature: value.Signature, Logs: value.Logs})
	}
}
