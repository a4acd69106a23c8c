package testutil

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fitduel/fitduel-backend/internal/websocket"
	gorillaWS "github.com/gorilla/websocket"
)

// WSClient is a test WebSocket client
type WSClient struct {
	t        *testing.T
	conn     *gorillaWS.Conn
	messages chan *websocket.Message
	errors   chan error
	done     chan struct{}
	mu       sync.Mutex
}

// NewWSClient creates a new WebSocket test client
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()

	dialer := gorillaWS.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect to websocket: %v", err)
	}

	client := &WSClient{
		t:        t,
		conn:     conn,
		messages: make(chan *websocket.Message, 100),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}

	go client.readPump()

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

// readPump reads messages from the WebSocket connection
func (c *WSClient) readPump() {
	defer close(c.messages)
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				select {
				case <-c.done:
					return
				case c.errors <- err:
				}
				return
			}

			var msg websocket.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				c.errors <- err
				continue
			}

			select {
			case c.messages <- &msg:
			case <-c.done:
				return
			}
		}
	}
}

// Close closes the WebSocket connection gracefully
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
		c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
		c.conn.Close()
	}
}

func (c *WSClient) send(msgType websocket.MessageType, payload interface{}) {
	c.t.Helper()

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		c.t.Fatalf("failed to marshal payload: %v", err)
	}

	msg := &websocket.Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatalf("failed to marshal message: %v", err)
	}

	c.mu.Lock()
	err = c.conn.WriteMessage(gorillaWS.TextMessage, data)
	c.mu.Unlock()

	if err != nil {
		c.t.Fatalf("failed to send message: %v", err)
	}
}

// SubscribeBattle subscribes the client to a battle's event stream
func (c *WSClient) SubscribeBattle(battleID string) {
	c.send(websocket.MessageTypeSubscribeBattle, websocket.SubscribeBattlePayload{BattleID: battleID})
}

// UnsubscribeBattle removes the client from a battle's event stream
func (c *WSClient) UnsubscribeBattle(battleID string) {
	c.send(websocket.MessageTypeUnsubscribeBattle, websocket.SubscribeBattlePayload{BattleID: battleID})
}

// ExpectMessage waits for a message of the specified type, skipping others
func (c *WSClient) ExpectMessage(msgType websocket.MessageType, timeout time.Duration) *websocket.Message {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				c.t.Fatalf("connection closed while waiting for %s", msgType)
			}
			if msg.Type == msgType {
				return msg
			}
		case err := <-c.errors:
			c.t.Fatalf("error while waiting for %s: %v", msgType, err)
		case <-deadline:
			c.t.Fatalf("timeout waiting for message type %s", msgType)
		}
	}
}

// ExpectRepUpdate waits for and decodes a REP_UPDATE message
func (c *WSClient) ExpectRepUpdate(timeout time.Duration) *websocket.RepUpdatePayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeRepUpdate, timeout)

	var payload websocket.RepUpdatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode rep update payload: %v", err)
	}

	return &payload
}

// ExpectLifecycle waits for and decodes a BATTLE_LIFECYCLE message
func (c *WSClient) ExpectLifecycle(timeout time.Duration) *websocket.BattleLifecyclePayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeBattleLifecycle, timeout)

	var payload websocket.BattleLifecyclePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode lifecycle payload: %v", err)
	}

	return &payload
}

// ExpectLifecycleStatus waits for a BATTLE_LIFECYCLE message carrying the
// given status, skipping intermediate lifecycle and rep-update messages
func (c *WSClient) ExpectLifecycleStatus(status string, timeout time.Duration) *websocket.BattleLifecyclePayload {
	c.t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.t.Fatalf("timeout waiting for lifecycle status %s", status)
		}
		payload := c.ExpectLifecycle(remaining)
		if payload.Status == status {
			return payload
		}
	}
}

// ExpectError waits for and decodes an ERROR message
func (c *WSClient) ExpectError(timeout time.Duration) *websocket.ErrorPayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeError, timeout)

	var payload websocket.ErrorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode error payload: %v", err)
	}

	return &payload
}

// ExpectNoMessage verifies no messages are received within timeout
func (c *WSClient) ExpectNoMessage(timeout time.Duration) {
	c.t.Helper()

	select {
	case msg := <-c.messages:
		if msg != nil {
			c.t.Fatalf("unexpected message received: %s", msg.Type)
		}
	case <-time.After(timeout):
	}
}

// DrainMessages drains all pending messages, waiting briefly for the channel
// to settle
func (c *WSClient) DrainMessages() {
	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				return
			}
			deadline = time.After(50 * time.Millisecond)
		case <-deadline:
			return
		case <-c.done:
			return
		}
	}
}
