package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fitduel/fitduel-backend/internal/battle"
	"github.com/fitduel/fitduel-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(h *Hub, userID uuid.UUID) *Client {
	return &Client{
		hub:    h,
		send:   make(chan []byte, 8),
		userID: userID,
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	t.Cleanup(hub.Stop)
	return hub
}

func receive(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatal("expected a message")
		return nil
	}
}

func TestHub_RepUpdateDelivery(t *testing.T) {
	hub := startHub(t)

	creatorID := uuid.New()
	opponentID := uuid.New()
	battleID := uuid.New()

	creator := newTestClient(hub, creatorID)
	spectator := newTestClient(hub, uuid.New())
	stranger := newTestClient(hub, uuid.New())
	hub.Register(creator)
	hub.Register(spectator)
	hub.Register(stranger)

	// Spectators opt in; participants are reached without subscribing.
	hub.Subscribe(spectator, battleID)

	hub.BroadcastRepUpdate(battle.Snapshot{
		BattleID:       battleID,
		Reps:           map[uuid.UUID]int{creatorID: 10, opponentID: 7},
		ElapsedSeconds: 12,
	})

	for _, c := range []*Client{creator, spectator} {
		msg := receive(t, c)
		assert.Equal(t, MessageTypeRepUpdate, msg.Type)

		var payload RepUpdatePayload
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, battleID.String(), payload.BattleID)
		assert.Equal(t, 10, payload.ParticipantReps[creatorID.String()])
		assert.Equal(t, 7, payload.ParticipantReps[opponentID.String()])
		assert.Equal(t, 12, payload.ElapsedSeconds)
	}

	select {
	case <-stranger.send:
		t.Fatal("stranger should not receive battle updates")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_SlowObserverDoesNotBlock(t *testing.T) {
	hub := startHub(t)

	creatorID := uuid.New()
	battleID := uuid.New()
	slow := newTestClient(hub, uuid.New())
	slow.send = make(chan []byte) // unbuffered and never drained
	hub.Register(slow)
	hub.Subscribe(slow, battleID)

	done := make(chan struct{})
	go func() {
		hub.BroadcastRepUpdate(battle.Snapshot{
			BattleID: battleID,
			Reps:     map[uuid.UUID]int{creatorID: 1},
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow observer")
	}
}

func TestHub_LifecycleDropsTerminalSubscriptions(t *testing.T) {
	hub := startHub(t)

	creatorID := uuid.New()
	opponentID := uuid.New()
	battleID := uuid.New()
	spectator := newTestClient(hub, uuid.New())
	hub.Register(spectator)
	hub.Subscribe(spectator, battleID)

	winnerID := creatorID
	b := &domain.Battle{
		ID:         battleID,
		CreatorID:  creatorID,
		OpponentID: opponentID,
		Status:     domain.BattleStatusCompleted,
		WinnerID:   &winnerID,
	}
	elapsed := battle.Snapshot{
		BattleID: battleID,
		Reps:     map[uuid.UUID]int{creatorID: 10, opponentID: 7},
	}
	hub.BroadcastLifecycle(b, &elapsed)

	msg := receive(t, spectator)
	assert.Equal(t, MessageTypeBattleLifecycle, msg.Type)

	var payload BattleLifecyclePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, string(domain.BattleStatusCompleted), payload.Status)
	require.NotNil(t, payload.WinnerID)
	assert.Equal(t, creatorID.String(), *payload.WinnerID)
	assert.Equal(t, 10, payload.ParticipantReps[creatorID.String()])

	// The observer set is garbage-collected once the battle is terminal.
	hub.mu.RLock()
	_, ok := hub.subscriptions[battleID]
	hub.mu.RUnlock()
	assert.False(t, ok)
}

func TestHub_UnregisterDropsSubscriptions(t *testing.T) {
	hub := startHub(t)

	battleID := uuid.New()
	client := newTestClient(hub, uuid.New())
	hub.Register(client)
	hub.Subscribe(client, battleID)

	hub.Unregister(client)

	hub.mu.RLock()
	_, subscribed := hub.subscriptions[battleID]
	registered := hub.clients[client]
	hub.mu.RUnlock()
	assert.False(t, registered)
	assert.False(t, subscribed)

	// A second unregister of the same client is a no-op.
	hub.Unregister(client)
}
