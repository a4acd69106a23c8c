package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/fitduel/fitduel-backend/internal/battle"
	"github.com/fitduel/fitduel-backend/internal/domain"
	"github.com/google/uuid"
)

// Hub fans battle events out to connected observers. Participants are
// implicitly reachable through their connections; spectators opt in per battle
// via SUBSCRIBE_BATTLE. Delivery is fire-and-forget per observer: a slow or
// dead connection is skipped, never waited on.
//
// Hub implements battle.Broadcaster.
type Hub struct {
	clients       map[*Client]bool
	byUser        map[uuid.UUID]map[*Client]bool
	subscriptions map[uuid.UUID]map[*Client]bool // battleID -> observers
	stopped       bool
	mu            sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		byUser:        make(map[uuid.UUID]map[*Client]bool),
		subscriptions: make(map[uuid.UUID]map[*Client]bool),
	}
}

// Stop shuts down the hub and closes all client send channels.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.stopped = true

	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[*Client]bool)
	h.byUser = make(map[uuid.UUID]map[*Client]bool)
	h.subscriptions = make(map[uuid.UUID]map[*Client]bool)
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.clients[client] = true
	if h.byUser[client.userID] == nil {
		h.byUser[client.userID] = make(map[*Client]bool)
	}
	h.byUser[client.userID][client] = true
}

// Unregister drops a disconnected client and all of its subscriptions.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	if conns, ok := h.byUser[client.userID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.byUser, client.userID)
		}
	}
	for battleID, observers := range h.subscriptions {
		delete(observers, client)
		if len(observers) == 0 {
			delete(h.subscriptions, battleID)
		}
	}
	client.Close()
}

// Subscribe adds a client to a battle's observer set.
func (h *Hub) Subscribe(client *Client, battleID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped || !h.clients[client] {
		return
	}
	if h.subscriptions[battleID] == nil {
		h.subscriptions[battleID] = make(map[*Client]bool)
	}
	h.subscriptions[battleID][client] = true
}

// Unsubscribe removes a client from a battle's observer set.
func (h *Hub) Unsubscribe(client *Client, battleID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if observers, ok := h.subscriptions[battleID]; ok {
		delete(observers, client)
		if len(observers) == 0 {
			delete(h.subscriptions, battleID)
		}
	}
}

// BroadcastRepUpdate pushes the combined snapshot to every observer of the
// battle: explicit subscribers plus the participants' own connections.
func (h *Hub) BroadcastRepUpdate(snapshot battle.Snapshot) {
	participantReps := make(map[string]int, len(snapshot.Reps))
	participants := make([]uuid.UUID, 0, len(snapshot.Reps))
	for id, n := range snapshot.Reps {
		participantReps[id.String()] = n
		participants = append(participants, id)
	}

	msg := NewRepUpdateMessage(RepUpdatePayload{
		BattleID:        snapshot.BattleID.String(),
		Status:          string(domain.BattleStatusActive),
		ParticipantReps: participantReps,
		ElapsedSeconds:  snapshot.ElapsedSeconds,
	})

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliverLocked(snapshot.BattleID, participants, msg)
}

// BroadcastLifecycle pushes a status transition to every observer of the
// battle. For terminal transitions the battle's observer set is dropped.
func (h *Hub) BroadcastLifecycle(b *domain.Battle, snapshot *battle.Snapshot) {
	payload := BattleLifecyclePayload{
		BattleID: b.ID.String(),
		Status:   string(b.Status),
	}
	if b.WinnerID != nil {
		winnerID := b.WinnerID.String()
		payload.WinnerID = &winnerID
	}
	if snapshot != nil {
		payload.ParticipantReps = make(map[string]int, len(snapshot.Reps))
		for id, n := range snapshot.Reps {
			payload.ParticipantReps[id.String()] = n
		}
		elapsed := snapshot.ElapsedSeconds
		payload.ElapsedSeconds = &elapsed
	}

	msg := NewBattleLifecycleMessage(payload)
	participants := []uuid.UUID{b.CreatorID, b.OpponentID}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(b.ID, participants, msg)

	if b.Status.IsTerminal() {
		delete(h.subscriptions, b.ID)
	}
}

// deliverLocked sends to the union of explicit subscribers and the
// participants' connections. Callers hold at least the read lock.
func (h *Hub) deliverLocked(battleID uuid.UUID, participants []uuid.UUID, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to marshal broadcast: %v", err)
		return
	}

	seen := make(map[*Client]bool)
	for client := range h.subscriptions[battleID] {
		if !seen[client] {
			seen[client] = true
			h.trySend(client, data)
		}
	}
	for _, userID := range participants {
		for client := range h.byUser[userID] {
			if !seen[client] {
				seen[client] = true
				h.trySend(client, data)
			}
		}
	}
}

// trySend attempts to send to a client, safely handling closed channels.
func (h *Hub) trySend(client *Client, data []byte) {
	defer func() {
		if recover() != nil {
			// Channel closed, client is disconnecting - skip silently
		}
	}()

	select {
	case client.send <- data:
	default:
		// Buffer full, skip
	}
}
