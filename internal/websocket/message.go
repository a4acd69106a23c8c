package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	// Client to Server
	MessageTypeSubscribeBattle   MessageType = "SUBSCRIBE_BATTLE"
	MessageTypeUnsubscribeBattle MessageType = "UNSUBSCRIBE_BATTLE"

	// Server to Client
	MessageTypeRepUpdate       MessageType = "REP_UPDATE"
	MessageTypeBattleLifecycle MessageType = "BATTLE_LIFECYCLE"
	MessageTypeError           MessageType = "ERROR"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

func newMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Client to Server payloads

type SubscribeBattlePayload struct {
	BattleID string `json:"battleId"`
}

// Server to Client payloads

// RepUpdatePayload is the snapshot tick pushed on every accepted rep update.
type RepUpdatePayload struct {
	BattleID        string         `json:"battleId"`
	Status          string         `json:"status"`
	ParticipantReps map[string]int `json:"participantReps"`
	ElapsedSeconds  int            `json:"elapsedSeconds"`
}

// BattleLifecyclePayload is pushed on every status transition. WinnerID is
// present only for completion; reps and elapsed only when a session existed.
type BattleLifecyclePayload struct {
	BattleID        string         `json:"battleId"`
	Status          string         `json:"status"`
	WinnerID        *string        `json:"winnerId,omitempty"`
	ParticipantReps map[string]int `json:"participantReps,omitempty"`
	ElapsedSeconds  *int           `json:"elapsedSeconds,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// One constructor per event kind keeps the event taxonomy closed; a new kind
// means a new constructor, not another string in a dispatch table.

func NewRepUpdateMessage(payload RepUpdatePayload) *Message {
	msg, _ := newMessage(MessageTypeRepUpdate, payload)
	return msg
}

func NewBattleLifecycleMessage(payload BattleLifecyclePayload) *Message {
	msg, _ := newMessage(MessageTypeBattleLifecycle, payload)
	return msg
}

func NewErrorMessage(code, message string) *Message {
	msg, _ := newMessage(MessageTypeError, ErrorPayload{Code: code, Message: message})
	return msg
}
