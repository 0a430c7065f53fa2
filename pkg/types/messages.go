// Package types holds the JSON shapes exchanged with draft clients over HTTP
// and websocket.
package types

import "github.com/DoyleJ11/bot-draft-backend/internal/engine"

// Client -> Server message types.
const (
	MsgPing       = "ping"
	MsgGetState   = "get_state"
	MsgSubmitPick = "submit_pick"
)

// Server -> Client replies that are not draft events.
const (
	MsgPong  = "pong"
	MsgError = "error"
)

type ClientMessage struct {
	Type       string `json:"type"`
	PickNumber int    `json:"pick_number,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	TeamID     string `json:"team_id,omitempty"`
	Override   bool   `json:"override,omitempty"`
}

// PickRequest converts a submit_pick message for the given draft.
func (m ClientMessage) PickRequest(sessionID string) engine.PickRequest {
	return engine.PickRequest{
		SessionID:  sessionID,
		PickNumber: m.PickNumber,
		EntityID:   m.EntityID,
		TeamID:     m.TeamID,
		Override:   m.Override,
	}
}

type ServerMessage struct {
	Type  string `json:"type"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed HTTP request.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
