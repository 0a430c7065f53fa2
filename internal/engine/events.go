package engine

import "time"

type EventType string

const (
	EvtSnapshot       EventType = "snapshot"
	EvtDraftStarted   EventType = "draft_started"
	EvtPickMade       EventType = "pick_made"
	EvtTurnChanged    EventType = "turn_changed"
	EvtDraftStalled   EventType = "draft_stalled"
	EvtDraftResumed   EventType = "draft_resumed"
	EvtDraftCompleted EventType = "draft_completed"
	EvtDraftCancelled EventType = "draft_cancelled"
)

// Event is what subscribers of a draft room receive. Every event produced by a
// single transition carries that transition's session version.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Version   int       `json:"version"`
	Payload   Payload   `json:"payload"`
}

type Payload interface{ isPayload() }

type DraftStarted struct {
	StartedAt time.Time `json:"started_at"`
}

type PickMade struct {
	PickSlot
}

type TurnChanged struct {
	PickNumber int       `json:"pick_number"`
	Round      int       `json:"round"`
	TeamID     string    `json:"team_id"`
	DeadlineAt time.Time `json:"deadline_at"`
}

type DraftStalled struct {
	PickNumber int    `json:"pick_number"`
	TeamID     string `json:"team_id"`
	Reason     string `json:"reason"`
}

type DraftResumed struct {
	PickNumber int `json:"pick_number"`
}

type DraftCompleted struct {
	TotalPicks int       `json:"total_picks"`
	EndedAt    time.Time `json:"ended_at"`
}

type DraftCancelled struct {
	PickNumber int       `json:"pick_number"`
	EndedAt    time.Time `json:"ended_at"`
}

func (DraftStarted) isPayload()   {}
func (PickMade) isPayload()       {}
func (TurnChanged) isPayload()    {}
func (DraftStalled) isPayload()   {}
func (DraftResumed) isPayload()   {}
func (DraftCompleted) isPayload() {}
func (DraftCancelled) isPayload() {}
func (Snapshot) isPayload()       {}
