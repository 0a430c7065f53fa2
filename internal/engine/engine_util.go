package engine

import (
	"maps"
	"slices"
	"time"
)

// Snapshot is the full view of a draft handed to a viewer when they join.
type Snapshot struct {
	SessionID    string         `json:"session_id"`
	Status       Status         `json:"status"`
	Version      int            `json:"version"`
	TeamOrder    []string       `json:"team_order"`
	Rounds       int            `json:"rounds"`
	Snake        bool           `json:"snake"`
	PickSeconds  int            `json:"pick_seconds"`
	PositionCaps map[string]int `json:"position_caps,omitempty"`
	TotalPicks   int            `json:"total_picks"`
	CurrentPick  int            `json:"current_pick"`
	CurrentRound int            `json:"current_round,omitempty"`
	CurrentTeam  string         `json:"current_team,omitempty"`
	DeadlineAt   *time.Time     `json:"deadline_at,omitempty"`
	RemainingMS  int64          `json:"remaining_ms"`
	StallReason  string         `json:"stall_reason,omitempty"`
	Picks        []PickSlot     `json:"picks"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	EndedAt      *time.Time     `json:"ended_at,omitempty"`
}

func BuildSnapshot(s Session, now time.Time) Snapshot {
	snap := Snapshot{
		SessionID:    s.ID,
		Status:       s.Status,
		Version:      s.Version,
		TeamOrder:    slices.Clone(s.TeamOrder),
		Rounds:       s.Rounds,
		Snake:        s.Snake,
		PickSeconds:  int(s.PickDuration / time.Second),
		PositionCaps: maps.Clone(s.PositionCaps),
		TotalPicks:   s.TotalPicks(),
		CurrentPick:  s.CurrentPick,
		StallReason:  s.StallReason,
		Picks:        []PickSlot{},
		StartedAt:    timePtr(s.StartedAt),
		EndedAt:      timePtr(s.EndedAt),
	}
	if s.Ledger != nil {
		snap.Picks = s.Ledger.FilledSlots()
	}
	if s.Status.Running() {
		if team, err := s.TeamFor(s.CurrentPick); err == nil {
			snap.CurrentTeam = team
			snap.CurrentRound = RoundForPick(s.CurrentPick, len(s.TeamOrder))
		}
	}
	if s.Status == StatusInProgress && !s.DeadlineAt.IsZero() {
		snap.DeadlineAt = timePtr(s.DeadlineAt)
		snap.RemainingMS = max(s.DeadlineAt.Sub(now).Milliseconds(), 0)
	}
	return snap
}

// Remaining recomputes time left on the current pick at now.
func (s Snapshot) Remaining(now time.Time) time.Duration {
	if s.DeadlineAt == nil {
		return 0
	}
	return max(s.DeadlineAt.Sub(now), 0)
}

// SnapshotEvent wraps a snapshot as the first event a new subscriber receives.
func SnapshotEvent(snap Snapshot) Event {
	return Event{Type: EvtSnapshot, SessionID: snap.SessionID, Version: snap.Version, Payload: snap}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
