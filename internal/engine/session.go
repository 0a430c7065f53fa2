package engine

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusStalled    Status = "stalled"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Running reports whether picks may still be made. A stalled draft is still in progress.
func (s Status) Running() bool {
	return s == StatusInProgress || s == StatusStalled
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Source string

const (
	SourceManual Source = "manual"
	SourceAuto   Source = "auto"
)

type PickSlot struct {
	PickNumber int       `json:"pick_number"`
	Round      int       `json:"round"`
	TeamID     string    `json:"team_id"`
	EntityID   string    `json:"entity_id,omitempty"`
	Source     Source    `json:"source,omitempty"`
	FilledAt   time.Time `json:"filled_at"`
}

func (p PickSlot) Filled() bool { return p.EntityID != "" }

// Config describes a draft before it is scheduled.
type Config struct {
	ID           string
	TeamOrder    []string
	Rounds       int
	PickDuration time.Duration
	Snake        bool
	PositionCaps map[string]int
}

// Session is the authoritative state of one draft. Values are handed between the
// engine, the owning lobby and the store; use Clone before mutating a shared copy.
type Session struct {
	ID           string
	TeamOrder    []string
	Rounds       int
	PickDuration time.Duration
	Snake        bool
	PositionCaps map[string]int

	Status      Status
	CurrentPick int
	Version     int
	StallReason string
	DeadlineAt  time.Time

	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time

	Ledger *Ledger
}

func NewSession(cfg Config, now time.Time) (Session, error) {
	if cfg.ID == "" {
		return Session{}, fmt.Errorf("%w: missing id", ErrInvalidConfig)
	}
	if cfg.PickDuration <= 0 {
		return Session{}, fmt.Errorf("%w: pick duration must be positive", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(cfg.TeamOrder))
	for _, team := range cfg.TeamOrder {
		if team == "" || seen[team] {
			return Session{}, fmt.Errorf("%w: team order must hold distinct, non-empty ids", ErrInvalidConfig)
		}
		seen[team] = true
	}

	slots, err := BuildSlots(cfg.TeamOrder, cfg.Rounds, cfg.Snake)
	if err != nil {
		return Session{}, err
	}

	return Session{
		ID:           cfg.ID,
		TeamOrder:    slices.Clone(cfg.TeamOrder),
		Rounds:       cfg.Rounds,
		PickDuration: cfg.PickDuration,
		Snake:        cfg.Snake,
		PositionCaps: maps.Clone(cfg.PositionCaps),
		Status:       StatusScheduled,
		CreatedAt:    now,
		Ledger:       NewLedger(slots),
	}, nil
}

func (s Session) TotalPicks() int {
	return TotalPicks(s.Rounds, len(s.TeamOrder))
}

// TeamFor is TeamForPick bounded by the session's round count.
func (s Session) TeamFor(pick int) (string, error) {
	if pick < 1 || pick > s.TotalPicks() {
		return "", fmt.Errorf("%w: pick %d of %d", ErrOutOfRange, pick, s.TotalPicks())
	}
	return TeamForPick(pick, s.TeamOrder, s.Snake)
}

func (s Session) Clone() Session {
	out := s
	out.TeamOrder = slices.Clone(s.TeamOrder)
	out.PositionCaps = maps.Clone(s.PositionCaps)
	if s.Ledger != nil {
		out.Ledger = s.Ledger.Clone()
	}
	return out
}
