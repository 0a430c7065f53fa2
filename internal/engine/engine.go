package engine

import (
	"fmt"
	"time"
)

type CommandType string

const (
	CmdStart      CommandType = "Start"
	CmdSubmitPick CommandType = "SubmitPick"
	CmdAutoPick   CommandType = "AutoPick"
	CmdStall      CommandType = "Stall"
	CmdResume     CommandType = "Resume"
	CmdCancel     CommandType = "Cancel"
)

/*
	CmdStart      -> EvtDraftStarted -> EvtTurnChanged
	CmdSubmitPick -> EvtPickMade -> EvtTurnChanged or EvtDraftCompleted
	CmdAutoPick   -> same as CmdSubmitPick, slot source is auto and the team check is skipped
	CmdStall      -> EvtDraftStalled (fallback found nothing to pick)
	CmdResume     -> EvtDraftResumed -> EvtTurnChanged
	CmdCancel     -> EvtDraftCancelled
*/

type Command struct {
	Type       CommandType
	PickNumber int
	EntityID   string
	TeamID     string
	Override   bool // admin submission, skips the team check only
	Reason     string
	At         time.Time
}

// PickRequest is a manual pick as submitted by a bot or an admin.
type PickRequest struct {
	SessionID  string
	PickNumber int
	EntityID   string
	TeamID     string
	Override   bool
}

func (r PickRequest) Command(at time.Time) Command {
	return Command{
		Type:       CmdSubmitPick,
		PickNumber: r.PickNumber,
		EntityID:   r.EntityID,
		TeamID:     r.TeamID,
		Override:   r.Override,
		At:         at,
	}
}

// Apply validates cmd against s and returns the resulting events and session.
// s is never mutated; on error the returned session is s unchanged.
func Apply(s Session, cmd Command, cat Catalog) ([]Event, Session, error) {
	if s.Status.Terminal() {
		return nil, s, fmt.Errorf("%w: draft is %s", ErrInvalidState, s.Status)
	}

	switch cmd.Type {
	case CmdStart:
		if s.Status != StatusScheduled {
			return nil, s, fmt.Errorf("%w: cannot start a %s draft", ErrInvalidState, s.Status)
		}
		next := s.Clone()
		next.Status = StatusInProgress
		next.StartedAt = cmd.At
		next.CurrentPick = 1
		next.DeadlineAt = cmd.At.Add(next.PickDuration)
		next.Version++

		events := []Event{next.event(EvtDraftStarted, DraftStarted{StartedAt: cmd.At})}
		turn, err := next.turnChanged()
		if err != nil {
			return nil, s, err
		}
		return append(events, turn), next, nil

	case CmdSubmitPick, CmdAutoPick:
		return applyPick(s, cmd, cat)

	case CmdStall:
		if s.Status != StatusInProgress {
			return nil, s, fmt.Errorf("%w: cannot stall a %s draft", ErrInvalidState, s.Status)
		}
		team, err := s.TeamFor(s.CurrentPick)
		if err != nil {
			return nil, s, err
		}
		next := s.Clone()
		next.Status = StatusStalled
		next.StallReason = cmd.Reason
		next.DeadlineAt = time.Time{}
		next.Version++
		return []Event{next.event(EvtDraftStalled, DraftStalled{
			PickNumber: next.CurrentPick,
			TeamID:     team,
			Reason:     cmd.Reason,
		})}, next, nil

	case CmdResume:
		if s.Status != StatusStalled {
			return nil, s, fmt.Errorf("%w: cannot resume a %s draft", ErrInvalidState, s.Status)
		}
		next := s.Clone()
		next.Status = StatusInProgress
		next.StallReason = ""
		next.DeadlineAt = cmd.At.Add(next.PickDuration)
		next.Version++

		events := []Event{next.event(EvtDraftResumed, DraftResumed{PickNumber: next.CurrentPick})}
		turn, err := next.turnChanged()
		if err != nil {
			return nil, s, err
		}
		return append(events, turn), next, nil

	case CmdCancel:
		next := s.Clone()
		next.Status = StatusCancelled
		next.EndedAt = cmd.At
		next.DeadlineAt = time.Time{}
		next.StallReason = ""
		next.Version++
		return []Event{next.event(EvtDraftCancelled, DraftCancelled{
			PickNumber: next.CurrentPick,
			EndedAt:    cmd.At,
		})}, next, nil
	}

	return nil, s, fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd.Type)
}

func applyPick(s Session, cmd Command, cat Catalog) ([]Event, Session, error) {
	if !s.Status.Running() {
		return nil, s, fmt.Errorf("%w: draft is %s", ErrInvalidState, s.Status)
	}
	if cmd.Type == CmdAutoPick && s.Status != StatusInProgress {
		return nil, s, fmt.Errorf("%w: auto-pick on a %s draft", ErrInvalidState, s.Status)
	}
	if cmd.PickNumber != s.CurrentPick {
		return nil, s, fmt.Errorf("%w: pick %d is not current (current is %d)", ErrWrongTurn, cmd.PickNumber, s.CurrentPick)
	}

	slot, err := s.Ledger.Slot(cmd.PickNumber)
	if err != nil {
		return nil, s, err
	}
	source := SourceAuto
	if cmd.Type == CmdSubmitPick {
		source = SourceManual
		if !cmd.Override && cmd.TeamID != slot.TeamID {
			return nil, s, fmt.Errorf("%w: pick %d belongs to %s", ErrWrongTurn, cmd.PickNumber, slot.TeamID)
		}
	}
	if !canPick(s, cat, cmd.EntityID) {
		if s.Ledger.IsEntityTaken(cmd.EntityID) {
			return nil, s, fmt.Errorf("%w: %s", ErrEntityAlreadyTaken, cmd.EntityID)
		}
		return nil, s, fmt.Errorf("%w: %s", ErrEntityUnavailable, cmd.EntityID)
	}

	next := s.Clone()
	filled, err := next.Ledger.Record(cmd.PickNumber, cmd.EntityID, source, cmd.At)
	if err != nil {
		return nil, s, err
	}
	next.Version++
	next.StallReason = ""

	events := []Event{next.event(EvtPickMade, PickMade{PickSlot: filled})}

	// Completion
	if next.CurrentPick == next.TotalPicks() {
		next.Status = StatusCompleted
		next.EndedAt = cmd.At
		next.DeadlineAt = time.Time{}
		return append(events, next.event(EvtDraftCompleted, DraftCompleted{
			TotalPicks: next.TotalPicks(),
			EndedAt:    cmd.At,
		})), next, nil
	}

	next.Status = StatusInProgress
	next.CurrentPick++
	next.DeadlineAt = cmd.At.Add(next.PickDuration)
	turn, err := next.turnChanged()
	if err != nil {
		return nil, s, err
	}
	return append(events, turn), next, nil
}

func canPick(s Session, cat Catalog, entityID string) bool {
	if entityID == "" || s.Ledger.IsEntityTaken(entityID) {
		return false
	}
	return cat == nil || cat.IsAvailable(entityID)
}

func (s Session) event(t EventType, p Payload) Event {
	return Event{Type: t, SessionID: s.ID, Version: s.Version, Payload: p}
}

func (s Session) turnChanged() (Event, error) {
	team, err := s.TeamFor(s.CurrentPick)
	if err != nil {
		return Event{}, err
	}
	return s.event(EvtTurnChanged, TurnChanged{
		PickNumber: s.CurrentPick,
		Round:      RoundForPick(s.CurrentPick, len(s.TeamOrder)),
		TeamID:     team,
		DeadlineAt: s.DeadlineAt,
	}), nil
}
