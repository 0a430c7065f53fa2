package engine

import (
	"fmt"
	"slices"
)

// BoardRound is one row of the draft board.
type BoardRound struct {
	Round int        `json:"round"`
	Picks []PickSlot `json:"picks"`
}

// BuildBoard lays every slot out by round, filled or not, in pick order.
func BuildBoard(s Session) []BoardRound {
	board := make([]BoardRound, 0, s.Rounds)
	for _, slot := range s.Ledger.Slots() {
		if n := len(board); n == 0 || board[n-1].Round != slot.Round {
			board = append(board, BoardRound{Round: slot.Round})
		}
		last := &board[len(board)-1]
		last.Picks = append(last.Picks, slot)
	}
	return board
}

type TeamSummary struct {
	SessionID string         `json:"session_id"`
	TeamID    string         `json:"team_id"`
	Picks     []PickSlot     `json:"picks"`
	Positions map[string]int `json:"positions"`
	// Remaining counts the slots the team has yet to fill.
	Remaining int `json:"remaining"`
}

// BuildTeamSummary reports one team's picks and its position counts. A nil
// catalog leaves positions empty.
func BuildTeamSummary(s Session, cat Catalog, teamID string) (TeamSummary, error) {
	if !slices.Contains(s.TeamOrder, teamID) {
		return TeamSummary{}, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}
	sum := TeamSummary{
		SessionID: s.ID,
		TeamID:    teamID,
		Picks:     []PickSlot{},
		Positions: map[string]int{},
	}
	for _, slot := range s.Ledger.Slots() {
		if slot.TeamID != teamID {
			continue
		}
		if slot.Filled() {
			sum.Picks = append(sum.Picks, slot)
		} else {
			sum.Remaining++
		}
	}
	if cat != nil {
		sum.Positions = s.Ledger.PositionsHeld(teamID, cat.PositionOf)
	}
	return sum, nil
}

// Available lists the entities the session can still draft, best first.
func Available(s Session, cat Catalog, p Picker) []Candidate {
	if cat == nil {
		return []Candidate{}
	}
	return p.Rank(Candidates(s, cat))
}
