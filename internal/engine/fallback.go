package engine

import (
	"fmt"
	"slices"
	"strings"
)

type Candidate struct {
	ID       string  `json:"id"`
	Position string  `json:"position"`
	Score    float64 `json:"score,omitempty"`
	Ranked   bool    `json:"ranked"`
}

// RankStrategy orders candidates for the fallback picker. Lower keys draft first;
// ok=false places the candidate after every ranked one.
type RankStrategy interface {
	Key(c Candidate) (key float64, ok bool)
}

// ADPStrategy ranks by average draft position.
type ADPStrategy struct{}

func (ADPStrategy) Key(c Candidate) (float64, bool) { return c.Score, c.Ranked }

// PositionWeightStrategy scales ADP per position, so a bot that prizes running
// backs can weight RB below 1.0. Positions without a weight use 1.0.
type PositionWeightStrategy struct {
	Weights map[string]float64
}

func (w PositionWeightStrategy) Key(c Candidate) (float64, bool) {
	if !c.Ranked {
		return 0, false
	}
	weight, ok := w.Weights[c.Position]
	if !ok || weight <= 0 {
		weight = 1
	}
	return c.Score * weight, true
}

type Picker struct {
	Strategy RankStrategy
}

func NewPicker(strategy RankStrategy) Picker {
	if strategy == nil {
		strategy = ADPStrategy{}
	}
	return Picker{Strategy: strategy}
}

// Choose returns the best-ranked candidate whose position the team has not
// saturated. When every candidate is saturated it returns the best-ranked one.
func (p Picker) Choose(available []Candidate, held, caps map[string]int) (string, error) {
	if len(available) == 0 {
		return "", ErrNoEligibleEntity
	}
	list := p.Rank(available)
	for _, c := range list {
		if !saturated(c.Position, held, caps) {
			return c.ID, nil
		}
	}
	return list[0].ID, nil
}

// Rank returns a copy of candidates in draft order: ranked before unranked,
// lower keys first, ties on the lexicographically lowest id.
func (p Picker) Rank(candidates []Candidate) []Candidate {
	strategy := p.Strategy
	if strategy == nil {
		strategy = ADPStrategy{}
	}

	type ranked struct {
		c   Candidate
		key float64
		ok  bool
	}
	list := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		key, ok := strategy.Key(c)
		list = append(list, ranked{c: c, key: key, ok: ok})
	}
	slices.SortFunc(list, func(a, b ranked) int {
		switch {
		case a.ok != b.ok:
			if a.ok {
				return -1
			}
			return 1
		case a.ok && a.key < b.key:
			return -1
		case a.ok && a.key > b.key:
			return 1
		}
		return strings.Compare(a.c.ID, b.c.ID)
	})

	out := make([]Candidate, len(list))
	for i, r := range list {
		out[i] = r.c
	}
	return out
}

func saturated(position string, held, caps map[string]int) bool {
	limit, ok := caps[position]
	if !ok {
		return false
	}
	return held[position] >= limit
}

// Candidates lists every entity the catalog offers that the session has not drafted.
func Candidates(s Session, cat Catalog) []Candidate {
	ids := cat.EntityIDs()
	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		if !cat.IsAvailable(id) || s.Ledger.IsEntityTaken(id) {
			continue
		}
		score, ok := cat.RankScore(id)
		out = append(out, Candidate{ID: id, Position: cat.PositionOf(id), Score: score, Ranked: ok})
	}
	return out
}

// ChooseFallback selects the auto-pick for the session's current pick. A nil
// roster falls back to the session ledger.
func ChooseFallback(s Session, cat Catalog, roster RosterStore, p Picker) (string, error) {
	team, err := s.TeamFor(s.CurrentPick)
	if err != nil {
		return "", err
	}
	if roster == nil {
		roster = s.Roster(cat)
	}
	id, err := p.Choose(Candidates(s, cat), roster.PositionsHeld(team), s.PositionCaps)
	if err != nil {
		return "", fmt.Errorf("pick %d for %s: %w", s.CurrentPick, team, err)
	}
	return id, nil
}
