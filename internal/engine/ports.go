package engine

import "context"

// Catalog is the read-only player pool a draft picks from.
type Catalog interface {
	IsAvailable(entityID string) bool
	PositionOf(entityID string) string
	// RankScore returns the entity's ranking value (lower drafts earlier) and
	// false when the entity is unranked.
	RankScore(entityID string) (float64, bool)
	EntityIDs() []string
}

// RosterStore reports how many entities of each position a team already holds.
type RosterStore interface {
	PositionsHeld(teamID string) map[string]int
}

// Store persists sessions. Save must write the session and all of its slots atomically.
// Create inserts a new session and fails with ErrInvalidConfig when the id exists.
type Store interface {
	Create(ctx context.Context, s Session) error
	Load(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	List(ctx context.Context) ([]Session, error)
	ListActive(ctx context.Context) ([]Session, error)
}

type ledgerRoster struct {
	ledger  *Ledger
	catalog Catalog
}

func (r ledgerRoster) PositionsHeld(teamID string) map[string]int {
	return r.ledger.PositionsHeld(teamID, r.catalog.PositionOf)
}

// Roster derives team rosters from the session's own ledger.
func (s Session) Roster(cat Catalog) RosterStore {
	return ledgerRoster{ledger: s.Ledger, catalog: cat}
}
