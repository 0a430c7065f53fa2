package engine

import (
	"fmt"
	"sync"
	"time"
)

// Ledger is the ordered record of every pick slot in a draft. Records are
// checked and written under one lock so two writers can never fill the same
// slot or draft the same entity twice.
type Ledger struct {
	mu    sync.Mutex
	slots []PickSlot
	taken map[string]int // entity id -> pick number
}

func NewLedger(slots []PickSlot) *Ledger {
	l := &Ledger{
		slots: make([]PickSlot, len(slots)),
		taken: make(map[string]int),
	}
	copy(l.slots, slots)
	for _, s := range l.slots {
		if s.Filled() {
			l.taken[s.EntityID] = s.PickNumber
		}
	}
	return l
}

func (l *Ledger) Record(pick int, entityID string, source Source, at time.Time) (PickSlot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if pick < 1 || pick > len(l.slots) {
		return PickSlot{}, fmt.Errorf("%w: pick %d of %d", ErrOutOfRange, pick, len(l.slots))
	}
	if entityID == "" {
		return PickSlot{}, fmt.Errorf("%w: empty entity id", ErrEntityUnavailable)
	}

	slot := &l.slots[pick-1]
	if slot.Filled() {
		return PickSlot{}, fmt.Errorf("%w: pick %d holds %s", ErrSlotAlreadyFilled, pick, slot.EntityID)
	}
	if prev, ok := l.taken[entityID]; ok {
		return PickSlot{}, fmt.Errorf("%w: %s went at pick %d", ErrEntityAlreadyTaken, entityID, prev)
	}

	slot.EntityID = entityID
	slot.Source = source
	slot.FilledAt = at
	l.taken[entityID] = pick
	return *slot, nil
}

func (l *Ledger) IsEntityTaken(entityID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.taken[entityID]
	return ok
}

func (l *Ledger) Slot(pick int) (PickSlot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pick < 1 || pick > len(l.slots) {
		return PickSlot{}, fmt.Errorf("%w: pick %d of %d", ErrOutOfRange, pick, len(l.slots))
	}
	return l.slots[pick-1], nil
}

// Slots returns a copy of every slot in pick order.
func (l *Ledger) Slots() []PickSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]PickSlot, len(l.slots))
	copy(out, l.slots)
	return out
}

func (l *Ledger) FilledSlots() []PickSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]PickSlot, 0, len(l.taken))
	for _, s := range l.slots {
		if s.Filled() {
			out = append(out, s)
		}
	}
	return out
}

func (l *Ledger) Filled() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.taken)
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *Ledger) Clone() *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return NewLedger(l.slots)
}

// PositionsHeld counts a team's filled slots per position.
func (l *Ledger) PositionsHeld(teamID string, positionOf func(string) string) map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	held := make(map[string]int)
	for _, s := range l.slots {
		if s.TeamID == teamID && s.Filled() {
			held[positionOf(s.EntityID)]++
		}
	}
	return held
}
