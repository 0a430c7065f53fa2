package engine

import "fmt"

// TeamForPick resolves which team owns a 1-based overall pick number.
// Linear drafts repeat the order every round; snake drafts reverse it on even rounds.
func TeamForPick(pick int, order []string, snake bool) (string, error) {
	n := len(order)
	if n == 0 || pick < 1 {
		return "", fmt.Errorf("%w: pick %d of %d teams", ErrOutOfRange, pick, n)
	}

	idx := (pick - 1) % n
	if snake && RoundForPick(pick, n)%2 == 0 {
		idx = n - 1 - idx
	}
	return order[idx], nil
}

func RoundForPick(pick, teams int) int {
	if teams <= 0 || pick < 1 {
		return 0
	}
	return (pick-1)/teams + 1
}

func TotalPicks(rounds, teams int) int {
	if rounds <= 0 || teams <= 0 {
		return 0
	}
	return rounds * teams
}

// BuildSlots lays out every empty slot of a draft up front so the owning team of
// each pick is fixed before the first pick is made.
func BuildSlots(order []string, rounds int, snake bool) ([]PickSlot, error) {
	total := TotalPicks(rounds, len(order))
	if total == 0 {
		return nil, fmt.Errorf("%w: %d rounds, %d teams", ErrInvalidConfig, rounds, len(order))
	}

	slots := make([]PickSlot, 0, total)
	for pick := 1; pick <= total; pick++ {
		team, err := TeamForPick(pick, order, snake)
		if err != nil {
			return nil, err
		}
		slots = append(slots, PickSlot{
			PickNumber: pick,
			Round:      RoundForPick(pick, len(order)),
			TeamID:     team,
		})
	}
	return slots, nil
}
