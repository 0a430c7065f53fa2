package engine

import "errors"

var ErrWrongTurn = errors.New("not your turn")
var ErrSlotAlreadyFilled = errors.New("pick slot already filled")
var ErrEntityAlreadyTaken = errors.New("entity already drafted")
var ErrEntityUnavailable = errors.New("entity unavailable")
var ErrInvalidState = errors.New("invalid draft state")
var ErrOutOfRange = errors.New("pick out of range")
var ErrNoEligibleEntity = errors.New("no eligible entity")
var ErrSessionNotFound = errors.New("draft session not found")
var ErrInvalidConfig = errors.New("invalid draft config")
var ErrTeamNotFound = errors.New("team not in draft")
var ErrUnsupportedCommand = errors.New("unsupported command")

// ErrorCode returns the stable client-facing code for err, or "internal".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrWrongTurn):
		return "not_your_turn"
	case errors.Is(err, ErrSlotAlreadyFilled):
		return "slot_filled"
	case errors.Is(err, ErrEntityAlreadyTaken):
		return "already_drafted"
	case errors.Is(err, ErrEntityUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrNoEligibleEntity):
		return "no_eligible_entity"
	case errors.Is(err, ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, ErrTeamNotFound):
		return "team_not_found"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrUnsupportedCommand):
		return "unsupported"
	default:
		return "internal"
	}
}
