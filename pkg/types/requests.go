package types

import "github.com/DoyleJ11/bot-draft-backend/internal/catalog"

type CreateDraftRequest struct {
	ID           string         `json:"id" validate:"omitempty,max=64"`
	TeamOrder    []string       `json:"team_order" validate:"required,min=1,unique,dive,required,max=64"`
	Rounds       int            `json:"rounds" validate:"omitempty,min=1,max=50"`
	PickSeconds  int            `json:"pick_seconds" validate:"omitempty,min=1,max=3600"`
	Snake        *bool          `json:"snake"`
	PositionCaps map[string]int `json:"position_caps" validate:"omitempty,dive,keys,required,endkeys,min=0"`

	// RandomizeOrder shuffles team_order before the draft is created.
	RandomizeOrder bool `json:"randomize_order"`
}

type SubmitPickRequest struct {
	PickNumber int    `json:"pick_number"`
	EntityID   string `json:"entity_id" validate:"required"`
	TeamID     string `json:"team_id"`
	Override   bool   `json:"override"`
}

// AddPlayersRequest replenishes the player pool, typically to unblock a
// stalled draft.
type AddPlayersRequest struct {
	Players []PlayerInput `json:"players" validate:"required,min=1,dive"`
}

type PlayerInput struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name"`
	Position string  `json:"position" validate:"required"`
	Team     string  `json:"team"`
	ADP      float64 `json:"adp" validate:"min=0"`
}

func (p PlayerInput) Player() catalog.Player {
	return catalog.Player{ID: p.ID, Name: p.Name, Position: p.Position, Team: p.Team, ADP: p.ADP}
}

type AddPlayersResponse struct {
	Added int `json:"added"`
	Total int `json:"total"`
}
