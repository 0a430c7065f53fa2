package postgres

import (
	"time"

	"gorm.io/datatypes"
)

type Draft struct {
	ID             string                             `gorm:"primaryKey;size:64"`
	TeamOrder      datatypes.JSONSlice[string]        `gorm:"type:jsonb;not null"`
	Rounds         int                                `gorm:"not null"`
	PickDurationMS int64                              `gorm:"not null"`
	Snake          bool                               `gorm:"not null;default:true"`
	PositionCaps   datatypes.JSONType[map[string]int] `gorm:"type:jsonb;not null"`
	Status         string                             `gorm:"size:32;not null;index"`
	CurrentPick    int                                `gorm:"not null;default:0"`
	Version        int                                `gorm:"not null;default:0"`
	StallReason    string                             `gorm:"size:255"`
	DeadlineAt     *time.Time
	StartedAt      *time.Time
	EndedAt        *time.Time
	CreatedAt      time.Time   `gorm:"not null"`
	UpdatedAt      time.Time   `gorm:"not null"`
	Picks          []DraftPick `gorm:"foreignKey:SessionID"`
}

func (Draft) TableName() string { return "drafts" }

type DraftPick struct {
	SessionID  string  `gorm:"primaryKey;size:64"`
	PickNumber int     `gorm:"primaryKey"`
	Round      int     `gorm:"not null"`
	TeamID     string  `gorm:"size:64;not null"`
	EntityID   *string `gorm:"size:64"`
	Source     *string `gorm:"size:16"`
	FilledAt   *time.Time
}

func (DraftPick) TableName() string { return "draft_picks" }
