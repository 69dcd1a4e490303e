package db

import (
	"time"

	"gorm.io/datatypes"
)

// Room codes are reused once a room is gone, so a code maps to many rows over
// time; Recorder tracks the live row id.
type Room struct {
	ID           uint      `gorm:"primaryKey"`
	Code         string    `gorm:"size:6;index;not null"`
	RoundMinutes int       `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"not null"`
	ClosedAt     *time.Time
	Rounds       []Round
	Events       []Event
}

type Round struct {
	ID           uint           `gorm:"primaryKey"`
	RoomID       uint           `gorm:"index;not null;uniqueIndex:idx_rounds_room_number"`
	Number       int            `gorm:"not null;uniqueIndex:idx_rounds_room_number"`
	ScenarioName string         `gorm:"size:64;not null"`
	OutsiderID   string         `gorm:"size:64;not null"`
	OutsiderName string         `gorm:"size:64;not null"`
	PlayerCount  int            `gorm:"not null"`
	Winner       string         `gorm:"size:16"`
	EndReason    string         `gorm:"size:32"`
	Guess        string         `gorm:"size:64"`
	AccusedID    string         `gorm:"size:64"`
	Votes        datatypes.JSON `gorm:"type:jsonb"`
	StartedAt    time.Time      `gorm:"not null"`
	EndedAt      *time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type Event struct {
	ID          uint           `gorm:"primaryKey"`
	RoomID      uint           `gorm:"index;not null"`
	RoundNumber int            `gorm:"not null;default:0"`
	Type        string         `gorm:"size:64;not null"`
	Payload     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time      `gorm:"not null"`
}
