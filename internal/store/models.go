package store

import (
	"time"

	"gorm.io/datatypes"
)

// RepositionEvent is the gorm model for one audit log row.
type RepositionEvent struct {
	Sequence          int64  `gorm:"primaryKey;autoIncrement"`
	EventID           string `gorm:"uniqueIndex;size:36"`
	UserID            string `gorm:"index:idx_user_stitch"`
	PathID            string `gorm:"index"`
	StitchID          string `gorm:"index:idx_user_stitch"`
	PreviousPosition  int
	NewPosition       int
	SkipNumber        int
	CorrectCount      int
	TotalCount        int
	AvgResponseTimeMs int64
	Timestamp         time.Time `gorm:"index"`
	CreatedAt         time.Time
}

// UserSnapshot is the gorm model for one user's scheduler snapshot,
// stored as a JSON document.
type UserSnapshot struct {
	UserID    string         `gorm:"primaryKey;size:128"`
	Data      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

func (RepositionEvent) TableName() string { return "reposition_events" }
func (UserSnapshot) TableName() string    { return "user_snapshots" }
