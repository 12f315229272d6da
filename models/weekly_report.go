package models

import (
	"time"
)

// WeeklyReport is an append-only archive of one repository's contributor
// digest for one week window. Stats holds the per-author counts as JSON.
type WeeklyReport struct {
	ID           string `gorm:"primaryKey"`
	RepositoryID uint   `gorm:"index"`
	WeekStart    time.Time
	WeekEnd      time.Time
	Stats        string
	SentAt       time.Time
	CreatedAt    time.Time
}
