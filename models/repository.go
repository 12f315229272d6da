package models

import (
	"time"
)

type Repository struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string // short name, e.g. "demo"
	FullName  string `gorm:"uniqueIndex"` // "owner/demo"
	GithubURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}
