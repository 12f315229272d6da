package models

import (
	"time"
)

// Commit is one ingested push-event commit. SHA is indexed but not unique:
// a redelivered webhook inserts the same sha again.
type Commit struct {
	ID           uint   `gorm:"primaryKey"`
	SHA          string `gorm:"index"`
	Message      string
	URL          string
	Branch       string
	Additions    int
	Deletions    int
	FilesChanged int
	CommittedAt  time.Time
	AuthorID     *uint `gorm:"index"`
	RepositoryID uint  `gorm:"index"`
	CreatedAt    time.Time

	Author *User `gorm:"foreignKey:AuthorID"`
}
