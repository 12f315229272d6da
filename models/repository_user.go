package models

import (
	"time"
)

// RepositoryUser records that a user asked to track a repository,
// independent of which chat the binding lives in.
type RepositoryUser struct {
	ID           uint `gorm:"primaryKey"`
	UserID       uint `gorm:"uniqueIndex:idx_user_repo"`
	RepositoryID uint `gorm:"uniqueIndex:idx_user_repo"`
	CreatedAt    time.Time
}
