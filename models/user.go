package models

import (
	"time"
)

// User is a bot user. TelegramID is nil for users created from webhook
// traffic whose GitHub login has not been claimed by a real Telegram account.
type User struct {
	ID           uint    `gorm:"primaryKey"`
	TelegramID   *int64  `gorm:"uniqueIndex"`
	TelegramName string
	GithubLogin  *string `gorm:"uniqueIndex"` // at most one user per GitHub login
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
