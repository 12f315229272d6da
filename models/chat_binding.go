package models

import (
	"time"
)

// ChatBinding tracks a repository in one chat, optionally inside a forum
// topic. A repository binds at most once per chat; the thread id is an
// attribute of that single binding, not part of the key.
type ChatBinding struct {
	ID           uint   `gorm:"primaryKey"`
	RepositoryID uint   `gorm:"uniqueIndex:idx_repo_chat"`
	ChatID       int64  `gorm:"uniqueIndex:idx_repo_chat"`
	ThreadID     *int64 // nil = main chat
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
