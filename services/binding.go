package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/go-github/v71/github"
	"gorm.io/gorm"

	"github-commit-notify/models"
)

var (
	ErrGithubLoginTaken = errors.New("github login already linked to another account")
	ErrGithubNotLinked  = errors.New("github login is not linked")
	ErrRepoNotOnGithub  = errors.New("repository not found on github")
)

// RegisterUser upserts a user by telegram id and refreshes the display name.
func RegisterUser(db *gorm.DB, telegramID int64, name string) (*models.User, error) {
	var user models.User
	err := db.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{TelegramID: &telegramID, TelegramName: name}
		if err := db.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	if user.TelegramName != name {
		user.TelegramName = name
		user.UpdatedAt = time.Now()
		if err := db.Save(&user).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}

// LinkGithub attaches a GitHub login to the user. The login is unique across
// users; a login claimed by anyone else (including a webhook-created user)
// is rejected.
func LinkGithub(db *gorm.DB, telegramID int64, login string) error {
	var user models.User
	if err := db.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return err
	}

	var other models.User
	err := db.Where("github_login = ?", login).First(&other).Error
	if err == nil && other.ID != user.ID {
		return ErrGithubLoginTaken
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return db.Model(&user).Updates(map[string]interface{}{
		"github_login": login,
		"updated_at":   time.Now(),
	}).Error
}

// UnlinkGithub clears the user's GitHub login.
func UnlinkGithub(db *gorm.DB, telegramID int64) error {
	var user models.User
	if err := db.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return err
	}
	if user.GithubLogin == nil {
		return ErrGithubNotLinked
	}
	return db.Model(&user).Updates(map[string]interface{}{
		"github_login": nil,
		"updated_at":   time.Now(),
	}).Error
}

// ListUserRepositories returns the repositories a user asked to track,
// across all chats.
func ListUserRepositories(db *gorm.DB, userID uint) ([]models.Repository, error) {
	var repos []models.Repository
	err := db.
		Joins("JOIN repository_users ON repository_users.repository_id = repositories.id").
		Where("repository_users.user_id = ?", userID).
		Order("repositories.full_name").
		Find(&repos).Error
	return repos, err
}

// BindingView is a chat binding together with its repository, for rendering
// the deletion selection keyboard.
type BindingView struct {
	Binding    models.ChatBinding
	Repository models.Repository
}

// ListUserBindingsInChat returns the bindings in this chat whose repository
// the user tracks.
func ListUserBindingsInChat(db *gorm.DB, userID uint, chatID int64) ([]BindingView, error) {
	var repoIDs []uint
	if err := db.Model(&models.RepositoryUser{}).
		Where("user_id = ?", userID).
		Pluck("repository_id", &repoIDs).Error; err != nil {
		return nil, err
	}
	if len(repoIDs) == 0 {
		return nil, nil
	}

	var bindings []models.ChatBinding
	if err := db.Where("chat_id = ? AND repository_id IN ?", chatID, repoIDs).
		Find(&bindings).Error; err != nil {
		return nil, err
	}

	views := make([]BindingView, 0, len(bindings))
	for _, b := range bindings {
		var repo models.Repository
		if err := db.First(&repo, b.RepositoryID).Error; err != nil {
			log.Printf("binding %d references missing repository %d: %v", b.ID, b.RepositoryID, err)
			continue
		}
		views = append(views, BindingView{Binding: b, Repository: repo})
	}
	return views, nil
}

// SplitFullName splits "owner/name" into its parts.
func SplitFullName(fullName string) (owner, name string) {
	idx := strings.LastIndex(fullName, "/")
	if idx < 0 {
		return "", fullName
	}
	return fullName[:idx], fullName[idx+1:]
}

type AddRepositoryParams struct {
	User             *models.User
	ChatID           int64
	ChatIsGroup      bool   // group or supergroup chat
	ExplicitThreadID *int64 // thread the command was issued in, if any
	FullName         string
	GithubClient     *github.Client // optional existence check
}

type AddRepositoryResult struct {
	Repository    models.Repository
	ThreadID      *int64
	TopicCreated  bool
	TopicReused   bool
	TopicFallback bool // wanted a topic, ended up in the main chat
}

// AddRepository reconciles a repository, its chat binding and the user's
// tracking record. All three writes are upserts, so repeating the command
// never duplicates rows. Topic resolution: an explicit thread wins, then an
// existing binding's topic is reused, then a fresh topic is created for
// forum chats, falling back to the main chat on any platform error.
func AddRepository(db *gorm.DB, tg *TelegramClient, p AddRepositoryParams) (*AddRepositoryResult, error) {
	owner, name := SplitFullName(p.FullName)
	githubURL := fmt.Sprintf("https://github.com/%s", p.FullName)

	if p.GithubClient != nil {
		exists, err := RepositoryExists(context.Background(), p.GithubClient, owner, name)
		if err != nil {
			log.Printf("github existence check failed for %s: %v", p.FullName, err)
		} else if !exists {
			return nil, ErrRepoNotOnGithub
		}
	}

	result := &AddRepositoryResult{}

	// Existing repository row, if any, so topic reuse can be resolved before
	// any write happens.
	var repo models.Repository
	repoErr := db.Where("full_name = ?", p.FullName).First(&repo).Error
	if repoErr != nil && !errors.Is(repoErr, gorm.ErrRecordNotFound) {
		return nil, repoErr
	}

	if p.ChatIsGroup {
		switch {
		case p.ExplicitThreadID != nil:
			result.ThreadID = p.ExplicitThreadID
		default:
			if repoErr == nil {
				var existing models.ChatBinding
				err := db.Where("repository_id = ? AND chat_id = ? AND thread_id IS NOT NULL",
					repo.ID, p.ChatID).First(&existing).Error
				if err == nil && existing.ThreadID != nil {
					result.ThreadID = existing.ThreadID
					result.TopicReused = true
				} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, err
				}
			}
			if result.ThreadID == nil {
				chat, err := tg.GetChat(p.ChatID)
				if err == nil && chat.Type == "supergroup" && chat.IsForum {
					threadID, err := tg.CreateForumTopic(p.ChatID, name)
					if err != nil {
						log.Printf("forum topic create failed (chat: %d): %v", p.ChatID, err)
						result.TopicFallback = true
					} else {
						result.ThreadID = &threadID
						result.TopicCreated = true
					}
				} else {
					if err != nil {
						log.Printf("getChat failed (chat: %d): %v", p.ChatID, err)
					}
					result.TopicFallback = true
				}
			}
		}
	}

	// Repository upsert by full name.
	if errors.Is(repoErr, gorm.ErrRecordNotFound) {
		repo = models.Repository{Name: name, FullName: p.FullName, GithubURL: githubURL}
		if err := db.Create(&repo).Error; err != nil {
			return nil, err
		}
	} else {
		repo.Name = name
		repo.GithubURL = githubURL
		repo.UpdatedAt = time.Now()
		if err := db.Save(&repo).Error; err != nil {
			return nil, err
		}
	}

	// Binding upsert by (repository, chat). One row per pair; a second add
	// only moves the thread id.
	var binding models.ChatBinding
	err := db.Where("repository_id = ? AND chat_id = ?", repo.ID, p.ChatID).First(&binding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		binding = models.ChatBinding{RepositoryID: repo.ID, ChatID: p.ChatID, ThreadID: result.ThreadID}
		if err := db.Create(&binding).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		binding.ThreadID = result.ThreadID
		binding.UpdatedAt = time.Now()
		if err := db.Save(&binding).Error; err != nil {
			return nil, err
		}
	}

	// Tracking record upsert by (user, repository).
	if p.User != nil {
		var ru models.RepositoryUser
		err := db.Where("user_id = ? AND repository_id = ?", p.User.ID, repo.ID).First(&ru).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ru = models.RepositoryUser{UserID: p.User.ID, RepositoryID: repo.ID}
			if err := db.Create(&ru).Error; err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
	}

	result.Repository = repo
	return result, nil
}

type DeleteBindingResult struct {
	NotFound          bool
	Repository        models.Repository
	TopicDeleted      bool
	TopicDeleteErr    error
	RepositoryRemoved bool
	RemainingBindings int64
}

// DeleteBinding removes the binding identified by the exact
// (repository, chat, thread) triple and runs the cascade. The store is the
// source of truth: the binding row goes first, the platform topic delete is
// best effort and never rolls the row back, and the repository cascade check
// always runs after a successful row delete.
func DeleteBinding(db *gorm.DB, tg *TelegramClient, repoID uint, chatID int64, threadID *int64) (*DeleteBindingResult, error) {
	result := &DeleteBindingResult{}

	var repo models.Repository
	if err := db.First(&repo, repoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.NotFound = true
			return result, nil
		}
		return nil, err
	}
	result.Repository = repo

	query := db.Where("repository_id = ? AND chat_id = ?", repoID, chatID)
	if threadID == nil {
		query = query.Where("thread_id IS NULL")
	} else {
		query = query.Where("thread_id = ?", *threadID)
	}

	var binding models.ChatBinding
	if err := query.First(&binding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Double confirmation or stale callback: terminal, no mutation.
			result.NotFound = true
			return result, nil
		}
		return nil, err
	}

	if err := db.Delete(&models.ChatBinding{}, binding.ID).Error; err != nil {
		return nil, err
	}

	// A repository binds at most once per chat, so removing the binding
	// always orphans its topic.
	if threadID != nil {
		if err := tg.DeleteForumTopic(chatID, *threadID); err != nil {
			log.Printf("forum topic delete failed (chat: %d, thread: %d): %v", chatID, *threadID, err)
			result.TopicDeleteErr = err
		} else {
			result.TopicDeleted = true
		}
	}

	var remaining int64
	if err := db.Model(&models.ChatBinding{}).
		Where("repository_id = ?", repoID).Count(&remaining).Error; err != nil {
		return nil, err
	}
	result.RemainingBindings = remaining

	if remaining == 0 {
		if err := db.Where("repository_id = ?", repoID).
			Delete(&models.RepositoryUser{}).Error; err != nil {
			return nil, err
		}
		if err := db.Delete(&models.Repository{}, repoID).Error; err != nil {
			return nil, err
		}
		result.RepositoryRemoved = true
		log.Printf("repository %s (%d) fully removed, no bindings left", repo.FullName, repoID)
	}

	return result, nil
}
