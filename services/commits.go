package services

import (
	"errors"
	"log"
	"strings"

	"github.com/google/go-github/v71/github"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github-commit-notify/models"
)

// UpsertSenderUser resolves a webhook sender to a user row by GitHub login,
// creating one without a telegram id if the login is unknown. Identities
// arriving this way are unauthenticated and never overwrite a registered
// user's data.
func UpsertSenderUser(db *gorm.DB, login string) (*models.User, error) {
	var user models.User
	err := db.Where("github_login = ?", login).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{GithubLogin: &login, TelegramName: login}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// BranchFromRef extracts the branch from a ref path like "refs/heads/main".
func BranchFromRef(ref string) string {
	if ref == "" {
		return "unknown"
	}
	parts := strings.Split(ref, "/")
	return parts[len(parts)-1]
}

// ProcessCommits persists one push event's commit batch. Commit creates are
// independent of each other and run in parallel; the batch is not one
// transaction. Returns the first store error, if any.
func ProcessCommits(db *gorm.DB, commits []*github.HeadCommit, branch string, repoID, authorID uint) error {
	g := new(errgroup.Group)
	for _, commit := range commits {
		commit := commit
		g.Go(func() error {
			added := len(commit.Added)
			removed := len(commit.Removed)
			modified := len(commit.Modified)

			row := models.Commit{
				SHA:          commit.GetID(),
				Message:      commit.GetMessage(),
				URL:          commit.GetURL(),
				Branch:       branch,
				Additions:    added,
				Deletions:    removed,
				FilesChanged: added + removed + modified,
				CommittedAt:  commit.GetTimestamp().Time,
				AuthorID:     &authorID,
				RepositoryID: repoID,
			}
			if err := db.Create(&row).Error; err != nil {
				log.Printf("commit create failed (sha: %s): %v", commit.GetID(), err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
