package handlers

import (
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v71/github"
	"gorm.io/gorm"

	"github-commit-notify/models"
	"github-commit-notify/services"
)

// HandleGitHubWebhook ingests push events: signature check over the raw
// body, payload validation, commit persistence, then fan-out to every chat
// binding of the repository.
func HandleGitHubWebhook(db *gorm.DB, tg *services.TelegramClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Raw bytes are captured before any JSON decoding; the signature is
		// computed over the wire payload, not a re-serialized object.
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			services.WebhooksReceived.WithLabelValues("error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read body"})
			return
		}

		secret := os.Getenv("GITHUB_WEBHOOK_SECRET")
		signature := c.GetHeader(github.SHA256SignatureHeader)
		if !services.ValidSignature(body, secret, signature) {
			services.WebhooksReceived.WithLabelValues("invalid_signature").Inc()
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}

		event, err := github.ParseWebHook(github.WebHookType(c.Request), body)
		if err != nil {
			services.WebhooksReceived.WithLabelValues("bad_request").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot parse webhook"})
			return
		}

		push, ok := event.(*github.PushEvent)
		if !ok {
			// Only push events carry commits; everything else is acknowledged.
			c.Status(http.StatusOK)
			return
		}

		handlePushEvent(c, db, tg, push)
	}
}

func handlePushEvent(c *gin.Context, db *gorm.DB, tg *services.TelegramClient, e *github.PushEvent) {
	repoFullName := e.GetRepo().GetFullName()
	senderLogin := e.GetSender().GetLogin()

	if repoFullName == "" || len(e.Commits) == 0 || senderLogin == "" {
		services.WebhooksReceived.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing repository, sender or commits"})
		return
	}

	// Webhook traffic never creates repositories implicitly.
	var repo models.Repository
	if err := db.Where("full_name = ?", repoFullName).First(&repo).Error; err != nil {
		services.WebhooksReceived.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "repository not registered"})
		return
	}

	var bindings []models.ChatBinding
	if err := db.Where("repository_id = ?", repo.ID).Find(&bindings).Error; err != nil || len(bindings) == 0 {
		services.WebhooksReceived.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "no chat binding for repository"})
		return
	}

	user, err := services.UpsertSenderUser(db, senderLogin)
	if err != nil {
		services.WebhooksReceived.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	branch := services.BranchFromRef(e.GetRef())

	if err := services.ProcessCommits(db, e.Commits, branch, repo.ID, user.ID); err != nil {
		services.WebhooksReceived.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	messages := make([]string, 0, len(e.Commits))
	for _, commit := range e.Commits {
		messages = append(messages, services.FormatCommitMessage(db, repo.Name, branch, senderLogin, commit))
	}
	services.SendCommitMessages(tg, messages, bindings)

	services.WebhooksReceived.WithLabelValues("ok").Inc()
	c.Status(http.StatusOK)
}
