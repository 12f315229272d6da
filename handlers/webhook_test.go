package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v71/github"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github-commit-notify/models"
	"github-commit-notify/services"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("fail to open test db: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Repository{},
		&models.ChatBinding{},
		&models.RepositoryUser{},
		&models.Commit{},
		&models.WeeklyReport{},
	)
	if err != nil {
		t.Fatalf("fail to migrate test db: %v", err)
	}
	return db
}

func setupRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/webhook", HandleGitHubWebhook(db, services.NewTelegramClient("test-token")))
	return router
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func pushPayload(t *testing.T) []byte {
	event := github.PushEvent{
		Ref: github.Ptr("refs/heads/main"),
		Repo: &github.PushEventRepository{
			Name:     github.Ptr("demo"),
			FullName: github.Ptr("octo/demo"),
		},
		Sender: &github.User{Login: github.Ptr("octocat")},
		Commits: []*github.HeadCommit{
			{
				ID:        github.Ptr("abc1234def5678900000000000000000000000000"),
				Message:   github.Ptr("fix the thing"),
				URL:       github.Ptr("https://github.com/octo/demo/commit/abc1234"),
				Timestamp: &github.Timestamp{Time: time.Date(2025, 8, 27, 12, 0, 0, 0, time.UTC)},
				Added:     []string{"a.go"},
				Author:    &github.CommitAuthor{Name: github.Ptr("Octo Cat")},
			},
		},
	}

	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("fail to marshal push payload: %v", err)
	}
	return payload
}

func postWebhook(router *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/webhook", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookDeliversCommitToBoundChat(t *testing.T) {
	originalSecret := os.Getenv("GITHUB_WEBHOOK_SECRET")
	defer os.Setenv("GITHUB_WEBHOOK_SECRET", originalSecret)
	os.Setenv("GITHUB_WEBHOOK_SECRET", "test-secret")

	db := setupTestDB(t)
	repo := models.Repository{Name: "demo", FullName: "octo/demo", GithubURL: "https://github.com/octo/demo"}
	db.Create(&repo)
	db.Create(&models.ChatBinding{RepositoryID: repo.ID, ChatID: 100})

	defer gock.Off()
	gock.New("https://api.telegram.org").
		Post("/bottest-token/sendMessage").
		AddMatcher(func(req *http.Request, _ *gock.Request) (bool, error) {
			body, _ := io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewBuffer(body))
			s := string(body)
			// Bound to the main chat: no topic in the send.
			return strings.Contains(s, `"chat_id":100`) && !strings.Contains(s, "message_thread_id"), nil
		}).
		Reply(200).
		JSON(map[string]interface{}{"ok": true, "result": map[string]interface{}{"message_id": 1}})

	payload := pushPayload(t)
	w := postWebhook(setupRouter(db), payload, signBody(payload, "test-secret"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gock.IsDone(), "exactly one message goes to chat 100")

	var commits []models.Commit
	db.Find(&commits)
	assert.Len(t, commits, 1)
	assert.Equal(t, "main", commits[0].Branch)
	assert.Equal(t, "abc1234def5678900000000000000000000000000", commits[0].SHA)
	assert.Equal(t, repo.ID, commits[0].RepositoryID)

	// The sender was upserted without a platform id.
	var sender models.User
	assert.NoError(t, db.Where("github_login = ?", "octocat").First(&sender).Error)
	assert.Nil(t, sender.TelegramID)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	originalSecret := os.Getenv("GITHUB_WEBHOOK_SECRET")
	defer os.Setenv("GITHUB_WEBHOOK_SECRET", originalSecret)
	os.Setenv("GITHUB_WEBHOOK_SECRET", "test-secret")

	db := setupTestDB(t)
	repo := models.Repository{Name: "demo", FullName: "octo/demo", GithubURL: "https://github.com/octo/demo"}
	db.Create(&repo)
	db.Create(&models.ChatBinding{RepositoryID: repo.ID, ChatID: 100})

	payload := pushPayload(t)

	w := postWebhook(setupRouter(db), payload, signBody(payload, "wrong-secret"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = postWebhook(setupRouter(db), payload, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Failed authentication has no side effects.
	var count int64
	db.Model(&models.Commit{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestWebhookRejectsUnregisteredRepository(t *testing.T) {
	originalSecret := os.Getenv("GITHUB_WEBHOOK_SECRET")
	defer os.Setenv("GITHUB_WEBHOOK_SECRET", originalSecret)
	os.Setenv("GITHUB_WEBHOOK_SECRET", "test-secret")

	db := setupTestDB(t)

	payload := pushPayload(t)
	w := postWebhook(setupRouter(db), payload, signBody(payload, "test-secret"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRejectsRepositoryWithoutBinding(t *testing.T) {
	originalSecret := os.Getenv("GITHUB_WEBHOOK_SECRET")
	defer os.Setenv("GITHUB_WEBHOOK_SECRET", originalSecret)
	os.Setenv("GITHUB_WEBHOOK_SECRET", "test-secret")

	db := setupTestDB(t)
	repo := models.Repository{Name: "demo", FullName: "octo/demo", GithubURL: "https://github.com/octo/demo"}
	db.Create(&repo)

	payload := pushPayload(t)
	w := postWebhook(setupRouter(db), payload, signBody(payload, "test-secret"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	db.Model(&models.Commit{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestWebhookRejectsEmptyCommitList(t *testing.T) {
	originalSecret := os.Getenv("GITHUB_WEBHOOK_SECRET")
	defer os.Setenv("GITHUB_WEBHOOK_SECRET", originalSecret)
	os.Setenv("GITHUB_WEBHOOK_SECRET", "test-secret")

	db := setupTestDB(t)
	repo := models.Repository{Name: "demo", FullName: "octo/demo", GithubURL: "https://github.com/octo/demo"}
	db.Create(&repo)
	db.Create(&models.ChatBinding{RepositoryID: repo.ID, ChatID: 100})

	event := github.PushEvent{
		Ref:    github.Ptr("refs/heads/main"),
		Repo:   &github.PushEventRepository{Name: github.Ptr("demo"), FullName: github.Ptr("octo/demo")},
		Sender: &github.User{Login: github.Ptr("octocat")},
	}
	payload, _ := json.Marshal(event)

	w := postWebhook(setupRouter(db), payload, signBody(payload, "test-secret"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookIgnoresNonPushEvents(t *testing.T) {
	originalSecret := os.Getenv("GITHUB_WEBHOOK_SECRET")
	defer os.Setenv("GITHUB_WEBHOOK_SECRET", originalSecret)
	os.Setenv("GITHUB_WEBHOOK_SECRET", "test-secret")

	db := setupTestDB(t)

	event := github.PingEvent{Zen: github.Ptr("Keep it logically awesome.")}
	payload, _ := json.Marshal(event)

	req, _ := http.NewRequest("POST", "/webhook", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "ping")
	req.Header.Set("X-Hub-Signature-256", signBody(payload, "test-secret"))

	w := httptest.NewRecorder()
	setupRouter(db).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
