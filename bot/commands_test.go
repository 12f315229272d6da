package bot

import (
	"testing"

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

func newTestBot(db *gorm.DB) *Bot {
	return New(db, services.NewTelegramClient("test-token"), nil)
}

func textUpdate(userID, chatID int64, text string) services.Update {
	return services.Update{
		UpdateID: 1,
		Message: &services.TelegramMessage{
			MessageID: 10,
			From:      &services.TelegramUser{ID: userID, Username: "alice"},
			Chat:      services.TelegramChat{ID: chatID, Type: "private"},
			Text:      text,
		},
	}
}

func mockSendMessage() {
	gock.New("https://api.telegram.org").
		Post("/bottest-token/sendMessage").
		Persist().
		Reply(200).
		JSON(map[string]interface{}{"ok": true, "result": map[string]interface{}{"message_id": 1}})
}

func TestStartRegistersUser(t *testing.T) {
	db := setupTestDB(t)
	b := newTestBot(db)

	defer gock.Off()
	mockSendMessage()

	b.HandleUpdate(textUpdate(42, 100, "/start"))

	var user models.User
	assert.NoError(t, db.Where("telegram_id = ?", 42).First(&user).Error)
	assert.Equal(t, "alice", user.TelegramName)
}

func TestAddRepoFlow(t *testing.T) {
	db := setupTestDB(t)
	b := newTestBot(db)

	defer gock.Off()
	mockSendMessage()

	b.HandleUpdate(textUpdate(42, 100, "/addrepo"))
	assert.Equal(t, StateAwaitingRepoName, b.Sessions.Get(42, 100))

	b.HandleUpdate(textUpdate(42, 100, "octo/demo"))
	assert.Equal(t, StateNone, b.Sessions.Get(42, 100))

	var repo models.Repository
	assert.NoError(t, db.Where("full_name = ?", "octo/demo").First(&repo).Error)

	var binding models.ChatBinding
	assert.NoError(t, db.Where("repository_id = ? AND chat_id = ?", repo.ID, 100).First(&binding).Error)
	assert.Nil(t, binding.ThreadID)
}

func TestAddRepoRejectsBadName(t *testing.T) {
	db := setupTestDB(t)
	b := newTestBot(db)

	defer gock.Off()
	mockSendMessage()

	b.HandleUpdate(textUpdate(42, 100, "/addrepo"))
	b.HandleUpdate(textUpdate(42, 100, "not a repo name"))

	var count int64
	db.Model(&models.Repository{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestMenuButtonRoutesToAddRepo(t *testing.T) {
	db := setupTestDB(t)
	b := newTestBot(db)

	defer gock.Off()
	mockSendMessage()

	b.HandleUpdate(textUpdate(42, 100, menuAddRepo))
	assert.Equal(t, StateAwaitingRepoName, b.Sessions.Get(42, 100))
}

func TestLinkGithubFlow(t *testing.T) {
	db := setupTestDB(t)
	b := newTestBot(db)

	defer gock.Off()
	mockSendMessage()

	// /linkgithub as the very first interaction: the sender is registered on
	// the spot, no /start needed.
	b.HandleUpdate(textUpdate(42, 100, "/linkgithub"))
	assert.Equal(t, StateAwaitingGithubUsername, b.Sessions.Get(42, 100))

	var user models.User
	assert.NoError(t, db.Where("telegram_id = ?", 42).First(&user).Error)

	b.HandleUpdate(textUpdate(42, 100, "alice-gh"))
	assert.Equal(t, StateNone, b.Sessions.Get(42, 100))

	assert.NoError(t, db.Where("telegram_id = ?", 42).First(&user).Error)
	if assert.NotNil(t, user.GithubLogin) {
		assert.Equal(t, "alice-gh", *user.GithubLogin)
	}
}

func TestLinkGithubRejectsBadUsername(t *testing.T) {
	db := setupTestDB(t)
	b := newTestBot(db)

	defer gock.Off()
	mockSendMessage()

	b.HandleUpdate(textUpdate(42, 100, "/linkgithub"))
	b.HandleUpdate(textUpdate(42, 100, "-bad-login-"))

	// Invalid input keeps the prompt open and links nothing.
	assert.Equal(t, StateAwaitingGithubUsername, b.Sessions.Get(42, 100))

	var user models.User
	assert.NoError(t, db.Where("telegram_id = ?", 42).First(&user).Error)
	assert.Nil(t, user.GithubLogin)
}

func TestCommandWithBotSuffix(t *testing.T) {
	db := setupTestDB(t)
	b := newTestBot(db)

	defer gock.Off()
	mockSendMessage()

	b.HandleUpdate(textUpdate(42, 100, "/addrepo@commit_notify_bot"))
	assert.Equal(t, StateAwaitingRepoName, b.Sessions.Get(42, 100))
}
