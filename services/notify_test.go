package services

import (
	"testing"
	"time"

	"github.com/google/go-github/v71/github"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"

	"github-commit-notify/models"
)

func testHeadCommit() *github.HeadCommit {
	return &github.HeadCommit{
		ID:        github.Ptr("abc1234def5678900000000000000000000000000"),
		Message:   github.Ptr("fix the thing\n\ndetails here"),
		URL:       github.Ptr("https://github.com/octo/demo/commit/abc1234"),
		Timestamp: &github.Timestamp{Time: time.Now()},
		Added:     []string{"a.go"},
		Removed:   []string{},
		Modified:  []string{"b.go", "c.go"},
	}
}

func TestFormatCommitMessage(t *testing.T) {
	db := setupTestDB(t)

	msg := FormatCommitMessage(db, "demo", "main", "octocat", testHeadCommit())

	assert.Contains(t, msg, "*demo*")
	assert.Contains(t, msg, "`(main)`")
	assert.Contains(t, msg, "[abc1234](https://github.com/octo/demo/commit/abc1234)")
	assert.Contains(t, msg, "fix the thing")
	assert.NotContains(t, msg, "details here", "only the first message line is shown")
	assert.Contains(t, msg, "\\+1/\\-0 \\(3 files\\)")
	// Unlinked author: plain GitHub link.
	assert.Contains(t, msg, "[octocat](https://github.com/octocat)")
}

func TestFormatCommitMessageEscapesBranch(t *testing.T) {
	db := setupTestDB(t)

	msg := FormatCommitMessage(db, "demo", "odd`branch", "octocat", testHeadCommit())
	assert.Contains(t, msg, "`(odd\\`branch)`", "backtick in a branch name must not break the code span")
}

func TestFormatCommitAuthorLinkPrefersTelegramName(t *testing.T) {
	db := setupTestDB(t)
	createTestUser(t, db, 42, "alice")
	assert.NoError(t, LinkGithub(db, 42, "alice-gh"))

	link := FormatCommitAuthorLink(db, "alice-gh", "Alice A.")
	assert.Contains(t, link, "@alice")
	assert.Contains(t, link, "[alice\\-gh](https://github.com/alice-gh)")

	unknown := FormatCommitAuthorLink(db, "stranger", "")
	assert.Contains(t, unknown, "[stranger](https://github.com/stranger)")
}

func TestSendCommitMessagesContinuesPastFailure(t *testing.T) {
	defer gock.Off()

	// First send fails, the rest still go out.
	gock.New("https://api.telegram.org").
		Post("/bottest-token/sendMessage").
		Reply(200).
		JSON(map[string]interface{}{"ok": false, "description": "Too Many Requests: retry after 5"})
	gock.New("https://api.telegram.org").
		Post("/bottest-token/sendMessage").
		Reply(200).
		JSON(map[string]interface{}{"ok": true, "result": map[string]interface{}{"message_id": 1}})
	gock.New("https://api.telegram.org").
		Post("/bottest-token/sendMessage").
		Reply(200).
		JSON(map[string]interface{}{"ok": true, "result": map[string]interface{}{"message_id": 2}})
	gock.New("https://api.telegram.org").
		Post("/bottest-token/sendMessage").
		Reply(200).
		JSON(map[string]interface{}{"ok": true, "result": map[string]interface{}{"message_id": 3}})

	threadID := int64(7)
	bindings := []models.ChatBinding{
		{RepositoryID: 1, ChatID: 100},
		{RepositoryID: 1, ChatID: 200, ThreadID: &threadID},
	}

	SendCommitMessages(testClient(), []string{"m1", "m2"}, bindings)

	assert.True(t, gock.IsDone(), "all sends must be attempted despite the failure")
}
