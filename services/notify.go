package services

import (
	"fmt"
	"log"
	"strings"

	"github.com/google/go-github/v71/github"
	"gorm.io/gorm"

	"github-commit-notify/models"
)

// FormatCommitAuthorLink renders the author line of a commit notification.
// If the GitHub login is linked to a Telegram account the Telegram name is
// shown first, otherwise the commit author's name links to their GitHub page.
func FormatCommitAuthorLink(db *gorm.DB, githubLogin, authorName string) string {
	if authorName == "" {
		authorName = githubLogin
	}

	var user models.User
	err := db.Where("github_login = ?", githubLogin).First(&user).Error
	if err == nil && user.TelegramName != "" {
		return fmt.Sprintf("👤 @%s \\(GitHub: [%s](https://github.com/%s)\\)",
			EscapeMarkdown(user.TelegramName), EscapeMarkdown(githubLogin), githubLogin)
	}

	return fmt.Sprintf("👤 [%s](https://github.com/%s)", EscapeMarkdown(authorName), githubLogin)
}

// FormatCommitMessage renders one commit as a MarkdownV2 notification:
// repository and branch, author link, short sha linking to the commit, the
// first line of the message, and a file-change summary.
func FormatCommitMessage(db *gorm.DB, repoName, branch, senderLogin string, commit *github.HeadCommit) string {
	sha := commit.GetID()
	if len(sha) > 7 {
		sha = sha[:7]
	}

	added := len(commit.Added)
	removed := len(commit.Removed)
	modified := len(commit.Modified)
	filesChanged := added + removed + modified

	firstLine := strings.SplitN(commit.GetMessage(), "\n", 2)[0]
	authorLink := FormatCommitAuthorLink(db, senderLogin, commit.GetAuthor().GetName())

	return fmt.Sprintf("*%s* `(%s)`\n%s\n📌 [%s](%s) — %s\n📊 %s",
		EscapeMarkdown(repoName),
		EscapeCode(branch),
		authorLink,
		sha,
		commit.GetURL(),
		EscapeMarkdown(firstLine),
		EscapeMarkdown(fmt.Sprintf("+%d/-%d (%d files)", added, removed, filesChanged)),
	)
}

// SendCommitMessages fans the rendered messages out to every binding.
// Messages stay in push order per destination. A failed send is logged and
// final for that (binding, message) pair; it never stops the rest.
func SendCommitMessages(tg *TelegramClient, messages []string, bindings []models.ChatBinding) {
	for _, binding := range bindings {
		for _, msg := range messages {
			err := tg.SendMessage(binding.ChatID, msg, &SendMessageOptions{ThreadID: binding.ThreadID})
			if err != nil {
				log.Printf("commit message send failed (chat: %d): %v", binding.ChatID, err)
				CommitMessagesFailed.Inc()
				continue
			}
			CommitMessagesSent.Inc()
		}
	}
}
