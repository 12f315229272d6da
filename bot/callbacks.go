package bot

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github-commit-notify/models"
	"github-commit-notify/services"
)

// Deletion flow callback tokens. The token carries the full
// (repository, thread-or-null) target; the chat comes from the message the
// button lives on.
var (
	selectDeletePattern  = regexp.MustCompile(`^select_to_delete_repo_(\d+)_(\d+|null)$`)
	confirmDeletePattern = regexp.MustCompile(`^confirm_delete_(\d+)_(\d+|null)$`)
	cancelDeletePattern  = regexp.MustCompile(`^cancel_delete_(\d+)_(\d+|null)$`)
)

func parseDeleteTarget(m []string) (repoID uint, threadID *int64, ok bool) {
	id, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, nil, false
	}
	if m[2] != "null" {
		t, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return 0, nil, false
		}
		threadID = &t
	}
	return uint(id), threadID, true
}

func (b *Bot) handleCallback(q *services.CallbackQuery) {
	if m := selectDeletePattern.FindStringSubmatch(q.Data); m != nil {
		b.handleSelectDelete(q, m)
		return
	}
	if m := confirmDeletePattern.FindStringSubmatch(q.Data); m != nil {
		b.handleConfirmDelete(q, m)
		return
	}
	if m := cancelDeletePattern.FindStringSubmatch(q.Data); m != nil {
		b.handleCancelDelete(q, m)
		return
	}

	// Unknown token: acknowledge so the client stops its spinner.
	if err := b.Client.AnswerCallbackQuery(q.ID, ""); err != nil {
		log.Printf("answerCallbackQuery failed: %v", err)
	}
}

// editOrReply collapses the prompt message in place, falling back to a plain
// reply when the original message is gone.
func (b *Bot) editOrReply(q *services.CallbackQuery, text string, markup *services.InlineKeyboardMarkup) {
	if q.Message == nil {
		return
	}
	err := b.Client.EditMessageText(q.Message.Chat.ID, q.Message.MessageID, text, markup)
	if err != nil {
		log.Printf("editMessageText failed (chat: %d): %v", q.Message.Chat.ID, err)
		opts := &services.SendMessageOptions{ThreadID: q.Message.MessageThreadID}
		if err := b.Client.SendMessage(q.Message.Chat.ID, text, opts); err != nil {
			log.Printf("callback reply send failed (chat: %d): %v", q.Message.Chat.ID, err)
		}
	}
}

// handleSelectDelete moves the flow from selection to confirmation.
func (b *Bot) handleSelectDelete(q *services.CallbackQuery, m []string) {
	if err := b.Client.AnswerCallbackQuery(q.ID, ""); err != nil {
		log.Printf("answerCallbackQuery failed: %v", err)
	}

	repoID, threadID, ok := parseDeleteTarget(m)
	if !ok || q.Message == nil {
		return
	}

	var repo models.Repository
	if err := b.DB.First(&repo, repoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			b.editOrReply(q, services.EscapeMarkdown("Repository not found."), nil)
			return
		}
		log.Printf("repository lookup failed (repo: %d): %v", repoID, err)
		b.editOrReply(q, services.EscapeMarkdown("⚠️ Something went wrong. Please try again later."), nil)
		return
	}

	suffix := "null"
	topicNote := ""
	if threadID != nil {
		suffix = strconv.FormatInt(*threadID, 10)
		topicNote = fmt.Sprintf(" \\(topic: %s\\)", services.EscapeMarkdown(repo.Name))
	}

	keyboard := &services.InlineKeyboardMarkup{
		InlineKeyboard: [][]services.InlineKeyboardButton{{
			{Text: "✅ Yes, remove", CallbackData: fmt.Sprintf("confirm_delete_%d_%s", repoID, suffix)},
			{Text: "❌ No, cancel", CallbackData: fmt.Sprintf("cancel_delete_%d_%s", repoID, suffix)},
		}},
	}

	b.editOrReply(q, fmt.Sprintf("%s *%s*%s?",
		services.EscapeMarkdown("Remove repository"),
		services.EscapeMarkdown(repo.FullName),
		topicNote), keyboard)
}

// handleConfirmDelete is the terminal CONFIRMED transition: it deletes the
// binding, runs the cascade and reports the combined outcome in one message.
func (b *Bot) handleConfirmDelete(q *services.CallbackQuery, m []string) {
	if err := b.Client.AnswerCallbackQuery(q.ID, "Removing repository..."); err != nil {
		log.Printf("answerCallbackQuery failed: %v", err)
	}

	repoID, threadID, ok := parseDeleteTarget(m)
	if !ok || q.Message == nil {
		return
	}
	chatID := q.Message.Chat.ID

	result, err := services.DeleteBinding(b.DB, b.Client, repoID, chatID, threadID)
	if err != nil {
		log.Printf("binding delete failed (repo: %d, chat: %d): %v", repoID, chatID, err)
		b.editOrReply(q, services.EscapeMarkdown("⚠️ Could not remove the repository. Please try again later."), nil)
		return
	}

	if result.NotFound {
		b.editOrReply(q, services.EscapeMarkdown("Binding for this chat/topic not found or already removed."), nil)
		return
	}

	fullName := services.EscapeMarkdown(result.Repository.FullName)
	var lines []string

	switch {
	case threadID == nil:
		lines = append(lines, fmt.Sprintf("%s *%s* %s",
			services.EscapeMarkdown("Binding of"), fullName,
			services.EscapeMarkdown("to the main chat removed.")))
	case result.TopicDeleted:
		lines = append(lines, fmt.Sprintf("🗑 %s *%s* %s",
			services.EscapeMarkdown("Binding and topic for"), fullName,
			services.EscapeMarkdown("removed.")))
	case services.IsPermissionError(result.TopicDeleteErr):
		lines = append(lines, fmt.Sprintf("%s *%s* %s",
			services.EscapeMarkdown("Binding of"), fullName,
			services.EscapeMarkdown("removed.")))
		lines = append(lines, services.EscapeMarkdown("⚠️ Could not delete the forum topic: the bot needs the 'Manage topics' right."))
	case services.IsTopicGoneError(result.TopicDeleteErr):
		lines = append(lines, fmt.Sprintf("%s *%s* %s",
			services.EscapeMarkdown("Binding of"), fullName,
			services.EscapeMarkdown("removed.")))
		lines = append(lines, services.EscapeMarkdown("⚠️ The forum topic was already gone."))
	default:
		lines = append(lines, fmt.Sprintf("%s *%s* %s",
			services.EscapeMarkdown("Binding of"), fullName,
			services.EscapeMarkdown("removed.")))
		lines = append(lines, services.EscapeMarkdown("⚠️ Could not delete the forum topic. Check the bot logs."))
	}

	if result.RepositoryRemoved {
		lines = append(lines, fmt.Sprintf("✅ %s *%s* %s",
			services.EscapeMarkdown("Repository"), fullName,
			services.EscapeMarkdown("fully removed from the system.")))
	} else {
		lines = append(lines, services.EscapeMarkdown("The repository is still tracked in other chats."))
	}

	b.editOrReply(q, strings.Join(lines, "\n"), nil)
}

// handleCancelDelete is the terminal CANCELLED transition: nothing changes.
func (b *Bot) handleCancelDelete(q *services.CallbackQuery, m []string) {
	if err := b.Client.AnswerCallbackQuery(q.ID, "Deletion cancelled."); err != nil {
		log.Printf("answerCallbackQuery failed: %v", err)
	}

	repoID, _, ok := parseDeleteTarget(m)
	if !ok || q.Message == nil {
		return
	}

	name := "repository"
	var repo models.Repository
	if err := b.DB.First(&repo, repoID).Error; err == nil {
		name = repo.FullName
	}

	b.editOrReply(q, fmt.Sprintf("❌ %s *%s* %s",
		services.EscapeMarkdown("Removal of"),
		services.EscapeMarkdown(name),
		services.EscapeMarkdown("cancelled.")), nil)
}
