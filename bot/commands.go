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

const (
	menuAddRepo      = "➕ Add repository"
	menuMyRepos      = "📋 My repositories"
	menuHelp         = "❓ Help"
	menuLinkGithub   = "🔗 Link GitHub"
	menuUnlinkGithub = "🗑 Unlink GitHub"
	menuDeleteRepo   = "❌ Remove repository"
)

var (
	repoNamePattern    = regexp.MustCompile(`^[\w.-]+/[\w.-]+$`)
	githubLoginPattern = regexp.MustCompile(`^[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*$`)
)

var mainKeyboard = &services.ReplyKeyboardMarkup{
	Keyboard: [][]services.KeyboardButton{
		{{Text: menuAddRepo}},
		{{Text: menuMyRepos}},
		{{Text: menuHelp}},
		{{Text: menuLinkGithub}, {Text: menuUnlinkGithub}},
		{{Text: menuDeleteRepo}},
	},
	ResizeKeyboard: true,
}

// userFor upserts the sender as a user, refreshing the display name.
func (b *Bot) userFor(msg *services.TelegramMessage) (*models.User, error) {
	name := msg.From.Username
	if name == "" {
		name = msg.From.FirstName
	}
	return services.RegisterUser(b.DB, msg.From.ID, name)
}

func (b *Bot) handleStart(msg *services.TelegramMessage) {
	if _, err := b.userFor(msg); err != nil {
		log.Printf("user registration failed (user: %d): %v", msg.From.ID, err)
		b.reply(msg, services.EscapeMarkdown("⚠️ Something went wrong registering you. Please try again later."), nil)
		return
	}
	b.reply(msg, services.EscapeMarkdown("👋 Hi! I post GitHub commit notifications. Pick an option:"), mainKeyboard)
}

func (b *Bot) handleHelp(msg *services.TelegramMessage) {
	b.reply(msg, services.EscapeMarkdown(
		"📚 Commands:\n"+
			"/start — main menu\n"+
			"/addrepo — track a new repository\n"+
			"/myrepo — list your tracked repositories\n"+
			"/delrepo — remove a tracked repository\n"+
			"/linkgithub — link your GitHub username\n"+
			"/unlinkgithub — unlink your GitHub username"), nil)
}

func (b *Bot) handleAddRepo(msg *services.TelegramMessage) {
	b.Sessions.Set(msg.From.ID, msg.Chat.ID, StateAwaitingRepoName)
	b.reply(msg, fmt.Sprintf("✏️ %s `owner/my-repo`",
		services.EscapeMarkdown("Enter the full repository name, e.g.")), nil)
}

func (b *Bot) handleMyRepo(msg *services.TelegramMessage) {
	user, err := b.userFor(msg)
	if err != nil {
		log.Printf("user lookup failed (user: %d): %v", msg.From.ID, err)
		b.reply(msg, services.EscapeMarkdown("⚠️ Something went wrong. Please try again later."), nil)
		return
	}

	repos, err := services.ListUserRepositories(b.DB, user.ID)
	if err != nil {
		log.Printf("repository list failed (user: %d): %v", user.ID, err)
		b.reply(msg, services.EscapeMarkdown("⚠️ Something went wrong. Please try again later."), nil)
		return
	}
	if len(repos) == 0 {
		b.reply(msg, services.EscapeMarkdown("📭 You have no tracked repositories yet."), nil)
		return
	}

	lines := make([]string, 0, len(repos))
	for i, repo := range repos {
		lines = append(lines, fmt.Sprintf("🔹 %d\\. [%s](%s)",
			i+1, services.EscapeMarkdown(repo.FullName), repo.GithubURL))
	}
	b.reply(msg, "📦 Your repositories:\n"+strings.Join(lines, "\n"), nil)
}

func (b *Bot) handleDelRepo(msg *services.TelegramMessage) {
	user, err := b.userFor(msg)
	if err != nil {
		log.Printf("user lookup failed (user: %d): %v", msg.From.ID, err)
		b.reply(msg, services.EscapeMarkdown("⚠️ Something went wrong. Please try again later."), nil)
		return
	}

	views, err := services.ListUserBindingsInChat(b.DB, user.ID, msg.Chat.ID)
	if err != nil {
		log.Printf("binding list failed (user: %d, chat: %d): %v", user.ID, msg.Chat.ID, err)
		b.reply(msg, services.EscapeMarkdown("⚠️ Something went wrong. Please try again later."), nil)
		return
	}
	if len(views) == 0 {
		b.reply(msg, services.EscapeMarkdown("📭 You have no repository bindings in this chat."), nil)
		return
	}

	keyboard := &services.InlineKeyboardMarkup{}
	for _, view := range views {
		threadSuffix := "null"
		label := fmt.Sprintf("%s (main chat)", view.Repository.FullName)
		if view.Binding.ThreadID != nil {
			threadSuffix = strconv.FormatInt(*view.Binding.ThreadID, 10)
			label = fmt.Sprintf("%s (topic: %s)", view.Repository.FullName, view.Repository.Name)
		}
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, []services.InlineKeyboardButton{{
			Text:         label,
			CallbackData: fmt.Sprintf("select_to_delete_repo_%d_%s", view.Repository.ID, threadSuffix),
		}})
	}

	b.reply(msg, services.EscapeMarkdown("Select a repository to remove:"), keyboard)
}

func (b *Bot) handleLinkGithub(msg *services.TelegramMessage) {
	// First interaction may well be /linkgithub; register the sender so the
	// link has a user row to attach to.
	if _, err := b.userFor(msg); err != nil {
		log.Printf("user registration failed (user: %d): %v", msg.From.ID, err)
		b.reply(msg, services.EscapeMarkdown("⚠️ Something went wrong. Please try again later."), nil)
		return
	}
	b.Sessions.Set(msg.From.ID, msg.Chat.ID, StateAwaitingGithubUsername)
	b.reply(msg, services.EscapeMarkdown("🔗 Please enter your GitHub username:"), nil)
}

func (b *Bot) handleUnlinkGithub(msg *services.TelegramMessage) {
	err := services.UnlinkGithub(b.DB, msg.From.ID)
	switch {
	case errors.Is(err, services.ErrGithubNotLinked) || errors.Is(err, gorm.ErrRecordNotFound):
		b.reply(msg, services.EscapeMarkdown("❌ Your Telegram account is not linked to GitHub."), nil)
	case err != nil:
		log.Printf("github unlink failed (user: %d): %v", msg.From.ID, err)
		b.reply(msg, services.EscapeMarkdown("⚠️ Could not unlink your GitHub username. Please try again later."), nil)
	default:
		b.reply(msg, services.EscapeMarkdown("✅ Your GitHub username has been unlinked."), nil)
	}
}

// handleText routes menu button presses and conversation-state input.
func (b *Bot) handleText(text string, msg *services.TelegramMessage) {
	switch text {
	case menuAddRepo:
		b.handleAddRepo(msg)
		return
	case menuMyRepos:
		b.handleMyRepo(msg)
		return
	case menuHelp:
		b.handleHelp(msg)
		return
	case menuLinkGithub:
		b.handleLinkGithub(msg)
		return
	case menuUnlinkGithub:
		b.handleUnlinkGithub(msg)
		return
	case menuDeleteRepo:
		b.handleDelRepo(msg)
		return
	}

	switch b.Sessions.Get(msg.From.ID, msg.Chat.ID) {
	case StateAwaitingGithubUsername:
		b.handleGithubUsernameInput(text, msg)
	case StateAwaitingRepoName:
		b.handleRepoNameInput(text, msg)
	default:
		b.reply(msg, services.EscapeMarkdown("Unknown command or input. Use the menu buttons or commands."), nil)
	}
}

func (b *Bot) handleGithubUsernameInput(text string, msg *services.TelegramMessage) {
	if !githubLoginPattern.MatchString(text) {
		b.reply(msg, services.EscapeMarkdown("❌ Invalid GitHub username. Use letters, digits and hyphens (not leading or trailing)."), nil)
		return
	}

	err := services.LinkGithub(b.DB, msg.From.ID, text)
	switch {
	case errors.Is(err, services.ErrGithubLoginTaken):
		b.reply(msg, services.EscapeMarkdown("⚠️ This GitHub username is already linked to another account."), nil)
	case err != nil:
		log.Printf("github link failed (user: %d): %v", msg.From.ID, err)
		b.reply(msg, services.EscapeMarkdown("⚠️ Could not link your GitHub username. Please try again later."), nil)
	default:
		b.Sessions.Clear(msg.From.ID, msg.Chat.ID)
		b.reply(msg, fmt.Sprintf("✅ %s *%s* %s",
			services.EscapeMarkdown("Your GitHub username"),
			services.EscapeMarkdown(text),
			services.EscapeMarkdown("is now linked!")), nil)
	}
}

func (b *Bot) handleRepoNameInput(text string, msg *services.TelegramMessage) {
	b.Sessions.Clear(msg.From.ID, msg.Chat.ID)

	if !repoNamePattern.MatchString(text) {
		b.reply(msg, fmt.Sprintf("❌ %s `owner/repo-name` %s `octocat/Spoon-Knife`%s",
			services.EscapeMarkdown("Invalid repository name format. Use"),
			services.EscapeMarkdown("(example:"),
			services.EscapeMarkdown(")")), nil)
		return
	}

	user, err := b.userFor(msg)
	if err != nil {
		log.Printf("user lookup failed (user: %d): %v", msg.From.ID, err)
		b.reply(msg, services.EscapeMarkdown("⚠️ Could not add the repository. Please try again later."), nil)
		return
	}

	isGroup := msg.Chat.Type == "group" || msg.Chat.Type == "supergroup"
	result, err := services.AddRepository(b.DB, b.Client, services.AddRepositoryParams{
		User:             user,
		ChatID:           msg.Chat.ID,
		ChatIsGroup:      isGroup,
		ExplicitThreadID: msg.MessageThreadID,
		FullName:         text,
		GithubClient:     b.Github,
	})
	switch {
	case errors.Is(err, services.ErrRepoNotOnGithub):
		b.reply(msg, services.EscapeMarkdown("❌ Repository not found on GitHub. Check the name and try again."), nil)
		return
	case err != nil:
		log.Printf("add repository failed (repo: %s): %v", text, err)
		b.reply(msg, services.EscapeMarkdown("⚠️ Could not add the repository. Please try again later."), nil)
		return
	}

	var lines []string
	switch {
	case result.TopicCreated:
		lines = append(lines, fmt.Sprintf("📊 %s *%s*",
			services.EscapeMarkdown("Created a topic for repository:"),
			services.EscapeMarkdown(result.Repository.Name)))
	case result.TopicReused:
		lines = append(lines, services.EscapeMarkdown("This repository already has a topic in this chat; notifications will go there."))
	case result.TopicFallback:
		lines = append(lines, services.EscapeMarkdown("⚠️ Could not use a forum topic; notifications will go to this chat."))
	}
	lines = append(lines, fmt.Sprintf("✅ %s *%s* %s",
		services.EscapeMarkdown("Repository"),
		services.EscapeMarkdown(result.Repository.FullName),
		services.EscapeMarkdown("is now tracked!")))

	b.reply(msg, strings.Join(lines, "\n"), nil)
}
