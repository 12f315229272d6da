package bot

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/go-github/v71/github"
	"gorm.io/gorm"

	"github-commit-notify/services"
)

// Bot routes Telegram updates to the command, free-text and callback
// handlers. All dependencies are injected; there is no ambient client.
type Bot struct {
	DB       *gorm.DB
	Client   *services.TelegramClient
	Github   *github.Client // optional, enables repository existence checks
	Sessions *SessionStore
}

func New(db *gorm.DB, client *services.TelegramClient, gh *github.Client) *Bot {
	return &Bot{
		DB:       db,
		Client:   client,
		Github:   gh,
		Sessions: NewSessionStore(),
	}
}

var botCommands = []services.BotCommand{
	{Command: "start", Description: "Main menu"},
	{Command: "help", Description: "List commands"},
	{Command: "addrepo", Description: "Track a new repository"},
	{Command: "myrepo", Description: "List tracked repositories"},
	{Command: "delrepo", Description: "Remove a tracked repository"},
	{Command: "linkgithub", Description: "Link your GitHub username"},
	{Command: "unlinkgithub", Description: "Unlink your GitHub username"},
}

// Run publishes the command menu and long-polls getUpdates until ctx is
// cancelled.
func (b *Bot) Run(ctx context.Context) {
	if err := b.Client.SetMyCommands(botCommands); err != nil {
		log.Printf("setMyCommands failed: %v", err)
	}

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := b.Client.GetUpdates(offset, 30)
		if err != nil {
			log.Printf("getUpdates failed: %v", err)
			time.Sleep(3 * time.Second)
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			b.HandleUpdate(update)
		}
	}
}

// HandleUpdate dispatches one update. Nothing here panics; a bad update is
// logged and the loop keeps serving.
func (b *Bot) HandleUpdate(update services.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		b.handleMessage(update.Message)
	}
}

func (b *Bot) handleMessage(msg *services.TelegramMessage) {
	if msg.From == nil {
		return
	}

	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		// "/addrepo@mybot arg" → "/addrepo"
		cmd := strings.Fields(text)[0]
		if at := strings.Index(cmd, "@"); at > 0 {
			cmd = cmd[:at]
		}
		b.handleCommand(cmd, msg)
		return
	}

	b.handleText(text, msg)
}

func (b *Bot) handleCommand(cmd string, msg *services.TelegramMessage) {
	switch cmd {
	case "/start":
		b.handleStart(msg)
	case "/help":
		b.handleHelp(msg)
	case "/addrepo":
		b.handleAddRepo(msg)
	case "/myrepo":
		b.handleMyRepo(msg)
	case "/delrepo":
		b.handleDelRepo(msg)
	case "/linkgithub":
		b.handleLinkGithub(msg)
	case "/unlinkgithub":
		b.handleUnlinkGithub(msg)
	}
}

// reply sends a MarkdownV2 message back into the chat (and topic) the
// message came from.
func (b *Bot) reply(msg *services.TelegramMessage, text string, markup interface{}) {
	opts := &services.SendMessageOptions{
		ThreadID:    msg.MessageThreadID,
		ReplyMarkup: markup,
	}
	if err := b.Client.SendMessage(msg.Chat.ID, text, opts); err != nil {
		log.Printf("reply send failed (chat: %d): %v", msg.Chat.ID, err)
	}
}
