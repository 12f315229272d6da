package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramClient calls the Telegram Bot API. It is constructed once in main
// and passed to everything that sends messages.
type TelegramClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewTelegramClient(token string) *TelegramClient {
	return &TelegramClient{
		BaseURL:    telegramAPIBase,
		Token:      token,
		HTTPClient: http.DefaultClient,
	}
}

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

type TelegramUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

type TelegramChat struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"` // "private", "group", "supergroup"
	IsForum bool   `json:"is_forum"`
}

type TelegramMessage struct {
	MessageID       int64         `json:"message_id"`
	From            *TelegramUser `json:"from"`
	Chat            TelegramChat  `json:"chat"`
	Text            string        `json:"text"`
	MessageThreadID *int64        `json:"message_thread_id"`
}

type CallbackQuery struct {
	ID      string           `json:"id"`
	From    *TelegramUser    `json:"from"`
	Message *TelegramMessage `json:"message"`
	Data    string           `json:"data"`
}

type Update struct {
	UpdateID      int64            `json:"update_id"`
	Message       *TelegramMessage `json:"message"`
	CallbackQuery *CallbackQuery   `json:"callback_query"`
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type KeyboardButton struct {
	Text string `json:"text"`
}

type ReplyKeyboardMarkup struct {
	Keyboard        [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard  bool               `json:"resize_keyboard"`
	OneTimeKeyboard bool               `json:"one_time_keyboard"`
}

type forumTopic struct {
	MessageThreadID int64 `json:"message_thread_id"`
}

// call posts one Bot API method and decodes the result envelope.
func (c *TelegramClient) call(method string, payload interface{}, result interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.Token, method)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var tr telegramResponse
	if err := json.Unmarshal(bodyBytes, &tr); err != nil {
		return fmt.Errorf("telegram %s: invalid response: %v", method, err)
	}

	if !tr.OK {
		return fmt.Errorf("telegram %s error: %s", method, tr.Description)
	}

	if result != nil && len(tr.Result) > 0 {
		if err := json.Unmarshal(tr.Result, result); err != nil {
			return fmt.Errorf("telegram %s: invalid result: %v", method, err)
		}
	}

	return nil
}

type SendMessageOptions struct {
	ThreadID         *int64
	ReplyMarkup      interface{} // *InlineKeyboardMarkup or *ReplyKeyboardMarkup
	ReplyToMessageID int64
}

// SendMessage delivers one MarkdownV2 message to a chat, optionally scoped
// to a forum topic.
func (c *TelegramClient) SendMessage(chatID int64, text string, opts *SendMessageOptions) error {
	body := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "MarkdownV2",
	}
	if opts != nil {
		if opts.ThreadID != nil {
			body["message_thread_id"] = *opts.ThreadID
		}
		if opts.ReplyMarkup != nil {
			body["reply_markup"] = opts.ReplyMarkup
		}
		if opts.ReplyToMessageID != 0 {
			body["reply_to_message_id"] = opts.ReplyToMessageID
		}
	}
	return c.call("sendMessage", body, nil)
}

// EditMessageText replaces the text (and keyboard) of a previously sent
// message, used by the deletion flow to collapse its prompts in place.
func (c *TelegramClient) EditMessageText(chatID, messageID int64, text string, markup *InlineKeyboardMarkup) error {
	body := map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "MarkdownV2",
	}
	if markup != nil {
		body["reply_markup"] = markup
	}
	return c.call("editMessageText", body, nil)
}

func (c *TelegramClient) AnswerCallbackQuery(callbackID, text string) error {
	body := map[string]interface{}{
		"callback_query_id": callbackID,
	}
	if text != "" {
		body["text"] = text
	}
	return c.call("answerCallbackQuery", body, nil)
}

func (c *TelegramClient) GetChat(chatID int64) (*TelegramChat, error) {
	var chat TelegramChat
	body := map[string]interface{}{"chat_id": chatID}
	if err := c.call("getChat", body, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// CreateForumTopic returns the new topic's message thread id.
func (c *TelegramClient) CreateForumTopic(chatID int64, name string) (int64, error) {
	var topic forumTopic
	body := map[string]interface{}{
		"chat_id": chatID,
		"name":    name,
	}
	if err := c.call("createForumTopic", body, &topic); err != nil {
		return 0, err
	}
	return topic.MessageThreadID, nil
}

func (c *TelegramClient) DeleteForumTopic(chatID, threadID int64) error {
	body := map[string]interface{}{
		"chat_id":           chatID,
		"message_thread_id": threadID,
	}
	return c.call("deleteForumTopic", body, nil)
}

type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// SetMyCommands publishes the command list shown in the client's menu.
func (c *TelegramClient) SetMyCommands(commands []BotCommand) error {
	body := map[string]interface{}{"commands": commands}
	return c.call("setMyCommands", body, nil)
}

// GetUpdates long-polls for updates after offset. timeout is in seconds.
func (c *TelegramClient) GetUpdates(offset int64, timeout int) ([]Update, error) {
	var updates []Update
	body := map[string]interface{}{
		"offset":  offset,
		"timeout": timeout,
	}
	if err := c.call("getUpdates", body, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// IsPermissionError reports whether a Bot API call failed because the bot
// lacks rights (e.g. "not enough rights to manage topics").
func IsPermissionError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not enough rights")
}

// IsTopicGoneError reports whether a topic operation failed because the
// topic no longer exists.
func IsTopicGoneError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "thread not found") ||
		strings.Contains(err.Error(), "TOPIC_ID_INVALID")
}
