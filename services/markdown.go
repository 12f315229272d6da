package services

import "strings"

// MarkdownV2 reserves these characters; all of them must be escaped in
// display strings or Telegram rejects the message.
var markdownReplacer = strings.NewReplacer(
	"\\", "\\\\",
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// EscapeMarkdown escapes a display string for Telegram MarkdownV2.
func EscapeMarkdown(text string) string {
	return markdownReplacer.Replace(text)
}

// Inside code entities only backslash and backtick are significant.
var codeReplacer = strings.NewReplacer(
	"\\", "\\\\",
	"`", "\\`",
)

// EscapeCode escapes a string for a MarkdownV2 inline code entity.
func EscapeCode(text string) string {
	return codeReplacer.Replace(text)
}
