// Package notify sends the outcome of a run to a chat.
package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/keep-migrate/internal/migrate"
	"go.uber.org/zap"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts run summaries to a single chat.
type Telegram struct {
	api    sender
	chatID int64
	logger *zap.Logger
}

func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, logger: logger}, nil
}

// Notify sends the summary. A failed send is logged and returned; it
// never changes the outcome of the run.
func (t *Telegram) Notify(source, destination string, sum migrate.Summary) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatSummary(source, destination, sum))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := t.api.Send(msg); err != nil {
		t.logger.Error("Failed to send summary",
			zap.Error(err),
			zap.Int64("chat_id", t.chatID))
		return fmt.Errorf("failed to send summary: %w", err)
	}
	return nil
}

// FormatSummary renders sum as a MarkdownV2 message.
func FormatSummary(source, destination string, sum migrate.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*Migration finished*\n%s → %s\n\n", escapeMarkdown(source), escapeMarkdown(destination))
	fmt.Fprintf(&b, "*Notes:* %d copied, %d already present, %d failed\n",
		sum.Notes.Copied, sum.Notes.SkippedExisting, sum.Notes.Failed)
	fmt.Fprintf(&b, "*Labels:* %d created, %d failed\n", sum.Labels.Created, sum.Labels.Failed)
	fmt.Fprintf(&b, "*Reminders:* %d of %d notes\n", sum.Reminders.Copied, sum.Reminders.WithReminders)
	if sum.Notes.FailedAttachments > 0 {
		fmt.Fprintf(&b, "*Attachments failed:* %d\n", sum.Notes.FailedAttachments)
	}
	if sum.Reminders.Unmatched > 0 {
		fmt.Fprintf(&b, "*Reminders unmatched:* %d\n", sum.Reminders.Unmatched)
	}
	fmt.Fprintf(&b, "\n_Destination now holds %d notes_", sum.Destination.Total)
	return b.String()
}

func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}
