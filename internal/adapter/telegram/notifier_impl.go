package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/listing-radar/internal/entity"
	"github.com/user/listing-radar/internal/repository"
	"github.com/user/listing-radar/pkg/metrics"
)

const (
	// Telegram's own limits: photo captions are short, plain messages long.
	captionLimit = 1024
	messageLimit = 4096
)

// Notifier provides a concrete implementation of the NotifierRepository
// interface using the Telegram Bot API. Delivery degrades gracefully: an
// image-with-caption attempt first, then a plain-text message.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewNotifier creates a Notifier against the public Bot API. The token is
// validated up front (getMe), so bad credentials fail at startup rather
// than on the first listing.
func NewNotifier(token string, chatID int64) (*Notifier, error) {
	return NewNotifierWithEndpoint(token, tgbotapi.APIEndpoint, chatID)
}

// NewNotifierWithEndpoint creates a Notifier against a custom API endpoint,
// used by tests.
func NewNotifierWithEndpoint(token, endpoint string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID}, nil
}

// Deliver sends one listing. A transport error on the photo attempt falls
// back to text; an error on the final attempt is reported, never escalated
// by the caller into aborting the run.
func (n *Notifier) Deliver(ctx context.Context, payload *entity.NotificationPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if payload.ImageURL != "" {
		photo := tgbotapi.NewPhoto(n.chatID, tgbotapi.FileURL(payload.ImageURL))
		photo.Caption = truncateRunes(composeText(payload), captionLimit)
		_, err := n.bot.Send(photo)
		if err == nil {
			metrics.NotificationsTotal.WithLabelValues("delivered", "photo").Inc()
			return nil
		}
		metrics.NotificationsTotal.WithLabelValues("failed", "photo").Inc()
		slog.Warn("Photo delivery failed, falling back to text", "url", payload.URL, "error", err)
	}

	msg := tgbotapi.NewMessage(n.chatID, truncateRunes(composeText(payload), messageLimit))
	msg.DisableWebPagePreview = false // let Telegram unfurl the listing link
	if _, err := n.bot.Send(msg); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed", "text").Inc()
		return fmt.Errorf("%w: %v", repository.ErrDeliveryFailed, err)
	}
	metrics.NotificationsTotal.WithLabelValues("delivered", "text").Inc()
	return nil
}

// composeText builds the caption/message body: title, description, then the
// listing URL, skipping whatever is missing.
func composeText(payload *entity.NotificationPayload) string {
	parts := make([]string, 0, 3)
	if payload.Title != "" {
		parts = append(parts, "🆕 "+payload.Title)
	}
	if payload.Description != "" {
		parts = append(parts, payload.Description)
	}
	parts = append(parts, payload.URL)
	return strings.Join(parts, "\n\n")
}

// truncateRunes cuts on a rune boundary so a multibyte character is never
// split mid-sequence.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
