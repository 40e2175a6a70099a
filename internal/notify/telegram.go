// Package notify pushes roster events to school administrators over
// Telegram. Best-effort: send failures never fail the mutation that emitted
// the event.
package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kmelentyev/rosterd/internal/models"
	"github.com/kmelentyev/rosterd/internal/observability"
)

type Notifier struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
	log     *zap.Logger
}

func New(token string, chatIDs []int64, log *zap.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{bot: bot, chatIDs: chatIDs, log: log}, nil
}

// Record implements roster.Recorder.
func (n *Notifier) Record(_ context.Context, ev models.ActivityEvent) {
	text := format(ev)
	if text == "" {
		return
	}
	for _, chat := range n.chatIDs {
		if _, err := n.send(tgbotapi.NewMessage(chat, text)); err != nil {
			n.log.Warn("telegram send failed", zap.Int64("chat_id", chat), zap.Error(err))
		}
	}
}

func format(ev models.ActivityEvent) string {
	switch ev.Action {
	case "enrollment_approved", "enrollments_approved":
		return fmt.Sprintf("School %d: %s", ev.SchoolID, ev.Details)
	case "enrollment_pending_reminder":
		return fmt.Sprintf("School %d has %s awaiting approval", ev.SchoolID, ev.Details)
	default:
		// other roster actions stay in the activity log only
		return ""
	}
}

// System-class failures (5xx, 429, timeouts) go to Sentry; ordinary telegram
// validation noise does not.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "502") ||
		strings.Contains(s, "503") || strings.Contains(s, "timeout")
}

func (n *Notifier) send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	m, err := n.bot.Send(msg)
	if isSystemErr(err) {
		observability.CaptureErr(err)
	}
	return m, err
}
