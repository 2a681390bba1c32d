package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"verdict-engine/internal/domain"
)

// sender is the telebot slice the notifier sends through.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier pushes training and drift events to the operator chat. All
// methods are nil-safe no-ops when the channel is unconfigured.
type Notifier struct {
	bot  sender
	chat tele.ChatID
}

func NewNotifier(token string, chatID int64) *Notifier {
	if token == "" || chatID == 0 {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set, skipping operator notifications")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Warn().Err(err).Msg("failed to create Telegram bot, operator notifications disabled")
		return nil
	}
	return &Notifier{bot: b, chat: tele.ChatID(chatID)}
}

func (n *Notifier) send(text string) {
	if n == nil || n.bot == nil {
		return
	}
	if _, err := n.bot.Send(n.chat, text); err != nil {
		log.Warn().Err(err).Msg("operator notification failed")
	}
}

func (n *Notifier) ModelPromoted(version int, metrics map[string]float64) {
	var b strings.Builder
	fmt.Fprintf(&b, "Model v%d promoted to active\n", version)
	for _, key := range []string{"accuracy", "auc", "brier"} {
		if v, ok := metrics[key]; ok {
			fmt.Fprintf(&b, "%s: %.4f\n", key, v)
		}
	}
	n.send(strings.TrimRight(b.String(), "\n"))
}

func (n *Notifier) GateRejected(version int, reasons []string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Candidate v%d rejected by validation gate\n", version)
	for _, r := range reasons {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	n.send(strings.TrimRight(b.String(), "\n"))
}

func (n *Notifier) DriftEscalated(report domain.DriftReport) {
	var b strings.Builder
	fmt.Fprintf(&b, "Feature drift: %s\n", report.Aggregate)
	for _, fd := range report.Features {
		if fd.Status != domain.DriftSignificant {
			continue
		}
		fmt.Fprintf(&b, "- %s PSI %.3f\n", fd.Feature, fd.PSI)
	}
	fmt.Fprintf(&b, "window: %d vectors", report.RecentCount)
	n.send(b.String())
}
