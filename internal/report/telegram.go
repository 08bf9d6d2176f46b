package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/indexcast/internal/models"
)

// Notifier posts run summaries to a Telegram chat
type Notifier struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewNotifier creates a Telegram notifier
func NewNotifier(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Notifier{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Send posts the summary of a finished run
func (n *Notifier) Send(ctx context.Context, run *models.RunSummary) error {
	return n.send(ctx, formatRun(run))
}

// SendError posts a failed run notice
func (n *Notifier) SendError(ctx context.Context, runErr error) error {
	return n.send(ctx, formatError(runErr))
}

func (n *Notifier) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < n.maxRetries; i++ {
		_, err := n.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", n.maxRetries, lastErr)
}

// formatRun renders a run summary as a MarkdownV2 message
func formatRun(run *models.RunSummary) string {
	var b strings.Builder
	b.WriteString("📊 *Training run finished*\n\n")
	fmt.Fprintf(&b, "🆔 `%s`\n", escapeMarkdownV2(run.ID))
	fmt.Fprintf(&b, "📈 Series: %s\n", escapeMarkdownV2(run.Series))
	fmt.Fprintf(&b, "🧠 Trainer: %s\n", escapeMarkdownV2(run.Trainer))
	fmt.Fprintf(&b, "🪟 Window: %s\n", escapeMarkdownV2(fmt.Sprintf("%d x %s, horizon %d",
		run.WindowLength, run.StridePolicy, run.Horizon)))
	fmt.Fprintf(&b, "🔢 Examples: %d train / %d test\n", run.TrainExamples, run.TestExamples)
	fmt.Fprintf(&b, "📉 Test cost: *%s*\n", escapeMarkdownV2(fmt.Sprintf("%.4f", run.TestCost)))
	fmt.Fprintf(&b, "🎯 Test RMSE: *%s*\n", escapeMarkdownV2(fmt.Sprintf("%.2f", run.TestRMSE)))
	for _, h := range run.Extra {
		fmt.Fprintf(&b, "➕ Horizon %d: %s\n", h.Horizon, escapeMarkdownV2(fmt.Sprintf("cost %.4f, RMSE %.2f", h.TestCost, h.TestRMSE)))
	}
	if len(run.Extra) > 0 {
		fmt.Fprintf(&b, "🧮 Combined test cost: *%s*\n", escapeMarkdownV2(fmt.Sprintf("%.4f", run.CombinedTestCost())))
	}
	fmt.Fprintf(&b, "⏱ Took %s\n", escapeMarkdownV2(formatDuration(run.Duration)))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "📅 %s\n", escapeMarkdownV2(run.FinishedAt.Format("2006-01-02 15:04:05")))
	}
	return b.String()
}

func formatError(err error) string {
	return fmt.Sprintf("🚨 *Training run failed*\n\n%s\n", escapeMarkdownV2(err.Error()))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
}
