package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pairScout/internal/model"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts MarkdownV2 announcements to one chat.
type TelegramNotifier struct {
	bot    sender
	chatID int64
	links  Links
}

// NewTelegramNotifier authenticates the bot token against the Bot API.
func NewTelegramNotifier(token string, chatID int64, links Links) (*TelegramNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, links: links}, nil
}

func (n *TelegramNotifier) NotifyPair(ctx context.Context, a model.Announcement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatMarkdown(a, n.links))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// FormatMarkdown renders an announcement as a MarkdownV2 message.
func FormatMarkdown(a model.Announcement, links Links) string {
	esc := func(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s) }

	var b strings.Builder
	b.WriteString(esc("NEW PAIR @ Uniswap V2") + "\n\n")
	fmt.Fprintf(&b, "ticker: %s / %s\n", esc(a.Pair.Token0.Symbol), esc(a.Pair.Token1.Symbol))
	fmt.Fprintf(&b, "liquidity: %s / %s\n", esc(a.Liquidity0), esc(a.Liquidity1))
	fmt.Fprintf(&b, "liquidity percentage: %s%%\n", esc(a.ConcentrationPct))
	fmt.Fprintf(&b, "token price: $%s\n", esc(a.PriceUSD))
	fmt.Fprintf(&b, "market cap: $%s\n", esc(a.MarketCapUSD))
	if a.LockedPct != "" {
		fmt.Fprintf(&b, "locked liquidity: %s%%\n", esc(a.LockedPct))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "[dextools](%s) [explorer](%s)\n", escapeURL(links.dextools(a.Pair.Address)), escapeURL(links.explorer(a.Pair.Address)))
	return b.String()
}

// escapeURL escapes the characters MarkdownV2 reserves inside link targets.
func escapeURL(u string) string {
	return strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(u)
}
