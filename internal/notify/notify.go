// Package notify announces newly tracked pairs.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pairScout/internal/model"
)

// Notifier delivers a human-readable announcement for a newly tracked pair.
type Notifier interface {
	NotifyPair(ctx context.Context, a model.Announcement) error
}

// Links builds explorer links for a pair.
type Links struct {
	Explorer string
	Dextools string
}

// DefaultLinks points at mainnet explorers.
var DefaultLinks = Links{
	Explorer: "https://etherscan.io",
	Dextools: "https://www.dextools.io/app/en/ether/pair-explorer",
}

func (l Links) explorer(pair string) string {
	return strings.TrimRight(l.Explorer, "/") + "/address/" + pair
}

func (l Links) dextools(pair string) string {
	return strings.TrimRight(l.Dextools, "/") + "/" + pair
}

// LogNotifier writes announcements to the log only.
type LogNotifier struct {
	logger *zap.Logger
	links  Links
}

func NewLogNotifier(logger *zap.Logger, links Links) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger, links: links}
}

func (n *LogNotifier) NotifyPair(ctx context.Context, a model.Announcement) error {
	n.logger.Info("new pair",
		zap.String("pair", a.Pair.Address),
		zap.String("ticker", a.Pair.Ticker()),
		zap.String("liquidity", fmt.Sprintf("%s / %s", a.Liquidity0, a.Liquidity1)),
		zap.String("liquidity_pct", a.ConcentrationPct),
		zap.String("price_usd", a.PriceUSD),
		zap.String("market_cap_usd", a.MarketCapUSD),
		zap.String("locked_pct", a.LockedPct),
		zap.String("explorer", n.links.explorer(a.Pair.Address)),
	)
	return nil
}
