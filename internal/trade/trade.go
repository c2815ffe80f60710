package trade

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"tweet-trading-bot/internal/interfaces"
	"tweet-trading-bot/internal/logger"
	"tweet-trading-bot/internal/tradelog"
	"tweet-trading-bot/internal/types"
)

// OrderSizeMax is the sentinel order size meaning "spend available plus
// everything borrowable".
const OrderSizeMax = "max"

// ErrOrderSize is the configuration error for an order size that would
// require borrowing more than the account allows.
var ErrOrderSize = errors.New("order size exceeds max margin fraction")

type Config struct {
	Bridge    string
	OrderSize string // OrderSizeMax or a fraction like "0.5"
	BuyDelay  time.Duration
	SellDelay time.Duration
}

// Executor runs the two-phase delayed trade cycle: wait, buy the matched
// ticker with bridge funds, wait, sell it back to the bridge.
type Executor struct {
	ex  interfaces.Exchange
	cfg Config
}

func NewExecutor(ex interfaces.Exchange, cfg Config) *Executor {
	return &Executor{ex: ex, cfg: cfg}
}

// Execute runs the cycle for ticker. Partial success is a valid outcome:
// a sell-leg failure still reports the completed buy leg in the result.
func (e *Executor) Execute(ctx context.Context, ticker string) (*types.TradeResult, error) {
	result := &types.TradeResult{}

	logger.Info(ctx, "Waiting before buy", "ticker", ticker, "delay", e.cfg.BuyDelay.String())
	if err := sleepCtx(ctx, e.cfg.BuyDelay); err != nil {
		return result, err
	}

	buy, err := e.buy(ctx, ticker)
	if err != nil {
		return result, fmt.Errorf("buy %s: %w", ticker, err)
	}
	if buy == nil {
		// No bridge balance: the cycle aborts before any order.
		return result, nil
	}
	result.Buy = buy
	logger.Trade(ctx, ticker, buy.Side, buy.Quantity, strconv.FormatInt(buy.OrderID, 10))
	_ = tradelog.Append(tradelog.Entry{
		Ticker:   ticker,
		Bridge:   e.cfg.Bridge,
		Side:     buy.Side,
		OrderID:  strconv.FormatInt(buy.OrderID, 10),
		Quantity: buy.Quantity,
		Status:   buy.Status,
	})

	logger.Info(ctx, "Waiting before sell", "ticker", ticker, "delay", e.cfg.SellDelay.String())
	if err := sleepCtx(ctx, e.cfg.SellDelay); err != nil {
		return result, err
	}

	sell, err := e.sell(ctx, ticker)
	if err != nil {
		// Sell failure is terminal for that leg only; the buy is reported.
		return result, fmt.Errorf("sell %s: %w", ticker, err)
	}
	result.Sell = sell
	logger.Trade(ctx, ticker, sell.Side, sell.Quantity, strconv.FormatInt(sell.OrderID, 10))
	_ = tradelog.Append(tradelog.Entry{
		Ticker:   ticker,
		Bridge:   e.cfg.Bridge,
		Side:     sell.Side,
		OrderID:  strconv.FormatInt(sell.OrderID, 10),
		Quantity: sell.Quantity,
		Status:   sell.Status,
	})

	return result, nil
}

// buy sizes and submits the buy order. A nil order with nil error means
// there was no bridge balance and the cycle should abort quietly.
func (e *Executor) buy(ctx context.Context, ticker string) (*types.Order, error) {
	ask, err := e.ex.AskPrice(ctx, ticker, e.cfg.Bridge)
	if err != nil {
		return nil, err
	}
	if ask.IsZero() {
		return nil, fmt.Errorf("ask price for %s%s is zero", ticker, e.cfg.Bridge)
	}

	available, _, err := e.ex.AvailableAssets(ctx, e.cfg.Bridge, ticker)
	if err != nil {
		return nil, err
	}
	if available.IsZero() {
		logger.Warn(ctx, "No bridge balance available, aborting cycle",
			"ticker", ticker,
			"bridge", e.cfg.Bridge,
		)
		return nil, nil
	}

	borrowable, err := e.ex.MaxBorrowable(ctx, e.cfg.Bridge, ticker)
	if err != nil {
		return nil, err
	}

	spendable, err := spendable(available, borrowable, e.cfg.OrderSize)
	if err != nil {
		return nil, err
	}

	quantity := spendable.Div(ask)
	logger.Info(ctx, "Sized buy order",
		"ticker", ticker,
		"ask", ask.String(),
		"available", available.String(),
		"borrowable", borrowable.String(),
		"spendable", spendable.String(),
		"quantity", quantity.String(),
	)
	return e.ex.Buy(ctx, quantity, ticker, e.cfg.Bridge)
}

func (e *Executor) sell(ctx context.Context, ticker string) (*types.Order, error) {
	_, tickerFree, err := e.ex.AvailableAssets(ctx, e.cfg.Bridge, ticker)
	if err != nil {
		return nil, err
	}
	if tickerFree.IsZero() {
		return nil, fmt.Errorf("no %s available to sell", ticker)
	}
	return e.ex.Sell(ctx, tickerFree, ticker, e.cfg.Bridge)
}

// spendable computes the bridge amount to spend. A fractional order size is
// validated against the max margin fraction (available+borrowable)/available.
func spendable(available, borrowable decimal.Decimal, orderSize string) (decimal.Decimal, error) {
	if orderSize == OrderSizeMax {
		return available.Add(borrowable), nil
	}
	fraction, err := decimal.NewFromString(orderSize)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid order size %q: %w", orderSize, err)
	}
	maxFraction := available.Add(borrowable).Div(available)
	if fraction.GreaterThan(maxFraction) {
		return decimal.Zero, fmt.Errorf("%w: %s > %s", ErrOrderSize, fraction, maxFraction)
	}
	return available.Mul(fraction), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
