package exchangeobs

import (
	"context"

	"github.com/shopspring/decimal"

	"tweet-trading-bot/internal/interfaces"
	"tweet-trading-bot/internal/logger"
	"tweet-trading-bot/internal/trace"
	"tweet-trading-bot/internal/types"
)

// observableExchange wraps an Exchange with observability (logging & tracing)
type observableExchange struct {
	ex interfaces.Exchange
}

// Compile-time interface check
var _ interfaces.Exchange = (*observableExchange)(nil)

// Wrap wraps an exchange with observability middleware
func Wrap(ex interfaces.Exchange) interfaces.Exchange {
	return &observableExchange{ex: ex}
}

func (oe *observableExchange) AskPrice(ctx context.Context, ticker, bridge string) (decimal.Decimal, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.AskPrice")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching ask price", "ticker", ticker, "bridge", bridge)

	ask, err := oe.ex.AskPrice(ctx, ticker, bridge)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch ask price", err, "ticker", ticker, "bridge", bridge)
		return decimal.Zero, err
	}

	logger.DebugSkip(ctx, 1, "Ask price fetched", "ticker", ticker, "ask", ask.String())
	return ask, nil
}

func (oe *observableExchange) AvailableAssets(ctx context.Context, bridge, ticker string) (decimal.Decimal, decimal.Decimal, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.AvailableAssets")
	defer span.End()

	bridgeFree, tickerFree, err := oe.ex.AvailableAssets(ctx, bridge, ticker)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch balances", err, "bridge", bridge, "ticker", ticker)
		return decimal.Zero, decimal.Zero, err
	}

	logger.DebugSkip(ctx, 1, "Balances fetched",
		"bridge", bridge,
		"bridge_free", bridgeFree.String(),
		"ticker", ticker,
		"ticker_free", tickerFree.String(),
	)
	return bridgeFree, tickerFree, nil
}

func (oe *observableExchange) MaxBorrowable(ctx context.Context, asset, ticker string) (decimal.Decimal, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.MaxBorrowable")
	defer span.End()

	amount, err := oe.ex.MaxBorrowable(ctx, asset, ticker)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch max borrowable", err, "asset", asset)
		return decimal.Zero, err
	}

	logger.DebugSkip(ctx, 1, "Max borrowable fetched", "asset", asset, "amount", amount.String())
	return amount, nil
}

func (oe *observableExchange) Buy(ctx context.Context, quantity decimal.Decimal, ticker, bridge string) (*types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.Buy")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing buy order",
		"ticker", ticker,
		"bridge", bridge,
		"quantity", quantity.String(),
	)

	order, err := oe.ex.Buy(ctx, quantity, ticker, bridge)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place buy order", err, "ticker", ticker, "quantity", quantity.String())
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Buy order placed",
		"ticker", ticker,
		"order_id", order.OrderID,
		"status", order.Status,
	)
	return order, nil
}

func (oe *observableExchange) Sell(ctx context.Context, quantity decimal.Decimal, ticker, bridge string) (*types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.Sell")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing sell order",
		"ticker", ticker,
		"bridge", bridge,
		"quantity", quantity.String(),
	)

	order, err := oe.ex.Sell(ctx, quantity, ticker, bridge)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place sell order", err, "ticker", ticker, "quantity", quantity.String())
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Sell order placed",
		"ticker", ticker,
		"order_id", order.OrderID,
		"status", order.Status,
	)
	return order, nil
}
