package binance

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"tweet-trading-bot/internal/interfaces"
	"tweet-trading-bot/internal/logger"
	"tweet-trading-bot/internal/types"
)

// quantityPrecision is a fallback: 8 decimals gives satoshi-level precision
// for BTC-like assets. Symbol-specific LOT_SIZE filters are stricter for
// some pairs.
const quantityPrecision = 8

type Params struct {
	Mode       string // DRY_RUN simulates orders, LIVE submits them
	APIKey     string
	SecretKey  string
	MarginType string // cross or isolated
	UseTestnet bool
}

// marginClient abstracts the Binance margin endpoints for testing.
type marginClient interface {
	BookTicker(ctx context.Context, symbol string) (*binance.BookTicker, error)
	MarginAccount(ctx context.Context) (*binance.MarginAccount, error)
	IsolatedMarginAccount(ctx context.Context, symbol string) (*binance.IsolatedMarginAccount, error)
	MaxBorrowable(ctx context.Context, asset, isolatedSymbol string) (*binance.MaxBorrowable, error)
	CreateMarginOrder(ctx context.Context, symbol string, side binance.SideType, quantity string, sideEffect binance.SideEffectType, isolated bool) (*binance.CreateOrderResponse, error)
}

// realClient wraps the actual binance.Client.
type realClient struct {
	c *binance.Client
}

func (r *realClient) BookTicker(ctx context.Context, symbol string) (*binance.BookTicker, error) {
	tickers, err := r.c.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no book ticker for %s", symbol)
	}
	return tickers[0], nil
}

func (r *realClient) MarginAccount(ctx context.Context) (*binance.MarginAccount, error) {
	return r.c.NewGetMarginAccountService().Do(ctx)
}

func (r *realClient) IsolatedMarginAccount(ctx context.Context, symbol string) (*binance.IsolatedMarginAccount, error) {
	return r.c.NewGetIsolatedMarginAccountService().Symbols(symbol).Do(ctx)
}

func (r *realClient) MaxBorrowable(ctx context.Context, asset, isolatedSymbol string) (*binance.MaxBorrowable, error) {
	svc := r.c.NewGetMaxBorrowableService().Asset(asset)
	if isolatedSymbol != "" {
		svc = svc.IsolatedSymbol(isolatedSymbol)
	}
	return svc.Do(ctx)
}

func (r *realClient) CreateMarginOrder(ctx context.Context, symbol string, side binance.SideType, quantity string, sideEffect binance.SideEffectType, isolated bool) (*binance.CreateOrderResponse, error) {
	svc := r.c.NewCreateMarginOrderService().
		Symbol(symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(quantity).
		SideEffectType(sideEffect)
	if isolated {
		svc = svc.IsIsolated(true)
	}
	return svc.Do(ctx)
}

// Exchange implements the margin trading capability on Binance. Buys
// auto-borrow against the margin account, sells auto-repay.
type Exchange struct {
	p      Params
	client marginClient
}

var _ interfaces.Exchange = (*Exchange)(nil)

func NewExchange(p Params) *Exchange {
	if p.UseTestnet {
		binance.UseTestnet = true
	}
	return &Exchange{
		p:      p,
		client: &realClient{c: binance.NewClient(p.APIKey, p.SecretKey)},
	}
}

// newExchangeWithClient is used by tests to inject a mock client.
func newExchangeWithClient(p Params, client marginClient) *Exchange {
	return &Exchange{p: p, client: client}
}

func (e *Exchange) isolated() bool {
	return e.p.MarginType == "isolated"
}

func (e *Exchange) AskPrice(ctx context.Context, ticker, bridge string) (decimal.Decimal, error) {
	bt, err := e.client.BookTicker(ctx, ticker+bridge)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching ask price for %s%s: %w", ticker, bridge, err)
	}
	ask, err := decimal.NewFromString(bt.AskPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing ask price %q: %w", bt.AskPrice, err)
	}
	return ask, nil
}

func (e *Exchange) AvailableAssets(ctx context.Context, bridge, ticker string) (decimal.Decimal, decimal.Decimal, error) {
	if e.isolated() {
		return e.isolatedBalances(ctx, bridge, ticker)
	}
	return e.crossBalances(ctx, bridge, ticker)
}

func (e *Exchange) crossBalances(ctx context.Context, bridge, ticker string) (decimal.Decimal, decimal.Decimal, error) {
	acct, err := e.client.MarginAccount(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("fetching margin account: %w", err)
	}
	bridgeFree, tickerFree := decimal.Zero, decimal.Zero
	for _, ua := range acct.UserAssets {
		switch ua.Asset {
		case bridge:
			if bridgeFree, err = decimal.NewFromString(ua.Free); err != nil {
				return decimal.Zero, decimal.Zero, fmt.Errorf("parsing %s balance %q: %w", bridge, ua.Free, err)
			}
		case ticker:
			if tickerFree, err = decimal.NewFromString(ua.Free); err != nil {
				return decimal.Zero, decimal.Zero, fmt.Errorf("parsing %s balance %q: %w", ticker, ua.Free, err)
			}
		}
	}
	return bridgeFree, tickerFree, nil
}

func (e *Exchange) isolatedBalances(ctx context.Context, bridge, ticker string) (decimal.Decimal, decimal.Decimal, error) {
	symbol := ticker + bridge
	acct, err := e.client.IsolatedMarginAccount(ctx, symbol)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("fetching isolated margin account: %w", err)
	}
	for _, a := range acct.Assets {
		if a.Symbol != symbol {
			continue
		}
		bridgeFree, err := decimal.NewFromString(a.QuoteAsset.Free)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("parsing %s balance %q: %w", bridge, a.QuoteAsset.Free, err)
		}
		tickerFree, err := decimal.NewFromString(a.BaseAsset.Free)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("parsing %s balance %q: %w", ticker, a.BaseAsset.Free, err)
		}
		return bridgeFree, tickerFree, nil
	}
	return decimal.Zero, decimal.Zero, fmt.Errorf("no isolated margin pair %s", symbol)
}

func (e *Exchange) MaxBorrowable(ctx context.Context, asset, ticker string) (decimal.Decimal, error) {
	isolatedSymbol := ""
	if e.isolated() {
		isolatedSymbol = ticker + asset
	}
	mb, err := e.client.MaxBorrowable(ctx, asset, isolatedSymbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching max borrowable %s: %w", asset, err)
	}
	amount, err := decimal.NewFromString(mb.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing max borrowable %q: %w", mb.Amount, err)
	}
	return amount, nil
}

func (e *Exchange) Buy(ctx context.Context, quantity decimal.Decimal, ticker, bridge string) (*types.Order, error) {
	return e.order(ctx, binance.SideTypeBuy, binance.SideEffectTypeMarginBuy, quantity, ticker, bridge)
}

func (e *Exchange) Sell(ctx context.Context, quantity decimal.Decimal, ticker, bridge string) (*types.Order, error) {
	return e.order(ctx, binance.SideTypeSell, binance.SideEffectTypeAutoRepay, quantity, ticker, bridge)
}

func (e *Exchange) order(ctx context.Context, side binance.SideType, sideEffect binance.SideEffectType, quantity decimal.Decimal, ticker, bridge string) (*types.Order, error) {
	symbol := ticker + bridge
	qty := quantity.Truncate(quantityPrecision)
	if qty.IsZero() || qty.IsNegative() {
		return nil, fmt.Errorf("order quantity %s of %s is not positive after rounding", quantity, symbol)
	}

	if e.p.Mode == "DRY_RUN" {
		order := &types.Order{
			OrderID:  rand.Int63n(1_000_000_000),
			Symbol:   symbol,
			Side:     string(side),
			Quantity: qty.String(),
			Status:   "SIMULATED",
		}
		logger.Info(ctx, "Simulated margin order", "symbol", symbol, "side", string(side), "quantity", qty.String())
		return order, nil
	}

	resp, err := e.client.CreateMarginOrder(ctx, symbol, side, qty.String(), sideEffect, e.isolated())
	if err != nil {
		return nil, fmt.Errorf("placing %s order for %s: %w", side, symbol, err)
	}
	return &types.Order{
		OrderID:  resp.OrderID,
		Symbol:   resp.Symbol,
		Side:     string(side),
		Quantity: resp.ExecutedQuantity,
		Status:   string(resp.Status),
	}, nil
}
