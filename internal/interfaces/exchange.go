package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"tweet-trading-bot/internal/types"
)

// Exchange is the margin trading capability. Ticker is the asset being
// traded (e.g. DOGE), bridge the funding/settlement asset (e.g. USDT).
type Exchange interface {
	// AskPrice returns the current best ask for ticker quoted in bridge.
	AskPrice(ctx context.Context, ticker, bridge string) (decimal.Decimal, error)

	// AvailableAssets returns the free (non-borrowed) balances of the
	// bridge asset and the ticker asset on the margin account.
	AvailableAssets(ctx context.Context, bridge, ticker string) (bridgeFree, tickerFree decimal.Decimal, err error)

	// MaxBorrowable returns the additional amount of asset obtainable via
	// margin borrowing beyond the account's own funds.
	MaxBorrowable(ctx context.Context, asset, ticker string) (decimal.Decimal, error)

	// Buy submits a market buy of quantity ticker funded from bridge.
	Buy(ctx context.Context, quantity decimal.Decimal, ticker, bridge string) (*types.Order, error)

	// Sell submits a market sell of quantity ticker back into bridge.
	Sell(ctx context.Context, quantity decimal.Decimal, ticker, bridge string) (*types.Order, error)
}
