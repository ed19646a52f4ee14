package broker

import (
	"context"
	"errors"
)

// ErrAssetNotFound is returned when the upstream does not know the symbol.
var ErrAssetNotFound = errors.New("broker: asset not found")

// AssetFetcher resolves instrument metadata from the upstream brokerage.
type AssetFetcher interface {
	GetAsset(ctx context.Context, symbol string) (*Asset, error)
	ListActiveAssets(ctx context.Context) ([]Asset, error)
}

// QuoteFetcher returns the latest best bid/ask for a symbol.
type QuoteFetcher interface {
	GetLatestQuote(ctx context.Context, symbol string) (*Quote, error)
}

// OrderSubmitter forwards an approved order to the upstream brokerage.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
}

// Gateway combines everything the order pipeline needs from a brokerage.
type Gateway interface {
	AssetFetcher
	QuoteFetcher
	OrderSubmitter
}
