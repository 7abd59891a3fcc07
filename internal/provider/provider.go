package provider

import (
	"context"
	"errors"
	"net/http"

	"marketkit/internal/key"
	"marketkit/internal/model"
)

// Error kinds returned by providers. Concrete providers wrap one of these
// with %w so callers can classify failures with errors.Is.
var (
	// ErrNetwork is a transport failure; safe to retry.
	ErrNetwork = errors.New("network error")
	// ErrRateLimited means the upstream throttled us; treated as transient.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrNoData means the upstream has nothing for the requested entity.
	ErrNoData = errors.New("no data for entity")
	// ErrNoMatchingID means the provider has no identifier for the entity.
	ErrNoMatchingID = errors.New("no matching external identifier")
	// ErrDecode means the payload could not be parsed.
	ErrDecode = errors.New("malformed payload")
)

// IsPermanent reports whether err means the entity will never resolve,
// as opposed to a failure worth retrying.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNoData) || errors.Is(err, ErrNoMatchingID)
}

//go:generate mockgen -package=providermock -destination=providermock/provider_mock.go -source=provider.go

// RateProvider fetches latest rates for a batch of coins in one currency.
// Coins unknown to the provider are omitted from the result.
type RateProvider interface {
	Name() string
	LatestRates(ctx context.Context, coinIDs []string, currency string) ([]model.Rate, error)
}

// ChartProvider fetches one chart series, oldest point first.
type ChartProvider interface {
	Name() string
	ChartPoints(ctx context.Context, k key.ChartKey) ([]model.ChartPoint, error)
}

// MarketProvider fetches the top markets of a currency ordered by rank.
type MarketProvider interface {
	Name() string
	TopMarkets(ctx context.Context, currency string, limit int) ([]model.MarketInfo, error)
}

// StatusErr maps a non-2xx upstream status code to an error kind.
func StatusErr(code int) error {
	switch code {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusNotFound:
		return ErrNoData
	default:
		return ErrNetwork
	}
}
