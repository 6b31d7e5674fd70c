package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/simaogato/settlement-backend/internal/domain"
)

// ExchangeRateClient implements domain.ExchangeRateGateway. Rates are fetched on every call.
type ExchangeRateClient struct {
	client *Client
}

// NewExchangeRateClient creates a new ExchangeRateClient
func NewExchangeRateClient(client *Client) *ExchangeRateClient {
	return &ExchangeRateClient{client: client}
}

type exchangeRateResponse struct {
	FromCurrency string          `json:"fromCurrency"`
	ToCurrency   string          `json:"toCurrency"`
	ExchangeRate decimal.Decimal `json:"exchangeRate"`
	SellRate     decimal.Decimal `json:"sellRate"`
}

// GetExchangeRate fetches the current rate for converting from into to
func (c *ExchangeRateClient) GetExchangeRate(ctx context.Context, from, to string) (*domain.ExchangeRate, error) {
	query := url.Values{}
	query.Set("from", from)
	query.Set("to", to)

	var resp exchangeRateResponse
	if err := c.client.do(ctx, http.MethodGet, "/api/exchange-rates?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ExchangeRate.IsPositive() {
		return nil, fmt.Errorf("exchange rate %s->%s must be positive, got %s", from, to, resp.ExchangeRate)
	}

	return &domain.ExchangeRate{
		From:     from,
		To:       to,
		Rate:     resp.ExchangeRate,
		SellRate: resp.SellRate,
	}, nil
}
