package bankapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/learnhub/payrecon/pkg/config"
)

const (
	sepayDefaultBaseURL = "https://my.sepay.vn"
	sepayListPath       = "/userapi/transactions/list"
	sepayTimeLayout     = "2006-01-02 15:04:05"
)

// Sepay lists transactions through the SePay user API.
type Sepay struct {
	http *httpClient
}

func NewSepay(cfg config.BankAPIConfig, opts ...Option) (*Sepay, error) {
	c, err := newHTTPClient(config.BankProviderSepay, sepayDefaultBaseURL, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &Sepay{http: c}, nil
}

func (s *Sepay) Name() string { return config.BankProviderSepay }

func (s *Sepay) ListTransactions(ctx context.Context, window Window) (json.RawMessage, error) {
	query := map[string]string{
		"account_number": s.http.account,
		"limit":          strconv.Itoa(s.http.pageSize),
	}
	if !window.From.IsZero() {
		query["transaction_date_min"] = window.From.Format(sepayTimeLayout)
	}
	if !window.To.IsZero() {
		query["transaction_date_max"] = window.To.Format(sepayTimeLayout)
	}
	return s.http.get(ctx, sepayListPath, query, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+s.http.apiKey)
	})
}
