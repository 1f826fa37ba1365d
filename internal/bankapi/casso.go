package bankapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/learnhub/payrecon/pkg/config"
)

const (
	cassoDefaultBaseURL = "https://oauth.casso.vn"
	cassoListPath       = "/v2/transactions"
	cassoDateLayout     = "2006-01-02"
)

// Casso lists transactions through the Casso v2 API.
type Casso struct {
	http *httpClient
}

func NewCasso(cfg config.BankAPIConfig, opts ...Option) (*Casso, error) {
	c, err := newHTTPClient(config.BankProviderCasso, cassoDefaultBaseURL, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &Casso{http: c}, nil
}

func (c *Casso) Name() string { return config.BankProviderCasso }

// ListTransactions asks for the newest records first. Casso filters by day
// only, so records before window.From may be returned; the ledger absorbs them.
func (c *Casso) ListTransactions(ctx context.Context, window Window) (json.RawMessage, error) {
	query := map[string]string{
		"sort":     "DESC",
		"pageSize": strconv.Itoa(c.http.pageSize),
	}
	if !window.From.IsZero() {
		query["fromDate"] = window.From.Format(cassoDateLayout)
	}
	if !window.To.IsZero() {
		query["toDate"] = window.To.Format(cassoDateLayout)
	}
	return c.http.get(ctx, cassoListPath, query, func(req *http.Request) {
		req.Header.Set("Authorization", "Apikey "+c.http.apiKey)
	})
}
