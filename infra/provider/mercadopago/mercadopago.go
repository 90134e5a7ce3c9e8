// Package mercadopago implements paymentfeed.Feed over the Mercado Pago
// payments search API.
package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/provider/paymentfeed"
	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL = "https://api.mercadopago.com"
	searchPath     = "/v1/payments/search"
	pageSize       = 50
	maxPages       = 20
	timeLayout     = "2006-01-02T15:04:05.000Z07:00"
)

// Feed queries approved payments of an account with its access token.
type Feed struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type searchResponse struct {
	Paging struct {
		Total  int `json:"total"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	} `json:"paging"`
	Results []paymentResult `json:"results"`
}

type paymentResult struct {
	ID                json.Number     `json:"id"`
	Status            string          `json:"status"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	DateApproved      *time.Time      `json:"date_approved"`
	DateCreated       time.Time       `json:"date_created"`
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}

// New creates a Feed from the payment feed config section.
func New(cfg *config.PaymentFeed, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Feed{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("provider", "mercadopago"),
	}
}

// SearchApproved implements paymentfeed.Feed.
func (f *Feed) SearchApproved(ctx context.Context, q paymentfeed.Query) ([]paymentfeed.Payment, error) {
	if q.AccessToken == "" {
		return nil, fmt.Errorf("mercadopago: missing access token")
	}
	var out []paymentfeed.Payment
	for page := 0; page < maxPages; page++ {
		resp, err := f.search(ctx, q, page*pageSize)
		if err != nil {
			return nil, err
		}
		for _, r := range resp.Results {
			if r.Status != "approved" {
				continue
			}
			approvedAt := r.DateCreated
			if r.DateApproved != nil {
				approvedAt = *r.DateApproved
			}
			out = append(out, paymentfeed.Payment{
				ID:         r.ID.String(),
				Amount:     r.TransactionAmount,
				Status:     paymentfeed.PaymentApproved,
				ApprovedAt: approvedAt,
			})
		}
		if len(resp.Results) < pageSize || (page+1)*pageSize >= resp.Paging.Total {
			break
		}
	}
	f.logger.Debug("payments searched", "from", q.From, "to", q.To, "approved", len(out))
	return out, nil
}

func (f *Feed) search(ctx context.Context, q paymentfeed.Query, offset int) (*searchResponse, error) {
	params := url.Values{}
	params.Set("sort", "date_created")
	params.Set("criteria", "desc")
	params.Set("status", "approved")
	params.Set("range", "date_created")
	params.Set("begin_date", q.From.UTC().Format(timeLayout))
	params.Set("end_date", q.To.UTC().Format(timeLayout))
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+searchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+q.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: search payments: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("mercadopago: status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("mercadopago: status %d: %s", resp.StatusCode, string(body))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("mercadopago: decode response: %w", err)
	}
	return &out, nil
}
