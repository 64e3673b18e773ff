package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/clicrdv-admin/omnipay/internal/pkg/httpclient"
)

// BitPayAdapter implements the Adapter interface for BitPay invoices.
// BitPay notifies payment confirmations server-to-server, so the adapter
// is IPN-capable; the browser callback is validated the same way, by
// fetching the invoice.
type BitPayAdapter struct {
	client *httpclient.Client
}

// NewBitPayAdapter creates a BitPay adapter. The API key is mandatory.
func NewBitPayAdapter(apiKey string, sandbox bool) (*BitPayAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("bitpay: missing api_key")
	}

	baseURL := "https://bitpay.com/api"
	if sandbox {
		baseURL = "https://test.bitpay.com/api"
	}

	return &BitPayAdapter{
		client: httpclient.New().
			WithTimeout(30 * time.Second).
			WithBasicAuth(apiKey, "").
			WithBaseURL(baseURL),
	}, nil
}

func (b *BitPayAdapter) Name() string {
	return "bitpay"
}

func (b *BitPayAdapter) RequestPhase(ctx context.Context, amount int, callbackURL, ipnURL string, params map[string]string) (Redirect, error) {
	currency := params["currency"]
	if currency == "" {
		currency = "EUR"
	}
	redirectURL := params["redirect_url"]
	if redirectURL == "" {
		redirectURL = callbackURL
	}

	body := map[string]interface{}{
		"price":             float64(amount) / 100,
		"currency":          currency,
		"redirectURL":       redirectURL,
		"notificationURL":   ipnURL,
		"fullNotifications": true,
	}
	// Optional invoice fields forwarded as-is.
	for _, option := range []string{"orderID", "itemDesc", "itemCode", "posData", "buyerEmail", "buyerName"} {
		if value := params[option]; value != "" {
			body[option] = value
		}
	}

	resp, err := b.client.Post("/invoice", body)
	if err != nil {
		return Redirect{}, fmt.Errorf("bitpay create invoice failed: %w", err)
	}

	var invoice struct {
		ID    string `json:"id"`
		URL   string `json:"url"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp, &invoice); err != nil {
		return Redirect{}, fmt.Errorf("bitpay parse error: %w", err)
	}
	if invoice.Error != "" {
		return Redirect{}, fmt.Errorf("bitpay invoice error: %s", invoice.Error)
	}
	if invoice.URL == "" {
		return Redirect{}, fmt.Errorf("bitpay: no invoice URL returned")
	}

	uri, err := url.Parse(invoice.URL)
	if err != nil {
		return Redirect{}, fmt.Errorf("bitpay: invalid invoice URL %q: %w", invoice.URL, err)
	}
	redirectParams := make(map[string]string)
	for key, values := range uri.Query() {
		if len(values) > 0 {
			redirectParams[key] = values[0]
		}
	}

	return Redirect{
		Method:        "GET",
		URL:           uri.Scheme + "://" + uri.Host + uri.Path,
		Params:        redirectParams,
		TransactionID: invoice.ID,
	}, nil
}

func (b *BitPayAdapter) CallbackHash(ctx context.Context, params map[string]string) Result {
	return b.validateInvoice(params["id"])
}

// IPNHash validates a server-to-server notification. BitPay posts the
// invoice id; the status is always re-fetched from the API rather than
// trusted from the notification body.
func (b *BitPayAdapter) IPNHash(ctx context.Context, params map[string]string) Result {
	return b.validateInvoice(params["id"])
}

func (b *BitPayAdapter) validateInvoice(invoiceID string) Result {
	if invoiceID == "" {
		return Result{Success: false, Error: InvalidResponse, ErrorMessage: "no invoice id given"}
	}

	resp, err := b.client.Get("/invoice/" + invoiceID)
	if err != nil {
		return Result{
			Success:      false,
			Error:        InvalidResponse,
			ErrorMessage: fmt.Sprintf("cannot fetch the invoice with id %s: %v", invoiceID, err),
		}
	}

	var invoice struct {
		ID     string  `json:"id"`
		Status string  `json:"status"`
		Price  float64 `json:"price"`
	}
	if err := json.Unmarshal(resp, &invoice); err != nil || invoice.ID == "" {
		return Result{
			Success:      false,
			Error:        InvalidResponse,
			ErrorMessage: fmt.Sprintf("no invoice found for %s", invoiceID),
		}
	}

	switch invoice.Status {
	case "confirmed", "complete":
		return Result{
			Success:       true,
			Amount:        int(math.Round(invoice.Price * 100)),
			TransactionID: invoice.ID,
		}
	case "expired", "invalid":
		return Result{Success: false, Error: Cancelation}
	default:
		return Result{
			Success:      false,
			Error:        PaymentRefused,
			ErrorMessage: fmt.Sprintf("invoice %s has status %s", invoiceID, invoice.Status),
		}
	}
}
