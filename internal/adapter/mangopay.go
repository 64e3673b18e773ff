package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/clicrdv-admin/omnipay/internal/pkg/httpclient"
)

// MangopayAdapter implements the Adapter interface for Mangopay web payins.
// Mangopay has no IPN channel; everything is validated on the callback.
type MangopayAdapter struct {
	clientID string
	walletID string
	client   *httpclient.Client
}

// NewMangopayAdapter creates a Mangopay adapter. clientID, passphrase and
// walletID are all mandatory credentials.
func NewMangopayAdapter(clientID, passphrase, walletID string, sandbox bool) (*MangopayAdapter, error) {
	if clientID == "" || passphrase == "" || walletID == "" {
		return nil, fmt.Errorf("mangopay: missing client_id, client_passphrase or wallet_id")
	}

	baseURL := "https://api.mangopay.com/v2"
	if sandbox {
		baseURL = "https://api.sandbox.mangopay.com/v2"
	}

	return &MangopayAdapter{
		clientID: clientID,
		walletID: walletID,
		client: httpclient.New().
			WithTimeout(30 * time.Second).
			WithBasicAuth(clientID, passphrase).
			WithBaseURL(baseURL + "/" + clientID),
	}, nil
}

func (m *MangopayAdapter) Name() string {
	return "mangopay"
}

func (m *MangopayAdapter) RequestPhase(ctx context.Context, amount int, callbackURL, ipnURL string, params map[string]string) (Redirect, error) {
	payerID := params["payer_id"]
	if payerID == "" {
		return Redirect{}, fmt.Errorf("mangopay: missing payer_id parameter")
	}

	currency := params["currency"]
	if currency == "" {
		currency = "EUR"
	}
	locale := params["locale"]
	if locale == "" {
		locale = "fr"
	}

	// Fees are a percentage of the amount, taken out of the debited funds.
	fees := 0
	if feesParam := params["fees"]; feesParam != "" {
		percent, err := strconv.ParseFloat(feesParam, 64)
		if err != nil {
			return Redirect{}, fmt.Errorf("mangopay: invalid fees parameter %q: %w", feesParam, err)
		}
		fees = int(float64(amount)*percent + 0.5)
	}

	body := map[string]interface{}{
		"AuthorId": payerID,
		"DebitedFunds": map[string]interface{}{
			"Currency": currency,
			"Amount":   amount - fees,
		},
		"Fees": map[string]interface{}{
			"Currency": currency,
			"Amount":   fees,
		},
		"CreditedWalletId": m.walletID,
		"ReturnURL":        callbackURL,
		"Culture":          strings.ToUpper(locale),
		"CardType":         "CB_VISA_MASTERCARD",
		"SecureMode":       "FORCE",
	}

	resp, err := m.client.Post("/payins/card/web", body)
	if err != nil {
		return Redirect{}, fmt.Errorf("mangopay create payin failed: %w", err)
	}

	var payin struct {
		ID          string `json:"Id"`
		RedirectURL string `json:"RedirectURL"`
	}
	if err := json.Unmarshal(resp, &payin); err != nil {
		return Redirect{}, fmt.Errorf("mangopay parse error: %w", err)
	}
	if payin.RedirectURL == "" {
		return Redirect{}, fmt.Errorf("mangopay: no redirect URL returned")
	}

	// Split the returned redirect URL into a bare URL and its query params.
	uri, err := url.Parse(payin.RedirectURL)
	if err != nil {
		return Redirect{}, fmt.Errorf("mangopay: invalid redirect URL %q: %w", payin.RedirectURL, err)
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
		TransactionID: payin.ID,
	}, nil
}

func (m *MangopayAdapter) CallbackHash(ctx context.Context, params map[string]string) Result {
	transactionID := params["transactionId"]
	if transactionID == "" {
		return Result{Success: false, Error: InvalidResponse, ErrorMessage: "no transactionId given"}
	}
	return m.validatePayin(transactionID)
}

// validatePayin fetches a payin and maps its status to a normalized result.
func (m *MangopayAdapter) validatePayin(transactionID string) Result {
	resp, err := m.client.Get("/payins/" + transactionID)
	if err != nil {
		return Result{
			Success:      false,
			Error:        InvalidResponse,
			ErrorMessage: fmt.Sprintf("cannot fetch the payin with id %s: %v", transactionID, err),
		}
	}

	var payin struct {
		Status        string `json:"Status"`
		ResultCode    string `json:"ResultCode"`
		ResultMessage string `json:"ResultMessage"`
		DebitedFunds  struct {
			Amount int `json:"Amount"`
		} `json:"DebitedFunds"`
	}
	if err := json.Unmarshal(resp, &payin); err != nil {
		return Result{
			Success:      false,
			Error:        InvalidResponse,
			ErrorMessage: fmt.Sprintf("mangopay parse error for payin %s: %v", transactionID, err),
		}
	}

	switch {
	case payin.Status == "SUCCEEDED":
		return Result{
			Success:       true,
			Amount:        payin.DebitedFunds.Amount,
			TransactionID: transactionID,
		}
	case payin.ResultCode == "101001" || payin.ResultCode == "101002":
		// User-initiated abandon
		return Result{Success: false, Error: Cancelation}
	default:
		return Result{
			Success: false,
			Error:   PaymentRefused,
			ErrorMessage: fmt.Sprintf("refused payment for transaction %s: code %s, message %s",
				transactionID, payin.ResultCode, payin.ResultMessage),
		}
	}
}
