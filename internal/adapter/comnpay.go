package adapter

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clicrdv-admin/omnipay/internal/pkg/httpclient"
)

// comnpayCancelReason is the literal reason string Comnpay sends when the
// user abandons the transaction.
const comnpayCancelReason = "Abandon de la transaction."

// ComnpayAdapter implements the Adapter interface for Comnpay payment
// terminals. The redirection is a POST auto-submit form carrying a SHA-512
// signature; payment confirmations arrive via IPN.
type ComnpayAdapter struct {
	tpeID     string
	secretKey string
	sandbox   bool
	client    *httpclient.Client
}

// NewComnpayAdapter creates a Comnpay adapter. The terminal id and secret
// key are mandatory credentials.
func NewComnpayAdapter(tpeID, secretKey string, sandbox bool) (*ComnpayAdapter, error) {
	if tpeID == "" || secretKey == "" {
		return nil, fmt.Errorf("comnpay: missing tpe_id or secret_key")
	}

	validationURL := "https://secure.comnpay.com:60000"
	if sandbox {
		validationURL = "https://secure.homologation.comnpay.com:60000"
	}

	return &ComnpayAdapter{
		tpeID:     tpeID,
		secretKey: secretKey,
		sandbox:   sandbox,
		client: httpclient.New().
			WithTimeout(30 * time.Second).
			WithBaseURL(validationURL),
	}, nil
}

func (a *ComnpayAdapter) Name() string {
	return "comnpay"
}

func (a *ComnpayAdapter) redirectURL() string {
	if a.sandbox {
		return "https://secure.homologation.comnpay.com"
	}
	return "https://secure.comnpay.com"
}

func (a *ComnpayAdapter) RequestPhase(ctx context.Context, amount int, callbackURL, ipnURL string, params map[string]string) (Redirect, error) {
	transactionID := params["transaction_id"]
	if transactionID == "" {
		transactionID = a.newTransactionID(params["reference"])
	}
	currency := params["currency"]
	if currency == "" {
		currency = "EUR"
	}
	locale := params["locale"]
	if locale == "" {
		locale = "fr"
	}

	montant := strconv.FormatFloat(float64(amount)/100, 'f', -1, 64)

	// The signature covers the field values in this exact order.
	ordered := []string{
		montant,
		a.tpeID,
		transactionID,
		currency,
		locale,
		params["title"],
		ipnURL,
		callbackURL,
		callbackURL,
	}

	redirectParams := map[string]string{
		"montant":       montant,
		"idTPE":         a.tpeID,
		"idTransaction": transactionID,
		"devise":        currency,
		"lang":          locale,
		"nom_produit":   params["title"],
		"urlIPN":        ipnURL,
		"urlRetourOK":   callbackURL,
		"urlRetourNOK":  callbackURL,
		"sec":           a.sign(ordered),
	}

	return Redirect{
		Method:        "POST",
		URL:           a.redirectURL(),
		Params:        redirectParams,
		TransactionID: transactionID,
	}, nil
}

func (a *ComnpayAdapter) CallbackHash(ctx context.Context, params map[string]string) Result {
	switch params["result"] {
	case "OK":
		return a.validateTransaction(params["transactionId"])
	case "NOK":
		if params["reason"] == comnpayCancelReason {
			return Result{Success: false, Error: Cancelation}
		}
		return Result{Success: false, Error: PaymentRefused, ErrorMessage: params["reason"]}
	default:
		return Result{Success: false, Error: InvalidResponse, ErrorMessage: "no result param given"}
	}
}

// IPNHash validates a server-to-server notification. The notification
// itself is signed; after the signature check the transaction is fetched
// from the API for its authoritative amount.
func (a *ComnpayAdapter) IPNHash(ctx context.Context, params map[string]string) Result {
	expected := a.sign([]string{params["idTpe"], params["idTransaction"], params["montant"], params["result"]})
	if params["sec"] != expected {
		return Result{
			Success:      false,
			Error:        InvalidResponse,
			ErrorMessage: fmt.Sprintf("invalid notification signature: expected %s but got %s", expected, params["sec"]),
		}
	}

	transactionID := params["idTransaction"]
	if transactionID == "" {
		return Result{Success: false, Error: InvalidResponse, ErrorMessage: "no transaction id given"}
	}

	return a.validateTransaction(transactionID)
}

// validateTransaction fetches a transaction from the Comnpay API and maps
// it to a normalized result.
func (a *ComnpayAdapter) validateTransaction(transactionID string) Result {
	if transactionID == "" {
		return Result{Success: false, Error: InvalidResponse, ErrorMessage: "no transaction id given"}
	}

	resp, err := a.client.Get(fmt.Sprintf("/rest/payment/find?serialNumber=%s&key=%s&transactionRef=%s",
		a.tpeID, a.secretKey, transactionID))
	if err != nil {
		return Result{
			Success:      false,
			Error:        InvalidResponse,
			ErrorMessage: fmt.Sprintf("cannot fetch the transaction %s: %v", transactionID, err),
		}
	}

	// The API wraps the record in a single-element "transaction" array.
	var payload struct {
		Transaction []struct {
			OK      int     `json:"ok"`
			Amount  float64 `json:"amount"` // in units, like the montant field
			Message string  `json:"message"`
		} `json:"transaction"`
	}
	if err := json.Unmarshal(resp, &payload); err != nil || len(payload.Transaction) == 0 {
		return Result{
			Success:      false,
			Error:        InvalidResponse,
			ErrorMessage: fmt.Sprintf("no transaction found for %s", transactionID),
		}
	}
	transaction := payload.Transaction[0]

	if transaction.OK != 1 {
		return Result{
			Success:      false,
			Error:        PaymentRefused,
			ErrorMessage: transaction.Message,
		}
	}

	return Result{
		Success:       true,
		Amount:        int(math.Round(transaction.Amount * 100)),
		TransactionID: transactionID,
	}
}

// sign computes the Comnpay "sec" field: SHA-512 over the base64 of the
// pipe-joined values plus the secret key.
func (a *ComnpayAdapter) sign(values []string) string {
	toSign := strings.Join(append(append([]string{}, values...), a.secretKey), "|")
	encoded := base64.StdEncoding.EncodeToString([]byte(toSign))
	return fmt.Sprintf("%x", sha512.Sum512([]byte(encoded)))
}

// newTransactionID builds a terminal-unique transaction id carrying the
// local reference, so the reference can be recovered from notifications.
func (a *ComnpayAdapter) newTransactionID(reference string) string {
	return fmt.Sprintf("%d%s_%s", time.Now().Unix(), uuid.NewString()[:4], reference)
}
