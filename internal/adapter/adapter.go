// Package adapter defines the contract between the omnipay core and
// vendor-specific payment gateway implementations, plus the adapters
// shipped with the library (Mangopay, BitPay, Comnpay, sandbox).
package adapter

import (
	"context"
)

// ErrorCode classifies a failed payment outcome.
type ErrorCode string

const (
	// Cancelation means the user walked away from the payment page.
	Cancelation ErrorCode = "cancelation"
	// PaymentRefused means the gateway processed the payment and declined it.
	PaymentRefused ErrorCode = "payment_refused"
	// InvalidResponse means the gateway response could not be validated.
	// The payment may or may not have occurred.
	InvalidResponse ErrorCode = "invalid_response"
	// WrongSignature means the callback parameters do not match what was
	// signed during the request phase.
	WrongSignature ErrorCode = "wrong_signature"
)

// Redirect describes how to send the user to the payment page.
type Redirect struct {
	// Method is http.MethodGet (302 redirect) or http.MethodPost
	// (auto-submitted form).
	Method string
	// URL is the absolute payment page URL, without query parameters.
	URL string
	// Params are sent as query string (GET) or hidden form fields (POST).
	Params map[string]string
	// TransactionID is the provider-issued transaction id for the upcoming
	// payment, when the provider issues one before redirection.
	TransactionID string
}

// Result is the normalized outcome of a callback or IPN validation.
type Result struct {
	Success       bool              `json:"success"`
	Amount        int               `json:"amount,omitempty"` // in cents
	TransactionID string            `json:"transaction_id,omitempty"`
	Error         ErrorCode         `json:"error,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	Raw           map[string]string `json:"raw,omitempty"`
	Context       map[string]string `json:"context,omitempty"`
}

// Adapter is implemented by each payment provider integration.
type Adapter interface {
	// Name returns the provider identifier.
	Name() string

	// RequestPhase determines the redirection to the payment page for the
	// given amount in cents. callbackURL and ipnURL are the absolute URLs
	// the provider should send the user (resp. its servers) back to; params
	// carry adapter-specific options from the inbound request. The adapter
	// must not mutate params.
	RequestPhase(ctx context.Context, amount int, callbackURL, ipnURL string, params map[string]string) (Redirect, error)

	// CallbackHash validates the parameters the provider sent back through
	// the user's browser. Every outcome must be classified: success, or one
	// of Cancelation, PaymentRefused, InvalidResponse.
	CallbackHash(ctx context.Context, params map[string]string) Result
}

// IPNAdapter is implemented by adapters whose provider supports
// server-to-server instant payment notifications.
type IPNAdapter interface {
	Adapter

	// IPNHash validates an asynchronous notification. Same contract as
	// CallbackHash.
	IPNHash(ctx context.Context, params map[string]string) Result
}
