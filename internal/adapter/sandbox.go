package adapter

import (
	"context"
	"strconv"

	"github.com/google/uuid"
)

// SandboxAdapter is a provider-less adapter used by the demo application
// and as a test double. Its behavior can be overridden per call; the
// defaults emulate a gateway that accepts every payment.
type SandboxAdapter struct {
	AdapterName  string
	RequestFunc  func(ctx context.Context, amount int, callbackURL, ipnURL string, params map[string]string) (Redirect, error)
	CallbackFunc func(ctx context.Context, params map[string]string) Result
}

// NewSandboxAdapter creates a sandbox adapter with default behavior.
func NewSandboxAdapter(name string) *SandboxAdapter {
	return &SandboxAdapter{AdapterName: name}
}

func (s *SandboxAdapter) Name() string {
	if s.AdapterName != "" {
		return s.AdapterName
	}
	return "sandbox"
}

func (s *SandboxAdapter) RequestPhase(ctx context.Context, amount int, callbackURL, ipnURL string, params map[string]string) (Redirect, error) {
	if s.RequestFunc != nil {
		return s.RequestFunc(ctx, amount, callbackURL, ipnURL, params)
	}

	transactionID := uuid.NewString()
	return Redirect{
		Method: "GET",
		URL:    callbackURL,
		Params: map[string]string{
			"transactionId": transactionID,
			"amount":        strconv.Itoa(amount),
		},
		TransactionID: transactionID,
	}, nil
}

func (s *SandboxAdapter) CallbackHash(ctx context.Context, params map[string]string) Result {
	if s.CallbackFunc != nil {
		return s.CallbackFunc(ctx, params)
	}

	amount, err := strconv.Atoi(params["amount"])
	if err != nil {
		return Result{Success: false, Error: InvalidResponse, ErrorMessage: "no amount in callback params"}
	}
	return Result{
		Success:       true,
		Amount:        amount,
		TransactionID: params["transactionId"],
	}
}

// SandboxIPNAdapter is a SandboxAdapter whose provider also notifies
// server-to-server.
type SandboxIPNAdapter struct {
	SandboxAdapter
	IPNFunc func(ctx context.Context, params map[string]string) Result
}

// NewSandboxIPNAdapter creates an IPN-capable sandbox adapter.
func NewSandboxIPNAdapter(name string) *SandboxIPNAdapter {
	return &SandboxIPNAdapter{SandboxAdapter: SandboxAdapter{AdapterName: name}}
}

func (s *SandboxIPNAdapter) IPNHash(ctx context.Context, params map[string]string) Result {
	if s.IPNFunc != nil {
		return s.IPNFunc(ctx, params)
	}
	return s.CallbackHash(ctx, params)
}
