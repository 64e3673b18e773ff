package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/clicrdv-admin/omnipay/internal/adapter"
	"github.com/clicrdv-admin/omnipay/internal/gateway"
)

// ipnPhase handles {base_path}/{uid}/ipn: it validates the asynchronous
// notification, attaches the normalized result and forwards to the
// wrapped application as a POST.
func (d *dispatcher) ipnPhase(c echo.Context, gw *gateway.Gateway, next echo.HandlerFunc) error {
	params := requestParams(c)

	res := gw.IPNHash(c.Request().Context(), params)
	res.Raw = params

	c.Set(ResponseKey, res)
	c.Request().Method = http.MethodPost
	return next(c)
}

// callbackPhase handles {base_path}/{uid}/callback: it validates the
// browser return trip against the stored correlation state and forwards
// the normalized result to the wrapped application as a GET.
//
// Correlation reads are destructive. Exactly one callback can consume a
// request phase's context and signature; a replay finds nothing and fails
// the signature check.
func (d *dispatcher) callbackPhase(c echo.Context, gw *gateway.Gateway, next echo.HandlerFunc) error {
	ctx := c.Request().Context()
	params := requestParams(c)

	if !gw.IPNEnabled() {
		// No async channel for this gateway: derive a server-validated
		// notification result before processing the callback itself. The
		// correlation state is left untouched; only the callback check
		// below consumes it.
		ipnRes := gw.IPNHash(ctx, params)
		ipnRes.Raw = params
		c.Set(IPNResultKey, ipnRes)
	}

	res := gw.CallbackHash(ctx, params)

	sessionID := d.sessionID(c, false)
	correlation, found, err := d.store.Take(ctx, sessionID, gw.UID())
	if err != nil {
		d.logger.Error("taking correlation state failed",
			zap.String("gateway", gw.UID()),
			zap.Error(err))
		found = false
	}
	if !found {
		correlation.Context = nil
		correlation.Signature = ""
	}
	context := correlation.Context
	if context == nil {
		context = map[string]string{}
	}

	// The adapter's own validation does not protect against parameter
	// substitution across gateways or sessions; the session-bound
	// signature has the final say on success.
	if res.Success {
		expected := d.signer.Compute(res.TransactionID, res.Amount, context)
		if expected != correlation.Signature {
			res = adapter.Result{
				Success:      false,
				Error:        adapter.WrongSignature,
				ErrorMessage: "signatures do not match",
			}
		}
	}

	if !res.Success {
		message := res.ErrorMessage
		if message == "" {
			message = string(res.Error)
		}
		res.ErrorMessage = fmt.Sprintf("%s\nGateway: %s\nContext: %v\nStored signature: %s\nRequest: %s %s",
			message, gw.UID(), context, correlation.Signature, c.Request().Method, c.Request().URL.String())
	}

	res.Raw = params
	res.Context = context

	c.Set(ResponseKey, res)
	// Providers may call back via POST; normalize so the application
	// renders a plain page.
	c.Request().Method = http.MethodGet
	return next(c)
}
