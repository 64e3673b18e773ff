package middleware

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/clicrdv-admin/omnipay/internal/gateway"
	"github.com/clicrdv-admin/omnipay/internal/store"
)

// requestPhase handles GET {base_path}/{uid}: it redirects the user to the
// payment page and records the correlation state (context + signature) the
// callback phase will verify against.
func (d *dispatcher) requestPhase(c echo.Context, gw *gateway.Gateway) error {
	req := c.Request()
	query := req.URL.Query()

	amountParam := query.Get("amount")
	if amountParam == "" {
		return c.String(http.StatusBadRequest, "no amount specified")
	}
	amount, err := strconv.Atoi(amountParam)
	if err != nil || amount <= 0 {
		return c.String(http.StatusBadRequest, "invalid amount: "+amountParam)
	}

	context, adapterParams := splitRequestQuery(query)

	baseURI := d.baseURI(c)
	callbackURL := gw.CallbackURL(baseURI, d.cfg.BasePath)
	ipnURL := ""
	if gw.IPNEnabled() {
		ipnURL = gw.IPNURL(baseURI, d.cfg.BasePath)
	}

	redirect, err := gw.Adapter().RequestPhase(req.Context(), amount, callbackURL, ipnURL, adapterParams)
	if err != nil {
		d.logger.Error("request phase failed",
			zap.String("gateway", gw.UID()),
			zap.Int("amount", amount),
			zap.Error(err))
		return c.String(http.StatusBadGateway, "payment gateway error")
	}

	sessionID := d.sessionID(c, true)
	correlation := store.Correlation{
		Context:   context,
		Signature: d.signer.Compute(redirect.TransactionID, amount, context),
	}
	if err := d.store.Put(req.Context(), sessionID, gw.UID(), correlation); err != nil {
		d.logger.Error("storing correlation state failed",
			zap.String("gateway", gw.UID()),
			zap.Error(err))
		return c.String(http.StatusInternalServerError, "session storage error")
	}

	redirection, err := gateway.BuildRedirection(redirect)
	if err != nil {
		// Adapter returned a method the core cannot render: a gateway
		// configuration bug, not a payment outcome.
		d.logger.Error("invalid redirection from adapter",
			zap.String("gateway", gw.UID()),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if redirection.Location != "" {
		return c.Redirect(redirection.Status, redirection.Location)
	}
	return c.HTML(redirection.Status, redirection.Body)
}

// splitRequestQuery separates the opaque application context from the
// parameters forwarded to the adapter. Context entries arrive as
// "context[key]=value" pairs; a bare "context=value" parameter is kept
// under the empty key. The amount is consumed by the request phase itself.
func splitRequestQuery(query url.Values) (context, params map[string]string) {
	context = make(map[string]string)
	params = make(map[string]string)

	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		value := values[0]

		switch {
		case key == "amount":
			// handled by the request phase
		case key == "context":
			context[""] = value
		case strings.HasPrefix(key, "context[") && strings.HasSuffix(key, "]"):
			context[key[len("context["):len(key)-1]] = value
		default:
			params[key] = value
		}
	}

	return context, params
}
