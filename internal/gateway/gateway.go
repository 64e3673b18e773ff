// Package gateway wraps configured payment adapters behind unique ids and
// builds the HTTP responses redirecting users to payment pages.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/clicrdv-admin/omnipay/internal/adapter"
)

// DefaultBasePath is the path prefix under which gateways are mounted.
const DefaultBasePath = "/pay"

// Gateway binds one configured adapter to a unique id. The adapter is
// constructed once and never swapped afterwards.
type Gateway struct {
	uid string
	ad  adapter.Adapter
}

// New creates a Gateway for the given uid and adapter.
func New(uid string, ad adapter.Adapter) (*Gateway, error) {
	if uid == "" {
		return nil, fmt.Errorf("gateway: missing parameter uid")
	}
	if ad == nil {
		return nil, fmt.Errorf("gateway: missing parameter adapter")
	}
	return &Gateway{uid: uid, ad: ad}, nil
}

// UID returns the gateway's unique id.
func (g *Gateway) UID() string { return g.uid }

// Adapter returns the wrapped adapter.
func (g *Gateway) Adapter() adapter.Adapter { return g.ad }

// IPNEnabled reports whether the adapter supports server-to-server
// notifications.
func (g *Gateway) IPNEnabled() bool {
	_, ok := g.ad.(adapter.IPNAdapter)
	return ok
}

// CallbackHash validates inbound callback parameters through the adapter.
func (g *Gateway) CallbackHash(ctx context.Context, params map[string]string) adapter.Result {
	return g.ad.CallbackHash(ctx, params)
}

// IPNHash validates an inbound notification. When the adapter has no IPN
// channel the same information is derived from its callback validation.
func (g *Gateway) IPNHash(ctx context.Context, params map[string]string) adapter.Result {
	if ipn, ok := g.ad.(adapter.IPNAdapter); ok {
		return ipn.IPNHash(ctx, params)
	}
	return g.ad.CallbackHash(ctx, params)
}

// CallbackURL computes the absolute callback URL for this gateway.
func (g *Gateway) CallbackURL(baseURI, basePath string) string {
	return baseURI + basePath + "/" + g.uid + "/callback"
}

// IPNURL computes the absolute notification URL for this gateway.
func (g *Gateway) IPNURL(baseURI, basePath string) string {
	return baseURI + basePath + "/" + g.uid + "/ipn"
}

// RedirectionOptions configures a payment redirection.
type RedirectionOptions struct {
	// BaseURI is the application's absolute scheme+host. Mandatory.
	BaseURI string
	// Host is a deprecated alias for BaseURI, accepted with a warning.
	Host string
	// BasePath overrides the mount path. Defaults to DefaultBasePath.
	BasePath string
	// Amount to pay, in cents. Mandatory.
	Amount int
	// Params are forwarded to the adapter.
	Params map[string]string
}

// Redirection describes the HTTP response sending the user to the payment
// page: a 302 redirect for GET gateways, or an auto-submitted HTML form
// for POST gateways.
type Redirection struct {
	Status        int
	Location      string
	ContentType   string
	Body          string
	TransactionID string
}

// PaymentRedirection builds the response redirecting the user to the
// payment page for the given amount.
func (g *Gateway) PaymentRedirection(ctx context.Context, opts RedirectionOptions, logger *zap.Logger) (*Redirection, error) {
	baseURI := opts.BaseURI
	if baseURI == "" && opts.Host != "" {
		if logger != nil {
			logger.Warn("the :host option is deprecated, use :base_uri instead", zap.String("gateway", g.uid))
		}
		baseURI = opts.Host
	}
	if baseURI == "" {
		return nil, fmt.Errorf("gateway %s: missing parameter base_uri", g.uid)
	}
	if opts.Amount <= 0 {
		return nil, fmt.Errorf("gateway %s: missing parameter amount", g.uid)
	}

	basePath := opts.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}

	callbackURL := g.CallbackURL(baseURI, basePath)
	ipnURL := ""
	if g.IPNEnabled() {
		ipnURL = g.IPNURL(baseURI, basePath)
	}

	redirect, err := g.ad.RequestPhase(ctx, opts.Amount, callbackURL, ipnURL, opts.Params)
	if err != nil {
		return nil, fmt.Errorf("gateway %s: request phase failed: %w", g.uid, err)
	}

	return BuildRedirection(redirect)
}

// BuildRedirection turns an adapter redirect instruction into a concrete
// HTTP response descriptor. Any method other than GET or POST is a
// configuration error.
func BuildRedirection(redirect adapter.Redirect) (*Redirection, error) {
	switch redirect.Method {
	case http.MethodGet:
		return &Redirection{
			Status:        http.StatusFound,
			Location:      redirect.URL + "?" + buildQuery(redirect.Params),
			TransactionID: redirect.TransactionID,
		}, nil
	case http.MethodPost:
		return &Redirection{
			Status:        http.StatusOK,
			ContentType:   "text/html; charset=utf-8",
			Body:          AutosubmitForm(redirect.URL, redirect.Params),
			TransactionID: redirect.TransactionID,
		}, nil
	default:
		return nil, fmt.Errorf("gateway: the returned method %q is neither GET nor POST", redirect.Method)
	}
}

func buildQuery(params map[string]string) string {
	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	return values.Encode()
}
