// Package middleware exposes the omnipay HTTP dispatcher: an echo
// pre-routing middleware that inspects each request's path and routes it
// to the request phase, the callback phase or the IPN phase of a
// configured gateway, passing everything else through untouched.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/clicrdv-admin/omnipay/internal/adapter"
	"github.com/clicrdv-admin/omnipay/internal/gateway"
	"github.com/clicrdv-admin/omnipay/internal/signer"
	"github.com/clicrdv-admin/omnipay/internal/store"
)

const (
	// ResponseKey is the context key under which the normalized payment
	// result is attached for the wrapped application.
	ResponseKey = "omnipay.response"

	// IPNResultKey carries the synthesized notification result attached
	// alongside a callback when the gateway has no IPN channel.
	IPNResultKey = "omnipay.ipn"

	// DefaultCookieName identifies the correlation session cookie.
	DefaultCookieName = "omnipay_session"
)

// Config holds the dispatcher's process-wide settings. It is constructed
// explicitly and passed in; there is no global state.
type Config struct {
	// BasePath is the mount path prefix. Defaults to gateway.DefaultBasePath.
	BasePath string
	// BaseURI is the application's absolute scheme+host, used to build
	// callback URLs. When empty, it is derived from the inbound request.
	BaseURI string
	// CookieName names the session cookie. Defaults to DefaultCookieName.
	CookieName string
	// CookieSecure marks the session cookie Secure.
	CookieSecure bool
	// SessionTTL bounds the lifetime of unconsumed correlation state.
	SessionTTL time.Duration
}

type dispatcher struct {
	cfg      Config
	gateways *gateway.Registry
	store    store.Store
	signer   *signer.Signer
	logger   *zap.Logger
}

// Dispatch builds the dispatcher middleware. Register it with e.Pre so
// path inspection and method normalization happen before routing.
func Dispatch(cfg Config, gateways *gateway.Registry, st store.Store, sg *signer.Signer, logger *zap.Logger) echo.MiddlewareFunc {
	if cfg.BasePath == "" {
		cfg.BasePath = gateway.DefaultBasePath
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &dispatcher{cfg: cfg, gateways: gateways, store: st, signer: sg, logger: logger}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, action, hasAction, ok := d.match(c.Request().URL.Path)
			if !ok {
				return next(c)
			}

			gw := d.gateways.Find(uid)
			if gw == nil {
				// Unknown uids fall through like any other path, leaking
				// nothing about which gateways exist.
				return next(c)
			}

			switch {
			case !hasAction:
				if c.Request().Method != http.MethodGet {
					return next(c)
				}
				return d.requestPhase(c, gw)
			case action == "ipn":
				return d.ipnPhase(c, gw, next)
			case action == "callback":
				return d.callbackPhase(c, gw, next)
			default:
				return next(c)
			}
		}
	}
}

// match extracts the gateway uid and the trailing action from a path.
// "/pay/foobar/callback" yields ("foobar", "callback").
func (d *dispatcher) match(path string) (uid, action string, hasAction, ok bool) {
	prefix := d.cfg.BasePath + "/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false, false
	}

	uid, action, hasAction = strings.Cut(strings.TrimPrefix(path, prefix), "/")
	if uid == "" {
		return "", "", false, false
	}
	return uid, action, hasAction, true
}

// baseURI returns the configured base URI, or the inbound request's
// scheme+host when none is configured.
func (d *dispatcher) baseURI(c echo.Context) string {
	if d.cfg.BaseURI != "" {
		return d.cfg.BaseURI
	}
	return c.Scheme() + "://" + c.Request().Host
}

// sessionID returns the correlation session id from the request cookie,
// creating the cookie when create is set and none exists yet.
func (d *dispatcher) sessionID(c echo.Context, create bool) string {
	if cookie, err := c.Cookie(d.cfg.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if !create {
		return ""
	}

	id := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     d.cfg.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(d.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   d.cfg.CookieSecure,
	})
	return id
}

// requestParams flattens the inbound query string and form body into a
// single parameter map.
func requestParams(c echo.Context) map[string]string {
	values, err := c.FormParams()
	if err != nil {
		values = c.QueryParams()
	}

	params := make(map[string]string, len(values))
	for key, vs := range values {
		if len(vs) > 0 {
			params[key] = vs[0]
		}
	}
	return params
}

// ResponseFrom retrieves the normalized payment result the dispatcher
// attached for the wrapped application.
func ResponseFrom(c echo.Context) (adapter.Result, bool) {
	res, ok := c.Get(ResponseKey).(adapter.Result)
	return res, ok
}

// IPNResultFrom retrieves the synthesized notification result attached
// alongside callbacks of IPN-less gateways.
func IPNResultFrom(c echo.Context) (adapter.Result, bool) {
	res, ok := c.Get(IPNResultKey).(adapter.Result)
	return res, ok
}
