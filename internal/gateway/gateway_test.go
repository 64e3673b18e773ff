package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clicrdv-admin/omnipay/internal/adapter"
)

func TestNew_Validation(t *testing.T) {
	_, err := New("", adapter.NewSandboxAdapter("sandbox"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uid")

	_, err = New("acme", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adapter")
}

func TestGateway_IPNEnabled(t *testing.T) {
	plain, err := New("plain", adapter.NewSandboxAdapter("plain"))
	require.NoError(t, err)
	assert.False(t, plain.IPNEnabled())

	ipn, err := New("ipn", adapter.NewSandboxIPNAdapter("ipn"))
	require.NoError(t, err)
	assert.True(t, ipn.IPNEnabled())
}

func TestGateway_IPNHashFallsBackToCallback(t *testing.T) {
	ad := adapter.NewSandboxAdapter("plain")
	ad.CallbackFunc = func(ctx context.Context, params map[string]string) adapter.Result {
		return adapter.Result{Success: true, Amount: 500, TransactionID: "TXN-9"}
	}

	g, err := New("plain", ad)
	require.NoError(t, err)

	res := g.IPNHash(context.Background(), map[string]string{})
	assert.True(t, res.Success)
	assert.Equal(t, "TXN-9", res.TransactionID)
}

func TestGateway_URLs(t *testing.T) {
	g, err := New("acme", adapter.NewSandboxAdapter("acme"))
	require.NoError(t, err)

	assert.Equal(t, "https://app.tld/pay/acme/callback", g.CallbackURL("https://app.tld", "/pay"))
	assert.Equal(t, "https://app.tld/pay/acme/ipn", g.IPNURL("https://app.tld", "/pay"))
}

func TestPaymentRedirection_GET(t *testing.T) {
	ad := adapter.NewSandboxAdapter("acme")
	ad.RequestFunc = func(ctx context.Context, amount int, callbackURL, ipnURL string, params map[string]string) (adapter.Redirect, error) {
		assert.Equal(t, 1295, amount)
		assert.Equal(t, "https://app.tld/pay/acme/callback", callbackURL)
		assert.Empty(t, ipnURL, "IPN URL only provided to IPN-capable adapters")
		return adapter.Redirect{
			Method:        http.MethodGet,
			URL:           "https://provider.tld/pay",
			Params:        map[string]string{"token": "abc"},
			TransactionID: "TXN-1",
		}, nil
	}

	g, err := New("acme", ad)
	require.NoError(t, err)

	redirection, err := g.PaymentRedirection(context.Background(), RedirectionOptions{
		BaseURI: "https://app.tld",
		Amount:  1295,
	}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, http.StatusFound, redirection.Status)
	assert.Equal(t, "https://provider.tld/pay?token=abc", redirection.Location)
	assert.Equal(t, "TXN-1", redirection.TransactionID)
}

func TestPaymentRedirection_POST(t *testing.T) {
	ad := adapter.NewSandboxAdapter("acme")
	ad.RequestFunc = func(ctx context.Context, amount int, callbackURL, ipnURL string, params map[string]string) (adapter.Redirect, error) {
		return adapter.Redirect{
			Method: http.MethodPost,
			URL:    "https://provider.tld/pay",
			Params: map[string]string{"token": "abc"},
		}, nil
	}

	g, err := New("acme", ad)
	require.NoError(t, err)

	redirection, err := g.PaymentRedirection(context.Background(), RedirectionOptions{
		BaseURI: "https://app.tld",
		Amount:  1295,
	}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, redirection.Status)
	assert.Equal(t, "text/html; charset=utf-8", redirection.ContentType)
	assert.Contains(t, redirection.Body, `<form method="POST" id="autosubmit-form" action="https://provider.tld/pay">`)
	assert.Contains(t, redirection.Body, `<input type="hidden" name="token" value="abc"/>`)
}

func TestPaymentRedirection_HostAliasAccepted(t *testing.T) {
	g, err := New("acme", adapter.NewSandboxAdapter("acme"))
	require.NoError(t, err)

	redirection, err := g.PaymentRedirection(context.Background(), RedirectionOptions{
		Host:   "https://app.tld",
		Amount: 1295,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, redirection.Status)
}

func TestPaymentRedirection_MissingOptions(t *testing.T) {
	g, err := New("acme", adapter.NewSandboxAdapter("acme"))
	require.NoError(t, err)

	_, err = g.PaymentRedirection(context.Background(), RedirectionOptions{Amount: 1295}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_uri")

	_, err = g.PaymentRedirection(context.Background(), RedirectionOptions{BaseURI: "https://app.tld"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount")
}

func TestPaymentRedirection_AdapterFailure(t *testing.T) {
	ad := adapter.NewSandboxAdapter("acme")
	ad.RequestFunc = func(ctx context.Context, amount int, callbackURL, ipnURL string, params map[string]string) (adapter.Redirect, error) {
		return adapter.Redirect{}, fmt.Errorf("provider API unreachable")
	}

	g, err := New("acme", ad)
	require.NoError(t, err)

	_, err = g.PaymentRedirection(context.Background(), RedirectionOptions{
		BaseURI: "https://app.tld",
		Amount:  1295,
	}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider API unreachable")
}

func TestBuildRedirection_RejectsOtherMethods(t *testing.T) {
	_, err := BuildRedirection(adapter.Redirect{Method: "PUT", URL: "https://provider.tld"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither GET nor POST")
}

func TestAutosubmitForm_OneHiddenInputPerField(t *testing.T) {
	html := AutosubmitForm("https://provider.tld/pay", map[string]string{
		"token":  "abc",
		"amount": "12.95",
	})

	assert.Contains(t, html, `<form method="POST" id="autosubmit-form" action="https://provider.tld/pay">`)
	assert.Contains(t, html, `<input type="hidden" name="amount" value="12.95"/>`)
	assert.Contains(t, html, `<input type="hidden" name="token" value="abc"/>`)
	assert.Contains(t, html, "document.getElementById('autosubmit-form').submit();")
	assert.Equal(t, 1, strings.Count(html, "<form"))
}
