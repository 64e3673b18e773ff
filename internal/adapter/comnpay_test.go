package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clicrdv-admin/omnipay/internal/pkg/httpclient"
)

func TestNewComnpayAdapter_Validation(t *testing.T) {
	_, err := NewComnpayAdapter("", "secret", true)
	require.Error(t, err)

	_, err = NewComnpayAdapter("tpe-1", "", true)
	require.Error(t, err)
}

func TestComnpayRequestPhase(t *testing.T) {
	a, err := NewComnpayAdapter("tpe-1", "secret", true)
	require.NoError(t, err)

	redirect, err := a.RequestPhase(context.Background(), 1295,
		"https://app.tld/pay/comnpay/callback",
		"https://app.tld/pay/comnpay/ipn",
		map[string]string{"reference": "order-42", "title": "Order 42"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, redirect.Method)
	assert.Equal(t, "https://secure.homologation.comnpay.com", redirect.URL)
	assert.Equal(t, "12.95", redirect.Params["montant"])
	assert.Equal(t, "tpe-1", redirect.Params["idTPE"])
	assert.Equal(t, "EUR", redirect.Params["devise"])
	assert.Equal(t, "fr", redirect.Params["lang"])
	assert.Equal(t, "Order 42", redirect.Params["nom_produit"])
	assert.Equal(t, "https://app.tld/pay/comnpay/ipn", redirect.Params["urlIPN"])
	assert.Equal(t, "https://app.tld/pay/comnpay/callback", redirect.Params["urlRetourOK"])
	assert.Equal(t, "https://app.tld/pay/comnpay/callback", redirect.Params["urlRetourNOK"])
	assert.Len(t, redirect.Params["sec"], 128, "sec is a hex-encoded SHA-512 digest")

	assert.NotEmpty(t, redirect.TransactionID)
	assert.True(t, strings.HasSuffix(redirect.TransactionID, "_order-42"),
		"generated transaction ids carry the local reference")
	assert.Equal(t, redirect.TransactionID, redirect.Params["idTransaction"])
}

func TestComnpayRequestPhase_ExplicitTransactionID(t *testing.T) {
	a, err := NewComnpayAdapter("tpe-1", "secret", false)
	require.NoError(t, err)

	redirect, err := a.RequestPhase(context.Background(), 100, "https://app.tld/cb", "https://app.tld/ipn",
		map[string]string{"transaction_id": "TXN-7", "currency": "USD", "locale": "en"})
	require.NoError(t, err)

	assert.Equal(t, "https://secure.comnpay.com", redirect.URL)
	assert.Equal(t, "TXN-7", redirect.TransactionID)
	assert.Equal(t, "USD", redirect.Params["devise"])
	assert.Equal(t, "en", redirect.Params["lang"])
	assert.Equal(t, "1", redirect.Params["montant"])
}

func TestComnpaySign(t *testing.T) {
	a, err := NewComnpayAdapter("tpe-1", "secret", true)
	require.NoError(t, err)

	first := a.sign([]string{"12.95", "tpe-1", "TXN-1"})
	assert.Equal(t, first, a.sign([]string{"12.95", "tpe-1", "TXN-1"}), "signing is deterministic")
	assert.NotEqual(t, first, a.sign([]string{"12.95", "tpe-1", "TXN-2"}))

	other, err := NewComnpayAdapter("tpe-1", "other-secret", true)
	require.NoError(t, err)
	assert.NotEqual(t, first, other.sign([]string{"12.95", "tpe-1", "TXN-1"}))
}

func TestComnpayCallbackHash_Classification(t *testing.T) {
	a, err := NewComnpayAdapter("tpe-1", "secret", true)
	require.NoError(t, err)
	ctx := context.Background()

	res := a.CallbackHash(ctx, map[string]string{"result": "NOK", "reason": comnpayCancelReason})
	assert.False(t, res.Success)
	assert.Equal(t, Cancelation, res.Error)

	res = a.CallbackHash(ctx, map[string]string{"result": "NOK", "reason": "insufficient funds"})
	assert.False(t, res.Success)
	assert.Equal(t, PaymentRefused, res.Error)
	assert.Equal(t, "insufficient funds", res.ErrorMessage)

	res = a.CallbackHash(ctx, map[string]string{})
	assert.False(t, res.Success)
	assert.Equal(t, InvalidResponse, res.Error)
}

func TestComnpayIPNHash_RejectsBadSignature(t *testing.T) {
	a, err := NewComnpayAdapter("tpe-1", "secret", true)
	require.NoError(t, err)

	res := a.IPNHash(context.Background(), map[string]string{
		"idTpe":         "tpe-1",
		"idTransaction": "TXN-1",
		"montant":       "12.95",
		"result":        "OK",
		"sec":           "forged",
	})
	assert.False(t, res.Success)
	assert.Equal(t, InvalidResponse, res.Error)
	assert.Contains(t, res.ErrorMessage, "invalid notification signature")
}

func TestComnpayIPNHash_ValidatesTransaction(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.String()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transaction":[{"ok":1,"amount":12.95,"message":""}]}`))
	}))
	defer server.Close()

	a := &ComnpayAdapter{
		tpeID:     "tpe-1",
		secretKey: "secret",
		client:    httpclient.New().WithBaseURL(server.URL),
	}

	params := map[string]string{
		"idTpe":         "tpe-1",
		"idTransaction": "TXN-1",
		"montant":       "12.95",
		"result":        "OK",
	}
	params["sec"] = a.sign([]string{params["idTpe"], params["idTransaction"], params["montant"], params["result"]})

	res := a.IPNHash(context.Background(), params)
	assert.True(t, res.Success)
	assert.Equal(t, 1295, res.Amount)
	assert.Equal(t, "TXN-1", res.TransactionID)
	assert.Contains(t, requestedPath, "/rest/payment/find")
	assert.Contains(t, requestedPath, "transactionRef=TXN-1")
}

func TestComnpayValidateTransaction_Successful(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transaction":[{"ok":1,"amount":12.95,"message":""}]}`))
	}))
	defer server.Close()

	a := &ComnpayAdapter{
		tpeID:     "tpe-1",
		secretKey: "secret",
		client:    httpclient.New().WithBaseURL(server.URL),
	}

	res := a.CallbackHash(context.Background(), map[string]string{"result": "OK", "transactionId": "TXN-1"})
	assert.True(t, res.Success)
	assert.Equal(t, 1295, res.Amount, "the API amount is in units and the result in cents")
	assert.Equal(t, "TXN-1", res.TransactionID)
}

func TestComnpayValidateTransaction_Refused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transaction":[{"ok":0,"amount":0,"message":"transaction refused"}]}`))
	}))
	defer server.Close()

	a := &ComnpayAdapter{
		tpeID:     "tpe-1",
		secretKey: "secret",
		client:    httpclient.New().WithBaseURL(server.URL),
	}

	res := a.CallbackHash(context.Background(), map[string]string{"result": "OK", "transactionId": "TXN-1"})
	assert.False(t, res.Success)
	assert.Equal(t, PaymentRefused, res.Error)
	assert.Equal(t, "transaction refused", res.ErrorMessage)
}

func TestComnpayValidateTransaction_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transaction":[]}`))
	}))
	defer server.Close()

	a := &ComnpayAdapter{
		tpeID:     "tpe-1",
		secretKey: "secret",
		client:    httpclient.New().WithBaseURL(server.URL),
	}

	res := a.CallbackHash(context.Background(), map[string]string{"result": "OK", "transactionId": "TXN-1"})
	assert.False(t, res.Success)
	assert.Equal(t, InvalidResponse, res.Error)
	assert.Contains(t, res.ErrorMessage, "no transaction found")
}
