package notifications

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinpay/internal/core/security"
)

func TestSendWebhookSignsPayload(t *testing.T) {
	payload := []byte(`{"event":"coin.credited","data":{"amount":500}}`)
	secret := "hook-secret"

	var gotSignature, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Coinpay-Signature")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, SendWebhook(srv.URL, payload, secret))

	// The receiver must be able to recompute the signature over the raw
	// body with the shared secret.
	assert.Equal(t, security.Sign(string(payload), []byte(secret)), gotSignature)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, payload, gotBody)
}

func TestSendWebhookSignatureDependsOnSecret(t *testing.T) {
	payload := []byte(`{"event":"coin.credited"}`)

	var signatures []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signatures = append(signatures, r.Header.Get("X-Coinpay-Signature"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, SendWebhook(srv.URL, payload, "first-secret"))
	require.NoError(t, SendWebhook(srv.URL, payload, "second-secret"))

	require.Len(t, signatures, 2)
	assert.NotEqual(t, signatures[0], signatures[1])
}

func TestSendWebhookNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := SendWebhook(srv.URL, []byte(`{}`), "hook-secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSendWebhookUnreachableIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nobody listening anymore

	assert.Error(t, SendWebhook(srv.URL, []byte(`{}`), "hook-secret"))
}
