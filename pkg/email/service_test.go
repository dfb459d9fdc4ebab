package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsConfigured(t *testing.T) {
	assert.False(t, NewEmailService("", "cafe@example.com").IsConfigured())
	assert.False(t, NewEmailService("key", "").IsConfigured())
	assert.True(t, NewEmailService("key", "cafe@example.com").IsConfigured())
}

func TestSendEmail_NotConfigured(t *testing.T) {
	err := NewEmailService("", "").SendEmail(context.Background(), "a@example.com", "hi", "<p>hi</p>")
	assert.Error(t, err)
}

func TestSendLowStockDigest(t *testing.T) {
	var got sendEmailRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewEmailService("re_test", "cafe@example.com").WithEndpoint(srv.URL)
	err := svc.SendLowStockDigest(context.Background(), "owner@example.com", "2026-10-19", []StockLine{
		{Kind: "menu item", Name: "Masala <Tea>", Stock: "2", Threshold: "5", Unit: "cups"},
		{Kind: "raw material", Name: "Milk", Stock: "0.5", Threshold: "2", Unit: "liter"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer re_test", auth)
	assert.Equal(t, "cafe@example.com", got.From)
	assert.Equal(t, []string{"owner@example.com"}, got.To)
	assert.Equal(t, "Low stock: 2 item(s) need restocking (2026-10-19)", got.Subject)
	assert.Contains(t, got.HTML, "Masala &lt;Tea&gt;")
	assert.Contains(t, got.HTML, "0.5 liter")
}

func TestSendEmail_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	svc := NewEmailService("re_test", "cafe@example.com").WithEndpoint(srv.URL)
	err := svc.SendEmail(context.Background(), "owner@example.com", "hi", "<p>hi</p>")
	assert.ErrorContains(t, err, "status 422")
}
