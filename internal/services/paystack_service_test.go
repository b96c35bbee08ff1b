package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/comcin/internal/models"
)

func TestPaystackVerify(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{
			"status":"success","reference":"TXN001","amount":10000,
			"metadata":{"user_id":"u-1","charge_id":"c-1","payment_method_id":42}}}`))
	}))
	defer server.Close()

	db := newTestDB(t)
	require.NoError(t, db.Create(&models.PaymentMethod{
		Name:          "Paystack",
		Slug:          "paystack",
		Mode:          models.ModeLive,
		TestSecretKey: "sk_test",
		LiveSecretKey: "sk_live",
		IsActive:      true,
	}).Error)

	client := NewPaystackClient(db, server.URL+"/", "sk_fallback")
	v, err := client.Verify(context.Background(), "TXN001")
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk_live", gotAuth)
	assert.Equal(t, "/transaction/verify/TXN001", gotPath)
	assert.Equal(t, "success", v.Status)
	assert.Equal(t, int64(10000), v.AmountMinor)
	assert.Equal(t, GatewayMetadata{UserID: "u-1", ChargeID: "c-1", PaymentMethodID: "42"}, v.Metadata)
	assert.Contains(t, string(v.GatewayResponse), `"reference":"TXN001"`)
}

func TestPaystackVerifyFailedAndEmptyMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found","data":{"metadata":""}}`))
	}))
	defer server.Close()

	client := NewPaystackClient(newTestDB(t), server.URL, "sk_fallback")
	v, err := client.Verify(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, "failed", v.Status)
	assert.Equal(t, GatewayMetadata{}, v.Metadata)
}

func TestPaystackVerifyRejectsForeignReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{
			"status":"success","reference":"TXN999","amount":10000,
			"metadata":{"user_id":"u-1","charge_id":"c-1"}}}`))
	}))
	defer server.Close()

	client := NewPaystackClient(newTestDB(t), server.URL, "sk_fallback")
	v, err := client.Verify(context.Background(), "TXN001")
	require.Error(t, err)
	assert.Nil(t, v)
	assert.Contains(t, err.Error(), "TXN999")
}

func TestVerifyGatewayPaymentRejectsForeignReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"data":{"status":"success","reference":"TXN999","amount":10000,"metadata":{}}}`))
	}))
	defer server.Close()

	db := newTestDB(t)
	member, _ := createMember(t, db, "member@example.com", models.CategoryUnit)
	svc := NewPaymentService(db, NewNotifier(db), NewPaystackClient(db, server.URL, "sk_fallback"), nil)

	_, err := svc.VerifyGatewayPayment(context.Background(), actorOf(member), "TXN001")
	assert.ErrorIs(t, err, ErrPaymentNotSuccessful)
	assert.Equal(t, int64(0), countRows(t, db, &models.Transaction{}, ""))
}

func TestPaystackSecretKeyFallback(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := NewPaystackClient(db, "http://localhost", "").SecretKey(ctx)
	assert.Error(t, err)

	key, err := NewPaystackClient(db, "http://localhost", "sk_env").SecretKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk_env", key)

	require.NoError(t, db.Create(&models.PaymentMethod{
		Name: "Paystack", Slug: "paystack", Mode: models.ModeTest, TestSecretKey: "sk_test", IsActive: true,
	}).Error)
	key, err = NewPaystackClient(db, "http://localhost", "sk_env").SecretKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk_test", key)
}
