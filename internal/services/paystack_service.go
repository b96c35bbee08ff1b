package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/example/comcin/internal/models"
)

// GatewayMetadata is the member/charge context attached to a gateway payment.
type GatewayMetadata struct {
	UserID          string
	ChargeID        string
	PaymentMethodID string
}

// GatewayVerification is the gateway's answer for one reference.
type GatewayVerification struct {
	Status          string
	AmountMinor     int64
	Metadata        GatewayMetadata
	GatewayResponse json.RawMessage
}

// PaymentGateway verifies external payment references.
type PaymentGateway interface {
	Verify(ctx context.Context, reference string) (*GatewayVerification, error)
}

const paystackSlug = "paystack"

// PaystackClient verifies payments with the Paystack REST API. The secret key
// comes from the active "paystack" payment method, falling back to the configured key.
type PaystackClient struct {
	db          *gorm.DB
	baseURL     string
	fallbackKey string
	httpClient  *http.Client
}

// NewPaystackClient creates a PaystackClient.
func NewPaystackClient(db *gorm.DB, baseURL, fallbackKey string) *PaystackClient {
	return &PaystackClient{
		db:          db,
		baseURL:     strings.TrimRight(baseURL, "/"),
		fallbackKey: fallbackKey,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status    string          `json:"status"`
		Reference string          `json:"reference"`
		Amount    int64           `json:"amount"`
		Metadata  json.RawMessage `json:"metadata"`
	} `json:"data"`
}

// SecretKey resolves the key for the configured mode of the paystack payment method.
func (p *PaystackClient) SecretKey(ctx context.Context) (string, error) {
	var method models.PaymentMethod
	err := p.db.WithContext(ctx).
		Where("slug = ? AND is_active = ?", paystackSlug, true).
		First(&method).Error
	switch {
	case err == nil:
		if key := method.SecretKey(); key != "" {
			return key, nil
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", err
	}

	if p.fallbackKey == "" {
		return "", errors.New("paystack secret key is not configured")
	}
	return p.fallbackKey, nil
}

// Verify calls GET /transaction/verify/{reference}.
func (p *PaystackClient) Verify(ctx context.Context, reference string) (*GatewayVerification, error) {
	key, err := p.SecretKey(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := p.baseURL + "/transaction/verify/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create Paystack verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call Paystack verify: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read Paystack response: %w", err)
	}

	var payload paystackVerifyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode Paystack response (status %d): %w", resp.StatusCode, err)
	}

	// metadata may be an empty string when none was attached
	var meta map[string]json.RawMessage
	_ = json.Unmarshal(payload.Data.Metadata, &meta)

	status := payload.Data.Status
	if !payload.Status || resp.StatusCode != http.StatusOK {
		status = "failed"
	} else if payload.Data.Reference != reference {
		return nil, fmt.Errorf("Paystack returned reference %q for %q", payload.Data.Reference, reference)
	}

	return &GatewayVerification{
		Status:      status,
		AmountMinor: payload.Data.Amount,
		Metadata: GatewayMetadata{
			UserID:          metadataString(meta, "user_id"),
			ChargeID:        metadataString(meta, "charge_id"),
			PaymentMethodID: metadataString(meta, "payment_method_id"),
		},
		GatewayResponse: json.RawMessage(body),
	}, nil
}

func metadataString(meta map[string]json.RawMessage, key string) string {
	raw, ok := meta[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
