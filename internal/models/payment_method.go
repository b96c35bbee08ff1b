package models

const (
	ModeTest = "test"
	ModeLive = "live"
)

// PaymentMethod configures a gateway or bank account members can pay through.
type PaymentMethod struct {
	BaseModel
	Name          string `gorm:"not null" json:"name"`
	Slug          string `gorm:"uniqueIndex;not null" json:"slug"`
	Logo          string `json:"logo"`
	Mode          string `json:"mode"`
	TestPublicKey string `json:"test_public_key"`
	TestSecretKey string `json:"-"`
	LivePublicKey string `json:"live_public_key"`
	LiveSecretKey string `json:"-"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	Currency      string `json:"currency"`
	IsActive      bool   `gorm:"index" json:"is_active"`
}

// SecretKey returns the secret for the configured mode.
func (p *PaymentMethod) SecretKey() string {
	if p.Mode == ModeLive {
		return p.LiveSecretKey
	}
	return p.TestSecretKey
}

// PublicKey returns the public key for the configured mode.
func (p *PaymentMethod) PublicKey() string {
	if p.Mode == ModeLive {
		return p.LivePublicKey
	}
	return p.TestPublicKey
}
