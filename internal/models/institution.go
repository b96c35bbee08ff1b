package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ApplicationPending   = "pending"
	ApplicationVerifying = "verifying"
	ApplicationApproved  = "approved"
	ApplicationRejected  = "rejected"
)

const (
	CategoryUnit    = "unit"
	CategoryState   = "state"
	CategoryFederal = "federal"
)

// InstitutionTypes lists accepted institution types.
var InstitutionTypes = []string{"Microfinance", "Cooperative", "Other"}

// InstitutionDocument is an uploadable institution file. Field is the form
// field name and Column the institution column holding the stored path.
type InstitutionDocument struct {
	Field    string
	Column   string
	Required bool
}

// InstitutionDocuments lists every document an application may carry.
var InstitutionDocuments = []InstitutionDocument{
	{Field: "id_card", Column: "id_card", Required: true},
	{Field: "certificate_of_registration", Column: "certificate_of_registration", Required: true},
	{Field: "operational_license", Column: "operational_license", Required: true},
	{Field: "institution_logo", Column: "logo"},
	{Field: "constitution", Column: "constitution"},
	{Field: "latest_annual_report", Column: "latest_annual_report"},
	{Field: "letter_of_intent", Column: "letter_of_intent"},
	{Field: "board_resolution", Column: "board_resolution"},
	{Field: "passport_photograph", Column: "passport_photograph"},
	{Field: "other_supporting_document", Column: "other_supporting_document"},
}

// Institution is the coalition-member organisation owned by a single user.
type Institution struct {
	BaseModel
	UserID                    uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User                      *User      `json:"user,omitempty"`
	Name                      string     `gorm:"not null" json:"name"`
	Type                      string     `json:"type"`
	Category                  string     `gorm:"index" json:"category"`
	RegistrationNumber        string     `json:"registration_number"`
	RegulatoryBody            string     `json:"regulatory_body"`
	EstablishmentDate         *time.Time `json:"establishment_date"`
	OperatingState            string     `gorm:"index" json:"operating_state"`
	Address                   string     `json:"address"`
	ContactEmail              string     `json:"contact_email"`
	ContactPhone              string     `json:"contact_phone"`
	Website                   string     `json:"website"`
	Description               string     `json:"description"`
	IDCard                    string     `gorm:"column:id_card" json:"id_card"`
	CertificateOfRegistration string     `json:"certificate_of_registration"`
	OperationalLicense        string     `json:"operational_license"`
	Constitution              string     `json:"constitution"`
	LatestAnnualReport        string     `json:"latest_annual_report"`
	LetterOfIntent            string     `json:"letter_of_intent"`
	BoardResolution           string     `json:"board_resolution"`
	PassportPhotograph        string     `json:"passport_photograph"`
	OtherSupportingDocument   string     `json:"other_supporting_document"`
	PaymentReceipt            string     `json:"payment_receipt"`
	Logo                      string     `json:"logo"`
	Banner                    string     `json:"banner"`
	AgreedToTerms             bool       `json:"agreed_to_terms"`
	AgreedToPrivacy           bool       `json:"agreed_to_privacy"`
	Status                    string     `gorm:"index;not null" json:"status"`
	IsApproved                bool       `json:"is_approved"`
	RejectionReason           *string    `json:"rejection_reason"`
}

func (i *Institution) documentRef(column string) *string {
	switch column {
	case "id_card":
		return &i.IDCard
	case "certificate_of_registration":
		return &i.CertificateOfRegistration
	case "operational_license":
		return &i.OperationalLicense
	case "constitution":
		return &i.Constitution
	case "latest_annual_report":
		return &i.LatestAnnualReport
	case "letter_of_intent":
		return &i.LetterOfIntent
	case "board_resolution":
		return &i.BoardResolution
	case "passport_photograph":
		return &i.PassportPhotograph
	case "other_supporting_document":
		return &i.OtherSupportingDocument
	case "logo":
		return &i.Logo
	case "banner":
		return &i.Banner
	case "payment_receipt":
		return &i.PaymentReceipt
	}
	return nil
}

// Document returns the stored path for a document column.
func (i *Institution) Document(column string) string {
	if ref := i.documentRef(column); ref != nil {
		return *ref
	}
	return ""
}

// SetDocument records the stored path for a document column. Unknown columns are ignored.
func (i *Institution) SetDocument(column, path string) {
	if ref := i.documentRef(column); ref != nil {
		*ref = path
	}
}
