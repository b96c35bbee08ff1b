package services

import (
	"context"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/utils"
)

// MinPasswordLength applies to registration and password reset.
const MinPasswordLength = 6

// RegistrationService creates a member account together with its institution.
type RegistrationService struct {
	db        *gorm.DB
	notifier  *Notifier
	mailer    Mailer
	blobs     BlobStore
	publicURL string
	otpTTL    time.Duration
	now       func() time.Time
}

// NewRegistrationService creates a RegistrationService.
func NewRegistrationService(db *gorm.DB, notifier *Notifier, mailer Mailer, blobs BlobStore, publicURL string, otpTTL time.Duration) *RegistrationService {
	if otpTTL <= 0 {
		otpTTL = time.Hour
	}
	return &RegistrationService{
		db:        db,
		notifier:  notifier,
		mailer:    mailer,
		blobs:     blobs,
		publicURL: strings.TrimRight(publicURL, "/"),
		otpTTL:    otpTTL,
		now:       time.Now,
	}
}

// InstitutionInput holds the institution fields of a registration.
type InstitutionInput struct {
	Name               string
	Type               string
	Category           string
	RegistrationNumber string
	RegulatoryBody     string
	EstablishmentDate  *time.Time
	OperatingState     string
	Address            string
	ContactEmail       string
	ContactPhone       string
	Website            string
	Description        string
	AgreedToTerms      bool
	AgreedToPrivacy    bool
}

// RegistrationInput is a complete membership application.
type RegistrationInput struct {
	Name             string
	Email            string
	Phone            string
	Password         string
	Institution    InstitutionInput
	Documents      map[string]*Upload
	PaymentReceipt *Upload
}

// RegistrationResult is returned after a successful registration.
type RegistrationResult struct {
	User        *models.User        `json:"user"`
	Institution *models.Institution `json:"institution"`
	Payment     *PaymentResult      `json:"payment,omitempty"`
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (in *RegistrationInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return invalid("a valid email is required")
	}
	if len(in.Password) < MinPasswordLength {
		return invalid("password must be at least %d characters", MinPasswordLength)
	}
	inst := in.Institution
	if strings.TrimSpace(inst.Name) == "" {
		return invalid("institution name is required")
	}
	if !oneOf(inst.Type, models.InstitutionTypes...) {
		return invalid("invalid institution type %q", inst.Type)
	}
	if !oneOf(inst.Category, models.CategoryUnit, models.CategoryState, models.CategoryFederal) {
		return invalid("invalid institution category %q", inst.Category)
	}
	if !inst.AgreedToTerms || !inst.AgreedToPrivacy {
		return invalid("terms and privacy policy must be accepted")
	}
	for _, doc := range models.InstitutionDocuments {
		if u := in.Documents[doc.Field]; doc.Required && (u == nil || u.Body == nil) {
			return invalid("%s is required", doc.Field)
		}
	}
	return nil
}

// Register creates the user, the pending institution and, when a payment
// receipt is attached, the first annual due with a pending transaction. All
// rows commit together. The verification email and notifications follow the commit.
func (s *RegistrationService) Register(ctx context.Context, in RegistrationInput) (*RegistrationResult, error) {
	in.Email = NormalizeEmail(in.Email)
	if err := in.validate(); err != nil {
		return nil, err
	}

	var taken int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", in.Email).Count(&taken).Error; err != nil {
		return nil, persistence("check email", err)
	}
	if taken > 0 {
		return nil, invalid("email has already been taken")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, persistence("hash password", err)
	}
	otp, err := utils.GenerateOTP()
	if err != nil {
		return nil, persistence("generate otp", err)
	}

	userID := uuid.New()
	var stored []string
	save := func(u *Upload) (string, error) {
		if u == nil || u.Body == nil {
			return "", nil
		}
		if s.blobs == nil {
			return u.Filename, nil
		}
		p, err := s.blobs.Save(userID.String()+"/institutions", u.Filename, u.Body)
		if err != nil {
			return "", persistence("store document", err)
		}
		stored = append(stored, p)
		return p, nil
	}

	documents := make(map[string]string, len(models.InstitutionDocuments))
	for _, doc := range models.InstitutionDocuments {
		path, err := save(in.Documents[doc.Field])
		if err != nil {
			s.discard(stored)
			return nil, err
		}
		documents[doc.Column] = path
	}
	receiptPath, err := save(in.PaymentReceipt)
	if err != nil {
		s.discard(stored)
		return nil, err
	}

	now := s.now()
	user := models.User{
		BaseModel:    models.BaseModel{ID: userID},
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		Phone:        in.Phone,
		Role:         models.RoleMember,
		PasswordHash: hash,
		IsActive:     true,
	}
	user.SetOTP(otp, now.Add(s.otpTTL))

	inst := in.Institution
	institution := models.Institution{
		UserID:             userID,
		Name:               strings.TrimSpace(inst.Name),
		Type:               inst.Type,
		Category:           inst.Category,
		RegistrationNumber: inst.RegistrationNumber,
		RegulatoryBody:     inst.RegulatoryBody,
		EstablishmentDate:  inst.EstablishmentDate,
		OperatingState:     inst.OperatingState,
		Address:            inst.Address,
		ContactEmail:       inst.ContactEmail,
		ContactPhone:       inst.ContactPhone,
		Website:            inst.Website,
		Description:        inst.Description,
		PaymentReceipt:     receiptPath,
		AgreedToTerms:      inst.AgreedToTerms,
		AgreedToPrivacy:    inst.AgreedToPrivacy,
		Status:             models.ApplicationPending,
		IsApproved:         false,
	}

	for column, path := range documents {
		institution.SetDocument(column, path)
	}

	result := &RegistrationResult{User: &user, Institution: &institution}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if IsUniqueViolation(err) {
				return invalid("email has already been taken")
			}
			return err
		}
		if err := tx.Create(&institution).Error; err != nil {
			return err
		}

		if receiptPath != "" {
			payment, err := recordManual(tx, manualRecord{
				MemberID:    userID,
				Amount:      ComputeDefaultDue(inst.Category),
				ReceiptPath: receiptPath,
				RecordedBy:  userID,
				Description: AnnualDuesDescription,
				Now:         now,
			})
			if err != nil {
				return err
			}
			result.Payment = payment
		}
		return nil
	})
	if err != nil {
		s.discard(stored)
		return nil, persistence("register institution", err)
	}

	link := fmt.Sprintf("%s/verify/%s/%s", s.publicURL, user.ID, otp)
	sendBestEffort(ctx, s.mailer, user.Email, "Verify your email address",
		fmt.Sprintf("Hello %s,\n\nYour verification code is %s. It expires in %d minutes.\n\nOr open this link to verify your email: %s\n",
			user.Name, otp, int(s.otpTTL.Minutes()), link))

	notifications := []NotificationInput{{
		UserID:   user.ID,
		Title:    "Application Received",
		Content:  fmt.Sprintf("Thank you for registering %s. Your application is pending review.", institution.Name),
		Type:     models.NotificationInfo,
		Category: models.CategoryApplication,
	}}
	notifications = append(notifications, s.notifier.ToAdmins(ctx, NotificationInput{
		Title:     "New Membership Application",
		Content:   fmt.Sprintf("%s submitted a membership application for %s.", user.Name, institution.Name),
		Type:      models.NotificationInfo,
		Category:  models.CategoryApplication,
		CreatedBy: &user.ID,
	})...)
	s.notifier.Dispatch(ctx, notifications...)

	return result, nil
}

func (s *RegistrationService) discard(paths []string) {
	for _, p := range paths {
		if err := s.blobs.Delete(p); err != nil {
			log.Printf("[Register] failed to remove orphaned upload %s: %v", p, err)
		}
	}
}
