package database

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/models"
	"github.com/example/comcin/internal/utils"
)

// SeedFile describes initial data loaded by the admin CLI.
type SeedFile struct {
	Admins         []SeedUser          `yaml:"admins"`
	Members        []SeedMember        `yaml:"members"`
	PaymentMethods []SeedPaymentMethod `yaml:"payment_methods"`
	Content        []SeedContent       `yaml:"content"`
}

type SeedUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Phone    string `yaml:"phone"`
	Password string `yaml:"password"`
}

type SeedMember struct {
	SeedUser    `yaml:",inline"`
	Institution SeedInstitution `yaml:"institution"`
}

type SeedInstitution struct {
	Name               string `yaml:"name"`
	Type               string `yaml:"type"`
	Category           string `yaml:"category"`
	RegistrationNumber string `yaml:"registration_number"`
	RegulatoryBody     string `yaml:"regulatory_body"`
	OperatingState     string `yaml:"operating_state"`
	Status             string `yaml:"status"`
}

type SeedPaymentMethod struct {
	Name          string `yaml:"name"`
	Slug          string `yaml:"slug"`
	Mode          string `yaml:"mode"`
	TestPublicKey string `yaml:"test_public_key"`
	TestSecretKey string `yaml:"test_secret_key"`
	LivePublicKey string `yaml:"live_public_key"`
	LiveSecretKey string `yaml:"live_secret_key"`
	AccountName   string `yaml:"account_name"`
	AccountNumber string `yaml:"account_number"`
	BankName      string `yaml:"bank_name"`
	Currency      string `yaml:"currency"`
	Active        bool   `yaml:"active"`
}

type SeedContent struct {
	Section string `yaml:"section"`
	Key     string `yaml:"key"`
	Value   string `yaml:"value"`
}

// SeedResult counts rows created by Seed.
type SeedResult struct {
	Users          int
	Institutions   int
	PaymentMethods int
	Content        int
}

// DefaultSeed returns the built-in demo accounts.
func DefaultSeed() *SeedFile {
	return &SeedFile{
		Admins: []SeedUser{{Name: "Admin User", Email: "admin@example.com", Password: "password"}},
		Members: []SeedMember{{
			SeedUser: SeedUser{Name: "Member User", Email: "member@example.com", Password: "password"},
			Institution: SeedInstitution{
				Name:           "ABC Microfinance",
				Type:           "Microfinance",
				Category:       models.CategoryUnit,
				OperatingState: "Lagos",
				Status:         models.ApplicationPending,
			},
		}},
		PaymentMethods: []SeedPaymentMethod{{
			Name:     "Paystack",
			Slug:     "paystack",
			Mode:     models.ModeTest,
			Currency: "NGN",
			Active:   true,
		}},
	}
}

// LoadSeedFile reads a YAML seed file from disk.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes YAML seed data.
func ParseSeed(data []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}

// Seed inserts missing seed rows. Existing users, payment methods and content keys are left untouched.
func Seed(ctx context.Context, conn *gorm.DB, seed *SeedFile) (SeedResult, error) {
	var result SeedResult

	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, admin := range seed.Admins {
			_, created, err := seedUser(tx, admin, models.RoleAdmin, true)
			if err != nil {
				return err
			}
			if created {
				result.Users++
			}
		}

		for _, member := range seed.Members {
			status := member.Institution.Status
			if status == "" {
				status = models.ApplicationPending
			}
			user, created, err := seedUser(tx, member.SeedUser, models.RoleMember, status == models.ApplicationApproved)
			if err != nil {
				return err
			}
			if !created {
				continue
			}
			result.Users++

			institution := models.Institution{
				UserID:             user.ID,
				Name:               member.Institution.Name,
				Type:               member.Institution.Type,
				Category:           member.Institution.Category,
				RegistrationNumber: member.Institution.RegistrationNumber,
				RegulatoryBody:     member.Institution.RegulatoryBody,
				OperatingState:     member.Institution.OperatingState,
				Status:             status,
				IsApproved:         status == models.ApplicationApproved,
				AgreedToTerms:      true,
				AgreedToPrivacy:    true,
			}
			if err := tx.Create(&institution).Error; err != nil {
				return fmt.Errorf("seed institution %s: %w", institution.Name, err)
			}
			result.Institutions++
		}

		for _, pm := range seed.PaymentMethods {
			method := models.PaymentMethod{
				Name:          pm.Name,
				Slug:          pm.Slug,
				Mode:          pm.Mode,
				TestPublicKey: pm.TestPublicKey,
				TestSecretKey: pm.TestSecretKey,
				LivePublicKey: pm.LivePublicKey,
				LiveSecretKey: pm.LiveSecretKey,
				AccountName:   pm.AccountName,
				AccountNumber: pm.AccountNumber,
				BankName:      pm.BankName,
				Currency:      pm.Currency,
				IsActive:      pm.Active,
			}
			if method.Currency == "" {
				method.Currency = "NGN"
			}
			created, err := createMissing(tx, &method, "slug = ?", pm.Slug)
			if err != nil {
				return fmt.Errorf("seed payment method %s: %w", pm.Slug, err)
			}
			if created {
				result.PaymentMethods++
			}
		}

		for _, item := range seed.Content {
			content := models.WebsiteContent{Section: item.Section, Key: item.Key, Value: item.Value}
			created, err := createMissing(tx, &content, "section = ? AND key = ?", item.Section, item.Key)
			if err != nil {
				return fmt.Errorf("seed content %s.%s: %w", item.Section, item.Key, err)
			}
			if created {
				result.Content++
			}
		}
		return nil
	})

	return result, err
}

func seedUser(tx *gorm.DB, in SeedUser, role string, approved bool) (*models.User, bool, error) {
	var existing models.User
	err := tx.Where("email = ?", in.Email).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, false, fmt.Errorf("hash password for %s: %w", in.Email, err)
	}

	now := time.Now()
	user := models.User{
		Name:            in.Name,
		Email:           in.Email,
		Phone:           in.Phone,
		Role:            role,
		PasswordHash:    hash,
		IsVerified:      true,
		EmailVerifiedAt: &now,
		IsApproved:      approved,
		IsActive:        true,
	}
	if err := tx.Create(&user).Error; err != nil {
		return nil, false, fmt.Errorf("seed user %s: %w", in.Email, err)
	}
	return &user, true, nil
}

func createMissing(tx *gorm.DB, row interface{}, query string, args ...interface{}) (bool, error) {
	var count int64
	if err := tx.Model(row).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	return true, tx.Create(row).Error
}

// CreateAdmin adds a verified admin unless the email is already registered.
func CreateAdmin(ctx context.Context, conn *gorm.DB, in SeedUser) (*models.User, bool, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || in.Password == "" {
		return nil, false, fmt.Errorf("email and password are required")
	}

	var (
		user    *models.User
		created bool
	)
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, created, err = seedUser(tx, in, models.RoleAdmin, true)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if !created && user.Role != models.RoleAdmin {
		return nil, false, fmt.Errorf("%s is registered as %s", in.Email, user.Role)
	}
	return user, created, nil
}
