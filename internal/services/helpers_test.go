package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/comcin/internal/database"
	"github.com/example/comcin/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and shared
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(conn))
	return conn
}

type fakeGateway struct {
	mu      sync.Mutex
	results map[string]*GatewayVerification
	calls   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{results: map[string]*GatewayVerification{}}
}

func (g *fakeGateway) set(reference string, v *GatewayVerification) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results[reference] = v
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*GatewayVerification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	v, ok := g.results[reference]
	if !ok {
		return nil, errors.New("unknown reference")
	}
	return v, nil
}

type sentMail struct {
	To, Subject, Body string
}

type memMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *memMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

type memBlobs struct {
	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
	n       int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{files: map[string][]byte{}}
}

func (b *memBlobs) Save(dir, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	p := fmt.Sprintf("uploads/%s/%d-%s", dir, b.n, filename)
	b.files[p] = data
	return p, nil
}

func (b *memBlobs) Delete(p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, p)
	b.deleted = append(b.deleted, p)
	return nil
}

func upload(name, content string) *Upload {
	return &Upload{Filename: name, Body: bytes.NewBufferString(content)}
}

func createUser(t *testing.T, db *gorm.DB, role, email string) models.User {
	t.Helper()
	user := models.User{
		Name:         strings.Split(email, "@")[0],
		Email:        email,
		Role:         role,
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createMember(t *testing.T, db *gorm.DB, email, category string) (models.User, models.Institution) {
	t.Helper()
	user := createUser(t, db, models.RoleMember, email)
	institution := models.Institution{
		UserID:   user.ID,
		Name:     "Institution of " + user.Name,
		Type:     "Microfinance",
		Category: category,
		Status:   models.ApplicationPending,
	}
	require.NoError(t, db.Create(&institution).Error)
	return user, institution
}

func createCharge(t *testing.T, db *gorm.DB, memberID uuid.UUID, amount int64, status string) models.Charge {
	t.Helper()
	charge := models.Charge{
		MemberID: memberID,
		Title:    "Levy",
		Type:     models.ChargeLevy,
		Amount:   decimal.NewFromInt(amount),
		Status:   status,
	}
	require.NoError(t, db.Create(&charge).Error)
	return charge
}

func actorOf(u models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

func notificationsFor(t *testing.T, db *gorm.DB, userID uuid.UUID) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, db.Where("user_id = ?", userID).Order("created_at asc").Find(&out).Error)
	return out
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
