package services

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/comcin/internal/models"
)

// Delta is the percentage change from previous to current, rounded to two
// decimals. It is 0 whenever previous is 0.
func Delta(current, previous float64) float64 {
	if previous <= 0 {
		return 0
	}
	return round2((current - previous) / previous * 100)
}

// Percentage returns part/total as a percentage, 0 for an empty total.
func Percentage(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Period is a half-open time range [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// MonthPeriods returns the last complete calendar month and the month before it.
func MonthPeriods(now time.Time) (current, previous Period) {
	startThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	current = Period{Start: startThis.AddDate(0, -1, 0), End: startThis}
	previous = Period{Start: startThis.AddDate(0, -2, 0), End: startThis.AddDate(0, -1, 0)}
	return current, previous
}

// ReportingService computes read-only dashboard aggregates.
type ReportingService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewReportingService creates a ReportingService.
func NewReportingService(db *gorm.DB) *ReportingService {
	return &ReportingService{db: db, now: time.Now}
}

type filter struct {
	query string
	args  []interface{}
}

func where(query string, args ...interface{}) filter {
	return filter{query: query, args: args}
}

func (r *ReportingService) scoped(ctx context.Context, model interface{}, period *Period, filters ...filter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(model)
	for _, f := range filters {
		q = q.Where(f.query, f.args...)
	}
	if period != nil {
		q = q.Where("created_at >= ? AND created_at < ?", period.Start, period.End)
	}
	return q
}

func (r *ReportingService) count(ctx context.Context, model interface{}, period *Period, filters ...filter) (int64, error) {
	var n int64
	if err := r.scoped(ctx, model, period, filters...).Count(&n).Error; err != nil {
		return 0, persistence("count", err)
	}
	return n, nil
}

func (r *ReportingService) sum(ctx context.Context, model interface{}, period *Period, filters ...filter) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.scoped(ctx, model, period, filters...).
		Select("COALESCE(SUM(amount), 0)").
		Row().Scan(&total); err != nil {
		return decimal.Zero, persistence("sum", err)
	}
	return total, nil
}

// StatusCounts groups rows of model by their status column.
func (r *ReportingService) StatusCounts(ctx context.Context, model interface{}, filters ...filter) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	if err := r.scoped(ctx, model, nil, filters...).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, persistence("count by status", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Metric is a figure with its month-over-month change.
type Metric struct {
	Value float64 `json:"value"`
	Delta float64 `json:"percentage_increase"`
}

// AdminOverview is the admin landing dashboard.
type AdminOverview struct {
	TotalInstitutions   Metric               `json:"total_institutions"`
	ActiveMembers       Metric               `json:"active_members"`
	PendingApplications Metric               `json:"pending_applications"`
	TotalRevenue        Metric               `json:"total_revenue"`
	StatusPercentages   map[string]float64   `json:"status_percentages"`
	RecentApplications  []models.Institution `json:"recent_applications"`
	RecentCharges       []models.Charge      `json:"recent_charges"`
}

func (r *ReportingService) countMetric(ctx context.Context, model interface{}, filters ...filter) (Metric, error) {
	cur, prev := MonthPeriods(r.now())
	total, err := r.count(ctx, model, nil, filters...)
	if err != nil {
		return Metric{}, err
	}
	c, err := r.count(ctx, model, &cur, filters...)
	if err != nil {
		return Metric{}, err
	}
	p, err := r.count(ctx, model, &prev, filters...)
	if err != nil {
		return Metric{}, err
	}
	return Metric{Value: float64(total), Delta: Delta(float64(c), float64(p))}, nil
}

func (r *ReportingService) sumMetric(ctx context.Context, model interface{}, filters ...filter) (Metric, error) {
	cur, prev := MonthPeriods(r.now())
	total, err := r.sum(ctx, model, nil, filters...)
	if err != nil {
		return Metric{}, err
	}
	c, err := r.sum(ctx, model, &cur, filters...)
	if err != nil {
		return Metric{}, err
	}
	p, err := r.sum(ctx, model, &prev, filters...)
	if err != nil {
		return Metric{}, err
	}
	return Metric{Value: total.InexactFloat64(), Delta: Delta(c.InexactFloat64(), p.InexactFloat64())}, nil
}

// AdminOverview builds the admin dashboard.
func (r *ReportingService) AdminOverview(ctx context.Context) (*AdminOverview, error) {
	var out AdminOverview
	var err error

	if out.TotalInstitutions, err = r.countMetric(ctx, &models.Institution{}); err != nil {
		return nil, err
	}
	if out.ActiveMembers, err = r.countMetric(ctx, &models.User{},
		where("role = ? AND is_active = ?", models.RoleMember, true)); err != nil {
		return nil, err
	}
	if out.PendingApplications, err = r.countMetric(ctx, &models.Institution{},
		where("status = ?", models.ApplicationPending)); err != nil {
		return nil, err
	}
	if out.TotalRevenue, err = r.sumMetric(ctx, &models.Transaction{},
		where("status = ?", models.TransactionSuccessful)); err != nil {
		return nil, err
	}

	counts, err := r.StatusCounts(ctx, &models.Institution{})
	if err != nil {
		return nil, err
	}
	total := int64(out.TotalInstitutions.Value)
	out.StatusPercentages = make(map[string]float64, 4)
	for _, status := range []string{models.ApplicationPending, models.ApplicationVerifying, models.ApplicationApproved, models.ApplicationRejected} {
		out.StatusPercentages[status] = Percentage(counts[status], total)
	}

	if err := r.db.WithContext(ctx).Preload("User").
		Order("created_at desc").Limit(5).
		Find(&out.RecentApplications).Error; err != nil {
		return nil, persistence("recent applications", err)
	}
	if err := r.db.WithContext(ctx).Preload("Member").
		Order("created_at desc").Limit(5).
		Find(&out.RecentCharges).Error; err != nil {
		return nil, persistence("recent charges", err)
	}
	return &out, nil
}

// MembershipOverview summarises applications by status.
type MembershipOverview struct {
	Total               int64                `json:"total"`
	ByStatus            map[string]int64     `json:"by_status"`
	PendingApplications []models.Institution `json:"pending_applications"`
}

// Memberships returns application counts and the pending queue.
func (r *ReportingService) Memberships(ctx context.Context) (*MembershipOverview, error) {
	counts, err := r.StatusCounts(ctx, &models.Institution{})
	if err != nil {
		return nil, err
	}
	out := &MembershipOverview{ByStatus: counts}
	for _, n := range counts {
		out.Total += n
	}
	if err := r.db.WithContext(ctx).Preload("User").
		Where("status IN ?", []string{models.ApplicationPending, models.ApplicationVerifying}).
		Order("created_at asc").
		Find(&out.PendingApplications).Error; err != nil {
		return nil, persistence("pending applications", err)
	}
	return out, nil
}

// CategoryCounts returns the number of institutions per category.
func (r *ReportingService) CategoryCounts(ctx context.Context) (map[string]int64, error) {
	type categoryCount struct {
		Category string
		Count    int64
	}
	var rows []categoryCount
	if err := r.db.WithContext(ctx).Model(&models.Institution{}).
		Select("category, count(*) as count").
		Group("category").
		Scan(&rows).Error; err != nil {
		return nil, persistence("count by category", err)
	}

	counts := map[string]int64{
		models.CategoryFederal: 0,
		models.CategoryState:   0,
		models.CategoryUnit:    0,
	}
	for _, row := range rows {
		counts[row.Category] = row.Count
	}
	return counts, nil
}

// MonthlyRevenue is one point of the revenue graph.
type MonthlyRevenue struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

// FinancialOverview is the admin financial dashboard.
type FinancialOverview struct {
	TotalRevenue           Metric           `json:"total_revenue"`
	PaidLevies             Metric           `json:"paid_levies"`
	UnpaidDues             Metric           `json:"unpaid_dues"`
	TotalTransactions      int64            `json:"total_transactions"`
	SuccessfulTransactions int64            `json:"successful_transactions"`
	SuccessRate            float64          `json:"success_rate"`
	Graph                  []MonthlyRevenue `json:"graph_data"`
}

// Financials builds revenue totals, deltas and a five month revenue graph.
func (r *ReportingService) Financials(ctx context.Context) (*FinancialOverview, error) {
	var out FinancialOverview
	var err error

	successful := where("status = ?", models.TransactionSuccessful)
	if out.TotalRevenue, err = r.sumMetric(ctx, &models.Transaction{}, successful); err != nil {
		return nil, err
	}
	if out.PaidLevies, err = r.sumMetric(ctx, &models.Charge{},
		where("type = ? AND status = ?", models.ChargeLevy, models.ChargePaid)); err != nil {
		return nil, err
	}
	if out.UnpaidDues, err = r.sumMetric(ctx, &models.Charge{},
		where("type = ? AND status = ?", models.ChargeDue, models.ChargeUnpaid)); err != nil {
		return nil, err
	}
	if out.TotalTransactions, err = r.count(ctx, &models.Transaction{}, nil); err != nil {
		return nil, err
	}
	if out.SuccessfulTransactions, err = r.count(ctx, &models.Transaction{}, nil, successful); err != nil {
		return nil, err
	}
	out.SuccessRate = Percentage(out.SuccessfulTransactions, out.TotalTransactions)

	now := r.now()
	startThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := 4; i >= 0; i-- {
		period := Period{Start: startThis.AddDate(0, -i, 0), End: startThis.AddDate(0, -i+1, 0)}
		revenue, err := r.sum(ctx, &models.Transaction{}, &period, successful)
		if err != nil {
			return nil, err
		}
		out.Graph = append(out.Graph, MonthlyRevenue{Month: period.Start.Format("Jan 2006"), Revenue: revenue})
	}
	return &out, nil
}

// MemberDashboard is the member landing page.
type MemberDashboard struct {
	User                *models.User        `json:"user"`
	PendingCharges      int64               `json:"pending_charges"`
	NextPayments        []models.Charge     `json:"next_payments"`
	CertificatesCount   int64               `json:"certificates_count"`
	LatestCertificate   *models.Certificate `json:"latest_certificate"`
	UnreadNotifications int64               `json:"unread_notifications"`
}

// MemberDashboard builds the dashboard for one member.
func (r *ReportingService) MemberDashboard(ctx context.Context, userID uuid.UUID) (*MemberDashboard, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Institution").First(&user, "id = ?", userID).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("user not found")
		}
		return nil, persistence("load user", err)
	}

	out := &MemberDashboard{User: &user}
	outstanding := where("member_id = ? AND status IN ?", userID, []string{models.ChargeUnpaid, models.ChargePending})

	var err error
	if out.PendingCharges, err = r.count(ctx, &models.Charge{}, nil, outstanding); err != nil {
		return nil, err
	}
	if err := r.scoped(ctx, &models.Charge{}, nil, outstanding).
		Order("due_date asc").Limit(5).
		Find(&out.NextPayments).Error; err != nil {
		return nil, persistence("next payments", err)
	}
	if out.CertificatesCount, err = r.count(ctx, &models.Certificate{}, nil, where("member_id = ?", userID)); err != nil {
		return nil, err
	}
	if out.CertificatesCount > 0 {
		var latest models.Certificate
		if err := r.db.WithContext(ctx).Where("member_id = ?", userID).
			Order("created_at desc").First(&latest).Error; err != nil {
			return nil, persistence("latest certificate", err)
		}
		out.LatestCertificate = &latest
	}
	if out.UnreadNotifications, err = r.count(ctx, &models.Notification{}, nil,
		where("user_id = ? AND read_at IS NULL", userID)); err != nil {
		return nil, err
	}
	return out, nil
}

// MemberFinancials lists a member's outstanding and settled charges.
type MemberFinancials struct {
	PendingCharges []models.Charge      `json:"pending_charges"`
	PaidCharges    []models.Charge      `json:"paid_charges"`
	TotalPending   decimal.Decimal      `json:"total_pending"`
	TotalPaid      decimal.Decimal      `json:"total_paid"`
	Transactions   []models.Transaction `json:"transactions"`
}

// MemberFinancials builds the member financial summary.
func (r *ReportingService) MemberFinancials(ctx context.Context, userID uuid.UUID) (*MemberFinancials, error) {
	out := &MemberFinancials{}
	outstanding := where("member_id = ? AND status IN ?", userID, []string{models.ChargeUnpaid, models.ChargePending})
	paid := where("member_id = ? AND status = ?", userID, models.ChargePaid)

	if err := r.scoped(ctx, &models.Charge{}, nil, outstanding).Order("created_at desc").Find(&out.PendingCharges).Error; err != nil {
		return nil, persistence("pending charges", err)
	}
	if err := r.scoped(ctx, &models.Charge{}, nil, paid).Order("paid_at desc").Find(&out.PaidCharges).Error; err != nil {
		return nil, persistence("paid charges", err)
	}

	var err error
	if out.TotalPending, err = r.sum(ctx, &models.Charge{}, nil, outstanding); err != nil {
		return nil, err
	}
	if out.TotalPaid, err = r.sum(ctx, &models.Charge{}, nil, paid); err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Preload("Charge").
		Where("member_id = ?", userID).
		Order("created_at desc").Limit(20).
		Find(&out.Transactions).Error; err != nil {
		return nil, persistence("member transactions", err)
	}
	return out, nil
}

// SupportOverview summarises support tickets.
type SupportOverview struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
	Growth   float64          `json:"growth"`
}

// SupportStats counts tickets and compares the last 7 days with the 7 before.
func (r *ReportingService) SupportStats(ctx context.Context) (*SupportOverview, error) {
	counts, err := r.StatusCounts(ctx, &models.SupportTicket{})
	if err != nil {
		return nil, err
	}
	out := &SupportOverview{ByStatus: counts}
	for _, n := range counts {
		out.Total += n
	}

	now := r.now()
	current := Period{Start: now.AddDate(0, 0, -7), End: now}
	previous := Period{Start: now.AddDate(0, 0, -14), End: now.AddDate(0, 0, -7)}
	c, err := r.count(ctx, &models.SupportTicket{}, &current)
	if err != nil {
		return nil, err
	}
	p, err := r.count(ctx, &models.SupportTicket{}, &previous)
	if err != nil {
		return nil, err
	}
	out.Growth = Delta(float64(c), float64(p))
	return out, nil
}

// Homepage is the public landing page payload.
type Homepage struct {
	Logo          string               `json:"logo"`
	MembersCount  int64                `json:"members_count"`
	StateCoverage int64                `json:"state_coverage"`
	News          []models.News        `json:"news"`
	Testimonials  []models.Testimonial `json:"testimonials"`
	Members       []models.Institution `json:"members"`
}

// Homepage builds the public landing page.
func (r *ReportingService) Homepage(ctx context.Context) (*Homepage, error) {
	out := &Homepage{}
	approved := where("status = ?", models.ApplicationApproved)

	var logo models.WebsiteContent
	err := r.db.WithContext(ctx).Where("section = ? AND key = ?", "general", "logo").First(&logo).Error
	switch {
	case err == nil:
		out.Logo = logo.Media
		if out.Logo == "" {
			out.Logo = logo.Value
		}
	case !isNotFound(err):
		return nil, persistence("load logo", err)
	}

	if out.MembersCount, err = r.count(ctx, &models.Institution{}, nil, approved); err != nil {
		return nil, err
	}
	if err := r.scoped(ctx, &models.Institution{}, nil, approved, where("operating_state <> ?", "")).
		Distinct("operating_state").
		Count(&out.StateCoverage).Error; err != nil {
		return nil, persistence("state coverage", err)
	}
	if err := r.db.WithContext(ctx).Where("status = ?", models.NewsPublished).
		Order("published_at desc").Limit(5).
		Find(&out.News).Error; err != nil {
		return nil, persistence("latest news", err)
	}
	if err := r.db.WithContext(ctx).Where("is_approved = ?", true).
		Order("created_at desc").Limit(5).
		Find(&out.Testimonials).Error; err != nil {
		return nil, persistence("testimonials", err)
	}
	if err := r.scoped(ctx, &models.Institution{}, nil, approved).
		Select("id", "name", "logo", "category", "operating_state", "created_at").
		Order("name asc").Limit(24).
		Find(&out.Members).Error; err != nil {
		return nil, persistence("members", err)
	}
	return out, nil
}
