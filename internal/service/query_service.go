package service

import (
	"context"
	"fmt"
	"time"

	"payoutledger/internal/apperr"
	"payoutledger/internal/auth"
	"payoutledger/internal/config"
	"payoutledger/internal/model"
	"payoutledger/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxLedgerHistoryLimit = 500

// QueryService 只读查询，没有副作用
type QueryService struct {
	store repository.Store
	cfg   *config.Config
	log   zerolog.Logger
	now   func() time.Time
}

func NewQueryService(store repository.Store, cfg *config.Config, log zerolog.Logger) *QueryService {
	return &QueryService{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("component", "query").Logger(),
		now:   time.Now,
	}
}

type Balance struct {
	EmployeeID    string          `json:"employee_id"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	TotalEarned   decimal.Decimal `json:"total_earned"`
	LoginStreak   int             `json:"streak"`
	ReferralCode  string          `json:"referral_code"`
}

func (s *QueryService) GetBalance(ctx context.Context, actor auth.AuthContext, employeeID string) (*Balance, error) {
	if err := actor.RequireSelf(employeeID); err != nil {
		return nil, err
	}
	emp, err := s.store.Employees().GetByID(ctx, employeeID)
	if err != nil {
		return nil, notFoundAs(err, apperr.ErrEmployeeNotFound)
	}
	return &Balance{
		EmployeeID:    emp.ID,
		WalletBalance: emp.WalletBalance,
		TotalEarned:   emp.TotalEarned,
		LoginStreak:   emp.LoginStreak,
		ReferralCode:  ReferralCode(emp.ID),
	}, nil
}

// GetLedgerHistory 最新的在前，limit<=0 时取默认值，最大 500
func (s *QueryService) GetLedgerHistory(ctx context.Context, actor auth.AuthContext, employeeID string, limit int) ([]*model.WalletTransaction, error) {
	if err := actor.RequireSelf(employeeID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.cfg.Business.LedgerHistoryLimit
	}
	if limit > maxLedgerHistoryLimit {
		limit = maxLedgerHistoryLimit
	}
	list, err := s.store.Transactions().ListByEmployee(ctx, employeeID, limit)
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

type LeaderboardEntry struct {
	Rank        int             `json:"rank"`
	Username    string          `json:"username"`
	TotalEarned decimal.Decimal `json:"total_earned"`
}

func (s *QueryService) Leaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	list, err := s.store.Employees().ListTopEarners(ctx, limit)
	if err != nil {
		return nil, translate(err)
	}
	out := make([]*LeaderboardEntry, 0, len(list))
	for i, e := range list {
		out = append(out, &LeaderboardEntry{Rank: i + 1, Username: e.Username, TotalEarned: e.TotalEarned})
	}
	return out, nil
}

type AdminStats struct {
	ActiveEmployees       int64           `json:"active_employees"`
	ProjectsPendingReview int             `json:"projects_pending_review"`
	PendingWithdrawals    int             `json:"pending_withdrawals"`
	TotalPayoutLiability  decimal.Decimal `json:"total_payout_liability"`
	GeneratedAt           time.Time       `json:"generated_at"`
}

// AdminStats 待付负债为所有待审核提现的总额
func (s *QueryService) AdminStats(ctx context.Context, actor auth.AuthContext) (*AdminStats, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	active, err := s.store.Employees().CountByRoleAndStatus(ctx, model.RoleEmployee, model.EmployeeStatusActive)
	if err != nil {
		return nil, translate(err)
	}
	review, err := s.store.Projects().ListPendingReview(ctx)
	if err != nil {
		return nil, translate(err)
	}
	pending, err := s.store.Withdrawals().ListByStatus(ctx, model.WithdrawalStatusPending)
	if err != nil {
		return nil, translate(err)
	}
	liability, err := s.store.Withdrawals().SumByStatus(ctx, model.WithdrawalStatusPending)
	if err != nil {
		return nil, translate(err)
	}
	return &AdminStats{
		ActiveEmployees:       active,
		ProjectsPendingReview: len(review),
		PendingWithdrawals:    len(pending),
		TotalPayoutLiability:  liability,
		GeneratedAt:           s.now(),
	}, nil
}

func (s *QueryService) ListAuditLog(ctx context.Context, actor auth.AuthContext, limit int) ([]*model.AuditLog, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxLedgerHistoryLimit {
		limit = s.cfg.Business.LedgerHistoryLimit
	}
	list, err := s.store.Audit().List(ctx, limit)
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

type LedgerVerification struct {
	EmployeeID    string          `json:"employee_id"`
	CachedBalance decimal.Decimal `json:"cached_balance"`
	LedgerSum     decimal.Decimal `json:"ledger_sum"`
	Drift         decimal.Decimal `json:"drift"`
	Consistent    bool            `json:"consistent"`
}

// VerifyLedger 对账：锁定员工行后读取余额和流水合计，两次读取之间不会有新的流水提交
func (s *QueryService) VerifyLedger(ctx context.Context, actor auth.AuthContext, employeeID string) (*LedgerVerification, error) {
	if err := actor.RequireSelf(employeeID); err != nil {
		return nil, err
	}

	var balance, sum decimal.Decimal
	err := runTx(ctx, s.store, func(uow repository.UnitOfWork) error {
		emp, err := uow.Employees().GetByIDForUpdate(ctx, employeeID)
		if err != nil {
			return notFoundAs(err, apperr.ErrEmployeeNotFound)
		}
		balance = emp.WalletBalance
		if sum, err = uow.Transactions().SumByEmployee(ctx, employeeID); err != nil {
			return fmt.Errorf("汇总流水失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	drift := balance.Sub(sum)
	if !drift.IsZero() {
		s.log.Error().Str("employee_id", employeeID).Str("balance", balance.String()).Str("ledger_sum", sum.String()).Msg("余额与流水不一致")
	}
	return &LedgerVerification{
		EmployeeID:    employeeID,
		CachedBalance: balance,
		LedgerSum:     sum,
		Drift:         drift,
		Consistent:    drift.IsZero(),
	}, nil
}

var auditVerifyBatch = 500

type AuditChainVerification struct {
	Entries  int    `json:"entries"`
	Valid    bool   `json:"valid"`
	BrokenAt int64  `json:"broken_at,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	HeadHash string `json:"head_hash"`
}

// VerifyAuditChain 按 id 升序分批重算整条审计链，返回第一处断裂
func (s *QueryService) VerifyAuditChain(ctx context.Context, actor auth.AuthContext) (*AuditChainVerification, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}

	result := &AuditChainVerification{Valid: true}
	var afterID int64
	for {
		batch, err := s.store.Audit().ListAfter(ctx, afterID, auditVerifyBatch)
		if err != nil {
			return nil, translate(err)
		}
		if len(batch) == 0 {
			return result, nil
		}

		head, broken := repository.VerifyAuditChain(result.HeadHash, batch)
		if broken != nil {
			for _, entry := range batch {
				if entry.ID == broken.ID {
					break
				}
				result.Entries++
			}
			result.Valid = false
			result.BrokenAt = broken.ID
			result.Expected = broken.Expected
			result.Actual = broken.Actual
			s.log.Error().Int64("audit_id", broken.ID).Msg("审计链校验失败")
			return result, nil
		}
		result.Entries += len(batch)
		result.HeadHash = head
		afterID = batch[len(batch)-1].ID
	}
}

type PersonalAnalytics struct {
	EmployeeID     string          `json:"employee_id"`
	Earnings30d    decimal.Decimal `json:"total_earnings_30d"`
	DailyEarnings  []DailyEarning  `json:"daily_earnings"`
	ReviewedCount  int             `json:"reviewed_projects"`
	ApprovedCount  int             `json:"approved_projects"`
	ApprovalRate   decimal.Decimal `json:"approval_rate"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

type DailyEarning struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// earningTypes 计入收入统计的入账类型，提现退款不是收入
var earningTypes = []string{model.TransactionTypeProjectPayout, model.TransactionTypeLoginBonus}

// PersonalAnalytics 近 30 天收入、近 7 天每日收入和项目通过率，全部来自流水和项目记录
//
// 通过率 = 已通过 / 已审核（通过或驳回），百分比保留一位小数；没有审核过的项目时为 0。
// 被驳回后重新提交的项目按当前状态计算。
func (s *QueryService) PersonalAnalytics(ctx context.Context, actor auth.AuthContext, employeeID string) (*PersonalAnalytics, error) {
	if err := actor.RequireSelf(employeeID); err != nil {
		return nil, err
	}
	if _, err := s.store.Employees().GetByID(ctx, employeeID); err != nil {
		return nil, notFoundAs(err, apperr.ErrEmployeeNotFound)
	}

	now := s.now()
	credits, err := s.store.Transactions().ListCreditsSince(ctx, employeeID, earningTypes, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, translate(err)
	}

	out := &PersonalAnalytics{
		EmployeeID:   employeeID,
		Earnings30d:  decimal.Zero,
		ApprovalRate: decimal.Zero,
		GeneratedAt:  now,
	}

	const days = 7
	daily := make(map[string]decimal.Decimal, days)
	for i := days - 1; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).Format(dateLayout)
		daily[date] = decimal.Zero
		out.DailyEarnings = append(out.DailyEarnings, DailyEarning{Date: date})
	}
	for _, t := range credits {
		out.Earnings30d = out.Earnings30d.Add(t.Amount)
		date := t.CreatedAt.In(now.Location()).Format(dateLayout)
		if amount, ok := daily[date]; ok {
			daily[date] = amount.Add(t.Amount)
		}
	}
	for i := range out.DailyEarnings {
		out.DailyEarnings[i].Amount = daily[out.DailyEarnings[i].Date]
	}

	projects, err := s.store.Projects().ListByAssignee(ctx, employeeID)
	if err != nil {
		return nil, translate(err)
	}
	for _, p := range projects {
		switch p.Status {
		case model.ProjectStatusCompleted:
			out.ApprovedCount++
			out.ReviewedCount++
		case model.ProjectStatusRejected:
			out.ReviewedCount++
		}
	}
	if out.ReviewedCount > 0 {
		out.ApprovalRate = decimal.NewFromInt(int64(out.ApprovedCount)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(out.ReviewedCount))).
			Round(1)
	}
	return out, nil
}

const dateLayout = "2006-01-02"
