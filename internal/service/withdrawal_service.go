package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payoutledger/internal/apperr"
	"payoutledger/internal/auth"
	"payoutledger/internal/config"
	"payoutledger/internal/model"
	"payoutledger/internal/repository"
	"payoutledger/pkg/idgen"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// EmployeeLocker 跨实例的员工级互斥，未配置 Redis 时为 nil，只依赖数据库行锁
type EmployeeLocker interface {
	LockEmployee(ctx context.Context, employeeID string) (unlock func(), err error)
}

type WithdrawalService struct {
	store  repository.Store
	cfg    *config.Config
	ledger *WalletLedger
	locker EmployeeLocker
	log    zerolog.Logger
	now    func() time.Time
}

func NewWithdrawalService(store repository.Store, cfg *config.Config, ledger *WalletLedger, locker EmployeeLocker, log zerolog.Logger) *WithdrawalService {
	return &WithdrawalService{
		store:  store,
		cfg:    cfg,
		ledger: ledger,
		locker: locker,
		log:    log.With().Str("component", "withdrawal").Logger(),
		now:    time.Now,
	}
}

type WithdrawalRequestInput struct {
	Amount    decimal.Decimal `json:"amount"`
	IsInstant bool            `json:"is_instant"`
	Method    string          `json:"method"`
}

type WithdrawalResult struct {
	Withdrawal *model.WithdrawalRequest `json:"withdrawal"`
	NewBalance decimal.Decimal          `json:"new_balance"`
}

func (s *WithdrawalService) withdrawalEvent(ctx context.Context, uow repository.UnitOfWork, w *model.WithdrawalRequest, eventType string) error {
	return writeEvent(ctx, uow, s.cfg.Kafka.Topic.Withdrawal, model.NewWithdrawalEvent(eventType, w, s.now()))
}

// ComputeTDS 返回预扣税和实发金额，按分四舍五入
func ComputeTDS(amount, rate decimal.Decimal) (tds, net decimal.Decimal) {
	tds = amount.Mul(rate).Round(2)
	return tds, amount.Sub(tds)
}

// RequestWithdrawal 申请提现，申请时即扣除全额
//
// 余额检查和扣款在员工行锁内完成，并发申请不会超额。
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, actor auth.AuthContext, employeeID string, in *WithdrawalRequestInput) (*WithdrawalResult, error) {
	if err := actor.RequireSelf(employeeID); err != nil {
		return nil, err
	}
	biz := s.cfg.Business
	if in.Amount.LessThan(biz.WithdrawalMin) {
		return nil, apperr.ErrBelowMinimum.WithMessage("最低提现金额 %s", biz.WithdrawalMin.StringFixed(2))
	}
	if in.Amount.GreaterThan(biz.WithdrawalMax) {
		return nil, apperr.ErrAboveMaximum.WithMessage("最高提现金额 %s", biz.WithdrawalMax.StringFixed(2))
	}

	if s.locker != nil {
		unlock, err := s.locker.LockEmployee(ctx, employeeID)
		if err != nil {
			return nil, apperr.ErrConcurrencyTimeout.Wrap(err)
		}
		defer unlock()
	}

	tds, net := ComputeTDS(in.Amount, biz.TDSRate)
	result := &WithdrawalResult{}
	err := runTx(ctx, s.store, func(uow repository.UnitOfWork) error {
		emp, err := uow.Employees().GetByIDForUpdate(ctx, employeeID)
		if err != nil {
			return notFoundAs(err, apperr.ErrEmployeeNotFound)
		}
		if emp.IsBanned() {
			return apperr.ErrEmployeeBanned
		}
		if !emp.HasBankDetails() {
			return apperr.ErrNoBankDetails
		}

		pending, err := uow.Withdrawals().CountByEmployeeAndStatus(ctx, emp.ID, model.WithdrawalStatusPending)
		if err != nil {
			return fmt.Errorf("统计待审核提现失败: %w", err)
		}
		if pending >= int64(biz.MaxPendingWithdrawals) {
			return apperr.ErrTooManyPending.WithMessage("最多同时存在 %d 笔待审核提现", biz.MaxPendingWithdrawals)
		}

		now := s.now()
		w := &model.WithdrawalRequest{
			ID:          idgen.GenerateWithdrawalNo(),
			EmployeeID:  emp.ID,
			Amount:      in.Amount,
			TDSAmount:   tds,
			NetAmount:   net,
			BankAccount: emp.BankAccountNumber,
			Method:      in.Method,
			Status:      model.WithdrawalStatusPending,
			IsInstant:   in.IsInstant,
			RequestedAt: now,
		}
		if in.IsInstant {
			w.Status = model.WithdrawalStatusApproved
			w.ApprovedAt = &now
		}

		txn, err := s.ledger.Debit(ctx, uow, Entry{
			EmployeeID:   emp.ID,
			Amount:       in.Amount,
			Type:         model.TransactionTypeWithdrawalRequest,
			Description:  fmt.Sprintf("提现申请 %s", w.ID),
			WithdrawalID: &w.ID,
		})
		if err != nil {
			return err
		}
		if err := uow.Withdrawals().Create(ctx, w); err != nil {
			return fmt.Errorf("创建提现申请失败: %w", err)
		}

		result.Withdrawal = w
		result.NewBalance = txn.BalanceAfter
		return s.withdrawalEvent(ctx, uow, w, model.EventWithdrawalRequested)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("withdrawal_id", result.Withdrawal.ID).
		Str("employee_id", employeeID).
		Str("amount", in.Amount.StringFixed(2)).
		Str("tds", tds.StringFixed(2)).
		Str("status", result.Withdrawal.Status).
		Msg("提现申请成功")
	return result, nil
}

// transition 在行锁内完成 PENDING 到终态的流转
func (s *WithdrawalService) transition(ctx context.Context, uow repository.UnitOfWork, id, target string, mutate func(w *model.WithdrawalRequest)) (*model.WithdrawalRequest, error) {
	w, err := uow.Withdrawals().GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, apperr.ErrWithdrawalNotFound)
	}
	if !model.CanWithdrawalTransitionTo(w.Status, target) {
		return nil, apperr.ErrNotPending.WithMessage("提现申请 %s 当前状态为 %s", w.ID, w.Status)
	}

	from := w.Status
	w.Status = target
	mutate(w)
	if err := uow.Withdrawals().UpdateStatus(ctx, w, from); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, apperr.ErrNotPending.Wrap(err)
		}
		return nil, fmt.Errorf("更新提现状态失败: %w", err)
	}
	return w, nil
}

// ApproveWithdrawal 只改变状态，扣款在申请时已完成
func (s *WithdrawalService) ApproveWithdrawal(ctx context.Context, actor auth.AuthContext, id string) (*model.WithdrawalRequest, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}

	var w *model.WithdrawalRequest
	err := runTx(ctx, s.store, func(uow repository.UnitOfWork) error {
		var err error
		w, err = s.transition(ctx, uow, id, model.WithdrawalStatusApproved, func(w *model.WithdrawalRequest) {
			now := s.now()
			w.ApprovedAt = &now
			if actor.EmployeeID != "" {
				approver := actor.EmployeeID
				w.ApprovedBy = &approver
			}
		})
		if err != nil {
			return err
		}
		if err := writeAudit(ctx, uow, actor.EmployeeID, model.AuditActionWithdrawalApproved,
			fmt.Sprintf("withdrawal=%s employee=%s amount=%s", w.ID, w.EmployeeID, w.Amount.StringFixed(2))); err != nil {
			return err
		}
		return s.withdrawalEvent(ctx, uow, w, model.EventWithdrawalApproved)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("withdrawal_id", w.ID).Str("employee_id", w.EmployeeID).Msg("提现已批准")
	return w, nil
}

// DeclineWithdrawal 驳回并追加一笔等额退款流水，原流水保持不变
func (s *WithdrawalService) DeclineWithdrawal(ctx context.Context, actor auth.AuthContext, id, reason string) (*model.WithdrawalRequest, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}

	var w *model.WithdrawalRequest
	err := runTx(ctx, s.store, func(uow repository.UnitOfWork) error {
		var err error
		w, err = s.transition(ctx, uow, id, model.WithdrawalStatusRejected, func(w *model.WithdrawalRequest) {
			now := s.now()
			w.RejectedAt = &now
			w.RejectionReason = reason
		})
		if err != nil {
			return err
		}

		_, err = s.ledger.Credit(ctx, uow, Entry{
			EmployeeID:   w.EmployeeID,
			Amount:       w.Amount,
			Type:         model.TransactionTypeWithdrawalRefund,
			Description:  fmt.Sprintf("提现驳回退款 %s", w.ID),
			WithdrawalID: &w.ID,
		})
		if err != nil {
			return err
		}
		if err := writeAudit(ctx, uow, actor.EmployeeID, model.AuditActionWithdrawalDeclined,
			fmt.Sprintf("withdrawal=%s employee=%s amount=%s reason=%s", w.ID, w.EmployeeID, w.Amount.StringFixed(2), reason)); err != nil {
			return err
		}
		return s.withdrawalEvent(ctx, uow, w, model.EventWithdrawalDeclined)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("withdrawal_id", w.ID).Str("employee_id", w.EmployeeID).Str("refund", w.Amount.StringFixed(2)).Msg("提现已驳回并退款")
	return w, nil
}

type PendingWithdrawal struct {
	*model.WithdrawalRequest
	EmployeeName string `json:"employee_name"`
}

// ListPendingWithdrawals 最新的在前
func (s *WithdrawalService) ListPendingWithdrawals(ctx context.Context, actor auth.AuthContext) ([]*PendingWithdrawal, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	list, err := s.store.Withdrawals().ListByStatus(ctx, model.WithdrawalStatusPending)
	if err != nil {
		return nil, translate(err)
	}

	names := make(map[string]string)
	out := make([]*PendingWithdrawal, 0, len(list))
	for _, w := range list {
		name, ok := names[w.EmployeeID]
		if !ok {
			name = "Unknown"
			if emp, err := s.store.Employees().GetByID(ctx, w.EmployeeID); err == nil {
				name = emp.Username
			}
			names[w.EmployeeID] = name
		}
		out = append(out, &PendingWithdrawal{WithdrawalRequest: w, EmployeeName: name})
	}
	return out, nil
}

func (s *WithdrawalService) ListEmployeeWithdrawals(ctx context.Context, actor auth.AuthContext, employeeID string) ([]*model.WithdrawalRequest, error) {
	if err := actor.RequireSelf(employeeID); err != nil {
		return nil, err
	}
	list, err := s.store.Withdrawals().ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

type TaxReport struct {
	TotalWithdrawn   decimal.Decimal `json:"total_earnings_withdrawn"`
	TotalTDSDeducted decimal.Decimal `json:"total_tds_deducted"`
	TransactionCount int64           `json:"transaction_count"`
}

// TaxReport 只统计已批准的提现
func (s *WithdrawalService) TaxReport(ctx context.Context, actor auth.AuthContext, employeeID string) (*TaxReport, error) {
	if err := actor.RequireSelf(employeeID); err != nil {
		return nil, err
	}
	summary, err := s.store.Withdrawals().TaxSummary(ctx, employeeID)
	if err != nil {
		return nil, translate(err)
	}
	return &TaxReport{
		TotalWithdrawn:   summary.TotalWithdrawn,
		TotalTDSDeducted: summary.TotalTDS,
		TransactionCount: summary.Count,
	}, nil
}
