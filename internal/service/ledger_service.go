package service

import (
	"context"
	"fmt"
	"time"

	"payoutledger/internal/apperr"
	"payoutledger/internal/config"
	"payoutledger/internal/model"
	"payoutledger/internal/repository"
	"payoutledger/pkg/idgen"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Entry 一笔记账请求，Amount 恒为正数，方向由 Credit/Debit 决定
type Entry struct {
	EmployeeID   string
	Amount       decimal.Decimal
	Type         string
	Description  string
	ProjectID    *string
	WithdrawalID *string
}

// WalletLedger 余额的唯一写入口
//
// 每次调用都在调用方的事务里锁定员工行，更新余额并追加一条流水，二者同时提交或同时回滚。
type WalletLedger struct {
	cfg *config.Config
	log zerolog.Logger
	now func() time.Time
}

func NewWalletLedger(cfg *config.Config, log zerolog.Logger) *WalletLedger {
	return &WalletLedger{
		cfg: cfg,
		log: log.With().Str("component", "wallet_ledger").Logger(),
		now: time.Now,
	}
}

func (l *WalletLedger) Credit(ctx context.Context, uow repository.UnitOfWork, e Entry) (*model.WalletTransaction, error) {
	return l.apply(ctx, uow, e, false)
}

// Debit 余额不足返回 ErrInsufficientFunds，不会产生负余额
func (l *WalletLedger) Debit(ctx context.Context, uow repository.UnitOfWork, e Entry) (*model.WalletTransaction, error) {
	return l.apply(ctx, uow, e, true)
}

func (l *WalletLedger) apply(ctx context.Context, uow repository.UnitOfWork, e Entry, debit bool) (*model.WalletTransaction, error) {
	if !e.Amount.IsPositive() {
		return nil, apperr.ErrInvalidArgument.WithMessage("记账金额必须大于0: %s", e.Amount)
	}

	emp, err := uow.Employees().GetByIDForUpdate(ctx, e.EmployeeID)
	if err != nil {
		return nil, notFoundAs(err, apperr.ErrEmployeeNotFound)
	}

	signed := e.Amount
	totalEarned := emp.TotalEarned
	if debit {
		if emp.WalletBalance.LessThan(e.Amount) {
			return nil, apperr.ErrInsufficientFunds.WithMessage("余额不足: 余额 %s, 需要 %s", emp.WalletBalance.StringFixed(2), e.Amount.StringFixed(2))
		}
		signed = e.Amount.Neg()
	} else if e.Type == model.TransactionTypeProjectPayout {
		totalEarned = totalEarned.Add(e.Amount)
	}

	before := emp.WalletBalance
	after := before.Add(signed)
	if err := uow.Employees().UpdateWallet(ctx, emp.ID, after, totalEarned); err != nil {
		return nil, translate(fmt.Errorf("更新余额失败: %w", err))
	}

	txn := &model.WalletTransaction{
		TransactionNo:       idgen.GenerateTransactionNo(),
		EmployeeID:          emp.ID,
		Amount:              signed,
		Type:                e.Type,
		Description:         e.Description,
		BalanceBefore:       before,
		BalanceAfter:        after,
		RelatedProjectID:    e.ProjectID,
		RelatedWithdrawalID: e.WithdrawalID,
		CreatedAt:           l.now(),
	}
	if err := uow.Transactions().Create(ctx, txn); err != nil {
		return nil, translate(fmt.Errorf("记录流水失败: %w", err))
	}

	if err := writeEvent(ctx, uow, l.cfg.Kafka.Topic.Ledger, model.NewLedgerEvent(txn)); err != nil {
		return nil, translate(err)
	}

	l.log.Debug().
		Str("employee_id", emp.ID).
		Str("type", e.Type).
		Str("amount", signed.StringFixed(2)).
		Str("balance_after", after.StringFixed(2)).
		Msg("写入流水")
	return txn, nil
}
