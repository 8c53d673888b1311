package repository

import (
	"context"
	"time"

	"payoutledger/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func (r *TransactionRepo) Create(ctx context.Context, t *model.WalletTransaction) error {
	return wrap("transaction.Create", r.db.WithContext(ctx).Create(t).Error)
}

func (r *TransactionRepo) ListByEmployee(ctx context.Context, employeeID string, limit int) ([]*model.WalletTransaction, error) {
	var transactions []*model.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, wrap("transaction.ListByEmployee", err)
}

func (r *TransactionRepo) ListByWithdrawal(ctx context.Context, withdrawalID string) ([]*model.WalletTransaction, error) {
	var transactions []*model.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("related_withdrawal_id = ?", withdrawalID).
		Order("id ASC").
		Find(&transactions).Error
	return transactions, wrap("transaction.ListByWithdrawal", err)
}

func (r *TransactionRepo) SumByEmployee(ctx context.Context, employeeID string) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&model.WalletTransaction{}).
		Where("employee_id = ?", employeeID).
		Select("COALESCE(SUM(amount), 0) AS total").
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, wrap("transaction.SumByEmployee", err)
	}
	return result.Total, nil
}

func (r *TransactionRepo) ListCreditsSince(ctx context.Context, employeeID string, types []string, since time.Time) ([]*model.WalletTransaction, error) {
	var transactions []*model.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND amount > 0 AND type IN ? AND created_at >= ?", employeeID, types, since).
		Order("created_at ASC").
		Find(&transactions).Error
	return transactions, wrap("transaction.ListCreditsSince", err)
}
