package repository

import (
	"context"

	"payoutledger/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WithdrawalRepo struct {
	db *gorm.DB
}

func NewWithdrawalRepo(db *gorm.DB) *WithdrawalRepo {
	return &WithdrawalRepo{db: db}
}

func (r *WithdrawalRepo) Create(ctx context.Context, w *model.WithdrawalRequest) error {
	return wrap("withdrawal.Create", r.db.WithContext(ctx).Create(w).Error)
}

func (r *WithdrawalRepo) GetByID(ctx context.Context, id string) (*model.WithdrawalRequest, error) {
	var w model.WithdrawalRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&w).Error; err != nil {
		return nil, wrap("withdrawal.GetByID", err)
	}
	return &w, nil
}

func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.WithdrawalRequest, error) {
	var w model.WithdrawalRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&w).Error
	if err != nil {
		return nil, wrap("withdrawal.GetByIDForUpdate", err)
	}
	return &w, nil
}

func (r *WithdrawalRepo) UpdateStatus(ctx context.Context, w *model.WithdrawalRequest, fromStatus string) error {
	if !model.CanWithdrawalTransitionTo(fromStatus, w.Status) {
		return wrap("withdrawal.UpdateStatus", ErrStaleState)
	}

	result := r.db.WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("id = ? AND status = ?", w.ID, fromStatus).
		Updates(map[string]interface{}{
			"status":           w.Status,
			"rejection_reason": w.RejectionReason,
			"approved_by":      w.ApprovedBy,
			"approved_at":      w.ApprovedAt,
			"rejected_at":      w.RejectedAt,
		})
	if result.Error != nil {
		return wrap("withdrawal.UpdateStatus", result.Error)
	}
	if result.RowsAffected == 0 {
		return wrap("withdrawal.UpdateStatus", ErrStaleState)
	}
	return nil
}

func (r *WithdrawalRepo) CountByEmployeeAndStatus(ctx context.Context, employeeID, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("employee_id = ? AND status = ?", employeeID, status).
		Count(&count).Error
	return count, wrap("withdrawal.CountByEmployeeAndStatus", err)
}

func (r *WithdrawalRepo) ListByStatus(ctx context.Context, status string) ([]*model.WithdrawalRequest, error) {
	var list []*model.WithdrawalRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("requested_at DESC").
		Find(&list).Error
	return list, wrap("withdrawal.ListByStatus", err)
}

func (r *WithdrawalRepo) ListByEmployee(ctx context.Context, employeeID string) ([]*model.WithdrawalRequest, error) {
	var list []*model.WithdrawalRequest
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("requested_at DESC").
		Find(&list).Error
	return list, wrap("withdrawal.ListByEmployee", err)
}

func (r *WithdrawalRepo) SumByStatus(ctx context.Context, status string) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("status = ?", status).
		Select("COALESCE(SUM(amount), 0) AS total").
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, wrap("withdrawal.SumByStatus", err)
	}
	return result.Total, nil
}

func (r *WithdrawalRepo) TaxSummary(ctx context.Context, employeeID string) (*TaxSummary, error) {
	summary := &TaxSummary{}
	err := r.db.WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("employee_id = ? AND status = ?", employeeID, model.WithdrawalStatusApproved).
		Select("COALESCE(SUM(amount), 0) AS total_withdrawn, COALESCE(SUM(tds_amount), 0) AS total_tds, COUNT(*) AS count").
		Scan(summary).Error
	if err != nil {
		return nil, wrap("withdrawal.TaxSummary", err)
	}
	return summary, nil
}
