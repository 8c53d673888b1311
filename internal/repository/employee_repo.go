package repository

import (
	"context"
	"time"

	"payoutledger/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EmployeeRepo struct {
	db *gorm.DB
}

func NewEmployeeRepo(db *gorm.DB) *EmployeeRepo {
	return &EmployeeRepo{db: db}
}

func (r *EmployeeRepo) Create(ctx context.Context, e *model.Employee) error {
	return wrap("employee.Create", r.db.WithContext(ctx).Create(e).Error)
}

func (r *EmployeeRepo) GetByID(ctx context.Context, id string) (*model.Employee, error) {
	var e model.Employee
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, wrap("employee.GetByID", err)
	}
	return &e, nil
}

func (r *EmployeeRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Employee, error) {
	var e model.Employee
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&e).Error
	if err != nil {
		return nil, wrap("employee.GetByIDForUpdate", err)
	}
	return &e, nil
}

func (r *EmployeeRepo) GetByUsername(ctx context.Context, username string) (*model.Employee, error) {
	var e model.Employee
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&e).Error; err != nil {
		return nil, wrap("employee.GetByUsername", err)
	}
	return &e, nil
}

func (r *EmployeeRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Employee{}).Where("username = ?", username).Count(&count).Error
	if err != nil {
		return false, wrap("employee.UsernameExists", err)
	}
	return count > 0, nil
}

func (r *EmployeeRepo) FindByIDPrefix(ctx context.Context, prefix string) (*model.Employee, error) {
	var e model.Employee
	err := r.db.WithContext(ctx).
		Where("id LIKE ?", prefix+"%").
		Order("created_at ASC").
		First(&e).Error
	if err != nil {
		return nil, wrap("employee.FindByIDPrefix", err)
	}
	return &e, nil
}

func (r *EmployeeRepo) UpdateWallet(ctx context.Context, id string, balance, totalEarned decimal.Decimal) error {
	return r.updateColumns(ctx, "employee.UpdateWallet", id, map[string]interface{}{
		"wallet_balance": balance,
		"total_earned":   totalEarned,
	})
}

func (r *EmployeeRepo) UpdateLogin(ctx context.Context, id string, streak int, lastLogin time.Time) error {
	return r.updateColumns(ctx, "employee.UpdateLogin", id, map[string]interface{}{
		"login_streak": streak,
		"last_login":   lastLogin,
	})
}

func (r *EmployeeRepo) UpdateBankDetails(ctx context.Context, id string, details BankDetails) error {
	return r.updateColumns(ctx, "employee.UpdateBankDetails", id, map[string]interface{}{
		"bank_holder_name":    details.HolderName,
		"bank_account_number": details.AccountNumber,
		"ifsc_code":           details.IFSCCode,
		"bank_name":           details.BankName,
	})
}

func (r *EmployeeRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return r.updateColumns(ctx, "employee.UpdateStatus", id, map[string]interface{}{"status": status})
}

func (r *EmployeeRepo) updateColumns(ctx context.Context, op, id string, updates map[string]interface{}) error {
	err := r.db.WithContext(ctx).
		Model(&model.Employee{}).
		Where("id = ?", id).
		Updates(updates).Error
	return wrap(op, err)
}

func (r *EmployeeRepo) ListTopEarners(ctx context.Context, limit int) ([]*model.Employee, error) {
	var employees []*model.Employee
	err := r.db.WithContext(ctx).
		Where("role = ? AND status = ?", model.RoleEmployee, model.EmployeeStatusActive).
		Order("total_earned DESC").
		Order("created_at ASC").
		Limit(limit).
		Find(&employees).Error
	return employees, wrap("employee.ListTopEarners", err)
}

func (r *EmployeeRepo) ListByRole(ctx context.Context, role string) ([]*model.Employee, error) {
	var employees []*model.Employee
	err := r.db.WithContext(ctx).
		Where("role = ?", role).
		Order("created_at ASC").
		Find(&employees).Error
	return employees, wrap("employee.ListByRole", err)
}

func (r *EmployeeRepo) CountByRoleAndStatus(ctx context.Context, role, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Employee{}).
		Where("role = ? AND status = ?", role, status).
		Count(&count).Error
	return count, wrap("employee.CountByRoleAndStatus", err)
}
