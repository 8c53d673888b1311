package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EmployeeStatusActive = "ACTIVE"
	EmployeeStatusBanned = "BANNED"
)

const (
	RoleAdmin    = "ADMIN"
	RoleEmployee = "EMPLOYEE"
)

// Employee 员工表
// WalletBalance 是流水表的缓存投影，只能通过 WalletLedger 修改
type Employee struct {
	ID                string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	EmployeeCode      string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"employee_code"`
	Username          string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	FullName          string          `gorm:"type:varchar(128)" json:"full_name"`
	Gender            string          `gorm:"type:varchar(1);not null" json:"gender"`
	PasswordHash      string          `gorm:"type:varchar(128);not null" json:"-"`
	Role              string          `gorm:"type:varchar(16);not null;default:EMPLOYEE" json:"role"`
	Status            string          `gorm:"type:varchar(16);index;not null;default:ACTIVE" json:"status"`
	WalletBalance     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"wallet_balance"`
	TotalEarned       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_earned"`
	LoginStreak       int             `gorm:"not null;default:0" json:"login_streak"`
	LastLogin         *time.Time      `json:"last_login"`
	ReferredByID      *string         `gorm:"type:varchar(36)" json:"referred_by_id"`
	BankHolderName    string          `gorm:"type:varchar(128)" json:"bank_holder_name"`
	BankAccountNumber string          `gorm:"type:varchar(64)" json:"-"`
	IFSCCode          string          `gorm:"type:varchar(32)" json:"ifsc_code"`
	BankName          string          `gorm:"type:varchar(128)" json:"bank_name"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Employee) TableName() string {
	return "employee"
}

func (e *Employee) HasBankDetails() bool {
	return e.BankAccountNumber != ""
}

func (e *Employee) IsBanned() bool {
	return e.Status == EmployeeStatusBanned
}
