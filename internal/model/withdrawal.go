package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending  = "PENDING"
	WithdrawalStatusApproved = "APPROVED"
	WithdrawalStatusRejected = "REJECTED"
)

// APPROVED / REJECTED 为终态
var ValidWithdrawalTransitions = map[string][]string{
	WithdrawalStatusPending: {WithdrawalStatusApproved, WithdrawalStatusRejected},
}

func CanWithdrawalTransitionTo(currentStatus, targetStatus string) bool {
	return canTransition(ValidWithdrawalTransitions, currentStatus, targetStatus)
}

// WithdrawalRequest 提现申请，申请时即扣除全额，驳回时原额退回
type WithdrawalRequest struct {
	ID              string          `gorm:"type:varchar(64);primaryKey" json:"id"`
	EmployeeID      string          `gorm:"type:varchar(36);index;not null" json:"employee_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	TDSAmount       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"tds_amount"`
	NetAmount       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"net_amount"`
	BankAccount     string          `gorm:"type:varchar(64)" json:"bank_account"`
	Method          string          `gorm:"type:varchar(16)" json:"method"`
	Status          string          `gorm:"type:varchar(16);index;not null" json:"status"`
	IsInstant       bool            `gorm:"not null;default:false" json:"is_instant"`
	RejectionReason string          `gorm:"type:varchar(256)" json:"rejection_reason,omitempty"`
	ApprovedBy      *string         `gorm:"type:varchar(36)" json:"approved_by,omitempty"`
	RequestedAt     time.Time       `gorm:"index;not null" json:"requested_at"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_request"
}
