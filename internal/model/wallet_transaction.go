package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeLoginBonus        = "LOGIN_BONUS"
	TransactionTypeProjectPayout     = "PROJECT_PAYOUT"
	TransactionTypeWithdrawalRequest = "WITHDRAWAL_REQUEST"
	TransactionTypeWithdrawalRefund  = "WITHDRAWAL_REFUND"
	TransactionTypeAdjustment        = "ADJUSTMENT"
)

// WalletTransaction 钱包流水表
// 只追加，不修改，不删除；更正一律追加一笔反向流水
type WalletTransaction struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	EmployeeID          string          `gorm:"type:varchar(36);index:idx_employee_created;not null" json:"employee_id"`
	Amount              decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"` // 正数入账，负数出账
	Type                string          `gorm:"type:varchar(32);not null" json:"transaction_type"`
	Description         string          `gorm:"type:varchar(256)" json:"description"`
	BalanceBefore       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance_before"`
	BalanceAfter        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance_after"`
	RelatedProjectID    *string         `gorm:"type:varchar(32);index" json:"related_project_id,omitempty"`
	RelatedWithdrawalID *string         `gorm:"type:varchar(64);index" json:"related_withdrawal_id,omitempty"`
	CreatedAt           time.Time       `gorm:"index:idx_employee_created" json:"timestamp"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transaction"
}
