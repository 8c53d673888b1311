package model

import (
	"time"
)

const (
	AuditActionAdminBootstrapped  = "ADMIN_BOOTSTRAPPED"
	AuditActionEmployeeCreated    = "EMPLOYEE_CREATED"
	AuditActionEmployeeStatus     = "EMPLOYEE_STATUS"
	AuditActionProjectAssigned    = "PROJECT_ASSIGNED"
	AuditActionProjectApproved    = "PROJECT_APPROVED"
	AuditActionProjectRejected    = "PROJECT_REJECTED"
	AuditActionWithdrawalApproved = "WITHDRAWAL_APPROVED"
	AuditActionWithdrawalDeclined = "WITHDRAWAL_DECLINED"
)

// AuditLog 管理操作审计，BlockHash 串联上一条记录防篡改
// PrevHash 唯一，并发追加时后提交的一方违反唯一约束，链不会分叉
type AuditLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorID   string    `gorm:"type:varchar(36)" json:"actor_id"`
	Action    string    `gorm:"type:varchar(32);index;not null" json:"action"`
	Details   string    `gorm:"type:varchar(512)" json:"details"`
	PrevHash  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"prev_hash"`
	BlockHash string    `gorm:"type:varchar(64);not null" json:"block_hash"`
	CreatedAt time.Time `gorm:"index" json:"timestamp"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}
