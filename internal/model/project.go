package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProjectStatusUnassigned             = "UNASSIGNED"
	ProjectStatusInProgress             = "IN_PROGRESS"
	ProjectStatusFinalizedPendingReview = "FINALIZED_PENDING_REVIEW"
	ProjectStatusRejected               = "REJECTED"
	ProjectStatusCompleted              = "COMPLETED"
)

// 项目状态流转表
// REJECTED 之后重新进入返工：提交条目回到 IN_PROGRESS，或直接再次提交审核
var ValidProjectTransitions = map[string][]string{
	ProjectStatusUnassigned:             {ProjectStatusInProgress},
	ProjectStatusInProgress:             {ProjectStatusFinalizedPendingReview},
	ProjectStatusFinalizedPendingReview: {ProjectStatusCompleted, ProjectStatusRejected},
	ProjectStatusRejected:               {ProjectStatusInProgress, ProjectStatusFinalizedPendingReview},
}

func CanProjectTransitionTo(currentStatus, targetStatus string) bool {
	return canTransition(ValidProjectTransitions, currentStatus, targetStatus)
}

func canTransition(table map[string][]string, currentStatus, targetStatus string) bool {
	allowedStatuses, exists := table[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Project 一批标注任务，同一时间只能分配给一个员工
type Project struct {
	ID                  string          `gorm:"type:varchar(32);primaryKey" json:"id"`
	SalaryPerCompletion decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"salary_per_completion"`
	SecurityAmount      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"security_amount"`
	AssignedTo          *string         `gorm:"type:varchar(36);index" json:"assigned_to"`
	Deadline            *time.Time      `gorm:"index" json:"deadline"`
	IsFinalized         bool            `gorm:"index;not null;default:false" json:"is_finalized"`
	IsApproved          bool            `gorm:"not null;default:false" json:"is_approved"`
	Status              string          `gorm:"type:varchar(32);index;not null" json:"status"`
	PayoutAmount        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"payout_amount"`
	AdminFeedback       string          `gorm:"type:varchar(512)" json:"admin_feedback"`
	AssignedAt          *time.Time      `json:"assigned_at"`
	FinalizedAt         *time.Time      `json:"finalized_at"`
	CompletedAt         *time.Time      `json:"completed_at"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Project) TableName() string {
	return "project"
}

func (p *Project) IsAssignedTo(employeeID string) bool {
	return p.AssignedTo != nil && *p.AssignedTo == employeeID
}

// Payout 结算金额 = 完成数 * 单价 + 保证金
func (p *Project) Payout(completedCount int64) decimal.Decimal {
	return p.SalaryPerCompletion.Mul(decimal.NewFromInt(completedCount)).Add(p.SecurityAmount)
}

// WorkItem 项目内的单个任务条目（图片），按 SequenceIndex 顺序领取
type WorkItem struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProjectID     string    `gorm:"type:varchar(32);uniqueIndex:uk_project_seq;not null" json:"project_id"`
	SequenceIndex int       `gorm:"uniqueIndex:uk_project_seq;not null" json:"sequence"`
	StorageRef    string    `gorm:"type:varchar(512)" json:"url"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (WorkItem) TableName() string {
	return "work_item"
}

const CompletionStatusSubmitted = "SUBMITTED"

// Completion 员工对某个条目的提交，(employee, work_item) 唯一，重复提交覆盖内容
type Completion struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	EmployeeID  string    `gorm:"type:varchar(36);uniqueIndex:uk_employee_item;not null" json:"employee_id"`
	WorkItemID  string    `gorm:"type:varchar(36);uniqueIndex:uk_employee_item;not null" json:"work_item_id"`
	ProjectID   string    `gorm:"type:varchar(32);index;not null" json:"project_id"`
	Payload     string    `gorm:"type:text" json:"payload"`
	Status      string    `gorm:"type:varchar(16);not null" json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Completion) TableName() string {
	return "completion"
}
