package repository

import (
	"context"
	"errors"
	"time"

	"payoutledger/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound    = errors.New("记录不存在")
	ErrLockTimeout = errors.New("等待行锁超时")
	ErrStaleState  = errors.New("记录状态已变更")
	ErrDuplicate   = errors.New("唯一键冲突")
)

// BankDetails 员工银行信息
type BankDetails struct {
	HolderName    string
	AccountNumber string
	IFSCCode      string
	BankName      string
}

// TaxSummary 已批准提现的税务汇总
type TaxSummary struct {
	TotalWithdrawn decimal.Decimal
	TotalTDS       decimal.Decimal
	Count          int64
}

type EmployeeRepository interface {
	Create(ctx context.Context, e *model.Employee) error
	GetByID(ctx context.Context, id string) (*model.Employee, error)
	// GetByIDForUpdate 在当前事务内对员工行加排他锁
	GetByIDForUpdate(ctx context.Context, id string) (*model.Employee, error)
	GetByUsername(ctx context.Context, username string) (*model.Employee, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	FindByIDPrefix(ctx context.Context, prefix string) (*model.Employee, error)
	UpdateWallet(ctx context.Context, id string, balance, totalEarned decimal.Decimal) error
	UpdateLogin(ctx context.Context, id string, streak int, lastLogin time.Time) error
	UpdateBankDetails(ctx context.Context, id string, details BankDetails) error
	UpdateStatus(ctx context.Context, id, status string) error
	ListTopEarners(ctx context.Context, limit int) ([]*model.Employee, error)
	// ListByRole 按创建时间升序
	ListByRole(ctx context.Context, role string) ([]*model.Employee, error)
	CountByRoleAndStatus(ctx context.Context, role, status string) (int64, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, t *model.WalletTransaction) error
	// ListByEmployee 按时间倒序
	ListByEmployee(ctx context.Context, employeeID string, limit int) ([]*model.WalletTransaction, error)
	ListByWithdrawal(ctx context.Context, withdrawalID string) ([]*model.WalletTransaction, error)
	SumByEmployee(ctx context.Context, employeeID string) (decimal.Decimal, error)
	// ListCreditsSince 指定类型、since 之后的入账流水，按时间升序
	ListCreditsSince(ctx context.Context, employeeID string, types []string, since time.Time) ([]*model.WalletTransaction, error)
}

type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project, items []*model.WorkItem) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.Project, error)
	Save(ctx context.Context, p *model.Project) error
	// FinalizeIfOpen 条件更新 is_finalized=false 的项目，返回是否真正更新
	FinalizeIfOpen(ctx context.Context, id string, at time.Time) (bool, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Project, error)
	ListPendingReview(ctx context.Context) ([]*model.Project, error)
	ListByAssignee(ctx context.Context, employeeID string) ([]*model.Project, error)
	// List status 为空时不过滤，按创建时间倒序
	List(ctx context.Context, status string, limit int) ([]*model.Project, error)

	ListItems(ctx context.Context, projectID string) ([]*model.WorkItem, error)
	GetItem(ctx context.Context, itemID string) (*model.WorkItem, error)
	GetItemBySequence(ctx context.Context, projectID string, sequence int) (*model.WorkItem, error)
	// NextUncompletedItem 该员工尚未提交的、序号最小的条目
	NextUncompletedItem(ctx context.Context, projectID, employeeID string) (*model.WorkItem, error)
	CountItems(ctx context.Context, projectID string) (int64, error)
	CountItemsByProject(ctx context.Context, projectIDs []string) (map[string]int64, error)

	UpsertCompletion(ctx context.Context, c *model.Completion) error
	GetCompletion(ctx context.Context, employeeID, workItemID string) (*model.Completion, error)
	CountCompletions(ctx context.Context, projectID, employeeID string) (int64, error)
	CountCompletionsByProject(ctx context.Context, projectIDs []string) (map[string]int64, error)
	ListCompletions(ctx context.Context, projectID string) ([]*model.Completion, error)
}

type WithdrawalRepository interface {
	Create(ctx context.Context, w *model.WithdrawalRequest) error
	GetByID(ctx context.Context, id string) (*model.WithdrawalRequest, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.WithdrawalRequest, error)
	// UpdateStatus 条件更新 WHERE status = fromStatus，未命中返回 ErrStaleState
	UpdateStatus(ctx context.Context, w *model.WithdrawalRequest, fromStatus string) error
	CountByEmployeeAndStatus(ctx context.Context, employeeID, status string) (int64, error)
	ListByStatus(ctx context.Context, status string) ([]*model.WithdrawalRequest, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]*model.WithdrawalRequest, error)
	SumByStatus(ctx context.Context, status string) (decimal.Decimal, error)
	TaxSummary(ctx context.Context, employeeID string) (*TaxSummary, error)
}

type SequenceRepository interface {
	GetForUpdate(ctx context.Context, category string) (*model.SequenceCounter, error)
	Create(ctx context.Context, c *model.SequenceCounter) error
	Update(ctx context.Context, category string, lastValue int64) error
}

type OutboxRepository interface {
	Create(ctx context.Context, msg *model.OutboxMessage) error
	// ListPending 按写入顺序
	ListPending(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	// RecordFailure 重试次数加一并记录错误，exhausted 时标记为 FAILED
	RecordFailure(ctx context.Context, id int64, lastError string, exhausted bool) error
}

type AuditRepository interface {
	// Append 读取上一条记录的哈希并串联写入，prev_hash 唯一，链不会分叉
	Append(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, limit int) ([]*model.AuditLog, error)
	// ListAfter id 大于 afterID 的记录，按 id 升序
	ListAfter(ctx context.Context, afterID int64, limit int) ([]*model.AuditLog, error)
}

// UnitOfWork 一次业务操作使用的仓储集合，事务内获得的实例全部绑定在同一个事务上
type UnitOfWork interface {
	Employees() EmployeeRepository
	Transactions() TransactionRepository
	Projects() ProjectRepository
	Withdrawals() WithdrawalRepository
	Sequences() SequenceRepository
	Outbox() OutboxRepository
	Audit() AuditRepository
}

// Store 直接调用仓储为非事务读写，Transaction 内的操作整体提交或整体回滚
type Store interface {
	UnitOfWork
	Transaction(ctx context.Context, fn func(uow UnitOfWork) error) error
}
