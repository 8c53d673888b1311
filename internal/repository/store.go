package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
)

// unitOfWork 绑定到某个 *gorm.DB（连接池或事务）的仓储集合
type unitOfWork struct {
	employees    *EmployeeRepo
	transactions *TransactionRepo
	projects     *ProjectRepo
	withdrawals  *WithdrawalRepo
	sequences    *SequenceRepo
	outbox       *OutboxRepo
	audit        *AuditRepo
}

func newUnitOfWork(db *gorm.DB) *unitOfWork {
	return &unitOfWork{
		employees:    NewEmployeeRepo(db),
		transactions: NewTransactionRepo(db),
		projects:     NewProjectRepo(db),
		withdrawals:  NewWithdrawalRepo(db),
		sequences:    NewSequenceRepo(db),
		outbox:       NewOutboxRepo(db),
		audit:        NewAuditRepo(db),
	}
}

func (u *unitOfWork) Employees() EmployeeRepository       { return u.employees }
func (u *unitOfWork) Transactions() TransactionRepository { return u.transactions }
func (u *unitOfWork) Projects() ProjectRepository         { return u.projects }
func (u *unitOfWork) Withdrawals() WithdrawalRepository   { return u.withdrawals }
func (u *unitOfWork) Sequences() SequenceRepository       { return u.sequences }
func (u *unitOfWork) Outbox() OutboxRepository            { return u.outbox }
func (u *unitOfWork) Audit() AuditRepository              { return u.audit }

// GormStore 基于 gorm 的 Store，每个事务开始时设置行锁等待上限
type GormStore struct {
	*unitOfWork
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewGormStore(db *gorm.DB, lockTimeout time.Duration) *GormStore {
	return &GormStore{
		unitOfWork:  newUnitOfWork(db),
		db:          db,
		lockTimeout: lockTimeout,
	}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(uow UnitOfWork) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.setLockTimeout(tx); err != nil {
			return err
		}
		return fn(newUnitOfWork(tx))
	})
	return translateError(err)
}

func (s *GormStore) setLockTimeout(tx *gorm.DB) error {
	if s.lockTimeout <= 0 {
		return nil
	}

	var stmt string
	switch tx.Dialector.Name() {
	case "mysql":
		// innodb_lock_wait_timeout 最小单位为秒
		seconds := int(math.Ceil(s.lockTimeout.Seconds()))
		stmt = fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", seconds)
	case "postgres":
		stmt = fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
	default:
		return nil
	}

	if err := tx.Exec(stmt).Error; err != nil {
		return fmt.Errorf("设置锁等待超时失败: %w", err)
	}
	return nil
}

var _ Store = (*GormStore)(nil)
