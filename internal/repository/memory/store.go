package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"payoutledger/internal/model"
	"payoutledger/internal/repository"
)

type state struct {
	employees    map[string]model.Employee
	transactions []model.WalletTransaction
	projects     map[string]model.Project
	items        map[string]model.WorkItem
	completions  map[string]model.Completion
	withdrawals  map[string]model.WithdrawalRequest
	sequences    map[string]model.SequenceCounter
	outbox       []model.OutboxMessage
	audit        []model.AuditLog

	lastTransactionID int64
	lastOutboxID      int64
	lastAuditID       int64
}

func newState() *state {
	return &state{
		employees:   make(map[string]model.Employee),
		projects:    make(map[string]model.Project),
		items:       make(map[string]model.WorkItem),
		completions: make(map[string]model.Completion),
		withdrawals: make(map[string]model.WithdrawalRequest),
		sequences:   make(map[string]model.SequenceCounter),
	}
}

func (s *state) clone() *state {
	c := &state{
		employees:         make(map[string]model.Employee, len(s.employees)),
		transactions:      append([]model.WalletTransaction(nil), s.transactions...),
		projects:          make(map[string]model.Project, len(s.projects)),
		items:             make(map[string]model.WorkItem, len(s.items)),
		completions:       make(map[string]model.Completion, len(s.completions)),
		withdrawals:       make(map[string]model.WithdrawalRequest, len(s.withdrawals)),
		sequences:         make(map[string]model.SequenceCounter, len(s.sequences)),
		outbox:            append([]model.OutboxMessage(nil), s.outbox...),
		audit:             append([]model.AuditLog(nil), s.audit...),
		lastTransactionID: s.lastTransactionID,
		lastOutboxID:      s.lastOutboxID,
		lastAuditID:       s.lastAuditID,
	}
	for k, v := range s.employees {
		c.employees[k] = v
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.completions {
		c.completions[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	return c
}

// Store 内存实现的 Store
//
// 事务串行执行：开始时复制一份工作集，提交时整体替换，失败直接丢弃。
// 事务锁的等待时间受 lockTimeout 限制，超时返回 repository.ErrLockTimeout。
type Store struct {
	sem         chan struct{}
	mu          sync.RWMutex
	st          *state
	lockTimeout time.Duration
	now         func() time.Time
	auto        *session
}

type Option func(*Store)

func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		sem:         make(chan struct{}, 1),
		st:          newState(),
		lockTimeout: 5 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.auto = &session{store: s}
	return s
}

func (s *Store) acquire(ctx context.Context) error {
	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("memory.acquire: %w", repository.ErrLockTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.sem
}

func (s *Store) Transaction(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.RLock()
	working := s.st.clone()
	s.mu.RUnlock()

	if err := fn(&session{store: s, st: working}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = working
	s.mu.Unlock()
	return nil
}

func (s *Store) Employees() repository.EmployeeRepository       { return s.auto.Employees() }
func (s *Store) Transactions() repository.TransactionRepository { return s.auto.Transactions() }
func (s *Store) Projects() repository.ProjectRepository         { return s.auto.Projects() }
func (s *Store) Withdrawals() repository.WithdrawalRepository   { return s.auto.Withdrawals() }
func (s *Store) Sequences() repository.SequenceRepository       { return s.auto.Sequences() }
func (s *Store) Outbox() repository.OutboxRepository            { return s.auto.Outbox() }
func (s *Store) Audit() repository.AuditRepository              { return s.auto.Audit() }

// session st 为 nil 时每次调用自动提交，否则操作事务工作集
type session struct {
	store *Store
	st    *state
}

func (s *session) read(fn func(st *state) error) error {
	if s.st != nil {
		return fn(s.st)
	}
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	return fn(s.store.st)
}

func (s *session) write(ctx context.Context, fn func(st *state) error) error {
	if s.st != nil {
		return fn(s.st)
	}
	if err := s.store.acquire(ctx); err != nil {
		return err
	}
	defer s.store.release()

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return fn(s.store.st)
}

func (s *session) now() time.Time {
	return s.store.now()
}

func (s *session) Employees() repository.EmployeeRepository       { return &employeeRepo{s} }
func (s *session) Transactions() repository.TransactionRepository { return &transactionRepo{s} }
func (s *session) Projects() repository.ProjectRepository         { return &projectRepo{s} }
func (s *session) Withdrawals() repository.WithdrawalRepository   { return &withdrawalRepo{s} }
func (s *session) Sequences() repository.SequenceRepository       { return &sequenceRepo{s} }
func (s *session) Outbox() repository.OutboxRepository            { return &outboxRepo{s} }
func (s *session) Audit() repository.AuditRepository              { return &auditRepo{s} }

func notFound(op string) error {
	return fmt.Errorf("memory.%s: %w", op, repository.ErrNotFound)
}

func duplicate(op string) error {
	return fmt.Errorf("memory.%s: %w", op, repository.ErrDuplicate)
}

var _ repository.Store = (*Store)(nil)
