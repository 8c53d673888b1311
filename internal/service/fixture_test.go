package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"payoutledger/internal/auth"
	"payoutledger/internal/config"
	"payoutledger/internal/model"
	"payoutledger/internal/repository"
	"payoutledger/internal/repository/memory"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{Topic: config.KafkaTopicConfig{
			Ledger:     "wallet-ledger",
			Project:    "project-events",
			Withdrawal: "withdrawal-events",
		}},
		Business: config.BusinessConfig{
			WithdrawalMin:         decimal.NewFromInt(100),
			WithdrawalMax:         decimal.NewFromInt(50000),
			TDSRate:               decimal.RequireFromString("0.10"),
			MaxPendingWithdrawals: 3,
			LockTimeout:           5 * time.Second,
			DeadlineSweepInterval: time.Minute,
			DeadlineSweepBatch:    100,
			DefaultProjectHours:   48,
			EmployeeCodeStart:     8851,
			LedgerHistoryLimit:    100,
			OutboxMaxRetry:        5,
		},
	}
}

type fixture struct {
	ctx         context.Context
	clock       *fakeClock
	cfg         *config.Config
	store       *memory.Store
	ledger      *WalletLedger
	employees   *EmployeeService
	projects    *ProjectService
	withdrawals *WithdrawalService
	queries     *QueryService
	tokens      *auth.TokenManager
}

func newFixture(t *testing.T, opts ...memory.Option) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	cfg := testConfig()
	log := zerolog.Nop()
	store := memory.New(append([]memory.Option{memory.WithClock(clock.Now)}, opts...)...)

	ledger := NewWalletLedger(cfg, log)
	ledger.now = clock.Now
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	f := &fixture{
		ctx:         context.Background(),
		clock:       clock,
		cfg:         cfg,
		store:       store,
		ledger:      ledger,
		employees:   NewEmployeeService(store, cfg, ledger, tokens, log),
		projects:    NewProjectService(store, cfg, ledger, log),
		withdrawals: NewWithdrawalService(store, cfg, ledger, nil, log),
		queries:     NewQueryService(store, cfg, log),
		tokens:      tokens,
	}
	f.employees.now = clock.Now
	f.projects.now = clock.Now
	f.withdrawals.now = clock.Now
	f.queries.now = clock.Now
	return f
}

// seedEmployee 直接写入员工，初始余额通过流水入账
func (f *fixture) seedEmployee(t *testing.T, id string, balance int64, withBank bool) *model.Employee {
	t.Helper()
	emp := &model.Employee{
		ID:            id,
		EmployeeCode:  "PPX-CM-" + id,
		Username:      "user." + id,
		FullName:      "User " + id,
		Gender:        "M",
		Role:          model.RoleEmployee,
		Status:        model.EmployeeStatusActive,
		WalletBalance: decimal.Zero,
		TotalEarned:   decimal.Zero,
	}
	if withBank {
		emp.BankHolderName = "User " + id
		emp.BankAccountNumber = "00112233" + id
		emp.IFSCCode = "HDFC0001"
		emp.BankName = "HDFC"
	}
	require.NoError(t, f.store.Employees().Create(f.ctx, emp))

	if balance > 0 {
		f.credit(t, id, balance, model.TransactionTypeAdjustment)
	}
	return emp
}

func (f *fixture) credit(t *testing.T, id string, amount int64, typ string) {
	t.Helper()
	err := f.store.Transaction(f.ctx, func(uow repository.UnitOfWork) error {
		_, err := f.ledger.Credit(f.ctx, uow, Entry{EmployeeID: id, Amount: decimal.NewFromInt(amount), Type: typ})
		return err
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	emp, err := f.store.Employees().GetByID(f.ctx, id)
	require.NoError(t, err)
	return emp.WalletBalance
}

// requireConsistent 余额必须等于流水合计
func (f *fixture) requireConsistent(t *testing.T, id string) {
	t.Helper()
	sum, err := f.store.Transactions().SumByEmployee(f.ctx, id)
	require.NoError(t, err)
	require.True(t, sum.Equal(f.balance(t, id)), "balance %s ledger %s", f.balance(t, id), sum)
}

func (f *fixture) transactionsOfType(t *testing.T, id, typ string) []*model.WalletTransaction {
	t.Helper()
	list, err := f.store.Transactions().ListByEmployee(f.ctx, id, 0)
	require.NoError(t, err)
	var out []*model.WalletTransaction
	for _, txn := range list {
		if txn.Type == typ {
			out = append(out, txn)
		}
	}
	return out
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
