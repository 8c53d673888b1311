package service

import (
	"testing"
	"time"

	"payoutledger/internal/apperr"
	"payoutledger/internal/auth"
	"payoutledger/internal/config"
	"payoutledger/internal/model"
	"payoutledger/internal/repository"
	"payoutledger/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = auth.Admin("admin-1")

func TestCreateEmployeeIssuesSequentialCodes(t *testing.T) {
	f := newFixture(t)

	first, err := f.employees.CreateEmployee(f.ctx, admin, &CreateEmployeeRequest{FullName: "Asha Rao", Gender: "f", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "PPX-CF-0008852", first.EmployeeCode)
	assert.Equal(t, "asha.rao", first.Username)

	second, err := f.employees.CreateEmployee(f.ctx, admin, &CreateEmployeeRequest{FullName: "Asha Rao", Gender: "M", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "PPX-CM-0008853", second.EmployeeCode)
	assert.Equal(t, "asha.rao1", second.Username)

	emp, err := f.store.Employees().GetByID(f.ctx, first.EmployeeID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(emp.PasswordHash, "secret"))
	assert.True(t, emp.WalletBalance.IsZero())

	audit, err := f.store.Audit().List(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, model.AuditActionEmployeeCreated, audit[0].Action)
}

func TestCreateEmployeeValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.employees.CreateEmployee(f.ctx, auth.Employee("e1"), &CreateEmployeeRequest{FullName: "A", Gender: "M", Password: "x"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.employees.CreateEmployee(f.ctx, admin, &CreateEmployeeRequest{FullName: "A", Gender: "X", Password: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.employees.CreateEmployee(f.ctx, admin, &CreateEmployeeRequest{FullName: " ", Gender: "M", Password: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.employees.CreateEmployee(f.ctx, admin, &CreateEmployeeRequest{FullName: "Ravi", Gender: "M", Password: "x", Username: "ravi"})
	require.NoError(t, err)
	_, err = f.employees.CreateEmployee(f.ctx, admin, &CreateEmployeeRequest{FullName: "Ravi K", Gender: "M", Password: "x", Username: "ravi"})
	assert.ErrorIs(t, err, apperr.ErrUsernameTaken)
}

func TestCreateEmployeeLinksReferrer(t *testing.T) {
	f := newFixture(t)
	referrer, err := f.employees.CreateEmployee(f.ctx, admin, &CreateEmployeeRequest{FullName: "Ref", Gender: "M", Password: "x"})
	require.NoError(t, err)

	code := ReferralCode(referrer.EmployeeID)
	assert.Regexp(t, `^REF-[0-9A-F]{8}$`, code)

	created, err := f.employees.CreateEmployee(f.ctx, admin, &CreateEmployeeRequest{FullName: "New", Gender: "O", Password: "x", ReferralCode: code})
	require.NoError(t, err)
	emp, err := f.store.Employees().GetByID(f.ctx, created.EmployeeID)
	require.NoError(t, err)
	require.NotNil(t, emp.ReferredByID)
	assert.Equal(t, referrer.EmployeeID, *emp.ReferredByID)

	// 无效推荐码忽略
	created, err = f.employees.CreateEmployee(f.ctx, admin, &CreateEmployeeRequest{FullName: "Other", Gender: "O", Password: "x", ReferralCode: "REF-ZZZZZZZZ"})
	require.NoError(t, err)
	emp, err = f.store.Employees().GetByID(f.ctx, created.EmployeeID)
	require.NoError(t, err)
	assert.Nil(t, emp.ReferredByID)
}

func TestCreateEmployeeRollsBackOnLockTimeout(t *testing.T) {
	f := newFixture(t, memory.WithLockTimeout(20*time.Millisecond))

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = f.store.Transaction(f.ctx, func(uow repository.UnitOfWork) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	_, err := f.employees.CreateEmployee(f.ctx, admin, &CreateEmployeeRequest{FullName: "Late", Gender: "M", Password: "x"})
	close(release)
	require.ErrorIs(t, err, apperr.ErrConcurrencyTimeout)
	assert.True(t, apperr.IsRetryable(err))

	exists, err := f.store.Employees().UsernameExists(f.ctx, "late")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUsernameFromFullName(t *testing.T) {
	assert.Equal(t, "asha.rao", UsernameFromFullName("  Asha Rao "))
	assert.Equal(t, "j.d..smith2", UsernameFromFullName("J.D. Smith-2"))
	assert.Equal(t, "employee", UsernameFromFullName("!!!"))
}

func TestComputeLoginBonus(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 1, d, 10, 0, 0, 0, time.UTC) }
	ptr := func(t time.Time) *time.Time { return &t }

	cases := []struct {
		name       string
		last       *time.Time
		streak     int
		today      time.Time
		wantStreak int
		wantBonus  int64
	}{
		{"first login", nil, 0, day(1), 1, 10},
		{"same day", ptr(day(1)), 1, day(1).Add(5 * time.Hour), 1, 0},
		{"next day", ptr(day(1)), 1, day(2), 2, 10},
		{"seventh day", ptr(day(6)), 6, day(7), 7, 100},
		{"thirtieth day", ptr(day(29)), 29, day(30), 30, 1000},
		{"gap resets", ptr(day(1)), 5, day(3), 1, 10},
		{"late night then morning", ptr(time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC)), 3, time.Date(2025, 1, 2, 0, 1, 0, 0, time.UTC), 4, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeLoginBonus(tc.last, tc.streak, tc.today)
			assert.Equal(t, tc.wantStreak, got.Streak)
			assert.True(t, got.Amount.Equal(dec(tc.wantBonus)), "bonus %s", got.Amount)
		})
	}
}

func TestLoginBonusScenario(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	day1 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	got, err := f.employees.ApplyLoginBonus(f.ctx, "e1", day1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Streak)

	got, err = f.employees.ApplyLoginBonus(f.ctx, "e1", day1.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, got.Amount.IsZero())

	got, err = f.employees.ApplyLoginBonus(f.ctx, "e1", day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Streak)

	got, err = f.employees.ApplyLoginBonus(f.ctx, "e1", day1.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, got.Streak)

	emp, err := f.store.Employees().GetByID(f.ctx, "e1")
	require.NoError(t, err)
	assert.True(t, emp.WalletBalance.Equal(dec(30)))
	assert.Equal(t, 1, emp.LoginStreak)
	assert.Len(t, f.transactionsOfType(t, "e1", model.TransactionTypeLoginBonus), 3)
	f.requireConsistent(t, "e1")
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	created, err := f.employees.CreateEmployee(f.ctx, admin, &CreateEmployeeRequest{FullName: "Meena", Gender: "F", Password: "pw123"})
	require.NoError(t, err)

	_, err = f.employees.Login(f.ctx, "meena", "wrong")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, err = f.employees.Login(f.ctx, "nobody", "pw123")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	resp, err := f.employees.Login(f.ctx, "meena", "pw123")
	require.NoError(t, err)
	assert.True(t, resp.BonusAmount.Equal(dec(10)))
	assert.Equal(t, "EMPLOYEE", resp.Role)

	ac, err := f.tokens.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, created.EmployeeID, ac.EmployeeID)
	assert.Equal(t, auth.RoleEmployee, ac.Role)

	require.NoError(t, f.employees.SetEmployeeStatus(f.ctx, admin, created.EmployeeID, model.EmployeeStatusBanned))
	_, err = f.employees.Login(f.ctx, "meena", "pw123")
	assert.ErrorIs(t, err, apperr.ErrEmployeeBanned)
}

func TestUpdateBankDetailsRequiresSelf(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)
	req := &BankDetailsRequest{HolderName: "E One", AccountNumber: "123", IFSCCode: "sbin0001", BankName: "SBI"}

	err := f.employees.UpdateBankDetails(f.ctx, auth.Employee("e2"), "e1", req)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	require.NoError(t, f.employees.UpdateBankDetails(f.ctx, auth.Employee("e1"), "e1", req))
	emp, err := f.store.Employees().GetByID(f.ctx, "e1")
	require.NoError(t, err)
	assert.True(t, emp.HasBankDetails())
	assert.Equal(t, "SBIN0001", emp.IFSCCode)
}

func TestSetEmployeeStatusValidation(t *testing.T) {
	f := newFixture(t)
	f.seedEmployee(t, "e1", 0, false)

	assert.ErrorIs(t, f.employees.SetEmployeeStatus(f.ctx, admin, "e1", "SLEEPING"), apperr.ErrInvalidArgument)
	assert.ErrorIs(t, f.employees.SetEmployeeStatus(f.ctx, admin, "ghost", model.EmployeeStatusBanned), apperr.ErrEmployeeNotFound)
	assert.ErrorIs(t, f.employees.SetEmployeeStatus(f.ctx, auth.Employee("e1"), "e1", model.EmployeeStatusBanned), apperr.ErrUnauthorized)

	code, err := f.employees.GetReferralCode(f.ctx, auth.Employee("e1"), "e1")
	require.NoError(t, err)
	assert.Equal(t, "REF-E1", code)
}

func TestEnsureAdminBootstrapsFreshStore(t *testing.T) {
	f := newFixture(t)
	cfg := config.BootstrapAdminConfig{Username: "admin", Password: "admin123", FullName: "Root Admin", Gender: "m"}

	created, err := f.employees.EnsureAdmin(f.ctx, cfg)
	require.NoError(t, err)
	assert.True(t, created)

	adminEmp, err := f.store.Employees().GetByUsername(f.ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, adminEmp.Role)
	assert.Equal(t, "PPX-CM-0008852", adminEmp.EmployeeCode)

	audit, err := f.store.Audit().List(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, model.AuditActionAdminBootstrapped, audit[0].Action)
	assert.Equal(t, "system", audit[0].ActorID)

	login, err := f.employees.Login(f.ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", login.Role)

	actor, err := f.tokens.Parse(login.Token)
	require.NoError(t, err)
	require.True(t, actor.IsAdmin())

	emp, err := f.employees.CreateEmployee(f.ctx, actor, &CreateEmployeeRequest{FullName: "Vipin", Gender: "M", Password: "vipin01"})
	require.NoError(t, err)
	assert.Equal(t, "PPX-CM-0008853", emp.EmployeeCode)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	cfg := config.BootstrapAdminConfig{Username: "admin", Password: "admin123"}

	created, err := f.employees.EnsureAdmin(f.ctx, cfg)
	require.NoError(t, err)
	require.True(t, created)

	// 已存在时不覆盖密码
	cfg.Password = "other"
	created, err = f.employees.EnsureAdmin(f.ctx, cfg)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = f.employees.Login(f.ctx, "admin", "admin123")
	require.NoError(t, err)

	count, err := f.store.Employees().CountByRoleAndStatus(f.ctx, model.RoleAdmin, model.EmployeeStatusActive)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	created, err = f.employees.EnsureAdmin(f.ctx, config.BootstrapAdminConfig{})
	require.NoError(t, err)
	assert.False(t, created)
}
