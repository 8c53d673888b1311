package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"payoutledger/internal/model"
	"payoutledger/internal/repository"

	"github.com/shopspring/decimal"
)

type employeeRepo struct {
	s *session
}

func (r *employeeRepo) Create(ctx context.Context, e *model.Employee) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.employees[e.ID]; ok {
			return duplicate("employee.Create")
		}
		for _, other := range st.employees {
			if other.Username == e.Username || other.EmployeeCode == e.EmployeeCode {
				return duplicate("employee.Create")
			}
		}
		now := r.s.now()
		e.CreatedAt = now
		e.UpdatedAt = now
		st.employees[e.ID] = *e
		return nil
	})
}

func (r *employeeRepo) get(op, id string) (*model.Employee, error) {
	var out *model.Employee
	err := r.s.read(func(st *state) error {
		e, ok := st.employees[id]
		if !ok {
			return notFound(op)
		}
		out = &e
		return nil
	})
	return out, err
}

func (r *employeeRepo) GetByID(_ context.Context, id string) (*model.Employee, error) {
	return r.get("employee.GetByID", id)
}

func (r *employeeRepo) GetByIDForUpdate(_ context.Context, id string) (*model.Employee, error) {
	return r.get("employee.GetByIDForUpdate", id)
}

func (r *employeeRepo) GetByUsername(_ context.Context, username string) (*model.Employee, error) {
	var out *model.Employee
	err := r.s.read(func(st *state) error {
		for _, e := range st.employees {
			if e.Username == username {
				e := e
				out = &e
				return nil
			}
		}
		return notFound("employee.GetByUsername")
	})
	return out, err
}

func (r *employeeRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func (r *employeeRepo) FindByIDPrefix(_ context.Context, prefix string) (*model.Employee, error) {
	var out *model.Employee
	err := r.s.read(func(st *state) error {
		for _, e := range st.employees {
			if !strings.HasPrefix(e.ID, prefix) {
				continue
			}
			if out == nil || e.CreatedAt.Before(out.CreatedAt) {
				e := e
				out = &e
			}
		}
		if out == nil {
			return notFound("employee.FindByIDPrefix")
		}
		return nil
	})
	return out, err
}

func (r *employeeRepo) update(ctx context.Context, op, id string, fn func(e *model.Employee)) error {
	return r.s.write(ctx, func(st *state) error {
		e, ok := st.employees[id]
		if !ok {
			return notFound(op)
		}
		fn(&e)
		e.UpdatedAt = r.s.now()
		st.employees[id] = e
		return nil
	})
}

func (r *employeeRepo) UpdateWallet(ctx context.Context, id string, balance, totalEarned decimal.Decimal) error {
	return r.update(ctx, "employee.UpdateWallet", id, func(e *model.Employee) {
		e.WalletBalance = balance
		e.TotalEarned = totalEarned
	})
}

func (r *employeeRepo) UpdateLogin(ctx context.Context, id string, streak int, lastLogin time.Time) error {
	return r.update(ctx, "employee.UpdateLogin", id, func(e *model.Employee) {
		e.LoginStreak = streak
		e.LastLogin = &lastLogin
	})
}

func (r *employeeRepo) UpdateBankDetails(ctx context.Context, id string, details repository.BankDetails) error {
	return r.update(ctx, "employee.UpdateBankDetails", id, func(e *model.Employee) {
		e.BankHolderName = details.HolderName
		e.BankAccountNumber = details.AccountNumber
		e.IFSCCode = details.IFSCCode
		e.BankName = details.BankName
	})
}

func (r *employeeRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return r.update(ctx, "employee.UpdateStatus", id, func(e *model.Employee) {
		e.Status = status
	})
}

func (r *employeeRepo) ListByRole(_ context.Context, role string) ([]*model.Employee, error) {
	var out []*model.Employee
	err := r.s.read(func(st *state) error {
		for _, e := range st.employees {
			if e.Role == role {
				e := e
				out = append(out, &e)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r *employeeRepo) ListTopEarners(_ context.Context, limit int) ([]*model.Employee, error) {
	var out []*model.Employee
	err := r.s.read(func(st *state) error {
		for _, e := range st.employees {
			if e.Role != model.RoleEmployee || e.Status != model.EmployeeStatusActive {
				continue
			}
			e := e
			out = append(out, &e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalEarned.Cmp(out[j].TotalEarned); c != 0 {
			return c > 0
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *employeeRepo) CountByRoleAndStatus(_ context.Context, role, status string) (int64, error) {
	var count int64
	err := r.s.read(func(st *state) error {
		for _, e := range st.employees {
			if e.Role == role && e.Status == status {
				count++
			}
		}
		return nil
	})
	return count, err
}
