package memory

import (
	"context"
	"fmt"
	"sort"

	"payoutledger/internal/model"
	"payoutledger/internal/repository"

	"github.com/shopspring/decimal"
)

type withdrawalRepo struct {
	s *session
}

func (r *withdrawalRepo) Create(ctx context.Context, w *model.WithdrawalRequest) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.withdrawals[w.ID]; ok {
			return duplicate("withdrawal.Create")
		}
		w.UpdatedAt = r.s.now()
		st.withdrawals[w.ID] = *w
		return nil
	})
}

func (r *withdrawalRepo) get(op, id string) (*model.WithdrawalRequest, error) {
	var out *model.WithdrawalRequest
	err := r.s.read(func(st *state) error {
		w, ok := st.withdrawals[id]
		if !ok {
			return notFound(op)
		}
		out = &w
		return nil
	})
	return out, err
}

func (r *withdrawalRepo) GetByID(_ context.Context, id string) (*model.WithdrawalRequest, error) {
	return r.get("withdrawal.GetByID", id)
}

func (r *withdrawalRepo) GetByIDForUpdate(_ context.Context, id string) (*model.WithdrawalRequest, error) {
	return r.get("withdrawal.GetByIDForUpdate", id)
}

func (r *withdrawalRepo) UpdateStatus(ctx context.Context, w *model.WithdrawalRequest, fromStatus string) error {
	if !model.CanWithdrawalTransitionTo(fromStatus, w.Status) {
		return fmt.Errorf("memory.withdrawal.UpdateStatus: %w", repository.ErrStaleState)
	}
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.withdrawals[w.ID]
		if !ok || cur.Status != fromStatus {
			return fmt.Errorf("memory.withdrawal.UpdateStatus: %w", repository.ErrStaleState)
		}
		cur.Status = w.Status
		cur.RejectionReason = w.RejectionReason
		cur.ApprovedBy = w.ApprovedBy
		cur.ApprovedAt = w.ApprovedAt
		cur.RejectedAt = w.RejectedAt
		cur.UpdatedAt = r.s.now()
		st.withdrawals[w.ID] = cur
		return nil
	})
}

func (r *withdrawalRepo) filter(keep func(w *model.WithdrawalRequest) bool) ([]*model.WithdrawalRequest, error) {
	var out []*model.WithdrawalRequest
	err := r.s.read(func(st *state) error {
		for _, w := range st.withdrawals {
			w := w
			if keep(&w) {
				out = append(out, &w)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.After(out[j].RequestedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

func (r *withdrawalRepo) CountByEmployeeAndStatus(_ context.Context, employeeID, status string) (int64, error) {
	list, err := r.filter(func(w *model.WithdrawalRequest) bool {
		return w.EmployeeID == employeeID && w.Status == status
	})
	return int64(len(list)), err
}

func (r *withdrawalRepo) ListByStatus(_ context.Context, status string) ([]*model.WithdrawalRequest, error) {
	return r.filter(func(w *model.WithdrawalRequest) bool {
		return w.Status == status
	})
}

func (r *withdrawalRepo) ListByEmployee(_ context.Context, employeeID string) ([]*model.WithdrawalRequest, error) {
	return r.filter(func(w *model.WithdrawalRequest) bool {
		return w.EmployeeID == employeeID
	})
}

func (r *withdrawalRepo) SumByStatus(ctx context.Context, status string) (decimal.Decimal, error) {
	list, err := r.ListByStatus(ctx, status)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, w := range list {
		sum = sum.Add(w.Amount)
	}
	return sum, nil
}

func (r *withdrawalRepo) TaxSummary(ctx context.Context, employeeID string) (*repository.TaxSummary, error) {
	list, err := r.filter(func(w *model.WithdrawalRequest) bool {
		return w.EmployeeID == employeeID && w.Status == model.WithdrawalStatusApproved
	})
	if err != nil {
		return nil, err
	}
	summary := &repository.TaxSummary{TotalWithdrawn: decimal.Zero, TotalTDS: decimal.Zero}
	for _, w := range list {
		summary.TotalWithdrawn = summary.TotalWithdrawn.Add(w.Amount)
		summary.TotalTDS = summary.TotalTDS.Add(w.TDSAmount)
		summary.Count++
	}
	return summary, nil
}
