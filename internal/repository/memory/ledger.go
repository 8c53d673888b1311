package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"payoutledger/internal/model"
	"payoutledger/internal/repository"

	"github.com/shopspring/decimal"
)

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

type transactionRepo struct {
	s *session
}

func (r *transactionRepo) Create(ctx context.Context, t *model.WalletTransaction) error {
	return r.s.write(ctx, func(st *state) error {
		st.lastTransactionID++
		t.ID = st.lastTransactionID
		if t.CreatedAt.IsZero() {
			t.CreatedAt = r.s.now()
		}
		st.transactions = append(st.transactions, *t)
		return nil
	})
}

func (r *transactionRepo) ListByEmployee(_ context.Context, employeeID string, limit int) ([]*model.WalletTransaction, error) {
	var out []*model.WalletTransaction
	err := r.s.read(func(st *state) error {
		for _, t := range st.transactions {
			if t.EmployeeID == employeeID {
				t := t
				out = append(out, &t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *transactionRepo) ListByWithdrawal(_ context.Context, withdrawalID string) ([]*model.WalletTransaction, error) {
	var out []*model.WalletTransaction
	err := r.s.read(func(st *state) error {
		for _, t := range st.transactions {
			if t.RelatedWithdrawalID != nil && *t.RelatedWithdrawalID == withdrawalID {
				t := t
				out = append(out, &t)
			}
		}
		return nil
	})
	return out, err
}

func (r *transactionRepo) SumByEmployee(_ context.Context, employeeID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	err := r.s.read(func(st *state) error {
		for _, t := range st.transactions {
			if t.EmployeeID == employeeID {
				sum = sum.Add(t.Amount)
			}
		}
		return nil
	})
	return sum, err
}

func (r *transactionRepo) ListCreditsSince(_ context.Context, employeeID string, types []string, since time.Time) ([]*model.WalletTransaction, error) {
	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	var out []*model.WalletTransaction
	err := r.s.read(func(st *state) error {
		for _, t := range st.transactions {
			if t.EmployeeID != employeeID || !t.Amount.IsPositive() || !wanted[t.Type] || t.CreatedAt.Before(since) {
				continue
			}
			t := t
			out = append(out, &t)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

type sequenceRepo struct {
	s *session
}

func (r *sequenceRepo) GetForUpdate(_ context.Context, category string) (*model.SequenceCounter, error) {
	var out *model.SequenceCounter
	err := r.s.read(func(st *state) error {
		c, ok := st.sequences[category]
		if !ok {
			return notFound("sequence.GetForUpdate")
		}
		out = &c
		return nil
	})
	return out, err
}

func (r *sequenceRepo) Create(ctx context.Context, c *model.SequenceCounter) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.sequences[c.Category]; ok {
			return duplicate("sequence.Create")
		}
		st.sequences[c.Category] = *c
		return nil
	})
}

func (r *sequenceRepo) Update(ctx context.Context, category string, lastValue int64) error {
	return r.s.write(ctx, func(st *state) error {
		c, ok := st.sequences[category]
		if !ok {
			return notFound("sequence.Update")
		}
		c.LastValue = lastValue
		st.sequences[category] = c
		return nil
	})
}

type outboxRepo struct {
	s *session
}

func (r *outboxRepo) Create(ctx context.Context, msg *model.OutboxMessage) error {
	return r.s.write(ctx, func(st *state) error {
		st.lastOutboxID++
		msg.ID = st.lastOutboxID
		if msg.Status == "" {
			msg.Status = model.OutboxStatusPending
		}
		now := r.s.now()
		msg.CreatedAt = now
		msg.UpdatedAt = now
		st.outbox = append(st.outbox, *msg)
		return nil
	})
}

func (r *outboxRepo) ListPending(_ context.Context, limit int) ([]*model.OutboxMessage, error) {
	var out []*model.OutboxMessage
	err := r.s.read(func(st *state) error {
		for _, m := range st.outbox {
			if m.Status != model.OutboxStatusPending {
				continue
			}
			m := m
			out = append(out, &m)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *outboxRepo) update(ctx context.Context, op string, id int64, fn func(m *model.OutboxMessage)) error {
	return r.s.write(ctx, func(st *state) error {
		for i := range st.outbox {
			if st.outbox[i].ID == id {
				if st.outbox[i].Status != model.OutboxStatusPending {
					return nil
				}
				fn(&st.outbox[i])
				st.outbox[i].UpdatedAt = r.s.now()
				return nil
			}
		}
		return notFound(op)
	})
}

func (r *outboxRepo) MarkSent(ctx context.Context, id int64, at time.Time) error {
	return r.update(ctx, "outbox.MarkSent", id, func(m *model.OutboxMessage) {
		m.Status = model.OutboxStatusSent
		m.SentAt = &at
		m.LastError = ""
	})
}

func (r *outboxRepo) RecordFailure(ctx context.Context, id int64, lastError string, exhausted bool) error {
	return r.update(ctx, "outbox.RecordFailure", id, func(m *model.OutboxMessage) {
		m.RetryCount++
		m.LastError = lastError
		if exhausted {
			m.Status = model.OutboxStatusFailed
		}
	})
}

type auditRepo struct {
	s *session
}

func (r *auditRepo) Append(ctx context.Context, entry *model.AuditLog) error {
	return r.s.write(ctx, func(st *state) error {
		prev := ""
		if n := len(st.audit); n > 0 {
			prev = st.audit[n-1].BlockHash
		}
		st.lastAuditID++
		entry.ID = st.lastAuditID
		repository.SealAudit(prev, entry, r.s.now())
		st.audit = append(st.audit, *entry)
		return nil
	})
}

func (r *auditRepo) ListAfter(_ context.Context, afterID int64, limit int) ([]*model.AuditLog, error) {
	var out []*model.AuditLog
	err := r.s.read(func(st *state) error {
		for _, a := range st.audit {
			if a.ID <= afterID {
				continue
			}
			a := a
			out = append(out, &a)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *auditRepo) List(_ context.Context, limit int) ([]*model.AuditLog, error) {
	var out []*model.AuditLog
	err := r.s.read(func(st *state) error {
		for i := len(st.audit) - 1; i >= 0; i-- {
			a := st.audit[i]
			out = append(out, &a)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}
