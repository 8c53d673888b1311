package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventProjectAssigned  = "project.assigned"
	EventProjectFinalized = "project.finalized"
	EventProjectApproved  = "project.approved"
	EventProjectRejected  = "project.rejected"

	EventWithdrawalRequested = "withdrawal.requested"
	EventWithdrawalApproved  = "withdrawal.approved"
	EventWithdrawalDeclined  = "withdrawal.declined"

	ledgerEventPrefix = "wallet."
)

// Event 写入 outbox 的领域事件，EventKey 作为 Kafka 分区键
type Event interface {
	EventType() string
	EventKey() string
}

// LedgerEvent 每笔钱包流水一条，按员工分区保证同一员工的流水有序
type LedgerEvent struct {
	Type            string    `json:"event_type"`
	TransactionNo   string    `json:"transaction_no"`
	TransactionType string    `json:"transaction_type"`
	EmployeeID      string    `json:"employee_id"`
	Amount          string    `json:"amount"`
	BalanceAfter    string    `json:"balance_after"`
	Timestamp       time.Time `json:"timestamp"`
}

func NewLedgerEvent(t *WalletTransaction) *LedgerEvent {
	return &LedgerEvent{
		Type:            ledgerEventPrefix + t.Type,
		TransactionNo:   t.TransactionNo,
		TransactionType: t.Type,
		EmployeeID:      t.EmployeeID,
		Amount:          t.Amount.StringFixed(2),
		BalanceAfter:    t.BalanceAfter.StringFixed(2),
		Timestamp:       t.CreatedAt,
	}
}

func (e *LedgerEvent) EventType() string { return e.Type }
func (e *LedgerEvent) EventKey() string  { return e.EmployeeID }

type ProjectEvent struct {
	Type         string    `json:"event_type"`
	ProjectID    string    `json:"project_id"`
	EmployeeID   string    `json:"employee_id,omitempty"`
	Status       string    `json:"status"`
	PayoutAmount string    `json:"payout_amount,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewProjectEvent(eventType string, p *Project, at time.Time) *ProjectEvent {
	ev := &ProjectEvent{
		Type:      eventType,
		ProjectID: p.ID,
		Status:    p.Status,
		Timestamp: at,
	}
	if p.AssignedTo != nil {
		ev.EmployeeID = *p.AssignedTo
	}
	if eventType == EventProjectApproved {
		ev.PayoutAmount = p.PayoutAmount.StringFixed(2)
	}
	return ev
}

func (e *ProjectEvent) EventType() string { return e.Type }
func (e *ProjectEvent) EventKey() string  { return e.ProjectID }

type WithdrawalEvent struct {
	Type         string    `json:"event_type"`
	WithdrawalID string    `json:"withdrawal_id"`
	EmployeeID   string    `json:"employee_id"`
	Amount       string    `json:"amount"`
	TDSAmount    string    `json:"tds_amount"`
	NetAmount    string    `json:"net_amount"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewWithdrawalEvent(eventType string, w *WithdrawalRequest, at time.Time) *WithdrawalEvent {
	return &WithdrawalEvent{
		Type:         eventType,
		WithdrawalID: w.ID,
		EmployeeID:   w.EmployeeID,
		Amount:       fixed(w.Amount),
		TDSAmount:    fixed(w.TDSAmount),
		NetAmount:    fixed(w.NetAmount),
		Status:       w.Status,
		Reason:       w.RejectionReason,
		Timestamp:    at,
	}
}

func (e *WithdrawalEvent) EventType() string { return e.Type }
func (e *WithdrawalEvent) EventKey() string  { return e.WithdrawalID }

func fixed(d decimal.Decimal) string {
	return d.StringFixed(2)
}
