package repository

import (
	"context"
	"time"

	"payoutledger/internal/model"

	"gorm.io/gorm"
)

type OutboxRepo struct {
	db *gorm.DB
}

func NewOutboxRepo(db *gorm.DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

func (r *OutboxRepo) Create(ctx context.Context, msg *model.OutboxMessage) error {
	return wrap("outbox.Create", r.db.WithContext(ctx).Create(msg).Error)
}

func (r *OutboxRepo) ListPending(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	db := r.db.WithContext(ctx).Where("status = ?", model.OutboxStatusPending)
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Order("id ASC").Find(&messages).Error
	return messages, wrap("outbox.ListPending", err)
}

// MarkSent 只更新仍为 PENDING 的消息
func (r *OutboxRepo) MarkSent(ctx context.Context, id int64, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusPending).
		Updates(map[string]interface{}{
			"status":     model.OutboxStatusSent,
			"sent_at":    at,
			"last_error": "",
		}).Error
	return wrap("outbox.MarkSent", err)
}

func (r *OutboxRepo) RecordFailure(ctx context.Context, id int64, lastError string, exhausted bool) error {
	updates := map[string]interface{}{
		"retry_count": gorm.Expr("retry_count + 1"),
		"last_error":  lastError,
	}
	if exhausted {
		updates["status"] = model.OutboxStatusFailed
	}
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusPending).
		Updates(updates).Error
	return wrap("outbox.RecordFailure", err)
}
