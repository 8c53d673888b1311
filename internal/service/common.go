package service

import (
	"context"
	"errors"
	"fmt"

	"payoutledger/internal/apperr"
	"payoutledger/internal/model"
	"payoutledger/internal/repository"
)

// translate 把存储层错误映射为业务错误，业务错误原样透传
func translate(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, repository.ErrLockTimeout) {
		return apperr.ErrConcurrencyTimeout.Wrap(err)
	}
	return err
}

// notFoundAs 记录不存在时返回指定的业务错误
func notFoundAs(err error, target *apperr.Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return translate(err)
}

func runTx(ctx context.Context, store repository.Store, fn func(uow repository.UnitOfWork) error) error {
	return translate(store.Transaction(ctx, fn))
}

// writeEvent 与业务数据同事务写入 outbox
func writeEvent(ctx context.Context, uow repository.UnitOfWork, topic string, ev model.Event) error {
	msg, err := model.NewOutboxMessage(topic, ev)
	if err != nil {
		return err
	}
	if err := uow.Outbox().Create(ctx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}

// writeAudit prev_hash 冲突说明另一个事务先追加了审计记录，按并发超时返回由调用方重试
func writeAudit(ctx context.Context, uow repository.UnitOfWork, actorID, action, details string) error {
	err := uow.Audit().Append(ctx, &model.AuditLog{ActorID: actorID, Action: action, Details: details})
	if errors.Is(err, repository.ErrDuplicate) {
		return apperr.ErrConcurrencyTimeout.Wrap(err)
	}
	if err != nil {
		return fmt.Errorf("写入审计日志失败: %w", err)
	}
	return nil
}
