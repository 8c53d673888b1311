package service

import (
	"context"
	"errors"
	"fmt"

	"payoutledger/internal/apperr"
	"payoutledger/internal/model"
	"payoutledger/internal/repository"
)

const SequenceEmployee = "employee"

// SequenceGenerator 发号器，在调用方事务内锁定计数器行，事务回滚时号码一起回滚
type SequenceGenerator struct {
	start int64
}

func NewSequenceGenerator(start int64) *SequenceGenerator {
	return &SequenceGenerator{start: start}
}

// Next 返回 category 的下一个号码，计数器不存在时以 start 初始化，首个号码为 start+1
func (g *SequenceGenerator) Next(ctx context.Context, uow repository.UnitOfWork, category string) (int64, error) {
	counter, err := uow.Sequences().GetForUpdate(ctx, category)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		counter = &model.SequenceCounter{Category: category, LastValue: g.start}
		if err := uow.Sequences().Create(ctx, counter); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				// 另一个事务先完成了初始化，本事务整体回滚，由调用方重试
				return 0, apperr.ErrConcurrencyTimeout.Wrap(err)
			}
			return 0, translate(fmt.Errorf("初始化计数器失败: %w", err))
		}
	case err != nil:
		return 0, translate(fmt.Errorf("读取计数器失败: %w", err))
	}

	next := counter.LastValue + 1
	if err := uow.Sequences().Update(ctx, category, next); err != nil {
		return 0, translate(fmt.Errorf("更新计数器失败: %w", err))
	}
	return next, nil
}

// FormatEmployeeCode 员工工号，例如 PPX-CM-0008852
func FormatEmployeeCode(gender string, n int64) string {
	return fmt.Sprintf("PPX-C%s-%07d", gender, n)
}
