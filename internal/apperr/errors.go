package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误分类，决定调用方的处理方式（是否可重试、如何展示）
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindInsufficientFunds
	KindConcurrencyTimeout
	KindAuthorization
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindConflict:
		return "CONFLICT"
	case KindInsufficientFunds:
		return "INSUFFICIENT_FUNDS"
	case KindConcurrencyTimeout:
		return "CONCURRENCY_TIMEOUT"
	case KindAuthorization:
		return "AUTHORIZATION"
	case KindNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}

// Retryable 只有并发超时是瞬时错误，可以退避后重试
func (k Kind) Retryable() bool {
	return k == KindConcurrencyTimeout
}

// Error 业务错误
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按 Code 匹配，带详情的副本依然能和哨兵错误比较
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage 返回带详细描述的副本
func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...), Err: e.Err}
}

// Wrap 返回包装了底层错误的副本
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: err}
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidArgument = newError(KindValidation, "INVALID_ARGUMENT", "参数错误")
	ErrBelowMinimum    = newError(KindValidation, "BELOW_MINIMUM", "提现金额低于最低限额")
	ErrAboveMaximum    = newError(KindValidation, "ABOVE_MAXIMUM", "提现金额超过最高限额")
	ErrNoBankDetails   = newError(KindValidation, "NO_BANK_DETAILS", "未绑定银行账户")

	ErrAlreadyAssigned   = newError(KindConflict, "ALREADY_ASSIGNED", "项目已分配")
	ErrBatchLocked       = newError(KindConflict, "BATCH_LOCKED", "项目已提交审核，不能再修改")
	ErrNotPending        = newError(KindConflict, "NOT_PENDING", "提现申请不是待审核状态")
	ErrTooManyPending    = newError(KindConflict, "TOO_MANY_PENDING", "待审核的提现申请过多")
	ErrInvalidTransition = newError(KindConflict, "INVALID_TRANSITION", "状态流转不合法")
	ErrUsernameTaken     = newError(KindConflict, "USERNAME_TAKEN", "用户名已存在")
	ErrNotAssigned       = newError(KindConflict, "NOT_ASSIGNED", "项目尚未分配")

	ErrInsufficientFunds = newError(KindInsufficientFunds, "INSUFFICIENT_FUNDS", "余额不足")

	ErrConcurrencyTimeout = newError(KindConcurrencyTimeout, "CONCURRENCY_TIMEOUT", "系统繁忙，请稍后重试")

	ErrUnauthorized       = newError(KindAuthorization, "UNAUTHORIZED", "无权执行该操作")
	ErrEmployeeBanned     = newError(KindAuthorization, "EMPLOYEE_BANNED", "账号已被封禁")
	ErrInvalidCredentials = newError(KindAuthorization, "INVALID_CREDENTIALS", "用户名或密码错误")

	ErrEmployeeNotFound   = newError(KindNotFound, "EMPLOYEE_NOT_FOUND", "员工不存在")
	ErrProjectNotFound    = newError(KindNotFound, "PROJECT_NOT_FOUND", "项目不存在")
	ErrWorkItemNotFound   = newError(KindNotFound, "WORK_ITEM_NOT_FOUND", "任务条目不存在")
	ErrWithdrawalNotFound = newError(KindNotFound, "WITHDRAWAL_NOT_FOUND", "提现申请不存在")
)

// KindOf 提取错误分类，非业务错误一律视为内部错误
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable 调用方是否可以退避重试
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}
