package response

import (
	"errors"
	"net/http"

	"payoutledger/internal/apperr"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeConflict      = 409
	CodeServerError   = 500
	CodeBusy          = 503
	CodeBusinessError = 1000
)

const (
	CodeBalanceNotEnough = 1003
)

type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	ErrorCode string      `json:"error,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func abort(c *gin.Context, status int, resp Response) {
	c.AbortWithStatusJSON(status, resp)
}

func ParamError(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, Response{Code: CodeParamError, Message: message, ErrorCode: "INVALID_ARGUMENT"})
}

func Unauthorized(c *gin.Context, message string) {
	abort(c, http.StatusUnauthorized, Response{Code: CodeUnauthorized, Message: message, ErrorCode: "UNAUTHENTICATED"})
}

func ServerError(c *gin.Context) {
	abort(c, http.StatusInternalServerError, Response{Code: CodeServerError, Message: "系统繁忙"})
}

// Status 业务错误分类对应的 HTTP 状态码和响应码
func Status(kind apperr.Kind) (httpStatus, code int) {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, CodeParamError
	case apperr.KindAuthorization:
		return http.StatusForbidden, CodeForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound, CodeNotFound
	case apperr.KindConflict:
		return http.StatusConflict, CodeConflict
	case apperr.KindInsufficientFunds:
		return http.StatusPaymentRequired, CodeBalanceNotEnough
	case apperr.KindConcurrencyTimeout:
		return http.StatusServiceUnavailable, CodeBusy
	default:
		return http.StatusInternalServerError, CodeServerError
	}
}

// Error 按错误分类输出，未分类的错误不暴露细节
func Error(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperr.KindInternal {
		ServerError(c)
		return
	}

	status, code := Status(appErr.Kind)
	abort(c, status, Response{
		Code:      code,
		Message:   appErr.Message,
		ErrorCode: appErr.Code,
		Retryable: appErr.Kind.Retryable(),
	})
}
