package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"payoutledger/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, err error) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Error(c, err)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.ErrBelowMinimum, http.StatusBadRequest, "BELOW_MINIMUM"},
		{apperr.ErrUnauthorized, http.StatusForbidden, "UNAUTHORIZED"},
		{apperr.ErrProjectNotFound, http.StatusNotFound, "PROJECT_NOT_FOUND"},
		{apperr.ErrBatchLocked.WithMessage("locked"), http.StatusConflict, "BATCH_LOCKED"},
		{apperr.ErrInsufficientFunds, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"},
		{fmt.Errorf("wrapped: %w", apperr.ErrNotPending), http.StatusConflict, "NOT_PENDING"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w, resp := render(t, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, resp.ErrorCode)
			assert.False(t, resp.Retryable)
		})
	}
}

func TestConcurrencyTimeoutIsRetryable(t *testing.T) {
	w, resp := render(t, apperr.ErrConcurrencyTimeout.Wrap(errors.New("lock wait")))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, CodeBusy, resp.Code)
	assert.True(t, resp.Retryable)
}

func TestUnclassifiedErrorHidesDetails(t *testing.T) {
	w, resp := render(t, errors.New("dial tcp 10.0.0.1:3306: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "系统繁忙", resp.Message)
	assert.Empty(t, resp.ErrorCode)
}
