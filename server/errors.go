package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/idgen"
	"github.com/ceyewan/idforge/metrics"
	"github.com/ceyewan/idforge/xerrors"
)

// errorBody 错误响应
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// 错误码
const (
	CodeInvalidArgument = "invalid_argument"
	CodeClockRegression = "clock_regression"
	CodeUnavailable     = "unavailable"
	CodeRateLimited     = "rate_limited"
	CodeNotFound        = "not_found"
	CodeInternal        = "internal"
)

// abortWithError 将错误映射为 HTTP 状态码并终止请求。
// 时钟回拨与租约丢失都是可重试的，返回 503 并带 Retry-After
func abortWithError(c *gin.Context, logger clog.Logger, err error) {
	status, code := http.StatusInternalServerError, CodeInternal

	var regression *idgen.ClockRegressionError
	switch {
	case errors.As(err, &regression):
		status, code = http.StatusServiceUnavailable, CodeClockRegression
		c.Header("Retry-After", retryAfterSeconds(regression))
	case xerrors.Is(err, idgen.ErrLeaseLost), xerrors.Is(err, idgen.ErrNodeClosed), xerrors.Is(err, xerrors.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, CodeUnavailable
		c.Header("Retry-After", "1")
	case xerrors.Is(err, xerrors.ErrInvalidInput):
		status, code = http.StatusBadRequest, CodeInvalidArgument
	case xerrors.Is(err, xerrors.ErrNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	}

	c.Set(metrics.GinErrorCodeKey, code)
	ctx := c.Request.Context()
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", clog.Error(err), clog.Int("status", status))
	} else {
		logger.DebugContext(ctx, "request rejected", clog.Error(err), clog.Int("status", status))
	}

	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{
		Code:      code,
		Message:   err.Error(),
		RequestID: clog.RequestIDFrom(ctx),
	}})
}

// retryAfterSeconds Retry-After 只能是整数秒，向上取整
func retryAfterSeconds(e *idgen.ClockRegressionError) string {
	secs := int64(math.Ceil(e.RetryAfter().Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
