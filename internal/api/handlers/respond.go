// Package handlers HTTP 處理器共用的回應格式
package handlers

import (
	"context"
	"errors"
	"net/http"

	"recipe-ingest/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StatusClientClosed 用戶端已中斷連線
const StatusClientClosed = 499

// Error 將錯誤轉成 {code, message}，除錯模式附上原始錯誤
func Error(c *gin.Context, err error) {
	status := common.StatusOf(err)
	resp := common.ErrorResponse{
		Code:    common.CodeOf(err),
		Message: common.ErrInternalError.Message,
	}
	var ce *common.CustomError
	if errors.As(err, &ce) {
		resp.Message = ce.Message
	}
	if errors.Is(err, context.Canceled) {
		status = StatusClientClosed
		resp.Code = "CANCELLED"
		resp.Message = "請求已取消"
	}
	if gin.Mode() == gin.DebugMode {
		resp.Details = err.Error()
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.Int("status", status),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", requestid.Get(c)),
	}
	if status >= http.StatusInternalServerError {
		common.LogError("請求處理失敗", fields...)
	} else {
		common.LogDebug("請求被拒絕", fields...)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

// BadRequest 請求格式錯誤
func BadRequest(c *gin.Context, err error) {
	Error(c, common.Wrap(common.ErrInvalidRequest, err))
}

// Written 寫入成功或已排入離線佇列
func Written(c *gin.Context, queued bool, body any) {
	if queued {
		c.JSON(http.StatusAccepted, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
