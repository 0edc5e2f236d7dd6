package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipe-ingest/internal/pkg/common"
)

// BodyLimits 請求體上限，multipart 上傳與其他請求分開計算
type BodyLimits struct {
	JSON      int64
	Multipart int64
}

func (l BodyLimits) limitFor(r *http.Request) int64 {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return l.Multipart
	}
	return l.JSON
}

// BodySizeLimit 依 Content-Type 套用上限；宣告長度超過時直接拒絕，未宣告時由 MaxBytesReader 截斷
func BodySizeLimit(limits BodyLimits) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := limits.limitFor(c.Request)
		if limit <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}

		if c.Request.ContentLength > limit {
			common.LogWarn("Request body too large",
				zap.Int64("content_length", c.Request.ContentLength),
				zap.Int64("limit", limit),
				zap.String("content_type", c.ContentType()),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, common.ErrorResponse{
				Code:    common.ErrSourceTooLarge.Code,
				Message: common.ErrSourceTooLarge.Message,
				Details: fmt.Sprintf("limit %d bytes", limit),
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
