package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/gofrs/uuid/v5"

	"job-recommender/internal/logger"
)

// HeaderRequestID 请求ID头
const HeaderRequestID = "X-Request-ID"

// RequestID 为每个请求分配请求ID并把带 request_id 字段的日志记录器放入上下文
func RequestID() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		requestID := string(c.Request.Header.Peek(HeaderRequestID))
		if requestID == "" {
			if id, err := uuid.NewV7(); err == nil {
				requestID = id.String()
			} else {
				requestID = uuid.Must(uuid.NewV4()).String()
			}
		}
		c.Response.Header.Set(HeaderRequestID, requestID)
		c.Set("request_id", requestID)

		reqLogger := logger.Logger.With().
			Str("request_id", requestID).
			Str("path", string(c.Path())).
			Logger()
		c.Next(reqLogger.WithContext(ctx))
	}
}
