package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	HeaderRequestID = "X-Request-Id"
	CtxRequestIDKey = "request_id" // string
)

type ctxKey int

const ctxKeyRequestID ctxKey = iota

// RequestIDFromContext はリクエストIDを返す（なければ空文字）
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// ヘッダのX-Request-Idを引き継ぐ。なければuuidを振る。
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}

			c.Response().Header().Set(HeaderRequestID, id)
			c.Set(CtxRequestIDKey, id)
			c.SetRequest(req.WithContext(context.WithValue(req.Context(), ctxKeyRequestID, id)))

			return next(c)
		}
	}
}
