package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// 1リクエスト1行のアクセスログ
func AccessLog(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				//ステータスを確定させてから記録する
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", res.Status),
				zap.Int64("bytes", res.Size),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", RequestIDFromContext(req.Context())),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			if res.Status >= 500 {
				logger.Warn("http_request", fields...)
			} else {
				logger.Info("http_request", fields...)
			}
			return nil
		}
	}
}
