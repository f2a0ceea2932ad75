package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"catalog/internal/middleware"
	"catalog/internal/validator"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// RouteRegistrarは各handlerのRegisterRoutes
type RouteRegistrar interface {
	RegisterRoutes(e *echo.Echo)
}

// echoを組み立ててルートを登録する
func New(logger *zap.Logger, handlers ...RouteRegistrar) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.New()

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.AccessLog(logger))

	for _, h := range handlers {
		h.RegisterRoutes(e)
	}
	return e
}

// Runはctxが終わるまでサーバーを動かし、そのあとshutdownTimeout以内に止める
func Run(ctx context.Context, e *echo.Echo, addr string, shutdownTimeout time.Duration, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
