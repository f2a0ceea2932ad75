package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog/internal/config"
	"catalog/internal/domain/model"
	"catalog/internal/domain/pricing"
	"catalog/internal/handler"
	"catalog/internal/infra/db"
	"catalog/internal/infra/peer"
	infraRepo "catalog/internal/infra/repository"
	"catalog/internal/obs"
	"catalog/internal/server"
	"catalog/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	//.envはあれば読む
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := obs.NewLogger(cfg.IsProd())
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//メトリクス
	provider, err := obs.SetupMetrics("catalog")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.ShutdownMetrics(shutdownCtx, provider)
	}()
	metrics, err := obs.NewMetrics(nil)
	if err != nil {
		return err
	}

	//カテゴリ割引表（起動時に1回だけ読む）
	discounts, err := config.LoadCategories(cfg.CategoriesFile)
	if err != nil {
		return err
	}
	table := pricing.NewDiscountTable(discounts)

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := gormDB.AutoMigrate(&model.Product{}); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//外部サービス
	policy := peer.DefaultPolicy()
	policy.MaxRetries = cfg.PeerMaxRetries
	policy.InitialInterval = cfg.PeerInitialBackoff
	policy.AttemptTimeout = cfg.PeerAttemptTimeout
	cart := peer.NewCartClient(cfg.CartURL, logger, peer.WithPolicy(policy), peer.WithMetrics(metrics))
	user := peer.NewUserClient(cfg.UserURL, logger, peer.WithPolicy(policy), peer.WithMetrics(metrics))

	//Usecase生成
	productUC := usecase.NewProductUsecase(productRepo, txManager, table, cart, user, cfg.Flags, logger)

	//Handler生成
	e := server.New(logger,
		handler.NewProductHandler(productUC, logger),
		handler.NewSystemHandler(),
	)

	logger.Info("config loaded",
		zap.String("env", cfg.GoEnv),
		zap.String("cart_url", cfg.CartURL),
		zap.String("user_url", cfg.UserURL),
		zap.Bool("call_cart", cfg.Flags.CallCartEnabled()),
		zap.Bool("call_user", cfg.Flags.CallUserEnabled()),
		zap.Int("categories", len(discounts)),
	)

	//Server起動
	return server.Run(ctx, e, cfg.Addr(), cfg.ShutdownTimeout, logger)
}
