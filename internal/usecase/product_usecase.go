package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"catalog/internal/domain/model"
	"catalog/internal/domain/pricing"
	"catalog/internal/infra/peer"
	repo "catalog/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// カートサービスへの通知
type CartNotifier interface {
	PatchProduct(ctx context.Context, p model.CartProduct) *peer.Call
	DeleteProduct(ctx context.Context, id int64) *peer.Call
}

// ユーザーサービス（お気に入り）への通知
type FavoritesNotifier interface {
	DeleteFavoriteProduct(ctx context.Context, id int64) *peer.Call
}

// 外部サービス呼び出しのON/OFF（config.FeatureFlags）
type PeerToggles interface {
	CallCartEnabled() bool
	CallUserEnabled() bool
}

type ProductUsecase struct {
	productRepo repo.ProductRepository
	txManager   repo.TransactionManager
	discounts   pricing.DiscountTable
	cart        CartNotifier
	user        FavoritesNotifier
	toggles     PeerToggles
	logger      *zap.Logger
}

// DI
func NewProductUsecase(
	productRepo repo.ProductRepository,
	txManager repo.TransactionManager,
	discounts pricing.DiscountTable,
	cart CartNotifier,
	user FavoritesNotifier,
	toggles PeerToggles,
	logger *zap.Logger,
) *ProductUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductUsecase{
		productRepo: productRepo,
		txManager:   txManager,
		discounts:   discounts,
		cart:        cart,
		user:        user,
		toggles:     toggles,
		logger:      logger,
	}
}

// 作成・更新の入力
type ProductInput struct {
	Name        string
	Category    string
	Description string
	Price       decimal.Decimal
	Stock       int64
}

func (u *ProductUsecase) GetAllProducts(ctx context.Context) ([]model.Product, error) {
	products, err := u.productRepo.FindAll(ctx)
	if err != nil {
		return nil, wrapError(KindInternal, "db error", err)
	}
	return u.discounts.ApplyAll(products), nil
}

func (u *ProductUsecase) GetProductByID(ctx context.Context, id int64) (model.Product, error) {
	p, err := u.findProduct(ctx, id)
	if err != nil {
		return model.Product{}, err
	}
	u.discounts.Apply(&p)
	return p, nil
}

// 同名の商品が1件もなければNotFound
func (u *ProductUsecase) GetProductsByName(ctx context.Context, name string) ([]model.Product, error) {
	products, err := u.productRepo.FindAllByName(ctx, name)
	if err != nil {
		return nil, wrapError(KindInternal, "db error", err)
	}
	if len(products) == 0 {
		return nil, newError(KindNotFound, fmt.Sprintf("product with name %s not found", name))
	}
	return u.discounts.ApplyAll(products), nil
}

// SaveProductは新しい商品を登録し、採番されたIDを返す
func (u *ProductUsecase) SaveProduct(ctx context.Context, in ProductInput) (int64, error) {
	if err := u.requireCategory(in.Category); err != nil {
		return 0, err
	}

	p, err := u.productRepo.Save(ctx, model.Product{
		Name:        strings.TrimSpace(in.Name),
		Category:    in.Category,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
	})
	if err != nil {
		return 0, storeError(err)
	}
	return p.ID, nil
}

// UpdateProductはDBを更新したあと、カートの商品スナップショットも更新する。
// カート通知が失敗してもDBの更新は戻さない。
func (u *ProductUsecase) UpdateProduct(ctx context.Context, id int64, in ProductInput) error {
	if err := u.requireCategory(in.Category); err != nil {
		return err
	}

	p, err := u.findProduct(ctx, id)
	if err != nil {
		return err
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Category = in.Category
	p.Description = in.Description
	p.Price = in.Price
	p.Stock = in.Stock

	if err := u.updateProduct(ctx, p); err != nil {
		return err
	}

	var calls []*peer.Call
	if u.toggles.CallCartEnabled() {
		calls = append(calls, u.cart.PatchProduct(ctx, model.NewCartProduct(p)))
	}
	return u.awaitPeers(ctx, "updated", id, calls)
}

// AdjustStockは販売数だけ在庫を減らす。外部サービスには通知しない。
// 同時更新は後勝ち。
func (u *ProductUsecase) AdjustStock(ctx context.Context, id int64, unitsSold int64) error {
	p, err := u.findProduct(ctx, id)
	if err != nil {
		return err
	}

	if unitsSold < 0 {
		return newError(KindInvalidQuantity, fmt.Sprintf("invalid quantity %d: must be >= 0", unitsSold))
	}
	if p.Stock-unitsSold < 0 {
		return newError(KindInvalidQuantity,
			fmt.Sprintf("invalid quantity %d: only %d units of product %d in stock", unitsSold, p.Stock, id))
	}

	p.Stock -= unitsSold
	return u.updateProduct(ctx, p)
}

// DeleteProductはDBから削除したあと、カートとお気に入りに個別に通知する。
// 片方の失敗はもう片方に影響しない。
func (u *ProductUsecase) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := u.findProduct(ctx, id); err != nil {
		return err
	}

	if err := u.productRepo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return newError(KindNotFound, fmt.Sprintf("product %d not found", id))
		}
		return wrapError(KindInternal, "db error", err)
	}

	var calls []*peer.Call
	if u.toggles.CallCartEnabled() {
		calls = append(calls, u.cart.DeleteProduct(ctx, id))
	}
	if u.toggles.CallUserEnabled() {
		calls = append(calls, u.user.DeleteFavoriteProduct(ctx, id))
	}
	return u.awaitPeers(ctx, "deleted", id, calls)
}

// LoadProductsFromJSONはファイルの商品一覧で全件を置き換える。
// ファイルを読み切るまでは既存データに触らない。
func (u *ProductUsecase) LoadProductsFromJSON(ctx context.Context, path string) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, newError(KindInvalidInput, "path required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, wrapError(KindInvalidInput, fmt.Sprintf("cannot read %s", path), err)
	}

	var products []model.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return 0, wrapError(KindInvalidInput, fmt.Sprintf("cannot parse %s", path), err)
	}
	for i := range products {
		if err := u.requireCategory(products[i].Category); err != nil {
			return 0, err
		}
		products[i].FinalPrice = decimal.Decimal{}
	}

	err = u.txManager.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Products().DeleteAll(ctx); err != nil {
			return err
		}
		if len(products) == 0 {
			return nil
		}
		return r.Products().SaveAll(ctx, products)
	})
	if err != nil {
		return 0, storeError(err)
	}

	u.logger.Info("products loaded from file", zap.String("path", path), zap.Int("count", len(products)))
	return len(products), nil
}

// 割引表（診断用）
func (u *ProductUsecase) Categories() map[string]int {
	return u.discounts.Discounts()
}

func (u *ProductUsecase) findProduct(ctx context.Context, id int64) (model.Product, error) {
	p, err := u.productRepo.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, newError(KindNotFound, fmt.Sprintf("product %d not found", id))
	}
	if err != nil {
		return model.Product{}, wrapError(KindInternal, "db error", err)
	}
	return p, nil
}

// 読んでから書くまでに削除された行は作り直さない
func (u *ProductUsecase) updateProduct(ctx context.Context, p model.Product) error {
	err := u.productRepo.Update(ctx, p)
	if errors.Is(err, repo.ErrNotFound) {
		return newError(KindNotFound, fmt.Sprintf("product %d not found", p.ID))
	}
	if err != nil {
		return storeError(err)
	}
	return nil
}

func (u *ProductUsecase) requireCategory(category string) error {
	err := u.discounts.RequireCategory(category)
	if err == nil {
		return nil
	}
	var cnf *pricing.CategoryNotFoundError
	if errors.As(err, &cnf) {
		return &Error{Kind: KindCategoryNotFound, Message: cnf.Error(), Categories: cnf.Allowed}
	}
	return wrapError(KindInternal, "category lookup", err)
}

// 全部の通知が終わるまで待つ（途中で打ち切らない）。
// 呼び出し元が切断しても通知は最後まで待つ。
func (u *ProductUsecase) awaitPeers(ctx context.Context, action string, id int64, calls []*peer.Call) error {
	waitCtx := context.WithoutCancel(ctx)

	var (
		errs  error
		peers []string
	)
	for _, call := range calls {
		if _, err := call.Await(waitCtx); err != nil {
			errs = multierr.Append(errs, err)
			peers = append(peers, call.Peer())
		}
	}
	if errs == nil {
		return nil
	}

	u.logger.Warn("peer notification failed",
		zap.Int64("product_id", id),
		zap.String("action", action),
		zap.Strings("peers", peers),
		zap.Error(errs),
	)
	return &Error{
		Kind:    KindPeerUnreachable,
		Message: fmt.Sprintf("product %d %s, but %s service unreachable", id, action, strings.Join(peers, ", ")),
		Peers:   peers,
		Err:     errs,
	}
}

func storeError(err error) error {
	if errors.Is(err, repo.ErrConstraint) {
		return wrapError(KindInvalidInput, "constraint violation", err)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return wrapError(KindNotFound, "not found", err)
	}
	return wrapError(KindInternal, "db error", err)
}
