package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"catalog/internal/config"
	"catalog/internal/domain/model"
	"catalog/internal/domain/pricing"
	"catalog/internal/handler"
	"catalog/internal/infra/peer"
	repo "catalog/internal/repository"
	"catalog/internal/server"
	"catalog/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// メモリ上のProductRepository
type memRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]model.Product
}

func newMemRepo(products ...model.Product) *memRepo {
	r := &memRepo{items: map[int64]model.Product{}}
	for _, p := range products {
		r.nextID++
		p.ID = r.nextID
		r.items[p.ID] = p
	}
	return r
}

func (r *memRepo) FindByID(_ context.Context, id int64) (model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *memRepo) FindAll(_ context.Context) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Product, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) FindAllByName(ctx context.Context, name string) ([]model.Product, error) {
	all, _ := r.FindAll(ctx)
	out := []model.Product{}
	for _, p := range all {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memRepo) Save(_ context.Context, p model.Product) (model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		r.nextID++
		p.ID = r.nextID
	}
	r.items[p.ID] = p
	return p, nil
}

func (r *memRepo) Update(_ context.Context, p model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[p.ID]; !ok {
		return repo.ErrNotFound
	}
	r.items[p.ID] = p
	return nil
}

func (r *memRepo) SaveAll(ctx context.Context, products []model.Product) error {
	for _, p := range products {
		if _, err := r.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *memRepo) DeleteByID(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memRepo) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = map[int64]model.Product{}
	return nil
}

type memTx struct{ r *memRepo }

func (tx memTx) Products() repo.ProductRepository { return tx.r }

func (tx memTx) WithinTx(_ context.Context, fn func(r repo.TxRepos) error) error {
	return fn(tx)
}

// 通知結果を固定で返すピア
type stubCart struct{ err error }

func (s stubCart) PatchProduct(context.Context, model.CartProduct) *peer.Call {
	return peer.Completed(peer.CartPeer, peer.Response{Status: http.StatusOK}, s.err)
}

func (s stubCart) DeleteProduct(context.Context, int64) *peer.Call {
	return peer.Completed(peer.CartPeer, peer.Response{Status: http.StatusOK}, s.err)
}

type stubUser struct{ err error }

func (s stubUser) DeleteFavoriteProduct(context.Context, int64) *peer.Call {
	return peer.Completed(peer.UserPeer, peer.Response{Status: http.StatusNoContent}, s.err)
}

func pelota() model.Product {
	return model.Product{
		Name:        "Pelota",
		Category:    "Juguetes",
		Description: "pelota de futbol",
		Price:       decimal.RequireFromString("19.99"),
		Stock:       24,
	}
}

type env struct {
	e    *echo.Echo
	repo *memRepo
}

func newEnv(t *testing.T, cart stubCart, user stubUser, flags config.FeatureFlags) env {
	t.Helper()
	r := newMemRepo(pelota())
	table := pricing.NewDiscountTable(map[string]int{"Juguetes": 20, "Ropa": 30})
	uc := usecase.NewProductUsecase(r, memTx{r: r}, table, cart, user, flags, zap.NewNop())
	e := server.New(zap.NewNop(), handler.NewProductHandler(uc, zap.NewNop()), handler.NewSystemHandler())
	return env{e: e, repo: r}
}

func defaultEnv(t *testing.T) env {
	return newEnv(t, stubCart{}, stubUser{}, config.FeatureFlags{CallCart: true, CallUser: true})
}

func (v env) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func unreachableErr(name string) error {
	return &peer.UnreachableError{Peer: name, Method: http.MethodDelete, Attempts: 4,
		Err: &peer.StatusError{Status: http.StatusServiceUnavailable}}
}

// =====================
// Reads
// =====================

func TestProductHandler_GetByID(t *testing.T) {
	v := defaultEnv(t)

	rec := v.do(http.MethodGet, "/products/id/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "Pelota", body["name"])
	assert.Equal(t, "19.99", body["price"])
	assert.Equal(t, "15.99", body["final_price"])
	assert.NotContains(t, body, "CreatedAt")
}

func TestProductHandler_GetByID_Errors(t *testing.T) {
	v := defaultEnv(t)

	rec := v.do(http.MethodGet, "/products/id/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "product 99 not found", decode[handler.ErrorResponse](t, rec).Error)

	rec = v.do(http.MethodGet, "/products/id/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductHandler_ListAndByName(t *testing.T) {
	v := defaultEnv(t)

	rec := v.do(http.MethodGet, "/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = v.do(http.MethodGet, "/products/name/Pelota", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = v.do(http.MethodGet, "/products/name/Pepe", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =====================
// Create / Update
// =====================

func TestProductHandler_Create(t *testing.T) {
	v := defaultEnv(t)

	rec := v.do(http.MethodPost, "/products",
		`{"name":"Camiseta","category":"Ropa","description":"talla M","price":12.5,"stock":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	out := decode[handler.CreatedResponse](t, rec)
	assert.Equal(t, int64(2), out.ID)
	assert.Equal(t, "DDBB updated", out.Message)
	assert.Equal(t, http.StatusCreated, out.Status)

	p, err := v.repo.FindByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "12.5", p.Price.String())
}

func TestProductHandler_Create_ValidationFails(t *testing.T) {
	v := defaultEnv(t)

	rec := v.do(http.MethodPost, "/products",
		`{"name":"","category":"Ropa","description":"talla M","price":0,"stock":-1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	msg := decode[handler.ErrorResponse](t, rec).Error
	assert.Contains(t, msg, "name is required")
	assert.Contains(t, msg, "price must be greater than 0")
	assert.Contains(t, msg, "stock must be greater than or equal to 0")
}

func TestProductHandler_Create_UnknownCategory(t *testing.T) {
	v := defaultEnv(t)

	rec := v.do(http.MethodPost, "/products",
		`{"name":"Coche","category":"Coches","description":"rojo","price":10,"stock":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	out := decode[handler.ErrorResponse](t, rec)
	assert.Equal(t, []string{"Juguetes", "Ropa"}, out.Categories)
	assert.Contains(t, out.Error, "Coches")
}

func TestProductHandler_Create_InvalidBody(t *testing.T) {
	v := defaultEnv(t)

	rec := v.do(http.MethodPost, "/products", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductHandler_Update(t *testing.T) {
	v := defaultEnv(t)

	rec := v.do(http.MethodPut, "/products/1",
		`{"name":"Pelota","category":"Juguetes","description":"pelota de baloncesto","price":"25.50","stock":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "updated", decode[handler.SuccessResponse](t, rec).Message)

	p, err := v.repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "pelota de baloncesto", p.Description)
	assert.Equal(t, int64(10), p.Stock)
}

func TestProductHandler_Update_CartUnreachable(t *testing.T) {
	v := newEnv(t, stubCart{err: unreachableErr("cart")}, stubUser{}, config.FeatureFlags{CallCart: true, CallUser: true})

	rec := v.do(http.MethodPut, "/products/1",
		`{"name":"Pelota","category":"Juguetes","description":"nueva","price":20,"stock":10}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, []string{"cart"}, decode[handler.ErrorResponse](t, rec).Peers)

	p, err := v.repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "nueva", p.Description)
}

// =====================
// Stock
// =====================

func TestProductHandler_UpdateStock(t *testing.T) {
	v := defaultEnv(t)

	rec := v.do(http.MethodPut, "/products/updateStock/1", `10`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	p, _ := v.repo.FindByID(context.Background(), 1)
	assert.Equal(t, int64(14), p.Stock)

	rec = v.do(http.MethodPut, "/products/updateStock/1", `30`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = v.do(http.MethodPut, "/products/updateStock/1", `-1`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	p, _ = v.repo.FindByID(context.Background(), 1)
	assert.Equal(t, int64(14), p.Stock)

	rec = v.do(http.MethodPut, "/products/updateStock/99", `1`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = v.do(http.MethodPut, "/products/updateStock/1", `"diez"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductHandler_UpdateStock_RejectsMalformedBody(t *testing.T) {
	cases := []struct {
		name        string
		body        string
		contentType string
	}{
		{"empty", "", echo.MIMEApplicationJSON},
		{"object", `{"units":3}`, echo.MIMEApplicationJSON},
		{"fraction", `2.5`, echo.MIMEApplicationJSON},
		{"plain text", `10`, echo.MIMETextPlain},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := defaultEnv(t)
			req := httptest.NewRequest(http.MethodPut, "/products/updateStock/1", strings.NewReader(tc.body))
			req.Header.Set(echo.HeaderContentType, tc.contentType)
			rec := httptest.NewRecorder()
			v.e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			p, _ := v.repo.FindByID(context.Background(), 1)
			assert.Equal(t, int64(24), p.Stock)
		})
	}
}

// 削除済み商品の在庫更新は404で、行も作り直さない
func TestProductHandler_UpdateStock_DeletedProductStaysDeleted(t *testing.T) {
	v := defaultEnv(t)
	require.NoError(t, v.repo.DeleteByID(context.Background(), 1))

	rec := v.do(http.MethodPut, "/products/updateStock/1", `1`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, err := v.repo.FindByID(context.Background(), 1)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

// =====================
// Delete
// =====================

func TestProductHandler_Delete(t *testing.T) {
	v := defaultEnv(t)

	rec := v.do(http.MethodDelete, "/products/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deleted", decode[handler.SuccessResponse](t, rec).Message)

	rec = v.do(http.MethodDelete, "/products/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductHandler_Delete_UserUnreachable(t *testing.T) {
	v := newEnv(t, stubCart{}, stubUser{err: unreachableErr("user")}, config.FeatureFlags{CallCart: false, CallUser: true})

	rec := v.do(http.MethodDelete, "/products/1", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	out := decode[handler.ErrorResponse](t, rec)
	assert.Equal(t, []string{"user"}, out.Peers)
	assert.Contains(t, out.Error, "user service unreachable")

	_, err := v.repo.FindByID(context.Background(), 1)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

// =====================
// JSON load / categories / system
// =====================

func TestProductHandler_LoadJSON(t *testing.T) {
	v := defaultEnv(t)
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`[{"name":"Playmobil","category":"Juguetes","description":"barco","price":39.95,"stock":100},
		  {"name":"Wonder","category":"Juguetes","description":"muñeca","price":9.99,"stock":90}]`), 0o600))

	rec := v.do(http.MethodPost, "/products/JSON_load?path="+path, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[handler.LoadResponse](t, rec).Count)

	all, _ := v.repo.FindAll(context.Background())
	assert.Len(t, all, 2)

	rec = v.do(http.MethodPost, "/products/JSON_load?path="+filepath.Join(t.TempDir(), "missing.json"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	all, _ = v.repo.FindAll(context.Background())
	assert.Len(t, all, 2)
}

func TestProductHandler_Categories(t *testing.T) {
	v := defaultEnv(t)

	rec := v.do(http.MethodGet, "/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"Juguetes": 20, "Ropa": 30}, decode[map[string]int](t, rec))
}

func TestSystemHandler(t *testing.T) {
	v := defaultEnv(t)

	rec := v.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])

	rec = v.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
