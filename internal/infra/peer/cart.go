package peer

import (
	"context"
	"fmt"
	"net/http"

	"catalog/internal/domain/model"

	"go.uber.org/zap"
)

const CartPeer = "cart"

// CartClient: PATCH/DELETE /products/{id}
type CartClient struct {
	client *Client
}

func NewCartClient(baseURL string, logger *zap.Logger, opts ...Option) *CartClient {
	return &CartClient{client: NewClient(CartPeer, baseURL, logger, opts...)}
}

// カート内の商品スナップショットを更新
func (c *CartClient) PatchProduct(ctx context.Context, p model.CartProduct) *Call {
	return c.client.Notify(ctx, http.MethodPatch, fmt.Sprintf("/products/%d", p.ID), p)
}

// カートから商品を削除
func (c *CartClient) DeleteProduct(ctx context.Context, id int64) *Call {
	return c.client.Notify(ctx, http.MethodDelete, fmt.Sprintf("/products/%d", id), nil)
}
