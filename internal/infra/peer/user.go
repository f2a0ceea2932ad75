package peer

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

const UserPeer = "user"

// UserClient: DELETE /favorite/product/{id}
type UserClient struct {
	client *Client
}

func NewUserClient(baseURL string, logger *zap.Logger, opts ...Option) *UserClient {
	return &UserClient{client: NewClient(UserPeer, baseURL, logger, opts...)}
}

// お気に入りから商品を削除
func (c *UserClient) DeleteFavoriteProduct(ctx context.Context, id int64) *Call {
	return c.client.Notify(ctx, http.MethodDelete, fmt.Sprintf("/favorite/product/%d", id), nil)
}
