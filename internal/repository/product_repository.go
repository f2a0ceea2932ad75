package repository

import (
	"catalog/internal/domain/model"
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// DB側の制約（stock >= 0 など）に違反した
var ErrConstraint = errors.New("constraint violation")

// 商品の永続化（保存・取得）だけを約束。
// IDはSaveで採番される。既存行の変更はUpdate（行がなければErrNotFound）。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
	FindAll(ctx context.Context) ([]model.Product, error)
	FindAllByName(ctx context.Context, name string) ([]model.Product, error)

	Save(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
	SaveAll(ctx context.Context, products []model.Product) error
	DeleteByID(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
}
