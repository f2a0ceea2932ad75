package repository

import (
	"context"
	"errors"
	"time"

	"catalog/internal/domain/model"
	repo "catalog/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// postgres SQLSTATE
const (
	pgCheckViolation   = "23514"
	pgNotNullViolation = "23502"
)

const saveAllBatchSize = 100

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// IDで商品を取得
func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// 全件（id順）
func (r *ProductGormRepository) FindAll(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := r.db.WithContext(ctx).Order("id asc").Find(&products).Error; err != nil {
		return []model.Product{}, err
	}
	return products, nil
}

// 名前の完全一致
func (r *ProductGormRepository) FindAllByName(ctx context.Context, name string) ([]model.Product, error) {
	var products []model.Product
	if err := r.db.WithContext(ctx).Where("name = ?", name).Order("id asc").Find(&products).Error; err != nil {
		return []model.Product{}, err
	}
	return products, nil
}

// 新規作成（IDはDBが採番）
func (r *ProductGormRepository) Save(ctx context.Context, p model.Product) (model.Product, error) {
	p.ID = 0
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Product{}, translate(err)
	}
	return p, nil
}

// 既存行の更新。削除済みなら作り直さずErrNotFound。
func (r *ProductGormRepository) Update(ctx context.Context, p model.Product) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"name":        p.Name,
		"category":    p.Category,
		"description": p.Description,
		"price":       p.Price,
		"stock":       p.Stock,
		"updated_at":  time.Now(),
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// JSON一括登録用。IDが指定されていてもシーケンスを追従させる。
func (r *ProductGormRepository) SaveAll(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	db := r.db.WithContext(ctx)
	if err := db.CreateInBatches(&products, saveAllBatchSize).Error; err != nil {
		return translate(err)
	}
	return db.Exec(
		"SELECT setval(pg_get_serial_sequence('products', 'id'), (SELECT COALESCE(MAX(id), 0) + 1 FROM products), false)",
	).Error
}

// 商品削除（物理削除）
func (r *ProductGormRepository) DeleteByID(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 全件削除
func (r *ProductGormRepository) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.Product{}).Error
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCheckViolation, pgNotNullViolation:
			return errors.Join(repo.ErrConstraint, err)
		}
	}
	return err
}
