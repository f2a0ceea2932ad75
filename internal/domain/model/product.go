package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinalPriceは保存しない。読み出し時に毎回カテゴリ割引から計算する。
type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null;index" json:"name"`
	Category    string          `gorm:"type:varchar(100);not null" json:"category"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock       int64           `gorm:"not null;check:chk_products_stock,stock >= 0" json:"stock"`
	FinalPrice  decimal.Decimal `gorm:"-" json:"final_price"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"-"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"-"`
}

// カートに送る商品スナップショット
type CartProduct struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

func NewCartProduct(p Product) CartProduct {
	return CartProduct{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
	}
}
