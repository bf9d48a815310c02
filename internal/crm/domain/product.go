package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// LowStockThreshold 低库存阈值，库存严格小于该值视为低库存
	LowStockThreshold = 10
	// MaxProductNameLength 商品名最大长度
	MaxProductNameLength = 200
)

const (
	MsgPriceNotPositive = "Price must be positive"
	MsgNegativeStock    = "Stock cannot be negative"
)

// 价格列为 decimal(10,2)
var maxPrice = decimal.New(1, 8)

// Product 商品实体
type Product struct {
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewProduct 创建商品
func NewProduct(name string, price decimal.Decimal, stock int) *Product {
	return &Product{
		Name:  strings.TrimSpace(name),
		Price: price,
		Stock: stock,
	}
}

// IsLowStock 是否低库存
func (p *Product) IsLowStock() bool {
	return p.Stock < LowStockThreshold
}

// HasStock 是否有足够库存
func (p *Product) HasStock(quantity int) bool {
	return p.Stock >= quantity
}

// Validate 校验实体当前状态
func (p *Product) Validate() ValidationErrors {
	return ValidateProductInput(p.Name, p.Price, p.Stock)
}

// ValidateProductInput 校验商品字段，返回全部错误
func ValidateProductInput(name string, price decimal.Decimal, stock int) ValidationErrors {
	var errs ValidationErrors
	switch n := utf8.RuneCountInString(name); {
	case strings.TrimSpace(name) == "":
		errs.Add("name", "Name is required")
	case n > MaxProductNameLength:
		errs.Add("name", fmt.Sprintf("Name must be at most %d characters", MaxProductNameLength))
	}
	errs.Merge(ValidatePrice(price))
	if stock < 0 {
		errs.Add("stock", MsgNegativeStock)
	}
	return errs
}

// ValidatePrice 价格必须为正、最多两位小数
func ValidatePrice(price decimal.Decimal) ValidationErrors {
	var errs ValidationErrors
	if !price.IsPositive() {
		errs.Add("price", MsgPriceNotPositive)
		return errs
	}
	if !price.Equal(price.Truncate(2)) {
		errs.Add("price", "Price must have at most 2 decimal places")
	}
	if price.GreaterThanOrEqual(maxPrice) {
		errs.Add("price", "Price must be less than 100000000")
	}
	return errs
}
