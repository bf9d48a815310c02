package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/crm/internal/crm/domain"
	"gorm.io/gorm"
)

// CustomerModel 客户表映射
type CustomerModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
	Name      string    `gorm:"column:name;type:varchar(100);index;not null"`
	Email     string    `gorm:"column:email;type:varchar(254);uniqueIndex;not null"`
	Phone     *string   `gorm:"column:phone;type:varchar(20)"`
}

func (CustomerModel) TableName() string { return "customers" }

// ProductModel 商品表映射，库存由 CHECK 约束保证非负
type ProductModel struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time       `gorm:"column:created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
	Name      string          `gorm:"column:name;type:varchar(200);index;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:decimal(10,2);not null"`
	Stock     int             `gorm:"column:stock;not null;default:0;index;check:chk_products_stock,stock >= 0"`
}

func (ProductModel) TableName() string { return "products" }

// OrderModel 订单表映射
type OrderModel struct {
	ID          uint             `gorm:"primaryKey;autoIncrement"`
	CreatedAt   time.Time        `gorm:"column:created_at"`
	UpdatedAt   time.Time        `gorm:"column:updated_at"`
	CustomerID  uint             `gorm:"column:customer_id;index;not null"`
	Customer    *CustomerModel   `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`
	OrderDate   time.Time        `gorm:"column:order_date;index;not null"`
	TotalAmount decimal.Decimal  `gorm:"column:total_amount;type:decimal(12,2);not null;default:0;check:chk_orders_total,total_amount >= 0"`
	Lines       []OrderLineModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderLineModel 订单明细表映射，同一订单内商品唯一
type OrderLineModel struct {
	ID              uint            `gorm:"primaryKey;autoIncrement"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
	OrderID         uint            `gorm:"column:order_id;not null;uniqueIndex:uk_order_lines_order_product"`
	ProductID       uint            `gorm:"column:product_id;not null;index;uniqueIndex:uk_order_lines_order_product"`
	Product         *ProductModel   `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	Quantity        int             `gorm:"column:quantity;not null;check:chk_order_lines_quantity,quantity >= 1"`
	PriceAtPurchase decimal.Decimal `gorm:"column:price_at_purchase;type:decimal(10,2);not null"`
}

func (OrderLineModel) TableName() string { return "order_lines" }

// AutoMigrate 创建或更新 CRM 表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&CustomerModel{}, &ProductModel{}, &OrderModel{}, &OrderLineModel{})
}

// mapping helpers

func toCustomerModel(c *domain.Customer) *CustomerModel {
	return &CustomerModel{
		ID:        c.ID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
	}
}

func toCustomer(m *CustomerModel) *domain.Customer {
	if m == nil {
		return nil
	}
	return &domain.Customer{
		ID:        m.ID,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
	}
}

func toProductModel(p *domain.Product) *ProductModel {
	return &ProductModel{
		ID:        p.ID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
	}
}

func toProduct(m *ProductModel) *domain.Product {
	if m == nil {
		return nil
	}
	return &domain.Product{
		ID:        m.ID,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
		Name:      m.Name,
		Price:     m.Price,
		Stock:     m.Stock,
	}
}

func toOrder(m *OrderModel) *domain.Order {
	if m == nil {
		return nil
	}
	o := &domain.Order{
		ID:          m.ID,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
		CustomerID:  m.CustomerID,
		Customer:    toCustomer(m.Customer),
		OrderDate:   m.OrderDate.UTC(),
		TotalAmount: m.TotalAmount,
		Lines:       make([]domain.OrderLine, 0, len(m.Lines)),
	}
	for i := range m.Lines {
		o.Lines = append(o.Lines, toOrderLine(&m.Lines[i]))
	}
	return o
}

func toOrderLine(m *OrderLineModel) domain.OrderLine {
	return domain.OrderLine{
		ID:              m.ID,
		CreatedAt:       m.CreatedAt.UTC(),
		OrderID:         m.OrderID,
		ProductID:       m.ProductID,
		Product:         toProduct(m.Product),
		Quantity:        m.Quantity,
		PriceAtPurchase: m.PriceAtPurchase,
	}
}
