package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const MsgNegativeTotal = "Total amount cannot be negative"

// MaxOrderQuantity 单条明细数量上限，与 order_lines.quantity 的 INT 列一致
const MaxOrderQuantity = math.MaxInt32

// Order 订单实体
// 金额由明细派生，创建后不再重算
type Order struct {
	ID          uint            `json:"id"`
	CustomerID  uint            `json:"customer_id"`
	Customer    *Customer       `json:"customer,omitempty"`
	OrderDate   time.Time       `json:"order_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Lines       []OrderLine     `json:"lines"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OrderLine 订单明细，记录下单时的成交价
type OrderLine struct {
	ID              uint            `json:"id"`
	OrderID         uint            `json:"order_id"`
	ProductID       uint            `json:"product_id"`
	Product         *Product        `json:"product,omitempty"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewOrder 创建订单外壳，金额在明细写入后再计算
func NewOrder(customerID uint, orderDate time.Time) *Order {
	return &Order{
		CustomerID:  customerID,
		OrderDate:   orderDate.UTC(),
		TotalAmount: decimal.Zero,
	}
}

// AddLine 以商品当前价格追加明细
func (o *Order) AddLine(product *Product, quantity int) *OrderLine {
	o.Lines = append(o.Lines, OrderLine{
		OrderID:         o.ID,
		ProductID:       product.ID,
		Product:         product,
		Quantity:        quantity,
		PriceAtPurchase: product.Price,
	})
	return &o.Lines[len(o.Lines)-1]
}

// Subtotal 明细小计
func (l *OrderLine) Subtotal() decimal.Decimal {
	return l.PriceAtPurchase.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CalculateTotal 计算所有明细小计之和
func (o *Order) CalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range o.Lines {
		total = total.Add(o.Lines[i].Subtotal())
	}
	return total
}

// ProductIDs 明细中的商品 ID，按明细顺序
func (o *Order) ProductIDs() []uint {
	ids := make([]uint, 0, len(o.Lines))
	for _, l := range o.Lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

// Validate 校验订单金额与全部明细
func (o *Order) Validate() ValidationErrors {
	var errs ValidationErrors
	if o.TotalAmount.IsNegative() {
		errs.Add("total_amount", MsgNegativeTotal)
	}
	seen := make(map[uint]struct{}, len(o.Lines))
	for i := range o.Lines {
		errs.Merge(o.Lines[i].Validate())
		if _, dup := seen[o.Lines[i].ProductID]; dup {
			errs.Add("lines", fmt.Sprintf("Product with ID %d is listed more than once", o.Lines[i].ProductID))
		}
		seen[o.Lines[i].ProductID] = struct{}{}
	}
	return errs
}

// Validate 校验明细数量与成交价
func (l *OrderLine) Validate() ValidationErrors {
	var errs ValidationErrors
	if l.Quantity < 1 {
		errs.Add("quantity", fmt.Sprintf("Quantity for product %d must be at least 1", l.ProductID))
	}
	if !l.PriceAtPurchase.IsPositive() {
		errs.Add("price_at_purchase", MsgPriceNotPositive)
	}
	return errs
}
