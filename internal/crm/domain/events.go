package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// 事件主题
const (
	TopicCustomerCreated     = "customer.created"
	TopicProductCreated      = "product.created"
	TopicProductStockChanged = "product.stock.changed"
	TopicOrderCreated        = "order.created"
)

// EventPublisher 事件发布者接口
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}

// CustomerCreatedEvent 客户创建事件
type CustomerCreatedEvent struct {
	CustomerID uint      `json:"customer_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProductCreatedEvent 商品创建事件
type ProductCreatedEvent struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Timestamp time.Time       `json:"timestamp"`
}

// ProductStockChangedEvent 商品库存变更事件
type ProductStockChangedEvent struct {
	ProductID uint      `json:"product_id"`
	OldStock  int       `json:"old_stock"`
	NewStock  int       `json:"new_stock"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// 库存变更原因
const (
	StockReasonOrder   = "order"
	StockReasonUpdate  = "update"
	StockReasonRestock = "restock"
)

// OrderLineEvent 订单明细快照
type OrderLineEvent struct {
	ProductID       uint            `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

// OrderCreatedEvent 订单创建事件
type OrderCreatedEvent struct {
	OrderID     uint             `json:"order_id"`
	CustomerID  uint             `json:"customer_id"`
	OrderDate   time.Time        `json:"order_date"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Lines       []OrderLineEvent `json:"lines"`
	Timestamp   time.Time        `json:"timestamp"`
}

// NewOrderCreatedEvent 根据已提交订单构造事件
func NewOrderCreatedEvent(o *Order, now time.Time) OrderCreatedEvent {
	lines := make([]OrderLineEvent, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, OrderLineEvent{
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.PriceAtPurchase,
		})
	}
	return OrderCreatedEvent{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		OrderDate:   o.OrderDate,
		TotalAmount: o.TotalAmount,
		Lines:       lines,
		Timestamp:   now,
	}
}
