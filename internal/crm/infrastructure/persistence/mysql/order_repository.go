package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/crm/internal/crm/domain"
	"github.com/wyfcoding/crm/pkg/db"
	"github.com/wyfcoding/crm/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderRepository 是 domain.OrderRepository 的 GORM 实现
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储实例
func NewOrderRepository(gdb *gorm.DB) domain.OrderRepository {
	return &orderRepository{db: gdb}
}

func (r *orderRepository) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

// withDetails 预加载客户、明细及明细商品
func withDetails(q *gorm.DB) *gorm.DB {
	return q.Preload("Customer").
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.Product")
}

// Create 实现 domain.OrderRepository.Create，只写订单本身
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := &OrderModel{
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
		CustomerID:  order.CustomerID,
		OrderDate:   order.OrderDate,
		TotalAmount: order.TotalAmount,
	}
	if err := r.conn(ctx).Omit(clause.Associations).Create(model).Error; err != nil {
		logger.Error(ctx, "order_repository.create failed", "customer_id", order.CustomerID, "error", err)
		return fmt.Errorf("failed to create order: %w", err)
	}
	order.ID = model.ID
	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt
	return nil
}

// CreateLine 实现 domain.OrderRepository.CreateLine
func (r *orderRepository) CreateLine(ctx context.Context, line *domain.OrderLine) error {
	model := &OrderLineModel{
		CreatedAt:       line.CreatedAt,
		OrderID:         line.OrderID,
		ProductID:       line.ProductID,
		Quantity:        line.Quantity,
		PriceAtPurchase: line.PriceAtPurchase,
	}
	if err := r.conn(ctx).Omit(clause.Associations).Create(model).Error; err != nil {
		logger.Error(ctx, "order_repository.create_line failed", "order_id", line.OrderID, "product_id", line.ProductID, "error", err)
		return fmt.Errorf("failed to create order line: %w", err)
	}
	line.ID = model.ID
	line.CreatedAt = model.CreatedAt
	return nil
}

// UpdateTotal 实现 domain.OrderRepository.UpdateTotal
func (r *orderRepository) UpdateTotal(ctx context.Context, orderID uint, total decimal.Decimal) error {
	result := r.conn(ctx).Model(&OrderModel{ID: orderID}).Update("total_amount", total)
	if result.Error != nil {
		logger.Error(ctx, "order_repository.update_total failed", "order_id", orderID, "error", result.Error)
		return fmt.Errorf("failed to update order total: %w", result.Error)
	}
	return nil
}

// GetByID 实现 domain.OrderRepository.GetByID
func (r *orderRepository) GetByID(ctx context.Context, id uint) (*domain.Order, error) {
	var model OrderModel
	if err := withDetails(r.conn(ctx)).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error(ctx, "order_repository.get failed", "order_id", id, "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return toOrder(&model), nil
}

// List 实现 domain.OrderRepository.List
func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter, opts domain.ListOptions) ([]*domain.Order, int64, error) {
	conds := OrderConditions(filter)
	base := func() *gorm.DB {
		return applyConditions(r.conn(ctx).Model(&OrderModel{}), conds)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		logger.Error(ctx, "order_repository.list count failed", "error", err)
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var models []OrderModel
	if err := withDetails(applyListOptions(base(), opts, domain.DefaultOrderOrder)).Find(&models).Error; err != nil {
		logger.Error(ctx, "order_repository.list failed", "error", err)
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = toOrder(&models[i])
	}
	return orders, total, nil
}

// Count 实现 domain.OrderRepository.Count
func (r *orderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.conn(ctx).Model(&OrderModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

type sumResult struct {
	Total decimal.NullDecimal
}

// SumTotalAmount 实现 domain.OrderRepository.SumTotalAmount
func (r *orderRepository) SumTotalAmount(ctx context.Context) (decimal.Decimal, error) {
	var res sumResult
	if err := r.conn(ctx).Model(&OrderModel{}).Select("COALESCE(SUM(total_amount), 0) AS total").Scan(&res).Error; err != nil {
		logger.Error(ctx, "order_repository.sum_total_amount failed", "error", err)
		return decimal.Zero, fmt.Errorf("failed to sum order totals: %w", err)
	}
	if !res.Total.Valid {
		return decimal.Zero, nil
	}
	// SQLite 以浮点累加
	return res.Total.Decimal.Round(2), nil
}

// DeleteByCustomer 实现 domain.OrderRepository.DeleteByCustomer
func (r *orderRepository) DeleteByCustomer(ctx context.Context, customerID uint) (int64, error) {
	conn := r.conn(ctx)
	orderIDs := conn.Session(&gorm.Session{NewDB: true}).Model(&OrderModel{}).Select("id").Where("customer_id = ?", customerID)
	if err := conn.Where("order_id IN (?)", orderIDs).Delete(&OrderLineModel{}).Error; err != nil {
		logger.Error(ctx, "order_repository.delete_lines_by_customer failed", "customer_id", customerID, "error", err)
		return 0, fmt.Errorf("failed to delete order lines: %w", err)
	}
	result := conn.Where("customer_id = ?", customerID).Delete(&OrderModel{})
	if result.Error != nil {
		logger.Error(ctx, "order_repository.delete_by_customer failed", "customer_id", customerID, "error", result.Error)
		return 0, fmt.Errorf("failed to delete orders: %w", result.Error)
	}
	return result.RowsAffected, nil
}
