package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/wyfcoding/crm/internal/crm/domain"
	"github.com/wyfcoding/crm/pkg/logger"
)

// 订单失败原因，用于指标标签
const (
	failureValidation = "validation"
	failureStock      = "stock"
	failureInternal   = "internal"
)

// OrderCommandService 下单服务：校验、锁定库存、扣减并写入订单
type OrderCommandService struct {
	customers domain.CustomerRepository
	products  domain.ProductRepository
	orders    domain.OrderRepository
	tx        domain.TxManager
	opts      Options
}

// NewOrderCommandService 创建下单服务实例
func NewOrderCommandService(
	customers domain.CustomerRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	tx domain.TxManager,
	opts Options,
) *OrderCommandService {
	return &OrderCommandService{
		customers: customers,
		products:  products,
		orders:    orders,
		tx:        tx,
		opts:      opts.withDefaults(),
	}
}

func insufficientStock(p *domain.Product, requested, available int) string {
	return fmt.Sprintf("Insufficient stock for product %d (%s): requested %d, available %d", p.ID, p.Name, requested, available)
}

func (s *OrderCommandService) reject(ctx context.Context, reason, message string, errs domain.ValidationErrors) *OrderResult {
	s.opts.Metrics.RecordOrderFailed(reason)
	logger.Info(ctx, "Order rejected", "reason", reason, "errors", errs.Messages())
	return &OrderResult{
		Success:     false,
		Message:     message,
		Errors:      errs.Messages(),
		FieldErrors: errs,
	}
}

// CreateOrder 原子地创建订单。
// 所有校验错误会被一次性收集；校验通过后在单个事务内按商品 ID 升序加锁、
// 检查库存、写入订单与明细并条件扣减库存，任一步失败则整体回滚。
func (s *OrderCommandService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) *OrderResult {
	items, errs, err := s.validate(ctx, cmd)
	if err != nil {
		return s.internalFailure(ctx, cmd, err)
	}
	if errs.HasErrors() {
		return s.reject(ctx, failureValidation, msgValidationFailed, errs)
	}

	var (
		order        *domain.Order
		stockChanges []domain.ProductStockChangedEvent
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		order, stockChanges = nil, nil

		ids := make([]uint, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ProductID)
		}
		slices.Sort(ids)

		locked, err := s.products.LockByIDs(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[uint]*domain.Product, len(locked))
		for _, p := range locked {
			byID[p.ID] = p
		}

		// 检查全部明细后再决定是否回滚，便于一次性返回所有缺货商品
		var shortfalls domain.ValidationErrors
		for _, it := range items {
			p, ok := byID[it.ProductID]
			if !ok {
				shortfalls.Add("items", productNotFound(it.ProductID))
				continue
			}
			if !p.HasStock(it.Quantity) {
				shortfalls.Add("items", insufficientStock(p, it.Quantity, p.Stock))
			}
		}
		if shortfalls.HasErrors() {
			return fmt.Errorf("%w: %w", domain.ErrInsufficientStock, shortfalls)
		}

		now := s.opts.now()
		orderDate := now
		if cmd.OrderDate != nil {
			orderDate = *cmd.OrderDate
		}
		order = domain.NewOrder(cmd.CustomerID, orderDate)
		order.CreatedAt = now
		order.UpdatedAt = now
		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}

		for _, it := range items {
			p := byID[it.ProductID]
			line := order.AddLine(p, it.Quantity)
			line.OrderID = order.ID
			line.CreatedAt = now
			if err := s.orders.CreateLine(ctx, line); err != nil {
				return err
			}

			ok, err := s.products.DecrementStock(ctx, p.ID, it.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				s.opts.Metrics.RecordStockConflict()
				available := 0
				if current, err := s.products.GetByID(ctx, p.ID); err == nil && current != nil {
					available = current.Stock
				}
				conflict := domain.ValidationErrors{{Field: "items", Message: insufficientStock(p, it.Quantity, available)}}
				return fmt.Errorf("%w: %w", domain.ErrInsufficientStock, conflict)
			}

			stockChanges = append(stockChanges, domain.ProductStockChangedEvent{
				ProductID: p.ID,
				OldStock:  p.Stock,
				NewStock:  p.Stock - it.Quantity,
				Reason:    domain.StockReasonOrder,
				Timestamp: now,
			})
			p.Stock -= it.Quantity
		}

		// 总额在全部明细写入后计算一次
		order.TotalAmount = order.CalculateTotal()
		if errs := order.Validate(); errs.HasErrors() {
			return errs
		}
		return s.orders.UpdateTotal(ctx, order.ID, order.TotalAmount)
	})

	if err != nil {
		var verrs domain.ValidationErrors
		switch {
		case errors.Is(err, domain.ErrInsufficientStock) && errors.As(err, &verrs):
			return s.reject(ctx, failureStock, "Insufficient stock", verrs)
		case errors.As(err, &verrs):
			return s.reject(ctx, failureValidation, msgValidationFailed, verrs)
		default:
			return s.internalFailure(ctx, cmd, err)
		}
	}

	s.opts.Metrics.RecordOrderCreated()
	s.opts.publish(ctx, domain.TopicOrderCreated, strconv.FormatUint(uint64(order.ID), 10), domain.NewOrderCreatedEvent(order, order.CreatedAt))
	for _, ev := range stockChanges {
		s.opts.publish(ctx, domain.TopicProductStockChanged, productKey(ev.ProductID), ev)
	}
	logger.Info(ctx, "Order created",
		"order_id", order.ID,
		"customer_id", order.CustomerID,
		"lines", len(order.Lines),
		"total_amount", order.TotalAmount.StringFixed(2),
	)

	return &OrderResult{
		Order:   order,
		Success: true,
		Message: "Order created successfully",
		Errors:  []string{},
	}
}

func (s *OrderCommandService) internalFailure(ctx context.Context, cmd CreateOrderCommand, err error) *OrderResult {
	s.opts.Metrics.RecordOrderFailed(failureInternal)
	logger.Error(ctx, "Failed to create order", "customer_id", cmd.CustomerID, "error", err)
	return &OrderResult{
		Success: false,
		Message: "Failed to create order",
		Errors:  []string{err.Error()},
	}
}

// validate 解析客户与商品并归并商品项，返回归并后的商品项与全部校验错误
func (s *OrderCommandService) validate(ctx context.Context, cmd CreateOrderCommand) ([]OrderItemInput, domain.ValidationErrors, error) {
	var errs domain.ValidationErrors

	customer, err := s.customers.GetByID(ctx, cmd.CustomerID)
	if err != nil {
		return nil, nil, err
	}
	if customer == nil {
		errs.Add("customer_id", customerNotFound(cmd.CustomerID))
	}

	items, itemErrs := s.normalizeItems(cmd.Items)
	errs.Merge(itemErrs)
	if len(items) == 0 {
		return nil, errs, nil
	}

	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	found, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	exists := make(map[uint]bool, len(found))
	for _, p := range found {
		exists[p.ID] = true
	}
	for _, it := range items {
		if !exists[it.ProductID] {
			errs.Add("items", productNotFound(it.ProductID))
		}
	}
	return items, errs, nil
}

// normalizeItems 按重复商品策略归并商品项，保持首次出现的顺序
func (s *OrderCommandService) normalizeItems(in []OrderItemInput) ([]OrderItemInput, domain.ValidationErrors) {
	var errs domain.ValidationErrors
	if len(in) == 0 {
		errs.Add("items", "At least one product must be selected")
		return nil, errs
	}

	items := make([]OrderItemInput, 0, len(in))
	index := make(map[uint]int, len(in))
	reported := make(map[uint]bool)
	tooLarge := make(map[uint]bool)
	reportTooLarge := func(id uint) {
		if !tooLarge[id] {
			errs.Add("items", fmt.Sprintf("Quantity for product %d is too large", id))
			tooLarge[id] = true
		}
	}
	for _, it := range in {
		if it.Quantity < 1 {
			errs.Add("items", fmt.Sprintf("Quantity for product %d must be at least 1", it.ProductID))
		} else if it.Quantity > domain.MaxOrderQuantity {
			reportTooLarge(it.ProductID)
		}
		i, seen := index[it.ProductID]
		if !seen {
			index[it.ProductID] = len(items)
			items = append(items, it)
			continue
		}
		if s.opts.DuplicateItemPolicy == DuplicateItemsReject {
			if !reported[it.ProductID] {
				errs.Add("items", fmt.Sprintf("Product with ID %d is listed more than once", it.ProductID))
				reported[it.ProductID] = true
			}
			continue
		}
		if it.Quantity < 1 || items[i].Quantity < 1 {
			continue
		}
		// 合并后的数量须仍在列宽范围内
		if it.Quantity > domain.MaxOrderQuantity-items[i].Quantity {
			reportTooLarge(it.ProductID)
			continue
		}
		items[i].Quantity += it.Quantity
	}
	return items, errs
}
