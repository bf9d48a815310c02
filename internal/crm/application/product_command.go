package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wyfcoding/crm/internal/crm/domain"
	"github.com/wyfcoding/crm/pkg/logger"
)

// ProductCommandService 商品目录命令服务
type ProductCommandService struct {
	products domain.ProductRepository
	tx       domain.TxManager
	opts     Options
}

// NewProductCommandService 创建商品目录命令服务实例
func NewProductCommandService(
	products domain.ProductRepository,
	tx domain.TxManager,
	opts Options,
) *ProductCommandService {
	return &ProductCommandService{
		products: products,
		tx:       tx,
		opts:     opts.withDefaults(),
	}
}

func productNotFound(id uint) string {
	return fmt.Sprintf("Product with ID %d does not exist", id)
}

func productKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func invalidProduct(errs domain.ValidationErrors) *ProductResult {
	return &ProductResult{
		Success:     false,
		Message:     msgValidationFailed,
		Errors:      errs.Messages(),
		FieldErrors: errs,
	}
}

func productFailure(message string, err error) *ProductResult {
	return &ProductResult{Success: false, Message: message, Errors: []string{err.Error()}}
}

// CreateProduct 创建商品
func (s *ProductCommandService) CreateProduct(ctx context.Context, cmd CreateProductCommand) *ProductResult {
	product := domain.NewProduct(cmd.Name, cmd.Price, cmd.Stock)
	if errs := product.Validate(); errs.HasErrors() {
		return invalidProduct(errs)
	}

	now := s.opts.now()
	product.CreatedAt = now
	product.UpdatedAt = now
	if err := s.products.Create(ctx, product); err != nil {
		logger.Error(ctx, "Failed to create product", "name", product.Name, "error", err)
		return productFailure("Failed to create product", err)
	}

	// 发布商品创建事件
	s.opts.publish(ctx, domain.TopicProductCreated, productKey(product.ID), domain.ProductCreatedEvent{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Stock:     product.Stock,
		Timestamp: now,
	})

	return &ProductResult{
		Product: product,
		Success: true,
		Message: "Product created successfully",
		Errors:  []string{},
	}
}

// UpdateProduct 更新商品，库存变化时发布库存变更事件
func (s *ProductCommandService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) *ProductResult {
	var (
		product  *domain.Product
		oldStock int
		errs     domain.ValidationErrors
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.products.LockByIDs(ctx, []uint{cmd.ID})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return domain.ErrNotFound
		}
		product = locked[0]
		oldStock = product.Stock

		if cmd.Name != nil {
			product.Name = strings.TrimSpace(*cmd.Name)
		}
		if cmd.Price != nil {
			product.Price = *cmd.Price
		}
		if cmd.Stock != nil {
			product.Stock = *cmd.Stock
		}
		if errs = product.Validate(); errs.HasErrors() {
			return errs
		}

		product.UpdatedAt = s.opts.now()
		return s.products.Update(ctx, product)
	})

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &ProductResult{Success: false, Message: msgValidationFailed, Errors: []string{productNotFound(cmd.ID)}}
	case errs.HasErrors():
		return invalidProduct(errs)
	case err != nil:
		logger.Error(ctx, "Failed to update product", "product_id", cmd.ID, "error", err)
		return productFailure("Failed to update product", err)
	}

	if oldStock != product.Stock {
		s.opts.publish(ctx, domain.TopicProductStockChanged, productKey(product.ID), domain.ProductStockChangedEvent{
			ProductID: product.ID,
			OldStock:  oldStock,
			NewStock:  product.Stock,
			Reason:    domain.StockReasonUpdate,
			Timestamp: product.UpdatedAt,
		})
	}

	return &ProductResult{
		Product: product,
		Success: true,
		Message: "Product updated successfully",
		Errors:  []string{},
	}
}

// DeleteProduct 删除商品，仍被订单明细引用时拒绝
func (s *ProductCommandService) DeleteProduct(ctx context.Context, id uint) *DeleteResult {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		referenced, err := s.products.IsReferenced(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return domain.ErrProductReferenced
		}
		return s.products.Delete(ctx, id)
	})

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &DeleteResult{Success: false, Message: msgValidationFailed, Errors: []string{productNotFound(id)}}
	case errors.Is(err, domain.ErrProductReferenced):
		return &DeleteResult{
			Success: false,
			Message: msgValidationFailed,
			Errors:  []string{fmt.Sprintf("Product with ID %d is referenced by existing orders and cannot be deleted", id)},
		}
	case err != nil:
		logger.Error(ctx, "Failed to delete product", "product_id", id, "error", err)
		return &DeleteResult{Success: false, Message: "Failed to delete product", Errors: []string{err.Error()}}
	}

	return &DeleteResult{Success: true, Message: "Product deleted successfully", Errors: []string{}}
}

// UpdateLowStockProducts 为所有低库存商品补货，increment <= 0 时使用配置的默认增量
func (s *ProductCommandService) UpdateLowStockProducts(ctx context.Context, increment int) *RestockResult {
	if increment <= 0 {
		increment = s.opts.RestockIncrement
	}

	var changes []domain.ProductStockChangedEvent
	updated := []string{}
	now := s.opts.now()

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		lowStock := true
		products, _, err := s.products.List(ctx, domain.ProductFilter{LowStock: &lowStock}, domain.ListOptions{})
		if err != nil {
			return err
		}
		for _, p := range products {
			if err := s.products.IncrementStock(ctx, p.ID, increment); err != nil {
				return err
			}
			newStock := p.Stock + increment
			updated = append(updated, fmt.Sprintf("%s (stock: %d)", p.Name, newStock))
			changes = append(changes, domain.ProductStockChangedEvent{
				ProductID: p.ID,
				OldStock:  p.Stock,
				NewStock:  newStock,
				Reason:    domain.StockReasonRestock,
				Timestamp: now,
			})
		}
		return nil
	})
	if err != nil {
		logger.Error(ctx, "Failed to restock low-stock products", "error", err)
		return &RestockResult{
			Success:         false,
			Message:         fmt.Sprintf("Failed to update low-stock products: %v", err),
			UpdatedProducts: []string{},
		}
	}

	for _, ev := range changes {
		s.opts.publish(ctx, domain.TopicProductStockChanged, productKey(ev.ProductID), ev)
	}

	logger.Info(ctx, "Low-stock products restocked", "count", len(updated), "increment", increment)
	return &RestockResult{
		Success:         true,
		Message:         fmt.Sprintf("Updated %d low-stock product(s)", len(updated)),
		UpdatedProducts: updated,
	}
}
