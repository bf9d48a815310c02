package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/crm/internal/crm/domain"
	"github.com/wyfcoding/crm/pkg/db"
	"github.com/wyfcoding/crm/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// productRepository 是 domain.ProductRepository 的 GORM 实现
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储实例
func NewProductRepository(gdb *gorm.DB) domain.ProductRepository {
	return &productRepository{db: gdb}
}

func (r *productRepository) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

// Create 实现 domain.ProductRepository.Create
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	model := toProductModel(product)
	if err := r.conn(ctx).Create(model).Error; err != nil {
		logger.Error(ctx, "product_repository.create failed", "name", product.Name, "error", err)
		return fmt.Errorf("failed to create product: %w", err)
	}
	product.ID = model.ID
	product.CreatedAt = model.CreatedAt
	product.UpdatedAt = model.UpdatedAt
	return nil
}

// Update 实现 domain.ProductRepository.Update
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	updates := map[string]any{
		"name":  product.Name,
		"price": product.Price,
		"stock": product.Stock,
	}
	if !product.UpdatedAt.IsZero() {
		updates["updated_at"] = product.UpdatedAt
	}
	if err := r.conn(ctx).Model(&ProductModel{ID: product.ID}).Updates(updates).Error; err != nil {
		logger.Error(ctx, "product_repository.update failed", "product_id", product.ID, "error", err)
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

// GetByID 实现 domain.ProductRepository.GetByID
func (r *productRepository) GetByID(ctx context.Context, id uint) (*domain.Product, error) {
	var model ProductModel
	if err := r.conn(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error(ctx, "product_repository.get failed", "product_id", id, "error", err)
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return toProduct(&model), nil
}

// GetByIDs 实现 domain.ProductRepository.GetByIDs
func (r *productRepository) GetByIDs(ctx context.Context, ids []uint) ([]*domain.Product, error) {
	return r.findByIDs(ctx, r.conn(ctx), ids)
}

// LockByIDs 实现 domain.ProductRepository.LockByIDs，按 ID 升序加锁避免死锁
func (r *productRepository) LockByIDs(ctx context.Context, ids []uint) ([]*domain.Product, error) {
	q := r.conn(ctx)
	if supportsRowLock(q) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.findByIDs(ctx, q, ids)
}

func (r *productRepository) findByIDs(ctx context.Context, q *gorm.DB, ids []uint) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []ProductModel
	if err := q.Where("id IN ?", ids).Order("id").Find(&models).Error; err != nil {
		logger.Error(ctx, "product_repository.find_by_ids failed", "product_ids", ids, "error", err)
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	products := make([]*domain.Product, len(models))
	for i := range models {
		products[i] = toProduct(&models[i])
	}
	return products, nil
}

// DecrementStock 实现 domain.ProductRepository.DecrementStock。
// 条件更新保证库存不会被扣成负数，影响行数为 0 表示并发写入者先扣减了库存。
func (r *productRepository) DecrementStock(ctx context.Context, id uint, quantity int) (bool, error) {
	result := r.conn(ctx).Model(&ProductModel{}).
		Where("id = ? AND stock >= ?", id, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		logger.Error(ctx, "product_repository.decrement_stock failed", "product_id", id, "quantity", quantity, "error", result.Error)
		return false, fmt.Errorf("failed to decrement stock: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// IncrementStock 实现 domain.ProductRepository.IncrementStock
func (r *productRepository) IncrementStock(ctx context.Context, id uint, quantity int) error {
	result := r.conn(ctx).Model(&ProductModel{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", quantity))
	if result.Error != nil {
		logger.Error(ctx, "product_repository.increment_stock failed", "product_id", id, "quantity", quantity, "error", result.Error)
		return fmt.Errorf("failed to increment stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// IsReferenced 实现 domain.ProductRepository.IsReferenced
func (r *productRepository) IsReferenced(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.conn(ctx).Model(&OrderLineModel{}).Where("product_id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check product references: %w", err)
	}
	return count > 0, nil
}

// List 实现 domain.ProductRepository.List
func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter, opts domain.ListOptions) ([]*domain.Product, int64, error) {
	conds := ProductConditions(filter)
	base := func() *gorm.DB {
		return applyConditions(r.conn(ctx).Model(&ProductModel{}), conds)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		logger.Error(ctx, "product_repository.list count failed", "error", err)
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	var models []ProductModel
	if err := applyListOptions(base(), opts, domain.DefaultProductOrder).Find(&models).Error; err != nil {
		logger.Error(ctx, "product_repository.list failed", "error", err)
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]*domain.Product, len(models))
	for i := range models {
		products[i] = toProduct(&models[i])
	}
	return products, total, nil
}

// Delete 实现 domain.ProductRepository.Delete，外键 RESTRICT 触发时返回 ErrProductReferenced
func (r *productRepository) Delete(ctx context.Context, id uint) error {
	result := r.conn(ctx).Delete(&ProductModel{}, id)
	if result.Error != nil {
		if isForeignKeyViolation(result.Error) {
			return domain.ErrProductReferenced
		}
		logger.Error(ctx, "product_repository.delete failed", "product_id", id, "error", result.Error)
		return fmt.Errorf("failed to delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
