package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/crm/internal/crm/domain"
	"github.com/wyfcoding/crm/pkg/db"
	"github.com/wyfcoding/crm/pkg/logger"
	"gorm.io/gorm"
)

// customerRepository 是 domain.CustomerRepository 的 GORM 实现
type customerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository 创建客户仓储实例
func NewCustomerRepository(gdb *gorm.DB) domain.CustomerRepository {
	return &customerRepository{db: gdb}
}

func (r *customerRepository) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

// Create 实现 domain.CustomerRepository.Create
func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	model := toCustomerModel(customer)
	if err := r.conn(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return domain.ErrDuplicateEmail
		}
		logger.Error(ctx, "customer_repository.create failed", "email", customer.Email, "error", err)
		return fmt.Errorf("failed to create customer: %w", err)
	}
	customer.ID = model.ID
	customer.CreatedAt = model.CreatedAt
	customer.UpdatedAt = model.UpdatedAt
	return nil
}

// Update 实现 domain.CustomerRepository.Update，邮箱不可修改
func (r *customerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	updates := map[string]any{
		"name":  customer.Name,
		"phone": customer.Phone,
	}
	if !customer.UpdatedAt.IsZero() {
		updates["updated_at"] = customer.UpdatedAt
	}
	result := r.conn(ctx).Model(&CustomerModel{ID: customer.ID}).Updates(updates)
	if result.Error != nil {
		logger.Error(ctx, "customer_repository.update failed", "customer_id", customer.ID, "error", result.Error)
		return fmt.Errorf("failed to update customer: %w", result.Error)
	}
	return nil
}

// GetByID 实现 domain.CustomerRepository.GetByID
func (r *customerRepository) GetByID(ctx context.Context, id uint) (*domain.Customer, error) {
	var model CustomerModel
	if err := r.conn(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error(ctx, "customer_repository.get failed", "customer_id", id, "error", err)
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return toCustomer(&model), nil
}

// ExistsByEmail 实现 domain.CustomerRepository.ExistsByEmail
func (r *customerRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.conn(ctx).Model(&CustomerModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		logger.Error(ctx, "customer_repository.exists_by_email failed", "email", email, "error", err)
		return false, fmt.Errorf("failed to check customer email: %w", err)
	}
	return count > 0, nil
}

// List 实现 domain.CustomerRepository.List
func (r *customerRepository) List(ctx context.Context, filter domain.CustomerFilter, opts domain.ListOptions) ([]*domain.Customer, int64, error) {
	conds := CustomerConditions(filter)
	base := func() *gorm.DB {
		return applyConditions(r.conn(ctx).Model(&CustomerModel{}), conds)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		logger.Error(ctx, "customer_repository.list count failed", "error", err)
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	var models []CustomerModel
	if err := applyListOptions(base(), opts, domain.DefaultCustomerOrder).Find(&models).Error; err != nil {
		logger.Error(ctx, "customer_repository.list failed", "error", err)
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}

	customers := make([]*domain.Customer, len(models))
	for i := range models {
		customers[i] = toCustomer(&models[i])
	}
	return customers, total, nil
}

// Count 实现 domain.CustomerRepository.Count
func (r *customerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.conn(ctx).Model(&CustomerModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return count, nil
}

// Delete 实现 domain.CustomerRepository.Delete
func (r *customerRepository) Delete(ctx context.Context, id uint) error {
	result := r.conn(ctx).Delete(&CustomerModel{}, id)
	if result.Error != nil {
		logger.Error(ctx, "customer_repository.delete failed", "customer_id", id, "error", result.Error)
		return fmt.Errorf("failed to delete customer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
