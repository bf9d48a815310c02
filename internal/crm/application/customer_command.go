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

// CustomerCommandService 处理客户相关的命令操作
type CustomerCommandService struct {
	customers domain.CustomerRepository
	orders    domain.OrderRepository
	tx        domain.TxManager
	opts      Options
}

// NewCustomerCommandService 创建客户命令服务实例
func NewCustomerCommandService(
	customers domain.CustomerRepository,
	orders domain.OrderRepository,
	tx domain.TxManager,
	opts Options,
) *CustomerCommandService {
	return &CustomerCommandService{
		customers: customers,
		orders:    orders,
		tx:        tx,
		opts:      opts.withDefaults(),
	}
}

func customerNotFound(id uint) string {
	return fmt.Sprintf("Customer with ID %d does not exist", id)
}

func invalidCustomer(errs domain.ValidationErrors) *CustomerResult {
	return &CustomerResult{
		Success:     false,
		Message:     msgValidationFailed,
		Errors:      errs.Messages(),
		FieldErrors: errs,
	}
}

func customerFailure(message string, err error) *CustomerResult {
	return &CustomerResult{
		Success: false,
		Message: message,
		Errors:  []string{err.Error()},
	}
}

// CreateCustomer 创建客户，校验全部字段并检查邮箱唯一
func (s *CustomerCommandService) CreateCustomer(ctx context.Context, in CustomerInput) *CustomerResult {
	customer := domain.NewCustomer(in.Name, in.Email, in.Phone)

	errs := customer.Validate()
	if domain.ValidateEmail(customer.Email) {
		exists, err := s.customers.ExistsByEmail(ctx, customer.Email)
		if err != nil {
			logger.Error(ctx, "Failed to check customer email", "email", customer.Email, "error", err)
			return customerFailure("Failed to create customer", err)
		}
		if exists {
			errs.Add("email", domain.MsgEmailExists)
		}
	}
	if errs.HasErrors() {
		return invalidCustomer(errs)
	}

	if err := s.create(ctx, customer); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return invalidCustomer(domain.ValidationErrors{{Field: "email", Message: domain.MsgEmailExists}})
		}
		logger.Error(ctx, "Failed to create customer", "email", customer.Email, "error", err)
		return customerFailure("Failed to create customer", err)
	}

	s.opts.Metrics.RecordCustomersCreated(1)
	return &CustomerResult{
		Customer: customer,
		Success:  true,
		Message:  "Customer created successfully",
		Errors:   []string{},
	}
}

func (s *CustomerCommandService) create(ctx context.Context, customer *domain.Customer) error {
	now := s.opts.now()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	if err := s.customers.Create(ctx, customer); err != nil {
		return err
	}

	s.opts.publish(ctx, domain.TopicCustomerCreated, strconv.FormatUint(uint64(customer.ID), 10), domain.CustomerCreatedEvent{
		CustomerID: customer.ID,
		Name:       customer.Name,
		Email:      customer.Email,
		Timestamp:  now,
	})
	return nil
}

// BulkCreateCustomers 逐行创建客户，每行独立提交，失败行记录为 "Row <n>: <原因>" 并跳过。
// 批内重复邮箱可被发现，因为前面的行已经写入。
func (s *CustomerCommandService) BulkCreateCustomers(ctx context.Context, inputs []CustomerInput) *BulkCustomerResult {
	result := &BulkCustomerResult{
		Customers:  []*domain.Customer{},
		Errors:     []string{},
		TotalCount: len(inputs),
	}

	for i, in := range inputs {
		row := i + 1
		customer := domain.NewCustomer(in.Name, in.Email, in.Phone)

		reasons, err := s.bulkRowReasons(ctx, customer)
		if err == nil && len(reasons) == 0 {
			err = s.create(ctx, customer)
			if errors.Is(err, domain.ErrDuplicateEmail) {
				reasons, err = []string{fmt.Sprintf("Email %s already exists", customer.Email)}, nil
			}
		}
		if err != nil {
			logger.Error(ctx, "Bulk customer row failed", "row", row, "email", customer.Email, "error", err)
			reasons = []string{err.Error()}
		}
		if len(reasons) > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", row, strings.Join(reasons, "; ")))
			continue
		}

		result.Customers = append(result.Customers, customer)
		result.SuccessCount++
	}

	s.opts.Metrics.RecordCustomersCreated(result.SuccessCount)
	logger.Info(ctx, "Bulk customer registration finished",
		"total", result.TotalCount,
		"created", result.SuccessCount,
		"failed", len(result.Errors),
	)
	return result
}

func (s *CustomerCommandService) bulkRowReasons(ctx context.Context, customer *domain.Customer) ([]string, error) {
	var reasons []string
	for _, fe := range customer.Validate() {
		switch fe.Field {
		case "phone":
			reasons = append(reasons, fmt.Sprintf("Invalid phone format for %s", customer.Email))
		default:
			reasons = append(reasons, fe.Message)
		}
	}
	if !domain.ValidateEmail(customer.Email) {
		return reasons, nil
	}
	exists, err := s.customers.ExistsByEmail(ctx, customer.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		reasons = append([]string{fmt.Sprintf("Email %s already exists", customer.Email)}, reasons...)
	}
	return reasons, nil
}

// UpdateCustomer 更新客户姓名或电话，邮箱不可修改
func (s *CustomerCommandService) UpdateCustomer(ctx context.Context, cmd UpdateCustomerCommand) *CustomerResult {
	customer, err := s.customers.GetByID(ctx, cmd.ID)
	if err != nil {
		return customerFailure("Failed to update customer", err)
	}
	if customer == nil {
		return &CustomerResult{Success: false, Message: msgValidationFailed, Errors: []string{customerNotFound(cmd.ID)}}
	}

	var errs domain.ValidationErrors
	if cmd.Name != nil {
		errs.Merge(customer.Rename(*cmd.Name))
	}
	if cmd.Phone != nil {
		errs.Merge(customer.ChangePhone(*cmd.Phone))
	}
	if errs.HasErrors() {
		return invalidCustomer(errs)
	}

	customer.UpdatedAt = s.opts.now()
	if err := s.customers.Update(ctx, customer); err != nil {
		logger.Error(ctx, "Failed to update customer", "customer_id", cmd.ID, "error", err)
		return customerFailure("Failed to update customer", err)
	}
	return &CustomerResult{
		Customer: customer,
		Success:  true,
		Message:  "Customer updated successfully",
		Errors:   []string{},
	}
}

// DeleteCustomer 在同一事务中删除客户的订单明细、订单与客户本身
func (s *CustomerCommandService) DeleteCustomer(ctx context.Context, id uint) *DeleteResult {
	var deletedOrders int64
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		customer, err := s.customers.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if customer == nil {
			return domain.ErrNotFound
		}
		if deletedOrders, err = s.orders.DeleteByCustomer(ctx, id); err != nil {
			return err
		}
		return s.customers.Delete(ctx, id)
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &DeleteResult{Success: false, Message: msgValidationFailed, Errors: []string{customerNotFound(id)}}
	case err != nil:
		logger.Error(ctx, "Failed to delete customer", "customer_id", id, "error", err)
		return &DeleteResult{Success: false, Message: "Failed to delete customer", Errors: []string{err.Error()}}
	}

	return &DeleteResult{
		Success: true,
		Message: fmt.Sprintf("Customer deleted successfully along with %d order(s)", deletedOrders),
		Errors:  []string{},
	}
}
