// Package application 编排 CRM 的命令与查询：客户注册、商品目录、下单扣库存以及列表查询
package application

import (
	"context"
	"time"

	"github.com/wyfcoding/crm/internal/crm/domain"
	"github.com/wyfcoding/crm/internal/crm/infrastructure/messaging"
	"github.com/wyfcoding/crm/pkg/logger"
	"github.com/wyfcoding/crm/pkg/metrics"
)

const (
	msgValidationFailed = "Validation failed"
)

// Options 应用服务的可选依赖与策略
type Options struct {
	DuplicateItemPolicy DuplicateItemPolicy
	RestockIncrement    int
	// Clock 返回当前时间，结果会被转换为 UTC
	Clock     func() time.Time
	Publisher domain.EventPublisher
	Metrics   metrics.Collector
}

func (o Options) withDefaults() Options {
	if o.DuplicateItemPolicy == "" {
		o.DuplicateItemPolicy = DuplicateItemsMerge
	}
	if o.RestockIncrement <= 0 {
		o.RestockIncrement = DefaultRestockIncrement
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Publisher == nil {
		o.Publisher = messaging.NewLogPublisher()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Nop{}
	}
	return o
}

func (o Options) now() time.Time {
	return o.Clock().UTC()
}

// publish 事务提交后发布事件，发布失败只记录日志
func (o Options) publish(ctx context.Context, topic, key string, event any) {
	if err := o.Publisher.Publish(ctx, topic, key, event); err != nil {
		logger.Warn(ctx, "Failed to publish domain event", "topic", topic, "key", key, "error", err)
	}
}

// CRMService CRM 服务门面，整合命令和查询服务
type CRMService struct {
	Customers *CustomerCommandService
	Products  *ProductCommandService
	Orders    *OrderCommandService
	Query     *CRMQueryService
}

// NewCRMService 构造函数
func NewCRMService(
	customers domain.CustomerRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	tx domain.TxManager,
	opts Options,
) *CRMService {
	opts = opts.withDefaults()
	return &CRMService{
		Customers: NewCustomerCommandService(customers, orders, tx, opts),
		Products:  NewProductCommandService(products, tx, opts),
		Orders:    NewOrderCommandService(customers, products, orders, tx, opts),
		Query:     NewCRMQueryService(customers, products, orders),
	}
}

// --- Command (Writes) ---

// CreateCustomer 创建客户
func (s *CRMService) CreateCustomer(ctx context.Context, in CustomerInput) *CustomerResult {
	return s.Customers.CreateCustomer(ctx, in)
}

// BulkCreateCustomers 批量创建客户
func (s *CRMService) BulkCreateCustomers(ctx context.Context, inputs []CustomerInput) *BulkCustomerResult {
	return s.Customers.BulkCreateCustomers(ctx, inputs)
}

// UpdateCustomer 更新客户
func (s *CRMService) UpdateCustomer(ctx context.Context, cmd UpdateCustomerCommand) *CustomerResult {
	return s.Customers.UpdateCustomer(ctx, cmd)
}

// DeleteCustomer 删除客户及其订单
func (s *CRMService) DeleteCustomer(ctx context.Context, id uint) *DeleteResult {
	return s.Customers.DeleteCustomer(ctx, id)
}

// CreateProduct 创建商品
func (s *CRMService) CreateProduct(ctx context.Context, cmd CreateProductCommand) *ProductResult {
	return s.Products.CreateProduct(ctx, cmd)
}

// UpdateProduct 更新商品
func (s *CRMService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) *ProductResult {
	return s.Products.UpdateProduct(ctx, cmd)
}

// DeleteProduct 删除商品
func (s *CRMService) DeleteProduct(ctx context.Context, id uint) *DeleteResult {
	return s.Products.DeleteProduct(ctx, id)
}

// UpdateLowStockProducts 低库存补货
func (s *CRMService) UpdateLowStockProducts(ctx context.Context, increment int) *RestockResult {
	return s.Products.UpdateLowStockProducts(ctx, increment)
}

// CreateOrder 下单
func (s *CRMService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) *OrderResult {
	return s.Orders.CreateOrder(ctx, cmd)
}

// --- Query (Reads) ---

// GetCustomer 获取客户
func (s *CRMService) GetCustomer(ctx context.Context, id uint) (*domain.Customer, error) {
	return s.Query.GetCustomer(ctx, id)
}

// GetProduct 获取商品
func (s *CRMService) GetProduct(ctx context.Context, id uint) (*domain.Product, error) {
	return s.Query.GetProduct(ctx, id)
}

// GetOrder 获取订单
func (s *CRMService) GetOrder(ctx context.Context, id uint) (*domain.Order, error) {
	return s.Query.GetOrder(ctx, id)
}

// ListCustomers 客户列表
func (s *CRMService) ListCustomers(ctx context.Context, filter domain.CustomerFilter, params ListParams) ([]*domain.Customer, int64, error) {
	return s.Query.ListCustomers(ctx, filter, params)
}

// ListProducts 商品列表
func (s *CRMService) ListProducts(ctx context.Context, filter domain.ProductFilter, params ListParams) ([]*domain.Product, int64, error) {
	return s.Query.ListProducts(ctx, filter, params)
}

// ListOrders 订单列表
func (s *CRMService) ListOrders(ctx context.Context, filter domain.OrderFilter, params ListParams) ([]*domain.Order, int64, error) {
	return s.Query.ListOrders(ctx, filter, params)
}

// GenerateReport 汇总报表
func (s *CRMService) GenerateReport(ctx context.Context) (*Report, error) {
	return s.Query.GenerateReport(ctx)
}
