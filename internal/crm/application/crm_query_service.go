package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/crm/internal/crm/domain"
	"golang.org/x/sync/errgroup"
)

// CRMQueryService CRM 查询服务
type CRMQueryService struct {
	customers domain.CustomerRepository
	products  domain.ProductRepository
	orders    domain.OrderRepository
}

// NewCRMQueryService 创建查询服务实例
func NewCRMQueryService(
	customers domain.CustomerRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
) *CRMQueryService {
	return &CRMQueryService{
		customers: customers,
		products:  products,
		orders:    orders,
	}
}

func listOptions(params ListParams, allowed []string) (domain.ListOptions, error) {
	fields, err := domain.ParseOrderBy(params.OrderBy, allowed)
	if err != nil {
		return domain.ListOptions{}, err
	}
	opts := domain.ListOptions{OrderBy: fields, Limit: params.Limit, Offset: params.Offset}
	if opts.Limit < 0 {
		opts.Limit = 0
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts, nil
}

// GetCustomer 根据 ID 获取客户，不存在返回 nil, nil
func (s *CRMQueryService) GetCustomer(ctx context.Context, id uint) (*domain.Customer, error) {
	return s.customers.GetByID(ctx, id)
}

// GetProduct 根据 ID 获取商品，不存在返回 nil, nil
func (s *CRMQueryService) GetProduct(ctx context.Context, id uint) (*domain.Product, error) {
	return s.products.GetByID(ctx, id)
}

// GetOrder 根据 ID 获取订单及明细，不存在返回 nil, nil
func (s *CRMQueryService) GetOrder(ctx context.Context, id uint) (*domain.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// ListCustomers 列出客户，排序字段非法时返回包装了 ErrUnknownOrderField 的错误
func (s *CRMQueryService) ListCustomers(ctx context.Context, filter domain.CustomerFilter, params ListParams) ([]*domain.Customer, int64, error) {
	opts, err := listOptions(params, domain.CustomerOrderFields)
	if err != nil {
		return nil, 0, err
	}
	return s.customers.List(ctx, filter, opts)
}

// ListProducts 列出商品
func (s *CRMQueryService) ListProducts(ctx context.Context, filter domain.ProductFilter, params ListParams) ([]*domain.Product, int64, error) {
	opts, err := listOptions(params, domain.ProductOrderFields)
	if err != nil {
		return nil, 0, err
	}
	return s.products.List(ctx, filter, opts)
}

// ListOrders 列出订单
func (s *CRMQueryService) ListOrders(ctx context.Context, filter domain.OrderFilter, params ListParams) ([]*domain.Order, int64, error) {
	opts, err := listOptions(params, domain.OrderOrderFields)
	if err != nil {
		return nil, 0, err
	}
	return s.orders.List(ctx, filter, opts)
}

// GenerateReport 并发统计客户数、订单数与总营收
func (s *CRMQueryService) GenerateReport(ctx context.Context) (*Report, error) {
	report := &Report{TotalRevenue: decimal.Zero}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.customers.Count(gctx)
		report.TotalCustomers = n
		return err
	})
	g.Go(func() error {
		n, err := s.orders.Count(gctx)
		report.TotalOrders = n
		return err
	})
	g.Go(func() error {
		sum, err := s.orders.SumTotalAmount(gctx)
		report.TotalRevenue = sum
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to generate report: %w", err)
	}
	return report, nil
}
