package application

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/crm/internal/crm/domain"
)

// DuplicateItemPolicy 同一订单中重复商品 ID 的处理策略
type DuplicateItemPolicy string

const (
	// DuplicateItemsMerge 合并为一条明细，数量相加，保留首次出现的顺序
	DuplicateItemsMerge DuplicateItemPolicy = "merge"
	// DuplicateItemsReject 视为校验错误
	DuplicateItemsReject DuplicateItemPolicy = "reject"
)

// DefaultRestockIncrement 低库存补货默认增量
const DefaultRestockIncrement = 10

// CustomerInput 创建客户输入
type CustomerInput struct {
	Name  string
	Email string
	Phone *string
}

// UpdateCustomerCommand 更新客户命令，nil 字段不修改；Phone 为空字符串表示清除
type UpdateCustomerCommand struct {
	ID    uint
	Name  *string
	Phone *string
}

// CreateProductCommand 创建商品命令
type CreateProductCommand struct {
	Name  string
	Price decimal.Decimal
	Stock int
}

// UpdateProductCommand 更新商品命令，nil 字段不修改
type UpdateProductCommand struct {
	ID    uint
	Name  *string
	Price *decimal.Decimal
	Stock *int
}

// OrderItemInput 订单商品项
type OrderItemInput struct {
	ProductID uint
	Quantity  int
}

// CreateOrderCommand 下单命令，OrderDate 为空时使用当前时间
type CreateOrderCommand struct {
	CustomerID uint
	Items      []OrderItemInput
	OrderDate  *time.Time
}

// NewCreateOrderCommand 以商品 ID 列表下单，每个商品数量为 1
func NewCreateOrderCommand(customerID uint, productIDs ...uint) CreateOrderCommand {
	items := make([]OrderItemInput, 0, len(productIDs))
	for _, id := range productIDs {
		items = append(items, OrderItemInput{ProductID: id, Quantity: 1})
	}
	return CreateOrderCommand{CustomerID: customerID, Items: items}
}

// ListParams 列表查询参数，OrderBy 为逗号分隔的排序字段
type ListParams struct {
	OrderBy string
	Limit   int
	Offset  int
}

// CustomerResult 客户写操作结果
type CustomerResult struct {
	Customer    *domain.Customer        `json:"customer"`
	Success     bool                    `json:"success"`
	Message     string                  `json:"message"`
	Errors      []string                `json:"errors"`
	FieldErrors domain.ValidationErrors `json:"field_errors,omitempty"`
}

// BulkCustomerResult 批量创建客户结果，SuccessCount + len(Errors) == TotalCount
type BulkCustomerResult struct {
	Customers    []*domain.Customer `json:"customers"`
	Errors       []string           `json:"errors"`
	SuccessCount int                `json:"success_count"`
	TotalCount   int                `json:"total_count"`
}

// ProductResult 商品写操作结果
type ProductResult struct {
	Product     *domain.Product         `json:"product"`
	Success     bool                    `json:"success"`
	Message     string                  `json:"message"`
	Errors      []string                `json:"errors"`
	FieldErrors domain.ValidationErrors `json:"field_errors,omitempty"`
}

// OrderResult 下单结果
type OrderResult struct {
	Order       *domain.Order           `json:"order"`
	Success     bool                    `json:"success"`
	Message     string                  `json:"message"`
	Errors      []string                `json:"errors"`
	FieldErrors domain.ValidationErrors `json:"field_errors,omitempty"`
}

// DeleteResult 删除结果
type DeleteResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// RestockResult 低库存补货结果
type RestockResult struct {
	Success         bool     `json:"success"`
	Message         string   `json:"message"`
	UpdatedProducts []string `json:"updated_products"`
}

// Report 汇总报表
type Report struct {
	TotalCustomers int64           `json:"total_customers"`
	TotalOrders    int64           `json:"total_orders"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
}
