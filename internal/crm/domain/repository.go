package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// TxManager 事务管理器，fn 内通过 ctx 传递的仓储调用共享同一事务
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CustomerRepository 客户仓储接口
type CustomerRepository interface {
	// Create 新建客户，邮箱冲突返回 ErrDuplicateEmail
	Create(ctx context.Context, customer *Customer) error
	// Update 更新姓名与电话
	Update(ctx context.Context, customer *Customer) error
	// GetByID 获取客户，不存在返回 nil, nil
	GetByID(ctx context.Context, id uint) (*Customer, error)
	// ExistsByEmail 邮箱是否已存在
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// List 按条件查询，返回当前页及总数
	List(ctx context.Context, filter CustomerFilter, opts ListOptions) ([]*Customer, int64, error)
	// Count 客户总数
	Count(ctx context.Context) (int64, error)
	// Delete 删除客户
	Delete(ctx context.Context, id uint) error
}

// ProductRepository 商品仓储接口
type ProductRepository interface {
	Create(ctx context.Context, product *Product) error
	Update(ctx context.Context, product *Product) error
	// GetByID 获取商品，不存在返回 nil, nil
	GetByID(ctx context.Context, id uint) (*Product, error)
	// GetByIDs 批量获取，结果按 ID 升序，不存在的 ID 被忽略
	GetByIDs(ctx context.Context, ids []uint) ([]*Product, error)
	// LockByIDs 在当前事务中按 ID 升序加行锁读取
	LockByIDs(ctx context.Context, ids []uint) ([]*Product, error)
	// DecrementStock 条件扣减库存，库存不足时返回 false
	DecrementStock(ctx context.Context, id uint, quantity int) (bool, error)
	// IncrementStock 增加库存
	IncrementStock(ctx context.Context, id uint, quantity int) error
	// IsReferenced 是否被订单明细引用
	IsReferenced(ctx context.Context, id uint) (bool, error)
	List(ctx context.Context, filter ProductFilter, opts ListOptions) ([]*Product, int64, error)
	Delete(ctx context.Context, id uint) error
}

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// Create 写入订单外壳
	Create(ctx context.Context, order *Order) error
	// CreateLine 写入一条明细
	CreateLine(ctx context.Context, line *OrderLine) error
	// UpdateTotal 写入订单总额
	UpdateTotal(ctx context.Context, orderID uint, total decimal.Decimal) error
	// GetByID 获取订单及其客户与明细，不存在返回 nil, nil
	GetByID(ctx context.Context, id uint) (*Order, error)
	List(ctx context.Context, filter OrderFilter, opts ListOptions) ([]*Order, int64, error)
	Count(ctx context.Context) (int64, error)
	// SumTotalAmount 所有订单金额之和
	SumTotalAmount(ctx context.Context) (decimal.Decimal, error)
	// DeleteByCustomer 删除客户的全部订单及明细，返回删除的订单数
	DeleteByCustomer(ctx context.Context, customerID uint) (int64, error)
}
