package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// CustomerFilter 客户过滤条件，nil 字段不参与过滤
type CustomerFilter struct {
	NameContains  *string
	EmailContains *string
	CreatedAtGte  *time.Time
	CreatedAtLte  *time.Time
	// 以 + 开头为前缀匹配，否则为子串匹配
	PhonePattern *string
}

// ProductFilter 商品过滤条件
type ProductFilter struct {
	NameContains *string
	PriceGte     *decimal.Decimal
	PriceLte     *decimal.Decimal
	StockGte     *int
	StockLte     *int
	// true 时仅返回库存小于 LowStockThreshold 的商品，false 等同未设置
	LowStock *bool
}

// OrderFilter 订单过滤条件，商品相关条件跨越订单明细
type OrderFilter struct {
	TotalAmountGte *decimal.Decimal
	TotalAmountLte *decimal.Decimal
	OrderDateGte   *time.Time
	OrderDateLte   *time.Time
	CustomerName   *string
	ProductName    *string
	ProductID      *uint
}

// ListOptions 列表查询选项，Limit 为 0 表示不限制
type ListOptions struct {
	OrderBy []OrderField
	Limit   int
	Offset  int
}

// OrderField 排序字段
type OrderField struct {
	Name string
	Desc bool
}

// String 还原为 "-name" 形式
func (f OrderField) String() string {
	if f.Desc {
		return "-" + f.Name
	}
	return f.Name
}

// 各实体允许的排序字段及默认排序
var (
	CustomerOrderFields = []string{"id", "name", "email", "phone", "created_at", "updated_at"}
	ProductOrderFields  = []string{"id", "name", "price", "stock", "created_at", "updated_at"}
	OrderOrderFields    = []string{"id", "order_date", "total_amount", "customer_id", "created_at", "updated_at"}

	DefaultCustomerOrder = []OrderField{{Name: "name"}}
	DefaultProductOrder  = []OrderField{{Name: "id"}}
	DefaultOrderOrder    = []OrderField{{Name: "order_date", Desc: true}}
)

// ParseOrderBy 解析逗号分隔的排序参数，"-" 前缀表示降序，camelCase 会被转换为 snake_case。
// 空字符串返回 nil，调用方使用默认排序。
func ParseOrderBy(raw string, allowed []string) ([]OrderField, error) {
	var fields []OrderField
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f := OrderField{}
		if strings.HasPrefix(part, "-") {
			f.Desc = true
			part = strings.TrimSpace(part[1:])
		}
		f.Name = toSnakeCase(part)
		if !slices.Contains(allowed, f.Name) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownOrderField, part)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
