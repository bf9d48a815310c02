package http

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/crm/internal/crm/application"
	"github.com/wyfcoding/crm/internal/crm/domain"
	"github.com/wyfcoding/crm/pkg/utils"
)

// 查询参数到过滤条件的转换，未出现的参数保持为 nil

func optString(c *gin.Context, key string) *string {
	if v, ok := c.GetQuery(key); ok && v != "" {
		return &v
	}
	return nil
}

// optPhone 未编码的 "+" 在查询串中被解码为空格，号码不会以空格开头，按 "+" 还原
func optPhone(c *gin.Context, key string) *string {
	v := optString(c, key)
	if v == nil || !strings.HasPrefix(*v, " ") {
		return v
	}
	p := "+" + strings.TrimPrefix(*v, " ")
	return &p
}

func optInt(c *gin.Context, key string) (*int, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return &n, nil
}

func optDecimal(c *gin.Context, key string) (*decimal.Decimal, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number", key, v)
	}
	return &d, nil
}

func optBool(c *gin.Context, key string) (*bool, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	return &b, nil
}

// optTime 日期形式的上界延伸到当天结束
func optTime(c *gin.Context, key string, endOfDay bool) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := utils.ParseTimeBound(v, endOfDay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &t, nil
}

func customerFilter(c *gin.Context) (domain.CustomerFilter, error) {
	f := domain.CustomerFilter{
		NameContains:  optString(c, "name"),
		EmailContains: optString(c, "email"),
		PhonePattern:  optPhone(c, "phone"),
	}
	var err error
	if f.CreatedAtGte, err = optTime(c, "created_gte", false); err != nil {
		return f, err
	}
	if f.CreatedAtLte, err = optTime(c, "created_lte", true); err != nil {
		return f, err
	}
	return f, nil
}

func productFilter(c *gin.Context) (domain.ProductFilter, error) {
	f := domain.ProductFilter{NameContains: optString(c, "name")}
	var err error
	if f.PriceGte, err = optDecimal(c, "price_gte"); err != nil {
		return f, err
	}
	if f.PriceLte, err = optDecimal(c, "price_lte"); err != nil {
		return f, err
	}
	if f.StockGte, err = optInt(c, "stock_gte"); err != nil {
		return f, err
	}
	if f.StockLte, err = optInt(c, "stock_lte"); err != nil {
		return f, err
	}
	if f.LowStock, err = optBool(c, "low_stock"); err != nil {
		return f, err
	}
	return f, nil
}

func orderFilter(c *gin.Context) (domain.OrderFilter, error) {
	f := domain.OrderFilter{
		CustomerName: optString(c, "customer_name"),
		ProductName:  optString(c, "product_name"),
	}
	var err error
	if f.TotalAmountGte, err = optDecimal(c, "total_gte"); err != nil {
		return f, err
	}
	if f.TotalAmountLte, err = optDecimal(c, "total_lte"); err != nil {
		return f, err
	}
	if f.OrderDateGte, err = optTime(c, "date_gte", false); err != nil {
		return f, err
	}
	if f.OrderDateLte, err = optTime(c, "date_lte", true); err != nil {
		return f, err
	}
	if v := c.Query("product_id"); v != "" {
		id, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			return f, fmt.Errorf("product_id: %q is not an id", v)
		}
		pid := uint(id)
		f.ProductID = &pid
	}
	return f, nil
}

// pagination page 从 1 开始，page_size 默认 20
func pagination(c *gin.Context) *utils.Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return utils.NewPagination(page, size, 0)
}

func listParams(c *gin.Context, p *utils.Pagination) application.ListParams {
	return application.ListParams{
		OrderBy: c.Query("order_by"),
		Limit:   p.Limit(),
		Offset:  p.Offset(),
	}
}
