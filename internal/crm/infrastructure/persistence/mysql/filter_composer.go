package mysql

import (
	"math"
	"strings"

	"github.com/wyfcoding/crm/internal/crm/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Condition 单个过滤谓词，多个 Condition 以 AND 组合
type Condition struct {
	SQL  string
	Args []any
}

const likeEscape = "!"

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// escapeLike 转义 LIKE 通配符，使输入按字面匹配
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func containsCondition(column, value string) Condition {
	return Condition{
		SQL:  "LOWER(" + column + ") LIKE LOWER(?) ESCAPE '" + likeEscape + "'",
		Args: []any{"%" + escapeLike(value) + "%"},
	}
}

func prefixCondition(column, value string) Condition {
	return Condition{
		SQL:  column + " LIKE ? ESCAPE '" + likeEscape + "'",
		Args: []any{escapeLike(value) + "%"},
	}
}

func cmp(column, op string, v any) Condition {
	return Condition{SQL: column + " " + op + " ?", Args: []any{v}}
}

// CustomerConditions 将客户过滤条件转换为谓词列表
func CustomerConditions(f domain.CustomerFilter) []Condition {
	var conds []Condition
	if f.NameContains != nil {
		conds = append(conds, containsCondition("name", *f.NameContains))
	}
	if f.EmailContains != nil {
		conds = append(conds, containsCondition("email", *f.EmailContains))
	}
	if f.CreatedAtGte != nil {
		conds = append(conds, cmp("created_at", ">=", f.CreatedAtGte.UTC()))
	}
	if f.CreatedAtLte != nil {
		conds = append(conds, cmp("created_at", "<=", f.CreatedAtLte.UTC()))
	}
	if f.PhonePattern != nil {
		if strings.HasPrefix(*f.PhonePattern, "+") {
			conds = append(conds, prefixCondition("phone", *f.PhonePattern))
		} else {
			conds = append(conds, containsCondition("phone", *f.PhonePattern))
		}
	}
	return conds
}

// ProductConditions 将商品过滤条件转换为谓词列表
func ProductConditions(f domain.ProductFilter) []Condition {
	var conds []Condition
	if f.NameContains != nil {
		conds = append(conds, containsCondition("name", *f.NameContains))
	}
	if f.PriceGte != nil {
		conds = append(conds, cmp("price", ">=", *f.PriceGte))
	}
	if f.PriceLte != nil {
		conds = append(conds, cmp("price", "<=", *f.PriceLte))
	}
	if f.StockGte != nil {
		conds = append(conds, cmp("stock", ">=", *f.StockGte))
	}
	if f.StockLte != nil {
		conds = append(conds, cmp("stock", "<=", *f.StockLte))
	}
	if f.LowStock != nil && *f.LowStock {
		conds = append(conds, cmp("stock", "<", domain.LowStockThreshold))
	}
	return conds
}

// OrderConditions 将订单过滤条件转换为谓词列表。
// 客户与商品维度使用子查询，订单匹配多条明细时也只出现一次。
func OrderConditions(f domain.OrderFilter) []Condition {
	var conds []Condition
	if f.TotalAmountGte != nil {
		conds = append(conds, cmp("total_amount", ">=", *f.TotalAmountGte))
	}
	if f.TotalAmountLte != nil {
		conds = append(conds, cmp("total_amount", "<=", *f.TotalAmountLte))
	}
	if f.OrderDateGte != nil {
		conds = append(conds, cmp("order_date", ">=", f.OrderDateGte.UTC()))
	}
	if f.OrderDateLte != nil {
		conds = append(conds, cmp("order_date", "<=", f.OrderDateLte.UTC()))
	}
	if f.CustomerName != nil {
		c := containsCondition("c.name", *f.CustomerName)
		conds = append(conds, Condition{
			SQL:  "customer_id IN (SELECT c.id FROM customers c WHERE " + c.SQL + ")",
			Args: c.Args,
		})
	}
	if f.ProductName != nil {
		c := containsCondition("p.name", *f.ProductName)
		conds = append(conds, Condition{
			SQL:  "id IN (SELECT ol.order_id FROM order_lines ol JOIN products p ON p.id = ol.product_id WHERE " + c.SQL + ")",
			Args: c.Args,
		})
	}
	if f.ProductID != nil {
		conds = append(conds, Condition{
			SQL:  "id IN (SELECT ol.order_id FROM order_lines ol WHERE ol.product_id = ?)",
			Args: []any{*f.ProductID},
		})
	}
	return conds
}

func applyConditions(q *gorm.DB, conds []Condition) *gorm.DB {
	for _, c := range conds {
		q = q.Where(c.SQL, c.Args...)
	}
	return q
}

// applyListOptions 追加排序与分页，排序末尾补充 id 保证分页稳定
func applyListOptions(q *gorm.DB, opts domain.ListOptions, defaults []domain.OrderField) *gorm.DB {
	fields := opts.OrderBy
	if len(fields) == 0 {
		fields = defaults
	}
	hasID := false
	for _, f := range fields {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: f.Name}, Desc: f.Desc})
		hasID = hasID || f.Name == "id"
	}
	if !hasID {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	}

	switch {
	case opts.Limit > 0:
		q = q.Limit(opts.Limit)
	case opts.Offset > 0:
		// SQLite 不支持无 LIMIT 的 OFFSET
		q = q.Limit(math.MaxInt32)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	return q
}
