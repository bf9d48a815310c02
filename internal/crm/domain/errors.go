package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound 写操作的目标实体不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail 邮箱已被其他客户使用
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrUnknownOrderField 排序字段不在允许列表中
	ErrUnknownOrderField = errors.New("unknown order field")
	// ErrProductReferenced 商品仍被订单明细引用，不能删除
	ErrProductReferenced = errors.New("product is referenced by order lines")
	// ErrInsufficientStock 库存不足
	ErrInsufficientStock = errors.New("insufficient stock")
)

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors 校验错误集合，校验函数总是收集全部错误后返回
type ValidationErrors []FieldError

// Add 追加一条字段错误
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// Merge 合并另一组错误
func (v *ValidationErrors) Merge(other ValidationErrors) {
	*v = append(*v, other...)
}

// HasErrors 是否存在错误
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Messages 按出现顺序返回错误消息
func (v ValidationErrors) Messages() []string {
	msgs := make([]string, 0, len(v))
	for _, fe := range v {
		msgs = append(msgs, fe.Message)
	}
	return msgs
}

// Error 实现 error 接口
func (v ValidationErrors) Error() string {
	return strings.Join(v.Messages(), "; ")
}

// OrNil 无错误时返回 nil，避免把空集合当作 error 返回
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
