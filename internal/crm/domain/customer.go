// Package domain 包含 CRM 的领域模型：客户、商品、订单及其校验规则
package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	MaxCustomerNameLength = 100
	MaxEmailLength        = 254
	MaxPhoneLength        = 20
)

// 消息
const (
	MsgEmailExists  = "Email already exists"
	MsgInvalidPhone = "Phone number must be in format: +1234567890 or 123-456-7890"
	MsgInvalidEmail = "Enter a valid email address"
)

// 可选国家码，可选括号区号，分隔符为 - . 或空白
var phonePattern = regexp.MustCompile(`^(\+\d{1,3}[-.\s]?)?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}$`)

var validate = validator.New()

// Customer 客户实体
type Customer struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCustomer 创建客户，输入会去除首尾空白，空电话视为未提供
func NewCustomer(name, email string, phone *string) *Customer {
	return &Customer{
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
		Phone: NormalizePhone(phone),
	}
}

// NormalizePhone 去除空白，空字符串返回 nil
func NormalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	p := strings.TrimSpace(*phone)
	if p == "" {
		return nil
	}
	return &p
}

// ValidatePhone 电话号码格式校验
func ValidatePhone(phone string) bool {
	return utf8.RuneCountInString(phone) <= MaxPhoneLength && phonePattern.MatchString(phone)
}

// ValidateEmail 邮箱格式校验
func ValidateEmail(email string) bool {
	if utf8.RuneCountInString(email) > MaxEmailLength {
		return false
	}
	return validate.Var(email, "required,email") == nil
}

// ValidateCustomerInput 校验客户字段，返回全部错误
func ValidateCustomerInput(name, email string, phone *string) ValidationErrors {
	var errs ValidationErrors
	errs.Merge(validateCustomerName(name))
	if !ValidateEmail(email) {
		errs.Add("email", MsgInvalidEmail)
	}
	if phone != nil && !ValidatePhone(*phone) {
		errs.Add("phone", MsgInvalidPhone)
	}
	return errs
}

func validateCustomerName(name string) ValidationErrors {
	var errs ValidationErrors
	switch n := utf8.RuneCountInString(name); {
	case strings.TrimSpace(name) == "":
		errs.Add("name", "Name is required")
	case n > MaxCustomerNameLength:
		errs.Add("name", fmt.Sprintf("Name must be at most %d characters", MaxCustomerNameLength))
	}
	return errs
}

// Validate 校验实体当前状态
func (c *Customer) Validate() ValidationErrors {
	return ValidateCustomerInput(c.Name, c.Email, c.Phone)
}

// Rename 修改姓名
func (c *Customer) Rename(name string) ValidationErrors {
	name = strings.TrimSpace(name)
	if errs := validateCustomerName(name); errs.HasErrors() {
		return errs
	}
	c.Name = name
	return nil
}

// ChangePhone 修改电话，传入空字符串表示清除
func (c *Customer) ChangePhone(phone string) ValidationErrors {
	p := NormalizePhone(&phone)
	if p != nil && !ValidatePhone(*p) {
		return ValidationErrors{{Field: "phone", Message: MsgInvalidPhone}}
	}
	c.Phone = p
	return nil
}
