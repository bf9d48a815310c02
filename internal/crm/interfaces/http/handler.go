// Package http 将 CRM 应用服务暴露为 REST 接口
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/crm/internal/crm/application"
	"github.com/wyfcoding/crm/internal/crm/domain"
	"github.com/wyfcoding/crm/pkg/logger"
	"github.com/wyfcoding/crm/pkg/response"
	"github.com/wyfcoding/crm/pkg/utils"
)

const msgInsufficientStock = "Insufficient stock"

// CRMHandler HTTP 处理器
type CRMHandler struct {
	svc *application.CRMService
}

// NewCRMHandler 创建 HTTP 处理器实例
func NewCRMHandler(svc *application.CRMService) *CRMHandler {
	return &CRMHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *CRMHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1")

	customers := api.Group("/customers")
	{
		customers.POST("", h.CreateCustomer)
		customers.GET("", h.ListCustomers)
		customers.POST("/bulk", h.BulkCreateCustomers)
		customers.GET("/:id", h.GetCustomer)
		customers.PATCH("/:id", h.UpdateCustomer)
		customers.DELETE("/:id", h.DeleteCustomer)
	}

	products := api.Group("/products")
	{
		products.POST("", h.CreateProduct)
		products.GET("", h.ListProducts)
		products.POST("/restock", h.RestockProducts) // 低库存补货
		products.GET("/:id", h.GetProduct)
		products.PATCH("/:id", h.UpdateProduct)
		products.DELETE("/:id", h.DeleteProduct)
	}

	orders := api.Group("/orders")
	{
		orders.POST("", h.CreateOrder)
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrder)
	}

	api.GET("/reports/summary", h.GetReport)
}

// failureStatus 写操作失败信封对应的 HTTP 状态码
func failureStatus(message string) int {
	switch message {
	case "Validation failed":
		return http.StatusBadRequest
	case msgInsufficientStock:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", c.Param("id"))
		return 0, false
	}
	return uint(id), true
}

// listError 排序字段非法属于调用方错误，其余为内部错误
func listError(c *gin.Context, what string, err error) {
	if errors.Is(err, domain.ErrUnknownOrderField) {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid order_by", err.Error())
		return
	}
	logger.Error(c.Request.Context(), "Failed to list "+what, "error", err)
	response.ErrorWithStatus(c, http.StatusInternalServerError, "Failed to list "+what, err.Error())
}

// --- Customers ---

// CustomerRequest 创建客户请求
type CustomerRequest struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

func (r CustomerRequest) input() application.CustomerInput {
	return application.CustomerInput{Name: r.Name, Email: r.Email, Phone: r.Phone}
}

// BulkCustomerRequest 批量创建客户请求
type BulkCustomerRequest struct {
	Customers []CustomerRequest `json:"customers" binding:"required"`
}

// UpdateCustomerRequest 更新客户请求，省略的字段不修改
type UpdateCustomerRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// CreateCustomer 创建客户
func (h *CRMHandler) CreateCustomer(c *gin.Context) {
	var req CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	res := h.svc.CreateCustomer(c.Request.Context(), req.input())
	if !res.Success {
		response.ErrorWithData(c, failureStatus(res.Message), res.Message, res)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, res)
}

// BulkCreateCustomers 批量创建客户，部分行失败时仍返回 200
func (h *CRMHandler) BulkCreateCustomers(c *gin.Context) {
	var req BulkCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	inputs := make([]application.CustomerInput, 0, len(req.Customers))
	for _, r := range req.Customers {
		inputs = append(inputs, r.input())
	}
	response.Success(c, h.svc.BulkCreateCustomers(c.Request.Context(), inputs))
}

// GetCustomer 获取客户
func (h *CRMHandler) GetCustomer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	customer, err := h.svc.GetCustomer(c.Request.Context(), id)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to get customer", "customer_id", id, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}
	if customer == nil {
		response.ErrorWithStatus(c, http.StatusNotFound, "customer not found", "")
		return
	}
	response.Success(c, customer)
}

// UpdateCustomer 更新客户
func (h *CRMHandler) UpdateCustomer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	res := h.svc.UpdateCustomer(c.Request.Context(), application.UpdateCustomerCommand{ID: id, Name: req.Name, Phone: req.Phone})
	if !res.Success {
		response.ErrorWithData(c, failureStatus(res.Message), res.Message, res)
		return
	}
	response.Success(c, res)
}

// DeleteCustomer 删除客户及其订单
func (h *CRMHandler) DeleteCustomer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	res := h.svc.DeleteCustomer(c.Request.Context(), id)
	if !res.Success {
		response.ErrorWithData(c, failureStatus(res.Message), res.Message, res)
		return
	}
	response.Success(c, res)
}

// ListCustomers 客户列表
func (h *CRMHandler) ListCustomers(c *gin.Context) {
	filter, err := customerFilter(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid filter", err.Error())
		return
	}
	page := pagination(c)

	customers, total, err := h.svc.ListCustomers(c.Request.Context(), filter, listParams(c, page))
	if err != nil {
		listError(c, "customers", err)
		return
	}
	response.Success(c, gin.H{"items": customers, "pagination": utils.NewPagination(page.Page, page.PageSize, total)})
}

// --- Products ---

// ProductRequest 创建商品请求
type ProductRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// UpdateProductRequest 更新商品请求
type UpdateProductRequest struct {
	Name  *string          `json:"name"`
	Price *decimal.Decimal `json:"price"`
	Stock *int             `json:"stock"`
}

// CreateProduct 创建商品
func (h *CRMHandler) CreateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	res := h.svc.CreateProduct(c.Request.Context(), application.CreateProductCommand{Name: req.Name, Price: req.Price, Stock: req.Stock})
	if !res.Success {
		response.ErrorWithData(c, failureStatus(res.Message), res.Message, res)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, res)
}

// GetProduct 获取商品
func (h *CRMHandler) GetProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	product, err := h.svc.GetProduct(c.Request.Context(), id)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to get product", "product_id", id, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}
	if product == nil {
		response.ErrorWithStatus(c, http.StatusNotFound, "product not found", "")
		return
	}
	response.Success(c, product)
}

// UpdateProduct 更新商品
func (h *CRMHandler) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	res := h.svc.UpdateProduct(c.Request.Context(), application.UpdateProductCommand{
		ID:    id,
		Name:  req.Name,
		Price: req.Price,
		Stock: req.Stock,
	})
	if !res.Success {
		response.ErrorWithData(c, failureStatus(res.Message), res.Message, res)
		return
	}
	response.Success(c, res)
}

// DeleteProduct 删除商品
func (h *CRMHandler) DeleteProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	res := h.svc.DeleteProduct(c.Request.Context(), id)
	if !res.Success {
		response.ErrorWithData(c, failureStatus(res.Message), res.Message, res)
		return
	}
	response.Success(c, res)
}

// RestockProducts 低库存补货，increment 缺省时使用服务配置
func (h *CRMHandler) RestockProducts(c *gin.Context) {
	increment := 0
	if raw := c.Query("increment"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.ErrorWithStatus(c, http.StatusBadRequest, "increment must be a positive integer", raw)
			return
		}
		increment = n
	}

	res := h.svc.UpdateLowStockProducts(c.Request.Context(), increment)
	if !res.Success {
		response.ErrorWithData(c, http.StatusInternalServerError, res.Message, res)
		return
	}
	response.Success(c, res)
}

// ListProducts 商品列表
func (h *CRMHandler) ListProducts(c *gin.Context) {
	filter, err := productFilter(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid filter", err.Error())
		return
	}
	page := pagination(c)

	products, total, err := h.svc.ListProducts(c.Request.Context(), filter, listParams(c, page))
	if err != nil {
		listError(c, "products", err)
		return
	}
	response.Success(c, gin.H{"items": products, "pagination": utils.NewPagination(page.Page, page.PageSize, total)})
}

// --- Orders ---

// OrderItemRequest 订单商品项
type OrderItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// CreateOrderRequest 创建订单请求。
// items 与 product_ids 二选一，product_ids 中每个商品数量为 1。
type CreateOrderRequest struct {
	CustomerID uint               `json:"customer_id"`
	ProductIDs []uint             `json:"product_ids"`
	Items      []OrderItemRequest `json:"items"`
	OrderDate  *time.Time         `json:"order_date"`
}

// CreateOrder 下单
func (h *CRMHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	cmd := application.NewCreateOrderCommand(req.CustomerID, req.ProductIDs...)
	if len(req.Items) > 0 {
		cmd.Items = make([]application.OrderItemInput, 0, len(req.Items))
		for _, it := range req.Items {
			cmd.Items = append(cmd.Items, application.OrderItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
		}
	}
	cmd.OrderDate = req.OrderDate

	res := h.svc.CreateOrder(c.Request.Context(), cmd)
	if !res.Success {
		response.ErrorWithData(c, failureStatus(res.Message), res.Message, res)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, res)
}

// GetOrder 获取订单
func (h *CRMHandler) GetOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	order, err := h.svc.GetOrder(c.Request.Context(), id)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to get order", "order_id", id, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}
	if order == nil {
		response.ErrorWithStatus(c, http.StatusNotFound, "order not found", "")
		return
	}
	response.Success(c, order)
}

// ListOrders 订单列表
func (h *CRMHandler) ListOrders(c *gin.Context) {
	filter, err := orderFilter(c)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid filter", err.Error())
		return
	}
	page := pagination(c)

	orders, total, err := h.svc.ListOrders(c.Request.Context(), filter, listParams(c, page))
	if err != nil {
		listError(c, "orders", err)
		return
	}
	response.Success(c, gin.H{"items": orders, "pagination": utils.NewPagination(page.Page, page.PageSize, total)})
}

// GetReport 汇总报表
func (h *CRMHandler) GetReport(c *gin.Context) {
	report, err := h.svc.GenerateReport(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to generate report", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}
	response.Success(c, report)
}
