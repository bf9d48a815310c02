package mysql

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/crm/internal/crm/domain"
	"github.com/wyfcoding/crm/pkg/db"
	"gorm.io/gorm"
)

type repos struct {
	db        *gorm.DB
	customers domain.CustomerRepository
	products  domain.ProductRepository
	orders    domain.OrderRepository
	tx        domain.TxManager
}

func newRepos(t *testing.T) *repos {
	t.Helper()
	d, err := db.Init(db.Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, AutoMigrate(d.DB))
	return &repos{
		db:        d.DB,
		customers: NewCustomerRepository(d.DB),
		products:  NewProductRepository(d.DB),
		orders:    NewOrderRepository(d.DB),
		tx:        NewTxManager(d.DB),
	}
}

func ptr[T any](v T) *T { return &v }

var day = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func (r *repos) customer(t *testing.T, name, email string, phone *string, createdAt time.Time) *domain.Customer {
	t.Helper()
	c := domain.NewCustomer(name, email, phone)
	c.CreatedAt, c.UpdatedAt = createdAt, createdAt
	require.NoError(t, r.customers.Create(context.Background(), c))
	return c
}

func (r *repos) product(t *testing.T, name, price string, stock int) *domain.Product {
	t.Helper()
	p := domain.NewProduct(name, decimal.RequireFromString(price), stock)
	require.NoError(t, r.products.Create(context.Background(), p))
	return p
}

func (r *repos) order(t *testing.T, c *domain.Customer, date time.Time, items map[*domain.Product]int) *domain.Order {
	t.Helper()
	ctx := context.Background()
	o := domain.NewOrder(c.ID, date)
	require.NoError(t, r.orders.Create(ctx, o))
	for p, q := range items {
		line := o.AddLine(p, q)
		line.OrderID = o.ID
		require.NoError(t, r.orders.CreateLine(ctx, line))
	}
	o.TotalAmount = o.CalculateTotal()
	require.NoError(t, r.orders.UpdateTotal(ctx, o.ID, o.TotalAmount))
	return o
}

func customerNames(cs []*domain.Customer) []string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return names
}

func TestCustomerRepositoryCreateAndDuplicateEmail(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	c := r.customer(t, "Alice", "alice@example.com", ptr("+1234567890"), day)
	assert.NotZero(t, c.ID)

	err := r.customers.Create(ctx, domain.NewCustomer("Other", "alice@example.com", nil))
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	exists, err := r.customers.ExistsByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := r.customers.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "+1234567890", *got.Phone)
	assert.True(t, day.Equal(got.CreatedAt))

	missing, err := r.customers.GetByID(ctx, 999)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCustomerRepositoryUpdateAndDelete(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	c := r.customer(t, "Alice", "alice@example.com", ptr("+1234567890"), day)

	c.Name = "Alicia"
	c.Phone = nil
	c.UpdatedAt = day.Add(time.Hour)
	require.NoError(t, r.customers.Update(ctx, c))

	got, err := r.customers.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alicia", got.Name)
	assert.Nil(t, got.Phone)
	assert.Equal(t, "alice@example.com", got.Email)

	require.NoError(t, r.customers.Delete(ctx, c.ID))
	assert.ErrorIs(t, r.customers.Delete(ctx, c.ID), domain.ErrNotFound)
}

func TestCustomerListFilters(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	r.customer(t, "Alice Smith", "alice@example.com", ptr("+1234567890"), day)
	r.customer(t, "Bob Jones", "bob@test.org", ptr("555-123-4567"), day.Add(48*time.Hour))
	r.customer(t, "Carol smithson", "carol@example.com", nil, day.Add(96*time.Hour))

	list, total, err := r.customers.List(ctx, domain.CustomerFilter{NameContains: ptr("SMITH")}, domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []string{"Alice Smith", "Carol smithson"}, customerNames(list))

	list, _, err = r.customers.List(ctx, domain.CustomerFilter{EmailContains: ptr("example")}, domain.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, _, err = r.customers.List(ctx, domain.CustomerFilter{PhonePattern: ptr("+1")}, domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice Smith"}, customerNames(list))

	list, _, err = r.customers.List(ctx, domain.CustomerFilter{PhonePattern: ptr("123")}, domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice Smith", "Bob Jones"}, customerNames(list))

	list, _, err = r.customers.List(ctx, domain.CustomerFilter{
		CreatedAtGte: ptr(day.Add(48 * time.Hour)),
		CreatedAtLte: ptr(day.Add(96 * time.Hour)),
	}, domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob Jones", "Carol smithson"}, customerNames(list))

	list, total, err = r.customers.List(ctx, domain.CustomerFilter{}, domain.ListOptions{
		OrderBy: []domain.OrderField{{Name: "created_at", Desc: true}},
		Limit:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []string{"Carol smithson", "Bob Jones"}, customerNames(list))

	list, _, err = r.customers.List(ctx, domain.CustomerFilter{}, domain.ListOptions{Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol smithson"}, customerNames(list))
}

func TestLikeWildcardsMatchLiterally(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	r.product(t, "100% cotton", "10.00", 5)
	r.product(t, "1000 threads", "10.00", 5)
	r.product(t, "snake_case mug", "10.00", 5)
	r.product(t, "snakeXcase mug", "10.00", 5)

	list, _, err := r.products.List(ctx, domain.ProductFilter{NameContains: ptr("100%")}, domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "100% cotton", list[0].Name)

	list, _, err = r.products.List(ctx, domain.ProductFilter{NameContains: ptr("e_c")}, domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "snake_case mug", list[0].Name)
}

func TestProductLowStockBoundary(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	nine := r.product(t, "Nine", "1.00", 9)
	r.product(t, "Ten", "1.00", 10)

	list, _, err := r.products.List(ctx, domain.ProductFilter{LowStock: ptr(true)}, domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, nine.ID, list[0].ID)

	list, _, err = r.products.List(ctx, domain.ProductFilter{LowStock: ptr(false)}, domain.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestProductRangeFilters(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	r.product(t, "Cheap", "5.00", 1)
	r.product(t, "Mid", "10.00", 20)
	r.product(t, "Pricey", "99.99", 50)

	list, _, err := r.products.List(ctx, domain.ProductFilter{
		PriceGte: ptr(decimal.RequireFromString("5.00")),
		PriceLte: ptr(decimal.RequireFromString("10.00")),
	}, domain.ListOptions{OrderBy: []domain.OrderField{{Name: "price", Desc: true}}})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Mid", list[0].Name)
	assert.True(t, decimal.RequireFromString("10").Equal(list[0].Price))

	list, _, err = r.products.List(ctx, domain.ProductFilter{StockGte: ptr(20), StockLte: ptr(50)}, domain.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestProductStockGuards(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	p := r.product(t, "Widget", "2.50", 3)

	ok, err := r.products.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.products.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.products.IncrementStock(ctx, p.ID, 10))
	assert.ErrorIs(t, r.products.IncrementStock(ctx, 999, 1), domain.ErrNotFound)

	got, err := r.products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, got.Stock)

	err = r.db.Model(&ProductModel{}).Where("id = ?", p.ID).Update("stock", -1).Error
	assert.Error(t, err, "check constraint keeps stock non-negative")
}

func TestProductLockByIDsInsideTransaction(t *testing.T) {
	r := newRepos(t)
	b := r.product(t, "B", "1.00", 1)
	a := r.product(t, "A", "1.00", 1)

	require.NoError(t, r.tx.WithTx(context.Background(), func(ctx context.Context) error {
		locked, err := r.products.LockByIDs(ctx, []uint{a.ID, b.ID})
		require.NoError(t, err)
		require.Len(t, locked, 2)
		assert.Less(t, locked[0].ID, locked[1].ID)
		return nil
	}))

	none, err := r.products.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProductDeleteAndReferences(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	c := r.customer(t, "Alice", "alice@example.com", nil, day)
	used := r.product(t, "Used", "1.00", 5)
	free := r.product(t, "Free", "1.00", 5)
	r.order(t, c, day, map[*domain.Product]int{used: 1})

	referenced, err := r.products.IsReferenced(ctx, used.ID)
	require.NoError(t, err)
	assert.True(t, referenced)

	referenced, err = r.products.IsReferenced(ctx, free.ID)
	require.NoError(t, err)
	assert.False(t, referenced)

	require.NoError(t, r.products.Delete(ctx, free.ID))
	assert.ErrorIs(t, r.products.Delete(ctx, free.ID), domain.ErrNotFound)
}

func TestOrderRepositoryGetLoadsDetails(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	c := r.customer(t, "Alice", "alice@example.com", nil, day)
	p1 := r.product(t, "Pen", "1.25", 10)
	p2 := r.product(t, "Pad", "3.00", 10)
	o := r.order(t, c, day, map[*domain.Product]int{p1: 2, p2: 1})

	got, err := r.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Customer)
	assert.Equal(t, "Alice", got.Customer.Name)
	require.Len(t, got.Lines, 2)
	for _, l := range got.Lines {
		require.NotNil(t, l.Product)
	}
	assert.True(t, decimal.RequireFromString("5.50").Equal(got.TotalAmount))
	assert.True(t, got.TotalAmount.Equal(got.CalculateTotal()))
	assert.True(t, day.Equal(got.OrderDate))

	missing, err := r.orders.GetByID(ctx, 999)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func orderIDs(os []*domain.Order) []uint {
	ids := make([]uint, len(os))
	for i, o := range os {
		ids[i] = o.ID
	}
	return ids
}

func TestOrderListCrossEntityFiltersDoNotDuplicate(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	alice := r.customer(t, "Alice", "alice@example.com", nil, day)
	bob := r.customer(t, "Bob", "bob@example.com", nil, day)
	widget := r.product(t, "Blue Widget", "2.00", 100)
	gadget := r.product(t, "Red Widget", "3.00", 100)
	other := r.product(t, "Lamp", "10.00", 100)

	o1 := r.order(t, alice, day, map[*domain.Product]int{widget: 1, gadget: 1})
	o2 := r.order(t, bob, day.Add(24*time.Hour), map[*domain.Product]int{widget: 2})
	o3 := r.order(t, bob, day.Add(48*time.Hour), map[*domain.Product]int{other: 1})

	list, total, err := r.orders.List(ctx, domain.OrderFilter{ProductID: ptr(widget.ID)}, domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []uint{o2.ID, o1.ID}, orderIDs(list))

	list, _, err = r.orders.List(ctx, domain.OrderFilter{ProductName: ptr("widget")}, domain.ListOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{o1.ID, o2.ID}, orderIDs(list))

	list, _, err = r.orders.List(ctx, domain.OrderFilter{CustomerName: ptr("bo")}, domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []uint{o3.ID, o2.ID}, orderIDs(list))

	list, _, err = r.orders.List(ctx, domain.OrderFilter{
		CustomerName: ptr("bob"),
		ProductName:  ptr("widget"),
	}, domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []uint{o2.ID}, orderIDs(list))

	list, _, err = r.orders.List(ctx, domain.OrderFilter{
		TotalAmountGte: ptr(decimal.RequireFromString("4.00")),
		TotalAmountLte: ptr(decimal.RequireFromString("5.00")),
	}, domain.ListOptions{OrderBy: []domain.OrderField{{Name: "id"}}})
	require.NoError(t, err)
	assert.Equal(t, []uint{o1.ID, o2.ID}, orderIDs(list))

	list, _, err = r.orders.List(ctx, domain.OrderFilter{OrderDateGte: ptr(day.Add(24 * time.Hour))}, domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []uint{o3.ID, o2.ID}, orderIDs(list))

	list, _, err = r.orders.List(ctx, domain.OrderFilter{OrderDateLte: ptr(day)}, domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []uint{o1.ID}, orderIDs(list))
}

func TestOrderAggregatesAndCascade(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	sum, err := r.orders.SumTotalAmount(ctx)
	require.NoError(t, err)
	assert.True(t, sum.IsZero())

	alice := r.customer(t, "Alice", "alice@example.com", nil, day)
	bob := r.customer(t, "Bob", "bob@example.com", nil, day)
	p := r.product(t, "Pen", "0.10", 100)
	r.order(t, alice, day, map[*domain.Product]int{p: 3})
	r.order(t, alice, day, map[*domain.Product]int{p: 7})
	r.order(t, bob, day, map[*domain.Product]int{p: 1})

	sum, err = r.orders.SumTotalAmount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.1", sum.String())

	count, err := r.orders.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	var deleted int64
	require.NoError(t, r.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = r.orders.DeleteByCustomer(ctx, alice.ID)
		return err
	}))
	assert.Equal(t, int64(2), deleted)

	var lines int64
	require.NoError(t, r.db.Model(&OrderLineModel{}).Count(&lines).Error)
	assert.Equal(t, int64(1), lines)
}

func TestConditionsOnlyForSuppliedDimensions(t *testing.T) {
	assert.Empty(t, CustomerConditions(domain.CustomerFilter{}))
	assert.Empty(t, ProductConditions(domain.ProductFilter{LowStock: ptr(false)}))
	assert.Empty(t, OrderConditions(domain.OrderFilter{}))

	conds := ProductConditions(domain.ProductFilter{LowStock: ptr(true), StockGte: ptr(1)})
	require.Len(t, conds, 2)
	assert.Equal(t, "stock < ?", conds[1].SQL)
	assert.Equal(t, []any{domain.LowStockThreshold}, conds[1].Args)

	assert.Equal(t, "50!%!_off!!", escapeLike("50%_off!"))
}
