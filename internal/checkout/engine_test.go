package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/models"
	"marketplace/internal/repository"
)

// fakeStore is an in-memory Store whose WithinTx gives the same guarantees
// the Postgres store does: the callback runs on a private copy of the state
// under an exclusive lock, and the copy replaces the shared state only when
// the callback succeeds.
type fakeStore struct {
	mu sync.Mutex

	products  map[int]*ProductState
	prices    map[int]float64 // live product price, distinct from cart snapshots
	carts     map[int][]models.CartLine
	orders    map[int]models.Order
	lines     map[int][]models.OrderLine
	payments  map[int]models.Payment
	shipments map[int]models.Shipment
	txnRefs   map[string]bool
	trackRefs map[string]bool

	nextOrderID int

	// fault injection
	failOn        string
	dupPayments   int
	dupShipments  int
	lockedIDCalls [][]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:    make(map[int]*ProductState),
		prices:      make(map[int]float64),
		carts:       make(map[int][]models.CartLine),
		orders:      make(map[int]models.Order),
		lines:       make(map[int][]models.OrderLine),
		payments:    make(map[int]models.Payment),
		shipments:   make(map[int]models.Shipment),
		txnRefs:     make(map[string]bool),
		trackRefs:   make(map[string]bool),
		nextOrderID: 1,
	}
}

func (s *fakeStore) addProduct(id, stock int, status models.ProductStatus, price float64) {
	s.products[id] = &ProductState{ProductID: id, StockQuantity: stock, Status: status}
	s.prices[id] = price
}

func (s *fakeStore) addCartLine(customerID, productID, qty int, priceAtAddition float64) {
	s.carts[customerID] = append(s.carts[customerID], models.CartLine{
		CartLineID:      len(s.carts[customerID]) + 1,
		CustomerID:      customerID,
		ProductID:       productID,
		Quantity:        qty,
		PriceAtAddition: priceAtAddition,
		AddedAt:         time.Now(),
	})
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &fakeTx{store: s, staged: s.copyState()}
	if err := fn(tx); err != nil {
		return err
	}
	s.adopt(tx.staged)
	return nil
}

type fakeState struct {
	products    map[int]*ProductState
	carts       map[int][]models.CartLine
	orders      map[int]models.Order
	lines       map[int][]models.OrderLine
	payments    map[int]models.Payment
	shipments   map[int]models.Shipment
	txnRefs     map[string]bool
	trackRefs   map[string]bool
	nextOrderID int
}

func (s *fakeStore) copyState() *fakeState {
	c := &fakeState{
		products:    make(map[int]*ProductState, len(s.products)),
		carts:       make(map[int][]models.CartLine, len(s.carts)),
		orders:      make(map[int]models.Order, len(s.orders)),
		lines:       make(map[int][]models.OrderLine, len(s.lines)),
		payments:    make(map[int]models.Payment, len(s.payments)),
		shipments:   make(map[int]models.Shipment, len(s.shipments)),
		txnRefs:     make(map[string]bool, len(s.txnRefs)),
		trackRefs:   make(map[string]bool, len(s.trackRefs)),
		nextOrderID: s.nextOrderID,
	}
	for id, p := range s.products {
		cp := *p
		c.products[id] = &cp
	}
	for id, lines := range s.carts {
		c.carts[id] = append([]models.CartLine(nil), lines...)
	}
	for id, o := range s.orders {
		c.orders[id] = o
	}
	for id, ls := range s.lines {
		c.lines[id] = append([]models.OrderLine(nil), ls...)
	}
	for id, p := range s.payments {
		c.payments[id] = p
	}
	for id, sh := range s.shipments {
		c.shipments[id] = sh
	}
	for ref := range s.txnRefs {
		c.txnRefs[ref] = true
	}
	for ref := range s.trackRefs {
		c.trackRefs[ref] = true
	}
	return c
}

func (s *fakeStore) adopt(c *fakeState) {
	s.products = c.products
	s.carts = c.carts
	s.orders = c.orders
	s.lines = c.lines
	s.payments = c.payments
	s.shipments = c.shipments
	s.txnRefs = c.txnRefs
	s.trackRefs = c.trackRefs
	s.nextOrderID = c.nextOrderID
}

type fakeTx struct {
	store  *fakeStore
	staged *fakeState
}

var errInjected = errors.New("injected store failure")

func (t *fakeTx) CartLines(ctx context.Context, customerID int) ([]models.CartLine, error) {
	if t.store.failOn == "cart_lines" {
		return nil, errInjected
	}
	return append([]models.CartLine(nil), t.staged.carts[customerID]...), nil
}

func (t *fakeTx) LockProducts(ctx context.Context, productIDs []int) (map[int]ProductState, error) {
	t.store.lockedIDCalls = append(t.store.lockedIDCalls, append([]int(nil), productIDs...))
	if t.store.failOn == "lock_products" {
		return nil, errInjected
	}
	states := make(map[int]ProductState, len(productIDs))
	for _, id := range productIDs {
		if p, ok := t.staged.products[id]; ok {
			states[id] = *p
		}
	}
	return states, nil
}

func (t *fakeTx) InsertOrder(ctx context.Context, order *models.Order) (int, error) {
	if t.store.failOn == "insert_order" {
		return 0, errInjected
	}
	order.OrderID = t.staged.nextOrderID
	t.staged.nextOrderID++
	t.staged.orders[order.OrderID] = *order
	return order.OrderID, nil
}

func (t *fakeTx) InsertOrderLine(ctx context.Context, line *models.OrderLine) error {
	if t.store.failOn == "insert_order_line" {
		return errInjected
	}
	t.staged.lines[line.OrderID] = append(t.staged.lines[line.OrderID], *line)
	return nil
}

func (t *fakeTx) ReserveStock(ctx context.Context, productID, quantity int) error {
	if t.store.failOn == "reserve_stock" {
		return errInjected
	}
	p, ok := t.staged.products[productID]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Status != models.ProductActive {
		return repository.ErrProductUnavailable
	}
	if p.StockQuantity < quantity {
		return &repository.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: p.StockQuantity,
		}
	}
	p.StockQuantity -= quantity
	if p.StockQuantity == 0 {
		p.Status = models.ProductOutOfStock
	}
	return nil
}

func (t *fakeTx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	if t.store.failOn == "insert_payment" {
		return errInjected
	}
	if t.store.dupPayments > 0 {
		t.store.dupPayments--
		return fmt.Errorf("%w: transaction_id collision", repository.ErrDuplicate)
	}
	if t.staged.txnRefs[payment.TransactionID] {
		return fmt.Errorf("%w: transaction_id collision", repository.ErrDuplicate)
	}
	t.staged.txnRefs[payment.TransactionID] = true
	t.staged.payments[payment.OrderID] = *payment
	return nil
}

func (t *fakeTx) InsertShipment(ctx context.Context, shipment *models.Shipment) error {
	if t.store.failOn == "insert_shipment" {
		return errInjected
	}
	if t.store.dupShipments > 0 {
		t.store.dupShipments--
		return fmt.Errorf("%w: tracking_number collision", repository.ErrDuplicate)
	}
	if t.staged.trackRefs[shipment.TrackingNumber] {
		return fmt.Errorf("%w: tracking_number collision", repository.ErrDuplicate)
	}
	t.staged.trackRefs[shipment.TrackingNumber] = true
	t.staged.shipments[shipment.OrderID] = *shipment
	return nil
}

func (t *fakeTx) ClearCart(ctx context.Context, customerID int) error {
	if t.store.failOn == "clear_cart" {
		return errInjected
	}
	delete(t.staged.carts, customerID)
	return nil
}

func newTestEngine(store Store) *Engine {
	return NewEngine(store, nil, nil)
}

func TestCheckoutSuccess(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, 5, models.ProductActive, 10.00)
	store.addCartLine(7, 1, 2, 10.00)

	engine := newTestEngine(store)
	res, err := engine.Checkout(context.Background(), Input{
		CustomerID:      7,
		ShippingAddress: "12 Harbor Lane",
		PaymentMethod:   "card",
	})
	require.NoError(t, err)

	assert.Equal(t, 20.00, res.TotalAmount)
	assert.NotEmpty(t, res.TransactionRef)
	assert.NotEmpty(t, res.TrackingRef)

	assert.Equal(t, 3, store.products[1].StockQuantity)
	assert.Equal(t, models.ProductActive, store.products[1].Status)
	assert.Empty(t, store.carts[7])

	order := store.orders[res.OrderID]
	assert.Equal(t, 20.00, order.TotalAmount)
	assert.Equal(t, models.PaymentCompleted, order.PaymentStatus)
	assert.Equal(t, models.DeliveryProcessing, order.DeliveryStatus)

	payment := store.payments[res.OrderID]
	assert.Equal(t, order.TotalAmount, payment.Amount)
	assert.Equal(t, models.PaymentCompleted, payment.Status)
	assert.Equal(t, res.TransactionRef, payment.TransactionID)

	shipment := store.shipments[res.OrderID]
	assert.Equal(t, "12 Harbor Lane", shipment.ShippingAddress)
	assert.Equal(t, res.TrackingRef, shipment.TrackingNumber)

	require.Len(t, store.lines[res.OrderID], 1)
	line := store.lines[res.OrderID][0]
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, 10.00, line.UnitPrice)
	assert.Equal(t, 20.00, line.Subtotal)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	store := newFakeStore()
	store.addProduct(2, 3, models.ProductActive, 4.50)
	store.addCartLine(7, 2, 10, 4.50)

	engine := newTestEngine(store)
	_, err := engine.Checkout(context.Background(), Input{
		CustomerID:      7,
		ShippingAddress: "12 Harbor Lane",
		PaymentMethod:   "card",
	})
	require.ErrorIs(t, err, repository.ErrInsufficientStock)

	var stockErr *repository.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 10, stockErr.Requested)
	assert.Equal(t, 3, stockErr.Available)

	assert.Empty(t, store.orders)
	assert.Equal(t, 3, store.products[2].StockQuantity)
	assert.Len(t, store.carts[7], 1)
}

func TestCheckoutProductUnavailable(t *testing.T) {
	store := newFakeStore()
	store.addProduct(3, 0, models.ProductOutOfStock, 9.99)
	store.addCartLine(7, 3, 1, 9.99)

	engine := newTestEngine(store)
	_, err := engine.Checkout(context.Background(), Input{
		CustomerID:      7,
		ShippingAddress: "12 Harbor Lane",
		PaymentMethod:   "card",
	})
	require.ErrorIs(t, err, repository.ErrProductUnavailable)

	assert.Empty(t, store.orders)
	assert.Empty(t, store.payments)
	assert.Empty(t, store.shipments)
	assert.Len(t, store.carts[7], 1)
}

func TestCheckoutMissingProductIsUnavailable(t *testing.T) {
	store := newFakeStore()
	store.addCartLine(7, 99, 1, 5.00)

	engine := newTestEngine(store)
	_, err := engine.Checkout(context.Background(), Input{
		CustomerID:      7,
		ShippingAddress: "12 Harbor Lane",
		PaymentMethod:   "card",
	})
	require.ErrorIs(t, err, repository.ErrProductUnavailable)
}

func TestCheckoutEmptyCart(t *testing.T) {
	store := newFakeStore()

	engine := newTestEngine(store)
	_, err := engine.Checkout(context.Background(), Input{
		CustomerID:      7,
		ShippingAddress: "12 Harbor Lane",
		PaymentMethod:   "card",
	})
	require.ErrorIs(t, err, repository.ErrEmptyCart)
	assert.Empty(t, store.orders)
}

func TestCheckoutInputValidation(t *testing.T) {
	engine := newTestEngine(newFakeStore())
	ctx := context.Background()

	_, err := engine.Checkout(ctx, Input{CustomerID: 0, ShippingAddress: "a", PaymentMethod: "card"})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	_, err = engine.Checkout(ctx, Input{CustomerID: 7, ShippingAddress: "", PaymentMethod: "card"})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	_, err = engine.Checkout(ctx, Input{CustomerID: 7, ShippingAddress: "a", PaymentMethod: ""})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

// A repeat checkout after success must find the cart empty and change
// nothing.
func TestCheckoutCartClearingIdempotence(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, 5, models.ProductActive, 10.00)
	store.addCartLine(7, 1, 2, 10.00)

	engine := newTestEngine(store)
	in := Input{CustomerID: 7, ShippingAddress: "12 Harbor Lane", PaymentMethod: "card"}

	_, err := engine.Checkout(context.Background(), in)
	require.NoError(t, err)

	stockAfter := store.products[1].StockQuantity
	ordersAfter := len(store.orders)

	_, err = engine.Checkout(context.Background(), in)
	require.ErrorIs(t, err, repository.ErrEmptyCart)
	assert.Equal(t, stockAfter, store.products[1].StockQuantity)
	assert.Len(t, store.orders, ordersAfter)
}

// Subtotals come from the cart snapshot price, not the live product price.
func TestCheckoutUsesPriceAtAddition(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, 5, models.ProductActive, 99.00) // price raised after the add
	store.addCartLine(7, 1, 3, 10.00)

	engine := newTestEngine(store)
	res, err := engine.Checkout(context.Background(), Input{
		CustomerID:      7,
		ShippingAddress: "12 Harbor Lane",
		PaymentMethod:   "card",
	})
	require.NoError(t, err)
	assert.Equal(t, 30.00, res.TotalAmount)
}

func TestCheckoutMultiLineTotals(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, 10, models.ProductActive, 2.50)
	store.addProduct(2, 10, models.ProductActive, 7.00)
	store.addCartLine(7, 2, 1, 7.00)
	store.addCartLine(7, 1, 4, 2.50)

	engine := newTestEngine(store)
	res, err := engine.Checkout(context.Background(), Input{
		CustomerID:      7,
		ShippingAddress: "12 Harbor Lane",
		PaymentMethod:   "card",
	})
	require.NoError(t, err)

	assert.Equal(t, 17.00, res.TotalAmount)
	require.Len(t, store.lines[res.OrderID], 2)

	var sum float64
	for _, line := range store.lines[res.OrderID] {
		assert.Equal(t, line.UnitPrice*float64(line.Quantity), line.Subtotal)
		sum += line.Subtotal
	}
	assert.Equal(t, res.TotalAmount, sum)

	// Locks are always requested in ascending product order.
	require.NotEmpty(t, store.lockedIDCalls)
	assert.True(t, sort.IntsAreSorted(store.lockedIDCalls[0]))
}

// Draining the last unit flips the product to out_of_stock in the same
// checkout, never leaving an active product with zero stock.
func TestCheckoutDrainsStockToZero(t *testing.T) {
	store := newFakeStore()
	store.addProduct(4, 2, models.ProductActive, 1.00)
	store.addCartLine(7, 4, 2, 1.00)

	engine := newTestEngine(store)
	_, err := engine.Checkout(context.Background(), Input{
		CustomerID:      7,
		ShippingAddress: "12 Harbor Lane",
		PaymentMethod:   "card",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, store.products[4].StockQuantity)
	assert.Equal(t, models.ProductOutOfStock, store.products[4].Status)
}

// Fault injection at every mutating step: a failure anywhere must leave the
// store exactly as it was.
func TestCheckoutAtomicityOnFailure(t *testing.T) {
	steps := []string{
		"cart_lines",
		"lock_products",
		"insert_order",
		"insert_order_line",
		"reserve_stock",
		"insert_payment",
		"insert_shipment",
		"clear_cart",
	}

	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			store := newFakeStore()
			store.addProduct(1, 5, models.ProductActive, 10.00)
			store.addProduct(2, 5, models.ProductActive, 3.00)
			store.addCartLine(7, 1, 2, 10.00)
			store.addCartLine(7, 2, 1, 3.00)
			store.failOn = step

			engine := newTestEngine(store)
			_, err := engine.Checkout(context.Background(), Input{
				CustomerID:      7,
				ShippingAddress: "12 Harbor Lane",
				PaymentMethod:   "card",
			})
			require.Error(t, err)

			assert.Empty(t, store.orders, "no order rows may survive a failed checkout")
			assert.Empty(t, store.payments)
			assert.Empty(t, store.shipments)
			assert.Equal(t, 5, store.products[1].StockQuantity, "stock must be untouched")
			assert.Equal(t, 5, store.products[2].StockQuantity)
			assert.Len(t, store.carts[7], 2, "cart must be untouched")
		})
	}
}

func TestCheckoutRetriesReferenceCollisions(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, 5, models.ProductActive, 10.00)
	store.addCartLine(7, 1, 1, 10.00)
	store.dupPayments = 2
	store.dupShipments = 1

	engine := newTestEngine(store)
	res, err := engine.Checkout(context.Background(), Input{
		CustomerID:      7,
		ShippingAddress: "12 Harbor Lane",
		PaymentMethod:   "card",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, store.payments[res.OrderID].TransactionID)
	assert.NotEmpty(t, store.shipments[res.OrderID].TrackingNumber)
}

func TestCheckoutReferenceGenerationExhaustion(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, 5, models.ProductActive, 10.00)
	store.addCartLine(7, 1, 1, 10.00)
	store.dupPayments = maxRefAttempts

	engine := newTestEngine(store)
	_, err := engine.Checkout(context.Background(), Input{
		CustomerID:      7,
		ShippingAddress: "12 Harbor Lane",
		PaymentMethod:   "card",
	})
	require.ErrorIs(t, err, repository.ErrReferenceGeneration)

	assert.Empty(t, store.orders)
	assert.Equal(t, 5, store.products[1].StockQuantity)
	assert.Len(t, store.carts[7], 1)
}

// Two concurrent checkouts racing for the last unit: exactly one wins, the
// loser fails with InsufficientStock, and stock never goes negative.
func TestCheckoutConcurrentLastUnit(t *testing.T) {
	store := newFakeStore()
	store.addProduct(4, 1, models.ProductActive, 10.00)
	store.addCartLine(7, 4, 1, 10.00)
	store.addCartLine(8, 4, 1, 10.00)

	engine := newTestEngine(store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, customerID := range []int{7, 8} {
		wg.Add(1)
		go func(i, customerID int) {
			defer wg.Done()
			_, errs[i] = engine.Checkout(context.Background(), Input{
				CustomerID:      customerID,
				ShippingAddress: "12 Harbor Lane",
				PaymentMethod:   "card",
			})
		}(i, customerID)
	}
	wg.Wait()

	var successes, stockFailures int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, repository.ErrInsufficientStock):
			stockFailures++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, stockFailures)

	assert.Equal(t, 0, store.products[4].StockQuantity)
	assert.Equal(t, models.ProductOutOfStock, store.products[4].Status)
	assert.Len(t, store.orders, 1)
}

// Heavier oversell check in the style of a stock drain: many concurrent
// checkouts each take one unit, total reserved never exceeds the stock.
func TestCheckoutNoOversellUnderLoad(t *testing.T) {
	const stock = 10
	const shoppers = 25

	store := newFakeStore()
	store.addProduct(1, stock, models.ProductActive, 1.00)
	for c := 1; c <= shoppers; c++ {
		store.addCartLine(c, 1, 1, 1.00)
	}

	engine := newTestEngine(store)

	var wg sync.WaitGroup
	var successes int64
	var mu sync.Mutex
	for c := 1; c <= shoppers; c++ {
		wg.Add(1)
		go func(customerID int) {
			defer wg.Done()
			_, err := engine.Checkout(context.Background(), Input{
				CustomerID:      customerID,
				ShippingAddress: "12 Harbor Lane",
				PaymentMethod:   "card",
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, repository.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}(c)
	}
	wg.Wait()

	assert.Equal(t, int64(stock), successes)
	assert.Equal(t, 0, store.products[1].StockQuantity)
	assert.Len(t, store.orders, stock)
}
