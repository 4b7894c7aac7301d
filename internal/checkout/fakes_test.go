package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopmesh/marketplace/internal/model"
	"github.com/shopmesh/marketplace/internal/repository"
)

// memInventory mimics InventoryRepo's semantics in memory: per-product
// counters with atomic guarded moves.
type memInventory struct {
	mu          sync.Mutex
	available   map[uint64]uint32
	reserved    map[uint64]uint32
	failRelease map[uint64]error
	failConfirm map[uint64]error
}

func newMemInventory() *memInventory {
	return &memInventory{
		available:   make(map[uint64]uint32),
		reserved:    make(map[uint64]uint32),
		failRelease: make(map[uint64]error),
		failConfirm: make(map[uint64]error),
	}
}

func (m *memInventory) setStock(productID uint64, qty uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available[productID] = qty
}

func (m *memInventory) counts(productID uint64) (avail, reserved uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available[productID], m.reserved[productID]
}

func (m *memInventory) Reserve(_ context.Context, productID uint64, qty uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	avail, ok := m.available[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	if avail < qty {
		return repository.ErrInsufficientStock
	}
	m.available[productID] = avail - qty
	m.reserved[productID] += qty
	return nil
}

func (m *memInventory) Release(_ context.Context, productID uint64, qty uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failRelease[productID]; err != nil {
		return err
	}
	if _, ok := m.available[productID]; !ok {
		return repository.ErrProductNotFound
	}
	if m.reserved[productID] < qty {
		return repository.ErrInvalidRelease
	}
	m.reserved[productID] -= qty
	m.available[productID] += qty
	return nil
}

func (m *memInventory) ConfirmDeduct(_ context.Context, productID uint64, qty uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failConfirm[productID]; err != nil {
		return err
	}
	if _, ok := m.available[productID]; !ok {
		return repository.ErrProductNotFound
	}
	if m.reserved[productID] < qty {
		return repository.ErrInvalidConfirm
	}
	m.reserved[productID] -= qty
	return nil
}

// memOrders applies the same transition rules as OrderRepo against a map.
type memOrders struct {
	mu         sync.Mutex
	seq        uint64
	orders     map[uint64]*model.Order
	failCreate error
	failStatus map[string]error // next status -> error
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[uint64]*model.Order), failStatus: make(map[string]error)}
}

func (m *memOrders) Create(_ context.Context, order *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	m.seq++
	order.ID = m.seq
	order.Status = model.OrderStatusPending
	for i := range order.Items {
		order.Items[i].ID = m.seq*100 + uint64(i)
		order.Items[i].OrderID = order.ID
	}
	stored := *order
	stored.Items = append([]model.OrderItem(nil), order.Items...)
	m.orders[order.ID] = &stored
	return nil
}

func (m *memOrders) UpdateStatus(_ context.Context, orderID uint64, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failStatus[next]; err != nil {
		return err
	}
	o, ok := m.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if !model.CanTransition(o.Status, next) {
		return repository.ErrInvalidTransition
	}
	o.Status = next
	return nil
}

func (m *memOrders) SetPaymentRef(_ context.Context, orderID uint64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.PaymentRef = &ref
	return nil
}

func (m *memOrders) Get(_ context.Context, orderID uint64) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]model.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *memOrders) status(orderID uint64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderID]; ok {
		return o.Status
	}
	return ""
}

type memCatalog struct {
	mu       sync.Mutex
	products map[uint64]model.PriceAndStock
	err      error
}

func newMemCatalog() *memCatalog {
	return &memCatalog{products: make(map[uint64]model.PriceAndStock)}
}

func (m *memCatalog) add(productID uint64, priceCents, available uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[productID] = model.PriceAndStock{ProductID: productID, PriceCents: priceCents, Available: available}
}

func (m *memCatalog) PriceAndStock(_ context.Context, productID uint64) (*model.PriceAndStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	ps, ok := m.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &ps, nil
}

type memGateway struct {
	mu      sync.Mutex
	n       int
	failing bool
}

func (m *memGateway) Initiate(_ context.Context, orderID uint64, _ uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return "", errors.New("gateway rejected")
	}
	m.n++
	return fmt.Sprintf("txn-%d-%d", orderID, m.n), nil
}

type memPublisher struct {
	mu        sync.Mutex
	published []uint64
	err       error
}

func (m *memPublisher) PublishOrderConfirmed(_ context.Context, order *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, order.ID)
	return nil
}

// testEnv bundles a saga with its fakes for the common case.
type testEnv struct {
	inv     *memInventory
	orders  *memOrders
	catalog *memCatalog
	gateway *memGateway
	pub     *memPublisher
	saga    *Saga
}

func newTestEnv() *testEnv {
	env := &testEnv{
		inv:     newMemInventory(),
		orders:  newMemOrders(),
		catalog: newMemCatalog(),
		gateway: &memGateway{},
		pub:     &memPublisher{},
	}
	env.saga = NewSaga(env.catalog, env.inv, env.orders, env.gateway, env.pub)
	return env
}

// addProduct seeds matching catalog and inventory state.
func (e *testEnv) addProduct(productID uint64, priceCents, stock uint32) {
	e.catalog.add(productID, priceCents, stock)
	e.inv.setStock(productID, stock)
}
