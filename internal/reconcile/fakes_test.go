package reconcile

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shopfront/internal/events"
	"github.com/Skotchmaster/shopfront/internal/localstore"
	"github.com/Skotchmaster/shopfront/internal/models"
	"github.com/Skotchmaster/shopfront/internal/remote"
	"github.com/Skotchmaster/shopfront/internal/session"
)

func product(id string, price float64) models.Product {
	return models.Product{ID: id, Name: "product " + id, Price: price, InStock: true, Quantity: 100}
}

func newLocal(t *testing.T) *localstore.Adapter {
	t.Helper()
	return localstore.NewAdapter(localstore.NewMemoryKV())
}

func signIn(t *testing.T, a *localstore.Adapter, token string) {
	t.Helper()
	a.SetCookie(context.Background(), session.AccessCookie, token)
	_, ok := a.ReadToken(context.Background())
	require.True(t, ok)
}

// fakeCartBackend is an in-memory account cart shared by every token.
type fakeCartBackend struct {
	mu      sync.Mutex
	cart    models.CartSnapshot
	catalog map[string]models.Product

	fail        map[string]error
	failProduct map[string]error
	addCalls    int
	fetchCalls  int

	// when set, AddItem signals entered and waits for gate
	entered chan struct{}
	gate    chan struct{}

	// when set, the next FetchCart reads the cart, signals fetchEntered and
	// answers with that read only after fetchGate is closed
	fetchEntered chan struct{}
	fetchGate    chan struct{}
}

func newFakeCartBackend(products ...models.Product) *fakeCartBackend {
	f := &fakeCartBackend{
		cart:        models.CartSnapshot{ID: "cart-1", Lines: []models.CartLine{}},
		catalog:     make(map[string]models.Product),
		fail:        make(map[string]error),
		failProduct: make(map[string]error),
	}
	for _, p := range products {
		f.catalog[p.ID] = p
	}
	return f
}

func (f *fakeCartBackend) setFail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

func (f *fakeCartBackend) seed(p models.Product, qty int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalog[p.ID] = p
	f.cart = f.cart.WithAdded(p, qty)
}

func (f *fakeCartBackend) snapshot() models.CartSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart.Clone()
}

func (f *fakeCartBackend) adds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addCalls
}

// holdNextFetch parks the next FetchCart after it has read the cart.
func (f *fakeCartBackend) holdNextFetch() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchEntered = make(chan struct{}, 1)
	f.fetchGate = make(chan struct{})
	return f.fetchEntered, func() { close(f.fetchGate) }
}

func (f *fakeCartBackend) FetchCart(_ context.Context, token string) (models.CartSnapshot, error) {
	f.mu.Lock()
	f.fetchCalls++
	if token == "" {
		f.mu.Unlock()
		return models.CartSnapshot{}, &remote.Error{Kind: remote.KindUnauthorized, Message: "sign in required"}
	}
	if err := f.fail["fetch"]; err != nil {
		f.mu.Unlock()
		return models.CartSnapshot{}, err
	}
	read := f.cart.Clone()
	entered, gate := f.fetchEntered, f.fetchGate
	f.fetchEntered, f.fetchGate = nil, nil
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-gate
	}
	return read, nil
}

func (f *fakeCartBackend) AddItem(ctx context.Context, _ string, productID string, quantity int) (string, error) {
	f.mu.Lock()
	entered, gate := f.entered, f.gate
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
		<-gate
	}
	if err := ctx.Err(); err != nil {
		return "", remote.Network(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if err := f.fail["add"]; err != nil {
		return "", err
	}
	if err := f.failProduct[productID]; err != nil {
		return "", err
	}
	p, ok := f.catalog[productID]
	if !ok {
		return "", &remote.Error{Kind: remote.KindNotFound, Message: "Product not found"}
	}
	f.cart = f.cart.WithAdded(p, quantity)
	return f.cart.ID, nil
}

func (f *fakeCartBackend) UpdateQuantity(_ context.Context, _ string, cartID, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["update"]; err != nil {
		return err
	}
	if cartID != f.cart.ID {
		return &remote.Error{Kind: remote.KindNotFound, Message: "Cart not found"}
	}
	if _, ok := f.cart.Line(productID); !ok {
		return &remote.Error{Kind: remote.KindNotFound, Message: "Product not in cart"}
	}
	f.cart = f.cart.WithQuantity(productID, quantity)
	return nil
}

func (f *fakeCartBackend) RemoveItem(_ context.Context, _ string, _ string, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["remove"]; err != nil {
		return err
	}
	f.cart = f.cart.Without(productID)
	return nil
}

type fakeWishlistBackend struct {
	mu      sync.Mutex
	ids     models.WishlistSet
	fail    map[string]error
	added   []string
	removed []string
	calls   []string

	// when set, AddToWishlist signals addEntered and waits for addGate
	addEntered chan struct{}
	addGate    chan struct{}
}

func newFakeWishlistBackend(ids ...string) *fakeWishlistBackend {
	return &fakeWishlistBackend{ids: models.NewWishlistSet(ids...), fail: make(map[string]error)}
}

func (f *fakeWishlistBackend) setFail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

func (f *fakeWishlistBackend) FetchWishlist(context.Context, string) (models.WishlistSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["fetch"]; err != nil {
		return nil, err
	}
	return append(models.WishlistSet{}, f.ids...), nil
}

func (f *fakeWishlistBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeWishlistBackend) AddToWishlist(_ context.Context, _ string, productID string) error {
	f.mu.Lock()
	entered, gate := f.addEntered, f.addGate
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "add:"+productID)
	if err := f.fail["add"]; err != nil {
		return err
	}
	f.added = append(f.added, productID)
	f.ids = f.ids.With(productID)
	return nil
}

func (f *fakeWishlistBackend) RemoveFromWishlist(_ context.Context, _ string, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "remove:"+productID)
	if err := f.fail["remove"]; err != nil {
		return err
	}
	f.removed = append(f.removed, productID)
	f.ids = f.ids.Without(productID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var (
	errDown         = remote.Network(context.DeadlineExceeded)
	errUnauthorized = &remote.Error{Kind: remote.KindUnauthorized, Status: 401, Message: "Unauthorized"}
)
