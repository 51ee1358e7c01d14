package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/shopfront/internal/events"
	"github.com/Skotchmaster/shopfront/internal/models"
	"github.com/Skotchmaster/shopfront/internal/remote"
)

// ErrUnconfirmed marks a cart that cannot be used for an order because the
// backend has not acknowledged what is on display.
var ErrUnconfirmed = errors.New("cart not confirmed by the backend")

// staleRefetches bounds how often a Sync re-reads the cart when mutations keep
// landing during its fetch.
const staleRefetches = 3

// CartStore is the single owner of the displayed cart. Guests work on the
// locally persisted snapshot; once a token is present the backend is the
// source of truth and mutations are applied optimistically until it answers.
type CartStore struct {
	local   LocalCart
	remote  CartBackend
	notices *Notices
	pub     events.Publisher
	log     *slog.Logger
	fetches singleflight.Group

	mu      sync.Mutex
	state   State
	token   string
	cartID  string
	armed   bool
	merged  chan struct{}
	ledger  *Ledger[models.CartSnapshot]
	display models.CartSnapshot
	subs    subscribers[models.CartSnapshot]

	// gen advances whenever the backend cart changes under us; a fetch
	// started at an older gen is dropped.
	gen      uint64
	degraded bool
}

func NewCartStore(local LocalCart, backend CartBackend, opts ...Option) *CartStore {
	o := buildOptions(opts)
	s := &CartStore{
		local:   local,
		remote:  backend,
		notices: o.notices,
		pub:     o.publisher,
		log:     o.log,
		ledger:  NewLedger(models.EmptyCart()),
	}

	ctx := context.Background()
	token, ok := local.ReadToken(ctx)
	if !ok {
		s.display = local.LoadCart(ctx)
		return s
	}

	s.state = StateAuthenticatedSyncing
	s.token = token
	s.armed = true
	if mirror, ok := local.LoadRemoteCart(ctx); ok {
		s.cartID = mirror.ID
		s.ledger.Reset(mirror)
	} else {
		s.ledger.Reset(local.LoadCart(ctx))
	}
	s.display = s.ledger.View()
	return s
}

func (s *CartStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *CartStore) Snapshot() models.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display.Clone()
}

// Confirmed returns the cart as the backend last acknowledged it. It fails
// while mutations are in flight, before the first fetch after sign-in, and
// while a fallback copy is on display.
func (s *CartStore) Confirmed() (models.CartSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateUnauthenticatedLocal:
		return models.CartSnapshot{}, &remote.Error{Kind: remote.KindUnauthorized, Message: "sign in to place an order", Err: ErrUnconfirmed}
	case s.state == StateAuthenticatedSyncing || s.ledger.Pending() > 0:
		return models.CartSnapshot{}, &remote.Error{Kind: remote.KindValidation, Message: "your cart is still being updated, try again", Err: ErrUnconfirmed}
	case s.degraded:
		return models.CartSnapshot{}, &remote.Error{Kind: remote.KindNetwork, Message: "your cart could not be confirmed with the store", Err: ErrUnconfirmed}
	}

	snap := s.ledger.Confirmed().Normalize()
	if snap.ID == "" {
		snap.ID = s.cartID
	}
	return snap.Clone(), nil
}

func (s *CartStore) Notices() *Notices {
	return s.notices
}

// Subscribe registers fn for every change of the displayed cart.
func (s *CartStore) Subscribe(fn func(models.CartSnapshot)) func() {
	s.mu.Lock()
	id := s.subs.add(fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.subs.remove(id)
		s.mu.Unlock()
	}
}

// Sync re-reads the session token and reconciles with the backend. The first
// Sync after a sign-in pushes the guest cart into the account exactly once.
// Once started, the merge and the fetch run to completion even if ctx is
// cancelled; only waiting on another Sync's merge honors ctx.
func (s *CartStore) Sync(ctx context.Context) error {
	token, ok := s.local.ReadToken(ctx)

	s.mu.Lock()
	if !ok {
		if s.state != StateUnauthenticatedLocal {
			s.dropToLocalLocked(ctx)
		} else {
			s.display = s.local.LoadCart(ctx)
		}
		s.mu.Unlock()
		s.notify()
		return nil
	}
	if s.state == StateUnauthenticatedLocal || token != s.token {
		s.enterSyncingLocked(ctx, token)
	}
	armed, tok := s.armed, s.token
	s.armed = false
	if armed {
		s.merged = make(chan struct{})
	}
	merged := s.merged
	s.mu.Unlock()

	work := context.WithoutCancel(ctx)
	if armed {
		s.merge(work, tok)
		s.mu.Lock()
		s.gen++
		s.mu.Unlock()
		close(merged)
	} else if merged != nil {
		// a concurrent Sync is still merging; fetching now would read the pre-merge cart
		select {
		case <-merged:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.refresh(work, tok, false)
}

// merge adds every guest line to the account cart. A pushed line leaves the
// guest snapshot immediately, so a partial failure keeps only the lines that
// never reached the backend.
func (s *CartStore) merge(ctx context.Context, tok string) {
	guest := s.local.LoadCart(ctx)
	if guest.IsEmpty() {
		return
	}

	pushed, failed := 0, 0
	for _, line := range guest.Lines {
		cartID, err := s.remote.AddItem(ctx, tok, line.Product.ID, line.Quantity)
		if err != nil {
			failed++
			kind := remote.KindOf(err)
			s.log.Warn("cart_merge_line_failed", "product_id", line.Product.ID, "kind", kind.String(), "error", err)
			if kind == remote.KindNetwork || kind == remote.KindUnauthorized {
				s.notices.Push(kind, "Some items from your cart could not be synced: "+remote.Message(err))
				if kind == remote.KindUnauthorized {
					s.mu.Lock()
					s.unauthorizedLocked(ctx, tok)
					s.mu.Unlock()
				}
				break
			}
			s.notices.Push(kind, fmt.Sprintf("%s could not be added to your account cart: %s", lineName(line), remote.Message(err)))
			continue
		}

		id, qty := line.Product.ID, line.Quantity
		s.local.UpdateCart(ctx, func(c models.CartSnapshot) models.CartSnapshot {
			return c.WithQuantity(id, c.Quantity(id)-qty)
		})
		if cartID != "" {
			s.mu.Lock()
			if s.token == tok {
				s.cartID = cartID
			}
			s.mu.Unlock()
		}
		pushed++
	}

	s.log.Info("cart_merged", "pushed", pushed, "failed", failed)
	events.Emit(ctx, s.pub, events.Event{
		Type:    events.CartMerged,
		Subject: subjectOf(tok),
		Data:    map[string]any{"pushed": pushed, "failed": failed},
	})
}

// refresh fetches the account cart. Unless quiet, a failure falls back to the
// last mirrored remote cart, or the guest cart, and leaves a notice. A quiet
// refresh never runs while a sign-in is syncing; that Sync reads the cart
// itself once its merge has landed.
func (s *CartStore) refresh(ctx context.Context, tok string, quiet bool) error {
	for attempt := 0; ; attempt++ {
		s.mu.Lock()
		if quiet && s.state == StateAuthenticatedSyncing {
			s.mu.Unlock()
			return nil
		}
		gen := s.gen
		s.mu.Unlock()

		key := fmt.Sprintf("%s#%d", tok, gen)
		v, err, _ := s.fetches.Do(key, func() (any, error) {
			return s.remote.FetchCart(context.WithoutCancel(ctx), tok)
		})

		s.mu.Lock()
		if s.token != tok || s.state == StateUnauthenticatedLocal {
			s.mu.Unlock()
			return err
		}
		if gen != s.gen || (quiet && s.state == StateAuthenticatedSyncing) {
			s.mu.Unlock()
			s.log.Debug("cart_fetch_stale", "quiet", quiet, "attempt", attempt)
			if quiet || attempt >= staleRefetches {
				return nil
			}
			continue
		}

		if err != nil {
			kind := remote.KindOf(err)
			s.log.Warn("cart_fetch_failed", "kind", kind.String(), "quiet", quiet, "error", err)
			if quiet && kind != remote.KindUnauthorized {
				s.mu.Unlock()
				return err
			}
			if kind == remote.KindUnauthorized {
				s.notices.Push(kind, "Your session has expired, please sign in again")
				s.unauthorizedLocked(ctx, tok)
			} else {
				s.notices.Push(kind, "Showing your last saved cart: "+remote.Message(err))
				s.state = StateAuthenticatedRemote
				s.degraded = true
				if mirror, ok := s.local.LoadRemoteCart(ctx); ok {
					s.ledger.Reset(mirror)
				} else {
					s.ledger.Reset(s.local.LoadCart(ctx))
				}
				s.display = s.ledger.View()
			}
			s.mu.Unlock()
			s.notify()
			return err
		}

		snap := v.(models.CartSnapshot).Normalize()
		s.state = StateAuthenticatedRemote
		s.degraded = false
		if snap.ID != "" {
			s.cartID = snap.ID
		}
		s.ledger.Reset(snap)
		s.display = s.ledger.View()
		s.local.SaveRemoteCart(ctx, snap)
		s.mu.Unlock()
		s.notify()
		return nil
	}
}

// Add puts qty more of p in the cart.
func (s *CartStore) Add(ctx context.Context, p models.Product, qty int) error {
	if err := checkProduct(p, qty); err != nil {
		return err
	}
	ev := events.Event{Type: events.CartItemAdded, ProductID: p.ID, Quantity: qty}

	s.mu.Lock()
	if s.state == StateUnauthenticatedLocal {
		s.mu.Unlock()
		return s.updateLocal(ctx, ev, func(c models.CartSnapshot) (models.CartSnapshot, error) {
			if err := checkAvailable(p, c.Quantity(p.ID)+qty); err != nil {
				return c, err
			}
			return c.WithAdded(p, qty), nil
		})
	}

	if err := checkAvailable(p, s.display.Quantity(p.ID)+qty); err != nil {
		s.mu.Unlock()
		return err
	}
	id, tok, _ := s.beginLocked(func(c models.CartSnapshot) models.CartSnapshot {
		return c.WithAdded(p, qty)
	})
	s.mu.Unlock()
	s.notify()

	cartID, err := s.remote.AddItem(ctx, tok, p.ID, qty)
	return s.settle(ctx, id, tok, cartID, err, ev)
}

// SetQuantity replaces the quantity of a line already in the cart.
func (s *CartStore) SetQuantity(ctx context.Context, productID string, qty int) error {
	if productID == "" {
		return remote.Validation("product id is required")
	}
	if qty < 1 {
		return remote.Validation("quantity must be at least 1")
	}
	ev := events.Event{Type: events.CartQuantityUpdated, ProductID: productID, Quantity: qty}

	s.mu.Lock()
	if s.state == StateUnauthenticatedLocal {
		s.mu.Unlock()
		return s.updateLocal(ctx, ev, func(c models.CartSnapshot) (models.CartSnapshot, error) {
			line, ok := c.Line(productID)
			if !ok {
				return c, notInCart()
			}
			if err := checkAvailable(line.Product, qty); err != nil {
				return c, err
			}
			return c.WithQuantity(productID, qty), nil
		})
	}

	line, ok := s.display.Line(productID)
	if !ok {
		s.mu.Unlock()
		return notInCart()
	}
	if err := checkAvailable(line.Product, qty); err != nil {
		s.mu.Unlock()
		return err
	}
	id, tok, cartID := s.beginLocked(func(c models.CartSnapshot) models.CartSnapshot {
		return c.WithQuantity(productID, qty)
	})
	s.mu.Unlock()
	s.notify()

	err := s.remote.UpdateQuantity(ctx, tok, cartID, productID, qty)
	return s.settle(ctx, id, tok, "", err, ev)
}

// Remove drops the line for productID. Removing an absent line is a no-op.
func (s *CartStore) Remove(ctx context.Context, productID string) error {
	if productID == "" {
		return remote.Validation("product id is required")
	}
	ev := events.Event{Type: events.CartItemRemoved, ProductID: productID}

	s.mu.Lock()
	if s.state == StateUnauthenticatedLocal {
		s.mu.Unlock()
		return s.updateLocal(ctx, ev, func(c models.CartSnapshot) (models.CartSnapshot, error) {
			return c.Without(productID), nil
		})
	}

	if _, ok := s.display.Line(productID); !ok {
		s.mu.Unlock()
		return nil
	}
	id, tok, cartID := s.beginLocked(func(c models.CartSnapshot) models.CartSnapshot {
		return c.Without(productID)
	})
	s.mu.Unlock()
	s.notify()

	err := s.remote.RemoveItem(ctx, tok, cartID, productID)
	if remote.KindOf(err) == remote.KindNotFound {
		err = nil
	}
	return s.settle(ctx, id, tok, "", err, ev)
}

// Clear empties the displayed cart together with both persisted copies.
// The backend empties the account cart itself when an order is placed.
func (s *CartStore) Clear(ctx context.Context) {
	s.mu.Lock()
	s.local.ClearCart(ctx)
	subject := subjectOf(s.token)
	if s.state == StateUnauthenticatedLocal {
		s.display = models.EmptyCart()
	} else {
		s.local.ClearRemoteCart(ctx)
		s.ledger.Discard(models.CartSnapshot{ID: s.cartID, Lines: []models.CartLine{}})
		s.display = s.ledger.View()
	}
	s.mu.Unlock()
	s.notify()

	events.Emit(ctx, s.pub, events.Event{Type: events.CartCleared, Subject: subject})
}

func (s *CartStore) updateLocal(ctx context.Context, ev events.Event, fn func(models.CartSnapshot) (models.CartSnapshot, error)) error {
	var ferr error
	next := s.local.UpdateCart(ctx, func(c models.CartSnapshot) models.CartSnapshot {
		out, err := fn(c)
		if err != nil {
			ferr = err
			return c
		}
		return out
	})
	if ferr != nil {
		return ferr
	}

	s.mu.Lock()
	if s.state == StateUnauthenticatedLocal {
		s.display = next
	}
	s.mu.Unlock()
	s.notify()

	events.Emit(ctx, s.pub, ev)
	return nil
}

func (s *CartStore) beginLocked(op func(models.CartSnapshot) models.CartSnapshot) (uint64, string, string) {
	id := s.ledger.Begin(op)
	s.display = s.ledger.View()
	return id, s.token, s.cartID
}

// settle commits or rolls back the ledger entry id once the backend answered.
// After the last in-flight mutation lands, the cart is re-read quietly so the
// displayed snapshot converges on the backend's.
func (s *CartStore) settle(ctx context.Context, id uint64, tok, cartID string, err error, ev events.Event) error {
	ev.Subject = subjectOf(tok)

	s.mu.Lock()
	if s.token != tok || s.state == StateUnauthenticatedLocal {
		s.ledger.Abort(id)
		s.mu.Unlock()
		return err
	}

	idle := false
	if err == nil {
		s.ledger.Commit(id)
		s.gen++
		if cartID != "" {
			s.cartID = cartID
		}
		if s.state == StateAuthenticatedRemote && !s.degraded {
			confirmed := s.ledger.Confirmed()
			if confirmed.ID == "" {
				confirmed.ID = s.cartID
			}
			s.local.SaveRemoteCart(ctx, confirmed)
		}
		idle = s.ledger.Pending() == 0
		s.display = s.ledger.View()
	} else {
		kind := remote.KindOf(err)
		s.ledger.Abort(id)
		s.display = s.ledger.View()
		s.notices.Push(kind, "Your cart could not be updated: "+remote.Message(err))
		if kind == remote.KindUnauthorized {
			s.unauthorizedLocked(ctx, tok)
		}
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.log.Warn("cart_mutation_rolled_back", "type", ev.Type, "product_id", ev.ProductID, "error", err)
		events.Emit(ctx, s.pub, events.Event{
			Type:      events.CartRollback,
			Subject:   ev.Subject,
			ProductID: ev.ProductID,
			Data:      map[string]any{"mutation": ev.Type, "kind": remote.KindOf(err).String()},
		})
		return err
	}

	events.Emit(ctx, s.pub, ev)
	if idle {
		_ = s.refresh(ctx, tok, true)
	}
	return nil
}

func (s *CartStore) enterSyncingLocked(ctx context.Context, token string) {
	if s.token != "" && !sameAccount(s.token, token) {
		s.local.ClearRemoteCart(ctx)
		s.ledger.Discard(models.EmptyCart())
		s.cartID = ""
		s.display = s.ledger.View()
	}
	if s.state == StateUnauthenticatedLocal {
		if mirror, ok := s.local.LoadRemoteCart(ctx); ok {
			s.cartID = mirror.ID
			s.ledger.Discard(mirror)
		} else {
			s.ledger.Discard(s.local.LoadCart(ctx))
		}
		s.display = s.ledger.View()
	}
	s.state = StateAuthenticatedSyncing
	s.token = token
	s.armed = true
	s.degraded = false
}

func (s *CartStore) dropToLocalLocked(ctx context.Context) {
	s.state = StateUnauthenticatedLocal
	s.token = ""
	s.cartID = ""
	s.armed = false
	s.degraded = false
	s.ledger.Discard(models.EmptyCart())
	s.local.ClearRemoteCart(ctx)
	s.display = s.local.LoadCart(ctx)
}

// unauthorizedLocked reacts to a rejected token: without a token the store
// falls back to the guest cart, a replaced token starts a new sign-in.
func (s *CartStore) unauthorizedLocked(ctx context.Context, tok string) {
	current, ok := s.local.ReadToken(ctx)
	switch {
	case !ok:
		s.dropToLocalLocked(ctx)
	case current != tok:
		s.enterSyncingLocked(ctx, current)
	}
}

func (s *CartStore) notify() {
	s.mu.Lock()
	view := s.display.Clone()
	fns := s.subs.snapshot()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}

func checkProduct(p models.Product, qty int) error {
	if p.ID == "" {
		return remote.Validation("product id is required")
	}
	if qty < 1 {
		return remote.Validation("quantity must be at least 1")
	}
	if !p.InStock {
		return remote.Validation(productName(p) + " is out of stock")
	}
	return nil
}

// checkAvailable enforces the stock limit when the product reports one.
func checkAvailable(p models.Product, total int) error {
	if p.Quantity > 0 && total > p.Quantity {
		return remote.Validation(fmt.Sprintf("only %d of %s available", p.Quantity, productName(p)))
	}
	return nil
}

func notInCart() error {
	return &remote.Error{Kind: remote.KindNotFound, Message: "product is not in the cart"}
}

func productName(p models.Product) string {
	if p.Name != "" {
		return p.Name
	}
	return "product " + p.ID
}

func lineName(l models.CartLine) string {
	return productName(l.Product)
}
