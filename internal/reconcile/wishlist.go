package reconcile

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/shopfront/internal/events"
	"github.com/Skotchmaster/shopfront/internal/models"
	"github.com/Skotchmaster/shopfront/internal/remote"
)

// WishlistStore keeps a persisted copy of the wishlist in every state; with a
// session it also mirrors each toggle to the backend and reverts on failure.
type WishlistStore struct {
	local   LocalWishlist
	remote  WishlistBackend
	notices *Notices
	pub     events.Publisher
	log     *slog.Logger
	fetches singleflight.Group

	mu     sync.Mutex
	state  State
	token  string
	armed  bool
	ledger *Ledger[models.WishlistSet]
	subs   subscribers[models.WishlistSet]

	// last backend call issued per product; a later toggle waits for it
	inflight map[string]chan struct{}
}

func NewWishlistStore(local LocalWishlist, backend WishlistBackend, opts ...Option) *WishlistStore {
	o := buildOptions(opts)
	ctx := context.Background()
	s := &WishlistStore{
		local:   local,
		remote:  backend,
		notices: o.notices,
		pub:     o.publisher,
		log:     o.log,
		ledger:  NewLedger(local.LoadWishlist(ctx)),

		inflight: make(map[string]chan struct{}),
	}
	if token, ok := local.ReadToken(ctx); ok {
		s.state = StateAuthenticatedSyncing
		s.token = token
		s.armed = true
	}
	return s
}

func (s *WishlistStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *WishlistStore) IDs() models.WishlistSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.ledger.View()
	return append(models.WishlistSet{}, view...)
}

func (s *WishlistStore) Contains(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.View().Contains(productID)
}

func (s *WishlistStore) Subscribe(fn func(models.WishlistSet)) func() {
	s.mu.Lock()
	id := s.subs.add(fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.subs.remove(id)
		s.mu.Unlock()
	}
}

// Toggle flips membership of productID and reports whether it is now in the
// wishlist. On a failed backend call the flip is reverted and the returned
// membership is the restored one. Backend calls for one product are sent in
// toggle order, so a quick second toggle sends a remove after the add.
func (s *WishlistStore) Toggle(ctx context.Context, productID string) (bool, error) {
	if productID == "" {
		return false, remote.Validation("product id is required")
	}

	s.mu.Lock()
	if s.state == StateUnauthenticatedLocal {
		s.mu.Unlock()
		var member bool
		next := s.local.UpdateWishlist(ctx, func(w models.WishlistSet) models.WishlistSet {
			member = !w.Contains(productID)
			return flip(w, productID, member)
		})
		s.mu.Lock()
		if s.state == StateUnauthenticatedLocal {
			s.ledger.Discard(next)
		}
		s.mu.Unlock()
		s.notify()
		s.emitToggle(ctx, "", productID, member)
		return member, nil
	}

	member := !s.ledger.View().Contains(productID)
	id := s.ledger.Begin(func(w models.WishlistSet) models.WishlistSet {
		return flip(w, productID, member)
	})
	s.local.SaveWishlist(ctx, s.ledger.View())
	tok := s.token
	prev := s.inflight[productID]
	done := make(chan struct{})
	s.inflight[productID] = done
	s.mu.Unlock()
	s.notify()

	if prev != nil {
		<-prev
	}
	var err error
	if member {
		err = s.remote.AddToWishlist(ctx, tok, productID)
	} else {
		err = s.remote.RemoveFromWishlist(ctx, tok, productID)
	}

	s.mu.Lock()
	close(done)
	if s.inflight[productID] == done {
		delete(s.inflight, productID)
	}
	if s.token != tok || s.state == StateUnauthenticatedLocal {
		s.ledger.Abort(id)
		if err != nil {
			reverted := s.local.UpdateWishlist(ctx, func(w models.WishlistSet) models.WishlistSet {
				return flip(w, productID, !member)
			})
			if s.state == StateUnauthenticatedLocal {
				s.ledger.Discard(reverted)
			}
		}
		s.mu.Unlock()
		s.notify()
		if err != nil {
			return !member, err
		}
		return member, nil
	}

	if err == nil {
		s.ledger.Commit(id)
		s.local.SaveWishlist(ctx, s.ledger.View())
		s.mu.Unlock()
		s.notify()
		s.emitToggle(ctx, tok, productID, member)
		return member, nil
	}

	kind := remote.KindOf(err)
	s.ledger.Abort(id)
	s.local.SaveWishlist(ctx, s.ledger.View())
	s.notices.Push(kind, "Your wishlist could not be updated: "+remote.Message(err))
	if kind == remote.KindUnauthorized {
		s.unauthorizedLocked(ctx, tok)
	}
	s.mu.Unlock()
	s.notify()
	s.log.Warn("wishlist_toggle_rolled_back", "product_id", productID, "kind", kind.String(), "error", err)
	return !member, err
}

// Sync re-reads the session token and reconciles with the backend. The first
// successful Sync after sign-in pushes guest ids the account lacks and shows
// the union of both sets. The fetch and merge are not cut short by ctx.
func (s *WishlistStore) Sync(ctx context.Context) error {
	token, ok := s.local.ReadToken(ctx)

	s.mu.Lock()
	if !ok {
		if s.state != StateUnauthenticatedLocal {
			s.dropToLocalLocked(ctx)
		} else {
			s.ledger.Discard(s.local.LoadWishlist(ctx))
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
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	v, err, _ := s.fetches.Do(tok, func() (any, error) {
		return s.remote.FetchWishlist(ctx, tok)
	})
	if err != nil {
		return s.fetchFailed(ctx, tok, armed, err)
	}

	merged := v.(models.WishlistSet)
	if armed {
		merged = s.merge(ctx, tok, merged)
	}

	s.mu.Lock()
	if s.token != tok || s.state == StateUnauthenticatedLocal {
		s.mu.Unlock()
		return nil
	}
	s.state = StateAuthenticatedRemote
	s.ledger.Reset(merged)
	s.local.SaveWishlist(ctx, s.ledger.View())
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *WishlistStore) merge(ctx context.Context, tok string, account models.WishlistSet) models.WishlistSet {
	guest := s.local.LoadWishlist(ctx)
	pushed := 0
	for _, id := range guest {
		if account.Contains(id) {
			continue
		}
		if err := s.remote.AddToWishlist(ctx, tok, id); err != nil {
			kind := remote.KindOf(err)
			s.log.Warn("wishlist_merge_failed", "product_id", id, "kind", kind.String(), "error", err)
			s.notices.Push(kind, "Some wishlist items could not be synced: "+remote.Message(err))
			if kind == remote.KindUnauthorized {
				s.mu.Lock()
				s.unauthorizedLocked(ctx, tok)
				s.mu.Unlock()
			}
			break
		}
		account = account.With(id)
		pushed++
	}

	if pushed > 0 {
		events.Emit(ctx, s.pub, events.Event{
			Type:    events.WishlistMerged,
			Subject: subjectOf(tok),
			Data:    map[string]any{"pushed": pushed},
		})
	}
	// Ids that could not be pushed stay visible and are retried on the next sign-in.
	return account.Union(guest)
}

func (s *WishlistStore) fetchFailed(ctx context.Context, tok string, armed bool, err error) error {
	kind := remote.KindOf(err)
	s.log.Warn("wishlist_fetch_failed", "kind", kind.String(), "error", err)

	s.mu.Lock()
	if s.token != tok || s.state == StateUnauthenticatedLocal {
		s.mu.Unlock()
		return err
	}
	if kind == remote.KindUnauthorized {
		s.notices.Push(kind, "Your session has expired, please sign in again")
		s.unauthorizedLocked(ctx, tok)
	} else {
		s.notices.Push(kind, "Showing your saved wishlist: "+remote.Message(err))
		s.state = StateAuthenticatedRemote
		// Nothing was pushed yet, so the merge is still owed.
		s.armed = s.armed || armed
		s.ledger.Reset(s.local.LoadWishlist(ctx))
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// enterSyncingLocked starts a session for token. Only a sign-in from the
// guest state owes a merge; switching accounts drops the previous account's
// persisted copy instead of pushing it into the new one.
func (s *WishlistStore) enterSyncingLocked(ctx context.Context, token string) {
	switch {
	case s.state == StateUnauthenticatedLocal:
		s.armed = true
	case !sameAccount(s.token, token):
		s.armed = false
		s.ledger.Discard(models.WishlistSet{})
		s.local.SaveWishlist(ctx, s.ledger.View())
	}
	s.state = StateAuthenticatedSyncing
	s.token = token
}

func (s *WishlistStore) dropToLocalLocked(ctx context.Context) {
	s.state = StateUnauthenticatedLocal
	s.token = ""
	s.armed = false
	s.ledger.Discard(s.local.LoadWishlist(ctx))
}

func (s *WishlistStore) unauthorizedLocked(ctx context.Context, tok string) {
	current, ok := s.local.ReadToken(ctx)
	switch {
	case !ok:
		s.dropToLocalLocked(ctx)
	case current != tok:
		s.enterSyncingLocked(ctx, current)
	}
}

func (s *WishlistStore) notify() {
	s.mu.Lock()
	view := append(models.WishlistSet{}, s.ledger.View()...)
	fns := s.subs.snapshot()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}

func (s *WishlistStore) emitToggle(ctx context.Context, tok, productID string, member bool) {
	events.Emit(ctx, s.pub, events.Event{
		Type:      events.WishlistToggled,
		Subject:   subjectOf(tok),
		ProductID: productID,
		Data:      map[string]any{"inWishlist": member},
	})
}

func flip(w models.WishlistSet, productID string, member bool) models.WishlistSet {
	if member {
		return w.With(productID)
	}
	return w.Without(productID)
}
