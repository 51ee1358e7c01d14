// Package reconcile keeps the cart and wishlist consistent between the
// on-device copy and the backend across page loads, sign-in and sign-out.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/Skotchmaster/shopfront/internal/events"
	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/models"
	"github.com/Skotchmaster/shopfront/internal/session"
)

type State int

const (
	StateUnauthenticatedLocal State = iota
	StateAuthenticatedSyncing
	StateAuthenticatedRemote
)

func (s State) String() string {
	switch s {
	case StateAuthenticatedSyncing:
		return "authenticated_syncing"
	case StateAuthenticatedRemote:
		return "authenticated_remote"
	default:
		return "unauthenticated_local"
	}
}

type TokenReader interface {
	ReadToken(ctx context.Context) (string, bool)
}

type LocalCart interface {
	TokenReader
	LoadCart(ctx context.Context) models.CartSnapshot
	UpdateCart(ctx context.Context, fn func(models.CartSnapshot) models.CartSnapshot) models.CartSnapshot
	ClearCart(ctx context.Context)
	LoadRemoteCart(ctx context.Context) (models.CartSnapshot, bool)
	SaveRemoteCart(ctx context.Context, s models.CartSnapshot)
	ClearRemoteCart(ctx context.Context)
}

type CartBackend interface {
	FetchCart(ctx context.Context, token string) (models.CartSnapshot, error)
	AddItem(ctx context.Context, token, productID string, quantity int) (string, error)
	UpdateQuantity(ctx context.Context, token, cartID, productID string, quantity int) error
	RemoveItem(ctx context.Context, token, cartID, productID string) error
}

type LocalWishlist interface {
	TokenReader
	LoadWishlist(ctx context.Context) models.WishlistSet
	SaveWishlist(ctx context.Context, w models.WishlistSet)
	UpdateWishlist(ctx context.Context, fn func(models.WishlistSet) models.WishlistSet) models.WishlistSet
}

type WishlistBackend interface {
	FetchWishlist(ctx context.Context, token string) (models.WishlistSet, error)
	AddToWishlist(ctx context.Context, token, productID string) error
	RemoveFromWishlist(ctx context.Context, token, productID string) error
}

type options struct {
	notices   *Notices
	publisher events.Publisher
	log       *slog.Logger
}

type Option func(*options)

// WithNotices shares one notice list between stores.
func WithNotices(n *Notices) Option {
	return func(o *options) { o.notices = n }
}

func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{publisher: events.Nop{}, log: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.notices == nil {
		o.notices = NewNotices(0)
	}
	return o
}

func subjectOf(token string) string {
	if token == "" {
		return ""
	}
	if sub := accountOf(token); sub != "" {
		return sub
	}
	return "user"
}

// accountOf is the JWT subject of token, or "" for opaque tokens.
func accountOf(token string) string {
	if token == "" {
		return ""
	}
	claims, err := session.Inspect(token)
	if err != nil {
		return ""
	}
	return claims.Subject
}

// sameAccount reports whether two tokens belong to one account. Only JWT
// subjects can tell; two different opaque tokens count as two accounts.
func sameAccount(a, b string) bool {
	if a == b {
		return true
	}
	sa, sb := accountOf(a), accountOf(b)
	return sa != "" && sa == sb
}

type subscribers[T any] struct {
	next int
	fns  map[int]func(T)
}

func (s *subscribers[T]) add(fn func(T)) int {
	if s.fns == nil {
		s.fns = make(map[int]func(T))
	}
	s.next++
	s.fns[s.next] = fn
	return s.next
}

func (s *subscribers[T]) remove(id int) {
	delete(s.fns, id)
}

func (s *subscribers[T]) snapshot() []func(T) {
	out := make([]func(T), 0, len(s.fns))
	for _, fn := range s.fns {
		out = append(out, fn)
	}
	return out
}
