// Package localstore persists the guest cart, the wishlist, the session
// cookie and the dashboard theme on the user's machine.
//
// Nothing here returns an error to the caller: reads degrade to the empty
// value and writes are best-effort. The stored cart is a convenience cache,
// never the source of truth once a session exists.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/models"
	"github.com/Skotchmaster/shopfront/internal/session"
)

const (
	KeyCart       = "cart"
	KeyRemoteCart = "cart_remote"
	KeyWishlist   = "wishlist"
	KeyCookie     = "cookie"
	KeyDarkMode   = "dashboard_dark_mode"
)

type Adapter struct {
	kv  KV
	log *slog.Logger
	now func() time.Time

	// mu serializes read-modify-write cycles so two handlers never
	// interleave their read and write of the same key.
	mu sync.Mutex
}

type Option func(*Adapter)

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

func NewAdapter(kv KV, opts ...Option) *Adapter {
	a := &Adapter{kv: kv, log: logging.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) LoadCart(ctx context.Context) models.CartSnapshot {
	return a.loadCart(ctx, KeyCart)
}

func (a *Adapter) SaveCart(ctx context.Context, s models.CartSnapshot) {
	a.saveJSON(ctx, KeyCart, s.Normalize())
}

// UpdateCart applies fn to the latest persisted guest cart and stores the result.
func (a *Adapter) UpdateCart(ctx context.Context, fn func(models.CartSnapshot) models.CartSnapshot) models.CartSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := fn(a.loadCart(ctx, KeyCart)).Normalize()
	a.saveJSON(ctx, KeyCart, next)
	return next
}

func (a *Adapter) ClearCart(ctx context.Context) {
	a.delete(ctx, KeyCart)
}

// LoadRemoteCart returns the last snapshot confirmed by the backend, used as
// the stale fallback when the backend is unreachable.
func (a *Adapter) LoadRemoteCart(ctx context.Context) (models.CartSnapshot, bool) {
	raw, ok := a.get(ctx, KeyRemoteCart)
	if !ok {
		return models.EmptyCart(), false
	}
	return a.decodeCart(KeyRemoteCart, raw), true
}

func (a *Adapter) SaveRemoteCart(ctx context.Context, s models.CartSnapshot) {
	a.saveJSON(ctx, KeyRemoteCart, s.Normalize())
}

func (a *Adapter) ClearRemoteCart(ctx context.Context) {
	a.delete(ctx, KeyRemoteCart)
}

func (a *Adapter) LoadWishlist(ctx context.Context) models.WishlistSet {
	raw, ok := a.get(ctx, KeyWishlist)
	if !ok {
		return models.WishlistSet{}
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		a.log.Warn("local_wishlist_decode_failed", "error", err)
		return models.WishlistSet{}
	}
	return models.NewWishlistSet(ids...)
}

func (a *Adapter) SaveWishlist(ctx context.Context, w models.WishlistSet) {
	a.saveJSON(ctx, KeyWishlist, models.NewWishlistSet(w...))
}

func (a *Adapter) UpdateWishlist(ctx context.Context, fn func(models.WishlistSet) models.WishlistSet) models.WishlistSet {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := models.NewWishlistSet(fn(a.LoadWishlist(ctx))...)
	a.saveJSON(ctx, KeyWishlist, next)
	return next
}

// ReadToken returns the bearer token from the stored cookie string.
func (a *Adapter) ReadToken(ctx context.Context) (string, bool) {
	raw, ok := a.get(ctx, KeyCookie)
	if !ok {
		return "", false
	}
	return session.BearerFromCookie(raw, a.now())
}

func (a *Adapter) Cookies(ctx context.Context) map[string]string {
	raw, _ := a.get(ctx, KeyCookie)
	return session.ParseCookie(raw)
}

func (a *Adapter) SetCookie(ctx context.Context, name, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	raw, _ := a.get(ctx, KeyCookie)
	values := session.ParseCookie(raw)
	values[name] = value
	a.set(ctx, KeyCookie, session.FormatCookie(values))
}

// ClearCookies drops every cookie. The guest cart and wishlist are kept.
func (a *Adapter) ClearCookies(ctx context.Context) {
	a.delete(ctx, KeyCookie)
}

func (a *Adapter) LoadDarkMode(ctx context.Context) bool {
	raw, ok := a.get(ctx, KeyDarkMode)
	if !ok {
		return false
	}
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}

func (a *Adapter) SaveDarkMode(ctx context.Context, dark bool) {
	a.set(ctx, KeyDarkMode, strconv.FormatBool(dark))
}

func (a *Adapter) loadCart(ctx context.Context, key string) models.CartSnapshot {
	raw, ok := a.get(ctx, key)
	if !ok {
		return models.EmptyCart()
	}
	return a.decodeCart(key, raw)
}

func (a *Adapter) decodeCart(key, raw string) models.CartSnapshot {
	var s models.CartSnapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		// a bare array of lines is accepted too
		var lines []models.CartLine
		if errLines := json.Unmarshal([]byte(raw), &lines); errLines != nil {
			a.log.Warn("local_cart_decode_failed", "key", key, "error", err)
			return models.EmptyCart()
		}
		s.Lines = lines
	}
	return s.Normalize()
}

func (a *Adapter) get(ctx context.Context, key string) (string, bool) {
	v, err := a.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			a.log.Warn("local_storage_read_failed", "key", key, "error", err)
		}
		return "", false
	}
	return v, true
}

func (a *Adapter) set(ctx context.Context, key, value string) {
	if err := a.kv.Set(ctx, key, value); err != nil {
		a.log.Warn("local_storage_write_failed", "key", key, "error", err)
	}
}

func (a *Adapter) saveJSON(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		a.log.Warn("local_storage_encode_failed", "key", key, "error", err)
		return
	}
	a.set(ctx, key, string(data))
}

func (a *Adapter) delete(ctx context.Context, key string) {
	if err := a.kv.Delete(ctx, key); err != nil {
		a.log.Warn("local_storage_delete_failed", "key", key, "error", err)
	}
}
