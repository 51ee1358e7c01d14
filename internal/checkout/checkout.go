// Package checkout turns the reconciled cart into an order. Payment is
// simulated: card details are checked locally and only the last four digits
// leave the machine.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Skotchmaster/shopfront/internal/events"
	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/models"
	"github.com/Skotchmaster/shopfront/internal/reconcile"
	"github.com/Skotchmaster/shopfront/internal/remote"
	"github.com/Skotchmaster/shopfront/internal/session"
	"github.com/Skotchmaster/shopfront/internal/validate"
)

var ErrEmptyCart = errors.New("cart is empty")

// Cart is the reconciled cart. Confirmed must fail while the backend has not
// acknowledged the cart on display.
type Cart interface {
	Confirmed() (models.CartSnapshot, error)
	State() reconcile.State
	Sync(ctx context.Context) error
	Clear(ctx context.Context)
}

type Orders interface {
	PlaceOrder(ctx context.Context, token string, req models.OrderRequest) (models.Order, error)
	MyOrders(ctx context.Context, token string) ([]models.Order, error)
}

type Payment struct {
	Method     models.PaymentMethod `json:"method"`
	CardNumber string               `json:"cardNumber,omitempty"`
	Expiry     string               `json:"expiry,omitempty"`
	CVC        string               `json:"cvc,omitempty"`
}

type Service struct {
	cart   Cart
	orders Orders
	tokens reconcile.TokenReader
	pub    events.Publisher
	log    *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.pub = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(cart Cart, orders Orders, tokens reconcile.TokenReader, opts ...Option) *Service {
	s := &Service{
		cart:   cart,
		orders: orders,
		tokens: tokens,
		pub:    events.Nop{},
		log:    logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder submits the current cart. The cart is cleared only after the
// backend accepted the order.
func (s *Service) PlaceOrder(ctx context.Context, shipping models.ShippingDetails, payment Payment) (models.Order, error) {
	l := s.log.With("op", "place_order")

	token, ok := s.tokens.ReadToken(ctx)
	if !ok {
		return models.Order{}, &remote.Error{Kind: remote.KindUnauthorized, Message: "sign in to place an order"}
	}
	if err := validate.Check(shipping); err != nil {
		return models.Order{}, remote.Validation(err.Error())
	}
	last4, err := s.checkPayment(payment)
	if err != nil {
		return models.Order{}, err
	}

	if s.cart.State() != reconcile.StateAuthenticatedRemote {
		if err := s.cart.Sync(ctx); err != nil {
			l.Warn("cart_sync_before_order_failed", "error", err)
		}
	}
	cart, err := s.cart.Confirmed()
	if err != nil {
		l.Warn("cart_not_confirmed", "kind", remote.KindOf(err).String(), "error", err)
		return models.Order{}, err
	}
	if cart.IsEmpty() {
		return models.Order{}, &remote.Error{Kind: remote.KindValidation, Message: "your cart is empty", Err: ErrEmptyCart}
	}

	req := models.OrderRequest{
		Items:         make([]models.OrderItem, 0, len(cart.Lines)),
		Shipping:      shipping,
		PaymentMethod: payment.Method,
		CardLast4:     last4,
		Total:         cart.Total(),
	}
	for _, line := range cart.Lines {
		req.Items = append(req.Items, models.OrderItem{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Price:     line.Product.Price,
			Quantity:  line.Quantity,
		})
	}

	order, err := s.orders.PlaceOrder(ctx, token, req)
	if err != nil {
		l.Error("order_rejected", "kind", remote.KindOf(err).String(), "error", err)
		return models.Order{}, err
	}

	s.cart.Clear(ctx)
	l.Info("order_placed", "order_id", order.ID, "items", len(req.Items), "total", req.Total)

	subject := ""
	if claims, err := session.Inspect(token); err == nil {
		subject = claims.Subject
	}
	events.Emit(ctx, s.pub, events.Event{
		Type:    events.OrderPlaced,
		Subject: subject,
		Data:    map[string]any{"orderId": order.ID, "total": req.Total, "paymentMethod": string(payment.Method)},
	})
	return order, nil
}

func (s *Service) MyOrders(ctx context.Context) ([]models.Order, error) {
	token, ok := s.tokens.ReadToken(ctx)
	if !ok {
		return nil, &remote.Error{Kind: remote.KindUnauthorized, Message: "sign in to see your orders"}
	}
	return s.orders.MyOrders(ctx, token)
}

// checkPayment returns the masked card suffix for card payments.
func (s *Service) checkPayment(p Payment) (string, error) {
	switch p.Method {
	case models.PaymentCashOnDelivery:
		return "", nil
	case models.PaymentCard:
	default:
		return "", remote.Validation(fmt.Sprintf("unsupported payment method %q", p.Method))
	}

	number := strings.ReplaceAll(strings.ReplaceAll(p.CardNumber, " ", ""), "-", "")
	if err := validate.Var(number, "required,credit_card"); err != nil {
		return "", remote.Validation("card number is invalid")
	}
	if err := validate.Var(p.CVC, "required,numeric,min=3,max=4"); err != nil {
		return "", remote.Validation("card security code is invalid")
	}
	if err := checkExpiry(p.Expiry, s.now()); err != nil {
		return "", err
	}
	return number[len(number)-4:], nil
}

// checkExpiry accepts MM/YY; a card is valid through the last day of its month.
func checkExpiry(expiry string, now time.Time) error {
	t, err := time.Parse("01/06", strings.TrimSpace(expiry))
	if err != nil {
		return remote.Validation("card expiry must be MM/YY")
	}
	if !now.Before(t.AddDate(0, 1, 0)) {
		return remote.Validation("card has expired")
	}
	return nil
}
