package models

import "time"

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCard           PaymentMethod = "card"
)

type ShippingDetails struct {
	FullName   string `json:"fullName"   validate:"required"`
	Email      string `json:"email"      validate:"required,email"`
	Phone      string `json:"phone"      validate:"required"`
	Address    string `json:"address"    validate:"required"`
	City       string `json:"city"       validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country"    validate:"required"`
}

type OrderItem struct {
	ProductID string  `json:"productId" validate:"required"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"     validate:"gte=0"`
	Quantity  int     `json:"quantity"  validate:"gte=1"`
}

type OrderRequest struct {
	Items         []OrderItem     `json:"items"         validate:"required,min=1,dive"`
	Shipping      ShippingDetails `json:"shipping"`
	PaymentMethod PaymentMethod   `json:"paymentMethod" validate:"required,oneof=cash_on_delivery card"`
	CardLast4     string          `json:"cardLast4,omitempty" validate:"omitempty,len=4,numeric"`
	Total         float64         `json:"total"         validate:"gte=0"`
}

type Order struct {
	ID            string          `json:"_id"`
	Items         []OrderItem     `json:"items"`
	Shipping      ShippingDetails `json:"shipping"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Total         float64         `json:"total"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"       validate:"required,email"`
	Code        string `json:"code"        validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,nefield=OldPassword"`
}
