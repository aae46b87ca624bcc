package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/granarylabs/granary/internal/platform/errors"
	"github.com/granarylabs/granary/internal/platform/id"
)

var (
	// ErrInvalidAddress indicates a delivery address missing street or city.
	ErrInvalidAddress = apperrors.New(apperrors.CodeInvalidAddress, "delivery address requires street and city")
	// ErrBuyerRequired indicates a missing buyer id.
	ErrBuyerRequired = apperrors.New(apperrors.CodeBuyerRequired, "buyer id is required")
)

// Address is a delivery destination. Street and City are required.
type Address struct {
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Normalize trims all address fields.
func (a Address) Normalize() Address {
	return Address{
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

// Validate checks the required address fields.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Street) == "" || strings.TrimSpace(a.City) == "" {
		return ErrInvalidAddress
	}
	return nil
}

// Order is a buyer's claim against a quantity of a specific batch. It is
// created once per successful reservation, never deleted, and mutated only
// through Transition.
type Order struct {
	ID           string
	BatchID      string
	SellerID     string
	BuyerID      string
	BuyerEmail   string
	BuyerContact string

	// QuantityOrdered and PricePerKg are snapshots taken at order time; the
	// batch's listed price may change later without affecting them.
	QuantityOrdered decimal.Decimal
	PricePerKg      decimal.Decimal
	TotalAmount     decimal.Decimal

	Status            Status
	DeliveryAddress   Address
	TrackingNumber    string
	EstimatedDelivery *time.Time
	Notes             string
	SellerNotes       string

	OrderDate   time.Time
	ConfirmedAt *time.Time
	PreparingAt *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	RejectedAt  *time.Time
	CancelledAt *time.Time
	UpdatedAt   time.Time
}

// CreateOrderInput describes the fields needed to place an order against an
// already-reserved quantity.
type CreateOrderInput struct {
	BatchID         string
	SellerID        string
	BuyerID         string
	BuyerEmail      string
	BuyerContact    string
	Quantity        decimal.Decimal
	PricePerKg      decimal.Decimal
	DeliveryAddress Address
	Notes           string
}

// CreateOrder validates input and builds a new pending order with the price
// snapshot and total amount computed.
func CreateOrder(input CreateOrderInput, now func() time.Time, idGenerator func() (string, error)) (Order, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	if strings.TrimSpace(input.BuyerID) == "" {
		return Order{}, ErrBuyerRequired
	}
	if err := ValidateQuantity(input.Quantity); err != nil {
		return Order{}, err
	}
	if err := ValidatePrice(input.PricePerKg); err != nil {
		return Order{}, err
	}
	address := input.DeliveryAddress.Normalize()
	if err := address.Validate(); err != nil {
		return Order{}, err
	}

	orderID, err := idGenerator()
	if err != nil {
		return Order{}, apperrors.Wrap(apperrors.CodeUnknown, "generate order id", err)
	}

	createdAt := now().UTC()
	return Order{
		ID:              orderID,
		BatchID:         strings.TrimSpace(input.BatchID),
		SellerID:        strings.TrimSpace(input.SellerID),
		BuyerID:         strings.TrimSpace(input.BuyerID),
		BuyerEmail:      strings.TrimSpace(input.BuyerEmail),
		BuyerContact:    strings.TrimSpace(input.BuyerContact),
		QuantityOrdered: input.Quantity,
		PricePerKg:      input.PricePerKg,
		TotalAmount:     input.Quantity.Mul(input.PricePerKg),
		Status:          StatusPending,
		DeliveryAddress: address,
		Notes:           strings.TrimSpace(input.Notes),
		OrderDate:       createdAt,
		UpdatedAt:       createdAt,
	}, nil
}
