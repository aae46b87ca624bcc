// Package domain holds the market domain model: grain batches, purchase
// orders, and the order status state machine.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/granarylabs/granary/internal/platform/errors"
	"github.com/granarylabs/granary/internal/platform/id"
	"github.com/granarylabs/granary/internal/risk"
)

var (
	// ErrSellerRequired indicates a missing seller id.
	ErrSellerRequired = apperrors.New(apperrors.CodeBatchSellerRequired, "seller id is required")
	// ErrSupplierEmpty indicates a missing supplier name.
	ErrSupplierEmpty = apperrors.New(apperrors.CodeBatchSupplierEmpty, "supplier is required")
	// ErrInvalidPrice indicates a non-positive price per kg.
	ErrInvalidPrice = apperrors.New(apperrors.CodeInvalidPrice, "price per kg must be greater than zero")
	// ErrInvalidQuantity indicates a non-positive quantity or one finer than gram resolution.
	ErrInvalidQuantity = apperrors.New(apperrors.CodeInvalidQuantity, "quantity must be a positive amount with at most gram resolution")
)

// Measurements holds the quality readings taken for a batch. Only Aflatoxin
// participates in safety classification; the rest are carried opaquely.
type Measurements struct {
	Moisture      float64
	BrokenKernels float64
	ForeignMatter float64
	Aflatoxin     float64
}

// Batch is a priced, quantified lot of grain owned by a seller.
// AvailableQuantity and ListedQuantity are kilograms with gram resolution.
type Batch struct {
	ID                string
	SellerID          string
	Supplier          string
	Measurements      Measurements
	IsOnMarket        bool
	PricePerKg        decimal.Decimal
	AvailableQuantity decimal.Decimal
	// ListedQuantity is the baseline set at the last relist. The conservation
	// invariant holds against it: available + open order quantities == listed.
	ListedQuantity decimal.Decimal
	ListedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RiskCategory classifies the batch's aflatoxin measurement.
func (b Batch) RiskCategory() (risk.Category, error) {
	return risk.Classify(b.Measurements.Aflatoxin)
}

// CreateBatchInput describes the fields needed to register a batch.
type CreateBatchInput struct {
	SellerID     string
	Supplier     string
	Measurements Measurements
}

// CreateBatch validates input and builds a new unlisted batch.
func CreateBatch(input CreateBatchInput, now func() time.Time, idGenerator func() (string, error)) (Batch, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.SellerID = strings.TrimSpace(input.SellerID)
	input.Supplier = strings.TrimSpace(input.Supplier)
	if input.SellerID == "" {
		return Batch{}, ErrSellerRequired
	}
	if input.Supplier == "" {
		return Batch{}, ErrSupplierEmpty
	}
	if _, err := risk.Classify(input.Measurements.Aflatoxin); err != nil {
		return Batch{}, err
	}

	batchID, err := idGenerator()
	if err != nil {
		return Batch{}, apperrors.Wrap(apperrors.CodeUnknown, "generate batch id", err)
	}

	createdAt := now().UTC()
	return Batch{
		ID:                batchID,
		SellerID:          input.SellerID,
		Supplier:          input.Supplier,
		Measurements:      input.Measurements,
		IsOnMarket:        false,
		PricePerKg:        decimal.Zero,
		AvailableQuantity: decimal.Zero,
		ListedQuantity:    decimal.Zero,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}, nil
}

// ValidateQuantity checks a reservation or listing quantity: positive and at
// most gram (three decimal place) resolution. Finer amounts are rejected,
// never rounded.
func ValidateQuantity(quantity decimal.Decimal) error {
	if quantity.Sign() <= 0 {
		return ErrInvalidQuantity
	}
	if !quantity.Shift(3).IsInteger() {
		return ErrInvalidQuantity
	}
	return nil
}

// ValidatePrice checks a listing price is positive.
func ValidatePrice(price decimal.Decimal) error {
	if price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	return nil
}
