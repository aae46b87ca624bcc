// Package storage defines the persistence contracts for market state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/granarylabs/granary/internal/services/market/domain"
)

var (
	// ErrNotFound indicates a missing batch or order record.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a duplicate primary key.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrNotListed indicates the batch is not on the market.
	ErrNotListed = errors.New("batch is not listed on the market")
	// ErrInsufficientQuantity indicates a reservation larger than the
	// available quantity.
	ErrInsufficientQuantity = errors.New("insufficient available quantity")
	// ErrOpenOrders indicates non-terminal orders block a relist.
	ErrOpenOrders = errors.New("batch has open orders")
	// ErrStatusConflict indicates the order status changed since it was read.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// MarketSort names the supported market listing sort keys.
type MarketSort string

const (
	MarketSortListedAt MarketSort = "listed_at"
	MarketSortPrice    MarketSort = "price"
	MarketSortQuantity MarketSort = "quantity"
)

// MarketQuery filters and paginates the public market listing.
type MarketQuery struct {
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	MinQuantity *decimal.Decimal
	Supplier    string
	SortBy      MarketSort
	Descending  bool
	Page        int
	PageSize    int
}

// MarketPage is one page of listed batches.
type MarketPage struct {
	Batches    []domain.Batch
	Total      int
	TotalPages int
}

// BatchStore persists batches and their quantity ledger.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch domain.Batch) error
	GetBatch(ctx context.Context, batchID string) (domain.Batch, error)
	ListMarketBatches(ctx context.Context, query MarketQuery) (MarketPage, error)

	// ReserveQuantity atomically checks and decrements the available
	// quantity. Two concurrent reservations racing for the last units
	// serialize at the store; at most one wins.
	ReserveQuantity(ctx context.Context, batchID string, quantity decimal.Decimal) error

	// ReleaseQuantity returns quantity to the batch, capped at the listed
	// baseline.
	ReleaseQuantity(ctx context.Context, batchID string, quantity decimal.Decimal) error

	// RelistBatch sets the listing baseline, price, and flag. It fails with
	// ErrOpenOrders while any order on the batch is non-terminal.
	RelistBatch(ctx context.Context, batchID string, quantity decimal.Decimal, pricePerKg decimal.Decimal, listedAt time.Time) error

	// DelistBatch clears the market flag without touching outstanding orders.
	DelistBatch(ctx context.Context, batchID string) error
}

// OrderStore persists orders and their status history.
type OrderStore interface {
	// CreateOrder reserves the order's quantity and inserts the record in a
	// single transaction; on reservation failure no order is written.
	CreateOrder(ctx context.Context, order domain.Order) error

	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID string) ([]domain.Order, error)

	// ApplyTransition persists an already-validated transition with a
	// compare-and-swap on the expected source status, failing with
	// ErrStatusConflict when the stored status moved on. When
	// releaseQuantity is true the order's quantity returns to the batch in
	// the same transaction.
	ApplyTransition(ctx context.Context, order domain.Order, expected domain.Status, releaseQuantity bool) error
}

// Store is the combined persistence surface for the market service.
type Store interface {
	BatchStore
	OrderStore
}
