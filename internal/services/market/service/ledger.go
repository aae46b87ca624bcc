// Package service orchestrates market operations: placing orders against
// batch inventory and driving the order status workflow.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/granarylabs/granary/internal/platform/errors"
	"github.com/granarylabs/granary/internal/platform/id"
	"github.com/granarylabs/granary/internal/risk"
	"github.com/granarylabs/granary/internal/services/market/domain"
	"github.com/granarylabs/granary/internal/services/market/storage"
)

const tracerName = "github.com/granarylabs/granary/internal/services/market/service"

var (
	// ErrBatchNotFound indicates the batch does not exist.
	ErrBatchNotFound = apperrors.New(apperrors.CodeBatchNotFound, "batch not found")
	// ErrBatchNotListed indicates the batch is not on the market.
	ErrBatchNotListed = apperrors.New(apperrors.CodeBatchNotListed, "batch is not listed on the market")
	// ErrInsufficientQuantity indicates the requested quantity exceeds availability.
	ErrInsufficientQuantity = apperrors.New(apperrors.CodeInsufficientQuantity, "insufficient available quantity")
	// ErrBatchOpenOrders indicates open orders block a relist.
	ErrBatchOpenOrders = apperrors.New(apperrors.CodeBatchOpenOrders, "batch has open orders; delist and settle them before relisting")
	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = apperrors.New(apperrors.CodeOrderNotFound, "order not found")
	// ErrUnauthorized indicates the actor may not perform the operation.
	ErrUnauthorized = apperrors.New(apperrors.CodeUnauthorized, "actor is not authorized for this operation")
	// ErrOrderConflict indicates the order changed concurrently; the caller
	// should re-fetch and retry.
	ErrOrderConflict = apperrors.New(apperrors.CodeOrderConflict, "order was modified concurrently; re-fetch and retry")
)

// Ledger orchestrates batch inventory and the order state machine. All
// effects are observable only through returned records and the mutated batch;
// there is no hidden state and no internal retry.
type Ledger struct {
	store  storage.Store
	clock  func() time.Time
	newID  func() (string, error)
	tracer trace.Tracer
}

// NewLedger creates a market ledger backed by the given store.
func NewLedger(store storage.Store) *Ledger {
	return &Ledger{
		store:  store,
		clock:  millisecondClock,
		newID:  id.NewID,
		tracer: otel.Tracer(tracerName),
	}
}

// millisecondClock matches the resolution timestamps are persisted at, so a
// record returned from a write equals the same record re-read from the store.
func millisecondClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// CreateBatch registers a new, unlisted batch for a seller. The aflatoxin
// measurement must classify; invalid readings are rejected here once instead
// of surfacing later in every market view.
func (l *Ledger) CreateBatch(ctx context.Context, input domain.CreateBatchInput) (domain.Batch, error) {
	batch, err := domain.CreateBatch(input, l.clock, l.newID)
	if err != nil {
		return domain.Batch{}, err
	}
	if err := l.store.CreateBatch(ctx, batch); err != nil {
		return domain.Batch{}, fmt.Errorf("persist batch: %w", err)
	}
	return batch, nil
}

// GetBatch returns one batch by ID.
func (l *Ledger) GetBatch(ctx context.Context, batchID string) (domain.Batch, error) {
	batch, err := l.store.GetBatch(ctx, batchID)
	if err != nil {
		return domain.Batch{}, mapBatchErr(err)
	}
	return batch, nil
}

// RelistBatch puts a batch (back) on the market with a fresh quantity
// baseline and price. Only the owning seller may relist, and all prior orders
// must have settled so none are orphaned by the new baseline.
func (l *Ledger) RelistBatch(ctx context.Context, batchID, actorID string, quantity, pricePerKg decimal.Decimal) (domain.Batch, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return domain.Batch{}, err
	}
	if err := domain.ValidatePrice(pricePerKg); err != nil {
		return domain.Batch{}, err
	}

	batch, err := l.store.GetBatch(ctx, batchID)
	if err != nil {
		return domain.Batch{}, mapBatchErr(err)
	}
	if !isActor(actorID, batch.SellerID) {
		return domain.Batch{}, ErrUnauthorized
	}

	if err := l.store.RelistBatch(ctx, batchID, quantity, pricePerKg, l.clock().UTC()); err != nil {
		return domain.Batch{}, mapBatchErr(err)
	}
	relisted, err := l.store.GetBatch(ctx, batchID)
	if err != nil {
		return domain.Batch{}, mapBatchErr(err)
	}
	return relisted, nil
}

// DelistBatch withdraws a batch from the market. Outstanding orders continue
// through their workflow untouched.
func (l *Ledger) DelistBatch(ctx context.Context, batchID, actorID string) (domain.Batch, error) {
	batch, err := l.store.GetBatch(ctx, batchID)
	if err != nil {
		return domain.Batch{}, mapBatchErr(err)
	}
	if !isActor(actorID, batch.SellerID) {
		return domain.Batch{}, ErrUnauthorized
	}

	if err := l.store.DelistBatch(ctx, batchID); err != nil {
		return domain.Batch{}, mapBatchErr(err)
	}
	batch.IsOnMarket = false
	return batch, nil
}

// MarketItem is a listed batch annotated with its safety classification.
type MarketItem struct {
	Batch        domain.Batch
	RiskCategory risk.Category
}

// MarketPage is one page of the public market listing.
type MarketPage struct {
	Items      []MarketItem
	Total      int
	TotalPages int
}

// ListMarketBatches returns listed batches matching the query, each
// classified through the shared risk classifier.
func (l *Ledger) ListMarketBatches(ctx context.Context, query storage.MarketQuery) (MarketPage, error) {
	if query.PageSize <= 0 {
		query.PageSize = 20
	}
	page, err := l.store.ListMarketBatches(ctx, query)
	if err != nil {
		return MarketPage{}, fmt.Errorf("list market batches: %w", err)
	}

	result := MarketPage{
		Items:      make([]MarketItem, 0, len(page.Batches)),
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}
	for _, batch := range page.Batches {
		category, err := batch.RiskCategory()
		if err != nil {
			// A stored measurement that no longer classifies is a data bug;
			// surface it rather than serving an unclassified lot.
			return MarketPage{}, fmt.Errorf("classify batch %s: %w", batch.ID, err)
		}
		result.Items = append(result.Items, MarketItem{Batch: batch, RiskCategory: category})
	}
	return result, nil
}

// PlaceOrderInput describes a buyer's purchase request.
type PlaceOrderInput struct {
	BatchID         string
	BuyerID         string
	BuyerEmail      string
	BuyerContact    string
	Quantity        decimal.Decimal
	DeliveryAddress domain.Address
	Notes           string
}

// PlaceOrder reserves inventory and creates a pending order. On any failure
// no order is created and the batch is left exactly as it was.
func (l *Ledger) PlaceOrder(ctx context.Context, input PlaceOrderInput) (domain.Order, error) {
	ctx, span := l.tracer.Start(ctx, "market.PlaceOrder",
		trace.WithAttributes(attribute.String("market.batch_id", input.BatchID)))
	defer span.End()

	batch, err := l.store.GetBatch(ctx, input.BatchID)
	if err != nil {
		return domain.Order{}, mapBatchErr(err)
	}
	if !batch.IsOnMarket {
		return domain.Order{}, ErrBatchNotListed
	}

	order, err := domain.CreateOrder(domain.CreateOrderInput{
		BatchID:         batch.ID,
		SellerID:        batch.SellerID,
		BuyerID:         input.BuyerID,
		BuyerEmail:      input.BuyerEmail,
		BuyerContact:    input.BuyerContact,
		Quantity:        input.Quantity,
		PricePerKg:      batch.PricePerKg,
		DeliveryAddress: input.DeliveryAddress,
		Notes:           input.Notes,
	}, l.clock, l.newID)
	if err != nil {
		return domain.Order{}, err
	}

	if err := l.store.CreateOrder(ctx, order); err != nil {
		return domain.Order{}, mapBatchErr(err)
	}
	span.SetAttributes(attribute.String("market.order_id", order.ID))
	return order, nil
}

// GetOrder returns one order by ID.
func (l *Ledger) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := l.store.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, mapOrderErr(err)
	}
	return order, nil
}

// ListOrdersForBuyer returns the buyer's orders, most recent first.
func (l *Ledger) ListOrdersForBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return l.store.ListOrdersByBuyer(ctx, buyerID)
}

// ListOrdersForSeller returns the seller's orders, most recent first.
func (l *Ledger) ListOrdersForSeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return l.store.ListOrdersBySeller(ctx, sellerID)
}

// UpdateStatus validates authorization and legality of a status change, then
// persists it with a compare-and-swap on the source status. Re-issuing a
// transition whose target matches the current status is an idempotent no-op.
func (l *Ledger) UpdateStatus(ctx context.Context, orderID, actorID string, target domain.Status, payload domain.TransitionPayload) (domain.Order, error) {
	ctx, span := l.tracer.Start(ctx, "market.UpdateStatus",
		trace.WithAttributes(
			attribute.String("market.order_id", orderID),
			attribute.String("market.target_status", string(target)),
		))
	defer span.End()

	order, err := l.store.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, mapOrderErr(err)
	}

	if !isAuthorizedForTransition(order, actorID, target) {
		return domain.Order{}, ErrUnauthorized
	}

	result, err := domain.Transition(order, target, payload, l.clock)
	if err != nil {
		return domain.Order{}, err
	}
	if !result.Applied {
		return result.Order, nil
	}

	if err := l.store.ApplyTransition(ctx, result.Order, order.Status, result.ReleaseInventory); err != nil {
		return domain.Order{}, mapOrderErr(err)
	}
	return result.Order, nil
}

// isAuthorizedForTransition enforces who may drive an order. The seller
// drives the workflow; the buyer may only request cancellation while the
// order is pending or confirmed.
func isAuthorizedForTransition(order domain.Order, actorID string, target domain.Status) bool {
	if isActor(actorID, order.SellerID) {
		return true
	}
	if isActor(actorID, order.BuyerID) {
		return target == domain.StatusCancelled &&
			(order.Status == domain.StatusPending || order.Status == domain.StatusConfirmed)
	}
	return false
}

func isActor(actorID, ownerID string) bool {
	actorID = strings.TrimSpace(actorID)
	return actorID != "" && actorID == ownerID
}

func mapBatchErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrBatchNotFound
	case errors.Is(err, storage.ErrNotListed):
		return ErrBatchNotListed
	case errors.Is(err, storage.ErrInsufficientQuantity):
		return ErrInsufficientQuantity
	case errors.Is(err, storage.ErrOpenOrders):
		return ErrBatchOpenOrders
	default:
		return fmt.Errorf("market storage: %w", err)
	}
}

func mapOrderErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrOrderNotFound
	case errors.Is(err, storage.ErrStatusConflict):
		return ErrOrderConflict
	default:
		return fmt.Errorf("market storage: %w", err)
	}
}
