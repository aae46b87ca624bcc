package domain

import (
	"strings"
	"time"

	apperrors "github.com/granarylabs/granary/internal/platform/errors"
)

// Status describes the order lifecycle label.
type Status string

const (
	StatusUnspecified Status = ""
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusPreparing   Status = "preparing"
	StatusShipped     Status = "shipped"
	StatusDelivered   Status = "delivered"
	StatusRejected    Status = "rejected"
	StatusCancelled   Status = "cancelled"
)

var (
	// ErrInvalidStatus indicates an unknown status label.
	ErrInvalidStatus = apperrors.New(apperrors.CodeInvalidStatus, "order status is not recognized")
	// ErrIllegalTransition indicates a disallowed order status change.
	ErrIllegalTransition = apperrors.New(apperrors.CodeIllegalTransition, "order status transition is not allowed")
	// ErrTrackingNumberRequired indicates a shipment without a tracking number.
	ErrTrackingNumberRequired = apperrors.New(apperrors.CodeTrackingNumberRequired, "tracking number is required to mark an order shipped")
)

// ParseStatus canonicalizes a status label.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusPending:
		return StatusPending, nil
	case StatusConfirmed:
		return StatusConfirmed, nil
	case StatusPreparing:
		return StatusPreparing, nil
	case StatusShipped:
		return StatusShipped, nil
	case StatusDelivered:
		return StatusDelivered, nil
	case StatusRejected:
		return StatusRejected, nil
	case StatusCancelled:
		return StatusCancelled, nil
	default:
		return StatusUnspecified, apperrors.WithMetadata(
			apperrors.CodeInvalidStatus,
			"order status is not recognized",
			map[string]string{"status": value},
		)
	}
}

// IsTerminal reports whether no further transition is permitted from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// ReleasesInventory reports whether reaching s returns the order's reserved
// quantity to the batch.
func (s Status) ReleasesInventory() bool {
	return s == StatusRejected || s == StatusCancelled
}

// isTransitionAllowed enforces the order lifecycle graph. Any pair not listed
// is illegal; the graph never skips or reverses.
func isTransitionAllowed(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusRejected
	case StatusConfirmed:
		return to == StatusPreparing || to == StatusCancelled
	case StatusPreparing:
		return to == StatusShipped || to == StatusCancelled
	case StatusShipped:
		return to == StatusDelivered
	default:
		return false
	}
}

// IsTransitionAllowed reports whether a status transition is permitted.
func IsTransitionAllowed(from, to Status) bool {
	return isTransitionAllowed(from, to)
}

// TransitionPayload carries the optional fields a status update may set.
type TransitionPayload struct {
	TrackingNumber    string
	EstimatedDelivery *time.Time
	SellerNotes       string
}

// TransitionResult is the outcome of applying a transition.
type TransitionResult struct {
	Order Order
	// Applied is false when the order was already in the target state and the
	// call was an idempotent no-op.
	Applied bool
	// ReleaseInventory signals that the caller must return the order's
	// quantity to the batch.
	ReleaseInventory bool
}

// Transition validates and applies a status change to an order.
//
// Re-issuing a transition whose target equals the current status is an
// idempotent no-op: the order is returned unchanged with Applied=false. A
// transition whose source state has already moved on fails with
// ErrIllegalTransition.
func Transition(order Order, target Status, payload TransitionPayload, now func() time.Time) (TransitionResult, error) {
	if now == nil {
		now = time.Now
	}

	if order.Status == target {
		return TransitionResult{Order: order}, nil
	}
	if !isTransitionAllowed(order.Status, target) {
		return TransitionResult{}, apperrors.WithMetadata(
			apperrors.CodeIllegalTransition,
			"order status transition is not allowed",
			map[string]string{"from": string(order.Status), "to": string(target)},
		)
	}

	tracking := strings.TrimSpace(payload.TrackingNumber)
	if target == StatusShipped && tracking == "" && strings.TrimSpace(order.TrackingNumber) == "" {
		return TransitionResult{}, ErrTrackingNumberRequired
	}

	updatedAt := now().UTC()
	order.Status = target
	order.UpdatedAt = updatedAt
	if tracking != "" {
		order.TrackingNumber = tracking
	}
	if payload.EstimatedDelivery != nil {
		estimated := payload.EstimatedDelivery.UTC()
		order.EstimatedDelivery = &estimated
	}
	if notes := strings.TrimSpace(payload.SellerNotes); notes != "" {
		order.SellerNotes = notes
	}

	stamp := updatedAt
	switch target {
	case StatusConfirmed:
		order.ConfirmedAt = &stamp
	case StatusPreparing:
		order.PreparingAt = &stamp
	case StatusShipped:
		order.ShippedAt = &stamp
	case StatusDelivered:
		order.DeliveredAt = &stamp
	case StatusRejected:
		order.RejectedAt = &stamp
	case StatusCancelled:
		order.CancelledAt = &stamp
	}

	return TransitionResult{
		Order:            order,
		Applied:          true,
		ReleaseInventory: target.ReleasesInventory(),
	}, nil
}
