package domain

import (
	"errors"
	"testing"
	"time"
)

var allStatuses = []Status{
	StatusPending, StatusConfirmed, StatusPreparing,
	StatusShipped, StatusDelivered, StatusRejected, StatusCancelled,
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func pendingOrder() Order {
	return Order{
		ID:      "ord-1",
		BatchID: "batch-1",
		Status:  StatusPending,
	}
}

func TestTransitionTableIsExhaustive(t *testing.T) {
	t.Parallel()

	allowed := map[Status][]Status{
		StatusPending:   {StatusConfirmed, StatusRejected},
		StatusConfirmed: {StatusPreparing, StatusCancelled},
		StatusPreparing: {StatusShipped, StatusCancelled},
		StatusShipped:   {StatusDelivered},
		StatusDelivered: {},
		StatusRejected:  {},
		StatusCancelled: {},
	}

	for from, targets := range allowed {
		want := make(map[Status]bool, len(targets))
		for _, to := range targets {
			want[to] = true
		}
		for _, to := range allStatuses {
			if got := IsTransitionAllowed(from, to); got != want[to] {
				t.Fatalf("IsTransitionAllowed(%s, %s) = %v, want %v", from, to, got, want[to])
			}
		}
	}
}

func TestTransitionStampsTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	result, err := Transition(pendingOrder(), StatusConfirmed, TransitionPayload{}, fixedClock(now))
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !result.Applied {
		t.Fatal("expected transition to apply")
	}
	if result.Order.Status != StatusConfirmed {
		t.Fatalf("status = %s, want %s", result.Order.Status, StatusConfirmed)
	}
	if result.Order.ConfirmedAt == nil || !result.Order.ConfirmedAt.Equal(now) {
		t.Fatalf("confirmedAt = %v, want %v", result.Order.ConfirmedAt, now)
	}
	if result.ReleaseInventory {
		t.Fatal("confirm must not release inventory")
	}
}

func TestTransitionIdempotentOnSameTarget(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	first, err := Transition(pendingOrder(), StatusConfirmed, TransitionPayload{}, fixedClock(now))
	if err != nil {
		t.Fatalf("first transition: %v", err)
	}

	later := now.Add(5 * time.Minute)
	second, err := Transition(first.Order, StatusConfirmed, TransitionPayload{SellerNotes: "ignored"}, fixedClock(later))
	if err != nil {
		t.Fatalf("repeat transition: %v", err)
	}
	if second.Applied {
		t.Fatal("repeat transition must be a no-op")
	}
	if !second.Order.ConfirmedAt.Equal(now) {
		t.Fatalf("confirmedAt changed on repeat: %v", second.Order.ConfirmedAt)
	}
	if second.Order.SellerNotes != "" {
		t.Fatal("no-op transition must not merge payload")
	}
}

func TestTransitionStaleSourceIsIllegal(t *testing.T) {
	t.Parallel()

	order := pendingOrder()
	order.Status = StatusPreparing

	_, err := Transition(order, StatusConfirmed, TransitionPayload{}, nil)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("error = %v, want %v", err, ErrIllegalTransition)
	}
}

func TestTransitionShippedRequiresTracking(t *testing.T) {
	t.Parallel()

	order := pendingOrder()
	order.Status = StatusPreparing

	_, err := Transition(order, StatusShipped, TransitionPayload{}, nil)
	if !errors.Is(err, ErrTrackingNumberRequired) {
		t.Fatalf("error = %v, want %v", err, ErrTrackingNumberRequired)
	}
	_, err = Transition(order, StatusShipped, TransitionPayload{TrackingNumber: "   "}, nil)
	if !errors.Is(err, ErrTrackingNumberRequired) {
		t.Fatalf("blank tracking error = %v, want %v", err, ErrTrackingNumberRequired)
	}

	result, err := Transition(order, StatusShipped, TransitionPayload{TrackingNumber: "TRK123"}, nil)
	if err != nil {
		t.Fatalf("transition with tracking: %v", err)
	}
	if result.Order.TrackingNumber != "TRK123" {
		t.Fatalf("trackingNumber = %q, want TRK123", result.Order.TrackingNumber)
	}
	if result.Order.ShippedAt == nil {
		t.Fatal("expected shippedAt to be set")
	}
}

func TestTransitionShippedAcceptsPriorTracking(t *testing.T) {
	t.Parallel()

	order := pendingOrder()
	order.Status = StatusPreparing
	order.TrackingNumber = "TRK-EARLY"

	result, err := Transition(order, StatusShipped, TransitionPayload{}, nil)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if result.Order.TrackingNumber != "TRK-EARLY" {
		t.Fatalf("trackingNumber = %q, want TRK-EARLY", result.Order.TrackingNumber)
	}
}

func TestTransitionMergesPayload(t *testing.T) {
	t.Parallel()

	estimated := time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC)
	order := pendingOrder()
	order.Status = StatusConfirmed

	result, err := Transition(order, StatusPreparing, TransitionPayload{
		SellerNotes:       "packed in jute bags",
		EstimatedDelivery: &estimated,
	}, nil)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if result.Order.SellerNotes != "packed in jute bags" {
		t.Fatalf("sellerNotes = %q", result.Order.SellerNotes)
	}
	if result.Order.EstimatedDelivery == nil || !result.Order.EstimatedDelivery.Equal(estimated) {
		t.Fatalf("estimatedDelivery = %v, want %v", result.Order.EstimatedDelivery, estimated)
	}
}

func TestTransitionReleaseBranches(t *testing.T) {
	t.Parallel()

	reject, err := Transition(pendingOrder(), StatusRejected, TransitionPayload{}, nil)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if !reject.ReleaseInventory {
		t.Fatal("reject must release inventory")
	}

	confirmed := pendingOrder()
	confirmed.Status = StatusConfirmed
	cancel, err := Transition(confirmed, StatusCancelled, TransitionPayload{}, nil)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !cancel.ReleaseInventory {
		t.Fatal("cancel must release inventory")
	}
	if cancel.Order.CancelledAt == nil {
		t.Fatal("expected cancelledAt to be set")
	}
}

func TestTerminalStatesRefuseAllTransitions(t *testing.T) {
	t.Parallel()

	for _, terminal := range []Status{StatusDelivered, StatusRejected, StatusCancelled} {
		order := pendingOrder()
		order.Status = terminal
		for _, target := range allStatuses {
			if target == terminal {
				continue
			}
			_, err := Transition(order, target, TransitionPayload{}, nil)
			if !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("%s -> %s error = %v, want %v", terminal, target, err, ErrIllegalTransition)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	for _, status := range allStatuses {
		got, err := ParseStatus(" " + string(status) + " ")
		if err != nil {
			t.Fatalf("parse %s: %v", status, err)
		}
		if got != status {
			t.Fatalf("parse %s = %s", status, got)
		}
	}
	if _, err := ParseStatus("teleported"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("error = %v, want %v", err, ErrInvalidStatus)
	}
}
