package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	base := New(CodeInsufficientQuantity, "not enough stock")
	other := New(CodeInsufficientQuantity, "different message, same code")
	if !errors.Is(other, base) {
		t.Fatal("expected errors with equal codes to match")
	}
	mismatch := New(CodeOrderNotFound, "missing order")
	if errors.Is(mismatch, base) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk on fire")
	wrapped := Wrap(CodeUnknown, "storage failure", cause)
	if !errors.Is(wrapped, cause) {
		t.Fatal("expected wrapped cause to be found in chain")
	}
}

func TestCodeOfTraversesChain(t *testing.T) {
	t.Parallel()

	inner := New(CodeIllegalTransition, "cannot skip states")
	outer := fmt.Errorf("update order: %w", inner)
	if got := CodeOf(outer); got != CodeIllegalTransition {
		t.Fatalf("code = %q, want %q", got, CodeIllegalTransition)
	}
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code Code
		want int
	}{
		{CodeInvalidQuantity, http.StatusBadRequest},
		{CodeInvalidAddress, http.StatusBadRequest},
		{CodeRiskInvalidMeasurement, http.StatusBadRequest},
		{CodeBatchNotFound, http.StatusNotFound},
		{CodeOrderNotFound, http.StatusNotFound},
		{CodeUnauthorized, http.StatusForbidden},
		{CodeInsufficientQuantity, http.StatusConflict},
		{CodeIllegalTransition, http.StatusConflict},
		{CodeOrderConflict, http.StatusConflict},
		{CodeBatchOpenOrders, http.StatusConflict},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("%s status = %d, want %d", tc.code, got, tc.want)
		}
	}
}
