// Package errors provides structured error handling for granary services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeInvalidRequest represents a malformed or unparsable request.
	CodeInvalidRequest Code = "INVALID_REQUEST"

	// Risk classification errors
	CodeRiskInvalidMeasurement Code = "RISK_INVALID_MEASUREMENT"

	// Batch errors
	CodeBatchNotFound       Code = "MARKET_BATCH_NOT_FOUND"
	CodeBatchNotListed      Code = "MARKET_BATCH_NOT_LISTED"
	CodeBatchOpenOrders     Code = "MARKET_BATCH_HAS_OPEN_ORDERS"
	CodeBatchSellerRequired Code = "MARKET_BATCH_SELLER_REQUIRED"
	CodeBatchSupplierEmpty  Code = "MARKET_BATCH_SUPPLIER_EMPTY"
	CodeInvalidPrice        Code = "MARKET_INVALID_PRICE"
	CodeInvalidQuantity     Code = "MARKET_INVALID_QUANTITY"

	// Order errors
	CodeOrderNotFound          Code = "MARKET_ORDER_NOT_FOUND"
	CodeInsufficientQuantity   Code = "MARKET_INSUFFICIENT_QUANTITY"
	CodeIllegalTransition      Code = "MARKET_ILLEGAL_TRANSITION"
	CodeTrackingNumberRequired Code = "MARKET_TRACKING_NUMBER_REQUIRED"
	CodeInvalidAddress         Code = "MARKET_INVALID_ADDRESS"
	CodeInvalidStatus          Code = "MARKET_INVALID_STATUS"
	CodeBuyerRequired          Code = "MARKET_BUYER_REQUIRED"
	CodeUnauthorized           Code = "MARKET_UNAUTHORIZED"
	CodeOrderConflict          Code = "MARKET_ORDER_CONFLICT"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, malformed input
	case CodeInvalidRequest,
		CodeRiskInvalidMeasurement,
		CodeBatchSellerRequired,
		CodeBatchSupplierEmpty,
		CodeInvalidPrice,
		CodeInvalidQuantity,
		CodeInvalidAddress,
		CodeInvalidStatus,
		CodeBuyerRequired,
		CodeTrackingNumberRequired:
		return http.StatusBadRequest

	// Not found - missing records
	case CodeBatchNotFound, CodeOrderNotFound:
		return http.StatusNotFound

	// Forbidden - actor is not allowed to perform the operation
	case CodeUnauthorized:
		return http.StatusForbidden

	// Conflict - state does not allow the operation
	case CodeBatchNotListed,
		CodeBatchOpenOrders,
		CodeInsufficientQuantity,
		CodeIllegalTransition,
		CodeOrderConflict:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
