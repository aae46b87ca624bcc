package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/granarylabs/granary/internal/risk"
	"github.com/granarylabs/granary/internal/services/market/domain"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type classifyResponse struct {
	Level    float64       `json:"level"`
	Category risk.Category `json:"category"`
}

type measurementsPayload struct {
	Moisture      float64 `json:"moisture"`
	BrokenKernels float64 `json:"brokenKernels"`
	ForeignMatter float64 `json:"foreignMatter"`
	Aflatoxin     float64 `json:"aflatoxin"`
}

type createBatchRequest struct {
	SellerID     string              `json:"sellerId"`
	Supplier     string              `json:"supplier"`
	Measurements measurementsPayload `json:"measurements"`
}

type relistBatchRequest struct {
	QuantityKg decimal.Decimal `json:"quantityKg"`
	PricePerKg decimal.Decimal `json:"pricePerKg"`
}

type batchResponse struct {
	ID                string              `json:"id"`
	SellerID          string              `json:"sellerId"`
	Supplier          string              `json:"supplier"`
	Measurements      measurementsPayload `json:"measurements"`
	IsOnMarket        bool                `json:"isOnMarket"`
	PricePerKg        decimal.Decimal     `json:"pricePerKg"`
	AvailableQuantity decimal.Decimal     `json:"availableQuantityKg"`
	ListedQuantity    decimal.Decimal     `json:"listedQuantityKg"`
	ListedAt          *time.Time          `json:"listedAt,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

func toBatchResponse(batch domain.Batch) batchResponse {
	return batchResponse{
		ID:       batch.ID,
		SellerID: batch.SellerID,
		Supplier: batch.Supplier,
		Measurements: measurementsPayload{
			Moisture:      batch.Measurements.Moisture,
			BrokenKernels: batch.Measurements.BrokenKernels,
			ForeignMatter: batch.Measurements.ForeignMatter,
			Aflatoxin:     batch.Measurements.Aflatoxin,
		},
		IsOnMarket:        batch.IsOnMarket,
		PricePerKg:        batch.PricePerKg,
		AvailableQuantity: batch.AvailableQuantity,
		ListedQuantity:    batch.ListedQuantity,
		ListedAt:          batch.ListedAt,
		CreatedAt:         batch.CreatedAt,
		UpdatedAt:         batch.UpdatedAt,
	}
}

type marketItemResponse struct {
	batchResponse
	RiskCategory risk.Category `json:"riskCategory"`
}

type marketPageResponse struct {
	Items      []marketItemResponse `json:"items"`
	Total      int                  `json:"total"`
	TotalPages int                  `json:"totalPages"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
}

type addressPayload struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

type placeOrderRequest struct {
	BatchID         string          `json:"batchId"`
	BuyerID         string          `json:"buyerId"`
	BuyerEmail      string          `json:"buyerEmail"`
	BuyerContact    string          `json:"buyerContact"`
	QuantityKg      decimal.Decimal `json:"quantityKg"`
	DeliveryAddress addressPayload  `json:"deliveryAddress"`
	Notes           string          `json:"notes"`
}

type updateStatusRequest struct {
	Status            string     `json:"status"`
	TrackingNumber    string     `json:"trackingNumber"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
	SellerNotes       string     `json:"sellerNotes"`
}

type orderResponse struct {
	ID           string `json:"id"`
	BatchID      string `json:"batchId"`
	SellerID     string `json:"sellerId"`
	BuyerID      string `json:"buyerId"`
	BuyerEmail   string `json:"buyerEmail,omitempty"`
	BuyerContact string `json:"buyerContact,omitempty"`

	QuantityKg  decimal.Decimal `json:"quantityKg"`
	PricePerKg  decimal.Decimal `json:"pricePerKg"`
	TotalAmount decimal.Decimal `json:"totalAmount"`

	Status            domain.Status  `json:"status"`
	DeliveryAddress   addressPayload `json:"deliveryAddress"`
	TrackingNumber    string         `json:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time     `json:"estimatedDelivery,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	SellerNotes       string         `json:"sellerNotes,omitempty"`

	OrderDate   time.Time  `json:"orderDate"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	PreparingAt *time.Time `json:"preparingAt,omitempty"`
	ShippedAt   *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type ordersResponse struct {
	Orders []orderResponse `json:"orders"`
}

func toOrderResponse(order domain.Order) orderResponse {
	return orderResponse{
		ID:           order.ID,
		BatchID:      order.BatchID,
		SellerID:     order.SellerID,
		BuyerID:      order.BuyerID,
		BuyerEmail:   order.BuyerEmail,
		BuyerContact: order.BuyerContact,

		QuantityKg:  order.QuantityOrdered,
		PricePerKg:  order.PricePerKg,
		TotalAmount: order.TotalAmount,

		Status: order.Status,
		DeliveryAddress: addressPayload{
			Street:     order.DeliveryAddress.Street,
			City:       order.DeliveryAddress.City,
			State:      order.DeliveryAddress.State,
			PostalCode: order.DeliveryAddress.PostalCode,
			Country:    order.DeliveryAddress.Country,
		},
		TrackingNumber:    order.TrackingNumber,
		EstimatedDelivery: order.EstimatedDelivery,
		Notes:             order.Notes,
		SellerNotes:       order.SellerNotes,

		OrderDate:   order.OrderDate,
		ConfirmedAt: order.ConfirmedAt,
		PreparingAt: order.PreparingAt,
		ShippedAt:   order.ShippedAt,
		DeliveredAt: order.DeliveredAt,
		RejectedAt:  order.RejectedAt,
		CancelledAt: order.CancelledAt,
		UpdatedAt:   order.UpdatedAt,
	}
}
