// Package api exposes the market service as a JSON HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/granarylabs/granary/internal/platform/errors"
	"github.com/granarylabs/granary/internal/risk"
	"github.com/granarylabs/granary/internal/services/market/domain"
	"github.com/granarylabs/granary/internal/services/market/service"
	"github.com/granarylabs/granary/internal/services/market/storage"
)

// actorHeader carries the acting user's ID. Authentication happens upstream;
// this layer treats the header as a trusted identity.
const actorHeader = "X-Actor-Id"

// Handler serves the market HTTP routes.
type Handler struct {
	ledger *service.Ledger
	logger *slog.Logger
}

// NewHandler creates the market HTTP handler.
func NewHandler(ledger *service.Ledger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ledger: ledger, logger: logger}
}

// Routes builds the route table with request-id and logging middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /v1/risk/classify", h.handleClassifyRisk)

	mux.HandleFunc("POST /v1/batches", h.handleCreateBatch)
	mux.HandleFunc("GET /v1/batches/{id}", h.handleGetBatch)
	mux.HandleFunc("POST /v1/batches/{id}/relist", h.handleRelistBatch)
	mux.HandleFunc("POST /v1/batches/{id}/delist", h.handleDelistBatch)
	mux.HandleFunc("GET /v1/market/batches", h.handleListMarket)

	mux.HandleFunc("POST /v1/orders", h.handlePlaceOrder)
	mux.HandleFunc("GET /v1/orders", h.handleListOrders)
	mux.HandleFunc("GET /v1/orders/{id}", h.handleGetOrder)
	mux.HandleFunc("PATCH /v1/orders/{id}/status", h.handleUpdateOrderStatus)

	return requestIDMiddleware(loggingMiddleware(h.logger, mux))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleClassifyRisk(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("level")
	level, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		h.writeError(w, r, apperrors.New(apperrors.CodeInvalidRequest, "level must be a number"))
		return
	}
	category, err := risk.Classify(level)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, classifyResponse{Level: level, Category: category})
}

func (h *Handler) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	batch, err := h.ledger.CreateBatch(r.Context(), domain.CreateBatchInput{
		SellerID: req.SellerID,
		Supplier: req.Supplier,
		Measurements: domain.Measurements{
			Moisture:      req.Measurements.Moisture,
			BrokenKernels: req.Measurements.BrokenKernels,
			ForeignMatter: req.Measurements.ForeignMatter,
			Aflatoxin:     req.Measurements.Aflatoxin,
		},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchResponse(batch))
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.ledger.GetBatch(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(batch))
}

func (h *Handler) handleRelistBatch(w http.ResponseWriter, r *http.Request) {
	var req relistBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	batch, err := h.ledger.RelistBatch(r.Context(), r.PathValue("id"), actorID(r), req.QuantityKg, req.PricePerKg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(batch))
}

func (h *Handler) handleDelistBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.ledger.DelistBatch(r.Context(), r.PathValue("id"), actorID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(batch))
}

func (h *Handler) handleListMarket(w http.ResponseWriter, r *http.Request) {
	query, err := parseMarketQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := h.ledger.ListMarketBatches(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := marketPageResponse{
		Items:      make([]marketItemResponse, 0, len(page.Items)),
		Total:      page.Total,
		TotalPages: page.TotalPages,
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	for _, item := range page.Items {
		resp.Items = append(resp.Items, marketItemResponse{
			batchResponse: toBatchResponse(item.Batch),
			RiskCategory:  item.RiskCategory,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.ledger.PlaceOrder(r.Context(), service.PlaceOrderInput{
		BatchID:      req.BatchID,
		BuyerID:      req.BuyerID,
		BuyerEmail:   req.BuyerEmail,
		BuyerContact: req.BuyerContact,
		Quantity:     req.QuantityKg,
		DeliveryAddress: domain.Address{
			Street:     req.DeliveryAddress.Street,
			City:       req.DeliveryAddress.City,
			State:      req.DeliveryAddress.State,
			PostalCode: req.DeliveryAddress.PostalCode,
			Country:    req.DeliveryAddress.Country,
		},
		Notes: req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.ledger.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	buyerID := strings.TrimSpace(r.URL.Query().Get("buyerId"))
	sellerID := strings.TrimSpace(r.URL.Query().Get("sellerId"))

	var orders []domain.Order
	var err error
	switch {
	case buyerID != "" && sellerID == "":
		orders, err = h.ledger.ListOrdersForBuyer(r.Context(), buyerID)
	case sellerID != "" && buyerID == "":
		orders, err = h.ledger.ListOrdersForSeller(r.Context(), sellerID)
	default:
		h.writeError(w, r, apperrors.New(apperrors.CodeInvalidRequest, "exactly one of buyerId or sellerId is required"))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		resp = append(resp, toOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, ordersResponse{Orders: resp})
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	target, err := domain.ParseStatus(req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.ledger.UpdateStatus(r.Context(), r.PathValue("id"), actorID(r), target, domain.TransitionPayload{
		TrackingNumber:    req.TrackingNumber,
		EstimatedDelivery: req.EstimatedDelivery,
		SellerNotes:       req.SellerNotes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func actorID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(actorHeader))
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidRequest, "request body is not valid JSON", err)
	}
	return nil
}

func parseMarketQuery(r *http.Request) (storage.MarketQuery, error) {
	values := r.URL.Query()
	query := storage.MarketQuery{
		Supplier: strings.TrimSpace(values.Get("supplier")),
		SortBy:   storage.MarketSortListedAt,
	}

	for name, dst := range map[string]**decimal.Decimal{
		"minPrice":    &query.MinPrice,
		"maxPrice":    &query.MaxPrice,
		"minQuantity": &query.MinQuantity,
	} {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return storage.MarketQuery{}, apperrors.New(apperrors.CodeInvalidRequest, name+" must be a decimal number")
		}
		*dst = &d
	}

	switch sortBy := strings.TrimSpace(values.Get("sortBy")); sortBy {
	case "", "listedAt":
	case "price":
		query.SortBy = storage.MarketSortPrice
	case "quantity":
		query.SortBy = storage.MarketSortQuantity
	default:
		return storage.MarketQuery{}, apperrors.New(apperrors.CodeInvalidRequest, "sortBy must be one of listedAt, price, quantity")
	}

	switch order := strings.TrimSpace(values.Get("order")); order {
	case "", "asc":
	case "desc":
		query.Descending = true
	default:
		return storage.MarketQuery{}, apperrors.New(apperrors.CodeInvalidRequest, "order must be asc or desc")
	}

	var err error
	query.Page, err = parsePositiveInt(values.Get("page"), 1)
	if err != nil {
		return storage.MarketQuery{}, apperrors.New(apperrors.CodeInvalidRequest, "page must be a positive integer")
	}
	query.PageSize, err = parsePositiveInt(values.Get("pageSize"), 20)
	if err != nil {
		return storage.MarketQuery{}, apperrors.New(apperrors.CodeInvalidRequest, "pageSize must be a positive integer")
	}
	return query, nil
}

func parsePositiveInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()

	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Code: string(code), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
