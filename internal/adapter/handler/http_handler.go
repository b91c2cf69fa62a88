package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stockwell-io/allocator/internal/core/domain"
	"github.com/stockwell-io/allocator/internal/core/service"
	"github.com/stockwell-io/allocator/internal/port"
)

type HTTPHandler struct {
	bus  *service.Bus
	uowf port.UnitOfWorkFactory
}

type AddBatchHTTPRequest struct {
	Ref string     `json:"ref"`
	Sku string     `json:"sku"`
	Qty int        `json:"qty"`
	ETA *time.Time `json:"eta,omitempty"`
}

type AllocateHTTPRequest struct {
	OrderID string `json:"order_id"`
	Sku     string `json:"sku"`
	Qty     int    `json:"qty"`
}

type AllocateHTTPResponse struct {
	Batchref string `json:"batchref"`
}

type ChangeQuantityHTTPRequest struct {
	Ref string `json:"ref"`
	Qty int    `json:"qty"`
}

type MessageHTTPResponse struct {
	Message string `json:"message"`
}

func NewHTTPHandler(bus *service.Bus, uowf port.UnitOfWorkFactory) *HTTPHandler {
	return &HTTPHandler{bus: bus, uowf: uowf}
}

func (h *HTTPHandler) AddBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AddBatchHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageHTTPResponse{Message: "invalid request body"})
		return
	}

	if req.Ref == "" || req.Sku == "" || req.Qty <= 0 {
		writeJSON(w, http.StatusBadRequest, MessageHTTPResponse{Message: "missing required fields"})
		return
	}

	_, err := h.bus.Handle(r.Context(), domain.BatchCreated{
		Ref: req.Ref,
		Sku: req.Sku,
		Qty: req.Qty,
		ETA: req.ETA,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			writeJSON(w, http.StatusConflict, MessageHTTPResponse{Message: "concurrent update, retry"})
			return
		}
		writeJSON(w, http.StatusBadRequest, MessageHTTPResponse{Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, MessageHTTPResponse{Message: "batch created"})
}

func (h *HTTPHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AllocateHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageHTTPResponse{Message: "invalid request body"})
		return
	}

	if req.OrderID == "" || req.Sku == "" || req.Qty <= 0 {
		writeJSON(w, http.StatusBadRequest, MessageHTTPResponse{Message: "missing required fields"})
		return
	}

	results, err := h.bus.Handle(r.Context(), domain.AllocationRequired{
		OrderID: req.OrderID,
		Sku:     req.Sku,
		Qty:     req.Qty,
	})
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"

		var invalidSku domain.InvalidSkuError
		var outOfStock domain.OutOfStockError
		var alreadyAllocated domain.LineAlreadyAllocatedError

		if errors.As(err, &invalidSku) {
			status = http.StatusNotFound
			message = invalidSku.Error()
		} else if errors.As(err, &outOfStock) {
			status = http.StatusBadRequest
			message = outOfStock.Error()
		} else if errors.As(err, &alreadyAllocated) {
			status = http.StatusBadRequest
			message = alreadyAllocated.Error()
		} else if errors.Is(err, domain.ErrConcurrencyConflict) {
			status = http.StatusConflict
			message = "concurrent update, retry"
		}

		writeJSON(w, status, MessageHTTPResponse{Message: message})
		return
	}

	var batchref string
	if len(results) > 0 {
		batchref, _ = results[0].(string)
	}
	if batchref == "" {
		writeJSON(w, http.StatusInternalServerError, MessageHTTPResponse{Message: "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, AllocateHTTPResponse{Batchref: batchref})
}

func (h *HTTPHandler) ChangeBatchQuantity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChangeQuantityHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageHTTPResponse{Message: "invalid request body"})
		return
	}

	if req.Ref == "" || req.Qty < 0 {
		writeJSON(w, http.StatusBadRequest, MessageHTTPResponse{Message: "missing required fields"})
		return
	}

	_, err := h.bus.Handle(r.Context(), domain.BatchQuantityChanged{
		Ref: req.Ref,
		Qty: req.Qty,
	})
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"

		var unknownBatch domain.UnknownBatchError
		if errors.As(err, &unknownBatch) {
			status = http.StatusNotFound
			message = unknownBatch.Error()
		} else if errors.Is(err, domain.ErrConcurrencyConflict) {
			status = http.StatusConflict
			message = "concurrent update, retry"
		}

		writeJSON(w, status, MessageHTTPResponse{Message: message})
		return
	}

	writeJSON(w, http.StatusOK, MessageHTTPResponse{Message: "quantity updated"})
}

func (h *HTTPHandler) GetAllocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	orderID := strings.TrimPrefix(r.URL.Path, "/allocations/")
	if orderID == "" || strings.Contains(orderID, "/") {
		writeJSON(w, http.StatusNotFound, MessageHTTPResponse{Message: "order not found"})
		return
	}

	views, err := service.Allocations(r.Context(), h.uowf, orderID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, MessageHTTPResponse{Message: "internal error"})
		return
	}
	if len(views) == 0 {
		writeJSON(w, http.StatusNotFound, MessageHTTPResponse{Message: "order not found"})
		return
	}

	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
