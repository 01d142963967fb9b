package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/xeno-crm-backend/internal/errors"
	"github.com/unclebandit/xeno-crm-backend/internal/model"
	"github.com/unclebandit/xeno-crm-backend/internal/service"
)

type OrderHandler struct {
	Service *service.OrderService
	Log     *zap.Logger
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	customerID, _ := strconv.Atoi(r.URL.Query().Get("customer_id"))

	orders, pagination, err := h.Service.List(customerID, page, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"data":       orders,
		"pagination": pagination,
	})
}

type orderBody struct {
	CustomerID int        `json:"customer_id"`
	Amount     float64    `json:"amount"`
	OrderDate  *time.Time `json:"order_date"`
	Status     string     `json:"status"`
}

func (b orderBody) toModel() model.Order {
	o := model.Order{
		CustomerID: b.CustomerID,
		Amount:     b.Amount,
		Status:     b.Status,
	}
	if b.OrderDate != nil {
		o.OrderDate = *b.OrderDate
	}
	return o
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body orderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}

	o := body.toModel()
	if err := h.Service.Create(&o); err != nil {
		var notFound *appErrors.ErrCustomerNotFound
		if errors.As(err, &notFound) {
			respondError(w, http.StatusBadRequest, "Customer not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondData(w, http.StatusCreated, o)
}

func (h *OrderHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Orders []orderBody `json:"orders"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Orders == nil {
		respondError(w, http.StatusBadRequest, "Expected array of orders")
		return
	}

	orders := make([]model.Order, len(body.Orders))
	for i, b := range body.Orders {
		orders[i] = b.toModel()
	}

	inserted, err := h.Service.BulkIngest(orders)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"inserted": inserted,
	})
}
