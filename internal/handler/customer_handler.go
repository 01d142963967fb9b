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

type CustomerHandler struct {
	Service *service.CustomerService
	Log     *zap.Logger
}

func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	customers, pagination, err := h.Service.List(page, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"data":       customers,
		"pagination": pagination,
	})
}

type customerBody struct {
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	TotalSpend float64    `json:"total_spend"`
	VisitCount int        `json:"visit_count"`
	LastVisit  *time.Time `json:"last_visit"`
}

func (b customerBody) toModel() model.Customer {
	c := model.Customer{
		Name:       b.Name,
		Email:      b.Email,
		Phone:      b.Phone,
		TotalSpend: b.TotalSpend,
		VisitCount: b.VisitCount,
	}
	if b.LastVisit != nil {
		c.LastVisit = *b.LastVisit
	}
	return c
}

func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body customerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if body.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	c := body.toModel()
	if err := h.Service.Create(&c); err != nil {
		var dup *appErrors.ErrDuplicateCustomer
		if errors.As(err, &dup) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondData(w, http.StatusCreated, c)
}

func (h *CustomerHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Customers []customerBody `json:"customers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Customers == nil {
		respondError(w, http.StatusBadRequest, "Expected array of customers")
		return
	}

	customers := make([]model.Customer, len(body.Customers))
	for i, b := range body.Customers {
		customers[i] = b.toModel()
	}

	inserted, skipped, err := h.Service.BulkIngest(customers)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"inserted": inserted,
		"skipped":  skipped,
	})
}

func (h *CustomerHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query json.RawMessage `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}

	count, err := h.Service.PreviewAudience(r.Context(), body.Query)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   count,
	})
}
