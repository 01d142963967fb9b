package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/xeno-crm-backend/internal/errors"
	"github.com/unclebandit/xeno-crm-backend/internal/middleware"
	"github.com/unclebandit/xeno-crm-backend/internal/service"
)

type CampaignHandler struct {
	Service *service.CampaignService
	Log     *zap.Logger
}

func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string          `json:"name"`
		Rules       json.RawMessage `json:"rules"`
		Message     string          `json:"message"`
		CreatedBy   string          `json:"created_by"`
		ScheduledAt *string         `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}

	createdBy := body.CreatedBy
	if claims := middleware.GetClaims(r.Context()); claims != nil {
		createdBy = claims.Email
	}

	in := service.CreateCampaignInput{
		Name:      body.Name,
		Rules:     body.Rules,
		Message:   body.Message,
		CreatedBy: createdBy,
	}
	if body.ScheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *body.ScheduledAt)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid scheduled_at")
			return
		}
		in.ScheduledAt = &t
	}

	campaign, err := h.Service.CreateCampaign(in)
	if err != nil {
		var empty *appErrors.ErrEmptyAudience
		if errors.As(err, &empty) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respond(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    campaign,
		"message": "Campaign created and delivery started",
	})
}

func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := h.Service.ListCampaigns(page, pageSize, status)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	details, err := h.Service.GetCampaignDetails(id)
	if err != nil {
		var notFound *appErrors.ErrCampaignNotFound
		if errors.As(err, &notFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondData(w, http.StatusOK, details)
}

func (h *CampaignHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	var body struct {
		CustomerID       int     `json:"customer_id"`
		OverrideTemplate *string `json:"override_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}

	rendered, err := h.Service.RenderPreview(id, body.CustomerID, body.OverrideTemplate)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"rendered_message": rendered,
		"customer_id":      body.CustomerID,
	})
}
