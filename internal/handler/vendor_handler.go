package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/xeno-crm-backend/internal/reconcile"
	"github.com/unclebandit/xeno-crm-backend/internal/vendor"
)

// VendorHandler exposes the simulated vendor's accept endpoint and the
// inbound delivery-receipt callback.
type VendorHandler struct {
	Simulator  *vendor.Simulator
	Reconciler *reconcile.Reconciler
	Log        *zap.Logger
}

func (h *VendorHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req vendor.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}

	resp, err := h.Simulator.Send(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, http.StatusOK, resp)
}

func (h *VendorHandler) DeliveryReceipt(w http.ResponseWriter, r *http.Request) {
	var rc vendor.Receipt
	if err := json.NewDecoder(r.Body).Decode(&rc); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}

	h.Log.Info("delivery receipt",
		zap.Int("message_id", rc.MessageID),
		zap.String("status", rc.Status))

	if err := h.Reconciler.ApplyReceipt(rc); err != nil {
		// Logged and left for the next event to repair; the vendor still
		// gets its acknowledgement.
		h.Log.Error("receipt reconciliation failed",
			zap.Int("message_id", rc.MessageID), zap.Error(err))
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Receipt processed",
	})
}
