package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/xeno-crm-backend/internal/ai"
	"github.com/unclebandit/xeno-crm-backend/internal/model"
)

type AIHandler struct {
	Translator *ai.Translator
	Log        *zap.Logger
}

// NaturalToRules converts free text into predicate rules. The translation
// never fails; a description nobody can parse comes back as an empty rule
// set that matches everyone.
func (h *AIHandler) NaturalToRules(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Query == "" {
		respondError(w, http.StatusBadRequest, "Query string is required")
		return
	}

	pred := h.Translator.TranslateSegment(r.Context(), body.Query, time.Now())
	respond(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"original_query": body.Query,
		"rules":          json.RawMessage(pred.Wire()),
	})
}

func (h *AIHandler) GenerateMessages(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Objective string `json:"objective"`
		Audience  string `json:"audience"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Objective == "" {
		respondError(w, http.StatusBadRequest, "Campaign objective is required")
		return
	}

	messages := h.Translator.SuggestMessages(r.Context(), body.Objective, body.Audience)
	respond(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"messages": messages,
	})
}

func (h *AIHandler) CampaignSummary(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Stats *model.CampaignStats `json:"stats"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Stats == nil {
		respondError(w, http.StatusBadRequest, "Campaign stats object is required")
		return
	}

	summary := h.Translator.SummarizeCampaign(r.Context(), *body.Stats)
	respond(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"summary": summary,
	})
}
