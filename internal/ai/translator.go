// internal/ai/translator.go
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/xeno-crm-backend/internal/model"
	"github.com/unclebandit/xeno-crm-backend/internal/segment"
)

const (
	segmentModel = "google/flan-t5-large"
	messageModel = "microsoft/DialoGPT-medium"
	summaryModel = "facebook/bart-large-cnn"
)

// Translator talks to the Hugging Face inference API. It is stateless;
// configuration is injected at construction and the zero global is avoided
// on purpose. The model is never required to be correct: every entry point
// degrades to a deterministic fallback and TranslateSegment never surfaces
// an error to its caller.
type Translator struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	log     *zap.Logger
}

func NewTranslator(apiKey, baseURL string, timeout time.Duration, log *zap.Logger) *Translator {
	return &Translator{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
		log:     log,
	}
}

const translatePrompt = `Convert this natural language to a customer filter JSON.

Examples:
- "customers who spent over 5000" -> {"total_spend": {"gt": 5000}}
- "people who haven't visited in 30 days" -> {"last_visit": {"lt": "DATE_30_DAYS_AGO"}}
- "customers with less than 3 visits" -> {"visit_count": {"lt": 3}}

Convert: "%s"

Filter (JSON only):`

// TranslateSegment turns free text into a predicate. Any failure, timeout or
// unparsable completion falls back to the keyword extractor; the result is
// always a usable predicate, possibly empty (matches everyone).
func (t *Translator) TranslateSegment(ctx context.Context, text string, now time.Time) *segment.Predicate {
	out, err := t.callModel(ctx, segmentModel, fmt.Sprintf(translatePrompt, text))
	if err != nil {
		t.log.Warn("AI conversion failed, using keyword fallback", zap.Error(err))
		return Fallback(text, now)
	}

	p := t.parsePredicate(out, now)
	if p == nil {
		return Fallback(text, now)
	}
	return p
}

func (t *Translator) parsePredicate(completion string, now time.Time) *segment.Predicate {
	start := strings.Index(completion, "{")
	end := strings.LastIndex(completion, "}")
	if start < 0 || end <= start {
		return nil
	}
	raw := completion[start : end+1]

	// Normalize Mongo-style tokens and relative-date placeholders the model
	// sometimes emits.
	raw = strings.ReplaceAll(raw, `"$`, `"`)
	raw = strings.ReplaceAll(raw, `"DATE_30_DAYS_AGO"`, strconv.Quote(now.AddDate(0, 0, -30).Format(time.RFC3339)))
	raw = strings.ReplaceAll(raw, `"DATE_90_DAYS_AGO"`, strconv.Quote(now.AddDate(0, 0, -90).Format(time.RFC3339)))

	p, err := segment.Parse(json.RawMessage(raw), now)
	if err != nil {
		t.log.Warn("AI completion did not parse as a predicate", zap.Error(err))
		return nil
	}
	return p
}

var numberPattern = regexp.MustCompile(`\d+(\.\d+)?`)

// Fallback is the deterministic keyword extractor. It never fails; an
// unrecognized description yields an empty predicate. Each recognized
// keyword group binds the number nearest to it, so multi-clause text like
// "spent over 5000 and less than 3 visits" keeps its values apart.
func Fallback(text string, now time.Time) *segment.Predicate {
	lower := strings.ToLower(text)
	p := &segment.Predicate{}

	if !numberPattern.MatchString(lower) {
		return p
	}

	if strings.Contains(lower, "spent") && strings.Contains(lower, "over") {
		if v, ok := nearestNumber(lower, strings.Index(lower, "over")); ok {
			p.Clauses = append(p.Clauses, segment.Clause{
				Field: segment.FieldTotalSpend, Op: segment.OpGT, Value: v,
			})
		}
	}
	if (strings.Contains(lower, "haven't") || strings.Contains(lower, "havent") || strings.Contains(lower, "not ")) &&
		strings.Contains(lower, "visit") && strings.Contains(lower, "day") {
		// "haven't visited in N days": more days ago means an earlier timestamp.
		if v, ok := nearestNumber(lower, strings.Index(lower, "day")); ok {
			p.Clauses = append(p.Clauses, segment.Clause{
				Field: segment.FieldLastVisit, Op: segment.OpLT,
				Time: now.Add(-time.Duration(v*86400) * time.Second),
			})
		}
	} else if strings.Contains(lower, "visit") && strings.Contains(lower, "less") {
		if v, ok := nearestNumber(lower, strings.Index(lower, "visit")); ok {
			p.Clauses = append(p.Clauses, segment.Clause{
				Field: segment.FieldVisitCount, Op: segment.OpLT, Value: v,
			})
		}
	}
	return p
}

// nearestNumber picks the numeral whose position is closest to anchor.
func nearestNumber(lower string, anchor int) (float64, bool) {
	locs := numberPattern.FindAllStringIndex(lower, -1)
	if len(locs) == 0 {
		return 0, false
	}
	best := locs[0]
	for _, loc := range locs[1:] {
		if abs(loc[0]-anchor) < abs(best[0]-anchor) {
			best = loc
		}
	}
	v, err := strconv.ParseFloat(lower[best[0]:best[1]], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

const messagesPrompt = `Create 3 marketing messages for a campaign.

Objective: %s
Audience: %s

Requirements:
- Personalized (use {name} placeholder)
- Include discount/offer
- Keep under 100 characters
- Professional tone

Messages:`

var numberingPattern = regexp.MustCompile(`^\d+\.?\s*`)

// SuggestMessages proposes up to three campaign templates for an objective.
func (t *Translator) SuggestMessages(ctx context.Context, objective, audience string) []string {
	if audience == "" {
		audience = "general audience"
	}
	out, err := t.callModel(ctx, messageModel, fmt.Sprintf(messagesPrompt, objective, audience))
	if err != nil {
		t.log.Warn("message generation failed, using canned suggestions", zap.Error(err))
		return fallbackMessages()
	}

	var messages []string
	for _, line := range strings.Split(out, "\n") {
		line = numberingPattern.ReplaceAllString(strings.TrimSpace(line), "")
		if line != "" {
			messages = append(messages, line)
		}
		if len(messages) == 3 {
			break
		}
	}
	if len(messages) == 0 {
		return fallbackMessages()
	}
	return messages
}

func fallbackMessages() []string {
	return []string{
		"Hi {name}, here's 10% off on your next order!",
		"Don't miss out {name}! Special offer just for you!",
		"Welcome back {name}! We've missed you - here's 15% off!",
	}
}

const summaryPrompt = `Summarize this campaign performance in 2-3 sentences:

Campaign Results:
- Total messages: %d
- Successfully delivered: %d
- Failed: %d
- Delivery rate: %.1f%%

Write a business-friendly summary:`

// SummarizeCampaign writes a short performance summary for a stats block.
func (t *Translator) SummarizeCampaign(ctx context.Context, stats model.CampaignStats) string {
	rate := deliveryRate(stats)
	out, err := t.callModel(ctx, summaryModel, fmt.Sprintf(summaryPrompt, stats.Total, stats.Sent, stats.Failed, rate))
	if err != nil || strings.TrimSpace(out) == "" {
		return fallbackSummary(stats)
	}
	return strings.TrimSpace(out)
}

func deliveryRate(stats model.CampaignStats) float64 {
	if stats.Total == 0 {
		return 0
	}
	return float64(stats.Sent) / float64(stats.Total) * 100
}

func fallbackSummary(stats model.CampaignStats) string {
	return fmt.Sprintf(
		"Your campaign reached %d customers with a %.1f%% delivery rate. %d messages were successfully delivered, showing strong engagement with your audience.",
		stats.Total, deliveryRate(stats), stats.Sent,
	)
}

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	MaxLength   int     `json:"max_length"`
	Temperature float64 `json:"temperature"`
	DoSample    bool    `json:"do_sample"`
}

func (t *Translator) callModel(ctx context.Context, m, prompt string) (string, error) {
	body, err := json.Marshal(inferenceRequest{
		Inputs: prompt,
		Parameters: inferenceParameters{
			MaxLength:   200,
			Temperature: 0.7,
			DoSample:    true,
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+m, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inference API returned %d", resp.StatusCode)
	}

	// The inference API answers either with a generation array or a summary
	// object depending on the model task.
	var generated []struct {
		GeneratedText string `json:"generated_text"`
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", err
	}
	if err := json.Unmarshal(buf.Bytes(), &generated); err == nil && len(generated) > 0 {
		return generated[0].GeneratedText, nil
	}

	var summary struct {
		SummaryText string `json:"summary_text"`
	}
	if err := json.Unmarshal(buf.Bytes(), &summary); err == nil && summary.SummaryText != "" {
		return summary.SummaryText, nil
	}
	return "", fmt.Errorf("unrecognized inference response")
}
