package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unclebandit/xeno-crm-backend/internal/model"
	"github.com/unclebandit/xeno-crm-backend/internal/segment"
)

var aiNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestTranslator(baseURL string) *Translator {
	return NewTranslator("test-key", baseURL, time.Second, zap.NewNop())
}

func inferenceServer(t *testing.T, completion string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"generated_text": ` + completion + `}]`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTranslateSegmentFromCompletion(t *testing.T) {
	srv := inferenceServer(t, `"Filter: {\"total_spend\": {\"gt\": 5000}}"`)
	tr := newTestTranslator(srv.URL + "/")

	p := tr.TranslateSegment(context.Background(), "customers who spent over 5000", aiNow)
	require.Len(t, p.Clauses, 1)
	assert.Equal(t, segment.FieldTotalSpend, p.Clauses[0].Field)
	assert.Equal(t, segment.OpGT, p.Clauses[0].Op)
	assert.Equal(t, 5000.0, p.Clauses[0].Value)
}

func TestTranslateSegmentNormalizesDatePlaceholder(t *testing.T) {
	srv := inferenceServer(t, `"{\"last_visit\": {\"lt\": \"DATE_30_DAYS_AGO\"}}"`)
	tr := newTestTranslator(srv.URL + "/")

	p := tr.TranslateSegment(context.Background(), "people who haven't visited in 30 days", aiNow)
	require.Len(t, p.Clauses, 1)
	assert.Equal(t, segment.FieldLastVisit, p.Clauses[0].Field)
	assert.Equal(t, segment.OpLT, p.Clauses[0].Op)
	assert.True(t, p.Clauses[0].Time.Equal(aiNow.AddDate(0, 0, -30)))
}

func TestTranslateSegmentServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	tr := newTestTranslator(srv.URL + "/")

	p := tr.TranslateSegment(context.Background(), "customers who spent over 5000", aiNow)
	require.Len(t, p.Clauses, 1)
	assert.Equal(t, segment.FieldTotalSpend, p.Clauses[0].Field)
}

func TestTranslateSegmentUnreachableFallsBack(t *testing.T) {
	tr := newTestTranslator("http://127.0.0.1:1/")

	// Never errors: the keyword extractor takes over.
	p := tr.TranslateSegment(context.Background(), "customers with less than 3 visits", aiNow)
	require.Len(t, p.Clauses, 1)
	assert.Equal(t, segment.FieldVisitCount, p.Clauses[0].Field)
	assert.Equal(t, segment.OpLT, p.Clauses[0].Op)
	assert.Equal(t, 3.0, p.Clauses[0].Value)
}

func TestTranslateSegmentGarbageCompletionFallsBack(t *testing.T) {
	srv := inferenceServer(t, `"I am sorry, I cannot help with that."`)
	tr := newTestTranslator(srv.URL + "/")

	p := tr.TranslateSegment(context.Background(), "customers who spent over 2000", aiNow)
	require.Len(t, p.Clauses, 1)
	assert.Equal(t, 2000.0, p.Clauses[0].Value)
}

func TestFallbackKeywords(t *testing.T) {
	p := Fallback("customers who spent over 5000", aiNow)
	require.Len(t, p.Clauses, 1)
	assert.Equal(t, segment.FieldTotalSpend, p.Clauses[0].Field)
	assert.Equal(t, segment.OpGT, p.Clauses[0].Op)

	p = Fallback("customers who haven't visited in 30 days", aiNow)
	require.Len(t, p.Clauses, 1)
	assert.Equal(t, segment.FieldLastVisit, p.Clauses[0].Field)
	assert.Equal(t, segment.OpLT, p.Clauses[0].Op)
	assert.True(t, p.Clauses[0].Time.Equal(aiNow.Add(-30*24*time.Hour)))

	p = Fallback("customers with less than 5 visits", aiNow)
	require.Len(t, p.Clauses, 1)
	assert.Equal(t, segment.FieldVisitCount, p.Clauses[0].Field)
}

// Each keyword group binds its own number, not the first numeral in the text.
func TestFallbackMultiClauseBindsNearestNumbers(t *testing.T) {
	p := Fallback("customers who spent over 5000 and less than 3 visits", aiNow)
	require.Len(t, p.Clauses, 2)

	assert.Equal(t, segment.FieldTotalSpend, p.Clauses[0].Field)
	assert.Equal(t, segment.OpGT, p.Clauses[0].Op)
	assert.Equal(t, 5000.0, p.Clauses[0].Value)

	assert.Equal(t, segment.FieldVisitCount, p.Clauses[1].Field)
	assert.Equal(t, segment.OpLT, p.Clauses[1].Op)
	assert.Equal(t, 3.0, p.Clauses[1].Value)
}

func TestFallbackSpendAndInactivityClauses(t *testing.T) {
	p := Fallback("spent over 2000 but haven't visited in 90 days", aiNow)
	require.Len(t, p.Clauses, 2)
	assert.Equal(t, 2000.0, p.Clauses[0].Value)
	assert.Equal(t, segment.FieldLastVisit, p.Clauses[1].Field)
	assert.True(t, p.Clauses[1].Time.Equal(aiNow.Add(-90*24*time.Hour)))
}

func TestFallbackUnrecognizedTextIsEmpty(t *testing.T) {
	p := Fallback("all my favorite customers", aiNow)
	assert.True(t, p.Empty())

	// Empty predicate matches everyone rather than crashing or erroring.
	assert.True(t, p.Match(&model.Customer{}))
}

func TestSuggestMessagesParsesLines(t *testing.T) {
	srv := inferenceServer(t, `"1. Hi {name}, flat 20% off!\n2. {name}, we miss you!\n3. Come back {name}, gift inside!"`)
	tr := newTestTranslator(srv.URL + "/")

	msgs := tr.SuggestMessages(context.Background(), "win back customers", "inactive users")
	require.Len(t, msgs, 3)
	assert.Equal(t, "Hi {name}, flat 20% off!", msgs[0])
	assert.Equal(t, "{name}, we miss you!", msgs[1])
}

func TestSuggestMessagesFallsBack(t *testing.T) {
	tr := newTestTranslator("http://127.0.0.1:1/")

	msgs := tr.SuggestMessages(context.Background(), "win back customers", "")
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.Contains(t, m, "{name}")
	}
}

func TestSummarizeCampaign(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"summary_text": "The campaign performed well."}`))
	}))
	defer srv.Close()
	tr := newTestTranslator(srv.URL + "/")

	out := tr.SummarizeCampaign(context.Background(), model.CampaignStats{Total: 10, Sent: 9, Failed: 1})
	assert.Equal(t, "The campaign performed well.", out)
}

func TestSummarizeCampaignFallsBack(t *testing.T) {
	tr := newTestTranslator("http://127.0.0.1:1/")

	out := tr.SummarizeCampaign(context.Background(), model.CampaignStats{Total: 10, Sent: 9, Failed: 1})
	assert.Contains(t, out, "10 customers")
	assert.Contains(t, out, "90.0%")
}
