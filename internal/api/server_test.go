package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadhunter/internal/config"
	"github.com/sells-group/leadhunter/internal/discovery"
	"github.com/sells-group/leadhunter/internal/export"
	"github.com/sells-group/leadhunter/internal/lifecycle"
	"github.com/sells-group/leadhunter/internal/mapper"
	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/resilience"
	"github.com/sells-group/leadhunter/internal/store"
)

var apiNow = time.Date(2024, 6, 2, 9, 30, 0, 0, time.UTC)

func intPtr(n int) *int { return &n }

type fakeAuditor struct {
	audit *model.QualityAudit
	err   error
	urls  []string
}

func (f *fakeAuditor) Audit(_ context.Context, url string) (*model.QualityAudit, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	a := f.audit.Clone()
	a.URL = url
	return a, nil
}

// poorSite is slow, unsecured and not mobile friendly.
func poorSite() *model.QualityAudit {
	return &model.QualityAudit{
		PerformanceScore: intPtr(20),
		SEOScore:         intPtr(40),
		AuditedAt:        apiNow,
	}
}

type fakeScanner struct {
	places   discovery.PlacesRequest
	registry discovery.RegistryRequest
	ids      []string
	err      error
}

func (f *fakeScanner) Places(_ context.Context, req discovery.PlacesRequest) (*discovery.Result, error) {
	f.places = req
	return &discovery.Result{Found: 3, Inserted: 2}, f.err
}

func (f *fakeScanner) Registry(_ context.Context, req discovery.RegistryRequest) (*discovery.Result, error) {
	f.registry = req
	return &discovery.Result{Found: 5, Inserted: 5}, f.err
}

func (f *fakeScanner) AuditBatch(_ context.Context, ids []string) (*discovery.Result, error) {
	f.ids = ids
	return &discovery.Result{Found: len(ids), Audited: len(ids)}, f.err
}

type testEnv struct {
	srv     *httptest.Server
	tracker *lifecycle.Tracker
}

func newEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	clock := func() time.Time { return apiNow }
	tracker := lifecycle.New(store.NewMemory(), lifecycle.WithClock(clock))
	opts = append([]Option{
		WithClock(clock),
		WithMapper(mapper.New(mapper.WithClock(clock))),
	}, opts...)
	srv := httptest.NewServer(New(tracker, opts...).Routes())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, tracker: tracker}
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, response) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			rd = strings.NewReader(s)
		} else {
			raw, err := json.Marshal(body)
			require.NoError(t, err)
			rd = bytes.NewReader(raw)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var out response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func decodeData[T any](t *testing.T, r response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Data, &v))
	return v
}

// lead mirrors the JSON shape of a business.
type lead struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Website       *string `json:"website"`
	Status        string  `json:"status"`
	ProspectScore int     `json:"prospect_score"`
	Priority      string  `json:"priority"`
	HasWebsite    bool    `json:"has_website"`
	Notes         []struct {
		Content string `json:"content"`
	} `json:"notes"`
	Audit *struct {
		URL          string `json:"url"`
		OverallScore int    `json:"overall_score"`
	} `json:"audit"`
	LastContactedAt *time.Time `json:"last_contacted_at"`
}

func (e *testEnv) create(t *testing.T, rec mapper.ManualRecord) lead {
	t.Helper()
	code, resp := e.do(t, http.MethodPost, "/leads", rec)
	require.Equal(t, http.StatusCreated, code, resp.Error)
	return decodeData[lead](t, resp)
}

func TestHealth(t *testing.T) {
	cfg := &config.Config{Google: config.GoogleConfig{Key: "AIzaSyKEY12345"}}
	env := newEnv(t, WithKeyStatus(cfg.KeyStatus()))

	code, resp := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)

	body := decodeData[struct {
		Status string                      `json:"status"`
		Keys   map[string]config.KeyStatus `json:"keys"`
	}](t, resp)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, config.KeyStatus{Configured: true, Preview: "AIzaSy********"}, body.Keys["google_places"])
	assert.False(t, body.Keys["sirene"].Configured)
}

func TestLeadLifecycle(t *testing.T) {
	env := newEnv(t)

	created := env.create(t, mapper.ManualRecord{Name: "Garage Martin", City: "Rezé"})
	assert.Equal(t, 95, created.ProspectScore)
	assert.Equal(t, "hot", created.Priority)
	assert.Equal(t, "new", created.Status)

	code, resp := env.do(t, http.MethodPatch, "/leads/"+created.ID+"/status", map[string]string{"status": "contacted"})
	require.Equal(t, http.StatusOK, code, resp.Error)
	updated := decodeData[lead](t, resp)
	assert.Equal(t, "contacted", updated.Status)
	require.NotNil(t, updated.LastContactedAt)
	assert.True(t, apiNow.Equal(*updated.LastContactedAt))

	code, resp = env.do(t, http.MethodPost, "/leads/"+created.ID+"/notes", map[string]string{"content": "  Rappeler lundi  "})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	assert.Equal(t, "Rappeler lundi", decodeData[model.Note](t, resp).Content)

	code, resp = env.do(t, http.MethodPatch, "/leads/"+created.ID+"/website", map[string]string{"website": "Garage-Martin.fr/"})
	require.Equal(t, http.StatusOK, code, resp.Error)
	withSite := decodeData[lead](t, resp)
	require.NotNil(t, withSite.Website)
	assert.Equal(t, "https://garage-martin.fr", *withSite.Website)
	assert.Equal(t, 50, withSite.ProspectScore)

	code, resp = env.do(t, http.MethodGet, "/leads/"+created.ID, nil)
	require.Equal(t, http.StatusOK, code)
	got := decodeData[lead](t, resp)
	require.Len(t, got.Notes, 1)
	assert.Equal(t, "Rappeler lundi", got.Notes[0].Content)

	code, _ = env.do(t, http.MethodDelete, "/leads/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, code)

	code, resp = env.do(t, http.MethodGet, "/leads/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "not found")
}

func TestLeadErrors(t *testing.T) {
	env := newEnv(t)
	created := env.create(t, mapper.ManualRecord{Name: "Fleurs et Sens", City: "Nantes"})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing name", http.MethodPost, "/leads", mapper.ManualRecord{City: "Nantes"}, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/leads", "{", http.StatusBadRequest},
		{"unknown status", http.MethodPatch, "/leads/" + created.ID + "/status", map[string]string{"status": "archived"}, http.StatusBadRequest},
		{"blank note", http.MethodPost, "/leads/" + created.ID + "/notes", map[string]string{"content": "   "}, http.StatusBadRequest},
		{"unknown lead status", http.MethodPatch, "/leads/nope/status", map[string]string{"status": "lost"}, http.StatusNotFound},
		{"unknown lead delete", http.MethodDelete, "/leads/nope", nil, http.StatusNotFound},
		{"bad phone", http.MethodPatch, "/leads/" + created.ID, map[string]string{"phone": "12345"}, http.StatusBadRequest},
		{"bad email", http.MethodPatch, "/leads/" + created.ID, map[string]string{"email": "contact@"}, http.StatusBadRequest},
		{"unknown sector", http.MethodPatch, "/leads/" + created.ID, map[string]string{"sector": "aerospace"}, http.StatusBadRequest},
		{"blank name", http.MethodPatch, "/leads/" + created.ID, map[string]string{"name": "  "}, http.StatusBadRequest},
		{"unknown lead edit", http.MethodPatch, "/leads/nope", map[string]string{"city": "Nantes"}, http.StatusNotFound},
		{"bad page", http.MethodGet, "/leads?page=0", nil, http.StatusBadRequest},
		{"bad score range", http.MethodGet, "/leads?min_score=80&max_score=20", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestUpdateLead(t *testing.T) {
	env := newEnv(t)
	created := env.create(t, mapper.ManualRecord{Name: "Fleurs et Sens", City: "Nantes", Phone: "02 40 11 22 33"})

	code, resp := env.do(t, http.MethodPatch, "/leads/"+created.ID+"/status", map[string]string{"status": "meeting"})
	require.Equal(t, http.StatusOK, code, resp.Error)

	code, resp = env.do(t, http.MethodPatch, "/leads/"+created.ID, map[string]any{
		"city":   "Rezé",
		"phone":  "+33 6 12 34 56 78",
		"email":  "bonjour@fleurs.fr",
		"sector": "retail",
	})
	require.Equal(t, http.StatusOK, code, resp.Error)

	var got struct {
		lead
		City   string  `json:"city"`
		Phone  *string `json:"phone"`
		Email  *string `json:"email"`
		Sector *string `json:"sector"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, "Fleurs et Sens", got.Name)
	assert.Equal(t, "Rezé", got.City)
	require.NotNil(t, got.Phone)
	assert.Equal(t, "+33 6 12 34 56 78", *got.Phone)
	require.NotNil(t, got.Email)
	assert.Equal(t, "bonjour@fleurs.fr", *got.Email)
	require.NotNil(t, got.Sector)
	assert.Equal(t, "retail", *got.Sector)
	assert.Equal(t, "meeting", got.Status)
	assert.Equal(t, 95, got.ProspectScore)

	code, resp = env.do(t, http.MethodPatch, "/leads/"+created.ID, map[string]string{"phone": "", "sector": ""})
	require.Equal(t, http.StatusOK, code, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Nil(t, got.Phone)
	assert.Nil(t, got.Sector)
}

func TestListLeads_FilterAndPaginate(t *testing.T) {
	env := newEnv(t)
	env.create(t, mapper.ManualRecord{Name: "Salon Léa", City: "Nantes", Sector: "beauty"})
	env.create(t, mapper.ManualRecord{Name: "Garage Martin", City: "Rezé", Website: "garage-martin.fr"})
	env.create(t, mapper.ManualRecord{Name: "Bistrot Léon", City: "Nantes", Sector: "restaurant"})

	code, resp := env.do(t, http.MethodGet, "/leads?city=Nantes&per_page=1", nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	page := decodeData[struct {
		Data       []lead `json:"data"`
		Total      int    `json:"total"`
		TotalPages int    `json:"total_pages"`
	}](t, resp)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Salon Léa", page.Data[0].Name)

	code, resp = env.do(t, http.MethodGet, "/leads?has_website=true&sector=all", nil)
	require.Equal(t, http.StatusOK, code)
	sites := decodeData[struct {
		Data []lead `json:"data"`
	}](t, resp)
	require.Len(t, sites.Data, 1)
	assert.Equal(t, "Garage Martin", sites.Data[0].Name)
}

func TestStats(t *testing.T) {
	env := newEnv(t)
	env.create(t, mapper.ManualRecord{Name: "Salon Léa", City: "Nantes", Sector: "beauty"})
	env.create(t, mapper.ManualRecord{Name: "Garage Martin", City: "Rezé", Website: "garage-martin.fr"})

	code, resp := env.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, code)
	stats := decodeData[struct {
		Total          int `json:"total"`
		WithoutWebsite int `json:"without_website"`
	}](t, resp)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.WithoutWebsite)
}

func TestAuditURL(t *testing.T) {
	auditor := &fakeAuditor{audit: poorSite()}
	env := newEnv(t, WithAuditor(auditor))

	code, resp := env.do(t, http.MethodPost, "/audit", map[string]string{"url": "Salon-Lea.fr"})
	require.Equal(t, http.StatusOK, code, resp.Error)
	res := decodeData[struct {
		ProspectScore int    `json:"prospect_score"`
		Priority      string `json:"priority"`
		NeedsRedesign bool   `json:"needs_redesign"`
		Audit         struct {
			URL string `json:"url"`
		} `json:"audit"`
	}](t, resp)
	assert.Equal(t, 100, res.ProspectScore)
	assert.Equal(t, "hot", res.Priority)
	assert.True(t, res.NeedsRedesign)
	assert.Equal(t, "https://salon-lea.fr", res.Audit.URL)

	code, _ = env.do(t, http.MethodPost, "/audit", map[string]string{"url": " "})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAuditURL_CircuitOpen(t *testing.T) {
	env := newEnv(t, WithAuditor(&fakeAuditor{err: resilience.ErrCircuitOpen}))

	code, resp := env.do(t, http.MethodPost, "/audit", map[string]string{"url": "salon-lea.fr"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, resp.Success)
}

func TestAuditLead(t *testing.T) {
	auditor := &fakeAuditor{audit: poorSite()}
	env := newEnv(t, WithAuditor(auditor))
	withSite := env.create(t, mapper.ManualRecord{Name: "Garage Martin", Website: "garage-martin.fr"})
	siteless := env.create(t, mapper.ManualRecord{Name: "Salon Léa"})

	code, resp := env.do(t, http.MethodPost, "/leads/"+withSite.ID+"/audit", nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	audited := decodeData[lead](t, resp)
	require.NotNil(t, audited.Audit)
	assert.Equal(t, "https://garage-martin.fr", audited.Audit.URL)
	assert.Equal(t, 30, audited.Audit.OverallScore)
	assert.Equal(t, 100, audited.ProspectScore)
	assert.Equal(t, []string{"https://garage-martin.fr"}, auditor.urls)

	code, resp = env.do(t, http.MethodPost, "/leads/"+siteless.ID+"/audit", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Error, "no website")
}

func TestUnconfiguredFeatures(t *testing.T) {
	env := newEnv(t)

	for _, path := range []string{"/audit", "/scan/places", "/scan/registry", "/leads/audit"} {
		code, resp := env.do(t, http.MethodPost, path, map[string]any{})
		assert.Equal(t, http.StatusServiceUnavailable, code, path)
		assert.Contains(t, resp.Error, "not configured", path)
	}
}

func TestScans(t *testing.T) {
	scanner := &fakeScanner{}
	env := newEnv(t, WithScanner(scanner))

	code, resp := env.do(t, http.MethodPost, "/scan/places", map[string]any{
		"query": "coiffeur", "location": "Nantes", "max_results": 40, "audit_websites": true,
	})
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, discovery.PlacesRequest{Query: "coiffeur", Location: "Nantes", MaxResults: 40, AuditWebsites: true}, scanner.places)
	assert.Equal(t, 2, decodeData[discovery.Result](t, resp).Inserted)

	code, resp = env.do(t, http.MethodPost, "/scan/registry", map[string]any{"postal_code": "44000", "discover_websites": true})
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, "44000", scanner.registry.PostalCode)
	assert.True(t, scanner.registry.DiscoverWebsites)
	assert.Equal(t, 5, decodeData[discovery.Result](t, resp).Found)

	code, resp = env.do(t, http.MethodPost, "/leads/audit", map[string]any{"ids": []string{"a", "b"}})
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, []string{"a", "b"}, scanner.ids)

	code, _ = env.do(t, http.MethodPost, "/leads/audit", map[string]any{"ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestScans_ValidationFromScanner(t *testing.T) {
	scanner := &fakeScanner{err: &model.ValidationError{Field: "query", Reason: "is required"}}
	env := newEnv(t, WithScanner(scanner))

	code, resp := env.do(t, http.MethodPost, "/scan/places", map[string]any{"location": "Nantes"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid query: is required", resp.Error)
}

func TestExportXLSX(t *testing.T) {
	env := newEnv(t)
	env.create(t, mapper.ManualRecord{Name: "Salon Léa", City: "Nantes", Sector: "beauty"})
	env.create(t, mapper.ManualRecord{Name: "Garage Martin", City: "Rezé"})

	resp, err := http.Get(env.srv.URL + "/export.xlsx?city=Nantes")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), export.Filename(apiNow))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	f, err := xlsx.OpenBinary(raw)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)
	require.Len(t, f.Sheets[0].Rows, 2)
	assert.Equal(t, "Salon Léa", f.Sheets[0].Rows[1].Cells[0].String())
}

func TestCORSPreflight(t *testing.T) {
	env := newEnv(t, WithCORSOrigins([]string{"https://crm.example.fr"}))

	req, err := http.NewRequest(http.MethodOptions, env.srv.URL+"/leads", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://crm.example.fr")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, "https://crm.example.fr", resp.Header.Get("Access-Control-Allow-Origin"))
}
