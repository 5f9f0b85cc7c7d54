package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/ZanzyTHEbar/karten-melder/internal/feedback"
	"github.com/ZanzyTHEbar/karten-melder/internal/monitoring"
	"github.com/ZanzyTHEbar/karten-melder/internal/plz"
	"github.com/ZanzyTHEbar/karten-melder/internal/privacy"
	"github.com/ZanzyTHEbar/karten-melder/internal/ranking"
	"github.com/ZanzyTHEbar/karten-melder/internal/ratelimit"
	"github.com/ZanzyTHEbar/karten-melder/internal/reports"
	"github.com/ZanzyTHEbar/karten-melder/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	clock   *clockwork.FakeClock
	repo    *database.Repository
	metrics *monitoring.Metrics
}

func newTestServer(t *testing.T, limits Limits) *testServer {
	t.Helper()

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	repo := database.NewRepository(db)
	metrics := monitoring.NewMetrics()
	input := security.NewSecurityMiddleware(security.DefaultSecurityConfig())

	postal, err := plz.NewService(repo, clock)
	require.NoError(t, err)

	rankingCache := ranking.NewRankingCache(time.Minute, clock, metrics)
	t.Cleanup(rankingCache.Close)
	rankings := ranking.NewService(repo, rankingCache, clock)

	limiter := ratelimit.NewRateLimiterWithClock(nil, ratelimit.DefaultConfig(), metrics, clock)
	t.Cleanup(limiter.Close)

	h := New(Deps{
		Reports:   reports.NewService(repo, postal, rankings, input, metrics, clock),
		Rankings:  rankings,
		Feedback:  feedback.NewService(repo, input, metrics, clock),
		Postal:    postal,
		Privacy:   privacy.NewService(repo, metrics, clock, 30),
		Sessions:  security.NewSessionManager(security.Credentials{Username: "admin-x", Password: "pass-x"}, "secret", time.Hour, clock),
		Snapshots: repo,
		Counter:   repo,
		Database:  db,
		Metrics:   metrics,
		Limiter:   limiter,
		Limits:    limits,
		Clock:     clock,
	})

	r := gin.New()
	h.Register(r)

	return &testServer{router: r, clock: clock, repo: repo, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()

	w := s.do(t, "POST", "/api/admin/login", map[string]string{"username": "admin-x", "password": "pass-x"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var session security.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	return session.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Limits{})

	w := s.do(t, "GET", "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["reports"])
	assert.Equal(t, false, body["redis"])

	require.Contains(t, body, "cache")
	assert.Contains(t, body["cache"], "total_items")
	require.Contains(t, body, "rate_limit")
	assert.Equal(t, false, body["rate_limit"].(map[string]any)["redis_enabled"])
	require.Contains(t, body, "database")
	assert.Contains(t, body["database"], "max_open_connections")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, Limits{})

	s.do(t, "POST", "/api/reports", map[string]any{"phone_number": "0176 1", "zip_code": "01067"}, "")

	w := s.do(t, "GET", "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "karten_melder_reports_created_total 1")
}

func TestSubmitReportFlow(t *testing.T) {
	s := newTestServer(t, Limits{})

	for i := 0; i < 2; i++ {
		w := s.do(t, "POST", "/api/reports", map[string]any{
			"phone_number": "0176 555",
			"zip_code":     "80331",
			"email":        "me@example.org",
			"nerv_score":   8,
		}, "")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		body := decode[map[string]any](t, w)
		report := body["report"].(map[string]any)
		assert.Equal(t, "München", report["city_name"])
		assert.NotContains(t, report, "email")
		assert.Equal(t, float64(i+1), body["stats"].(map[string]any)["count"])
	}

	w := s.do(t, "GET", "/api/rankings/cities?days=7&limit=5", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	cities := decode[CityRankingResponse](t, w)
	require.Len(t, cities.Cities, 1)
	assert.Equal(t, "München", cities.Cities[0].Name)
	assert.Equal(t, 2, cities.Cities[0].Count)

	w = s.do(t, "GET", "/api/rankings/phones/0176555", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[PhoneSummaryResponse](t, w)
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, "repeat_offender", summary.Tier.Key)
	assert.Equal(t, "high", summary.Level)

	w = s.do(t, "GET", "/api/rankings/phones/0176%20555/profile", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "München (80331)")

	w = s.do(t, "GET", "/api/rankings/phones/0000/profile", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, "GET", "/api/rankings/cities/m%C3%BCnchen/numbers", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["total"])
}

func TestSubmitReportErrors(t *testing.T) {
	s := newTestServer(t, Limits{})

	tests := []struct {
		name     string
		body     any
		status   int
		category errors.ErrorCategory
	}{
		{"missing phone", map[string]any{"zip_code": "01067"}, http.StatusBadRequest, errors.CategoryValidation},
		{"bad zip", map[string]any{"phone_number": "0176", "zip_code": "1"}, http.StatusBadRequest, errors.CategoryValidation},
		{"unknown zip without city", map[string]any{"phone_number": "0176", "zip_code": "99998"}, http.StatusBadRequest, errors.CategoryValidation},
		{"score out of range", map[string]any{"phone_number": "0176", "zip_code": "01067", "nerv_score": 11}, http.StatusBadRequest, errors.CategoryValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, "POST", "/api/reports", tt.body, "")
			assert.Equal(t, tt.status, w.Code)

			resp := decode[errors.ErrorResponse](t, w)
			assert.Equal(t, tt.category, resp.Category)
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		})
	}
}

func TestSubmitReportRateLimited(t *testing.T) {
	s := newTestServer(t, Limits{Submissions: ratelimit.PerMinute(1)})
	body := map[string]any{"phone_number": "0176", "zip_code": "01067"}

	assert.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/reports", body, "").Code)
	w := s.do(t, "POST", "/api/reports", body, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestPostalCodeLookup(t *testing.T) {
	s := newTestServer(t, Limits{})

	w := s.do(t, "GET", "/api/plz/50667", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, PostalCodeResponse{ZipCode: "50667", CityName: "Köln", Core: true}, decode[PostalCodeResponse](t, w))

	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/plz/12345", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/plz/abc", nil, "").Code)
}

func TestPublicReportIsRedacted(t *testing.T) {
	s := newTestServer(t, Limits{})

	report := database.NewReport("0176", "", "secret@example.org", "01067", "Dresden", "", 5, s.clock.Now())
	require.NoError(t, s.repo.InsertReport(context.Background(), report))

	w := s.do(t, "GET", "/api/reports/"+report.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret@example.org")

	token := s.login(t)
	w = s.do(t, "GET", "/api/admin/reports/"+report.ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "secret@example.org")

	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/reports/nope", nil, "").Code)
}

func TestFeedbackToggle(t *testing.T) {
	s := newTestServer(t, Limits{})
	token := s.login(t)

	w := s.do(t, "POST", "/api/feedback", map[string]string{"message": "Danke!"}, "")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, "PUT", "/api/admin/settings", map[string]bool{"feedback_enabled": false}, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, "GET", "/api/settings", nil, "")
	assert.JSONEq(t, `{"feedback_enabled":false}`, w.Body.String())

	w = s.do(t, "POST", "/api/feedback", map[string]string{"message": "Hallo?"}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode[errors.ErrorResponse](t, w).Code)

	w = s.do(t, "PUT", "/api/admin/settings", map[string]any{}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRequiresSession(t *testing.T) {
	s := newTestServer(t, Limits{})

	paths := []struct{ method, path string }{
		{"GET", "/api/admin/reports"},
		{"POST", "/api/admin/reports"},
		{"DELETE", "/api/admin/reports/x"},
		{"GET", "/api/admin/feedback"},
		{"GET", "/api/admin/export"},
		{"POST", "/api/admin/import"},
		{"POST", "/api/admin/cleanup"},
		{"GET", "/api/admin/plz"},
	}
	for _, p := range paths {
		w := s.do(t, p.method, p.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, p.method+" "+p.path)
	}

	w := s.do(t, "POST", "/api/admin/login", map[string]string{"username": "admin-x", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := s.login(t)
	s.clock.Advance(2 * time.Hour)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, "GET", "/api/admin/reports", nil, token).Code)
}

func TestAdminReportCRUD(t *testing.T) {
	s := newTestServer(t, Limits{})
	token := s.login(t)

	w := s.do(t, "POST", "/api/admin/reports", map[string]any{
		"phone_number": "0152 1",
		"city_name":    "Stuttgart",
		"zip_code":     "70173",
		"nerv_score":   "abc",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[database.Report](t, w)
	assert.Equal(t, 0, created.NervScore)
	assert.Equal(t, reports.AdminDescription, created.Description)

	w = s.do(t, "PUT", "/api/admin/reports/"+created.ID, map[string]any{"nerv_score": 15, "company_name": "Firma"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[database.Report](t, w)
	assert.Equal(t, 10, updated.NervScore)
	assert.Equal(t, "Firma", updated.CompanyName)
	assert.Equal(t, "Stuttgart", updated.CityName)

	w = s.do(t, "GET", "/api/admin/reports?search=firma&sort=score_desc", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["total"])

	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/admin/reports?sort=bogus", nil, token).Code)

	assert.Equal(t, http.StatusNoContent, s.do(t, "DELETE", "/api/admin/reports/"+created.ID, nil, token).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "DELETE", "/api/admin/reports/"+created.ID, nil, token).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "PUT", "/api/admin/reports/"+created.ID, map[string]any{}, token).Code)
}

func TestAdminFeedback(t *testing.T) {
	s := newTestServer(t, Limits{})
	token := s.login(t)

	long := strings.Repeat("Nachricht ", 10)
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/feedback", map[string]string{"message": long}, "").Code)

	w := s.do(t, "GET", "/api/admin/feedback", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Items []feedback.Summary `json:"items"`
		Total int                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	assert.True(t, strings.HasSuffix(list.Items[0].Preview, "..."))

	id := list.Items[0].ID
	w = s.do(t, "GET", "/api/admin/feedback/"+id, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, strings.TrimSpace(long), decode[database.Feedback](t, w).Message)

	assert.Equal(t, http.StatusNoContent, s.do(t, "DELETE", "/api/admin/feedback/"+id, nil, token).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/admin/feedback/"+id, nil, token).Code)
}

func TestExportImport(t *testing.T) {
	s := newTestServer(t, Limits{})
	token := s.login(t)

	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/reports", map[string]any{
		"phone_number": "0176 7", "zip_code": "11111", "city_name": "Neustadt",
	}, "").Code)

	w := s.do(t, "GET", "/api/admin/export", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	snap := decode[database.Snapshot](t, w)
	require.Len(t, snap.Reports, 1)
	require.Len(t, snap.CustomPostalCodes, 1)

	w = s.do(t, "GET", "/api/admin/plz", nil, token)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["total"])

	snap.Reports[0].ID = "imported-1"
	w = s.do(t, "POST", "/api/admin/import", snap, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[database.ImportResult](t, w).Reports)

	w = s.do(t, "GET", "/api/rankings/cities", nil, "")
	cities := decode[CityRankingResponse](t, w)
	require.Len(t, cities.Cities, 1)
	assert.Equal(t, 2, cities.Cities[0].Count)

	req := httptest.NewRequest("POST", "/api/admin/import", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, database.ImportResult{}, decode[database.ImportResult](t, w))
}

func TestImportRespectsPostalCodeRules(t *testing.T) {
	s := newTestServer(t, Limits{})
	token := s.login(t)

	w := s.do(t, "POST", "/api/admin/import", map[string]any{
		"reports": []map[string]any{
			{"id": "r1", "phone_number": "0171", "zip_code": "10115", "city_name": "Berlin", "nerv_score": 4},
			{"id": "r2", "phone_number": "0172", "zip_code": "123", "city_name": "Kurz", "nerv_score": 4},
		},
		"custom_postal_codes": []map[string]any{
			{"zip_code": "12", "city_name": "Nowhere"},
			{"zip_code": "abcde", "city_name": "Letters"},
			{"zip_code": "10115", "city_name": "NotBerlin"},
			{"zip_code": "28195", "city_name": "Bremen"},
		},
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, database.ImportResult{Reports: 1, PostalCodes: 1, Skipped: 4}, decode[database.ImportResult](t, w))

	w = s.do(t, "GET", "/api/plz/10115", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Berlin", decode[PostalCodeResponse](t, w).CityName)

	w = s.do(t, "GET", "/api/admin/plz", nil, token)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["total"])
}

func TestAdminWritesAreAudited(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	s := newTestServer(t, Limits{})
	token := s.login(t)

	report := database.NewReport("0176", "", "", "01067", "Dresden", "", 5, s.clock.Now())
	require.NoError(t, s.repo.InsertReport(context.Background(), report))

	require.Equal(t, http.StatusNoContent, s.do(t, "DELETE", "/api/admin/reports/"+report.ID, nil, token).Code)
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/admin/cleanup", nil, token).Code)

	logs := buf.String()
	assert.Contains(t, logs, "action=delete_report admin=admin-x id="+report.ID)
	assert.Contains(t, logs, "action=cleanup admin=admin-x")
}

func TestCleanupAndPolicy(t *testing.T) {
	s := newTestServer(t, Limits{})
	token := s.login(t)

	old := database.NewReport("0176", "", "", "01067", "Dresden", "", 5, s.clock.Now().AddDate(0, 0, -40))
	require.NoError(t, s.repo.InsertReport(context.Background(), old))
	fresh := database.NewReport("0176", "", "", "01067", "Dresden", "", 5, s.clock.Now())
	require.NoError(t, s.repo.InsertReport(context.Background(), fresh))

	w := s.do(t, "POST", "/api/admin/cleanup", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[privacy.CleanupResult](t, w).ReportsDeleted)

	w = s.do(t, "GET", "/api/privacy/policy", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 30, decode[privacy.Policy](t, w).RetentionDays)
}

func TestCityRankingQueryValidation(t *testing.T) {
	s := newTestServer(t, Limits{})

	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/rankings/cities?days=abc", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/rankings/cities?limit=-1", nil, "").Code)

	w := s.do(t, "GET", "/api/rankings/cities", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"days":0,"limit":0,"cities":[]}`, w.Body.String())
}
