package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github/itish2003/tariff/models"
	"github/itish2003/tariff/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubChat struct {
	got  models.ChatRequest
	resp *models.ChatResponse
	err  error
}

func (s *stubChat) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	s.got = req
	return s.resp, s.err
}

type stubTariff struct {
	queryErr   error
	refreshErr error
	gotK       int
}

func (s *stubTariff) Query(ctx context.Context, query, country string, k int) (string, error) {
	s.gotK = k
	if s.queryErr != nil {
		return "", s.queryErr
	}
	return "Information retrieved about tariffs and customs regulations for " + country + ":\n\n", nil
}

func (s *stubTariff) Refresh(ctx context.Context) (*models.RefreshReport, error) {
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return &models.RefreshReport{Added: []string{"peru"}, Available: []string{"ecuador", "peru"}, Message: "ok"}, nil
}

func (s *stubTariff) Countries() []string { return []string{"ecuador", "peru"} }

func (s *stubTariff) Unavailable() map[string]string {
	return map[string]string{"chile": "unreadable document"}
}

func newRouter(chat ChatService, tariff TariffService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()), CORS())
	NewTariffController(chat, tariff).Register(r.Group("/api/v1"))
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatHandler(t *testing.T) {
	chat := &stubChat{resp: &models.ChatResponse{
		Answer:     "0104.10 pays 5%",
		SessionID:  "s1",
		ToolEvents: []models.ToolEvent{{Tool: services.TariffToolName, Title: "Searching in official documents..."}},
	}}
	r := newRouter(chat, &stubTariff{})

	w := do(t, r, http.MethodPost, "/api/v1/chat", models.ChatRequest{Message: "cordero", SessionID: "s1"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "0104.10 pays 5%", resp.Answer)
	require.Len(t, resp.ToolEvents, 1)
	assert.Equal(t, "s1", chat.got.SessionID)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(t, r, http.MethodPost, "/api/v1/chat", map[string]string{"sessionID": "s1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	chat.err = errors.New("gemini down")
	w = do(t, r, http.MethodPost, "/api/v1/chat", models.ChatRequest{Message: "cordero"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestChatHandler_NotConfigured(t *testing.T) {
	r := newRouter(nil, &stubTariff{})
	w := do(t, r, http.MethodPost, "/api/v1/chat", models.ChatRequest{Message: "cordero"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestQueryHandler(t *testing.T) {
	tariff := &stubTariff{}
	r := newRouter(nil, tariff)

	w := do(t, r, http.MethodPost, "/api/v1/tariff/query", models.TariffQueryRequest{Query: "sheep", Country: "Ecuador", K: 2})
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.TariffQueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Result, "for Ecuador:")
	assert.Equal(t, 2, tariff.gotK)

	w = do(t, r, http.MethodPost, "/api/v1/tariff/query", map[string]string{"query": "sheep"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tariff.queryErr = errors.Join(services.ErrIndexBackendUnavailable, errors.New("chroma down"))
	w = do(t, r, http.MethodPost, "/api/v1/tariff/query", models.TariffQueryRequest{Query: "sheep", Country: "Ecuador"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCountriesHandlers(t *testing.T) {
	tariff := &stubTariff{}
	r := newRouter(nil, tariff)

	w := do(t, r, http.MethodGet, "/api/v1/countries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var countries models.CountriesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &countries))
	assert.Equal(t, []string{"ecuador", "peru"}, countries.Countries)
	assert.Equal(t, "unreadable document", countries.Unavailable["chile"])

	w = do(t, r, http.MethodPost, "/api/v1/countries/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report models.RefreshReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, []string{"peru"}, report.Added)

	tariff.refreshErr = errors.New("permission denied")
	w = do(t, r, http.MethodPost, "/api/v1/countries/refresh", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(nil, &stubTariff{})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
