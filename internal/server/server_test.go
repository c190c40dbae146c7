package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fact-oracle/internal/config"
	"github.com/sells-group/fact-oracle/internal/model"
	"github.com/sells-group/fact-oracle/internal/oracle"
	"github.com/sells-group/fact-oracle/internal/parser"
	"github.com/sells-group/fact-oracle/internal/payment"
	"github.com/sells-group/fact-oracle/internal/safety"
	"github.com/sells-group/fact-oracle/internal/scorer"
	"github.com/sells-group/fact-oracle/internal/source"
	"github.com/sells-group/fact-oracle/internal/stats"
	"github.com/sells-group/fact-oracle/pkg/payments"
)

var fixedNow = time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)

type stubAdapter struct {
	domain  model.Domain
	calls   atomic.Int32
	payload model.Payload
	err     error
	panics  bool
}

func (a *stubAdapter) Domain() model.Domain { return a.domain }
func (a *stubAdapter) Source() string       { return "stub" }

func (a *stubAdapter) Query(context.Context, model.StructuredQuery) (model.Payload, error) {
	a.calls.Add(1)
	if a.panics {
		panic("adapter bug")
	}
	return a.payload, a.err
}

type mockPaymentsClient struct {
	mock.Mock
}

func (m *mockPaymentsClient) Verify(ctx context.Context, req payments.VerifyRequest) (*payments.VerifyResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.VerifyResponse), args.Error(1)
}

func (m *mockPaymentsClient) Settle(ctx context.Context, req payments.SettleRequest) (*payments.SettleResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.SettleResponse), args.Error(1)
}

type testServer struct {
	handler  http.Handler
	sports   *stubAdapter
	reddit   *stubAdapter
	payments *mockPaymentsClient
}

func newTestServer(t *testing.T, quota int) *testServer {
	t.Helper()
	ts := &testServer{
		sports:   &stubAdapter{domain: model.DomainSports, payload: &source.GamePayload{GameID: "1", OpponentCorroborated: true}},
		reddit:   &stubAdapter{domain: model.DomainReddit, payload: &source.RedditPayload{Subreddit: "golang"}},
		payments: new(mockPaymentsClient),
	}
	now := func() time.Time { return fixedNow }

	gov := safety.New(stats.NewFile(t.TempDir()),
		config.SafetyConfig{FailureWindow: 5, DailyQuota: quota, Timezone: "UTC"},
		safety.WithClock(now))
	gate := payment.New(ts.payments, config.PaymentConfig{
		Enabled: true, PlanID: "plan-7", AgentID: "agent-7", Cost: 1, PriceUSD: 0.05,
	})
	o := oracle.New(parser.New(parser.WithClock(now)), gov, scorer.New(scorer.DefaultConfig()), gate,
		[]source.Adapter{ts.sports, ts.reddit}, oracle.WithClock(now))

	srv := New(o, config.ServerConfig{PublicURL: "https://oracle.example.com"})
	srv.now = now
	ts.handler = srv.Handler()
	return ts
}

func (ts *testServer) allowPayments() {
	ts.payments.On("Verify", mock.Anything, mock.Anything).Return(&payments.VerifyResponse{IsValid: true}, nil)
	ts.payments.On("Settle", mock.Anything, mock.Anything).Return(&payments.SettleResponse{Success: true, CreditsDebited: 1}, nil)
}

func (ts *testServer) post(t *testing.T, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

var paid = map[string]string{"payment-signature": "tok"}

const sportsBody = `{"question": "Did the Lakers beat the Celtics on 2026-01-19?"}`

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 100)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2026-01-20T15:00:00Z", body["timestamp"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestAsk_Success(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.allowPayments()

	rec := ts.post(t, "/api/sports", sportsBody, paid)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.InDelta(t, 0.95, body["confidence"], 1e-9)
	assert.Equal(t, "sports", body["domain"])
	assert.NotEmpty(t, body["id"])
	pay := body["payment"].(map[string]any)
	assert.Equal(t, "settled", pay["state"])
	assert.EqualValues(t, 1, pay["creditsDebited"])
}

func TestAsk_BearerFallback(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.allowPayments()

	rec := ts.post(t, "/api/reddit", `{"question": "What's hot on r/golang?"}`, map[string]string{"Authorization": "Bearer tok"})
	require.Equal(t, http.StatusOK, rec.Code)
	ts.payments.AssertCalled(t, "Verify", mock.Anything, mock.MatchedBy(func(r payments.VerifyRequest) bool {
		return r.Token == "tok" && r.Endpoint == "/api/reddit"
	}))
}

func TestAsk_PaymentRequired(t *testing.T) {
	ts := newTestServer(t, 100)

	rec := ts.post(t, "/api/sports", sportsBody, nil)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "missing_credential", body["error"])
	assert.Equal(t, "plan-7", body["planId"])
	assert.Equal(t, "agent-7", body["agentId"])
	assert.InDelta(t, 0.05, body["price"], 1e-9)
	assert.NotEmpty(t, body["purchase"])
	assert.Zero(t, ts.sports.calls.Load())
}

func TestAsk_InvalidCredential(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.payments.On("Verify", mock.Anything, mock.Anything).Return(&payments.VerifyResponse{IsValid: false, Reason: "insufficient balance"}, nil)

	rec := ts.post(t, "/api/sports", sportsBody, paid)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "invalid_credential", body["error"])
	assert.Contains(t, body["message"], "insufficient balance")
	assert.Equal(t, "plan-7", body["planId"])
	assert.Equal(t, "agent-7", body["agentId"])
	assert.NotEmpty(t, body["purchase"])
	assert.Zero(t, ts.sports.calls.Load())
}

func TestAsk_VerifierUnreachable(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.payments.On("Verify", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	rec := ts.post(t, "/api/reddit", `{"question": "What's new on r/golang?"}`, paid)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "verifier_unreachable", decode(t, rec)["error"])
}

func TestAsk_BadRequests(t *testing.T) {
	ts := newTestServer(t, 100)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `question=hi`},
		{"empty question", `{"question": "  "}`},
		{"missing question", `{}`},
		{"too large", `{"question": "` + strings.Repeat("x", 70<<10) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.post(t, "/api/sports", tt.body, paid)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "bad_request", decode(t, rec)["error"])
		})
	}
	ts.payments.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
}

func TestAsk_UnknownDomain(t *testing.T) {
	ts := newTestServer(t, 100)
	rec := ts.post(t, "/api/weather", `{"question": "rain?"}`, paid)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_domain", decode(t, rec)["error"])
}

func TestAsk_ParseErrorIsOK(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.allowPayments()

	rec := ts.post(t, "/api/sports", `{"question": "who won?"}`, paid)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "parse_error", body["error"])
	assert.EqualValues(t, 0, body["confidence"])
	assert.Equal(t, "skipped", body["payment"].(map[string]any)["state"])
}

func TestAsk_SettlementFailureStill200(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.payments.On("Verify", mock.Anything, mock.Anything).Return(&payments.VerifyResponse{IsValid: true}, nil)
	ts.payments.On("Settle", mock.Anything, mock.Anything).Return(nil, &payments.StatusError{StatusCode: 500, Body: "oops"})

	rec := ts.post(t, "/api/sports", sportsBody, paid)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	pay := body["payment"].(map[string]any)
	assert.Equal(t, "settlement_failed", pay["state"])
	assert.NotEmpty(t, pay["error"])
}

func TestAsk_BreakerOpen(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.allowPayments()
	ts.sports.err = model.Errorf(model.KindNetwork, "espn is unreachable")

	for i := 0; i < 5; i++ {
		rec := ts.post(t, "/api/sports", sportsBody, paid)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "network_error", decode(t, rec)["error"])
	}

	rec := ts.post(t, "/api/sports", sportsBody, paid)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "breaker_open", decode(t, rec)["error"])
	assert.Empty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, int32(5), ts.sports.calls.Load())
}

func TestAsk_QuotaExceeded(t *testing.T) {
	ts := newTestServer(t, 1)
	ts.allowPayments()

	require.Equal(t, http.StatusOK, ts.post(t, "/api/sports", sportsBody, paid).Code)

	rec := ts.post(t, "/api/sports", sportsBody, paid)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "quota_exceeded", decode(t, rec)["error"])

	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Equal(t, 9*3600, retry)
}

func TestAsk_PanicIs500(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.allowPayments()
	ts.reddit.panics = true

	rec := ts.post(t, "/api/reddit", `{"question": "What's hot on r/golang?"}`, paid)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "internal", body["error"])
	assert.Equal(t, "internal error", body["message"])
	ts.payments.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}

func TestStats(t *testing.T) {
	ts := newTestServer(t, 100)
	ts.allowPayments()
	require.Equal(t, http.StatusOK, ts.post(t, "/api/sports", sportsBody, paid).Code)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/sports", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "sports", body["domain"])
	assert.Equal(t, "normal", body["breaker"])
	assert.EqualValues(t, 100, body["dailyQuota"])
	st := body["stats"].(map[string]any)
	assert.EqualValues(t, 1, st["totalQueries"])
	assert.Len(t, st["hourlyData"], 24)

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/weather", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenAPI(t *testing.T) {
	ts := newTestServer(t, 100)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "3.0.3", body["openapi"])
	paths := body["paths"].(map[string]any)
	require.Contains(t, paths, "/api/sports")
	require.Contains(t, paths, "/api/reddit")

	post := paths["/api/sports"].(map[string]any)["post"].(map[string]any)
	xp := post["x-payment"].(map[string]any)
	assert.EqualValues(t, 1, xp["cost"])
	assert.Equal(t, "plan-7", xp["planId"])
	assert.Contains(t, post["responses"], "402")
	assert.Contains(t, post["responses"], "503")
	assert.Equal(t, "https://oracle.example.com", body["servers"].([]any)[0].(map[string]any)["url"])
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, 100)
	req := httptest.NewRequest(http.MethodOptions, "/api/sports", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	cases := map[model.ErrorKind]int{
		model.KindMissingCredential:   http.StatusPaymentRequired,
		model.KindInvalidCredential:   http.StatusUnauthorized,
		model.KindVerifierUnreachable: http.StatusUnauthorized,
		model.KindUnknownDomain:       http.StatusNotFound,
		model.KindBreakerOpen:         http.StatusServiceUnavailable,
		model.KindQuotaExceeded:       http.StatusServiceUnavailable,
		model.KindInternal:            http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusFor(kind), string(kind))
	}
}
