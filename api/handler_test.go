package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/raushankrgupta/meal-planner/apiclient"
	"github.com/raushankrgupta/meal-planner/auth"
	"github.com/raushankrgupta/meal-planner/export"
	"github.com/raushankrgupta/meal-planner/logger"
	"github.com/raushankrgupta/meal-planner/models"
	"github.com/raushankrgupta/meal-planner/planner"
	"github.com/raushankrgupta/meal-planner/session"
)

const planJSON = `{
  "targets": {"calories": 1800, "protein": 120, "carbs": 200},
  "weekPlan": [
    {"day": "Monday", "meals": {
      "breakfast": {"items": [{"id": "f1", "name": "Poha", "calories": 300}], "totalCalories": 300},
      "lunch": {"items": [{"id": 2, "name": "Paneer Wrap", "calories": 450, "image": "https://img.example.com/wrap.jpg"}], "totalCalories": 450}
    }},
    {"day": "Tuesday", "meals": {
      "dinner": {"items": [{"id": "f3", "name": "Dal Khichdi", "calories": 500}], "totalCalories": 500}
    }}
  ]
}`

type backend struct {
	mu   sync.Mutex
	hits []string
	// feedback reports here so tests can wait for the background call
	feedback chan string
}

func (b *backend) hit(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hits = append(b.hits, path)
}

func (b *backend) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, h := range b.hits {
		if h == path {
			n++
		}
	}
	return n
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.hit(r.URL.Path)
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/api/auth/login":
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid email or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"tok-123","user":{"_id":"u1","email":"chef@example.com","name":"Chef"}}`))
	case "/api/auth/signup":
		_, _ = w.Write([]byte(`{"token":"tok-new","user":{"id":"u2","email":"new@example.com"}}`))
	case "/api/auth/forgot-password":
		_, _ = w.Write([]byte(`{"message":"sent"}`))
	case "/api/auth/reset-password":
		if body["otp"] != "123456" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"OTP expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	case "/api/generate-plan":
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(planJSON))
	case "/api/regenerate":
		_, _ = w.Write([]byte(`{"meal":{"items":[{"id":"f9","name":"Chickpea Salad","calories":350}],"totalCalories":350}}`))
	case "/api/user/feedback":
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"feedback store down"}`))
		if b.feedback != nil {
			b.feedback <- body["foodId"].(string) + ":" + body["action"].(string)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type fakeExporter struct {
	doc   *export.Document
	err   error
	calls int
}

func (f *fakeExporter) Export(_ context.Context, plan *models.MealPlan, now time.Time) (*export.Document, error) {
	f.calls++
	if plan == nil {
		return nil, export.ErrNothingToExport
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.doc != nil {
		return f.doc, nil
	}
	return &export.Document{Filename: export.Filename(now), Data: []byte("%PDF-1.3 fake"), Pages: 1}, nil
}

type harness struct {
	t        *testing.T
	backend  *backend
	exporter *fakeExporter
	store    *session.MemoryStore
	boards   *planner.Registry
	server   *Server
	handler  http.Handler
	cookies  []*http.Cookie
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	be := &backend{feedback: make(chan string, 4)}
	srv := httptest.NewServer(be)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL, srv.Client())
	require.NoError(t, err)
	store := session.NewMemoryStore()
	sessions := session.NewManager(store)
	boards := planner.NewRegistry(client)
	exp := &fakeExporter{}
	s := NewServer(sessions, auth.NewService(client, sessions), boards, exp)
	s.now = func() time.Time { return time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC) }

	return &harness{t: t, backend: be, exporter: exp, store: store, boards: boards, server: s, handler: s.Routes()}
}

func (h *harness) sessionID() string {
	h.t.Helper()
	for _, c := range h.cookies {
		if c.Name == session.CookieName {
			return c.Value
		}
	}
	h.t.Fatal("no session cookie")
	return ""
}

func (h *harness) preflight(origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/dashboard/regenerate", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range h.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) doJSON(target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range h.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) login() {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/login", url.Values{"email": {"chef@example.com"}, "password": {"secret"}})
	require.Equal(h.t, http.StatusSeeOther, rec.Code)
	require.Equal(h.t, "/dashboard", rec.Header().Get("Location"))
	h.cookies = rec.Result().Cookies()
	require.NotEmpty(h.t, h.cookies)
}

func (h *harness) generate() {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/dashboard/generate", url.Values{"age": {"30"}, "allergies": {"peanuts"}})
	require.Equal(h.t, http.StatusSeeOther, rec.Code)
}

func TestUnknownPathRedirectsToDashboard(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestDashboardRequiresLogin(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestLoadingPlaceholder(t *testing.T) {
	release := make(chan struct{})
	sessions := session.OpenManager(context.Background(), func(ctx context.Context) (session.Store, error) {
		<-release
		return session.NewMemoryStore(), nil
	})
	s := NewServer(sessions, nil, planner.NewRegistry(nil), &fakeExporter{})
	handler := s.Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Loading...")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Contains(t, rec.Body.String(), `"sessions":"loading"`)

	close(release)
	<-sessions.Ready()
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestLoginFailureShowsServerMessage(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/login", url.Values{"email": {"chef@example.com"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
	assert.Empty(t, rec.Result().Cookies())
}

func TestLoginSuccessAndGuestPages(t *testing.T) {
	h := newHarness(t)
	h.login()

	rec := h.do(http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	rec = h.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hi, Chef")
	assert.Contains(t, rec.Body.String(), "generate a plan to get started")
}

func TestSignupPasswordMismatch(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/signup", url.Values{
		"email": {"new@example.com"}, "password": {"a"}, "confirm": {"b"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), auth.MsgPasswordMismatch)
	assert.Zero(t, h.backend.count("/api/auth/signup"))
}

func TestSignupLogsIn(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/signup", url.Values{
		"email": {"new@example.com"}, "password": {"pw"}, "confirm": {"pw"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	h.cookies = rec.Result().Cookies()

	rec = h.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "new@example.com")
}

func TestForgotPasswordFlow(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/forgot-password/otp", url.Values{"email": {"chef@example.com"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "OTP sent to your email!")
	assert.Contains(t, rec.Body.String(), `name="otp"`)

	rec = h.do(http.MethodPost, "/forgot-password/reset", url.Values{
		"email": {"chef@example.com"}, "otp": {"000000"}, "newPassword": {"pw2"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "OTP expired")

	rec = h.do(http.MethodPost, "/forgot-password/reset", url.Values{
		"email": {"chef@example.com"}, "otp": {"123456"}, "newPassword": {"pw2"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	assert.Equal(t, "/login?notice=reset", loc)

	rec = h.do(http.MethodGet, loc, nil)
	assert.Contains(t, rec.Body.String(), auth.MsgResetDone)
}

func TestGenerateAndRender(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.generate()

	rec := h.do(http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `id="plan-view"`)
	assert.Contains(t, body, "Monday")
	assert.Contains(t, body, "Paneer Wrap")
	assert.Contains(t, body, "Dal Khichdi")
	assert.Contains(t, body, `value="peanuts"`)
}

func TestRegenerateJSON(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.generate()

	rec := h.doJSON("/dashboard/regenerate", `{"dayIndex":0,"mealType":"lunch"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Chickpea Salad")

	body := h.do(http.MethodGet, "/dashboard", nil).Body.String()
	assert.Contains(t, body, "Chickpea Salad")
	assert.NotContains(t, body, "Paneer Wrap")
	assert.Contains(t, body, "Poha")
	assert.Contains(t, body, "Dal Khichdi")
}

func TestRegenerateForm(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.generate()

	rec := h.do(http.MethodPost, "/dashboard/regenerate", url.Values{"day": {"1"}, "mealType": {"dinner"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	body := h.do(http.MethodGet, "/dashboard", nil).Body.String()
	assert.Contains(t, body, "Chickpea Salad")
	assert.NotContains(t, body, "Dal Khichdi")
}

func TestRegenerateBadSlot(t *testing.T) {
	h := newHarness(t)
	h.login()

	rec := h.doJSON("/dashboard/regenerate", `{"dayIndex":0,"mealType":"lunch"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	h.generate()
	rec = h.doJSON("/dashboard/regenerate", `{"dayIndex":0,"mealType":"dinner"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestFeedbackFailureIsSilent(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.generate()

	rec := h.do(http.MethodPost, "/dashboard/feedback", url.Values{"foodId": {"f1"}, "action": {"liked"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	select {
	case got := <-h.backend.feedback:
		assert.Equal(t, "f1:liked", got)
	case <-time.After(2 * time.Second):
		t.Fatal("feedback never reached the API")
	}

	body := h.do(http.MethodGet, "/dashboard", nil).Body.String()
	assert.NotContains(t, body, `class="error"`)
	assert.Contains(t, body, "Poha")
}

func TestFeedbackValidation(t *testing.T) {
	h := newHarness(t)
	h.login()
	rec := h.doJSON("/dashboard/feedback", `{"foodId":"f1","action":"meh"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportWithoutPlanIsNoop(t *testing.T) {
	h := newHarness(t)
	h.login()

	rec := h.do(http.MethodGet, "/dashboard/export", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	assert.NotContains(t, h.do(http.MethodGet, "/dashboard", nil).Body.String(), planner.MsgExportFailed)
}

func TestExportDownload(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.generate()

	rec := h.do(http.MethodGet, "/dashboard/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "weekly_meal_plan_2024-05-06.pdf")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func TestExportFailureNotice(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.generate()
	h.exporter.err = errors.New("chrome missing")

	rec := h.do(http.MethodGet, "/dashboard/export", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	body := h.do(http.MethodGet, "/dashboard", nil).Body.String()
	assert.Contains(t, body, planner.MsgExportFailed)
	assert.Contains(t, body, "Poha")
	assert.NotContains(t, body, "Exporting...")
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.generate()

	rec := h.do(http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = h.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, 0, h.boards.Len())
}

func TestExpiredSessionDropsDashboard(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.generate()
	require.Equal(t, 1, h.boards.Len())

	id := h.sessionID()
	sess, err := h.store.Load(context.Background(), id)
	require.NoError(t, err)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	sess.Token = expired
	require.NoError(t, h.store.Save(context.Background(), sess))

	rec := h.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	_, err = h.store.Load(context.Background(), id)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Equal(t, 0, h.boards.Len())
}

func TestCORSDefaultsToSameOrigin(t *testing.T) {
	h := newHarness(t)
	rec := h.preflight("https://elsewhere.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSExplicitOrigins(t *testing.T) {
	prev := logger.GetLogger()
	t.Cleanup(func() { logger.SetLogger(prev) })
	core, logs := observer.New(zapcore.WarnLevel)
	logger.SetLogger(zap.New(core))

	h := newHarness(t)
	h.server.AllowedOrigins = []string{"*", "https://planner.example"}
	h.handler = h.server.Routes()

	rec := h.preflight("https://planner.example")
	assert.Equal(t, "https://planner.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = h.preflight("https://elsewhere.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	assert.Equal(t, 1, logs.FilterMessage("Ignoring wildcard CORS origin").Len())
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":"ready"}`, rec.Body.String())
}

func TestRenderPlanDocument(t *testing.T) {
	var plan models.MealPlan
	require.NoError(t, json.Unmarshal([]byte(planJSON), &plan))

	html, err := RenderPlanDocument(&plan)
	require.NoError(t, err)
	assert.Contains(t, html, `id="plan-view"`)
	assert.Contains(t, html, "Paneer Wrap")
	assert.Contains(t, html, "https://img.example.com/wrap.jpg")
	assert.NotContains(t, html, "Regenerate")
	assert.NotContains(t, html, "/dashboard/feedback")
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Weight loss", label("weight_loss"))
	assert.Equal(t, "Non-veg", label("non-veg"))
	assert.Equal(t, "", label(""))
}
