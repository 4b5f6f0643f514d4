package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eugenenazirov/pagecascade/internal/paging"
)

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	router   http.Handler
	clock    *controllableClock
	registry *paging.Registry
}

func setupTestRouter(t *testing.T, opts ...paging.RegistryOption) testEnv {
	t.Helper()

	cfg := paging.New()
	cfg.Configure(func(c *paging.Config) {
		c.DefaultPerPage = 10
		c.MaxPerPage = paging.Some(100)
	})
	reg := paging.NewRegistry(cfg, opts...)
	clock := newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))

	handler := NewHandler(reg, WithClock(clock.Now))
	logger := zaptest.NewLogger(t)
	router := NewRouter(handler, logger, WithLogging(false))

	return testEnv{router: router, clock: clock, registry: reg}
}

func doJSON(t *testing.T, router http.Handler, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body []byte
	switch p := payload.(type) {
	case nil:
	case string:
		body = []byte(p)
	default:
		data, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = data
	}

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type entityBody struct {
	Entity     string `json:"entity"`
	Registered bool   `json:"registered"`
	Settings   struct {
		DefaultPerPage int  `json:"defaultPerPage"`
		MaxPerPage     *int `json:"maxPerPage"`
		MaxPages       *int `json:"maxPages"`
		Window         int  `json:"window"`
	} `json:"settings"`
	Overrides struct {
		DefaultPerPage bool `json:"defaultPerPage"`
		MaxPerPage     bool `json:"maxPerPage"`
		MaxPages       bool `json:"maxPages"`
	} `json:"overrides"`
	UpdatedAt *time.Time `json:"updatedAt"`
	Message   string     `json:"message"`
}

func decodeEntity(t *testing.T, rec *httptest.ResponseRecorder) entityBody {
	t.Helper()
	var body entityBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestHealthEndpoint(t *testing.T) {
	env := setupTestRouter(t)

	rec := doJSON(t, env.router, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %s", body.Status)
	}
	if !body.Timestamp.Equal(env.clock.Now()) {
		t.Fatalf("expected timestamp %s, got %s", env.clock.Now(), body.Timestamp)
	}
}

func TestGetPaginationReturnsGlobalSettings(t *testing.T) {
	env := setupTestRouter(t)

	rec := doJSON(t, env.router, http.MethodGet, "/api/pagination", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		DefaultPerPage int    `json:"defaultPerPage"`
		MaxPerPage     *int   `json:"maxPerPage"`
		MaxPages       *int   `json:"maxPages"`
		Window         int    `json:"window"`
		ParamName      string `json:"paramName"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.DefaultPerPage != 10 || body.Window != 4 || body.ParamName != "page" {
		t.Fatalf("unexpected settings: %+v", body)
	}
	if body.MaxPerPage == nil || *body.MaxPerPage != 100 {
		t.Fatalf("expected max per page 100, got %v", body.MaxPerPage)
	}
	if body.MaxPages != nil {
		t.Fatalf("expected max pages null, got %v", *body.MaxPages)
	}
}

func TestGetPaginationFieldResolvesDeferredParam(t *testing.T) {
	env := setupTestRouter(t)

	calls := 0
	env.registry.Config().ParamName = paging.ParamFunc(func() string {
		calls++
		return "dyn"
	})

	for i := 1; i <= 2; i++ {
		rec := doJSON(t, env.router, http.MethodGet, "/api/pagination/param_name", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var body struct {
			Field string `json:"field"`
			Value string `json:"value"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body.Field != "param_name" || body.Value != "dyn" {
			t.Fatalf("unexpected field response: %+v", body)
		}
		if calls != i {
			t.Fatalf("expected %d resolver calls, got %d", i, calls)
		}
	}
}

func TestGetPaginationFieldUnknown(t *testing.T) {
	env := setupTestRouter(t)

	rec := doJSON(t, env.router, http.MethodGet, "/api/pagination/per_page", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestGetEntityFallsBackWithoutRegistering(t *testing.T) {
	env := setupTestRouter(t)

	rec := doJSON(t, env.router, http.MethodGet, "/api/entities/article/pagination", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := decodeEntity(t, rec)
	if body.Registered {
		t.Fatalf("expected unregistered entity")
	}
	if body.Settings.DefaultPerPage != 10 {
		t.Fatalf("expected global default 10, got %d", body.Settings.DefaultPerPage)
	}
	if body.UpdatedAt != nil {
		t.Fatalf("expected no updatedAt for untouched entity")
	}
	if names := env.registry.Names(); len(names) != 0 {
		t.Fatalf("GET registered entities: %v", names)
	}
}

func TestPutOverridesIsScopedToEntity(t *testing.T) {
	env := setupTestRouter(t)
	env.clock.Advance(time.Hour)

	rec := doJSON(t, env.router, http.MethodPut, "/api/entities/article/overrides", map[string]any{
		"defaultPerPage": 5,
		"maxPerPage":     0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeEntity(t, rec)
	if body.Message == "" {
		t.Fatalf("expected success message")
	}
	if body.Settings.DefaultPerPage != 5 {
		t.Fatalf("expected default per page 5, got %d", body.Settings.DefaultPerPage)
	}
	if body.Settings.MaxPerPage == nil || *body.Settings.MaxPerPage != 0 {
		t.Fatalf("expected explicit zero cap, got %v", body.Settings.MaxPerPage)
	}
	if !body.Overrides.DefaultPerPage || !body.Overrides.MaxPerPage || body.Overrides.MaxPages {
		t.Fatalf("unexpected override flags: %+v", body.Overrides)
	}
	if body.UpdatedAt == nil || !body.UpdatedAt.Equal(env.clock.Now()) {
		t.Fatalf("expected updatedAt %s, got %v", env.clock.Now(), body.UpdatedAt)
	}

	rec = doJSON(t, env.router, http.MethodGet, "/api/entities/comment/pagination", nil)
	other := decodeEntity(t, rec)
	if other.Settings.DefaultPerPage != 10 {
		t.Fatalf("expected unrelated entity to keep 10, got %d", other.Settings.DefaultPerPage)
	}

	rec = doJSON(t, env.router, http.MethodGet, "/api/entities", nil)
	var list struct {
		Entities []string `json:"entities"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if want := []string{"article"}; !slices.Equal(list.Entities, want) {
		t.Fatalf("expected %v, got %v", want, list.Entities)
	}
}

func TestPutOverridesNullSemantics(t *testing.T) {
	env := setupTestRouter(t)

	rec := doJSON(t, env.router, http.MethodPut, "/api/entities/article/overrides", `{"defaultPerPage": 5, "maxPerPage": null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := decodeEntity(t, rec)
	if body.Settings.MaxPerPage != nil {
		t.Fatalf("expected null max per page to remove the global cap, got %v", *body.Settings.MaxPerPage)
	}
	if !body.Overrides.MaxPerPage {
		t.Fatalf("expected explicit no-cap to count as override")
	}

	rec = doJSON(t, env.router, http.MethodPut, "/api/entities/article/overrides", `{"defaultPerPage": null}`)
	body = decodeEntity(t, rec)
	if body.Overrides.DefaultPerPage || body.Settings.DefaultPerPage != 10 {
		t.Fatalf("expected null page size to clear the override, got %+v", body)
	}
}

func TestPutOverridesLegacyAliasWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	env := setupTestRouter(t, paging.WithLogger(zap.New(core)))

	rec := doJSON(t, env.router, http.MethodPut, "/api/entities/article/overrides", map[string]any{"maxPagesPer": 7})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := decodeEntity(t, rec)
	if body.Settings.MaxPages == nil || *body.Settings.MaxPages != 7 {
		t.Fatalf("expected max pages 7, got %v", body.Settings.MaxPages)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one deprecation warning, got %d", logs.Len())
	}
}

func TestPutOverridesLegacyAliasRaises(t *testing.T) {
	env := setupTestRouter(t, paging.WithDeprecationBehavior(paging.DeprecationRaise))

	rec := doJSON(t, env.router, http.MethodPut, "/api/entities/article/overrides", map[string]any{"maxPagesPer": 7, "maxPerPage": 20})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}

	if _, ok := env.registry.Lookup("article"); ok {
		t.Fatalf("expected rejected request not to register the entity")
	}

	rec = doJSON(t, env.router, http.MethodGet, "/api/entities", nil)
	var list struct {
		Entities []string `json:"entities"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list.Entities) != 0 {
		t.Fatalf("expected no listed entities, got %v", list.Entities)
	}

	rec = doJSON(t, env.router, http.MethodDelete, "/api/entities/article/overrides", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after rejected update, got %d", rec.Code)
	}
}

func TestPutOverridesLegacyAliasRaisesKeepsExistingOverrides(t *testing.T) {
	env := setupTestRouter(t, paging.WithDeprecationBehavior(paging.DeprecationRaise))
	env.registry.Entity("article").SetDefaultPerPage(5)

	rec := doJSON(t, env.router, http.MethodPut, "/api/entities/article/overrides", map[string]any{"maxPagesPer": 7, "maxPerPage": 20})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}

	e, _ := env.registry.Lookup("article")
	if want := (paging.Overrides{DefaultPerPage: true}); e.Overrides() != want {
		t.Fatalf("expected overrides %+v, got %+v", want, e.Overrides())
	}
}

func TestPutOverridesValidatesInput(t *testing.T) {
	env := setupTestRouter(t)

	testCases := map[string]string{
		"malformed":   `{"defaultPerPage":`,
		"empty":       `{}`,
		"unknown key": `{"perPage": 5}`,
		"non integer": `{"maxPages": "ten"}`,
		"fractional":  `{"defaultPerPage": 2.5}`,
	}
	for name, payload := range testCases {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(t, env.router, http.MethodPut, "/api/entities/article/overrides", payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
		})
	}
	if names := env.registry.Names(); len(names) != 0 {
		t.Fatalf("invalid requests registered entities: %v", names)
	}
}

func TestDeleteOverrides(t *testing.T) {
	env := setupTestRouter(t)

	rec := doJSON(t, env.router, http.MethodDelete, "/api/entities/article/overrides", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown entity, got %d", rec.Code)
	}

	env.registry.Entity("article").SetMaxPages(paging.Some(3))

	rec = doJSON(t, env.router, http.MethodDelete, "/api/entities/article/overrides", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := decodeEntity(t, rec)
	if body.Overrides.MaxPages || body.Settings.MaxPages != nil {
		t.Fatalf("expected overrides to be cleared, got %+v", body)
	}
}

func TestCorsPreflight(t *testing.T) {
	env := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/entities/article/overrides", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "PUT")

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected Access-Control-Allow-Origin header to be set")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	env := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "test-request-id")

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "test-request-id" {
		t.Fatalf("expected X-Request-ID header to be echoed, got %s", got)
	}
}
