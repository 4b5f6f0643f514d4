package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/eugenenazirov/pagecascade/internal/paging"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Override keys accepted by the overrides endpoint.
const (
	keyDefaultPerPage = "defaultPerPage"
	keyMaxPerPage     = "maxPerPage"
	keyMaxPages       = "maxPages"
	keyMaxPagesPer    = "maxPagesPer"
)

// Handler exposes the pagination registry over HTTP. The paging package does
// no locking, so every registry access goes through mu.
type Handler struct {
	registry *paging.Registry

	clock func() time.Time

	mu        sync.RWMutex
	updatedAt map[string]time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler serving reg.
func NewHandler(reg *paging.Registry, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry: reg,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		updatedAt: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetPagination(w http.ResponseWriter, r *http.Request) {
	_ = r
	h.mu.RLock()
	settings := h.registry.Config().Settings()
	h.mu.RUnlock()

	writeJSON(w, http.StatusOK, newSettingsResponse(settings))
}

func (h *Handler) handleGetPaginationField(w http.ResponseWriter, r *http.Request) {
	field := paging.Field(r.PathValue("field"))

	h.mu.RLock()
	value, ok := h.registry.Config().Get(field)
	h.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Unknown field", fmt.Sprintf("no pagination setting named %q", field))
		return
	}
	writeJSON(w, http.StatusOK, fieldResponse{Field: string(field), Value: value})
}

func (h *Handler) handleListEntities(w http.ResponseWriter, r *http.Request) {
	_ = r
	h.mu.RLock()
	names := h.registry.Names()
	h.mu.RUnlock()

	writeJSON(w, http.StatusOK, entitiesResponse{Entities: names})
}

func (h *Handler) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("entity"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "Invalid entity", "entity name must not be empty")
		return
	}

	h.mu.RLock()
	resp := h.entityResponseLocked(name)
	h.mu.RUnlock()

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePutOverrides(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("entity"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "Invalid entity", "entity name must not be empty")
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	req, err := parseOverridesRequest(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid overrides", err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if req.maxPagesPer != nil {
		if err := h.registry.SetMaxPagesPer(name, *req.maxPagesPer); err != nil {
			if errors.Is(err, paging.ErrDeprecated) {
				writeError(w, http.StatusConflict, "Deprecated override", err.Error(), "use maxPages instead")
				return
			}
			writeInternalError(w, err)
			return
		}
	}
	entity := h.registry.Entity(name)
	if req.clearDefaultPerPage {
		entity.ClearDefaultPerPage()
	}
	if req.defaultPerPage != nil {
		entity.SetDefaultPerPage(*req.defaultPerPage)
	}
	if req.maxPerPage != nil {
		entity.SetMaxPerPage(*req.maxPerPage)
	}
	if req.maxPages != nil {
		entity.SetMaxPages(*req.maxPages)
	}
	h.updatedAt[name] = h.clock()

	resp := h.entityResponseLocked(name)
	resp.Message = "Overrides updated successfully"
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteOverrides(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("entity"))

	h.mu.Lock()
	defer h.mu.Unlock()

	entity, ok := h.registry.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown entity", fmt.Sprintf("no overrides registered for %q", name))
		return
	}
	entity.ClearDefaultPerPage()
	entity.ClearMaxPerPage()
	entity.ClearMaxPages()
	h.updatedAt[name] = h.clock()

	resp := h.entityResponseLocked(name)
	resp.Message = "Overrides cleared"
	writeJSON(w, http.StatusOK, resp)
}

// entityResponseLocked must be called with mu held.
func (h *Handler) entityResponseLocked(name string) entityResponse {
	resp := entityResponse{
		Entity:   name,
		Settings: newSettingsResponse(h.registry.Resolve(name)),
	}
	if entity, ok := h.registry.Lookup(name); ok {
		o := entity.Overrides()
		resp.Registered = true
		resp.Overrides = overridesResponse{
			DefaultPerPage: o.DefaultPerPage,
			MaxPerPage:     o.MaxPerPage,
			MaxPages:       o.MaxPages,
		}
	}
	if ts, ok := h.updatedAt[name]; ok {
		resp.UpdatedAt = &ts
	}
	return resp
}

type overridesRequest struct {
	defaultPerPage      *int
	clearDefaultPerPage bool
	maxPerPage          *paging.Optional[int]
	maxPages            *paging.Optional[int]
	maxPagesPer         *paging.Optional[int]
}

// parseOverridesRequest validates the whole payload before anything is
// applied. A null page size clears the override; a null limit means no cap.
func parseOverridesRequest(raw map[string]json.RawMessage) (overridesRequest, error) {
	var req overridesRequest
	if len(raw) == 0 {
		return req, errors.New("payload must contain at least one override")
	}

	for key, value := range raw {
		switch key {
		case keyDefaultPerPage:
			if isJSONNull(value) {
				req.clearDefaultPerPage = true
				continue
			}
			var v int
			if err := json.Unmarshal(value, &v); err != nil {
				return overridesRequest{}, fmt.Errorf("%s must be an integer or null", key)
			}
			req.defaultPerPage = &v
		case keyMaxPerPage, keyMaxPages, keyMaxPagesPer:
			var limit paging.Optional[int]
			if err := json.Unmarshal(value, &limit); err != nil {
				return overridesRequest{}, fmt.Errorf("%s must be an integer or null", key)
			}
			switch key {
			case keyMaxPerPage:
				req.maxPerPage = &limit
			case keyMaxPages:
				req.maxPages = &limit
			default:
				req.maxPagesPer = &limit
			}
		default:
			return overridesRequest{}, fmt.Errorf("unknown override %q", key)
		}
	}
	return req, nil
}

func isJSONNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type settingsResponse struct {
	DefaultPerPage    int                  `json:"defaultPerPage"`
	MaxPerPage        paging.Optional[int] `json:"maxPerPage"`
	MaxPages          paging.Optional[int] `json:"maxPages"`
	Window            int                  `json:"window"`
	OuterWindow       int                  `json:"outerWindow"`
	Left              int                  `json:"left"`
	Right             int                  `json:"right"`
	PageMethodName    string               `json:"pageMethodName"`
	ParamName         string               `json:"paramName"`
	ParamsOnFirstPage bool                 `json:"paramsOnFirstPage"`
}

func newSettingsResponse(s paging.Settings) settingsResponse {
	return settingsResponse{
		DefaultPerPage:    s.DefaultPerPage,
		MaxPerPage:        s.MaxPerPage,
		MaxPages:          s.MaxPages,
		Window:            s.Window,
		OuterWindow:       s.OuterWindow,
		Left:              s.Left,
		Right:             s.Right,
		PageMethodName:    s.PageMethodName,
		ParamName:         s.ParamName,
		ParamsOnFirstPage: s.ParamsOnFirstPage,
	}
}

type overridesResponse struct {
	DefaultPerPage bool `json:"defaultPerPage"`
	MaxPerPage     bool `json:"maxPerPage"`
	MaxPages       bool `json:"maxPages"`
}

type entityResponse struct {
	Entity     string            `json:"entity"`
	Registered bool              `json:"registered"`
	Settings   settingsResponse  `json:"settings"`
	Overrides  overridesResponse `json:"overrides"`
	UpdatedAt  *time.Time        `json:"updatedAt,omitempty"`
	Message    string            `json:"message,omitempty"`
}

type entitiesResponse struct {
	Entities []string `json:"entities"`
}

type fieldResponse struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
