package investigation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/clinsim/platform/pkg/common/logger"
	"github.com/clinsim/platform/pkg/common/models"
	"github.com/clinsim/platform/pkg/reference"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
	library *reference.Library
}

func NewHandler(service *Service, library *reference.Library) *Handler {
	return &Handler{service: service, library: library}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/sessions/{id}/investigations/available", h.handleOrderable).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/orders", h.handlePlaceOrders).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/orders", h.handleListOrders).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/results", h.handleListResults).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}/view", h.handleMarkViewed).Methods(http.MethodPost)
	r.HandleFunc("/cases/{id}/config", h.handleUpdateCaseConfig).Methods(http.MethodPut)
	r.HandleFunc("/cases/{id}/investigations", h.handleCreateInvestigation).Methods(http.MethodPost)
	r.HandleFunc("/cases/{id}/investigations", h.handleListInvestigations).Methods(http.MethodGet)
	r.HandleFunc("/cases/{id}/investigations/{invID}", h.handleDeleteInvestigation).Methods(http.MethodDelete)
	r.HandleFunc("/reference/tests", h.handleSearchReference).Methods(http.MethodGet)
	r.HandleFunc("/reference/groups", h.handleListGroups).Methods(http.MethodGet)
	r.HandleFunc("/reference/reload", h.handleReloadReference).Methods(http.MethodPost)
}

func (h *Handler) handleOrderable(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	catalog, err := h.service.Orderable(r.Context(), identityFrom(r), sessionID)
	if err != nil {
		writeError(w, err, "failed to resolve orderable tests")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": catalog})
}

func (h *Handler) handlePlaceOrders(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	var req models.PlaceOrdersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(req.Tests) == 0 {
		http.Error(w, "tests are required", http.StatusBadRequest)
		return
	}
	result, err := h.service.PlaceOrders(r.Context(), identityFrom(r), sessionID, req)
	if err != nil {
		writeError(w, err, "failed to place orders")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	orders, err := h.service.ListOrders(r.Context(), identityFrom(r), sessionID)
	if err != nil {
		writeError(w, err, "failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": orders})
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	results, err := h.service.ListResults(r.Context(), identityFrom(r), sessionID)
	if err != nil {
		writeError(w, err, "failed to list results")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": results})
}

func (h *Handler) handleMarkViewed(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	order, err := h.service.MarkViewed(r.Context(), identityFrom(r), orderID)
	if err != nil {
		writeError(w, err, "failed to mark order viewed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": order})
}

func (h *Handler) handleUpdateCaseConfig(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid case id", http.StatusBadRequest)
		return
	}
	doc, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := h.service.UpdateCaseConfig(r.Context(), identityFrom(r), caseID, doc); err != nil {
		writeError(w, err, "failed to update case configuration")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "updated"})
}

func (h *Handler) handleCreateInvestigation(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid case id", http.StatusBadRequest)
		return
	}
	var req models.CreateCaseInvestigationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	investigation, err := h.service.CreateCaseInvestigation(r.Context(), identityFrom(r), caseID, req)
	if err != nil {
		writeError(w, err, "failed to create case investigation")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"investigation": investigation})
}

func (h *Handler) handleListInvestigations(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid case id", http.StatusBadRequest)
		return
	}
	investigations, err := h.service.ListCaseInvestigations(r.Context(), identityFrom(r), caseID)
	if err != nil {
		writeError(w, err, "failed to list case investigations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": investigations})
}

func (h *Handler) handleDeleteInvestigation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	caseID, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "invalid case id", http.StatusBadRequest)
		return
	}
	invID, err := strconv.ParseInt(vars["invID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid investigation id", http.StatusBadRequest)
		return
	}
	if err := h.service.DeleteCaseInvestigation(r.Context(), identityFrom(r), caseID, invID); err != nil {
		writeError(w, err, "failed to delete case investigation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSearchReference(w http.ResponseWriter, r *http.Request) {
	if group := r.URL.Query().Get("group"); group != "" {
		defs, err := h.library.TestsByGroup(group)
		if err != nil {
			logger.Log.WithError(err).Error("failed to list reference group")
			http.Error(w, "failed to list reference group", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"items": defs})
		return
	}
	limit := parseLimit(r, 25)
	results, err := h.library.Search(r.URL.Query().Get("q"), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to search reference library")
		http.Error(w, "failed to search reference library", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": results})
}

func (h *Handler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.library.Groups()
	if err != nil {
		logger.Log.WithError(err).Error("failed to list reference groups")
		http.Error(w, "failed to list reference groups", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": groups})
}

func (h *Handler) handleReloadReference(w http.ResponseWriter, r *http.Request) {
	if !identityFrom(r).IsAdmin() {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if err := h.library.Reload(); err != nil {
		logger.Log.WithError(err).Error("failed to reload reference library")
		http.Error(w, "failed to reload reference library", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "reloaded"})
}

// identityFrom trusts the gateway-injected identity headers; the gateway
// authenticated the caller upstream.
func identityFrom(r *http.Request) models.Identity {
	return models.Identity{
		UserID: r.Header.Get("X-User-ID"),
		Role:   r.Header.Get("X-User-Role"),
	}
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrAccessDenied):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrConfiguration):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrDuplicateBatch):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Log.WithError(err).Error(fallback)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
