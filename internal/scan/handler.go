package scan

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Handler serves the scan endpoint. Responses are deliberately short plain
// text ("Throttled", "Email sent", ...) to stay byte-compatible with the
// tag firmware and QR landing page that call this endpoint.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates the scan HTTP handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// PostScan handles a tag scan and maybe notifies the owner.
// @Summary Report a tag scan
// @Description Resolves the pet and owner, throttles repeated scans within the configured window, and emails the owner when allowed. Every scan past resolution leaves exactly one immutable scan event.
// @Tags scans
// @Accept json
// @Produce plain
// @Param request body scan.ScanRequest true "Scan report"
// @Success 200 {string} string "Email sent | Throttled"
// @Failure 400 {string} string "petId required | Pet has no ownerID | Owner email missing"
// @Failure 404 {string} string "Pet not found | Owner not found"
// @Failure 500 {string} string "Server error | Server misconfigured"
// @Router /scans [post]
func (h *Handler) PostScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.PetID) == "" {
		writeText(w, http.StatusBadRequest, "petId required")
		return
	}
	if req.UA == "" {
		req.UA = r.UserAgent()
	}

	result, err := h.svc.Handle(r.Context(), req)
	if err != nil {
		h.writeFailure(w, req.PetID, err)
		return
	}

	switch result {
	case ResultThrottled:
		writeText(w, http.StatusOK, "Throttled")
	default:
		writeText(w, http.StatusOK, "Email sent")
	}
}

// GetRecentScans lists recent scan events for a pet, newest first.
// @Summary List recent scan events
// @Tags scans
// @Produce json
// @Param petID path string true "Pet ID"
// @Param limit query int false "Max events to return (default 20)"
// @Success 200 {array} scan.ScanEvent
// @Failure 500 {string} string "Server error"
// @Router /pets/{petID}/scans [get]
func (h *Handler) GetRecentScans(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "petID")

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.svc.store.RecentScans(r.Context(), petID, limit)
	if err != nil {
		h.logger.Error("List recent scans failed", "pet_id", petID, "error", err)
		writeText(w, http.StatusInternalServerError, "Server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (h *Handler) writeFailure(w http.ResponseWriter, petID string, err error) {
	switch {
	case errors.Is(err, ErrPetNotFound):
		writeText(w, http.StatusNotFound, "Pet not found")
	case errors.Is(err, ErrNoOwnerLink):
		writeText(w, http.StatusBadRequest, "Pet has no ownerID")
	case errors.Is(err, ErrOwnerNotFound):
		writeText(w, http.StatusNotFound, "Owner not found")
	case errors.Is(err, ErrNoOwnerEmail):
		writeText(w, http.StatusBadRequest, "Owner email missing")
	case errors.Is(err, ErrNotConfigured):
		h.logger.Error("Scan rejected: no mail transport configured", "pet_id", petID)
		writeText(w, http.StatusInternalServerError, "Server misconfigured")
	default:
		h.logger.Error("Scan failed", "pet_id", petID, "error", err)
		writeText(w, http.StatusInternalServerError, "Server error")
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
