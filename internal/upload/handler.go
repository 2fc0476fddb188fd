package upload

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/X-404JPG/furtagph/internal/api/respond"
)

// Handler serves the upload endpoint.
type Handler struct {
	uploader Uploader
	logger   *slog.Logger
}

// NewHandler creates the upload HTTP handler.
func NewHandler(uploader Uploader, logger *slog.Logger) *Handler {
	return &Handler{uploader: uploader, logger: logger}
}

type uploadRequest struct {
	ImageBase64 string `json:"imageBase64"`
	UserID      string `json:"userId,omitempty"`
	PetID       string `json:"petId,omitempty"`
}

// PostUpload stores a pet image and returns its URL.
// @Summary Upload a pet image
// @Description Stores a base64 data URL image in object storage and returns the stored-object URL. Pure pass-through.
// @Tags uploads
// @Accept json
// @Produce json
// @Success 200 {object} upload.Result
// @Failure 400 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /uploads [post]
func (h *Handler) PostUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_JSON", "invalid JSON body")
		return
	}
	if req.ImageBase64 == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_IMAGE", "Missing imageBase64")
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = "anon"
	}
	folder := fmt.Sprintf("furtagph/pets/%s", userID)

	var publicID string
	if req.PetID != "" {
		publicID = fmt.Sprintf("%s-%d", req.PetID, time.Now().UnixMilli())
	}

	result, err := h.uploader.Upload(r.Context(), req.ImageBase64, folder, publicID)
	if err != nil {
		h.logger.Error("Image upload failed", "pet_id", req.PetID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "image upload failed")
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, result)
}
