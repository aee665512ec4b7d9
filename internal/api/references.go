package api

import (
	"database/sql"
	"io"
	"log/slog"
	"net/http"

	"github.com/erazemk/polica/internal/imaging"
	"github.com/erazemk/polica/internal/store"
)

// ReferencesHandler serves editions, readers and employees.
type ReferencesHandler struct {
	DB *sql.DB
}

type editionRequest struct {
	Title string `json:"title"`
	ISBN  string `json:"isbn"`
	Year  int    `json:"year"`
}

type nameRequest struct {
	Name string `json:"name"`
}

// ListEditions handles GET /api/editions.
func (h *ReferencesHandler) ListEditions(w http.ResponseWriter, r *http.Request) {
	editions, err := store.ListEditions(r.Context(), h.DB)
	if err != nil {
		storeError(w, r, err, "list editions")
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(editions))
}

// CreateEdition handles POST /api/editions.
func (h *ReferencesHandler) CreateEdition(w http.ResponseWriter, r *http.Request) {
	var req editionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := store.CreateEdition(r.Context(), h.DB, req.Title, req.ISBN, req.Year)
	if err != nil {
		storeError(w, r, err, "create edition")
		return
	}

	slog.Info("edition created", "user", actor(r), "edition", e.Title)
	jsonResponse(w, http.StatusCreated, e)
}

// GetEdition handles GET /api/editions/{id}.
func (h *ReferencesHandler) GetEdition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "edition")
	if !ok {
		return
	}
	e, err := store.GetEdition(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get edition")
		return
	}
	jsonResponse(w, http.StatusOK, e)
}

// UploadCover handles PUT /api/editions/{id}/cover. The multipart field
// "cover" holds a JPEG or PNG; it is stored shrunk and as JPEG.
func (h *ReferencesHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "edition")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<10)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("cover")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "cover file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "failed to read cover")
		return
	}

	cover, err := imaging.ProcessCover(data)
	if err != nil {
		storeError(w, r, err, "process cover")
		return
	}
	if err := store.SetEditionCover(r.Context(), h.DB, id, cover.Data, cover.MIME); err != nil {
		storeError(w, r, err, "save cover")
		return
	}

	slog.Info("edition cover uploaded", "user", actor(r), "edition_id", id, "width", cover.Width, "height", cover.Height)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "cover uploaded"})
}

// GetCover handles GET /api/editions/{id}/cover.
func (h *ReferencesHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "edition")
	if !ok {
		return
	}

	data, mime, err := store.GetEditionCover(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get cover")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// ListReaders handles GET /api/readers.
func (h *ReferencesHandler) ListReaders(w http.ResponseWriter, r *http.Request) {
	readers, err := store.ListReaders(r.Context(), h.DB)
	if err != nil {
		storeError(w, r, err, "list readers")
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(readers))
}

// CreateReader handles POST /api/readers.
func (h *ReferencesHandler) CreateReader(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reader, err := store.CreateReader(r.Context(), h.DB, req.Name)
	if err != nil {
		storeError(w, r, err, "create reader")
		return
	}

	slog.Info("reader created", "user", actor(r), "reader_id", reader.ID)
	jsonResponse(w, http.StatusCreated, reader)
}

// GetReader handles GET /api/readers/{id}.
func (h *ReferencesHandler) GetReader(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "reader")
	if !ok {
		return
	}
	reader, err := store.GetReader(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get reader")
		return
	}
	jsonResponse(w, http.StatusOK, reader)
}

// ListEmployees handles GET /api/employees.
func (h *ReferencesHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := store.ListEmployees(r.Context(), h.DB)
	if err != nil {
		storeError(w, r, err, "list employees")
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(employees))
}

// CreateEmployee handles POST /api/employees.
func (h *ReferencesHandler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := store.CreateEmployee(r.Context(), h.DB, req.Name)
	if err != nil {
		storeError(w, r, err, "create employee")
		return
	}

	slog.Info("employee created", "user", actor(r), "employee", e.Name)
	jsonResponse(w, http.StatusCreated, e)
}

// GetEmployee handles GET /api/employees/{id}.
func (h *ReferencesHandler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "employee")
	if !ok {
		return
	}
	e, err := store.GetEmployee(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get employee")
		return
	}
	jsonResponse(w, http.StatusOK, e)
}

// Health handles GET /api/health.
func Health(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			slog.Error("health check failed", "error", err)
			jsonError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
