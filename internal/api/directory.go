package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/polica/internal/store"
)

// DirectoryHandler handles the cabinet and shelf endpoints.
type DirectoryHandler struct {
	DB *sql.DB
}

type cabinetRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type shelfRequest struct {
	Code      string `json:"code"`
	CabinetID int64  `json:"cabinet_id"`
}

// ListCabinets handles GET /api/cabinets.
func (h *DirectoryHandler) ListCabinets(w http.ResponseWriter, r *http.Request) {
	cabinets, err := store.ListCabinets(r.Context(), h.DB)
	if err != nil {
		storeError(w, r, err, "list cabinets")
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(cabinets))
}

// CreateCabinet handles POST /api/cabinets.
func (h *DirectoryHandler) CreateCabinet(w http.ResponseWriter, r *http.Request) {
	var req cabinetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := store.CreateCabinet(r.Context(), h.DB, req.Name, req.Description)
	if err != nil {
		storeError(w, r, err, "create cabinet")
		return
	}

	slog.Info("cabinet created", "user", actor(r), "cabinet", c.Name)
	jsonResponse(w, http.StatusCreated, c)
}

// GetCabinet handles GET /api/cabinets/{id}.
func (h *DirectoryHandler) GetCabinet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "cabinet")
	if !ok {
		return
	}
	c, err := store.GetCabinet(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get cabinet")
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// UpdateCabinet handles PUT /api/cabinets/{id}.
func (h *DirectoryHandler) UpdateCabinet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "cabinet")
	if !ok {
		return
	}

	var req cabinetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.UpdateCabinet(r.Context(), h.DB, id, req.Name, req.Description); err != nil {
		storeError(w, r, err, "update cabinet")
		return
	}

	c, err := store.GetCabinet(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get cabinet")
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// DeleteCabinet handles DELETE /api/cabinets/{id}.
func (h *DirectoryHandler) DeleteCabinet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "cabinet")
	if !ok {
		return
	}
	if err := store.DeleteCabinet(r.Context(), h.DB, id); err != nil {
		storeError(w, r, err, "delete cabinet")
		return
	}

	slog.Info("cabinet deleted", "user", actor(r), "cabinet_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "cabinet deleted"})
}

// ListShelves handles GET /api/shelves?cabinet_id=.
func (h *DirectoryHandler) ListShelves(w http.ResponseWriter, r *http.Request) {
	cabinetID, err := queryID(r, "cabinet_id")
	if err != nil {
		storeError(w, r, err, "list shelves")
		return
	}

	shelves, err := store.ListShelves(r.Context(), h.DB, cabinetID)
	if err != nil {
		storeError(w, r, err, "list shelves")
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(shelves))
}

// ShelfStats handles GET /api/shelves/stats.
func (h *DirectoryHandler) ShelfStats(w http.ResponseWriter, r *http.Request) {
	stats, err := store.ListShelfStats(r.Context(), h.DB)
	if err != nil {
		storeError(w, r, err, "list shelf stats")
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(stats))
}

// CreateShelf handles POST /api/shelves.
func (h *DirectoryHandler) CreateShelf(w http.ResponseWriter, r *http.Request) {
	var req shelfRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := store.CreateShelf(r.Context(), h.DB, req.CabinetID, req.Code)
	if err != nil {
		storeError(w, r, err, "create shelf")
		return
	}

	slog.Info("shelf created", "user", actor(r), "cabinet", s.CabinetName, "shelf", s.Code)
	jsonResponse(w, http.StatusCreated, s)
}

// GetShelf handles GET /api/shelves/{id}.
func (h *DirectoryHandler) GetShelf(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "shelf")
	if !ok {
		return
	}
	s, err := store.GetShelf(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get shelf")
		return
	}
	jsonResponse(w, http.StatusOK, s)
}

// UpdateShelf handles PUT /api/shelves/{id}.
func (h *DirectoryHandler) UpdateShelf(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "shelf")
	if !ok {
		return
	}

	var req shelfRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.UpdateShelf(r.Context(), h.DB, id, req.CabinetID, req.Code); err != nil {
		storeError(w, r, err, "update shelf")
		return
	}

	s, err := store.GetShelf(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get shelf")
		return
	}
	jsonResponse(w, http.StatusOK, s)
}

// DeleteShelf handles DELETE /api/shelves/{id}.
func (h *DirectoryHandler) DeleteShelf(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "shelf")
	if !ok {
		return
	}
	if err := store.DeleteShelf(r.Context(), h.DB, id); err != nil {
		storeError(w, r, err, "delete shelf")
		return
	}

	slog.Info("shelf deleted", "user", actor(r), "shelf_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "shelf deleted"})
}
