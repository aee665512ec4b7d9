package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/polica/internal/clock"
	"github.com/erazemk/polica/internal/model"
	"github.com/erazemk/polica/internal/store"
)

// LendingsHandler handles checkout and return endpoints.
type LendingsHandler struct {
	DB    *sql.DB
	Clock clock.Clock
}

type createLendingRequest struct {
	ReaderID          int64       `json:"reader_id"`
	EmployeeID        int64       `json:"employee_id"`
	CopybookIDs       []int64     `json:"copybook_ids"`
	DateLending       *model.Date `json:"date_lending"`
	DateReturnPlanned *model.Date `json:"date_return_planned"`
}

type closeLendingRequest struct {
	DateReturn *model.Date `json:"date_return"`
}

// List handles GET /api/lendings?status=open|overdue&reader_id=.
func (h *LendingsHandler) List(w http.ResponseWriter, r *http.Request) {
	var f store.LendingFilter
	switch r.URL.Query().Get("status") {
	case "":
	case "open":
		f.OpenOnly = true
	case "overdue":
		today := model.NewDate(h.Clock.Now())
		f.OverdueAsOf = &today
	default:
		jsonError(w, http.StatusBadRequest, "status must be open or overdue")
		return
	}

	var err error
	if f.ReaderID, err = queryID(r, "reader_id"); err != nil {
		storeError(w, r, err, "list lendings")
		return
	}

	lendings, err := store.ListLendings(r.Context(), h.DB, f)
	if err != nil {
		storeError(w, r, err, "list lendings")
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(lendings))
}

// Create handles POST /api/lendings. The employee defaults to the one linked
// to the caller's account and the lending date to today.
func (h *LendingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLendingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DateReturnPlanned == nil {
		jsonError(w, http.StatusBadRequest, "date_return_planned required")
		return
	}

	in := store.NewLending{
		ReaderID:          req.ReaderID,
		EmployeeID:        req.EmployeeID,
		CopybookIDs:       req.CopybookIDs,
		DateLending:       model.NewDate(h.Clock.Now()),
		DateReturnPlanned: *req.DateReturnPlanned,
	}
	if req.DateLending != nil {
		in.DateLending = *req.DateLending
	}
	if in.EmployeeID == 0 {
		if claims := GetClaims(r.Context()); claims != nil && claims.EmployeeID != nil {
			in.EmployeeID = *claims.EmployeeID
		}
	}

	l, err := store.CreateLending(r.Context(), h.DB, in)
	if err != nil {
		storeError(w, r, err, "create lending")
		return
	}

	slog.Info("lending created",
		"user", actor(r),
		"lending_id", l.ID,
		"reader_id", l.ReaderID,
		"copies", len(l.Items),
		"due", l.DateReturnPlanned.String(),
	)
	jsonResponse(w, http.StatusCreated, l)
}

// Get handles GET /api/lendings/{id}.
func (h *LendingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "lending")
	if !ok {
		return
	}
	l, err := store.GetLending(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "get lending")
		return
	}
	jsonResponse(w, http.StatusOK, l)
}

// Close handles POST /api/lendings/{id}/close. The return date defaults to
// today and the body may be empty.
func (h *LendingsHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "lending")
	if !ok {
		return
	}

	var req closeLendingRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	returned := model.NewDate(h.Clock.Now())
	if req.DateReturn != nil {
		returned = *req.DateReturn
	}

	l, err := store.CloseLending(r.Context(), h.DB, id, returned)
	if err != nil {
		storeError(w, r, err, "close lending")
		return
	}

	slog.Info("lending closed", "user", actor(r), "lending_id", id, "returned", returned.String())
	jsonResponse(w, http.StatusOK, l)
}
