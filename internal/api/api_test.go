package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/polica/internal/auth"
	"github.com/erazemk/polica/internal/batch"
	"github.com/erazemk/polica/internal/clock"
	"github.com/erazemk/polica/internal/db"
	"github.com/erazemk/polica/internal/model"
	"github.com/erazemk/polica/internal/store"
)

var (
	testJWTSecret = []byte("test-secret")
	testNow       = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
)

func setupTestServer(t *testing.T) (*httptest.Server, *sql.DB, string) {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(database, testJWTSecret, Options{Clock: clock.NewFixed(testNow)})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// Create admin user.
	createUser(t, database, "admin", model.RoleAdmin)
	token := login(t, server, "admin", "password")
	return server, database, token
}

func createUser(t *testing.T, database *sql.DB, username, role string) *model.User {
	t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	u, err := store.CreateUser(context.Background(), database, store.NewUser{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func login(t *testing.T, server *httptest.Server, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp loginResponse
	json.NewDecoder(resp.Body).Decode(&loginResp)
	if loginResp.Token == "" {
		t.Fatal("empty token from login")
	}
	return loginResp.Token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// call sends an authenticated request, checks the status and decodes the
// body into out when out is not nil.
func call(t *testing.T, method, url, token string, body any, want int, out any) {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var e map[string]string
		json.NewDecoder(resp.Body).Decode(&e)
		t.Fatalf("%s %s: expected %d, got %d (%s)", method, url, want, resp.StatusCode, e["error"])
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, url, err)
		}
	}
}

// library is a shelf with two locations plus the reference rows a lending
// needs.
type library struct {
	shelf     model.Shelf
	locations []model.Location
	edition   model.Edition
	reader    model.Reader
	employee  model.Employee
}

func seedLibrary(t *testing.T, url, token string) library {
	t.Helper()
	var lib library

	var cabinet model.Cabinet
	call(t, "POST", url+"/api/cabinets", token, map[string]string{"name": "Reading room"}, http.StatusCreated, &cabinet)
	call(t, "POST", url+"/api/shelves", token, map[string]any{"code": "A1", "cabinet_id": cabinet.ID}, http.StatusCreated, &lib.shelf)
	call(t, "POST", fmt.Sprintf("%s/api/shelves/%d/locations", url, lib.shelf.ID), token,
		map[string]int{"quantity": 2}, http.StatusCreated, &lib.locations)
	call(t, "POST", url+"/api/editions", token, map[string]any{"title": "Dune", "year": 1965}, http.StatusCreated, &lib.edition)
	call(t, "POST", url+"/api/readers", token, map[string]string{"name": "Ana Novak"}, http.StatusCreated, &lib.reader)
	call(t, "POST", url+"/api/employees", token, map[string]string{"name": "Marko Kos"}, http.StatusCreated, &lib.employee)

	if len(lib.locations) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(lib.locations))
	}
	return lib
}

func TestLoginEndpoint(t *testing.T) {
	server, _, _ := setupTestServer(t)

	// Test invalid credentials.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	body, _ = json.Marshal(map[string]string{"username": "nobody", "password": "password"})
	resp, _ = http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown user, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnauthenticatedAccess(t *testing.T) {
	server, _, _ := setupTestServer(t)

	resp, _ := http.Get(server.URL + "/api/copybooks")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	call(t, "GET", server.URL+"/api/locations", "garbage", nil, http.StatusUnauthorized, nil)
}

func TestHealthIsPublic(t *testing.T) {
	server, _, _ := setupTestServer(t)

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRoleBasedAccess(t *testing.T) {
	server, database, _ := setupTestServer(t)

	u := createUser(t, database, "user1", model.RoleUser)
	userToken, _ := auth.GenerateToken(testJWTSecret, u, testNow)

	// Regular users read but do not edit the directory.
	call(t, "GET", server.URL+"/api/cabinets", userToken, nil, http.StatusOK, nil)
	call(t, "POST", server.URL+"/api/cabinets", userToken, map[string]string{"name": "Test"}, http.StatusForbidden, nil)
	call(t, "POST", server.URL+"/api/copybooks/batch", userToken, map[string]any{"edition_id": 1, "quantity": 1}, http.StatusForbidden, nil)

	// Regular user should not access /api/users.
	call(t, "GET", server.URL+"/api/users", userToken, nil, http.StatusForbidden, nil)
}

func TestLogoutRevokesToken(t *testing.T) {
	server, _, token := setupTestServer(t)

	call(t, "POST", server.URL+"/api/auth/logout", token, nil, http.StatusOK, nil)
	call(t, "GET", server.URL+"/api/cabinets", token, nil, http.StatusUnauthorized, nil)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	server, _, token := setupTestServer(t)

	call(t, "PUT", server.URL+"/api/auth/password", token, map[string]string{
		"current_password": "not-it-at-all",
		"new_password":     "long-enough-pass",
	}, http.StatusForbidden, nil)

	call(t, "PUT", server.URL+"/api/auth/password", token, map[string]string{
		"current_password": "password",
		"new_password":     "long-enough-pass",
	}, http.StatusOK, nil)
	login(t, server, "admin", "long-enough-pass")
}

func TestBatchCopiesAPI(t *testing.T) {
	server, _, token := setupTestServer(t)
	lib := seedLibrary(t, server.URL, token)

	var report batch.Report[batch.CopyResult]
	call(t, "POST", server.URL+"/api/copybooks/batch", token, map[string]any{
		"edition_id": lib.edition.ID,
		"quantity":   3,
		"shelf_ids":  []int64{lib.shelf.ID},
	}, http.StatusOK, &report)

	if report.Created != 3 || report.Failed != 0 {
		t.Fatalf("expected 3 created, 0 failed, got %s", report)
	}
	if report.ID == "" {
		t.Error("expected a batch id")
	}
	if report.Items[2].Value.Assignment.LocationID != nil {
		t.Error("expected the third copy to stay unplaced")
	}

	var free []model.Location
	call(t, "GET", fmt.Sprintf("%s/api/locations?shelf_id=%d&free=true", server.URL, lib.shelf.ID), token, nil, http.StatusOK, &free)
	if len(free) != 0 {
		t.Errorf("expected no free locations, got %d", len(free))
	}

	var stats []model.ShelfStats
	call(t, "GET", server.URL+"/api/shelves/stats", token, nil, http.StatusOK, &stats)
	if len(stats) != 1 {
		t.Fatalf("expected 1 shelf in stats, got %d", len(stats))
	}

	call(t, "POST", server.URL+"/api/copybooks/batch", token, map[string]any{
		"edition_id": lib.edition.ID,
		"quantity":   1,
		"status":     "issued",
	}, http.StatusBadRequest, nil)

	call(t, "POST", server.URL+"/api/copybooks/batch", token, map[string]any{
		"edition_id": lib.edition.ID,
		"quantity":   int64(1) << 62,
	}, http.StatusBadRequest, nil)
	call(t, "POST", server.URL+"/api/copybooks/batch", token, map[string]any{
		"edition_id": lib.edition.ID,
		"quantity":   model.MaxCopiesPerBatch + 1,
	}, http.StatusBadRequest, nil)

	call(t, "POST", server.URL+"/api/copybooks/batch", token, map[string]any{
		"edition_id": lib.edition.ID,
		"quantity":   2,
		"shelf_ids":  []int64{lib.shelf.ID, 9999},
	}, http.StatusNotFound, nil)
	call(t, "GET", server.URL+"/api/locations?shelf_id=9999", token, nil, http.StatusNotFound, nil)

	var copies []model.Copybook
	call(t, "GET", fmt.Sprintf("%s/api/copybooks?edition_id=%d", server.URL, lib.edition.ID), token, nil, http.StatusOK, &copies)
	if len(copies) != 3 {
		t.Errorf("expected rejected batches to create nothing, got %d copies", len(copies))
	}
}

func TestLocationClaimAPI(t *testing.T) {
	server, _, token := setupTestServer(t)
	lib := seedLibrary(t, server.URL, token)
	loc := lib.locations[0]

	var a, b model.Copybook
	call(t, "POST", server.URL+"/api/copybooks", token, map[string]any{"edition_id": lib.edition.ID}, http.StatusCreated, &a)
	call(t, "POST", server.URL+"/api/copybooks", token, map[string]any{"edition_id": lib.edition.ID}, http.StatusCreated, &b)

	claimURL := fmt.Sprintf("%s/api/locations/%d/claim", server.URL, loc.ID)
	call(t, "POST", claimURL, token, map[string]int64{"copybook_id": a.ID}, http.StatusOK, nil)
	call(t, "POST", claimURL, token, map[string]int64{"copybook_id": b.ID}, http.StatusConflict, nil)

	// Occupied locations cannot be deleted.
	call(t, "DELETE", fmt.Sprintf("%s/api/locations/%d", server.URL, loc.ID), token, nil, http.StatusConflict, nil)

	releaseURL := fmt.Sprintf("%s/api/locations/%d/release", server.URL, loc.ID)
	call(t, "POST", releaseURL, token, nil, http.StatusOK, nil)
	call(t, "POST", releaseURL, token, nil, http.StatusOK, nil)
	call(t, "POST", claimURL, token, map[string]int64{"copybook_id": b.ID}, http.StatusOK, nil)

	// Relocating a copy into an occupied slot fails.
	call(t, "PUT", fmt.Sprintf("%s/api/copybooks/%d/location", server.URL, a.ID), token,
		map[string]any{"location_id": loc.ID}, http.StatusConflict, nil)

	var moved model.Copybook
	call(t, "PUT", fmt.Sprintf("%s/api/copybooks/%d/location", server.URL, a.ID), token,
		map[string]any{"location_id": lib.locations[1].ID}, http.StatusOK, &moved)
	if moved.LocationID == nil || *moved.LocationID != lib.locations[1].ID {
		t.Errorf("expected copy on location %d, got %v", lib.locations[1].ID, moved.LocationID)
	}

	call(t, "POST", fmt.Sprintf("%s/api/locations/%d/claim", server.URL, 999), token,
		map[string]int64{"copybook_id": a.ID}, http.StatusNotFound, nil)
}

func TestLendingFlowAPI(t *testing.T) {
	server, _, token := setupTestServer(t)
	lib := seedLibrary(t, server.URL, token)

	var cb model.Copybook
	call(t, "POST", server.URL+"/api/copybooks", token, map[string]any{
		"edition_id":  lib.edition.ID,
		"location_id": lib.locations[0].ID,
	}, http.StatusCreated, &cb)

	// The admin account has no linked employee.
	call(t, "POST", server.URL+"/api/lendings", token, map[string]any{
		"reader_id":           lib.reader.ID,
		"copybook_ids":        []int64{cb.ID},
		"date_return_planned": "2024-03-01",
	}, http.StatusBadRequest, nil)

	var lending model.Lending
	call(t, "POST", server.URL+"/api/lendings", token, map[string]any{
		"reader_id":           lib.reader.ID,
		"employee_id":         lib.employee.ID,
		"copybook_ids":        []int64{cb.ID},
		"date_lending":        "2024-02-20",
		"date_return_planned": "2024-03-01",
	}, http.StatusCreated, &lending)

	copyURL := fmt.Sprintf("%s/api/copybooks/%d", server.URL, cb.ID)
	var issued model.Copybook
	call(t, "GET", copyURL, token, nil, http.StatusOK, &issued)
	if issued.Status != model.StatusIssued {
		t.Errorf("expected issued, got %s", issued.Status)
	}

	// Second checkout of the same copy fails.
	call(t, "POST", server.URL+"/api/lendings", token, map[string]any{
		"reader_id":           lib.reader.ID,
		"employee_id":         lib.employee.ID,
		"copybook_ids":        []int64{cb.ID},
		"date_return_planned": "2024-03-20",
	}, http.StatusConflict, nil)

	// Open lendings hold the status.
	call(t, "PUT", copyURL+"/status", token, map[string]string{"status": "restoring"}, http.StatusConflict, nil)
	call(t, "DELETE", copyURL, token, nil, http.StatusConflict, nil)

	var held model.Lending
	call(t, "GET", copyURL+"/lending", token, nil, http.StatusOK, &held)
	if held.ID != lending.ID {
		t.Errorf("expected lending %d, got %d", lending.ID, held.ID)
	}

	// Due 2024-03-01, today is 2024-03-10.
	var overdue []model.Lending
	call(t, "GET", server.URL+"/api/lendings?status=overdue", token, nil, http.StatusOK, &overdue)
	if len(overdue) != 1 {
		t.Errorf("expected 1 overdue lending, got %d", len(overdue))
	}

	var closed model.Lending
	call(t, "POST", fmt.Sprintf("%s/api/lendings/%d/close", server.URL, lending.ID), token, nil, http.StatusOK, &closed)
	if closed.DateReturn == nil || closed.DateReturn.String() != "2024-03-10" {
		t.Errorf("expected return date 2024-03-10, got %v", closed.DateReturn)
	}
	call(t, "POST", fmt.Sprintf("%s/api/lendings/%d/close", server.URL, lending.ID), token, nil, http.StatusConflict, nil)

	var returned model.Copybook
	call(t, "GET", copyURL, token, nil, http.StatusOK, &returned)
	if returned.Status != model.StatusAvailable {
		t.Errorf("expected available, got %s", returned.Status)
	}
	if returned.LocationID == nil || *returned.LocationID != lib.locations[0].ID {
		t.Error("expected the copy to keep its location")
	}

	call(t, "GET", copyURL+"/lending", token, nil, http.StatusNotFound, nil)
	call(t, "GET", server.URL+"/api/lendings?status=open", token, nil, http.StatusOK, &overdue)
	if len(overdue) != 0 {
		t.Errorf("expected no open lendings, got %d", len(overdue))
	}
	call(t, "GET", server.URL+"/api/lendings?status=late", token, nil, http.StatusBadRequest, nil)
}

func TestLendingEmployeeFromAccount(t *testing.T) {
	server, database, token := setupTestServer(t)
	lib := seedLibrary(t, server.URL, token)

	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if _, err := store.CreateUser(context.Background(), database, store.NewUser{
		Username:     "desk",
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		EmployeeID:   &lib.employee.ID,
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	deskToken := login(t, server, "desk", "password")

	var cb model.Copybook
	call(t, "POST", server.URL+"/api/copybooks", token, map[string]any{"edition_id": lib.edition.ID}, http.StatusCreated, &cb)

	var lending model.Lending
	call(t, "POST", server.URL+"/api/lendings", deskToken, map[string]any{
		"reader_id":           lib.reader.ID,
		"copybook_ids":        []int64{cb.ID},
		"date_return_planned": "2024-03-24",
	}, http.StatusCreated, &lending)

	if lending.EmployeeID != lib.employee.ID {
		t.Errorf("expected employee %d, got %d", lib.employee.ID, lending.EmployeeID)
	}
	if lending.DateLending.String() != "2024-03-10" {
		t.Errorf("expected lending date 2024-03-10, got %s", lending.DateLending)
	}
}

func TestDirectoryAPIFlow(t *testing.T) {
	server, _, token := setupTestServer(t)

	var cabinet model.Cabinet
	call(t, "POST", server.URL+"/api/cabinets", token, map[string]string{"name": "Archive"}, http.StatusCreated, &cabinet)
	call(t, "POST", server.URL+"/api/cabinets", token, map[string]string{"name": ""}, http.StatusBadRequest, nil)

	var shelf model.Shelf
	call(t, "POST", server.URL+"/api/shelves", token, map[string]any{"code": "B2", "cabinet_id": cabinet.ID}, http.StatusCreated, &shelf)
	call(t, "POST", server.URL+"/api/shelves", token, map[string]any{"code": "B3", "cabinet_id": 999}, http.StatusNotFound, nil)

	var shelves []model.Shelf
	call(t, "GET", fmt.Sprintf("%s/api/shelves?cabinet_id=%d", server.URL, cabinet.ID), token, nil, http.StatusOK, &shelves)
	if len(shelves) != 1 {
		t.Errorf("expected 1 shelf, got %d", len(shelves))
	}

	call(t, "GET", server.URL+"/api/shelves/abc", token, nil, http.StatusBadRequest, nil)
	call(t, "POST", fmt.Sprintf("%s/api/shelves/%d/locations", server.URL, shelf.ID), token,
		map[string]int{"quantity": 0}, http.StatusBadRequest, nil)

	call(t, "DELETE", fmt.Sprintf("%s/api/shelves/%d", server.URL, shelf.ID), token, nil, http.StatusOK, nil)
	call(t, "GET", fmt.Sprintf("%s/api/shelves/%d", server.URL, shelf.ID), token, nil, http.StatusNotFound, nil)
}

func TestRateLimit(t *testing.T) {
	database := db.NewTestDB(t)
	router := NewRouter(database, testJWTSecret, Options{
		Clock:   clock.NewFixed(testNow),
		Limiter: LimiterOptions{Enabled: true, RPS: 1, Burst: 1},
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	resp, _ := http.Get(server.URL + "/api/health")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// The fixed clock never refills the bucket.
	resp, _ = http.Get(server.URL + "/api/health")
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestEditionCoverAPI(t *testing.T) {
	server, _, token := setupTestServer(t)

	var edition model.Edition
	call(t, "POST", server.URL+"/api/editions", token, map[string]any{"title": "Dune"}, http.StatusCreated, &edition)
	coverURL := fmt.Sprintf("%s/api/editions/%d/cover", server.URL, edition.ID)

	call(t, "GET", coverURL, token, nil, http.StatusNotFound, nil)

	upload := func(data []byte) int {
		t.Helper()
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, _ := mw.CreateFormFile("cover", "cover.png")
		part.Write(data)
		mw.Close()

		req, _ := http.NewRequest("PUT", coverURL, &body)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if status := upload([]byte("GIF89a...")); status != http.StatusBadRequest {
		t.Errorf("expected 400 for GIF, got %d", status)
	}

	var png1 bytes.Buffer
	png.Encode(&png1, image.NewRGBA(image.Rect(0, 0, 800, 1200)))
	if status := upload(png1.Bytes()); status != http.StatusOK {
		t.Fatalf("expected 200 for PNG, got %d", status)
	}

	req, _ := authRequest("GET", coverURL, token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get cover: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", ct)
	}
}
