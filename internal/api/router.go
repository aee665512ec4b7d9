package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/polica/internal/clock"
	"github.com/erazemk/polica/internal/model"
)

// Options tune the router. The zero value is usable.
type Options struct {
	Clock            clock.Clock
	Limiter          LimiterOptions
	BatchConcurrency int
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret []byte, opts Options) http.Handler {
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret, Clock: opts.Clock}
	usersHandler := &UsersHandler{DB: db}
	directoryHandler := &DirectoryHandler{DB: db}
	locationsHandler := &LocationsHandler{DB: db}
	copybooksHandler := &CopybooksHandler{DB: db, BatchConcurrency: opts.BatchConcurrency}
	lendingsHandler := &LendingsHandler{DB: db, Clock: opts.Clock}
	referencesHandler := &ReferencesHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db, opts.Clock)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	anyone := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	manager := func(h http.HandlerFunc) http.Handler { return authMW(requireManager(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/health", Health(db))

	mux.Handle("PUT /api/auth/password", anyone(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", anyone(authHandler.Logout))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Cabinets and shelves: read (all roles), write (manager+).
	mux.Handle("GET /api/cabinets", anyone(directoryHandler.ListCabinets))
	mux.Handle("POST /api/cabinets", manager(directoryHandler.CreateCabinet))
	mux.Handle("GET /api/cabinets/{id}", anyone(directoryHandler.GetCabinet))
	mux.Handle("PUT /api/cabinets/{id}", manager(directoryHandler.UpdateCabinet))
	mux.Handle("DELETE /api/cabinets/{id}", manager(directoryHandler.DeleteCabinet))

	mux.Handle("GET /api/shelves", anyone(directoryHandler.ListShelves))
	mux.Handle("GET /api/shelves/stats", anyone(directoryHandler.ShelfStats))
	mux.Handle("POST /api/shelves", manager(directoryHandler.CreateShelf))
	mux.Handle("GET /api/shelves/{id}", anyone(directoryHandler.GetShelf))
	mux.Handle("PUT /api/shelves/{id}", manager(directoryHandler.UpdateShelf))
	mux.Handle("DELETE /api/shelves/{id}", manager(directoryHandler.DeleteShelf))
	mux.Handle("POST /api/shelves/{id}/locations", manager(locationsHandler.CreateBulk))

	// Locations.
	mux.Handle("GET /api/locations", anyone(locationsHandler.List))
	mux.Handle("GET /api/locations/{id}", anyone(locationsHandler.Get))
	mux.Handle("PUT /api/locations/{id}", manager(locationsHandler.Update))
	mux.Handle("DELETE /api/locations/{id}", manager(locationsHandler.Delete))
	mux.Handle("POST /api/locations/{id}/claim", manager(locationsHandler.Claim))
	mux.Handle("POST /api/locations/{id}/release", manager(locationsHandler.Release))

	// Copybooks.
	mux.Handle("GET /api/copybooks", anyone(copybooksHandler.List))
	mux.Handle("POST /api/copybooks", manager(copybooksHandler.Create))
	mux.Handle("POST /api/copybooks/batch", manager(copybooksHandler.Batch))
	mux.Handle("GET /api/copybooks/{id}", anyone(copybooksHandler.Get))
	mux.Handle("DELETE /api/copybooks/{id}", manager(copybooksHandler.Delete))
	mux.Handle("PUT /api/copybooks/{id}/status", manager(copybooksHandler.UpdateStatus))
	mux.Handle("PUT /api/copybooks/{id}/location", manager(copybooksHandler.Relocate))
	mux.Handle("GET /api/copybooks/{id}/lending", anyone(copybooksHandler.OpenLending))

	// Lendings (all roles).
	mux.Handle("GET /api/lendings", anyone(lendingsHandler.List))
	mux.Handle("POST /api/lendings", anyone(lendingsHandler.Create))
	mux.Handle("GET /api/lendings/{id}", anyone(lendingsHandler.Get))
	mux.Handle("POST /api/lendings/{id}/close", anyone(lendingsHandler.Close))

	// Reference data: read (all roles), write (manager+).
	mux.Handle("GET /api/editions", anyone(referencesHandler.ListEditions))
	mux.Handle("POST /api/editions", manager(referencesHandler.CreateEdition))
	mux.Handle("GET /api/editions/{id}", anyone(referencesHandler.GetEdition))
	mux.Handle("PUT /api/editions/{id}/cover", manager(referencesHandler.UploadCover))
	mux.Handle("GET /api/editions/{id}/cover", anyone(referencesHandler.GetCover))
	mux.Handle("GET /api/readers", anyone(referencesHandler.ListReaders))
	mux.Handle("POST /api/readers", manager(referencesHandler.CreateReader))
	mux.Handle("GET /api/readers/{id}", anyone(referencesHandler.GetReader))
	mux.Handle("GET /api/employees", anyone(referencesHandler.ListEmployees))
	mux.Handle("POST /api/employees", manager(referencesHandler.CreateEmployee))
	mux.Handle("GET /api/employees/{id}", anyone(referencesHandler.GetEmployee))

	return LoggingMiddleware(RateLimitMiddleware(opts.Limiter, opts.Clock)(mux))
}
