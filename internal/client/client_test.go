package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/polica/internal/api"
	"github.com/erazemk/polica/internal/batch"
	"github.com/erazemk/polica/internal/clock"
	"github.com/erazemk/polica/internal/db"
	"github.com/erazemk/polica/internal/model"
	"github.com/erazemk/polica/internal/store"
)

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

// countingServer runs the real API and counts the requests reaching it.
func countingServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	database := db.NewTestDB(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = store.CreateUser(context.Background(), database, store.NewUser{
		Username:     "admin",
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
	})
	require.NoError(t, err)

	router := api.NewRouter(database, []byte("test-secret"), api.Options{Clock: clock.NewFixed(testNow)})
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func loggedIn(t *testing.T) (*Client, *atomic.Int64) {
	t.Helper()
	server, hits := countingServer(t)
	c := New(server.URL)
	_, err := c.Login(context.Background(), "admin", "password")
	require.NoError(t, err)
	require.NotEmpty(t, c.Token())
	return c, hits
}

func seedShelf(t *testing.T, c *Client, slots int) (*model.Shelf, *model.Edition) {
	t.Helper()
	ctx := context.Background()

	cab, err := c.CreateCabinet(ctx, "Reading room", "")
	require.NoError(t, err)
	shelf, err := c.CreateShelf(ctx, cab.ID, "A1")
	require.NoError(t, err)
	if slots > 0 {
		_, err = c.CreateLocations(ctx, shelf.ID, slots)
		require.NoError(t, err)
	}
	ed, err := c.CreateEdition(ctx, "Dune", "", 1965)
	require.NoError(t, err)
	return shelf, ed
}

func Test_Login_With_Wrong_Password(t *testing.T) {
	server, _ := countingServer(t)
	c := New(server.URL)

	_, err := c.Login(context.Background(), "admin", "nope")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, c.Token())
}

func Test_Unauthorized_Is_Session_Invalid_Without_Retry(t *testing.T) {
	server, hits := countingServer(t)
	c := New(server.URL, WithToken("expired"))

	_, err := c.ListCabinets(context.Background())

	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.Equal(t, int64(1), hits.Load())
	assert.Empty(t, c.Token())
}

func Test_Errors_Map_Back_To_Model_Sentinels(t *testing.T) {
	c, _ := loggedIn(t)
	ctx := context.Background()

	_, err := c.CreateCabinet(ctx, "", "")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = c.GetCopybook(ctx, 999)
	assert.ErrorIs(t, err, model.ErrNotFound)

	shelf, ed := seedShelf(t, c, 1)
	locations, err := c.ListLocations(ctx, LocationQuery{ShelfID: shelf.ID})
	require.NoError(t, err)
	require.Len(t, locations, 1)

	_, err = c.CreateCopybook(ctx, ed.ID, model.StatusAvailable, &locations[0].ID)
	require.NoError(t, err)
	_, err = c.CreateCopybook(ctx, ed.ID, model.StatusAvailable, &locations[0].ID)
	assert.ErrorIs(t, err, model.ErrConflict)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.NotEmpty(t, apiErr.Message)
}

func Test_Reads_Are_Cached_Until_A_Write_To_The_Collection(t *testing.T) {
	c, hits := loggedIn(t)
	ctx := context.Background()
	base := hits.Load()

	_, err := c.ListCabinets(ctx)
	require.NoError(t, err)
	_, err = c.ListCabinets(ctx)
	require.NoError(t, err)
	assert.Equal(t, base+1, hits.Load(), "second read served from cache")

	// A write to another collection keeps the entry.
	_, err = c.CreateReader(ctx, "Ana Novak")
	require.NoError(t, err)
	_, err = c.ListCabinets(ctx)
	require.NoError(t, err)
	assert.Equal(t, base+2, hits.Load())

	_, err = c.CreateCabinet(ctx, "Archive", "")
	require.NoError(t, err)
	cabinets, err := c.ListCabinets(ctx)
	require.NoError(t, err)
	assert.Equal(t, base+4, hits.Load())
	assert.Len(t, cabinets, 1)
}

func Test_Claim_Invalidates_Locations_And_Copies(t *testing.T) {
	c, _ := loggedIn(t)
	ctx := context.Background()
	shelf, ed := seedShelf(t, c, 2)

	free, err := c.ListLocations(ctx, LocationQuery{ShelfID: shelf.ID, FreeOnly: true})
	require.NoError(t, err)
	require.Len(t, free, 2)

	cb, err := c.CreateCopybook(ctx, ed.ID, "", nil)
	require.NoError(t, err)
	_, err = c.GetCopybook(ctx, cb.ID)
	require.NoError(t, err)

	claimed := free[0].ID
	_, err = c.ClaimLocation(ctx, claimed, cb.ID)
	require.NoError(t, err)

	free, err = c.ListLocations(ctx, LocationQuery{ShelfID: shelf.ID, FreeOnly: true})
	require.NoError(t, err)
	assert.Len(t, free, 1)

	got, err := c.GetCopybook(ctx, cb.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LocationID)
	assert.Equal(t, claimed, *got.LocationID)
}

func Test_Client_Side_Batch_Creation(t *testing.T) {
	c, _ := loggedIn(t)
	ctx := context.Background()
	shelf, ed := seedShelf(t, c, 2)

	report, err := batch.CreateCopies(ctx, c, batch.CopiesRequest{
		EditionID: ed.ID,
		Quantity:  3,
		ShelfIDs:  []int64{shelf.ID},
	}, 2)
	require.NoError(t, err)

	assert.Equal(t, "3 created, 0 failed", report.String())
	stats, err := c.ShelfStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 0, stats[0].Free)
	assert.Equal(t, 2, stats[0].Occupied)

	_, err = batch.CreateCopies(ctx, c, batch.CopiesRequest{
		EditionID: ed.ID,
		Quantity:  1,
		ShelfIDs:  []int64{9999},
	}, 2)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func Test_Server_Side_Batch_Creation(t *testing.T) {
	c, _ := loggedIn(t)
	ctx := context.Background()
	shelf, ed := seedShelf(t, c, 1)

	report, err := c.CreateCopies(ctx, batch.CopiesRequest{
		EditionID: ed.ID,
		Quantity:  2,
		ShelfIDs:  []int64{shelf.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Created)
	assert.NotEmpty(t, report.ID)
	copies, err := c.ListCopybooks(ctx, CopybookQuery{ShelfID: shelf.ID})
	require.NoError(t, err)
	assert.Len(t, copies, 1)
}

func Test_Lending_Round_Trip(t *testing.T) {
	c, _ := loggedIn(t)
	ctx := context.Background()
	_, ed := seedShelf(t, c, 0)

	reader, err := c.CreateReader(ctx, "Ana Novak")
	require.NoError(t, err)
	employee, err := c.CreateEmployee(ctx, "Marko Kos")
	require.NoError(t, err)
	cb, err := c.CreateCopybook(ctx, ed.ID, model.StatusAvailable, nil)
	require.NoError(t, err)

	lending, err := c.CreateLending(ctx, NewLending{
		ReaderID:          reader.ID,
		EmployeeID:        employee.ID,
		CopybookIDs:       []int64{cb.ID},
		DateReturnPlanned: model.MustDate("2024-03-24"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", lending.DateLending.String())

	got, err := c.GetCopybook(ctx, cb.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusIssued, got.Status)

	held, err := c.OpenLendingFor(ctx, cb.ID)
	require.NoError(t, err)
	assert.Equal(t, lending.ID, held.ID)

	closed, err := c.CloseLending(ctx, lending.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, closed.DateReturn)

	got, err = c.GetCopybook(ctx, cb.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, got.Status)

	open, err := c.ListLendings(ctx, LendingQuery{Status: "open"})
	require.NoError(t, err)
	assert.Empty(t, open)
}

func Test_Logout_Ends_Session(t *testing.T) {
	c, _ := loggedIn(t)
	token := c.Token()
	ctx := context.Background()

	require.NoError(t, c.Logout(ctx))
	assert.Empty(t, c.Token())

	stale := New(c.baseURL, WithToken(token))
	_, err := stale.ListCabinets(ctx)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}
