package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/erazemk/polica/internal/model"
)

// ListCabinets returns all cabinets.
func (c *Client) ListCabinets(ctx context.Context) ([]model.Cabinet, error) {
	var cabinets []model.Cabinet
	return cabinets, c.get(ctx, collCabinets, "/api/cabinets", &cabinets)
}

// CreateCabinet creates a cabinet.
func (c *Client) CreateCabinet(ctx context.Context, name, description string) (*model.Cabinet, error) {
	var cab model.Cabinet
	err := c.send(ctx, http.MethodPost, "/api/cabinets",
		map[string]string{"name": name, "description": description}, &cab, collCabinets)
	if err != nil {
		return nil, err
	}
	return &cab, nil
}

// ListShelves returns the shelves of one cabinet, or all when cabinetID is 0.
func (c *Client) ListShelves(ctx context.Context, cabinetID int64) ([]model.Shelf, error) {
	path := "/api/shelves"
	if cabinetID > 0 {
		path += "?cabinet_id=" + strconv.FormatInt(cabinetID, 10)
	}
	var shelves []model.Shelf
	return shelves, c.get(ctx, collShelves, path, &shelves)
}

// ShelfStats returns slot counts for every shelf.
func (c *Client) ShelfStats(ctx context.Context) ([]model.ShelfStats, error) {
	var stats []model.ShelfStats
	return stats, c.get(ctx, collShelves, "/api/shelves/stats", &stats)
}

// CreateShelf creates a shelf in a cabinet.
func (c *Client) CreateShelf(ctx context.Context, cabinetID int64, code string) (*model.Shelf, error) {
	var s model.Shelf
	err := c.send(ctx, http.MethodPost, "/api/shelves",
		map[string]any{"cabinet_id": cabinetID, "code": code}, &s, collShelves)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// LocationQuery narrows ListLocations.
type LocationQuery struct {
	ShelfID  int64
	FreeOnly bool
}

func (q LocationQuery) path() string {
	v := url.Values{}
	if q.ShelfID > 0 {
		v.Set("shelf_id", strconv.FormatInt(q.ShelfID, 10))
	}
	if q.FreeOnly {
		v.Set("free", "true")
	}
	if len(v) == 0 {
		return "/api/locations"
	}
	return "/api/locations?" + v.Encode()
}

// ListLocations returns locations ordered by ID.
func (c *Client) ListLocations(ctx context.Context, q LocationQuery) ([]model.Location, error) {
	var locations []model.Location
	return locations, c.get(ctx, collLocations, q.path(), &locations)
}

// CreateLocations adds quantity empty locations to a shelf.
func (c *Client) CreateLocations(ctx context.Context, shelfID int64, quantity int) ([]model.Location, error) {
	var locations []model.Location
	err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/shelves/%d/locations", shelfID),
		map[string]int{"quantity": quantity}, &locations, collLocations, collShelves)
	return locations, err
}

// MoveLocation puts a location, and any copy on it, on another shelf.
func (c *Client) MoveLocation(ctx context.Context, locationID, shelfID int64) (*model.Location, error) {
	var l model.Location
	err := c.send(ctx, http.MethodPut, fmt.Sprintf("/api/locations/%d", locationID),
		map[string]int64{"shelf_id": shelfID}, &l, collLocations, collShelves, collCopybooks)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteLocation deletes an empty location.
func (c *Client) DeleteLocation(ctx context.Context, locationID int64) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/locations/%d", locationID),
		nil, nil, collLocations, collShelves)
}

// ClaimLocation puts a copy on a free location.
func (c *Client) ClaimLocation(ctx context.Context, locationID, copybookID int64) (*model.Location, error) {
	var l model.Location
	err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/locations/%d/claim", locationID),
		map[string]int64{"copybook_id": copybookID}, &l, collLocations, collShelves, collCopybooks)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ReleaseLocation empties a location. Releasing a free location succeeds.
func (c *Client) ReleaseLocation(ctx context.Context, locationID int64) (*model.Location, error) {
	var l model.Location
	err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/locations/%d/release", locationID),
		nil, &l, collLocations, collShelves, collCopybooks)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListEditions returns all editions.
func (c *Client) ListEditions(ctx context.Context) ([]model.Edition, error) {
	var editions []model.Edition
	return editions, c.get(ctx, collEditions, "/api/editions", &editions)
}

// CreateEdition creates an edition.
func (c *Client) CreateEdition(ctx context.Context, title, isbn string, year int) (*model.Edition, error) {
	var e model.Edition
	err := c.send(ctx, http.MethodPost, "/api/editions",
		map[string]any{"title": title, "isbn": isbn, "year": year}, &e, collEditions)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListReaders returns all readers.
func (c *Client) ListReaders(ctx context.Context) ([]model.Reader, error) {
	var readers []model.Reader
	return readers, c.get(ctx, collReaders, "/api/readers", &readers)
}

// CreateReader creates a reader.
func (c *Client) CreateReader(ctx context.Context, name string) (*model.Reader, error) {
	var r model.Reader
	if err := c.send(ctx, http.MethodPost, "/api/readers", map[string]string{"name": name}, &r, collReaders); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListEmployees returns all employees.
func (c *Client) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	var employees []model.Employee
	return employees, c.get(ctx, collEmployees, "/api/employees", &employees)
}

// CreateEmployee creates an employee.
func (c *Client) CreateEmployee(ctx context.Context, name string) (*model.Employee, error) {
	var e model.Employee
	if err := c.send(ctx, http.MethodPost, "/api/employees", map[string]string{"name": name}, &e, collEmployees); err != nil {
		return nil, err
	}
	return &e, nil
}
