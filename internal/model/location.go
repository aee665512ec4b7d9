package model

// MaxLocationsPerRequest bounds a single capacity increase.
const MaxLocationsPerRequest = 100

// Location is a storage slot on a shelf. Occupant is derived from the
// copybook that points at this location, so both sides always agree.
type Location struct {
	ID       int64  `json:"id"`
	ShelfID  int64  `json:"shelf_id"`
	Occupant *int64 `json:"occupant"`

	// Joined fields (not always populated).
	ShelfCode   string `json:"shelf_code,omitempty"`
	CabinetName string `json:"cabinet_name,omitempty"`
}

// Free reports whether no copy occupies the location.
func (l Location) Free() bool {
	return l.Occupant == nil
}
