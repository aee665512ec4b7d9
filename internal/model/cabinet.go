package model

// Cabinet is the root of the storage hierarchy.
type Cabinet struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Shelf belongs to exactly one cabinet.
type Shelf struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	CabinetID int64  `json:"cabinet_id"`

	// Joined fields (not always populated).
	CabinetName string `json:"cabinet_name,omitempty"`
}

// ShelfStats holds slot counts for one shelf. Counts are recomputed on
// every read and never stored.
type ShelfStats struct {
	Shelf
	Total    int `json:"total"`
	Free     int `json:"free"`
	Occupied int `json:"occupied"`
}
