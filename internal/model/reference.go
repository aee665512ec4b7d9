package model

// Edition, Reader and Employee are reference data. The engine only needs
// their identity and a display name.

// Edition is a published edition that physical copies are made of.
type Edition struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	ISBN  string `json:"isbn,omitempty"`
	Year  int    `json:"year,omitempty"`
}

// Reader borrows copies.
type Reader struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Employee records lendings on behalf of the library.
type Employee struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
