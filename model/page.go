package model

// BookPage is one image of a book. PageNo is 1-based and kept dense:
// after a reorder the set of page numbers is exactly 1..N.
type BookPage struct {
	ID     int    `json:"id"`
	BookID int    `json:"book_id"`
	PageNo int    `json:"page_no"`
	// Image is the stored name of the original, unique per page.
	Image        string  `json:"image"`
	OriginalName string  `json:"original_name"`
	Size         int64   `json:"size"`
	ThumbW       int     `json:"thumb_w"`
	ThumbH       int     `json:"thumb_h"`
	ThumbShrink  float64 `json:"thumb_shrink"`
	LastModified string  `json:"last_modified"`
}

type FindBookPage struct {
	ID     *int `json:"id"`
	BookID *int `json:"book_id"`
	PageNo *int `json:"page_no"`
}
