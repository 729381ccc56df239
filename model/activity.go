package model

const (
	ActivityPageAdded = "page_added"
)

// ActivityLog records page additions to released ongoing books. The
// ongoing-update poster aggregates unprocessed rows for a given date.
type ActivityLog struct {
	ID        int    `json:"id"`
	BookID    int    `json:"book_id"`
	PageIDs   string `json:"book_page_ids"`
	Action    string `json:"action"`
	Processed bool   `json:"processed"`
	CreatedOn string `json:"created_on"`
}

type FindActivityLog struct {
	BookID    *int
	Action    *string
	Processed *bool
	// Date limits rows to those created on the given day (YYYY-MM-DD).
	Date *string
}
