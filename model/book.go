package model //import "github.com/zcomx/zco-mx/model"

const (
	BookStatusActive   = "active"
	BookStatusDraft    = "draft"
	BookStatusDisabled = "disabled"

	BookTypeOneShot    = "one-shot"
	BookTypeOngoing    = "ongoing"
	BookTypeMiniSeries = "mini-series"
)

type Book struct {
	ID        int    `json:"id"`
	CreatorID int    `json:"creator_id"`
	Name      string `json:"name"`
	BookType  string `json:"book_type"`
	// Number is the issue number; OfNumber is the total in a mini-series.
	Number   int    `json:"number"`
	OfNumber int    `json:"of_number"`
	Year     int    `json:"publication_year"`
	Status   string `json:"status"`
	// CompleteInProgress acts as the advisory book-level lock during release.
	CompleteInProgress bool   `json:"complete_in_progress"`
	ReleaseDate        string `json:"release_date"`
	NameForFile        string `json:"name_for_file"`
	NameForSearch      string `json:"name_for_search"`
	NameForURL         string `json:"name_for_url"`
	CBZPath            string `json:"cbz_path"`
	TorrentPath        string `json:"torrent_path"`
	Magnet             string `json:"magnet"`
	LicenceCode        string `json:"licence_code"`
	TumblrPostID       string `json:"tumblr_post_id"`
	TwitterPostID      string `json:"twitter_post_id"`
	FacebookPostID     string `json:"facebook_post_id"`
	LastModified       string `json:"last_modified"`
}

// Released reports whether the book went through the packager.
func (b *Book) Released() bool {
	return b.Status == BookStatusActive && b.ReleaseDate != ""
}

type FindBook struct {
	ID         *int    `json:"id"`
	CreatorID  *int    `json:"creator_id"`
	Name       *string `json:"name"`
	NameForURL *string `json:"name_for_url"`
	Number     *int    `json:"number"`
	Status     *string `json:"status"`
	// Released restricts to books with a release date set.
	Released bool    `json:"released"`
	OrderBy  *string `json:"order_by"`

	// Whether to return random books.
	Random bool `json:"random"`
	// The maximum number of books to return.
	Limit *int `json:"limit"`
}
