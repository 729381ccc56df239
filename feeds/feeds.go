// Package feeds renders the RSS channels: one per book (items are new
// pages), one per creator and one site-wide (items are releases).
package feeds

import (
	"fmt"
	"time"

	"github.com/gorilla/feeds"

	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/names"
	"github.com/zcomx/zco-mx/store"
)

const siteName = "zco.mx"

// Generator builds feeds from the store. BaseURL has no trailing slash.
type Generator struct {
	store   *store.Store
	baseURL string
}

func NewGenerator(s *store.Store, baseURL string) *Generator {
	return &Generator{store: s, baseURL: baseURL}
}

// BookRSS renders the channel of a single book. Each page is an item,
// newest first.
func (g *Generator) BookRSS(book *model.Book, creator *model.Creator) (string, error) {
	title := names.NewBookTitle(book.Name, book.BookType, book.Number, book.OfNumber)
	bookURL := g.bookURL(creator, book)

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s: %s", siteName, title.ForFile()),
		Link:        &feeds.Link{Href: bookURL},
		Description: fmt.Sprintf("Pages of %s by %s.", title.ForFile(), creator.Name),
		Created:     parseTime(book.LastModified),
	}

	pages, err := g.store.ListPages(&model.FindBookPage{BookID: &book.ID})
	if err != nil {
		return "", err
	}
	for i := len(pages) - 1; i >= 0; i-- {
		page := pages[i]
		feed.Items = append(feed.Items, &feeds.Item{
			Id:      fmt.Sprintf("%s/%03d", bookURL, page.PageNo),
			Title:   fmt.Sprintf("%s page %03d", title.ForFile(), page.PageNo),
			Link:    &feeds.Link{Href: fmt.Sprintf("%s/%03d", bookURL, page.PageNo)},
			Created: parseTime(page.LastModified),
			Description: fmt.Sprintf(
				"A new page of %s by %s is available.", title.ForFile(), creator.Name),
		})
	}
	return feed.ToRss()
}

// CreatorRSS renders the channel of one creator's released books.
func (g *Generator) CreatorRSS(creator *model.Creator) (string, error) {
	books, err := g.store.ListBooks(&model.FindBook{
		CreatorID: &creator.ID,
		Released:  true,
	})
	if err != nil {
		return "", err
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s: %s", siteName, creator.Name),
		Link:        &feeds.Link{Href: g.baseURL + "/" + creator.NameForURL},
		Description: fmt.Sprintf("Comics by %s.", creator.Name),
	}
	g.appendReleaseItems(feed, books, creator)
	return feed.ToRss()
}

// SiteRSS renders the site-wide channel of all released books.
func (g *Generator) SiteRSS() (string, error) {
	books, err := g.store.ListBooks(&model.FindBook{Released: true})
	if err != nil {
		return "", err
	}

	feed := &feeds.Feed{
		Title:       siteName,
		Link:        &feeds.Link{Href: g.baseURL},
		Description: "Recent releases on " + siteName + ".",
	}
	g.appendReleaseItems(feed, books, nil)
	return feed.ToRss()
}

// appendReleaseItems adds one item per released book, newest release
// first. A nil creator is resolved per book.
func (g *Generator) appendReleaseItems(feed *feeds.Feed, books []*model.Book, creator *model.Creator) {
	sorted := make([]*model.Book, len(books))
	copy(sorted, books)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].ReleaseDate > sorted[i].ReleaseDate {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	for _, book := range sorted {
		bookCreator := creator
		if bookCreator == nil {
			found, err := g.store.MustGetCreator(&model.FindCreator{ID: &book.CreatorID})
			if err != nil {
				continue
			}
			bookCreator = found
		}
		title := names.NewBookTitle(book.Name, book.BookType, book.Number, book.OfNumber)
		bookURL := g.bookURL(bookCreator, book)
		feed.Items = append(feed.Items, &feeds.Item{
			Id:      bookURL,
			Title:   fmt.Sprintf("%s by %s", title.ForFile(), bookCreator.Name),
			Link:    &feeds.Link{Href: bookURL},
			Created: parseTime(book.ReleaseDate),
			Description: fmt.Sprintf(
				"%s by %s has been released on %s.", title.ForFile(), bookCreator.Name, siteName),
		})
	}
}

func (g *Generator) bookURL(creator *model.Creator, book *model.Book) string {
	title := names.NewBookTitle(book.Name, book.BookType, book.Number, book.OfNumber)
	return g.baseURL + "/" + creator.NameForURL + "/" + title.ForURL()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
