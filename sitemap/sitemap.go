// Package sitemap emits the sitemap XML of creator and released book
// pages.
package sitemap

import (
	"encoding/xml"
	"io"

	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/names"
	"github.com/zcomx/zco-mx/store"
)

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []urlEntry
}

type urlEntry struct {
	XMLName xml.Name `xml:"url"`
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod,omitempty"`
}

// Write renders the sitemap to w: the site root, every creator page,
// and every released book page.
func Write(w io.Writer, s *store.Store, baseURL string) error {
	set := urlset{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	set.URLs = append(set.URLs, urlEntry{Loc: baseURL})

	creators, err := s.ListCreators(&model.FindCreator{})
	if err != nil {
		return err
	}
	for _, creator := range creators {
		set.URLs = append(set.URLs, urlEntry{
			Loc:     baseURL + "/" + creator.NameForURL,
			LastMod: dateOf(creator.LastModified),
		})

		books, err := s.ListBooks(&model.FindBook{CreatorID: &creator.ID, Released: true})
		if err != nil {
			return err
		}
		for _, book := range books {
			title := names.NewBookTitle(book.Name, book.BookType, book.Number, book.OfNumber)
			set.URLs = append(set.URLs, urlEntry{
				Loc:     baseURL + "/" + creator.NameForURL + "/" + title.ForURL(),
				LastMod: dateOf(book.LastModified),
			})
		}
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(set)
}

// dateOf cuts an RFC3339 timestamp down to the date sitemaps expect.
func dateOf(ts string) string {
	if len(ts) < 10 {
		return ""
	}
	return ts[:10]
}
