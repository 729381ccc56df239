package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/zcomx/zco-mx/config"
	"github.com/zcomx/zco-mx/http/request"
	"github.com/zcomx/zco-mx/http/response/json"
	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/names"
	"github.com/zcomx/zco-mx/release"
	"github.com/zcomx/zco-mx/rendition"
	"github.com/zcomx/zco-mx/store"
)

// version is stamped at build time.
var version = "dev"

func (s *Server) healthcheck(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		json.ServerError(w, err)
		return
	}
	json.OK(w, map[string]string{"status": "ok"})
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	json.OK(w, map[string]string{"version": version})
}

// serveImage serves a stored rendition: /images/{size}/{name}. The size
// segment is joined into an on-disk path, so only the known rendition
// sizes are accepted.
func (s *Server) serveImage(w http.ResponseWriter, r *http.Request) {
	size := request.RouteStringParam(r, "size")
	name := request.RouteStringParam(r, "name")
	switch size {
	case rendition.SizeOriginal, rendition.SizeWeb, rendition.SizeThumb:
	default:
		json.BadRequest(w, "invalid size")
		return
	}
	if name != filepath.Base(name) {
		json.BadRequest(w, "invalid image name")
		return
	}
	http.ServeFile(w, r, s.rend.Path(name, size))
}

func (s *Server) siteRSS(w http.ResponseWriter, r *http.Request) {
	rss, err := s.feeds.SiteRSS()
	if err != nil {
		json.ServerError(w, err)
		return
	}
	serveRSS(w, rss)
}

// siteTorrent serves the all-releases torrent the packager refreshes on
// every release.
func (s *Server) siteTorrent(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(config.Opts.TorrentsDir(), release.SiteTorrent))
}

// resolveCreator looks a creator up by its URL segment. A numeric key
// that resolves is reported so the caller can redirect permanently to
// the name form.
func (s *Server) resolveCreator(key string) (creator *model.Creator, numeric bool, err error) {
	if id, convErr := strconv.Atoi(key); convErr == nil {
		creator, err = s.store.MustGetCreator(&model.FindCreator{ID: &id})
		return creator, true, err
	}
	creator, err = s.store.MustGetCreator(&model.FindCreator{NameForURL: &key})
	return creator, false, err
}

// redirectToName issues the permanent redirect from a numeric creator
// key to the canonical name form.
func redirectToName(w http.ResponseWriter, r *http.Request, creator *model.Creator, rest string) {
	target := "/" + creator.NameForURL + rest
	http.Redirect(w, r, target, http.StatusMovedPermanently)
}

func (s *Server) creatorPage(w http.ResponseWriter, r *http.Request) {
	key := request.RouteStringParam(r, "creator")
	creator, numeric, err := s.resolveCreator(key)
	if err != nil {
		s.lookupFailed(w, r, err)
		return
	}
	if numeric {
		redirectToName(w, r, creator, "")
		return
	}

	books, err := s.store.ListBooks(&model.FindBook{CreatorID: &creator.ID})
	if err != nil {
		json.ServerError(w, err)
		return
	}
	json.OK(w, map[string]any{"creator": creator, "books": books})
}

func (s *Server) creatorRSS(w http.ResponseWriter, r *http.Request) {
	key := request.RouteStringParam(r, "creator")
	creator, numeric, err := s.resolveCreator(key)
	if err != nil {
		s.lookupFailed(w, r, err)
		return
	}
	if numeric {
		redirectToName(w, r, creator, ".rss")
		return
	}

	rss, err := s.feeds.CreatorRSS(creator)
	if err != nil {
		json.ServerError(w, err)
		return
	}
	serveRSS(w, rss)
}

// resolveBook looks a book up by creator segment and title segment.
func (s *Server) resolveBook(creator *model.Creator, title string) (*model.Book, error) {
	return s.store.MustGetBook(&model.FindBook{
		CreatorID:  &creator.ID,
		NameForURL: &title,
	})
}

func (s *Server) bookPage(w http.ResponseWriter, r *http.Request) {
	creator, book, done := s.lookupBook(w, r, "")
	if done {
		return
	}
	pages, err := s.store.ListPages(&model.FindBookPage{BookID: &book.ID})
	if err != nil {
		json.ServerError(w, err)
		return
	}
	json.OK(w, map[string]any{"creator": creator, "book": book, "pages": pages})
}

func (s *Server) bookRSS(w http.ResponseWriter, r *http.Request) {
	creator, book, done := s.lookupBook(w, r, ".rss")
	if done {
		return
	}
	rss, err := s.feeds.BookRSS(book, creator)
	if err != nil {
		json.ServerError(w, err)
		return
	}
	serveRSS(w, rss)
}

func (s *Server) bookCBZ(w http.ResponseWriter, r *http.Request) {
	_, book, done := s.lookupBook(w, r, ".cbz")
	if done {
		return
	}
	if !book.Released() || book.CBZPath == "" {
		s.notFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.comicbook+zip")
	http.ServeFile(w, r, book.CBZPath)
}

func (s *Server) bookTorrent(w http.ResponseWriter, r *http.Request) {
	_, book, done := s.lookupBook(w, r, ".torrent")
	if done {
		return
	}
	if !book.Released() || book.TorrentPath == "" {
		s.notFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/x-bittorrent")
	http.ServeFile(w, r, book.TorrentPath)
}

// pageImage serves the page at /{creator}/{title}/{NNN}, extension
// optional. The web rendition is the default; ?size= selects another.
func (s *Server) pageImage(w http.ResponseWriter, r *http.Request) {
	_, book, done := s.lookupBook(w, r, "")
	if done {
		return
	}

	segment := request.RouteStringParam(r, "page")
	segment = strings.TrimSuffix(segment, filepath.Ext(segment))
	pageNo, err := strconv.Atoi(segment)
	if err != nil || pageNo < 1 {
		s.notFound(w, r)
		return
	}

	page, err := s.store.MustGetPage(&model.FindBookPage{BookID: &book.ID, PageNo: &pageNo})
	if err != nil {
		s.notFound(w, r)
		return
	}

	size := request.QueryStringParam(r, "size", rendition.SizeWeb)
	if size != rendition.SizeOriginal && size != rendition.SizeWeb && size != rendition.SizeThumb {
		json.BadRequest(w, "invalid size")
		return
	}
	http.ServeFile(w, r, s.rend.Path(page.Image, size))
}

// lookupBook resolves the creator and book segments, handling numeric
// redirects and 404 suggestions. done reports the response was written.
func (s *Server) lookupBook(w http.ResponseWriter, r *http.Request, suffix string) (*model.Creator, *model.Book, bool) {
	key := request.RouteStringParam(r, "creator")
	title := request.RouteStringParam(r, "title")

	creator, numeric, err := s.resolveCreator(key)
	if err != nil {
		s.lookupFailed(w, r, err)
		return nil, nil, true
	}
	if numeric {
		rest := "/" + title + suffix
		if pageSeg := request.RouteStringParam(r, "page"); pageSeg != "" {
			rest += "/" + pageSeg
		}
		redirectToName(w, r, creator, rest)
		return nil, nil, true
	}

	book, err := s.resolveBook(creator, title)
	if err != nil {
		s.lookupFailed(w, r, err)
		return nil, nil, true
	}
	return creator, book, false
}

// lookupFailed separates a missing record from a store failure.
func (s *Server) lookupFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	json.ServerError(w, err)
}

type suggestion struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// notFound writes the 404 suggestions payload: the all-site link plus a
// random creator and a random book.
func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	suggestions := []suggestion{
		{Label: "All of zco.mx", URL: config.Opts.BaseURL},
	}

	if creator, err := s.store.RandomCreator(); err == nil && creator != nil {
		suggestions = append(suggestions, suggestion{
			Label: creator.Name,
			URL:   config.Opts.BaseURL + "/" + creator.NameForURL,
		})
	}
	if book, err := s.store.RandomBook(); err == nil && book != nil {
		if creator, err := s.store.MustGetCreator(&model.FindCreator{ID: &book.CreatorID}); err == nil {
			title := names.NewBookTitle(book.Name, book.BookType, book.Number, book.OfNumber)
			suggestions = append(suggestions, suggestion{
				Label: fmt.Sprintf("%s by %s", title.ForFile(), creator.Name),
				URL:   config.Opts.BaseURL + "/" + creator.NameForURL + "/" + title.ForURL(),
			})
		}
	}

	json.NotFound(w, map[string]any{
		"status":      "error",
		"msg":         fmt.Sprintf("%s not found", r.URL.Path),
		"suggestions": suggestions,
	})
}

func serveRSS(w http.ResponseWriter, rss string) {
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	fmt.Fprint(w, rss)
}

