// Package release packages a completed book into its redistributable cbz
// and torrent.
package release

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zcomx/zco-mx/archive"
	"github.com/zcomx/zco-mx/log"
	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/names"
	"github.com/zcomx/zco-mx/rendition"
	"github.com/zcomx/zco-mx/torrent"
)

// ErrPackage marks a failed release attempt. Fatal for the attempt: the
// release flags are reset and the job is not re-queued automatically.
var ErrPackage = errors.New("unable to package book")

// SiteTorrent is the aggregate torrent covering every released archive.
const SiteTorrent = "zco.mx.torrent"

// Store is the slice of the data layer packaging needs.
type Store interface {
	ListPages(find *model.FindBookPage) ([]*model.BookPage, error)
	SetCompleteInProgress(bookID int, want bool) (bool, error)
	SetReleased(bookID int, cbzPath, torrentPath, magnet string) error
}

// Artifact is the outcome of packaging a book.
type Artifact struct {
	CBZPath     string
	CBZName     string
	TorrentPath string
	Magnet      string
}

type Packager struct {
	store       Store
	rend        *rendition.Renditioner
	releasesDir string
	torrentsDir string
	tmpRoot     string
	announce    string
}

func NewPackager(s Store, rend *rendition.Renditioner, releasesDir, torrentsDir, tmpRoot, announce string) *Packager {
	return &Packager{
		store:       s,
		rend:        rend,
		releasesDir: releasesDir,
		torrentsDir: torrentsDir,
		tmpRoot:     tmpRoot,
		announce:    announce,
	}
}

// Package builds the ordered, re-optimized archive of a book, emits its
// torrent, and records the release on success. On failure the
// complete_in_progress flag is cleared and release_date stays unset, so
// the book is not left locked against a later attempt.
func (p *Packager) Package(book *model.Book, creator *model.Creator) (*Artifact, error) {
	artifact, err := p.build(book, creator)
	if err != nil {
		p.clearInProgress(book.ID)
		return nil, errors.Wrapf(ErrPackage, "book %d: %v", book.ID, err)
	}

	if err := p.store.SetReleased(book.ID, artifact.CBZPath, artifact.TorrentPath, artifact.Magnet); err != nil {
		p.clearInProgress(book.ID)
		return nil, errors.Wrapf(ErrPackage, "book %d: %v", book.ID, err)
	}

	if err := p.RefreshSiteTorrent(); err != nil {
		log.Warn("Failed to refresh site torrent", zap.Error(err))
	}

	log.Info("Book packaged",
		zap.Int("book_id", book.ID),
		zap.String("cbz", artifact.CBZPath),
		zap.String("torrent", artifact.TorrentPath))

	return artifact, nil
}

func (p *Packager) clearInProgress(bookID int) {
	if _, err := p.store.SetCompleteInProgress(bookID, false); err != nil {
		log.Error("Failed to clear release flag", zap.Int("book_id", bookID), zap.Error(err))
	}
}

// RefreshSiteTorrent rebuilds the aggregate torrent covering every
// released archive. With no archives left the stale torrent is removed.
func (p *Packager) RefreshSiteTorrent() error {
	dst := filepath.Join(p.torrentsDir, SiteTorrent)
	if err := os.MkdirAll(p.torrentsDir, 0755); err != nil {
		return err
	}
	err := torrent.EmitAll(p.releasesDir, dst, p.announce, "zco.mx")
	if errors.Is(err, torrent.ErrNoArchives) || os.IsNotExist(errors.Cause(err)) {
		return removeStale(dst)
	}
	return err
}

func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (p *Packager) build(book *model.Book, creator *model.Creator) (*Artifact, error) {
	if book.Status == model.BookStatusDisabled {
		return nil, errors.New("book is disabled")
	}

	pages, err := p.store.ListPages(&model.FindBookPage{BookID: &book.ID})
	if err != nil {
		return nil, err
	}
	if len(pages) < 1 {
		return nil, errors.New("book has no pages")
	}
	for _, page := range pages {
		if _, err := os.Stat(p.rend.Path(page.Image, rendition.SizeOriginal)); err != nil {
			return nil, errors.Wrapf(err, "missing original for page %d", page.PageNo)
		}
	}

	scratch, err := archive.NewScratch(p.tmpRoot, "package-")
	if err != nil {
		return nil, err
	}
	defer scratch.Close()

	// Re-optimize each page into the scratch dir under its packaged name.
	members := make([]string, 0, len(pages))
	for i, page := range pages {
		name := p.rend.FileName(
			names.PageFilename(i+1, len(pages), filepath.Ext(page.Image)),
			rendition.SizeCBZ)
		dst := filepath.Join(scratch.Dir, name)
		src := p.rend.Path(page.Image, rendition.SizeOriginal)
		if _, err := p.rend.ResizeFile(src, dst, rendition.SizeCBZ); err != nil {
			return nil, errors.Wrapf(err, "page %d", page.PageNo)
		}
		members = append(members, name)
	}

	cbzName := ArchiveFilename(book, creator)
	if err := os.MkdirAll(p.releasesDir, 0755); err != nil {
		return nil, err
	}
	cbzPath := filepath.Join(p.releasesDir, cbzName)

	builder, err := archive.NewBuilder(cbzPath)
	if err != nil {
		return nil, err
	}
	if err := builder.SetComment(Comment(book, creator)); err != nil {
		builder.Abort()
		return nil, err
	}
	for _, name := range members {
		if err := builder.AddFile(name, filepath.Join(scratch.Dir, name)); err != nil {
			builder.Abort()
			return nil, err
		}
	}
	if err := builder.Close(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.torrentsDir, 0755); err != nil {
		return nil, err
	}
	torrentPath := filepath.Join(p.torrentsDir, TorrentFilename(book, creator))
	tthsum, err := torrent.Emit(cbzPath, torrentPath, p.announce, cbzName)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(cbzPath)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		CBZPath:     cbzPath,
		CBZName:     cbzName,
		TorrentPath: torrentPath,
		Magnet:      torrent.Magnet(tthsum, stat.Size(), cbzName),
	}, nil
}

// ArchiveFilename is the packaged archive name:
// "{Name} {Number} ({year}) ({creator_id}.zco.mx).cbz".
func ArchiveFilename(book *model.Book, creator *model.Creator) string {
	fields := []string{
		names.ForFile(book.Name),
		names.ForFile(names.FormatNumber(book.BookType, book.Number, book.OfNumber)),
		fmt.Sprintf("(%d)", book.Year),
		fmt.Sprintf("(%s)", creator.ShortURL()),
	}
	return joinFields(fields) + ".cbz"
}

// TorrentFilename drops the number: "{Name} ({year}) ({creator_id}.zco.mx).cbz.torrent".
func TorrentFilename(book *model.Book, creator *model.Creator) string {
	fields := []string{
		names.ForFile(book.Name),
		fmt.Sprintf("(%d)", book.Year),
		fmt.Sprintf("(%s)", creator.ShortURL()),
	}
	return joinFields(fields) + ".cbz.torrent"
}

// Comment is the archive comment:
// "{year}|{creator}|{name}|{number}|{licence}|{short url}".
func Comment(book *model.Book, creator *model.Creator) string {
	return strings.Join([]string{
		fmt.Sprintf("%d", book.Year),
		creator.Name,
		book.Name,
		names.FormatNumber(book.BookType, book.Number, book.OfNumber),
		book.LicenceCode,
		creator.ShortURL(),
	}, "|")
}

func joinFields(fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}
