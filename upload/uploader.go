package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/zcomx/zco-mx/archive"
	"github.com/zcomx/zco-mx/log"
	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/rendition"
	"github.com/zcomx/zco-mx/store"
	"github.com/zcomx/zco-mx/util"
)

// FileResult is the per-file JSON entry returned to the uploader UI.
// Archive uploads yield a single entry carrying the cover thumbnail.
type FileResult struct {
	BookID       int    `json:"book_id"`
	BookPageID   int    `json:"book_page_id,omitempty"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	URL          string `json:"url,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	DeleteURL    string `json:"deleteUrl,omitempty"`
	DeleteType   string `json:"deleteType,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Uploader adds uploaded artifacts to a book.
type Uploader struct {
	store   *store.Store
	rend    *rendition.Renditioner
	tmpRoot string
}

func NewUploader(s *store.Store, rend *rendition.Renditioner, tmpRoot string) *Uploader {
	return &Uploader{store: s, rend: rend, tmpRoot: tmpRoot}
}

// Process classifies one uploaded file and appends its pages to the book.
// The error cases are folded into the result; a bad file never aborts the
// rest of the batch.
func (u *Uploader) Process(book *model.Book, path, originalName string) FileResult {
	stat, err := os.Stat(path)
	if err != nil {
		return errorResult(book.ID, originalName, 0, err)
	}
	size := stat.Size()

	switch Classify(path) {
	case KindImage:
		return u.processImage(book, path, originalName, size)
	case KindArchive:
		return u.processArchive(book, path, originalName, size)
	default:
		log.Debug("Unsupported upload", zap.String("name", originalName))
		return errorResult(book.ID, originalName, size,
			fmt.Errorf("unsupported file type"))
	}
}

func (u *Uploader) processImage(book *model.Book, path, originalName string, size int64) FileResult {
	page, renditionErr, err := u.addPage(book, path, originalName)
	if err != nil {
		return errorResult(book.ID, originalName, size, err)
	}

	result := u.pageResult(book.ID, page, originalName, size)
	if renditionErr != nil {
		// Original kept, derived sizes missing; the resize CLI can re-attempt.
		result.Error = renditionErr.Error()
	}
	return result
}

func (u *Uploader) processArchive(book *model.Book, path, originalName string, size int64) FileResult {
	scratch, err := archive.NewScratch(u.tmpRoot, "unpack-")
	if err != nil {
		return errorResult(book.ID, originalName, size, err)
	}
	defer scratch.Close()

	images, err := archive.Unpack(path, scratch.Dir)
	if err != nil {
		return errorResult(book.ID, originalName, size, err)
	}

	var cover *model.BookPage
	for _, img := range images {
		page, _, err := u.addPage(book, img, filepath.Base(img))
		if err != nil {
			log.Error("Failed to add archive page",
				zap.String("archive", originalName),
				zap.String("member", img),
				zap.Error(err))
			continue
		}
		if cover == nil {
			cover = page
		}
	}
	if cover == nil {
		return errorResult(book.ID, originalName, size,
			fmt.Errorf("no pages added from archive"))
	}

	// One entry per archive, with the cover thumbnail.
	return u.pageResult(book.ID, cover, originalName, size)
}

// addPage stores the original, inserts the page record and derives the
// web and thumb renditions. A rendition failure is returned separately:
// it does not roll the page back.
func (u *Uploader) addPage(book *model.Book, path, originalName string) (*model.BookPage, error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	name := util.GenUUID() + sniffExt(path)
	if _, err := u.rend.SaveOriginal(name, data); err != nil {
		return nil, nil, err
	}

	page, err := u.store.AddPage(&model.BookPage{
		BookID:       book.ID,
		Image:        name,
		OriginalName: originalName,
		Size:         int64(len(data)),
	})
	if err != nil {
		return nil, nil, err
	}

	var renditionErr error
	if _, err := u.rend.Resize(name, rendition.SizeWeb); err != nil {
		renditionErr = err
	}
	if geo, err := u.rend.Resize(name, rendition.SizeThumb); err != nil {
		renditionErr = err
	} else if err := u.store.UpdatePageThumb(page.ID, geo.Width, geo.Height, geo.Shrink); err != nil {
		renditionErr = err
	}

	if book.Released() && book.BookType == model.BookTypeOngoing {
		if _, err := u.store.AddActivityLog(&model.ActivityLog{
			BookID:  book.ID,
			PageIDs: strconv.Itoa(page.ID),
			Action:  model.ActivityPageAdded,
		}); err != nil {
			log.Error("Failed to record activity log", zap.Error(err))
		}
	}

	return page, renditionErr, nil
}

// pageResult builds the jQuery File Upload entry of a stored page. The
// rendition URLs carry the filename actually written, which can differ
// in extension from the stored original.
func (u *Uploader) pageResult(bookID int, page *model.BookPage, name string, size int64) FileResult {
	return FileResult{
		BookID:       bookID,
		BookPageID:   page.ID,
		Name:         name,
		Size:         size,
		URL:          u.renditionURL(page.Image, rendition.SizeWeb),
		ThumbnailURL: u.renditionURL(page.Image, rendition.SizeThumb),
		DeleteURL:    fmt.Sprintf("/api/v1/pages/delete?book_page_id=%d", page.ID),
		DeleteType:   "DELETE",
	}
}

func (u *Uploader) renditionURL(image, size string) string {
	return strings.Join([]string{"", "images", size, u.rend.FileName(image, size)}, "/")
}

func errorResult(bookID int, name string, size int64, err error) FileResult {
	return FileResult{
		BookID: bookID,
		Name:   name,
		Size:   size,
		Error:  err.Error(),
	}
}
