package v1

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zcomx/zco-mx/archive"
	"github.com/zcomx/zco-mx/config"
	"github.com/zcomx/zco-mx/http/request"
	"github.com/zcomx/zco-mx/http/response/json"
	"github.com/zcomx/zco-mx/log"
	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/rendition"
	"github.com/zcomx/zco-mx/store"
	"github.com/zcomx/zco-mx/upload"
)

// uploadPages accepts one request with N multipart files and processes
// them serially inside a single request-scoped scratch directory. A bad
// file yields an error entry; the rest of the batch proceeds.
func (h *Handler) uploadPages(w http.ResponseWriter, r *http.Request) {
	id := request.RouteIntParam(r, "id")
	book, err := h.store.MustGetBook(&model.FindBook{ID: &id})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			json.NotFound(w, nil)
			return
		}
		json.ServerError(w, err)
		return
	}

	if err := r.ParseMultipartForm(config.Opts.MaxUploadSize << 20); err != nil {
		json.BadRequest(w, "invalid multipart request")
		return
	}
	fileHeaders := r.MultipartForm.File["up_files[]"]
	if len(fileHeaders) == 0 {
		fileHeaders = r.MultipartForm.File["files"]
	}
	if len(fileHeaders) == 0 {
		json.BadRequest(w, "no files uploaded")
		return
	}

	scratch, err := archive.NewScratch(h.tmpRoot, "upload-")
	if err != nil {
		json.ServerError(w, err)
		return
	}
	defer scratch.Close()

	results := make([]upload.FileResult, 0, len(fileHeaders))
	for i, fileHeader := range fileHeaders {
		path, err := saveUpload(scratch.Dir, i, fileHeader)
		if err != nil {
			log.Error("Failed to spool upload",
				zap.String("name", fileHeader.Filename), zap.Error(err))
			results = append(results, upload.FileResult{
				BookID: book.ID,
				Name:   fileHeader.Filename,
				Error:  "unable to read upload",
			})
			continue
		}
		results = append(results, h.uploader.Process(book, path, fileHeader.Filename))
	}

	json.OK(w, map[string][]upload.FileResult{"files": results})
}

func saveUpload(dir string, n int, fileHeader *multipart.FileHeader) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	path := filepath.Join(dir, "upload_"+strconv.Itoa(n)+filepath.Ext(fileHeader.Filename))
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		return "", err
	}
	return path, nil
}

// reorderPages rewrites the page order from repeated book_page_ids[]
// parameters. Unknown ids are ignored; success is reported if any
// reorder proceeds.
func (h *Handler) reorderPages(w http.ResponseWriter, r *http.Request) {
	id := request.RouteIntParam(r, "id")
	if !h.store.CheckBook(id) {
		json.OK(w, map[string]any{"success": false, "error": "unknown book"})
		return
	}

	if err := r.ParseForm(); err != nil {
		json.OK(w, map[string]any{"success": false, "error": "invalid form"})
		return
	}
	pageIDs := r.PostForm["book_page_ids[]"]
	if len(pageIDs) == 0 {
		json.OK(w, map[string]any{"success": false, "error": "no page ids"})
		return
	}

	if err := h.store.ReorderPages(id, pageIDs); err != nil {
		json.OK(w, map[string]any{"success": false, "error": err.Error()})
		return
	}
	json.OK(w, map[string]any{"success": true})
}

func (h *Handler) listPages(w http.ResponseWriter, r *http.Request) {
	id := request.RouteIntParam(r, "id")
	if !h.store.CheckBook(id) {
		json.NotFound(w, nil)
		return
	}
	pages, err := h.store.ListPages(&model.FindBookPage{BookID: &id})
	if err != nil {
		json.ServerError(w, err)
		return
	}
	json.OK(w, pages)
}

// deletePage removes a page and its renditions. The page id arrives as
// a query parameter, matching the deleteUrl handed out at upload time.
func (h *Handler) deletePage(w http.ResponseWriter, r *http.Request) {
	id := request.QueryIntParam(r, "book_page_id", 0)
	if id == 0 {
		json.BadRequest(w, "book_page_id is required")
		return
	}

	page, err := h.store.MustGetPage(&model.FindBookPage{ID: &id})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			json.NotFound(w, nil)
			return
		}
		json.ServerError(w, err)
		return
	}

	if err := h.rend.DeleteAll(page.Image); err != nil {
		log.Warn("Failed to delete renditions",
			zap.String("image", page.Image), zap.Error(err))
	}
	if err := h.store.RemovePage(id); err != nil {
		json.ServerError(w, err)
		return
	}
	json.OK(w, map[string]any{"success": true})
}

func validSize(size string) bool {
	if size == rendition.SizeOriginal {
		return true
	}
	for _, known := range rendition.Sizes {
		if size == known {
			return true
		}
	}
	return false
}

// getCover serves the thumbnail rendition of a book's first page.
func (h *Handler) getCover(w http.ResponseWriter, r *http.Request) {
	id := request.RouteIntParam(r, "bookID")
	if !h.store.CheckBook(id) {
		json.NotFound(w, nil)
		return
	}

	pages, err := h.store.ListPages(&model.FindBookPage{BookID: &id})
	if err != nil {
		json.ServerError(w, err)
		return
	}
	if len(pages) == 0 {
		json.NotFound(w, nil)
		return
	}

	size := request.QueryStringParam(r, "size", rendition.SizeThumb)
	if !validSize(size) {
		json.BadRequest(w, "invalid size")
		return
	}
	http.ServeFile(w, r, h.rend.Path(pages[0].Image, size))
}
