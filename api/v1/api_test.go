package v1

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/zcomx/zco-mx/config"
	"github.com/zcomx/zco-mx/database"
	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/release"
	"github.com/zcomx/zco-mx/rendition"
	"github.com/zcomx/zco-mx/social"
	"github.com/zcomx/zco-mx/store"
	"github.com/zcomx/zco-mx/upload"
	"github.com/zcomx/zco-mx/worker"
)

func init() {
	config.Opts = config.GetDefaultOptions()
}

type fakePackager struct{}

func (f *fakePackager) Package(book *model.Book, creator *model.Creator) (*release.Artifact, error) {
	return &release.Artifact{CBZName: "fake.cbz"}, nil
}

func (f *fakePackager) RefreshSiteTorrent() error { return nil }

type fakeAnnouncer struct{}

func (f *fakeAnnouncer) PostBookCompleted(bookID int, force bool, services ...string) ([]social.Result, error) {
	return nil, nil
}

func (f *fakeAnnouncer) PostOngoingUpdate(date string, creatorIDs []int, force bool, services ...string) ([]social.Result, error) {
	return nil, nil
}

func (f *fakeAnnouncer) Retract(bookID int) error { return nil }

type fixture struct {
	store  *store.Store
	rend   *rendition.Renditioner
	router *mux.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db, context.Background()); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}
	s := store.NewStore(db)

	rend := rendition.New(t.TempDir(), "jpeg", 85, 65)
	uploader := upload.NewUploader(s, rend, t.TempDir())
	orch := worker.NewOrchestrator(s, &fakePackager{}, &fakeAnnouncer{})
	pool := worker.NewPool(s, orch, 1)

	router := mux.NewRouter()
	Server(router, s, uploader, rend, pool, t.TempDir())
	return &fixture{store: s, rend: rend, router: router}
}

func (f *fixture) addBook(t *testing.T) *model.Book {
	t.Helper()
	creator, err := f.store.AddCreator(&model.Creator{Name: "First Last"})
	if err != nil {
		t.Fatalf("Failed to add creator: %v", err)
	}
	book, err := f.store.AddBook(&model.Book{
		CreatorID: creator.ID,
		Name:      "My Book",
		BookType:  model.BookTypeOngoing,
		Number:    1,
		Year:      2020,
		Status:    model.BookStatusDraft,
	})
	if err != nil {
		t.Fatalf("Failed to add book: %v", err)
	}
	return book
}

func (f *fixture) addPage(t *testing.T, bookID int, image string) *model.BookPage {
	t.Helper()
	page, err := f.store.AddPage(&model.BookPage{BookID: bookID, Image: image})
	if err != nil {
		t.Fatalf("Failed to add page: %v", err)
	}
	return page
}

func (f *fixture) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 40))); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		fw, err := mw.CreateFormFile("up_files[]", name)
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("Failed to write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func TestUploadPages(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t)

	body, contentType := multipartBody(t, map[string][]byte{
		"01.png": pngBytes(t),
	})
	r := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/books/%d/upload", book.ID), body)
	r.Header.Set("Content-Type", contentType)

	w := f.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload struct {
		Files []upload.FileResult `json:"files"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(payload.Files) != 1 {
		t.Fatalf("Expected 1 file result, got %d", len(payload.Files))
	}
	result := payload.Files[0]
	if result.Error != "" {
		t.Fatalf("Unexpected upload error: %s", result.Error)
	}
	if result.BookPageID == 0 {
		t.Errorf("Expected a book page id, got %+v", result)
	}

	pages, err := f.store.ListPages(&model.FindBookPage{BookID: &book.ID})
	if err != nil {
		t.Fatalf("Failed to list pages: %v", err)
	}
	if len(pages) != 1 || pages[0].PageNo != 1 {
		t.Errorf("Expected one page numbered 1, got %+v", pages)
	}
}

func TestUploadRejectsUnsupportedFile(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t)

	body, contentType := multipartBody(t, map[string][]byte{
		"notes.txt": []byte("not an image"),
	})
	r := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/books/%d/upload", book.ID), body)
	r.Header.Set("Content-Type", contentType)

	w := f.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload struct {
		Files []upload.FileResult `json:"files"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(payload.Files) != 1 || payload.Files[0].Error == "" {
		t.Fatalf("Expected a per-file error, got %+v", payload.Files)
	}

	pages, err := f.store.ListPages(&model.FindBookPage{BookID: &book.ID})
	if err != nil {
		t.Fatalf("Failed to list pages: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("Expected no pages, got %+v", pages)
	}
}

func TestReorderPages(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t)
	first := f.addPage(t, book.ID, "a.png")
	second := f.addPage(t, book.ID, "b.png")

	form := url.Values{}
	form.Add("book_page_ids[]", strconv.Itoa(second.ID))
	form.Add("book_page_ids[]", strconv.Itoa(first.ID))

	r := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/books/%d/reorder", book.ID),
		strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := f.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"success":true`) {
		t.Fatalf("Expected success, got %s", w.Body.String())
	}

	pages, err := f.store.ListPages(&model.FindBookPage{BookID: &book.ID})
	if err != nil {
		t.Fatalf("Failed to list pages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("Expected 2 pages, got %d", len(pages))
	}
	if pages[0].ID != second.ID || pages[0].PageNo != 1 {
		t.Errorf("Expected page %d first, got %+v", second.ID, pages[0])
	}
	if pages[1].ID != first.ID || pages[1].PageNo != 2 {
		t.Errorf("Expected page %d second, got %+v", first.ID, pages[1])
	}
}

func TestReorderUnknownBook(t *testing.T) {
	f := newFixture(t)

	form := url.Values{}
	form.Add("book_page_ids[]", "1")
	r := httptest.NewRequest(http.MethodPost, "/api/v1/books/999/reorder",
		strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := f.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"success":false`) {
		t.Fatalf("Expected failure payload, got %s", w.Body.String())
	}
}

func TestDeletePage(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t)
	first := f.addPage(t, book.ID, "a.png")
	second := f.addPage(t, book.ID, "b.png")

	r := httptest.NewRequest(http.MethodDelete,
		fmt.Sprintf("/api/v1/pages/delete?book_page_id=%d", first.ID), nil)
	w := f.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	pages, err := f.store.ListPages(&model.FindBookPage{BookID: &book.ID})
	if err != nil {
		t.Fatalf("Failed to list pages: %v", err)
	}
	if len(pages) != 1 || pages[0].ID != second.ID || pages[0].PageNo != 1 {
		t.Errorf("Expected the remaining page renumbered to 1, got %+v", pages)
	}
}

func TestCompleteBook(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t)
	f.addPage(t, book.ID, "a.png")

	r := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/v1/books/%d/complete", book.ID), nil)
	w := f.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload struct {
		Success bool `json:"success"`
		JobID   int  `json:"job_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !payload.Success || payload.JobID == 0 {
		t.Errorf("Expected queued job, got %+v", payload)
	}
}

func TestCompleteBookMissing(t *testing.T) {
	f := newFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/books/999/complete", nil)
	w := f.do(r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
}

func TestGetCoverInvalidSize(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t)
	f.addPage(t, book.ID, "a.png")

	r := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/v1/covers/%d?size=huge", book.ID), nil)
	w := f.do(r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestGetCoverNoPages(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t)

	r := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/v1/covers/%d", book.ID), nil)
	w := f.do(r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
}
