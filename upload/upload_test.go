package upload

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zcomx/zco-mx/config"
	"github.com/zcomx/zco-mx/database"
	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/rendition"
	"github.com/zcomx/zco-mx/store"
)

func init() {
	config.Opts = config.GetDefaultOptions()
}

type fixture struct {
	store    *store.Store
	uploader *Uploader
	book     *model.Book
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	db, err := sql.Open("sqlite", filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db, context.Background()); err != nil {
		t.Fatal(err)
	}

	s := store.NewStore(db)
	book, err := s.AddBook(&model.Book{CreatorID: 1, Name: "Test Book", BookType: model.BookTypeOngoing, Number: 1})
	if err != nil {
		t.Fatal(err)
	}

	rend := rendition.New(filepath.Join(dir, "images"), "jpeg", 85, 65)
	return &fixture{
		store:    s,
		uploader: NewUploader(s, rend, filepath.Join(dir, "tmp")),
		book:     book,
		dir:      dir,
	}
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 60, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 0, 255})
		}
	}
	path := filepath.Join(dir, name)
	fd, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fd.Close()
	if filepath.Ext(name) == ".png" {
		err = png.Encode(fd, img)
	} else {
		err = jpeg.Encode(fd, img, nil)
	}
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()

	img := writeImage(t, dir, "a.jpg")
	if got := Classify(img); got != KindImage {
		t.Errorf("Classify(image) = %q", got)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("p.jpg")
	w.Write([]byte("x"))
	zw.Close()
	cbz := filepath.Join(dir, "b.cbz")
	if err := os.WriteFile(cbz, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	if got := Classify(cbz); got != KindArchive {
		t.Errorf("Classify(archive) = %q", got)
	}

	txt := filepath.Join(dir, "c.txt")
	if err := os.WriteFile(txt, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := Classify(txt); got != KindUnsupported {
		t.Errorf("Classify(text) = %q", got)
	}
}

func TestProcessLooseImages(t *testing.T) {
	f := newFixture(t)

	// Seed two existing pages so the new ones land at 3 and 4.
	for i := 0; i < 2; i++ {
		if _, err := f.store.AddPage(&model.BookPage{BookID: f.book.ID, Image: "seed.jpg"}); err != nil {
			t.Fatal(err)
		}
	}

	for _, name := range []string{"a.jpg", "b.png"} {
		path := writeImage(t, f.dir, name)
		result := f.uploader.Process(f.book, path, name)
		if result.Error != "" {
			t.Fatalf("Process(%s) error: %s", name, result.Error)
		}
		if result.Name != name {
			t.Errorf("Result name = %q, want %q", result.Name, name)
		}
		if result.ThumbnailURL == "" || result.DeleteURL == "" {
			t.Errorf("Result missing URLs: %+v", result)
		}
		if result.DeleteType != "DELETE" {
			t.Errorf("DeleteType = %q", result.DeleteType)
		}
	}

	pages, err := f.store.ListPages(&model.FindBookPage{BookID: &f.book.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 4 {
		t.Fatalf("Expected 4 pages, got %d", len(pages))
	}
	if pages[2].PageNo != 3 || pages[3].PageNo != 4 {
		t.Errorf("New pages numbered %d, %d; want 3, 4", pages[2].PageNo, pages[3].PageNo)
	}
}

// With the web format set to webp the upload result must link the file
// actually written, not the sniffed original name.
func TestProcessImageWebpURLs(t *testing.T) {
	f := newFixture(t)
	rend := rendition.New(filepath.Join(f.dir, "webp-images"), "webp", 85, 65)
	uploader := NewUploader(f.store, rend, filepath.Join(f.dir, "tmp"))

	path := writeImage(t, f.dir, "cover.png")
	result := uploader.Process(f.book, path, "cover.png")
	if result.Error != "" {
		t.Fatalf("Process error: %s", result.Error)
	}
	if !strings.HasSuffix(result.URL, ".webp") {
		t.Errorf("URL %q does not point at the webp rendition", result.URL)
	}
	if !strings.HasSuffix(result.ThumbnailURL, ".png") {
		t.Errorf("ThumbnailURL %q should keep the original extension", result.ThumbnailURL)
	}

	// The linked web rendition exists on disk.
	pages, err := f.store.ListPages(&model.FindBookPage{BookID: &f.book.ID})
	if err != nil {
		t.Fatal(err)
	}
	last := pages[len(pages)-1]
	if _, err := os.Stat(rend.Path(last.Image, rendition.SizeWeb)); err != nil {
		t.Errorf("Web rendition missing: %v", err)
	}
}

func TestProcessArchive(t *testing.T) {
	f := newFixture(t)

	// Archive members out of order plus a non-image.
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 30, 30))); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"page2.png", "page1.png", "readme.txt"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if name == "readme.txt" {
			w.Write([]byte("not a page"))
		} else {
			w.Write(img.Bytes())
		}
	}
	zw.Close()

	cbz := filepath.Join(f.dir, "comic.cbz")
	if err := os.WriteFile(cbz, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	result := f.uploader.Process(f.book, cbz, "comic.cbz")
	if result.Error != "" {
		t.Fatalf("Process error: %s", result.Error)
	}
	if result.Name != "comic.cbz" {
		t.Errorf("Result name = %q", result.Name)
	}

	pages, err := f.store.ListPages(&model.FindBookPage{BookID: &f.book.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("Expected 2 pages, got %d", len(pages))
	}
	// Lexicographic order: page1 first, and its thumb is the cover.
	if pages[0].OriginalName != "page1.png" {
		t.Errorf("First page = %q, want page1.png", pages[0].OriginalName)
	}
	if result.BookPageID != pages[0].ID {
		t.Errorf("Result cover page = %d, want %d", result.BookPageID, pages[0].ID)
	}
}

func TestProcessUnsupported(t *testing.T) {
	f := newFixture(t)

	txt := filepath.Join(f.dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("plain text"), 0644); err != nil {
		t.Fatal(err)
	}

	result := f.uploader.Process(f.book, txt, "notes.txt")
	if result.Error == "" {
		t.Fatal("Expected an error record for unsupported file")
	}
	if result.BookPageID != 0 {
		t.Error("Unsupported file must not create a page")
	}

	pages, err := f.store.ListPages(&model.FindBookPage{BookID: &f.book.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 0 {
		t.Errorf("Expected no pages, got %d", len(pages))
	}
}
