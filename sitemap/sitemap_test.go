package sitemap

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zcomx/zco-mx/config"
	"github.com/zcomx/zco-mx/database"
	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/store"
)

func init() {
	config.Opts = config.GetDefaultOptions()
}

func TestWrite(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db, context.Background()); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}
	s := store.NewStore(db)

	creator, err := s.AddCreator(&model.Creator{Name: "Jane Doe"})
	if err != nil {
		t.Fatal(err)
	}
	released, err := s.AddBook(&model.Book{
		CreatorID: creator.ID, Name: "Done", BookType: model.BookTypeOneShot,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddBook(&model.Book{
		CreatorID: creator.ID, Name: "Draft Only", BookType: model.BookTypeOneShot,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetReleased(released.ID, "a.cbz", "a.torrent", "magnet:?x"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, s, "https://zco.mx"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"<urlset",
		"<loc>https://zco.mx</loc>",
		"<loc>https://zco.mx/JaneDoe</loc>",
		"<loc>https://zco.mx/JaneDoe/Done</loc>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("sitemap missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "DraftOnly") {
		t.Errorf("draft book leaked into sitemap:\n%s", out)
	}
}
