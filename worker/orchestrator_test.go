package worker

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/zcomx/zco-mx/config"
	"github.com/zcomx/zco-mx/database"
	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/release"
	"github.com/zcomx/zco-mx/social"
	"github.com/zcomx/zco-mx/store"
)

func init() {
	config.Opts = config.GetDefaultOptions()
}

type fakePackager struct {
	packaged  []int
	refreshed int
	err       error
}

func (f *fakePackager) Package(book *model.Book, creator *model.Creator) (*release.Artifact, error) {
	f.packaged = append(f.packaged, book.ID)
	if f.err != nil {
		return nil, f.err
	}
	return &release.Artifact{CBZPath: "a.cbz", TorrentPath: "a.torrent", Magnet: "magnet:?x"}, nil
}

func (f *fakePackager) RefreshSiteTorrent() error {
	f.refreshed++
	return nil
}

type fakeAnnouncer struct {
	results      []social.Result
	posted       []int
	ongoing      []string
	ongoingForce []bool
	retracted    []int
}

func (f *fakeAnnouncer) PostBookCompleted(bookID int, force bool, services ...string) ([]social.Result, error) {
	f.posted = append(f.posted, bookID)
	return f.results, nil
}

func (f *fakeAnnouncer) PostOngoingUpdate(date string, creatorIDs []int, force bool, services ...string) ([]social.Result, error) {
	f.ongoing = append(f.ongoing, date)
	f.ongoingForce = append(f.ongoingForce, force)
	return f.results, nil
}

func (f *fakeAnnouncer) Retract(bookID int) error {
	f.retracted = append(f.retracted, bookID)
	return nil
}

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db, context.Background()); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}
	return store.NewStore(db)
}

func addBook(t *testing.T, s *store.Store) *model.Book {
	t.Helper()
	creator, err := s.AddCreator(&model.Creator{Name: "Jane Doe"})
	if err != nil {
		t.Fatal(err)
	}
	book, err := s.AddBook(&model.Book{
		CreatorID: creator.ID,
		Name:      "My Book",
		BookType:  model.BookTypeOngoing,
		Number:    5,
		Year:      2020,
	})
	if err != nil {
		t.Fatal(err)
	}
	return book
}

func TestSetBookCompleted(t *testing.T) {
	s := createTestStore(t)
	book := addBook(t, s)

	packager := &fakePackager{}
	orch := NewOrchestrator(s, packager, &fakeAnnouncer{})

	followups, retry, err := orch.Handle(&model.Job{
		Type: model.JobTypeSetBookCompleted, BookID: book.ID, MaxRequeues: 25,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if retry {
		t.Error("unexpected retry")
	}
	if len(packager.packaged) != 1 || packager.packaged[0] != book.ID {
		t.Errorf("packager calls: %v", packager.packaged)
	}
	if len(followups) != 1 || followups[0].Type != model.JobTypePostBookCompleted {
		t.Fatalf("expected a post followup, got %+v", followups)
	}
	if followups[0].BookID != book.ID || followups[0].MaxRequeues != 25 {
		t.Errorf("followup lost its target: %+v", followups[0])
	}
}

func TestSetBookCompletedObservesLock(t *testing.T) {
	s := createTestStore(t)
	book := addBook(t, s)

	// Another packager holds the book-level lock.
	if acquired, err := s.SetCompleteInProgress(book.ID, true); err != nil || !acquired {
		t.Fatalf("acquire: %v %v", acquired, err)
	}

	packager := &fakePackager{}
	orch := NewOrchestrator(s, packager, &fakeAnnouncer{})

	followups, _, err := orch.Handle(&model.Job{
		Type: model.JobTypeSetBookCompleted, BookID: book.ID,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(packager.packaged) != 0 {
		t.Errorf("packager ran despite the lock: %v", packager.packaged)
	}
	if len(followups) != 0 {
		t.Errorf("unexpected followups: %+v", followups)
	}
}

func TestSetBookCompletedReverse(t *testing.T) {
	s := createTestStore(t)
	book := addBook(t, s)
	if err := s.SetReleased(book.ID, "a.cbz", "a.torrent", "magnet:?x"); err != nil {
		t.Fatal(err)
	}

	orch := NewOrchestrator(s, &fakePackager{}, &fakeAnnouncer{})
	if _, _, err := orch.Handle(&model.Job{
		Type: model.JobTypeSetBookCompleted, BookID: book.ID, Reverse: true,
	}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got, err := s.MustGetBook(&model.FindBook{ID: &book.ID})
	if err != nil {
		t.Fatal(err)
	}
	if got.Released() {
		t.Errorf("book still released: status=%q release_date=%q", got.Status, got.ReleaseDate)
	}
	if got.CBZPath != "" || got.TorrentPath != "" {
		t.Errorf("artifacts not cleared: %q %q", got.CBZPath, got.TorrentPath)
	}
}

func TestSetBookCompletedReverseDeletePosts(t *testing.T) {
	s := createTestStore(t)
	book := addBook(t, s)
	if err := s.SetReleased(book.ID, "a.cbz", "a.torrent", "magnet:?x"); err != nil {
		t.Fatal(err)
	}

	announcer := &fakeAnnouncer{}
	orch := NewOrchestrator(s, &fakePackager{}, announcer)

	// Plain reverse leaves the posts alone.
	if _, _, err := orch.Handle(&model.Job{
		Type: model.JobTypeSetBookCompleted, BookID: book.ID, Reverse: true,
	}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(announcer.retracted) != 0 {
		t.Errorf("posts retracted without the flag: %v", announcer.retracted)
	}

	if _, _, err := orch.Handle(&model.Job{
		Type: model.JobTypeSetBookCompleted, BookID: book.ID,
		Reverse: true, DeletePosts: true,
	}); err != nil {
		t.Fatalf("Handle with delete: %v", err)
	}
	if len(announcer.retracted) != 1 || announcer.retracted[0] != book.ID {
		t.Errorf("retract calls: %v", announcer.retracted)
	}
}

func TestPostBookCompletedRetryVerdicts(t *testing.T) {
	s := createTestStore(t)
	book := addBook(t, s)
	if err := s.SetReleased(book.ID, "a.cbz", "a.torrent", "magnet:?x"); err != nil {
		t.Fatal(err)
	}

	t.Run("remote failure is retryable", func(t *testing.T) {
		announcer := &fakeAnnouncer{results: []social.Result{
			{Service: model.ServiceTwitter, Err: social.ErrPost},
		}}
		orch := NewOrchestrator(s, &fakePackager{}, announcer)
		_, retry, err := orch.Handle(&model.Job{
			Type: model.JobTypePostBookCompleted, BookID: book.ID,
		})
		if err == nil || !retry {
			t.Errorf("expected retryable failure, got retry=%v err=%v", retry, err)
		}
	})

	t.Run("sentinel refusal is terminal", func(t *testing.T) {
		announcer := &fakeAnnouncer{results: []social.Result{
			{Service: model.ServiceTwitter, Skipped: true, Err: social.ErrPostInProgress},
		}}
		orch := NewOrchestrator(s, &fakePackager{}, announcer)
		_, retry, err := orch.Handle(&model.Job{
			Type: model.JobTypePostBookCompleted, BookID: book.ID,
		})
		if err == nil || retry {
			t.Errorf("expected terminal failure, got retry=%v err=%v", retry, err)
		}
	})

	t.Run("announced book exits cleanly", func(t *testing.T) {
		for _, service := range []string{
			model.ServiceTumblr, model.ServiceTwitter, model.ServiceFacebook,
		} {
			if err := s.SetBookPostID(book.ID, service, "confirmed-id"); err != nil {
				t.Fatal(err)
			}
		}
		announcer := &fakeAnnouncer{}
		orch := NewOrchestrator(s, &fakePackager{}, announcer)
		_, retry, err := orch.Handle(&model.Job{
			Type: model.JobTypePostBookCompleted, BookID: book.ID,
		})
		if err != nil || retry {
			t.Errorf("expected clean exit, got retry=%v err=%v", retry, err)
		}
		if len(announcer.posted) != 0 {
			t.Errorf("announcer called on an announced book: %v", announcer.posted)
		}
	})
}

func TestPostOngoingUpdate(t *testing.T) {
	s := createTestStore(t)
	book := addBook(t, s)
	entry, err := s.AddActivityLog(&model.ActivityLog{
		BookID: book.ID, PageIDs: "1,2", Action: model.ActivityPageAdded,
	})
	if err != nil {
		t.Fatal(err)
	}
	date := entry.CreatedOn[:10]
	if err := s.SetCreatorPostID(book.CreatorID, model.ServiceTwitter, "777"); err != nil {
		t.Fatal(err)
	}

	announcer := &fakeAnnouncer{results: []social.Result{
		{Service: model.ServiceTwitter, PostID: "777"},
	}}
	orch := NewOrchestrator(s, &fakePackager{}, announcer)

	_, retry, err := orch.Handle(&model.Job{
		Type: model.JobTypePostOngoingUpdate, Date: date, Force: true,
	})
	if err != nil || retry {
		t.Fatalf("Handle: retry=%v err=%v", retry, err)
	}
	if len(announcer.ongoing) != 1 || announcer.ongoing[0] != date {
		t.Errorf("announcer calls: %v", announcer.ongoing)
	}
	if len(announcer.ongoingForce) != 1 || !announcer.ongoingForce[0] {
		t.Errorf("force flag not passed through: %v", announcer.ongoingForce)
	}

	// Completing the cycle resets the creator columns so the next
	// date's update is not suppressed by this date's confirmed ids.
	creator, err := s.MustGetCreator(&model.FindCreator{ID: &book.CreatorID})
	if err != nil {
		t.Fatal(err)
	}
	if creator.TwitterPostID != "" {
		t.Errorf("creator post id not reset: %q", creator.TwitterPostID)
	}

	// The activity logs are consumed; a second run finds nothing.
	_, _, err = orch.Handle(&model.Job{
		Type: model.JobTypePostOngoingUpdate, Date: date,
	})
	if err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	if len(announcer.ongoing) != 1 {
		t.Errorf("announcer re-ran over processed logs: %v", announcer.ongoing)
	}
}
