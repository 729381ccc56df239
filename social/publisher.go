package social

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zcomx/zco-mx/log"
	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/names"
	"github.com/zcomx/zco-mx/store"
)

// Result reports the outcome of one service's post attempt.
type Result struct {
	Service string
	PostID  string
	Skipped bool
	Err     error
}

// Publisher drives the per-service posters against a book's post id
// columns. Posters run in order, tumblr before facebook, so the
// facebook poster can share the tumblr permalink.
type Publisher struct {
	store   *store.Store
	posters []Poster
	baseURL string
}

func NewPublisher(s *store.Store, baseURL string, posters ...Poster) *Publisher {
	return &Publisher{store: s, posters: posters, baseURL: baseURL}
}

// PostBookCompleted announces a released book on every configured
// service. Each service is tried independently: a confirmed id is left
// alone, an in-progress sentinel blocks the attempt, and before each
// remote call the sentinel is written so a crash mid-post cannot
// double-post on retry. force ignores confirmed ids and in-progress
// sentinels, posting again regardless. services restricts posting to
// the named services; none means all.
func (p *Publisher) PostBookCompleted(bookID int, force bool, services ...string) ([]Result, error) {
	book, err := p.store.MustGetBook(&model.FindBook{ID: &bookID})
	if err != nil {
		return nil, err
	}
	if !book.Released() {
		return nil, errors.Errorf("book id %d is not released", bookID)
	}
	creator, err := p.store.MustGetCreator(&model.FindCreator{ID: &book.CreatorID})
	if err != nil {
		return nil, err
	}

	release := &Release{
		Book:    book,
		Creator: creator,
		URL:     p.bookURL(creator, book),
	}

	posters := p.selected(services)
	results := make([]Result, 0, len(posters))
	for _, poster := range posters {
		result := p.postOne(poster, book, release, force)
		if result.Service == model.ServiceTumblr {
			p.fillTumblrURL(poster, book, release, result)
		}
		results = append(results, result)
	}
	return results, nil
}

func (p *Publisher) postOne(poster Poster, book *model.Book, release *Release, force bool) Result {
	service := poster.Service()
	state := book.PostIDs()[service]

	if id, isConfirmed := state.Confirmed(); isConfirmed && !force {
		log.Debug("Post already confirmed, skipping",
			zap.String("service", service), zap.Int("book_id", book.ID), zap.String("post_id", id))
		return Result{Service: service, PostID: id, Skipped: true}
	}
	if state.InProgress() && !force {
		log.Warn("Post in progress, refusing to re-post",
			zap.String("service", service), zap.Int("book_id", book.ID))
		return Result{Service: service, Skipped: true, Err: ErrPostInProgress}
	}
	if service == model.ServiceFacebook && release.TumblrURL == "" {
		log.Warn("No confirmed tumblr post yet, skipping facebook",
			zap.Int("book_id", book.ID))
		return Result{Service: service, Skipped: true, Err: ErrNoTumblrPost}
	}

	if err := p.store.SetBookPostID(book.ID, service, model.PostInProgress); err != nil {
		return Result{Service: service, Err: err}
	}
	postID, err := poster.PostRelease(release)
	if err != nil {
		log.Error("Failed to post release",
			zap.String("service", service), zap.Int("book_id", book.ID), zap.Error(err))
		return Result{Service: service, Err: err}
	}
	if err := p.store.SetBookPostID(book.ID, service, postID); err != nil {
		return Result{Service: service, PostID: postID, Err: err}
	}
	log.Info("Posted release",
		zap.String("service", service), zap.Int("book_id", book.ID), zap.String("post_id", postID))
	return Result{Service: service, PostID: postID}
}

// fillTumblrURL records the tumblr permalink on the release so a
// subsequent facebook poster can share it.
func (p *Publisher) fillTumblrURL(poster Poster, book *model.Book, release *Release, result Result) {
	postID := result.PostID
	if postID == "" {
		// A confirmed skip still carries the id from the book record.
		if id, ok := book.PostIDs()[model.ServiceTumblr].Confirmed(); ok {
			postID = id
		}
	}
	if postID == "" {
		return
	}
	if tumblr, ok := poster.(*Tumblr); ok {
		release.TumblrURL = tumblr.PermalinkURL(postID)
	}
}

// PostOngoingUpdate announces pages added to ongoing books on the given
// date. Post ids are recorded per creator rather than per book; the
// sentinel discipline matches PostBookCompleted: a confirmed id skips
// the service, an in-progress sentinel blocks without force, and the
// sentinel is written to every target creator before the remote call.
// Completing the cycle resets the columns, so confirmed ids only guard
// the current date's attempt against duplicates.
func (p *Publisher) PostOngoingUpdate(date string, creatorIDs []int, force bool, services ...string) ([]Result, error) {
	var creators []*model.Creator
	for _, id := range creatorIDs {
		creator, err := p.store.MustGetCreator(&model.FindCreator{ID: &id})
		if err != nil {
			return nil, err
		}
		creators = append(creators, creator)
	}

	var creatorNames []string
	for _, creator := range creators {
		creatorNames = append(creatorNames, creator.Name)
	}

	update := &OngoingUpdate{
		Date:     date,
		Creators: creatorNames,
		URL:      p.baseURL + "/ongoing_updates/" + date,
	}

	posters := p.selected(services)
	results := make([]Result, 0, len(posters))
	for _, poster := range posters {
		results = append(results, p.postOngoingOne(poster, creators, update, force))
	}
	return results, nil
}

func (p *Publisher) postOngoingOne(poster Poster, creators []*model.Creator, update *OngoingUpdate, force bool) Result {
	service := poster.Service()

	confirmed := 0
	for _, creator := range creators {
		state := creator.PostIDs()[service]
		if state.InProgress() && !force {
			log.Warn("Ongoing post in progress, refusing to re-post",
				zap.String("service", service), zap.Int("creator_id", creator.ID))
			return Result{Service: service, Skipped: true, Err: ErrPostInProgress}
		}
		if _, ok := state.Confirmed(); ok {
			confirmed++
		}
	}
	if len(creators) > 0 && confirmed == len(creators) && !force {
		log.Debug("Ongoing update already posted, skipping",
			zap.String("service", service), zap.String("date", update.Date))
		return Result{Service: service, Skipped: true}
	}

	for _, creator := range creators {
		if err := p.store.SetCreatorPostID(creator.ID, service, model.PostInProgress); err != nil {
			return Result{Service: service, Err: err}
		}
	}
	postID, err := poster.PostOngoingUpdate(update)
	if err != nil {
		log.Error("Failed to post ongoing update",
			zap.String("service", service), zap.String("date", update.Date), zap.Error(err))
		return Result{Service: service, Err: err}
	}
	for _, creator := range creators {
		if err := p.store.SetCreatorPostID(creator.ID, service, postID); err != nil {
			return Result{Service: service, PostID: postID, Err: err}
		}
	}
	log.Info("Posted ongoing update",
		zap.String("service", service), zap.String("date", update.Date), zap.String("post_id", postID))
	return Result{Service: service, PostID: postID}
}

// Retract deletes the book's confirmed posts and clears the columns.
// Used when a release is reversed.
func (p *Publisher) Retract(bookID int) error {
	book, err := p.store.MustGetBook(&model.FindBook{ID: &bookID})
	if err != nil {
		return err
	}
	for _, poster := range p.posters {
		service := poster.Service()
		id, isConfirmed := book.PostIDs()[service].Confirmed()
		if !isConfirmed {
			continue
		}
		if err := poster.DeletePost(id); err != nil {
			log.Warn("Failed to delete post",
				zap.String("service", service), zap.String("post_id", id), zap.Error(err))
		}
		if err := p.store.SetBookPostID(bookID, service, ""); err != nil {
			return err
		}
	}
	return nil
}

// selected filters the posters to the named services; none means all.
func (p *Publisher) selected(services []string) []Poster {
	if len(services) == 0 {
		return p.posters
	}
	want := map[string]bool{}
	for _, service := range services {
		want[service] = true
	}
	var posters []Poster
	for _, poster := range p.posters {
		if want[poster.Service()] {
			posters = append(posters, poster)
		}
	}
	return posters
}

func (p *Publisher) bookURL(creator *model.Creator, book *model.Book) string {
	title := names.NewBookTitle(book.Name, book.BookType, book.Number, book.OfNumber)
	return p.baseURL + "/" + creator.NameForURL + "/" + title.ForURL()
}
