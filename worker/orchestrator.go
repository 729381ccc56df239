package worker

import (
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zcomx/zco-mx/log"
	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/release"
	"github.com/zcomx/zco-mx/social"
	"github.com/zcomx/zco-mx/store"
	"github.com/zcomx/zco-mx/util"
)

// Packager builds the release artifacts of a book.
type Packager interface {
	Package(book *model.Book, creator *model.Creator) (*release.Artifact, error)
	RefreshSiteTorrent() error
}

// Announcer posts releases and ongoing updates to external services.
type Announcer interface {
	PostBookCompleted(bookID int, force bool, services ...string) ([]social.Result, error)
	PostOngoingUpdate(date string, creatorIDs []int, force bool, services ...string) ([]social.Result, error)
	Retract(bookID int) error
}

// Orchestrator executes queued jobs: packaging a release, reversing
// one, and driving the social posters with a bounded retry budget.
type Orchestrator struct {
	store     *store.Store
	packager  Packager
	announcer Announcer
}

func NewOrchestrator(s *store.Store, packager Packager, announcer Announcer) *Orchestrator {
	return &Orchestrator{store: s, packager: packager, announcer: announcer}
}

// Handle runs one job. followups are new jobs the worker should queue;
// retry reports whether a failure is worth spending requeue budget on.
func (o *Orchestrator) Handle(job *model.Job) (followups []model.Job, retry bool, err error) {
	switch job.Type {
	case model.JobTypeSetBookCompleted:
		followups, err = o.setBookCompleted(job)
		return followups, false, err
	case model.JobTypePostBookCompleted:
		retry, err = o.postBookCompleted(job)
		return nil, retry, err
	case model.JobTypePostOngoingUpdate:
		retry, err = o.postOngoingUpdate(job)
		return nil, retry, err
	default:
		return nil, false, errors.Errorf("unknown job type %q", job.Type)
	}
}

// setBookCompleted packages a book for release, or reverses a release
// in reverse mode. The complete_in_progress flag is the book-level
// lock: losing the flag race means another packager is already on it.
func (o *Orchestrator) setBookCompleted(job *model.Job) ([]model.Job, error) {
	if job.Reverse {
		if job.DeletePosts {
			if err := o.announcer.Retract(job.BookID); err != nil {
				return nil, err
			}
		}
		if err := o.store.ClearReleased(job.BookID); err != nil {
			return nil, err
		}
		if err := o.packager.RefreshSiteTorrent(); err != nil {
			log.Warn("Failed to refresh site torrent", zap.Error(err))
		}
		log.Info("Release reversed", zap.Int("book_id", job.BookID))
		return nil, nil
	}

	acquired, err := o.store.SetCompleteInProgress(job.BookID, true)
	if err != nil {
		return nil, err
	}
	if !acquired {
		log.Info("Book already being completed, nothing to do",
			zap.Int("book_id", job.BookID))
		return nil, nil
	}

	book, err := o.store.MustGetBook(&model.FindBook{ID: &job.BookID})
	if err != nil {
		return nil, err
	}
	creator, err := o.store.MustGetCreator(&model.FindCreator{ID: &book.CreatorID})
	if err != nil {
		return nil, err
	}

	if _, err := o.packager.Package(book, creator); err != nil {
		// Packager already cleared the flag; operator decides on retry.
		return nil, err
	}

	return []model.Job{{
		UUID:        util.GenUUID(),
		BookID:      job.BookID,
		Type:        model.JobTypePostBookCompleted,
		Status:      model.JobStatusPending,
		Force:       job.Force,
		Services:    job.Services,
		MaxRequeues: job.MaxRequeues,
	}}, nil
}

// postBookCompleted announces a packaged book. Exits cleanly when every
// service already confirmed; a remote failure is retryable.
func (o *Orchestrator) postBookCompleted(job *model.Job) (bool, error) {
	book, err := o.store.MustGetBook(&model.FindBook{ID: &job.BookID})
	if err != nil {
		return false, err
	}
	if book.Announced() && !job.Force {
		log.Info("Book already announced", zap.Int("book_id", job.BookID))
		return false, nil
	}

	results, err := o.announcer.PostBookCompleted(job.BookID, job.Force, job.Services...)
	if err != nil {
		return false, err
	}
	return resolveResults(results)
}

// postOngoingUpdate announces the pages added on the job's date. The
// contributing creators come from the unprocessed activity logs, which
// are marked processed once every service posted.
func (o *Orchestrator) postOngoingUpdate(job *model.Job) (bool, error) {
	processed := false
	entries, err := o.store.ListActivityLogs(&model.FindActivityLog{
		Date:      &job.Date,
		Processed: &processed,
	})
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		log.Info("No activity to announce", zap.String("date", job.Date))
		return false, nil
	}

	creatorIDs, logIDs, err := o.collectActivity(entries)
	if err != nil {
		return false, err
	}

	results, err := o.announcer.PostOngoingUpdate(job.Date, creatorIDs, job.Force, job.Services...)
	if err != nil {
		return false, err
	}
	retry, err := resolveResults(results)
	if err != nil {
		return retry, err
	}

	if err := o.store.MarkActivityLogsProcessed(logIDs); err != nil {
		return false, err
	}
	o.clearCreatorPostIDs(creatorIDs)
	return false, nil
}

// clearCreatorPostIDs resets the per-creator post columns once an
// ongoing update cycle completes, so the confirmed ids of this date
// cannot suppress the next date's post.
func (o *Orchestrator) clearCreatorPostIDs(creatorIDs []int) {
	services := []string{model.ServiceTumblr, model.ServiceTwitter, model.ServiceFacebook}
	for _, id := range creatorIDs {
		for _, service := range services {
			if err := o.store.SetCreatorPostID(id, service, ""); err != nil {
				log.Warn("Failed to reset creator post id",
					zap.Int("creator_id", id), zap.String("service", service), zap.Error(err))
			}
		}
	}
}

// collectActivity resolves activity log entries to the distinct ids of
// the creators whose books gained pages.
func (o *Orchestrator) collectActivity(entries []*model.ActivityLog) (creatorIDs, logIDs []int, err error) {
	seen := map[int]bool{}
	for _, entry := range entries {
		logIDs = append(logIDs, entry.ID)
		book, err := o.store.MustGetBook(&model.FindBook{ID: &entry.BookID})
		if err != nil {
			log.Warn("Activity log references unknown book",
				zap.Int("book_id", entry.BookID), zap.Error(err))
			continue
		}
		if !seen[book.CreatorID] {
			seen[book.CreatorID] = true
			creatorIDs = append(creatorIDs, book.CreatorID)
		}
	}
	sort.Ints(creatorIDs)
	return creatorIDs, logIDs, nil
}

// resolveResults folds per-service outcomes into a single job verdict.
// A remote failure is retryable; a refused in-progress sentinel needs
// an operator with force, so it is terminal.
func resolveResults(results []social.Result) (bool, error) {
	var terminal, retryable error
	for _, result := range results {
		switch {
		case result.Err == nil:
		case errors.Is(result.Err, social.ErrPostInProgress):
			terminal = errors.Wrapf(result.Err, "service %s", result.Service)
		default:
			retryable = errors.Wrapf(result.Err, "service %s", result.Service)
		}
	}
	if retryable != nil {
		return true, retryable
	}
	if terminal != nil {
		return false, terminal
	}
	return false, nil
}
