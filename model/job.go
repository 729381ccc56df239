package model //import "github.com/zcomx/zco-mx/model"

const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"

	JobTypeSetBookCompleted  = "set_book_completed"
	JobTypePostBookCompleted = "post_book_completed"
	JobTypePostOngoingUpdate = "post_ongoing_update"
)

type Job struct {
	ID     int
	UUID   string
	BookID int
	Type   string
	Status string
	// Reverse undoes a completed release instead of performing one.
	Reverse bool
	// DeletePosts removes the announcement posts while reversing.
	DeletePosts bool
	// Force allows re-posting over an in-progress sentinel.
	Force bool
	// Date is the target date of an ongoing-update post (YYYY-MM-DD).
	Date string
	// Services restricts posting to the named services; empty means all.
	Services []string
	// Requeues counts how often this job has been re-queued; MaxRequeues bounds it.
	Requeues    int
	MaxRequeues int
}

type JobList []Job

func (j JobList) Len() int {
	return len(j)
}
