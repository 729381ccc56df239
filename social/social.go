// Package social announces releases and ongoing updates on external
// services. One Poster per service; the publisher iterates them and
// treats each service's failure independently.
package social

import (
	"github.com/pkg/errors"

	"github.com/zcomx/zco-mx/model"
)

// ErrPostInProgress reports a post id column holding the in-progress
// sentinel: a prior attempt may still confirm, so re-posting needs force.
var ErrPostInProgress = errors.New("post attempt already in progress")

// ErrPost marks a remote API failure. Retryable: the orchestrator
// re-queues the poster up to its requeue budget.
var ErrPost = errors.New("unable to post to service")

// Release carries everything a poster needs to announce a book.
type Release struct {
	Book    *model.Book
	Creator *model.Creator
	// URL is the canonical book URL.
	URL string
	// CoverPath is the web rendition of page 1, attached as media.
	CoverPath string
	// TumblrURL is the permalink of the confirmed tumblr post, when any.
	// Facebook links to it rather than composing its own copy.
	TumblrURL string
}

// OngoingUpdate summarizes pages added to in-progress books on a date.
type OngoingUpdate struct {
	Date string
	// Creators are the display names of contributing cartoonists.
	Creators []string
	URL      string
}

type Poster interface {
	Service() string
	// PostRelease returns the opaque post id on success.
	PostRelease(release *Release) (string, error)
	PostOngoingUpdate(update *OngoingUpdate) (string, error)
	DeletePost(postID string) error
}
