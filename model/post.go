package model

// PostInProgress is the reserved sentinel stored in a post id column while a
// post attempt is in flight. It keeps a retry from double-posting: callers
// must refuse to post over it unless forced.
const PostInProgress = "__in_progress__"

const (
	ServiceTwitter  = "twitter"
	ServiceTumblr   = "tumblr"
	ServiceFacebook = "facebook"
)

// PostState is the tagged state of a per-service post id.
type PostState struct {
	id string
}

func PostStateOf(id string) PostState {
	return PostState{id: id}
}

func (p PostState) Never() bool {
	return p.id == ""
}

func (p PostState) InProgress() bool {
	return p.id == PostInProgress
}

// Confirmed returns the opaque post id and whether the post is confirmed.
func (p PostState) Confirmed() (string, bool) {
	if p.id == "" || p.id == PostInProgress {
		return "", false
	}
	return p.id, true
}

func (p PostState) String() string {
	return p.id
}

// PostIDs returns the per-service post id columns of a book.
func (b *Book) PostIDs() map[string]PostState {
	return map[string]PostState{
		ServiceTumblr:   PostStateOf(b.TumblrPostID),
		ServiceTwitter:  PostStateOf(b.TwitterPostID),
		ServiceFacebook: PostStateOf(b.FacebookPostID),
	}
}

// PostIDs returns the per-service post id columns of a creator. They
// track the ongoing update cycle the way the book columns track a
// release announcement.
func (c *Creator) PostIDs() map[string]PostState {
	return map[string]PostState{
		ServiceTumblr:   PostStateOf(c.TumblrPostID),
		ServiceTwitter:  PostStateOf(c.TwitterPostID),
		ServiceFacebook: PostStateOf(c.FacebookPostID),
	}
}

// Announced reports whether every service has a confirmed post id.
func (b *Book) Announced() bool {
	for _, state := range b.PostIDs() {
		if _, ok := state.Confirmed(); !ok {
			return false
		}
	}
	return true
}
