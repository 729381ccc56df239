package social

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"
	"github.com/pkg/errors"

	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/names"
)

const tumblrAPIBase = "https://api.tumblr.com/v2"

type Tumblr struct {
	client *http.Client
	// BlogName is the blog posts are created under, e.g. "zcomx".
	BlogName string
	// APIBase is overridable in tests.
	APIBase string
}

func NewTumblr(consumerKey, consumerSecret, accessToken, accessSecret, blogName string) *Tumblr {
	oaConfig := oauth1.NewConfig(consumerKey, consumerSecret)
	token := oauth1.NewToken(accessToken, accessSecret)
	return &Tumblr{
		client:   oaConfig.Client(oauth1.NoContext, token),
		BlogName: blogName,
		APIBase:  tumblrAPIBase,
	}
}

func (t *Tumblr) Service() string {
	return model.ServiceTumblr
}

func (t *Tumblr) PostRelease(release *Release) (string, error) {
	title := names.NewBookTitle(
		release.Book.Name, release.Book.BookType,
		release.Book.Number, release.Book.OfNumber,
	).ForFile()

	caption := fmt.Sprintf(
		`<h3><a href="%s">%s</a></h3><p>by %s</p>`,
		release.URL, title, release.Creator.Name,
	)
	form := url.Values{
		"type":    {"photo"},
		"state":   {"published"},
		"caption": {caption},
		"link":    {release.URL},
		"tags":    {strings.Join([]string{"comics", names.ForURL(release.Creator.Name)}, ",")},
		"source":  {release.URL + "/001"},
	}
	return t.create(form)
}

func (t *Tumblr) PostOngoingUpdate(update *OngoingUpdate) (string, error) {
	var listed string
	if len(update.Creators) >= 4 {
		listed = strings.Join(update.Creators[:2], ", ") + " and others"
	} else {
		listed = strings.Join(update.Creators, ", ")
	}
	body := fmt.Sprintf(
		`<p>New pages by %s.</p><p><a href="%s">%s</a></p>`,
		listed, update.URL, update.URL,
	)
	form := url.Values{
		"type":  {"text"},
		"state": {"published"},
		"title": {"Updated: " + update.Date},
		"body":  {body},
		"tags":  {"comics"},
	}
	return t.create(form)
}

func (t *Tumblr) DeletePost(postID string) error {
	form := url.Values{"id": {postID}}
	resp, err := t.client.PostForm(t.blogURL("/post/delete"), form)
	if err != nil {
		return errors.Wrapf(ErrPost, "tumblr: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrPost, "tumblr: delete returned %s", resp.Status)
	}
	return nil
}

// PermalinkURL returns the public URL of a post, used by the facebook
// poster to share the tumblr copy.
func (t *Tumblr) PermalinkURL(postID string) string {
	return fmt.Sprintf("https://%s.tumblr.com/post/%s", t.BlogName, postID)
}

func (t *Tumblr) create(form url.Values) (string, error) {
	resp, err := t.client.PostForm(t.blogURL("/post"), form)
	if err != nil {
		return "", errors.Wrapf(ErrPost, "tumblr: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", errors.Wrapf(ErrPost, "tumblr: post returned %s", resp.Status)
	}

	var body struct {
		Response struct {
			ID json.Number `json:"id"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrapf(ErrPost, "tumblr: %v", err)
	}
	if body.Response.ID.String() == "" {
		return "", errors.Wrap(ErrPost, "tumblr: empty post id")
	}
	return body.Response.ID.String(), nil
}

func (t *Tumblr) blogURL(path string) string {
	return t.APIBase + "/blog/" + t.BlogName + ".tumblr.com" + path
}
