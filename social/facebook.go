package social

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/zcomx/zco-mx/model"
)

const facebookAPIBase = "https://graph.facebook.com/v2.8"

// ErrNoTumblrPost reports a facebook release post attempted before the
// tumblr post was confirmed. Facebook shares the tumblr permalink, so
// posting order matters.
var ErrNoTumblrPost = errors.New("facebook post requires a confirmed tumblr post")

type Facebook struct {
	client *http.Client
	// PageID is the facebook page posts are created on.
	PageID string
	// APIBase is overridable in tests.
	APIBase string
}

func NewFacebook(accessToken, pageID string) *Facebook {
	token := &oauth2.Token{AccessToken: accessToken}
	source := oauth2.StaticTokenSource(token)
	return &Facebook{
		client:  oauth2.NewClient(context.Background(), source),
		PageID:  pageID,
		APIBase: facebookAPIBase,
	}
}

func (f *Facebook) Service() string {
	return model.ServiceFacebook
}

// PostRelease shares the tumblr permalink on the page. The caller is
// expected to post to tumblr first and fill in Release.TumblrURL.
func (f *Facebook) PostRelease(release *Release) (string, error) {
	if release.TumblrURL == "" {
		return "", ErrNoTumblrPost
	}
	return f.createLink(release.TumblrURL)
}

func (f *Facebook) PostOngoingUpdate(update *OngoingUpdate) (string, error) {
	return f.createLink(update.URL)
}

func (f *Facebook) DeletePost(postID string) error {
	req, err := http.NewRequest(http.MethodDelete, f.APIBase+"/"+postID, nil)
	if err != nil {
		return errors.Wrapf(ErrPost, "facebook: %v", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Wrapf(ErrPost, "facebook: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrPost, "facebook: delete returned %s", resp.Status)
	}
	return nil
}

func (f *Facebook) createLink(link string) (string, error) {
	form := url.Values{"link": {link}}
	resp, err := f.client.PostForm(f.APIBase+"/"+f.PageID+"/feed", form)
	if err != nil {
		return "", errors.Wrapf(ErrPost, "facebook: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(ErrPost, "facebook: post returned %s", resp.Status)
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrapf(ErrPost, "facebook: %v", err)
	}
	if body.ID == "" {
		return "", errors.Wrap(ErrPost, "facebook: empty post id")
	}
	return body.ID, nil
}
