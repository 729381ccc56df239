package social

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"
	"github.com/pkg/errors"

	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/names"
)

const twitterAPIBase = "https://api.twitter.com/1.1"

type Twitter struct {
	client *http.Client
	// APIBase is overridable in tests.
	APIBase string
}

func NewTwitter(consumerKey, consumerSecret, accessToken, accessSecret string) *Twitter {
	oaConfig := oauth1.NewConfig(consumerKey, consumerSecret)
	token := oauth1.NewToken(accessToken, accessSecret)
	return &Twitter{
		client:  oaConfig.Client(oauth1.NoContext, token),
		APIBase: twitterAPIBase,
	}
}

func (t *Twitter) Service() string {
	return model.ServiceTwitter
}

func (t *Twitter) PostRelease(release *Release) (string, error) {
	title := names.NewBookTitle(
		release.Book.Name, release.Book.BookType,
		release.Book.Number, release.Book.OfNumber,
	).ForFile()
	status := ComposeReleaseTweet(title, release.Creator.Name, handle(release.Creator.Twitter), release.URL)
	return t.update(status)
}

func (t *Twitter) PostOngoingUpdate(update *OngoingUpdate) (string, error) {
	return t.update(ComposeOngoingTweet(update.Creators, update.URL))
}

func (t *Twitter) DeletePost(postID string) error {
	resp, err := t.client.PostForm(t.APIBase+"/statuses/destroy/"+postID+".json", url.Values{})
	if err != nil {
		return errors.Wrapf(ErrPost, "twitter: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrPost, "twitter: delete returned %s", resp.Status)
	}
	return nil
}

func (t *Twitter) update(status string) (string, error) {
	form := url.Values{"status": {status}}
	resp, err := t.client.PostForm(t.APIBase+"/statuses/update.json", form)
	if err != nil {
		return "", errors.Wrapf(ErrPost, "twitter: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(ErrPost, "twitter: update returned %s", resp.Status)
	}

	var body struct {
		IDStr string `json:"id_str"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrapf(ErrPost, "twitter: %v", err)
	}
	if body.IDStr == "" {
		return "", errors.Wrap(ErrPost, "twitter: empty post id")
	}
	return body.IDStr, nil
}

func handle(h string) string {
	if h == "" {
		return ""
	}
	if strings.HasPrefix(h, "@") {
		return h
	}
	return "@" + h
}
